package frame

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Response is a frame the device sends in reply to a command. The set of
// implementations is closed; DecodeResponse returns exactly these types, or
// a *DeviceError for an Err frame.
type Response interface {
	Code() byte
	isResponse()
}

// Ok acknowledges a command with no payload.
type Ok struct{}

// ContactsStart opens a contact sync. Total is the size of the whole device
// table, not of the filtered set that follows.
type ContactsStart struct {
	Total uint32
}

// Contact carries one record of a contact sync.
type Contact struct {
	Record ContactRecord
}

// EndOfContacts closes a contact sync. Watermark is the highest lastModified
// among the streamed records, or the request's since value when none matched;
// feeding it back as the next sync's since continues where this one stopped.
type EndOfContacts struct {
	Watermark uint32
}

// SelfInfo describes the local node. Sent in reply to AppStart.
type SelfInfo struct {
	TxPower           byte
	MaxTxPower        byte
	PublicKey         [PublicKeySize]byte
	AdvLat            int32
	AdvLon            int32
	ManualAddContacts bool
	RadioFreqKHz      uint32
	RadioBwHz         uint32
	RadioSF           byte
	RadioCR           byte
	Name              string
}

// Sent reports that a message left the radio. AckCode correlates the later
// SendConfirmed push, zero for channel sends which are never acked.
// TimeoutMs is the device's delivery estimate.
type Sent struct {
	RouteType byte
	AckCode   uint32
	TimeoutMs uint32
}

// ContactMsg is one direct message pulled from the device mailbox.
type ContactMsg struct {
	Prefix          [PrefixSize]byte
	PathLen         byte
	TxtType         byte
	SenderTimestamp uint32
	Text            string
}

// ChannelMsg is one group message pulled from the device mailbox.
type ChannelMsg struct {
	ChannelIdx      int8
	PathLen         byte
	TxtType         byte
	SenderTimestamp uint32
	Text            string
}

// CurrTime reports the device clock.
type CurrTime struct {
	Epoch uint32
}

// NoMoreMessages ends a mailbox drain.
type NoMoreMessages struct{}

// ContactExport carries the signed advert blob requested by ExportContact.
type ContactExport struct {
	Advert AdvertBlock
}

// BatteryVoltage reports the battery level in millivolts.
type BatteryVoltage struct {
	Millivolts uint16
}

// DeviceInfo describes firmware and hardware. Sent in reply to DeviceQuery.
type DeviceInfo struct {
	FirmwareVer   byte
	MaxContacts   uint16
	MaxChannels   byte
	FirmwareBuild string
	Model         string
	Version       string
}

// PrivateKey carries the device identity key pair.
type PrivateKey struct {
	Key [PrivateKeySize]byte
}

// Disabled reports a command switched off by the device operator.
type Disabled struct{}

// ChannelInfo describes one channel slot.
type ChannelInfo struct {
	Index  byte
	Name   string
	Secret [SecretSize]byte
}

// SignStarted confirms a signing session and names it.
type SignStarted struct {
	SessionID uint32
}

// Signature carries the result of a signing session.
type Signature struct {
	Sig [SignatureSize]byte
}

func (Ok) Code() byte             { return RespOk }
func (ContactsStart) Code() byte  { return RespContactsStart }
func (Contact) Code() byte        { return RespContact }
func (EndOfContacts) Code() byte  { return RespEndOfContacts }
func (SelfInfo) Code() byte       { return RespSelfInfo }
func (Sent) Code() byte           { return RespSent }
func (ContactMsg) Code() byte     { return RespContactMsgRecv }
func (ChannelMsg) Code() byte     { return RespChannelMsgRecv }
func (CurrTime) Code() byte       { return RespCurrTime }
func (NoMoreMessages) Code() byte { return RespNoMoreMessages }
func (ContactExport) Code() byte  { return RespContactExport }
func (BatteryVoltage) Code() byte { return RespBatteryVoltage }
func (DeviceInfo) Code() byte     { return RespDeviceInfo }
func (PrivateKey) Code() byte     { return RespPrivateKey }
func (Disabled) Code() byte       { return RespDisabled }
func (ChannelInfo) Code() byte    { return RespChannelInfo }
func (SignStarted) Code() byte    { return RespSignStart }
func (Signature) Code() byte      { return RespSignature }

func (Ok) isResponse()             {}
func (ContactsStart) isResponse()  {}
func (Contact) isResponse()        {}
func (EndOfContacts) isResponse()  {}
func (SelfInfo) isResponse()       {}
func (Sent) isResponse()           {}
func (ContactMsg) isResponse()     {}
func (ChannelMsg) isResponse()     {}
func (CurrTime) isResponse()       {}
func (NoMoreMessages) isResponse() {}
func (ContactExport) isResponse()  {}
func (BatteryVoltage) isResponse() {}
func (DeviceInfo) isResponse()     {}
func (PrivateKey) isResponse()     {}
func (Disabled) isResponse()       {}
func (ChannelInfo) isResponse()    {}
func (SignStarted) isResponse()    {}
func (Signature) isResponse()      {}

// selfInfoMinSize covers everything up to the start of the variable name.
const selfInfoMinSize = 57

// deviceInfoFullSize is the length from which build, model and version are
// present.
const deviceInfoFullSize = 80

// EncodeResponse serializes a device response into a single wire frame. Err
// frames are produced by EncodeDeviceError instead.
func EncodeResponse(r Response) ([]byte, error) {
	switch v := r.(type) {
	case Ok:
		return []byte{RespOk}, nil

	case ContactsStart:
		return binary.LittleEndian.AppendUint32([]byte{RespContactsStart}, v.Total), nil

	case Contact:
		return appendContact([]byte{RespContact}, &v.Record)

	case EndOfContacts:
		return binary.LittleEndian.AppendUint32([]byte{RespEndOfContacts}, v.Watermark), nil

	case SelfInfo:
		if len(v.Name) > NameSize {
			return nil, fmt.Errorf("%w: node name %d bytes exceeds %d", ErrInvalidField, len(v.Name), NameSize)
		}
		if err := ValidateLatLon(v.AdvLat, v.AdvLon); err != nil {
			return nil, err
		}
		out := append(make([]byte, 0, selfInfoMinSize+len(v.Name)), RespSelfInfo, v.TxPower, v.MaxTxPower)
		out = append(out, v.PublicKey[:]...)
		out = binary.LittleEndian.AppendUint32(out, uint32(v.AdvLat))
		out = binary.LittleEndian.AppendUint32(out, uint32(v.AdvLon))
		out = append(out, 0, 0, 0)
		out = append(out, boolByte(v.ManualAddContacts))
		out = binary.LittleEndian.AppendUint32(out, v.RadioFreqKHz)
		out = binary.LittleEndian.AppendUint32(out, v.RadioBwHz)
		out = append(out, v.RadioSF, v.RadioCR)
		return append(out, v.Name...), nil

	case Sent:
		out := append([]byte{RespSent}, v.RouteType)
		out = binary.LittleEndian.AppendUint32(out, v.AckCode)
		return binary.LittleEndian.AppendUint32(out, v.TimeoutMs), nil

	case ContactMsg:
		if err := validateText(v.Text); err != nil {
			return nil, err
		}
		out := append([]byte{RespContactMsgRecv}, v.Prefix[:]...)
		out = append(out, v.PathLen, v.TxtType)
		out = binary.LittleEndian.AppendUint32(out, v.SenderTimestamp)
		return append(out, v.Text...), nil

	case ChannelMsg:
		if err := validateText(v.Text); err != nil {
			return nil, err
		}
		out := append([]byte{RespChannelMsgRecv}, byte(v.ChannelIdx), v.PathLen, v.TxtType)
		out = binary.LittleEndian.AppendUint32(out, v.SenderTimestamp)
		return append(out, v.Text...), nil

	case CurrTime:
		return binary.LittleEndian.AppendUint32([]byte{RespCurrTime}, v.Epoch), nil

	case NoMoreMessages:
		return []byte{RespNoMoreMessages}, nil

	case ContactExport:
		return appendAdvert([]byte{RespContactExport}, &v.Advert)

	case BatteryVoltage:
		return binary.LittleEndian.AppendUint16([]byte{RespBatteryVoltage}, v.Millivolts), nil

	case DeviceInfo:
		if v.MaxContacts%2 != 0 || v.MaxContacts > 510 {
			return nil, fmt.Errorf("%w: max contacts %d, want even and at most 510", ErrInvalidField, v.MaxContacts)
		}
		if len(v.FirmwareBuild) > 12 || len(v.Model) > 40 || len(v.Version) > 20 {
			return nil, fmt.Errorf("%w: firmware build, model or version too long", ErrInvalidField)
		}
		out := append(make([]byte, 0, deviceInfoFullSize),
			RespDeviceInfo, v.FirmwareVer, byte(v.MaxContacts/2), v.MaxChannels, 0, 0, 0, 0)
		out = appendFixedString(out, v.FirmwareBuild, 12)
		out = appendFixedString(out, v.Model, 40)
		return appendFixedString(out, v.Version, 20), nil

	case PrivateKey:
		return append([]byte{RespPrivateKey}, v.Key[:]...), nil

	case Disabled:
		return []byte{RespDisabled}, nil

	case ChannelInfo:
		if len(v.Name) > NameSize {
			return nil, fmt.Errorf("%w: channel name %d bytes exceeds %d", ErrInvalidField, len(v.Name), NameSize)
		}
		out := appendFixedName([]byte{RespChannelInfo, v.Index}, v.Name)
		return append(out, v.Secret[:]...), nil

	case SignStarted:
		return binary.LittleEndian.AppendUint32([]byte{RespSignStart}, v.SessionID), nil

	case Signature:
		return append([]byte{RespSignature}, v.Sig[:]...), nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnknownResponse, r)
}

// EncodeDeviceError serializes a device failure as an Err frame.
func EncodeDeviceError(code byte) []byte {
	return []byte{RespErr, code}
}

// DecodeResponse parses a device reply. An Err frame comes back as a
// *DeviceError in the error position so callers handle device failures and
// decode failures through one path. Push frames are rejected; route them
// with IsPushCode before calling.
func DecodeResponse(b []byte) (Response, error) {
	if len(b) == 0 {
		return nil, ErrEmptyFrame
	}
	switch b[0] {
	case RespOk:
		return Ok{}, nil

	case RespErr:
		if len(b) < 2 {
			return nil, &DeviceError{}
		}
		return nil, &DeviceError{Code: b[1]}

	case RespContactsStart:
		if err := ensureLen(b, 5, "ContactsStart"); err != nil {
			return nil, err
		}
		return ContactsStart{Total: binary.LittleEndian.Uint32(b[1:5])}, nil

	case RespContact:
		c, err := parseContact(b[1:])
		if err != nil {
			return nil, err
		}
		return Contact{Record: c}, nil

	case RespEndOfContacts:
		if len(b) < 5 {
			return EndOfContacts{}, nil
		}
		return EndOfContacts{Watermark: binary.LittleEndian.Uint32(b[1:5])}, nil

	case RespSelfInfo:
		if err := ensureLen(b, selfInfoMinSize, "SelfInfo"); err != nil {
			return nil, err
		}
		v := SelfInfo{
			TxPower:           b[1],
			MaxTxPower:        b[2],
			AdvLat:            int32(binary.LittleEndian.Uint32(b[35:39])),
			AdvLon:            int32(binary.LittleEndian.Uint32(b[39:43])),
			ManualAddContacts: b[46] == 1,
			RadioFreqKHz:      binary.LittleEndian.Uint32(b[47:51]),
			RadioBwHz:         binary.LittleEndian.Uint32(b[51:55]),
			RadioSF:           b[55],
			RadioCR:           b[56],
			Name:              cString(b[selfInfoMinSize:]),
		}
		copy(v.PublicKey[:], b[3:35])
		return v, nil

	case RespSent:
		if err := ensureLen(b, 10, "Sent"); err != nil {
			return nil, err
		}
		return Sent{
			RouteType: b[1],
			AckCode:   binary.LittleEndian.Uint32(b[2:6]),
			TimeoutMs: binary.LittleEndian.Uint32(b[6:10]),
		}, nil

	case RespContactMsgRecv:
		if err := ensureLen(b, 13, "ContactMsgRecv"); err != nil {
			return nil, err
		}
		v := ContactMsg{
			PathLen:         b[7],
			TxtType:         b[8],
			SenderTimestamp: binary.LittleEndian.Uint32(b[9:13]),
			Text:            string(b[13:]),
		}
		copy(v.Prefix[:], b[1:7])
		return v, nil

	case RespChannelMsgRecv:
		if err := ensureLen(b, 8, "ChannelMsgRecv"); err != nil {
			return nil, err
		}
		return ChannelMsg{
			ChannelIdx:      int8(b[1]),
			PathLen:         b[2],
			TxtType:         b[3],
			SenderTimestamp: binary.LittleEndian.Uint32(b[4:8]),
			Text:            string(b[8:]),
		}, nil

	case RespCurrTime:
		if err := ensureLen(b, 5, "CurrTime"); err != nil {
			return nil, err
		}
		return CurrTime{Epoch: binary.LittleEndian.Uint32(b[1:5])}, nil

	case RespNoMoreMessages:
		return NoMoreMessages{}, nil

	case RespContactExport:
		a, err := parseAdvert(b[1:])
		if err != nil {
			return nil, err
		}
		return ContactExport{Advert: a}, nil

	case RespBatteryVoltage:
		if err := ensureLen(b, 3, "BatteryVoltage"); err != nil {
			return nil, err
		}
		return BatteryVoltage{Millivolts: binary.LittleEndian.Uint16(b[1:3])}, nil

	case RespDeviceInfo:
		if err := ensureLen(b, 2, "DeviceInfo"); err != nil {
			return nil, err
		}
		v := DeviceInfo{FirmwareVer: b[1]}
		if v.FirmwareVer >= 3 && len(b) >= 4 {
			v.MaxContacts = uint16(b[2]) * 2
			v.MaxChannels = b[3]
		}
		if len(b) >= deviceInfoFullSize {
			v.FirmwareBuild = trimFixedName(b[8:20])
			v.Model = trimFixedName(b[20:60])
			v.Version = trimFixedName(b[60:])
		}
		return v, nil

	case RespPrivateKey:
		var v PrivateKey
		if err := ensureLen(b, 1+PrivateKeySize, "PrivateKey"); err != nil {
			return nil, err
		}
		copy(v.Key[:], b[1:1+PrivateKeySize])
		return v, nil

	case RespDisabled:
		return Disabled{}, nil

	case RespChannelInfo:
		var v ChannelInfo
		if err := ensureLen(b, 2+NameSize+SecretSize, "ChannelInfo"); err != nil {
			return nil, err
		}
		v.Index = b[1]
		v.Name = trimFixedName(b[2 : 2+NameSize])
		copy(v.Secret[:], b[2+NameSize:2+NameSize+SecretSize])
		return v, nil

	case RespSignStart:
		if err := ensureLen(b, 5, "SignStart"); err != nil {
			return nil, err
		}
		return SignStarted{SessionID: binary.LittleEndian.Uint32(b[1:5])}, nil

	case RespSignature:
		var v Signature
		if err := ensureLen(b, 1+SignatureSize, "Signature"); err != nil {
			return nil, err
		}
		copy(v.Sig[:], b[1:1+SignatureSize])
		return v, nil
	}
	return nil, fmt.Errorf("%w: 0x%02X", ErrUnknownResponse, b[0])
}

func appendFixedString(dst []byte, s string, width int) []byte {
	buf := make([]byte, width)
	copy(buf, s)
	return append(dst, buf...)
}

// cString cuts at the first NUL and drops any padding after it.
func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}
