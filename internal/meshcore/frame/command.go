package frame

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Command is a frame the client sends to the device. The set of
// implementations is closed; DecodeCommand returns exactly these types.
type Command interface {
	Code() byte
	isCommand()
}

// AppStart opens a session and asks the device for its SelfInfo.
type AppStart struct {
	AppVer  byte
	AppName string
}

// SendTxtMsg queues a direct text message for a contact addressed by its
// public key prefix. Attempt distinguishes retries of the same message.
type SendTxtMsg struct {
	TxtType         byte
	Attempt         byte
	SenderTimestamp uint32
	Prefix          [PrefixSize]byte
	Text            string
}

// SendChannelTxtMsg queues a group text on a shared channel slot.
type SendChannelTxtMsg struct {
	TxtType    byte
	ChannelIdx byte
	Timestamp  uint32
	Text       string
}

// GetContacts starts a contact sync. Since filters to records modified
// strictly after the given epoch second; zero requests the full table.
type GetContacts struct {
	Since uint32
}

// GetDeviceTime reads the device clock.
type GetDeviceTime struct{}

// SetDeviceTime sets the device clock to an epoch second.
type SetDeviceTime struct {
	Epoch uint32
}

// SendSelfAdvert broadcasts the device's own advert, zero-hop by default or
// flooded across the mesh.
type SendSelfAdvert struct {
	Flood bool
}

// SetAdvertName renames the local node.
type SetAdvertName struct {
	Name string
}

// AddUpdateContact upserts one contact table entry.
type AddUpdateContact struct {
	Contact ContactRecord
}

// SyncNextMessage pulls one message from the device mailbox.
type SyncNextMessage struct{}

// SetRadioParams reconfigures the radio. Frequency is in kHz, bandwidth in Hz.
type SetRadioParams struct {
	FreqKHz uint32
	BwHz    uint32
	SF      byte
	CR      byte
}

// SetTxPower sets the transmit power in dBm.
type SetTxPower struct {
	Dbm byte
}

// ResetPath forgets the stored out path for a contact so the next send
// floods.
type ResetPath struct {
	PublicKey [PublicKeySize]byte
}

// SetAdvertLatLon pins the advertised location, degrees x 1e6.
type SetAdvertLatLon struct {
	Lat int32
	Lon int32
}

// RemoveContact deletes a contact table entry.
type RemoveContact struct {
	PublicKey [PublicKeySize]byte
}

// ShareContact re-broadcasts a stored contact's advert to the mesh.
type ShareContact struct {
	PublicKey [PublicKeySize]byte
}

// ExportContact asks for the signed advert blob of a stored contact, or of
// the device itself when Self is set.
type ExportContact struct {
	Self      bool
	PublicKey [PublicKeySize]byte
}

// ImportContact adds a contact from a signed advert blob.
type ImportContact struct {
	Advert AdvertBlock
}

// Reboot restarts the device.
type Reboot struct{}

// GetBatteryVoltage reads the battery level.
type GetBatteryVoltage struct{}

// SetTuningParams adjusts mesh timing knobs.
type SetTuningParams struct {
	RxDelayBase   uint32
	AirtimeFactor uint32
}

// DeviceQuery asks for DeviceInfo, announcing the protocol version the app
// targets.
type DeviceQuery struct {
	AppTargetVer byte
}

// ExportPrivateKey reads the device identity key pair.
type ExportPrivateKey struct{}

// ImportPrivateKey replaces the device identity key pair.
type ImportPrivateKey struct {
	Key [PrivateKeySize]byte
}

// SendRawData transmits an opaque payload along an explicit path, or floods
// it when the path is empty.
type SendRawData struct {
	Path    []byte
	Payload []byte
}

// SendLogin authenticates against a remote node such as a room server.
type SendLogin struct {
	Prefix   [PrefixSize]byte
	Password string
}

// SendStatusReq asks a remote node for its status blob.
type SendStatusReq struct {
	Prefix [PrefixSize]byte
}

// GetChannel reads one channel slot.
type GetChannel struct {
	Index byte
}

// SetChannel writes one channel slot.
type SetChannel struct {
	Index  byte
	Name   string
	Secret [SecretSize]byte
}

// SignStart opens a signing session for a payload of the given total length.
type SignStart struct {
	ExpectedLen uint32
}

// SignData streams one chunk of the payload into a signing session.
type SignData struct {
	SessionID uint32
	Chunk     []byte
}

// SignFinish closes a signing session and asks for the signature.
type SignFinish struct {
	SessionID uint32
}

// SendTracePath probes a route, one repeater hash byte per hop.
type SendTracePath struct {
	Tag   uint32
	Auth  uint32
	Flags byte
	Path  []byte
}

// SetOtherParams toggles miscellaneous behavior flags.
type SetOtherParams struct {
	ManualAddContacts bool
}

// SendTelemetryReq asks a remote node for its telemetry blob.
type SendTelemetryReq struct {
	Prefix [PrefixSize]byte
}

// SendBinaryReq sends a typed binary request to a remote node.
type SendBinaryReq struct {
	Prefix  [PrefixSize]byte
	ReqType byte
	Payload []byte
}

func (AppStart) Code() byte          { return CmdAppStart }
func (SendTxtMsg) Code() byte        { return CmdSendTxtMsg }
func (SendChannelTxtMsg) Code() byte { return CmdSendChannelTxtMsg }
func (GetContacts) Code() byte       { return CmdGetContacts }
func (GetDeviceTime) Code() byte     { return CmdGetDeviceTime }
func (SetDeviceTime) Code() byte     { return CmdSetDeviceTime }
func (SendSelfAdvert) Code() byte    { return CmdSendSelfAdvert }
func (SetAdvertName) Code() byte     { return CmdSetAdvertName }
func (AddUpdateContact) Code() byte  { return CmdAddUpdateContact }
func (SyncNextMessage) Code() byte   { return CmdSyncNextMessage }
func (SetRadioParams) Code() byte    { return CmdSetRadioParams }
func (SetTxPower) Code() byte        { return CmdSetTxPower }
func (ResetPath) Code() byte         { return CmdResetPath }
func (SetAdvertLatLon) Code() byte   { return CmdSetAdvertLatLon }
func (RemoveContact) Code() byte     { return CmdRemoveContact }
func (ShareContact) Code() byte      { return CmdShareContact }
func (ExportContact) Code() byte     { return CmdExportContact }
func (ImportContact) Code() byte     { return CmdImportContact }
func (Reboot) Code() byte            { return CmdReboot }
func (GetBatteryVoltage) Code() byte { return CmdGetBatteryVoltage }
func (SetTuningParams) Code() byte   { return CmdSetTuningParams }
func (DeviceQuery) Code() byte       { return CmdDeviceQuery }
func (ExportPrivateKey) Code() byte  { return CmdExportPrivateKey }
func (ImportPrivateKey) Code() byte  { return CmdImportPrivateKey }
func (SendRawData) Code() byte       { return CmdSendRawData }
func (SendLogin) Code() byte         { return CmdSendLogin }
func (SendStatusReq) Code() byte     { return CmdSendStatusReq }
func (GetChannel) Code() byte        { return CmdGetChannel }
func (SetChannel) Code() byte        { return CmdSetChannel }
func (SignStart) Code() byte         { return CmdSignStart }
func (SignData) Code() byte          { return CmdSignData }
func (SignFinish) Code() byte        { return CmdSignFinish }
func (SendTracePath) Code() byte     { return CmdSendTracePath }
func (SetOtherParams) Code() byte    { return CmdSetOtherParams }
func (SendTelemetryReq) Code() byte  { return CmdSendTelemetryReq }
func (SendBinaryReq) Code() byte     { return CmdSendBinaryReq }

func (AppStart) isCommand()          {}
func (SendTxtMsg) isCommand()        {}
func (SendChannelTxtMsg) isCommand() {}
func (GetContacts) isCommand()       {}
func (GetDeviceTime) isCommand()     {}
func (SetDeviceTime) isCommand()     {}
func (SendSelfAdvert) isCommand()    {}
func (SetAdvertName) isCommand()     {}
func (AddUpdateContact) isCommand()  {}
func (SyncNextMessage) isCommand()   {}
func (SetRadioParams) isCommand()    {}
func (SetTxPower) isCommand()        {}
func (ResetPath) isCommand()         {}
func (SetAdvertLatLon) isCommand()   {}
func (RemoveContact) isCommand()     {}
func (ShareContact) isCommand()      {}
func (ExportContact) isCommand()     {}
func (ImportContact) isCommand()     {}
func (Reboot) isCommand()            {}
func (GetBatteryVoltage) isCommand() {}
func (SetTuningParams) isCommand()   {}
func (DeviceQuery) isCommand()       {}
func (ExportPrivateKey) isCommand()  {}
func (ImportPrivateKey) isCommand()  {}
func (SendRawData) isCommand()       {}
func (SendLogin) isCommand()         {}
func (SendStatusReq) isCommand()     {}
func (GetChannel) isCommand()        {}
func (SetChannel) isCommand()        {}
func (SignStart) isCommand()         {}
func (SignData) isCommand()          {}
func (SignFinish) isCommand()        {}
func (SendTracePath) isCommand()     {}
func (SetOtherParams) isCommand()    {}
func (SendTelemetryReq) isCommand()  {}
func (SendBinaryReq) isCommand()     {}

// EncodeCommand serializes a command into a single wire frame. Field domains
// are validated here so an out-of-range value never leaves the client.
func EncodeCommand(c Command) ([]byte, error) {
	switch v := c.(type) {
	case AppStart:
		if len(v.AppName) > NameSize {
			return nil, fmt.Errorf("%w: app name %d bytes exceeds %d", ErrInvalidField, len(v.AppName), NameSize)
		}
		out := append(make([]byte, 0, 8+len(v.AppName)), CmdAppStart, v.AppVer)
		out = append(out, 0, 0, 0, 0, 0, 0)
		return append(out, v.AppName...), nil

	case SendTxtMsg:
		if err := validateText(v.Text); err != nil {
			return nil, err
		}
		out := append(make([]byte, 0, 13+len(v.Text)), CmdSendTxtMsg, v.TxtType, v.Attempt)
		out = binary.LittleEndian.AppendUint32(out, v.SenderTimestamp)
		out = append(out, v.Prefix[:]...)
		return append(out, v.Text...), nil

	case SendChannelTxtMsg:
		if err := validateText(v.Text); err != nil {
			return nil, err
		}
		out := append(make([]byte, 0, 7+len(v.Text)), CmdSendChannelTxtMsg, v.TxtType, v.ChannelIdx)
		out = binary.LittleEndian.AppendUint32(out, v.Timestamp)
		return append(out, v.Text...), nil

	case GetContacts:
		if v.Since == 0 {
			return []byte{CmdGetContacts}, nil
		}
		return binary.LittleEndian.AppendUint32([]byte{CmdGetContacts}, v.Since), nil

	case GetDeviceTime:
		return []byte{CmdGetDeviceTime}, nil

	case SetDeviceTime:
		return binary.LittleEndian.AppendUint32([]byte{CmdSetDeviceTime}, v.Epoch), nil

	case SendSelfAdvert:
		t := byte(0)
		if v.Flood {
			t = 1
		}
		return []byte{CmdSendSelfAdvert, t}, nil

	case SetAdvertName:
		if len(v.Name) == 0 || len(v.Name) > NameSize {
			return nil, fmt.Errorf("%w: advert name %d bytes, want 1..%d", ErrInvalidField, len(v.Name), NameSize)
		}
		return append([]byte{CmdSetAdvertName}, v.Name...), nil

	case AddUpdateContact:
		return appendContact([]byte{CmdAddUpdateContact}, &v.Contact)

	case SyncNextMessage:
		return []byte{CmdSyncNextMessage}, nil

	case SetRadioParams:
		if err := ValidateRadioParams(v.FreqKHz, v.BwHz, v.SF, v.CR); err != nil {
			return nil, err
		}
		out := binary.LittleEndian.AppendUint32([]byte{CmdSetRadioParams}, v.FreqKHz)
		out = binary.LittleEndian.AppendUint32(out, v.BwHz)
		return append(out, v.SF, v.CR), nil

	case SetTxPower:
		return []byte{CmdSetTxPower, v.Dbm}, nil

	case ResetPath:
		return append([]byte{CmdResetPath}, v.PublicKey[:]...), nil

	case SetAdvertLatLon:
		if err := ValidateLatLon(v.Lat, v.Lon); err != nil {
			return nil, err
		}
		out := binary.LittleEndian.AppendUint32([]byte{CmdSetAdvertLatLon}, uint32(v.Lat))
		return binary.LittleEndian.AppendUint32(out, uint32(v.Lon)), nil

	case RemoveContact:
		return append([]byte{CmdRemoveContact}, v.PublicKey[:]...), nil

	case ShareContact:
		return append([]byte{CmdShareContact}, v.PublicKey[:]...), nil

	case ExportContact:
		if v.Self {
			return []byte{CmdExportContact}, nil
		}
		return append([]byte{CmdExportContact}, v.PublicKey[:]...), nil

	case ImportContact:
		return appendAdvert([]byte{CmdImportContact}, &v.Advert)

	case Reboot:
		return []byte{CmdReboot}, nil

	case GetBatteryVoltage:
		return []byte{CmdGetBatteryVoltage}, nil

	case SetTuningParams:
		out := binary.LittleEndian.AppendUint32([]byte{CmdSetTuningParams}, v.RxDelayBase)
		return binary.LittleEndian.AppendUint32(out, v.AirtimeFactor), nil

	case DeviceQuery:
		return []byte{CmdDeviceQuery, v.AppTargetVer}, nil

	case ExportPrivateKey:
		return []byte{CmdExportPrivateKey}, nil

	case ImportPrivateKey:
		return append([]byte{CmdImportPrivateKey}, v.Key[:]...), nil

	case SendRawData:
		if len(v.Path) > OutPathSize {
			return nil, fmt.Errorf("%w: raw path %d bytes exceeds %d", ErrInvalidField, len(v.Path), OutPathSize)
		}
		out := append(make([]byte, 0, 2+len(v.Path)+len(v.Payload)), CmdSendRawData, byte(len(v.Path)))
		out = append(out, v.Path...)
		return append(out, v.Payload...), nil

	case SendLogin:
		out := append([]byte{CmdSendLogin}, v.Prefix[:]...)
		return append(out, v.Password...), nil

	case SendStatusReq:
		return append([]byte{CmdSendStatusReq}, v.Prefix[:]...), nil

	case GetChannel:
		return []byte{CmdGetChannel, v.Index}, nil

	case SetChannel:
		if len(v.Name) > NameSize {
			return nil, fmt.Errorf("%w: channel name %d bytes exceeds %d", ErrInvalidField, len(v.Name), NameSize)
		}
		out := appendFixedName([]byte{CmdSetChannel, v.Index}, v.Name)
		return append(out, v.Secret[:]...), nil

	case SignStart:
		return binary.LittleEndian.AppendUint32([]byte{CmdSignStart}, v.ExpectedLen), nil

	case SignData:
		out := binary.LittleEndian.AppendUint32([]byte{CmdSignData}, v.SessionID)
		return append(out, v.Chunk...), nil

	case SignFinish:
		return binary.LittleEndian.AppendUint32([]byte{CmdSignFinish}, v.SessionID), nil

	case SendTracePath:
		if len(v.Path) > OutPathSize {
			return nil, fmt.Errorf("%w: trace path %d bytes exceeds %d", ErrInvalidField, len(v.Path), OutPathSize)
		}
		out := binary.LittleEndian.AppendUint32([]byte{CmdSendTracePath}, v.Tag)
		out = binary.LittleEndian.AppendUint32(out, v.Auth)
		out = append(out, v.Flags)
		return append(out, v.Path...), nil

	case SetOtherParams:
		m := byte(0)
		if v.ManualAddContacts {
			m = 1
		}
		return []byte{CmdSetOtherParams, m}, nil

	case SendTelemetryReq:
		return append([]byte{CmdSendTelemetryReq}, v.Prefix[:]...), nil

	case SendBinaryReq:
		out := append([]byte{CmdSendBinaryReq}, v.Prefix[:]...)
		out = append(out, v.ReqType)
		return append(out, v.Payload...), nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnknownCommand, c)
}

// DecodeCommand parses a wire frame into its command type. It checks sizes,
// not domains; the device validates domains before acting so that parse
// failures and semantic failures stay distinguishable.
func DecodeCommand(b []byte) (Command, error) {
	if len(b) == 0 {
		return nil, ErrEmptyFrame
	}
	switch b[0] {
	case CmdAppStart:
		if err := ensureLen(b, 8, "AppStart"); err != nil {
			return nil, err
		}
		return AppStart{AppVer: b[1], AppName: string(b[8:])}, nil

	case CmdSendTxtMsg:
		if err := ensureLen(b, 13, "SendTxtMsg"); err != nil {
			return nil, err
		}
		v := SendTxtMsg{
			TxtType:         b[1],
			Attempt:         b[2],
			SenderTimestamp: binary.LittleEndian.Uint32(b[3:7]),
			Text:            string(b[13:]),
		}
		copy(v.Prefix[:], b[7:13])
		return v, nil

	case CmdSendChannelTxtMsg:
		if err := ensureLen(b, 7, "SendChannelTxtMsg"); err != nil {
			return nil, err
		}
		return SendChannelTxtMsg{
			TxtType:    b[1],
			ChannelIdx: b[2],
			Timestamp:  binary.LittleEndian.Uint32(b[3:7]),
			Text:       string(b[7:]),
		}, nil

	case CmdGetContacts:
		if len(b) < 5 {
			return GetContacts{}, nil
		}
		return GetContacts{Since: binary.LittleEndian.Uint32(b[1:5])}, nil

	case CmdGetDeviceTime:
		return GetDeviceTime{}, nil

	case CmdSetDeviceTime:
		if err := ensureLen(b, 5, "SetDeviceTime"); err != nil {
			return nil, err
		}
		return SetDeviceTime{Epoch: binary.LittleEndian.Uint32(b[1:5])}, nil

	case CmdSendSelfAdvert:
		return SendSelfAdvert{Flood: len(b) > 1 && b[1] == 1}, nil

	case CmdSetAdvertName:
		if err := ensureLen(b, 2, "SetAdvertName"); err != nil {
			return nil, err
		}
		return SetAdvertName{Name: string(b[1:])}, nil

	case CmdAddUpdateContact:
		c, err := parseContact(b[1:])
		if err != nil {
			return nil, err
		}
		return AddUpdateContact{Contact: c}, nil

	case CmdSyncNextMessage:
		return SyncNextMessage{}, nil

	case CmdSetRadioParams:
		if err := ensureLen(b, 11, "SetRadioParams"); err != nil {
			return nil, err
		}
		return SetRadioParams{
			FreqKHz: binary.LittleEndian.Uint32(b[1:5]),
			BwHz:    binary.LittleEndian.Uint32(b[5:9]),
			SF:      b[9],
			CR:      b[10],
		}, nil

	case CmdSetTxPower:
		if err := ensureLen(b, 2, "SetTxPower"); err != nil {
			return nil, err
		}
		return SetTxPower{Dbm: b[1]}, nil

	case CmdResetPath:
		var v ResetPath
		if err := ensureLen(b, 33, "ResetPath"); err != nil {
			return nil, err
		}
		copy(v.PublicKey[:], b[1:33])
		return v, nil

	case CmdSetAdvertLatLon:
		if err := ensureLen(b, 9, "SetAdvertLatLon"); err != nil {
			return nil, err
		}
		return SetAdvertLatLon{
			Lat: int32(binary.LittleEndian.Uint32(b[1:5])),
			Lon: int32(binary.LittleEndian.Uint32(b[5:9])),
		}, nil

	case CmdRemoveContact:
		var v RemoveContact
		if err := ensureLen(b, 33, "RemoveContact"); err != nil {
			return nil, err
		}
		copy(v.PublicKey[:], b[1:33])
		return v, nil

	case CmdShareContact:
		var v ShareContact
		if err := ensureLen(b, 33, "ShareContact"); err != nil {
			return nil, err
		}
		copy(v.PublicKey[:], b[1:33])
		return v, nil

	case CmdExportContact:
		if len(b) == 1 {
			return ExportContact{Self: true}, nil
		}
		var v ExportContact
		if err := ensureLen(b, 33, "ExportContact"); err != nil {
			return nil, err
		}
		copy(v.PublicKey[:], b[1:33])
		return v, nil

	case CmdImportContact:
		a, err := parseAdvert(b[1:])
		if err != nil {
			return nil, err
		}
		return ImportContact{Advert: a}, nil

	case CmdReboot:
		return Reboot{}, nil

	case CmdGetBatteryVoltage:
		return GetBatteryVoltage{}, nil

	case CmdSetTuningParams:
		if err := ensureLen(b, 9, "SetTuningParams"); err != nil {
			return nil, err
		}
		return SetTuningParams{
			RxDelayBase:   binary.LittleEndian.Uint32(b[1:5]),
			AirtimeFactor: binary.LittleEndian.Uint32(b[5:9]),
		}, nil

	case CmdDeviceQuery:
		if err := ensureLen(b, 2, "DeviceQuery"); err != nil {
			return nil, err
		}
		return DeviceQuery{AppTargetVer: b[1]}, nil

	case CmdExportPrivateKey:
		return ExportPrivateKey{}, nil

	case CmdImportPrivateKey:
		var v ImportPrivateKey
		if err := ensureLen(b, 1+PrivateKeySize, "ImportPrivateKey"); err != nil {
			return nil, err
		}
		copy(v.Key[:], b[1:1+PrivateKeySize])
		return v, nil

	case CmdSendRawData:
		if err := ensureLen(b, 2, "SendRawData"); err != nil {
			return nil, err
		}
		n := int(b[1])
		if err := ensureLen(b, 2+n, "SendRawData path"); err != nil {
			return nil, err
		}
		v := SendRawData{}
		if n > 0 {
			v.Path = bytes.Clone(b[2 : 2+n])
		}
		if rest := b[2+n:]; len(rest) > 0 {
			v.Payload = bytes.Clone(rest)
		}
		return v, nil

	case CmdSendLogin:
		var v SendLogin
		if err := ensureLen(b, 7, "SendLogin"); err != nil {
			return nil, err
		}
		copy(v.Prefix[:], b[1:7])
		v.Password = string(b[7:])
		return v, nil

	case CmdSendStatusReq:
		var v SendStatusReq
		if err := ensureLen(b, 7, "SendStatusReq"); err != nil {
			return nil, err
		}
		copy(v.Prefix[:], b[1:7])
		return v, nil

	case CmdGetChannel:
		if err := ensureLen(b, 2, "GetChannel"); err != nil {
			return nil, err
		}
		return GetChannel{Index: b[1]}, nil

	case CmdSetChannel:
		var v SetChannel
		if err := ensureLen(b, 2+NameSize+SecretSize, "SetChannel"); err != nil {
			return nil, err
		}
		v.Index = b[1]
		v.Name = trimFixedName(b[2 : 2+NameSize])
		copy(v.Secret[:], b[2+NameSize:2+NameSize+SecretSize])
		return v, nil

	case CmdSignStart:
		if err := ensureLen(b, 5, "SignStart"); err != nil {
			return nil, err
		}
		return SignStart{ExpectedLen: binary.LittleEndian.Uint32(b[1:5])}, nil

	case CmdSignData:
		if err := ensureLen(b, 5, "SignData"); err != nil {
			return nil, err
		}
		v := SignData{SessionID: binary.LittleEndian.Uint32(b[1:5])}
		if rest := b[5:]; len(rest) > 0 {
			v.Chunk = bytes.Clone(rest)
		}
		return v, nil

	case CmdSignFinish:
		if err := ensureLen(b, 5, "SignFinish"); err != nil {
			return nil, err
		}
		return SignFinish{SessionID: binary.LittleEndian.Uint32(b[1:5])}, nil

	case CmdSendTracePath:
		if err := ensureLen(b, 10, "SendTracePath"); err != nil {
			return nil, err
		}
		v := SendTracePath{
			Tag:   binary.LittleEndian.Uint32(b[1:5]),
			Auth:  binary.LittleEndian.Uint32(b[5:9]),
			Flags: b[9],
		}
		if rest := b[10:]; len(rest) > 0 {
			v.Path = bytes.Clone(rest)
		}
		return v, nil

	case CmdSetOtherParams:
		if err := ensureLen(b, 2, "SetOtherParams"); err != nil {
			return nil, err
		}
		return SetOtherParams{ManualAddContacts: b[1] == 1}, nil

	case CmdSendTelemetryReq:
		var v SendTelemetryReq
		if err := ensureLen(b, 7, "SendTelemetryReq"); err != nil {
			return nil, err
		}
		copy(v.Prefix[:], b[1:7])
		return v, nil

	case CmdSendBinaryReq:
		var v SendBinaryReq
		if err := ensureLen(b, 8, "SendBinaryReq"); err != nil {
			return nil, err
		}
		copy(v.Prefix[:], b[1:7])
		v.ReqType = b[7]
		if rest := b[8:]; len(rest) > 0 {
			v.Payload = bytes.Clone(rest)
		}
		return v, nil
	}
	return nil, fmt.Errorf("%w: 0x%02X", ErrUnknownCommand, b[0])
}

func validateText(text string) error {
	if len(text) == 0 {
		return fmt.Errorf("%w: empty message text", ErrInvalidField)
	}
	if len(text) > MaxTextSize {
		return fmt.Errorf("%w: text %d bytes exceeds %d", ErrInvalidField, len(text), MaxTextSize)
	}
	return nil
}

func ensureLen(b []byte, n int, what string) error {
	if len(b) < n {
		return fmt.Errorf("%w: %s frame %d bytes, want at least %d", ErrTruncated, what, len(b), n)
	}
	return nil
}
