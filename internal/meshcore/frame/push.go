package frame

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Push is an unsolicited frame from the device. Unknown push codes decode
// into RawPush so new firmware never breaks the dispatch loop.
type Push interface {
	Code() byte
	isPush()
}

// Advert announces that an advert from the given node was received and the
// contact table may have changed.
type Advert struct {
	PublicKey [PublicKeySize]byte
}

// PathUpdated announces that the stored route to a contact changed.
type PathUpdated struct {
	PublicKey [PublicKeySize]byte
}

// SendConfirmed reports end-to-end delivery of an earlier send, correlated
// by the ack code from its Sent response.
type SendConfirmed struct {
	AckCode     uint32
	RoundTripMs uint32
}

// MsgWaiting signals that the device mailbox holds at least one message.
type MsgWaiting struct{}

// RawData carries an opaque payload received over the air.
type RawData struct {
	SNR     int8
	Payload []byte
}

// LoginSuccess reports a successful SendLogin against a remote node.
type LoginSuccess struct {
	Prefix  [PrefixSize]byte
	IsAdmin bool
}

// StatusResponse carries a remote node's status blob.
type StatusResponse struct {
	Prefix  [PrefixSize]byte
	Payload []byte
}

// LogRxData is a radio-level receive log entry.
type LogRxData struct {
	SNR  int8
	RSSI int8
	Raw  []byte
}

// TraceData reports a completed route probe, one repeater hash and one SNR
// reading per hop.
type TraceData struct {
	Tag   uint32
	Auth  uint32
	Flags byte
	Path  []byte
	SNRs  []int8
}

// NewAdvert carries the full signed advert of a newly heard node, pushed
// when the device does not add contacts automatically.
type NewAdvert struct {
	Advert AdvertBlock
}

// Telemetry carries a remote node's telemetry blob.
type Telemetry struct {
	Prefix  [PrefixSize]byte
	Payload []byte
}

// BinaryResponse carries a remote node's reply to SendBinaryReq.
type BinaryResponse struct {
	Prefix  [PrefixSize]byte
	Payload []byte
}

// RawPush preserves a push the codec does not know.
type RawPush struct {
	CodeByte byte
	Payload  []byte
}

func (Advert) Code() byte         { return PushAdvert }
func (PathUpdated) Code() byte    { return PushPathUpdated }
func (SendConfirmed) Code() byte  { return PushSendConfirmed }
func (MsgWaiting) Code() byte     { return PushMsgWaiting }
func (RawData) Code() byte        { return PushRawData }
func (LoginSuccess) Code() byte   { return PushLoginSuccess }
func (StatusResponse) Code() byte { return PushStatusResponse }
func (LogRxData) Code() byte      { return PushLogRxData }
func (TraceData) Code() byte      { return PushTraceData }
func (NewAdvert) Code() byte      { return PushNewAdvert }
func (Telemetry) Code() byte      { return PushTelemetry }
func (BinaryResponse) Code() byte { return PushBinaryResponse }
func (p RawPush) Code() byte      { return p.CodeByte }

func (Advert) isPush()         {}
func (PathUpdated) isPush()    {}
func (SendConfirmed) isPush()  {}
func (MsgWaiting) isPush()     {}
func (RawData) isPush()        {}
func (LoginSuccess) isPush()   {}
func (StatusResponse) isPush() {}
func (LogRxData) isPush()      {}
func (TraceData) isPush()      {}
func (NewAdvert) isPush()      {}
func (Telemetry) isPush()      {}
func (BinaryResponse) isPush() {}
func (RawPush) isPush()        {}

// EncodePush serializes a push into a single wire frame.
func EncodePush(p Push) ([]byte, error) {
	switch v := p.(type) {
	case Advert:
		return append([]byte{PushAdvert}, v.PublicKey[:]...), nil

	case PathUpdated:
		return append([]byte{PushPathUpdated}, v.PublicKey[:]...), nil

	case SendConfirmed:
		out := binary.LittleEndian.AppendUint32([]byte{PushSendConfirmed}, v.AckCode)
		return binary.LittleEndian.AppendUint32(out, v.RoundTripMs), nil

	case MsgWaiting:
		return []byte{PushMsgWaiting}, nil

	case RawData:
		out := append([]byte{PushRawData}, byte(v.SNR))
		return append(out, v.Payload...), nil

	case LoginSuccess:
		out := append([]byte{PushLoginSuccess}, v.Prefix[:]...)
		return append(out, boolByte(v.IsAdmin)), nil

	case StatusResponse:
		out := append([]byte{PushStatusResponse}, v.Prefix[:]...)
		return append(out, v.Payload...), nil

	case LogRxData:
		out := append([]byte{PushLogRxData}, byte(v.SNR), byte(v.RSSI))
		return append(out, v.Raw...), nil

	case TraceData:
		if len(v.Path) != len(v.SNRs) {
			return nil, fmt.Errorf("%w: trace path %d hops but %d snr readings", ErrInvalidField, len(v.Path), len(v.SNRs))
		}
		if len(v.Path) > OutPathSize {
			return nil, fmt.Errorf("%w: trace path %d hops exceeds %d", ErrInvalidField, len(v.Path), OutPathSize)
		}
		out := binary.LittleEndian.AppendUint32([]byte{PushTraceData}, v.Tag)
		out = binary.LittleEndian.AppendUint32(out, v.Auth)
		out = append(out, v.Flags, byte(len(v.Path)))
		out = append(out, v.Path...)
		for _, snr := range v.SNRs {
			out = append(out, byte(snr))
		}
		return out, nil

	case NewAdvert:
		return appendAdvert([]byte{PushNewAdvert}, &v.Advert)

	case Telemetry:
		out := append([]byte{PushTelemetry}, v.Prefix[:]...)
		return append(out, v.Payload...), nil

	case BinaryResponse:
		out := append([]byte{PushBinaryResponse}, v.Prefix[:]...)
		return append(out, v.Payload...), nil

	case RawPush:
		if !IsPushCode(v.CodeByte) {
			return nil, fmt.Errorf("%w: 0x%02X below push floor", ErrInvalidField, v.CodeByte)
		}
		return append([]byte{v.CodeByte}, v.Payload...), nil
	}
	return nil, fmt.Errorf("%w: %T", ErrInvalidField, p)
}

// DecodePush parses an unsolicited device frame. Codes below the push floor
// are rejected; unknown codes above it come back as RawPush.
func DecodePush(b []byte) (Push, error) {
	if len(b) == 0 {
		return nil, ErrEmptyFrame
	}
	if !IsPushCode(b[0]) {
		return nil, fmt.Errorf("%w: 0x%02X below push floor", ErrInvalidField, b[0])
	}
	switch b[0] {
	case PushAdvert:
		var v Advert
		if err := ensureLen(b, 33, "Advert"); err != nil {
			return nil, err
		}
		copy(v.PublicKey[:], b[1:33])
		return v, nil

	case PushPathUpdated:
		var v PathUpdated
		if err := ensureLen(b, 33, "PathUpdated"); err != nil {
			return nil, err
		}
		copy(v.PublicKey[:], b[1:33])
		return v, nil

	case PushSendConfirmed:
		if err := ensureLen(b, 9, "SendConfirmed"); err != nil {
			return nil, err
		}
		return SendConfirmed{
			AckCode:     binary.LittleEndian.Uint32(b[1:5]),
			RoundTripMs: binary.LittleEndian.Uint32(b[5:9]),
		}, nil

	case PushMsgWaiting:
		return MsgWaiting{}, nil

	case PushRawData:
		if err := ensureLen(b, 2, "RawData"); err != nil {
			return nil, err
		}
		v := RawData{SNR: int8(b[1])}
		if rest := b[2:]; len(rest) > 0 {
			v.Payload = bytes.Clone(rest)
		}
		return v, nil

	case PushLoginSuccess:
		var v LoginSuccess
		if err := ensureLen(b, 7, "LoginSuccess"); err != nil {
			return nil, err
		}
		copy(v.Prefix[:], b[1:7])
		v.IsAdmin = len(b) > 7 && b[7] == 1
		return v, nil

	case PushStatusResponse:
		var v StatusResponse
		if err := ensureLen(b, 7, "StatusResponse"); err != nil {
			return nil, err
		}
		copy(v.Prefix[:], b[1:7])
		if rest := b[7:]; len(rest) > 0 {
			v.Payload = bytes.Clone(rest)
		}
		return v, nil

	case PushLogRxData:
		if err := ensureLen(b, 3, "LogRxData"); err != nil {
			return nil, err
		}
		v := LogRxData{SNR: int8(b[1]), RSSI: int8(b[2])}
		if rest := b[3:]; len(rest) > 0 {
			v.Raw = bytes.Clone(rest)
		}
		return v, nil

	case PushTraceData:
		if err := ensureLen(b, 11, "TraceData"); err != nil {
			return nil, err
		}
		n := int(b[10])
		if err := ensureLen(b, 11+2*n, "TraceData hops"); err != nil {
			return nil, err
		}
		v := TraceData{
			Tag:   binary.LittleEndian.Uint32(b[1:5]),
			Auth:  binary.LittleEndian.Uint32(b[5:9]),
			Flags: b[9],
		}
		if n > 0 {
			v.Path = bytes.Clone(b[11 : 11+n])
			v.SNRs = make([]int8, n)
			for i, raw := range b[11+n : 11+2*n] {
				v.SNRs[i] = int8(raw)
			}
		}
		return v, nil

	case PushNewAdvert:
		a, err := parseAdvert(b[1:])
		if err != nil {
			return nil, err
		}
		return NewAdvert{Advert: a}, nil

	case PushTelemetry:
		var v Telemetry
		if err := ensureLen(b, 7, "Telemetry"); err != nil {
			return nil, err
		}
		copy(v.Prefix[:], b[1:7])
		if rest := b[7:]; len(rest) > 0 {
			v.Payload = bytes.Clone(rest)
		}
		return v, nil

	case PushBinaryResponse:
		var v BinaryResponse
		if err := ensureLen(b, 7, "BinaryResponse"); err != nil {
			return nil, err
		}
		copy(v.Prefix[:], b[1:7])
		if rest := b[7:]; len(rest) > 0 {
			v.Payload = bytes.Clone(rest)
		}
		return v, nil
	}
	v := RawPush{CodeByte: b[0]}
	if rest := b[1:]; len(rest) > 0 {
		v.Payload = bytes.Clone(rest)
	}
	return v, nil
}
