package frame

import (
	"errors"
	"fmt"
)

// Codec errors.
var (
	// ErrEmptyFrame is returned when a frame has no code byte at all.
	ErrEmptyFrame = errors.New("empty frame")
	// ErrTruncated is returned when a payload is shorter than the minimum
	// size of its frame type.
	ErrTruncated = errors.New("truncated frame")
	// ErrUnknownCommand is returned for command codes the codec does not know.
	ErrUnknownCommand = errors.New("unknown command code")
	// ErrUnknownResponse is returned for response codes the codec does not know.
	ErrUnknownResponse = errors.New("unknown response code")
	// ErrInvalidField is returned when a field is outside its legal domain.
	ErrInvalidField = errors.New("invalid field")
)

// Device error codes carried in the payload of an Err response.
const (
	ECodeUnsupportedCmd byte = 1
	ECodeNotFound       byte = 2
	ECodeTableFull      byte = 3
	ECodeBadState       byte = 4
	ECodeFileIOError    byte = 5
	ECodeIllegalArg     byte = 6
)

// DeviceError is a failure reported by the device itself. Two DeviceErrors
// match under errors.Is when their codes are equal, so callers can test
// against the exported sentinels regardless of which instance they hold.
type DeviceError struct {
	Code byte
}

func (e *DeviceError) Error() string {
	switch e.Code {
	case ECodeUnsupportedCmd:
		return "device error: unsupported command"
	case ECodeNotFound:
		return "device error: not found"
	case ECodeTableFull:
		return "device error: table full"
	case ECodeBadState:
		return "device error: bad state"
	case ECodeFileIOError:
		return "device error: file io error"
	case ECodeIllegalArg:
		return "device error: illegal argument"
	}
	return fmt.Sprintf("device error: code %d", e.Code)
}

func (e *DeviceError) Is(target error) bool {
	t, ok := target.(*DeviceError)
	return ok && t.Code == e.Code
}

// Sentinel instances for each known device error code.
var (
	ErrUnsupportedCommand = &DeviceError{Code: ECodeUnsupportedCmd}
	ErrNotFound           = &DeviceError{Code: ECodeNotFound}
	ErrTableFull          = &DeviceError{Code: ECodeTableFull}
	ErrBadState           = &DeviceError{Code: ECodeBadState}
	ErrFileIO             = &DeviceError{Code: ECodeFileIOError}
	ErrIllegalArgument    = &DeviceError{Code: ECodeIllegalArg}
)

// ErrDisabled reports a command the device operator has switched off. It is
// distinct from DeviceError because the wire carries it as its own response
// code rather than an error payload.
var ErrDisabled = errors.New("command disabled by device")
