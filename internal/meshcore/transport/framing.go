package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Stream framing markers. Each direction carries its own marker so a peer
// reading its own echo fails fast instead of desynchronizing.
const (
	MarkerToDevice   byte = 0x3C
	MarkerFromDevice byte = 0x3E
)

// MaxFrameSize bounds a single frame on the wire.
const MaxFrameSize = 4096

const headerSize = 3

var (
	// ErrBadMarker is returned when a stream delivers a header with the
	// wrong direction marker. The stream is unusable after this.
	ErrBadMarker = errors.New("stream framing: bad marker byte")
	// ErrFrameSize is returned for empty or oversized frames.
	ErrFrameSize = errors.New("stream framing: frame size out of range")
)

// WriteFrame writes marker, u16 little-endian length and the frame in a
// single Write call.
func WriteFrame(w io.Writer, marker byte, frame []byte) error {
	if len(frame) == 0 || len(frame) > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameSize, len(frame))
	}
	buf := make([]byte, 0, headerSize+len(frame))
	buf = append(buf, marker)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(frame)))
	buf = append(buf, frame...)
	_, err := w.Write(buf)
	return err
}

// ReadFrame reads one frame written by WriteFrame with the given marker.
func ReadFrame(r io.Reader, marker byte) ([]byte, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	if hdr[0] != marker {
		return nil, fmt.Errorf("%w: got 0x%02X, want 0x%02X", ErrBadMarker, hdr[0], marker)
	}
	n := int(binary.LittleEndian.Uint16(hdr[1:]))
	if n == 0 || n > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameSize, n)
	}
	frame := make([]byte, n)
	if _, err := io.ReadFull(r, frame); err != nil {
		return nil, err
	}
	return frame, nil
}
