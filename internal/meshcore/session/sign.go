package session

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/mclink/internal/meshcore/frame"
)

// signChunkSize keeps each SignData frame well under the transport cap.
const signChunkSize = 1024

// SignBlob streams data into a device signing session and returns the
// signature made with the device identity key.
func (s *Session) SignBlob(ctx context.Context, data []byte) ([frame.SignatureSize]byte, error) {
	var zero [frame.SignatureSize]byte

	resp, err := s.roundTrip(ctx, frame.SignStart{ExpectedLen: uint32(len(data))})
	if err != nil {
		return zero, fmt.Errorf("sign start: %w", err)
	}
	started, ok := resp.(frame.SignStarted)
	if !ok {
		return zero, fmt.Errorf("sign start: %w: %T", ErrUnexpectedResponse, resp)
	}

	for off := 0; off < len(data); off += signChunkSize {
		end := off + signChunkSize
		if end > len(data) {
			end = len(data)
		}
		resp, err := s.roundTrip(ctx, frame.SignData{SessionID: started.SessionID, Chunk: data[off:end]})
		if err := s.expectOk("sign data", resp, err); err != nil {
			return zero, err
		}
	}

	resp, err = s.roundTrip(ctx, frame.SignFinish{SessionID: started.SessionID})
	if err != nil {
		return zero, fmt.Errorf("sign finish: %w", err)
	}
	sig, ok := resp.(frame.Signature)
	if !ok {
		return zero, fmt.Errorf("sign finish: %w: %T", ErrUnexpectedResponse, resp)
	}
	return sig.Sig, nil
}
