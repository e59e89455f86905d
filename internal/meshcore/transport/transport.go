// Package transport moves whole frames between the client and the device
// over a byte stream. It knows nothing about frame contents; framing is a
// marker byte plus a little-endian length prefix.
package transport

import (
	"context"
)

// State is the lifecycle of a link.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReady
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReady:
		return "ready"
	}
	return "unknown"
}

// Transport is one frame-oriented link to a device.
//
// Frames() yields one inbound frame per element and is closed when the link
// drops, which is also the disconnect signal for consumers. Send writes one
// frame. SetReady promotes a connected link after the session handshake;
// command traffic is only valid from then on.
type Transport interface {
	Connect(ctx context.Context) error
	Send(ctx context.Context, frame []byte) error
	Frames() <-chan []byte
	State() State
	StateChanges() <-chan State
	SetReady()
	Close() error
}
