package gateway

import (
	"context"
	"encoding/hex"

	"github.com/dmitrijs2005/mclink/internal/meshcore/frame"
	"github.com/dmitrijs2005/mclink/internal/meshcore/session"
)

// OutgoingMessage is the wire envelope for every gateway broadcast.
type OutgoingMessage struct {
	Type     string `json:"type"`
	Payload  any    `json:"payload,omitempty"`
	ErrorMsg string `json:"error,omitempty"`
}

// LinkStatePayload reports the companion link going up or down.
type LinkStatePayload struct {
	State string `json:"state"`
}

// MessageStatusPayload reports the delivery outcome of a tracked send.
// MessageID is the id from the send receipt.
type MessageStatusPayload struct {
	MessageID   string `json:"messageId"`
	Status      string `json:"status"`
	RoundTripMs uint32 `json:"roundTripMs,omitempty"`
	Attempts    int    `json:"attempts,omitempty"`
}

// NodePayload names a mesh node by its public key.
type NodePayload struct {
	PublicKey string `json:"publicKey"`
}

// FromSessionEvent translates a bus event into its broadcast form. Events
// with no UI meaning report false.
func FromSessionEvent(ev session.Event) (OutgoingMessage, bool) {
	switch e := ev.(type) {
	case session.LinkStateEvent:
		return OutgoingMessage{Type: "link_state", Payload: LinkStatePayload{State: e.State.String()}}, true

	case session.DeliveredEvent:
		return OutgoingMessage{Type: "message_status", Payload: MessageStatusPayload{
			MessageID:   e.MsgID,
			Status:      "delivered",
			RoundTripMs: uint32(e.RoundTrip.Milliseconds()),
			Attempts:    e.Attempts,
		}}, true

	case session.FailedEvent:
		return OutgoingMessage{Type: "message_status", Payload: MessageStatusPayload{
			MessageID: e.MsgID,
			Status:    "failed",
			Attempts:  e.Attempts,
		}}, true

	case session.PushEvent:
		return fromPush(e.Push)
	}
	return OutgoingMessage{}, false
}

func fromPush(p frame.Push) (OutgoingMessage, bool) {
	switch v := p.(type) {
	case frame.MsgWaiting:
		return OutgoingMessage{Type: "msg_waiting"}, true
	case frame.Advert:
		return OutgoingMessage{Type: "advert", Payload: NodePayload{PublicKey: hex.EncodeToString(v.PublicKey[:])}}, true
	case frame.PathUpdated:
		return OutgoingMessage{Type: "path_updated", Payload: NodePayload{PublicKey: hex.EncodeToString(v.PublicKey[:])}}, true
	}
	return OutgoingMessage{}, false
}

// Pump forwards bus events onto the hub until ctx ends or the bus closes.
func Pump(ctx context.Context, bus *session.Bus, hub *Hub) {
	events, unsub := bus.Subscribe(32)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if msg, ok := FromSessionEvent(ev); ok {
				hub.Broadcast(msg)
			}
		}
	}
}
