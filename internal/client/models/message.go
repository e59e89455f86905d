package models

import (
	"time"

	"github.com/google/uuid"
)

// MessageStatus tracks a message through its delivery lifecycle.
type MessageStatus string

const (
	// StatusPending: persisted locally, not yet handed to the device.
	StatusPending MessageStatus = "pending"
	// StatusSent: the device accepted the send; an ack may still arrive.
	StatusSent MessageStatus = "sent"
	// StatusDelivered: the recipient's ack came back.
	StatusDelivered MessageStatus = "delivered"
	// StatusFailed: every attempt ran out without an ack.
	StatusFailed MessageStatus = "failed"
	// StatusReceived marks inbound messages pulled from the device mailbox.
	StatusReceived MessageStatus = "received"
)

// Direction tells outgoing from incoming messages.
type Direction int

const (
	DirectionOut Direction = 0
	DirectionIn  Direction = 1
)

// DirectMessage marks the ChannelIdx of a direct (non-channel) message.
const DirectMessage = -1

// Message is one stored chat message, direct or channel.
type Message struct {
	ID         string        `json:"id"`
	ContactKey []byte        `json:"contact_key,omitempty"`
	Direction  Direction     `json:"direction"`
	ChannelIdx int           `json:"channel_idx"`
	TxtType    byte          `json:"txt_type"`
	Text       string        `json:"text"`
	SenderTS   uint32        `json:"sender_ts"`
	Status     MessageStatus `json:"status"`
	AckCode    uint32        `json:"ack_code,omitempty"`
	RouteType  byte          `json:"route_type"`
	Attempts   int           `json:"attempts"`
	RTTMs      uint32        `json:"rtt_ms,omitempty"`
	CreatedAt  int64         `json:"created_at"`
}

// NewOutgoing builds a pending direct message addressed to contactKey.
func NewOutgoing(contactKey []byte, txtType byte, text string, now time.Time) *Message {
	key := make([]byte, len(contactKey))
	copy(key, contactKey)
	return &Message{
		ID:         uuid.NewString(),
		ContactKey: key,
		Direction:  DirectionOut,
		ChannelIdx: DirectMessage,
		TxtType:    txtType,
		Text:       text,
		SenderTS:   uint32(now.Unix()),
		Status:     StatusPending,
		CreatedAt:  now.Unix(),
	}
}

// NewOutgoingChannel builds a channel message for slot idx. Channel sends
// carry no ack, so the message starts out sent rather than pending.
func NewOutgoingChannel(idx int, txtType byte, text string, now time.Time) *Message {
	return &Message{
		ID:         uuid.NewString(),
		Direction:  DirectionOut,
		ChannelIdx: idx,
		TxtType:    txtType,
		Text:       text,
		SenderTS:   uint32(now.Unix()),
		Status:     StatusPending,
		CreatedAt:  now.Unix(),
	}
}

// NewIncoming builds a received message. contactKey may be empty when the
// sender's prefix matched no stored contact.
func NewIncoming(contactKey []byte, channelIdx int, txtType byte, text string, senderTS uint32, now time.Time) *Message {
	key := make([]byte, len(contactKey))
	copy(key, contactKey)
	return &Message{
		ID:         uuid.NewString(),
		ContactKey: key,
		Direction:  DirectionIn,
		ChannelIdx: channelIdx,
		TxtType:    txtType,
		Text:       text,
		SenderTS:   senderTS,
		Status:     StatusReceived,
		CreatedAt:  now.Unix(),
	}
}

// IsChannel reports whether the message travelled over a shared channel.
func (m *Message) IsChannel() bool {
	return m.ChannelIdx != DirectMessage
}
