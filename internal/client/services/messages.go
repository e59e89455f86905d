package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/mclink/internal/client/models"
	"github.com/dmitrijs2005/mclink/internal/client/repositories/contacts"
	"github.com/dmitrijs2005/mclink/internal/client/repositories/messages"
	"github.com/dmitrijs2005/mclink/internal/logging"
	"github.com/dmitrijs2005/mclink/internal/meshcore/frame"
	"github.com/dmitrijs2005/mclink/internal/meshcore/session"
)

// deviceSender is the slice of the device link the messaging flow needs.
type deviceSender interface {
	SendText(ctx context.Context, msg session.OutboundText) (session.SendReceipt, error)
	SendChannelText(ctx context.Context, idx, txtType byte, text string) error
	DrainMessages(ctx context.Context) ([]session.InboundMessage, error)
}

// MessageService runs the messaging flow: outgoing messages are persisted
// before they are handed to the device, then move through sent, delivered
// or failed as tracker events arrive; inbound mailbox messages are drained
// into the store with sender resolution by key prefix.
type MessageService struct {
	sender   deviceSender
	messages messages.Repository
	contacts contacts.Repository
	bus      *session.Bus
	logger   logging.Logger
	now      func() time.Time

	// inflight maps tracker message ids to store row ids.
	mu       sync.Mutex
	inflight map[string]string
}

func NewMessageService(sender deviceSender, messageRepo messages.Repository, contactRepo contacts.Repository, bus *session.Bus, logger logging.Logger) *MessageService {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &MessageService{
		sender:   sender,
		messages: messageRepo,
		contacts: contactRepo,
		bus:      bus,
		logger:   logger,
		now:      time.Now,
		inflight: make(map[string]string),
	}
}

// Send persists a direct message and hands it to the device. The returned
// message reflects the post-send state; delivery confirmation arrives
// later through Watch.
func (s *MessageService) Send(ctx context.Context, contactKey []byte, text string) (*models.Message, error) {
	m := models.NewOutgoing(contactKey, frame.TxtTypePlain, text, s.now())
	if err := s.messages.Create(ctx, m); err != nil {
		return nil, err
	}

	var key [frame.PublicKeySize]byte
	copy(key[:], contactKey)
	receipt, err := s.sender.SendText(ctx, session.OutboundText{
		ContactKey:      key,
		TxtType:         frame.TxtTypePlain,
		Text:            text,
		SenderTimestamp: m.SenderTS,
	})
	if err != nil {
		if markErr := s.messages.MarkFailed(ctx, m.ID, 1); markErr != nil {
			s.logger.Warn("failed to mark message failed", "id", m.ID, "error", markErr)
		}
		return nil, fmt.Errorf("send message: %w", err)
	}

	if receipt.Tracked {
		s.mu.Lock()
		s.inflight[receipt.MsgID] = m.ID
		s.mu.Unlock()
	}
	if err := s.messages.MarkSent(ctx, m.ID, receipt.AckCode, receipt.RouteType); err != nil {
		return nil, err
	}
	m.Status = models.StatusSent
	m.AckCode = receipt.AckCode
	m.RouteType = receipt.RouteType
	m.Attempts = 1
	return m, nil
}

// SendChannel persists a channel message and hands it to the device.
// Channel traffic carries no ack, so sent is its terminal success state.
func (s *MessageService) SendChannel(ctx context.Context, idx byte, text string) (*models.Message, error) {
	m := models.NewOutgoingChannel(int(idx), frame.TxtTypePlain, text, s.now())
	if err := s.messages.Create(ctx, m); err != nil {
		return nil, err
	}

	if err := s.sender.SendChannelText(ctx, idx, frame.TxtTypePlain, text); err != nil {
		if markErr := s.messages.MarkFailed(ctx, m.ID, 1); markErr != nil {
			s.logger.Warn("failed to mark message failed", "id", m.ID, "error", markErr)
		}
		return nil, fmt.Errorf("send channel message: %w", err)
	}

	if err := s.messages.MarkSent(ctx, m.ID, 0, frame.RouteTypeFlood); err != nil {
		return nil, err
	}
	m.Status = models.StatusSent
	m.RouteType = frame.RouteTypeFlood
	m.Attempts = 1
	return m, nil
}

// Watch applies bus events to stored messages until ctx ends: delivery
// confirmations and failures update their rows, mailbox-waiting pushes
// trigger a drain.
func (s *MessageService) Watch(ctx context.Context) {
	events, unsub := s.bus.Subscribe(32)
	defer unsub()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.handleEvent(ctx, ev)
		}
	}
}

func (s *MessageService) handleEvent(ctx context.Context, ev session.Event) {
	switch e := ev.(type) {
	case session.DeliveredEvent:
		id := s.takeInflight(e.MsgID)
		err := s.messages.MarkDelivered(ctx, id, uint32(e.RoundTrip.Milliseconds()), e.Attempts)
		if err != nil {
			s.logger.Warn("failed to mark message delivered", "id", id, "error", err)
		}
	case session.FailedEvent:
		id := s.takeInflight(e.MsgID)
		if err := s.messages.MarkFailed(ctx, id, e.Attempts); err != nil {
			s.logger.Warn("failed to mark message failed", "id", id, "error", err)
		}
	case session.PushEvent:
		if _, ok := e.Push.(frame.MsgWaiting); ok {
			if _, err := s.Drain(ctx); err != nil {
				s.logger.Warn("mailbox drain failed", "error", err)
			}
		}
	}
}

// takeInflight resolves a tracker id to its store row id and forgets the
// mapping. Unknown ids pass through unchanged.
func (s *MessageService) takeInflight(trackerID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.inflight[trackerID]; ok {
		delete(s.inflight, trackerID)
		return id
	}
	return trackerID
}

// Drain pulls every queued message from the device mailbox into the
// store. Messages that arrived before an error are kept.
func (s *MessageService) Drain(ctx context.Context) ([]models.Message, error) {
	inbound, err := s.sender.DrainMessages(ctx)

	var stored []models.Message
	for _, in := range inbound {
		m := s.inboundModel(ctx, in)
		if cErr := s.messages.Create(ctx, m); cErr != nil {
			return stored, cErr
		}
		stored = append(stored, *m)
	}
	if err != nil {
		return stored, fmt.Errorf("mailbox drain: %w", err)
	}
	if len(stored) > 0 {
		s.logger.Info("mailbox drained", "messages", len(stored))
	}
	return stored, nil
}

// inboundModel converts a mailbox message, resolving the sender prefix to
// a stored contact when one matches.
func (s *MessageService) inboundModel(ctx context.Context, in session.InboundMessage) *models.Message {
	if in.FromChannel {
		return models.NewIncoming(nil, int(in.ChannelIdx), in.TxtType, in.Text, in.SenderTimestamp, s.now())
	}
	var key []byte
	if c, err := s.contacts.GetByPrefix(ctx, in.Prefix[:]); err == nil {
		key = c.PublicKey
	}
	return models.NewIncoming(key, models.DirectMessage, in.TxtType, in.Text, in.SenderTimestamp, s.now())
}

// History returns up to limit newest messages with one contact, oldest
// first.
func (s *MessageService) History(ctx context.Context, contactKey []byte, limit int) ([]models.Message, error) {
	return s.messages.ListByContact(ctx, contactKey, limit)
}

// Recent returns up to limit newest messages of any kind, oldest first.
func (s *MessageService) Recent(ctx context.Context, limit int) ([]models.Message, error) {
	return s.messages.ListRecent(ctx, limit)
}
