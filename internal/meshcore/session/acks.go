package session

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/mclink/internal/logging"
	"github.com/dmitrijs2005/mclink/internal/meshcore/frame"
)

// AckState is the delivery lifecycle of one tracked message.
type AckState int

const (
	// AckPending: waiting for a (re)send to go out.
	AckPending AckState = iota
	// AckSent: on the air, waiting for confirmation until the deadline.
	AckSent
	// AckDelivered: confirmed end to end.
	AckDelivered
	// AckFailed: all attempts exhausted.
	AckFailed
)

func (s AckState) String() string {
	switch s {
	case AckPending:
		return "pending"
	case AckSent:
		return "sent"
	case AckDelivered:
		return "delivered"
	case AckFailed:
		return "failed"
	}
	return "unknown"
}

// OutboundText is the material needed to send, and resend, one direct
// message.
type OutboundText struct {
	ContactKey      [frame.PublicKeySize]byte
	TxtType         byte
	Text            string
	SenderTimestamp uint32
}

func (o OutboundText) prefix() [frame.PrefixSize]byte {
	var p [frame.PrefixSize]byte
	copy(p[:], o.ContactKey[:frame.PrefixSize])
	return p
}

// PendingAck is the tracker's view of one message.
type PendingAck struct {
	MsgID     string
	AckCode   uint32
	Msg       OutboundText
	State     AckState
	Attempts  int
	RouteType byte
	Repeats   int
	Deadline  time.Time
	NextTry   time.Time
	CreatedAt time.Time
	SentAt    time.Time
}

// deliveredKeep bounds how many delivered entries stay around to absorb
// duplicate confirmations.
const deliveredKeep = 128

// commandSender is the slice of the session the tracker drives retries
// through.
type commandSender interface {
	resetPath(ctx context.Context, key [frame.PublicKeySize]byte) error
	sendTextAttempt(ctx context.Context, msg OutboundText, attempt byte) (frame.Sent, error)
}

// Tracker follows every acked send from the Sent response to its
// confirmation or final failure. It outlives any single link: a session
// drives its deadlines while connected, and a later session picks the same
// entries back up.
type Tracker struct {
	cfg    RetryConfig
	bus    *Bus
	logger logging.Logger
	clock  func() time.Time

	mu        sync.Mutex
	byCode    map[uint32]*PendingAck
	delivered []uint32
}

func NewTracker(cfg RetryConfig, bus *Bus, logger logging.Logger) *Tracker {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	full := Config{Retry: cfg}.withDefaults()
	return &Tracker{
		cfg:    full.Retry,
		bus:    bus,
		logger: logger,
		clock:  time.Now,
		byCode: make(map[uint32]*PendingAck),
	}
}

// Track registers a send that the device assigned an ack code to. Sends
// with ack code zero (channel traffic) are not tracked.
func (t *Tracker) Track(msgID string, msg OutboundText, sent frame.Sent) {
	if sent.AckCode == 0 {
		return
	}
	now := t.clock()
	a := &PendingAck{
		MsgID:     msgID,
		AckCode:   sent.AckCode,
		Msg:       msg,
		State:     AckSent,
		Attempts:  1,
		RouteType: sent.RouteType,
		Deadline:  now.Add(t.scaleTimeout(sent.TimeoutMs)),
		CreatedAt: now,
		SentAt:    now,
	}
	t.mu.Lock()
	t.byCode[a.AckCode] = a
	t.mu.Unlock()
	t.logger.Debug("tracking ack", "msg_id", msgID, "ack_code", sent.AckCode,
		"deadline_ms", sent.TimeoutMs)
}

// Confirm resolves an ack code reported by a SendConfirmed push. The first
// confirmation delivers the message and publishes the event; repeats of the
// same code only bump a counter. Unknown codes report false.
func (t *Tracker) Confirm(code uint32, roundTripMs uint32) bool {
	t.mu.Lock()
	a, ok := t.byCode[code]
	if !ok {
		t.mu.Unlock()
		return false
	}
	if a.State == AckDelivered {
		a.Repeats++
		repeats := a.Repeats
		t.mu.Unlock()
		t.logger.Debug("duplicate confirmation", "ack_code", code, "repeats", repeats)
		return true
	}
	a.State = AckDelivered
	ev := DeliveredEvent{
		MsgID:     a.MsgID,
		AckCode:   a.AckCode,
		RoundTrip: time.Duration(roundTripMs) * time.Millisecond,
		Attempts:  a.Attempts,
		Repeats:   a.Repeats,
	}
	t.delivered = append(t.delivered, code)
	for len(t.delivered) > deliveredKeep {
		delete(t.byCode, t.delivered[0])
		t.delivered = t.delivered[1:]
	}
	t.mu.Unlock()

	t.logger.Info("message delivered", "msg_id", ev.MsgID, "ack_code", code,
		"round_trip", ev.RoundTrip, "attempts", ev.Attempts)
	if t.bus != nil {
		t.bus.Publish(ev)
	}
	return true
}

// Pending snapshots entries that are still in flight.
func (t *Tracker) Pending() []PendingAck {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]PendingAck, 0, len(t.byCode))
	for _, a := range t.byCode {
		if a.State == AckSent || a.State == AckPending {
			out = append(out, *a)
		}
	}
	return out
}

// processDue advances every entry whose deadline or retry gate has passed.
// The session calls it from its scan loop while the link is ready; while
// disconnected nothing runs, so deadlines simply fire on the next scan.
func (t *Tracker) processDue(ctx context.Context, sender commandSender) {
	now := t.clock()
	var fails []FailedEvent
	var retries []*PendingAck

	t.mu.Lock()
	for code, a := range t.byCode {
		switch a.State {
		case AckSent:
			if now.Before(a.Deadline) {
				continue
			}
			if a.Attempts >= t.cfg.MaxAttempts {
				a.State = AckFailed
				delete(t.byCode, code)
				fails = append(fails, FailedEvent{MsgID: a.MsgID, AckCode: a.AckCode, Attempts: a.Attempts})
				continue
			}
			a.State = AckPending
			a.NextTry = now.Add(time.Duration(a.Attempts) * t.cfg.BackoffStep)
		case AckPending:
			if !now.Before(a.NextTry) {
				retries = append(retries, a)
			}
		}
	}
	t.mu.Unlock()

	for _, ev := range fails {
		t.logger.Warn("message failed", "msg_id", ev.MsgID, "ack_code", ev.AckCode, "attempts", ev.Attempts)
		if t.bus != nil {
			t.bus.Publish(ev)
		}
	}
	for _, a := range retries {
		t.retry(ctx, sender, a)
	}
}

// retry performs one more send. Attempts beyond the direct budget reset the
// stored path first so the message floods.
func (t *Tracker) retry(ctx context.Context, sender commandSender, a *PendingAck) {
	attempt := a.Attempts + 1
	if attempt > t.cfg.DirectAttempts {
		if err := sender.resetPath(ctx, a.Msg.ContactKey); err != nil {
			t.logger.Warn("path reset before flood retry failed", "msg_id", a.MsgID, "error", err)
		}
	}

	sent, err := sender.sendTextAttempt(ctx, a.Msg, byte(attempt-1))
	now := t.clock()
	if err != nil {
		t.mu.Lock()
		a.NextTry = now.Add(t.cfg.BackoffStep)
		t.mu.Unlock()
		t.logger.Warn("retry send failed", "msg_id", a.MsgID, "attempt", attempt, "error", err)
		return
	}

	t.mu.Lock()
	delete(t.byCode, a.AckCode)
	if sent.AckCode == 0 {
		a.State = AckFailed
		attempts := attempt
		t.mu.Unlock()
		t.logger.Warn("retry send got no ack code", "msg_id", a.MsgID)
		if t.bus != nil {
			t.bus.Publish(FailedEvent{MsgID: a.MsgID, AckCode: 0, Attempts: attempts})
		}
		return
	}
	a.AckCode = sent.AckCode
	a.Attempts = attempt
	a.RouteType = sent.RouteType
	a.State = AckSent
	a.Deadline = now.Add(t.scaleTimeout(sent.TimeoutMs))
	a.SentAt = now
	t.byCode[a.AckCode] = a
	t.mu.Unlock()

	t.logger.Info("message resent", "msg_id", a.MsgID, "attempt", attempt,
		"ack_code", sent.AckCode, "route_type", sent.RouteType)
}

func (t *Tracker) scaleTimeout(ms uint32) time.Duration {
	d := time.Duration(float64(ms)*t.cfg.TimeoutFactor) * time.Millisecond
	if d <= 0 {
		d = time.Second
	}
	return d
}
