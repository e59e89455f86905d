package session

import (
	"sync"
	"time"

	"github.com/dmitrijs2005/mclink/internal/logging"
	"github.com/dmitrijs2005/mclink/internal/meshcore/frame"
	"github.com/dmitrijs2005/mclink/internal/meshcore/transport"
)

// Event is anything the session reports outside the command path: link
// state changes, pushes and delivery outcomes.
type Event interface {
	isEvent()
}

// LinkStateEvent reports a transport state transition.
type LinkStateEvent struct {
	State transport.State
}

// PushEvent carries one decoded push, in arrival order.
type PushEvent struct {
	Push frame.Push
}

// DeliveredEvent reports end-to-end delivery of a tracked message.
type DeliveredEvent struct {
	MsgID     string
	AckCode   uint32
	RoundTrip time.Duration
	Attempts  int
	Repeats   int
}

// FailedEvent reports a tracked message that exhausted its retries.
type FailedEvent struct {
	MsgID    string
	AckCode  uint32
	Attempts int
}

func (LinkStateEvent) isEvent() {}
func (PushEvent) isEvent()      {}
func (DeliveredEvent) isEvent() {}
func (FailedEvent) isEvent()    {}

// Bus fans events out to subscribers. Publish never blocks: a subscriber
// that stops draining loses events rather than stalling the dispatch loop.
type Bus struct {
	logger logging.Logger

	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

func NewBus(logger logging.Logger) *Bus {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Bus{logger: logger, subs: make(map[int]chan Event)}
}

// Subscribe registers a buffered subscriber channel. The returned function
// unsubscribes and closes it.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
}

func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.logger.Warn("event dropped, subscriber too slow", "subscriber", id)
		}
	}
}

// Close drops all subscribers. Publish after Close is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
