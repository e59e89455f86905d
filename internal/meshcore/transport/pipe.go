package transport

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/dmitrijs2005/mclink/internal/common"
)

// Pipe is one end of an in-process link. It carries the same semantics as
// TCP without a socket, for tests and for embedding a simulated device in
// the client process.
type Pipe struct {
	link   *pipeLink
	peer   *Pipe
	state  atomic.Int32
	states chan State
	frames chan []byte
}

type pipeLink struct {
	mu     sync.Mutex
	closed bool
}

// NewPair returns the two ends of a connected link. Closing either end
// drops both.
func NewPair() (*Pipe, *Pipe) {
	link := &pipeLink{}
	a := newPipe(link)
	b := newPipe(link)
	a.peer, b.peer = b, a
	return a, b
}

func newPipe(link *pipeLink) *Pipe {
	p := &Pipe{
		link:   link,
		states: make(chan State, 8),
		frames: make(chan []byte, 256),
	}
	p.state.Store(int32(StateConnected))
	return p
}

func (p *Pipe) Connect(ctx context.Context) error {
	if p.State() == StateDisconnected {
		return common.ErrDisconnected
	}
	return nil
}

func (p *Pipe) Send(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(frame) == 0 || len(frame) > MaxFrameSize {
		return ErrFrameSize
	}
	p.link.mu.Lock()
	defer p.link.mu.Unlock()
	if p.link.closed {
		return common.ErrDisconnected
	}
	p.peer.frames <- frame
	return nil
}

func (p *Pipe) Frames() <-chan []byte {
	return p.frames
}

func (p *Pipe) State() State {
	return State(p.state.Load())
}

func (p *Pipe) StateChanges() <-chan State {
	return p.states
}

func (p *Pipe) SetReady() {
	if p.state.CompareAndSwap(int32(StateConnected), int32(StateReady)) {
		select {
		case p.states <- StateReady:
		default:
		}
	}
}

func (p *Pipe) Close() error {
	p.link.mu.Lock()
	defer p.link.mu.Unlock()
	if p.link.closed {
		return nil
	}
	p.link.closed = true
	for _, end := range []*Pipe{p, p.peer} {
		end.state.Store(int32(StateDisconnected))
		select {
		case end.states <- StateDisconnected:
		default:
		}
		close(end.frames)
	}
	return nil
}
