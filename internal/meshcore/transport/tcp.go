package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/mclink/internal/common"
	"github.com/dmitrijs2005/mclink/internal/logging"
)

const (
	defaultDialTimeout  = 10 * time.Second
	defaultWriteTimeout = 10 * time.Second
)

// ErrSingleUse is returned by Connect on a link that was already used. A
// dropped link is not redialed; the owner builds a fresh one.
var ErrSingleUse = errors.New("transport is single use")

// TCP is a frame link over one TCP connection.
type TCP struct {
	addr         string
	logger       logging.Logger
	readMarker   byte
	writeMarker  byte
	dialTimeout  time.Duration
	writeTimeout time.Duration

	state  atomic.Int32
	states chan State
	frames chan []byte

	mu     sync.Mutex
	conn   net.Conn
	dialed bool
}

// NewTCP returns a client-side link that will dial addr on Connect.
func NewTCP(addr string, logger logging.Logger) *TCP {
	t := newTCP(logger)
	t.addr = addr
	t.readMarker = MarkerFromDevice
	t.writeMarker = MarkerToDevice
	return t
}

// NewAccepted wraps an already accepted connection as the device side of a
// link. The read loop starts immediately; Connect is a no-op.
func NewAccepted(conn net.Conn, logger logging.Logger) *TCP {
	t := newTCP(logger)
	t.addr = conn.RemoteAddr().String()
	t.readMarker = MarkerToDevice
	t.writeMarker = MarkerFromDevice
	t.conn = conn
	t.dialed = true
	t.state.Store(int32(StateConnected))
	go t.readLoop(conn)
	return t
}

func newTCP(logger logging.Logger) *TCP {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &TCP{
		logger:       logger,
		dialTimeout:  defaultDialTimeout,
		writeTimeout: defaultWriteTimeout,
		states:       make(chan State, 8),
		frames:       make(chan []byte, 32),
	}
}

func (t *TCP) Connect(ctx context.Context) error {
	if s := t.State(); s >= StateConnected {
		return nil
	}
	t.mu.Lock()
	if t.dialed {
		t.mu.Unlock()
		return ErrSingleUse
	}
	t.dialed = true
	t.mu.Unlock()

	t.setState(StateConnecting)
	d := net.Dialer{Timeout: t.dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		t.setState(StateDisconnected)
		return fmt.Errorf("dial %s: %w", t.addr, err)
	}

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()
	t.setState(StateConnected)
	t.logger.Info("link connected", "addr", t.addr)
	go t.readLoop(conn)
	return nil
}

func (t *TCP) Send(ctx context.Context, frame []byte) error {
	if len(frame) == 0 || len(frame) > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameSize, len(frame))
	}
	if s := t.State(); s < StateConnected {
		return fmt.Errorf("send while %s: %w", s, common.ErrNotReady)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return common.ErrDisconnected
	}
	deadline := time.Now().Add(t.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = t.conn.SetWriteDeadline(deadline)
	if err := WriteFrame(t.conn, t.writeMarker, frame); err != nil {
		_ = t.conn.Close()
		return fmt.Errorf("%w: %v", common.ErrDisconnected, err)
	}
	return nil
}

func (t *TCP) Frames() <-chan []byte {
	return t.frames
}

func (t *TCP) State() State {
	return State(t.state.Load())
}

func (t *TCP) StateChanges() <-chan State {
	return t.states
}

func (t *TCP) SetReady() {
	if t.state.CompareAndSwap(int32(StateConnected), int32(StateReady)) {
		t.publishState(StateReady)
	}
}

func (t *TCP) Close() error {
	t.mu.Lock()
	t.dialed = true
	conn := t.conn
	t.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	t.setState(StateDisconnected)
	return nil
}

// readLoop delivers inbound frames in order until the connection drops,
// then closes Frames as the disconnect signal.
func (t *TCP) readLoop(conn net.Conn) {
	defer func() {
		_ = conn.Close()
		t.setState(StateDisconnected)
		close(t.frames)
		t.logger.Info("link disconnected", "addr", t.addr)
	}()
	for {
		f, err := ReadFrame(conn, t.readMarker)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) && !errors.Is(err, io.EOF) {
				t.logger.Warn("link read failed", "addr", t.addr, "error", err)
			}
			return
		}
		t.frames <- f
	}
}

func (t *TCP) setState(s State) {
	t.state.Store(int32(s))
	t.publishState(s)
}

func (t *TCP) publishState(s State) {
	t.logger.Debug("link state", "state", s.String())
	select {
	case t.states <- s:
	default:
	}
}
