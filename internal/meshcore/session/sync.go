package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/mclink/internal/common"
	"github.com/dmitrijs2005/mclink/internal/meshcore/frame"
)

// ContactSync is a lazy pull over one contact sync stream. It holds the
// session's command slot until the end sentinel or Close, so other commands
// queue behind it; it cannot be restarted, start a new sync instead.
type ContactSync struct {
	s         *Session
	c         *call
	since     uint32
	total     uint32
	watermark uint32
	count     int
	release   func()
	done      bool
	err       error
}

// SyncContacts asks the device for every contact modified strictly after
// since (zero for the whole table) and returns an iterator over the stream.
func (s *Session) SyncContacts(ctx context.Context, since uint32) (*ContactSync, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("sync contacts: %w", err)
	}
	c := &call{frames: make(chan []byte, 256)}
	s.active.Store(c)

	fail := func(err error) (*ContactSync, error) {
		s.active.Store(nil)
		release()
		return nil, fmt.Errorf("sync contacts: %w", err)
	}

	raw, err := frame.EncodeCommand(frame.GetContacts{Since: since})
	if err != nil {
		return fail(err)
	}
	if err := s.tr.Send(ctx, raw); err != nil {
		return fail(err)
	}

	first, err := s.nextStreamFrame(ctx, c)
	if err != nil {
		if !errors.Is(err, common.ErrDisconnected) {
			s.streamOrphan.Store(true)
		}
		return fail(err)
	}
	resp, err := frame.DecodeResponse(first)
	if err != nil {
		return fail(err)
	}
	start, ok := resp.(frame.ContactsStart)
	if !ok {
		return fail(fmt.Errorf("%w: %T", ErrUnexpectedResponse, resp))
	}

	s.logger.Debug("contact sync started", "since", since, "device_total", start.Total)
	return &ContactSync{
		s:       s,
		c:       c,
		since:   since,
		total:   start.Total,
		release: release,
	}, nil
}

// Next returns the next record. The second result is false when the stream
// ended cleanly; the watermark is valid from then on.
func (cs *ContactSync) Next(ctx context.Context) (frame.ContactRecord, bool, error) {
	var zero frame.ContactRecord
	if cs.done {
		return zero, false, cs.err
	}
	raw, err := cs.s.nextStreamFrame(ctx, cs.c)
	if err != nil {
		cs.abandon(err, !errors.Is(err, common.ErrDisconnected))
		return zero, false, cs.err
	}
	resp, err := frame.DecodeResponse(raw)
	if err != nil {
		cs.abandon(err, true)
		return zero, false, cs.err
	}
	switch v := resp.(type) {
	case frame.Contact:
		cs.count++
		return v.Record, true, nil
	case frame.EndOfContacts:
		cs.watermark = v.Watermark
		cs.finish()
		return zero, false, nil
	default:
		cs.abandon(fmt.Errorf("%w: %T", ErrUnexpectedResponse, resp), true)
		return zero, false, cs.err
	}
}

// Total is the device's table size, counted before the since filter. With a
// filtered sync it can exceed the number of streamed records.
func (cs *ContactSync) Total() uint32 { return cs.total }

// Watermark is the highest lastModified seen by the device in this stream,
// valid once Next reported the end. Feeding it back as since continues
// where this sync stopped.
func (cs *ContactSync) Watermark() uint32 { return cs.watermark }

// Count is the number of records streamed so far.
func (cs *ContactSync) Count() int { return cs.count }

// Close abandons the stream. Frames the device still sends for it are
// swallowed until its end sentinel passes.
func (cs *ContactSync) Close() error {
	cs.abandon(nil, true)
	return nil
}

func (cs *ContactSync) finish() {
	if cs.done {
		return
	}
	cs.done = true
	cs.s.active.Store(nil)
	cs.release()
	cs.s.logger.Debug("contact sync finished", "records", cs.count, "watermark", cs.watermark)
}

// abandon ends the stream early. Frames already buffered are drained here;
// when the sentinel is not among them the dispatch loop is told to swallow
// the rest of the tail as it arrives.
func (cs *ContactSync) abandon(err error, deviceStillStreaming bool) {
	if cs.done {
		return
	}
	cs.done = true
	cs.err = err
	if deviceStillStreaming && !cs.drainBuffered() {
		cs.s.streamOrphan.Store(true)
	}
	cs.s.active.Store(nil)
	cs.release()
}

// drainBuffered empties the call buffer and reports whether the end
// sentinel was already in it.
func (cs *ContactSync) drainBuffered() bool {
	for {
		select {
		case raw := <-cs.c.frames:
			if len(raw) > 0 && raw[0] == frame.RespEndOfContacts {
				return true
			}
		default:
			return false
		}
	}
}

// InboundMessage unifies the two mailbox message forms.
type InboundMessage struct {
	FromChannel     bool
	ChannelIdx      int8
	Prefix          [frame.PrefixSize]byte
	PathLen         byte
	TxtType         byte
	SenderTimestamp uint32
	Text            string
}

// SyncNextMessage pulls one message from the device mailbox, nil when the
// mailbox is empty.
func (s *Session) SyncNextMessage(ctx context.Context) (*InboundMessage, error) {
	resp, err := s.roundTrip(ctx, frame.SyncNextMessage{})
	if err != nil {
		return nil, fmt.Errorf("sync next message: %w", err)
	}
	switch v := resp.(type) {
	case frame.ContactMsg:
		return &InboundMessage{
			Prefix:          v.Prefix,
			PathLen:         v.PathLen,
			TxtType:         v.TxtType,
			SenderTimestamp: v.SenderTimestamp,
			Text:            v.Text,
		}, nil
	case frame.ChannelMsg:
		return &InboundMessage{
			FromChannel:     true,
			ChannelIdx:      v.ChannelIdx,
			PathLen:         v.PathLen,
			TxtType:         v.TxtType,
			SenderTimestamp: v.SenderTimestamp,
			Text:            v.Text,
		}, nil
	case frame.NoMoreMessages:
		return nil, nil
	}
	return nil, fmt.Errorf("sync next message: %w: %T", ErrUnexpectedResponse, resp)
}

// DrainMessages pulls until the mailbox reports empty.
func (s *Session) DrainMessages(ctx context.Context) ([]InboundMessage, error) {
	var out []InboundMessage
	for {
		m, err := s.SyncNextMessage(ctx)
		if err != nil {
			return out, err
		}
		if m == nil {
			return out, nil
		}
		out = append(out, *m)
	}
}
