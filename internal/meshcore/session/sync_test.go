package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/mclink/internal/meshcore/frame"
)

func syncRecord(n byte, lastMod uint32) frame.ContactRecord {
	var key [frame.PublicKeySize]byte
	key[0] = n
	return frame.ContactRecord{
		PublicKey:    key,
		Type:         frame.ContactTypeChat,
		OutPathLen:   -1,
		Name:         fmt.Sprintf("node-%d", n),
		LastAdvert:   1756000000,
		LastModified: lastMod,
	}
}

func TestSyncContacts_FullFlow(t *testing.T) {
	rec1 := syncRecord(1, 150)
	rec2 := syncRecord(2, 200)
	var mu sync.Mutex
	var gotSince uint32
	s := startTestSession(t, Config{}, func(raw []byte) [][]byte {
		if raw[0] != frame.CmdGetContacts {
			return nil
		}
		cmd, err := frame.DecodeCommand(raw)
		if err == nil {
			mu.Lock()
			gotSince = cmd.(frame.GetContacts).Since
			mu.Unlock()
		}
		return [][]byte{
			mustResp(t, frame.ContactsStart{Total: 5}),
			mustResp(t, frame.Contact{Record: rec1}),
			mustResp(t, frame.Contact{Record: rec2}),
			mustResp(t, frame.EndOfContacts{Watermark: 200}),
		}
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	cs, err := s.SyncContacts(ctx, 123)
	require.NoError(t, err)
	require.Equal(t, uint32(5), cs.Total())

	got1, more, err := cs.Next(ctx)
	require.NoError(t, err)
	require.True(t, more)
	require.Equal(t, rec1, got1)

	got2, more, err := cs.Next(ctx)
	require.NoError(t, err)
	require.True(t, more)
	require.Equal(t, rec2, got2)

	_, more, err = cs.Next(ctx)
	require.NoError(t, err)
	require.False(t, more)
	require.Equal(t, uint32(200), cs.Watermark())
	require.Equal(t, 2, cs.Count())

	// reading past the end stays ended
	_, more, err = cs.Next(ctx)
	require.NoError(t, err)
	require.False(t, more)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, uint32(123), gotSince)
}

func TestSyncContacts_EmptyStream(t *testing.T) {
	s := startTestSession(t, Config{}, func(raw []byte) [][]byte {
		if raw[0] != frame.CmdGetContacts {
			return nil
		}
		return [][]byte{
			mustResp(t, frame.ContactsStart{Total: 3}),
			mustResp(t, frame.EndOfContacts{Watermark: 150}),
		}
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	cs, err := s.SyncContacts(ctx, 150)
	require.NoError(t, err)
	require.Equal(t, uint32(3), cs.Total())

	_, more, err := cs.Next(ctx)
	require.NoError(t, err)
	require.False(t, more)
	require.Equal(t, uint32(150), cs.Watermark())
	require.Equal(t, 0, cs.Count())
}

func TestSyncContacts_HoldsCommandSlot(t *testing.T) {
	var mu sync.Mutex
	var order []byte
	s := startTestSession(t, Config{}, func(raw []byte) [][]byte {
		mu.Lock()
		order = append(order, raw[0])
		mu.Unlock()
		switch raw[0] {
		case frame.CmdGetContacts:
			return [][]byte{
				mustResp(t, frame.ContactsStart{Total: 1}),
				mustResp(t, frame.Contact{Record: syncRecord(1, 100)}),
				mustResp(t, frame.EndOfContacts{Watermark: 100}),
			}
		case frame.CmdGetDeviceTime:
			return [][]byte{mustResp(t, frame.CurrTime{Epoch: 7})}
		}
		return nil
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	cs, err := s.SyncContacts(ctx, 0)
	require.NoError(t, err)

	epochs := make(chan uint32, 1)
	go func() {
		epoch, err := s.DeviceTime(ctx)
		if err == nil {
			epochs <- epoch
		}
	}()
	time.Sleep(50 * time.Millisecond)

	_, more, err := cs.Next(ctx)
	require.NoError(t, err)
	require.True(t, more)
	_, more, err = cs.Next(ctx)
	require.NoError(t, err)
	require.False(t, more)

	select {
	case epoch := <-epochs:
		require.Equal(t, uint32(7), epoch)
	case <-time.After(2 * time.Second):
		t.Fatal("queued command never ran")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []byte{frame.CmdGetContacts, frame.CmdGetDeviceTime}, order)
}

func TestSyncContacts_CloseSwallowsBufferedTail(t *testing.T) {
	s := startTestSession(t, Config{}, func(raw []byte) [][]byte {
		switch raw[0] {
		case frame.CmdGetContacts:
			return [][]byte{
				mustResp(t, frame.ContactsStart{Total: 3}),
				mustResp(t, frame.Contact{Record: syncRecord(1, 100)}),
				mustResp(t, frame.Contact{Record: syncRecord(2, 110)}),
				mustResp(t, frame.EndOfContacts{Watermark: 110}),
			}
		case frame.CmdGetBatteryVoltage:
			return [][]byte{mustResp(t, frame.BatteryVoltage{Millivolts: 4000})}
		}
		return nil
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	cs, err := s.SyncContacts(ctx, 0)
	require.NoError(t, err)
	// let the rest of the stream land in the buffer, then walk away
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, cs.Close())

	mv, err := s.Battery(ctx)
	require.NoError(t, err)
	require.Equal(t, uint16(4000), mv)
}

func TestSyncContacts_CloseSwallowsLateTail(t *testing.T) {
	s, dev := newTestSession(t, nil, nil, Config{}, func(raw []byte) [][]byte {
		switch raw[0] {
		case frame.CmdGetContacts:
			return [][]byte{mustResp(t, frame.ContactsStart{Total: 2})}
		case frame.CmdGetBatteryVoltage:
			return [][]byte{mustResp(t, frame.BatteryVoltage{Millivolts: 4000})}
		}
		return nil
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := s.Start(ctx)
	require.NoError(t, err)

	cs, err := s.SyncContacts(ctx, 0)
	require.NoError(t, err)
	require.NoError(t, cs.Close())

	// the device had not sent the records yet; they trickle in afterwards
	// and must not reach the next command
	require.NoError(t, dev.Send(ctx, mustResp(t, frame.Contact{Record: syncRecord(1, 100)})))
	require.NoError(t, dev.Send(ctx, mustResp(t, frame.Contact{Record: syncRecord(2, 110)})))
	require.NoError(t, dev.Send(ctx, mustResp(t, frame.EndOfContacts{Watermark: 110})))

	mv, err := s.Battery(ctx)
	require.NoError(t, err)
	require.Equal(t, uint16(4000), mv)
}

func TestDrainMessages(t *testing.T) {
	var queue [][]byte
	s := startTestSession(t, Config{}, func(raw []byte) [][]byte {
		if raw[0] != frame.CmdSyncNextMessage {
			return nil
		}
		next := queue[0]
		queue = queue[1:]
		return [][]byte{next}
	})
	queue = [][]byte{
		mustResp(t, frame.ContactMsg{
			Prefix:          [frame.PrefixSize]byte{0xB1, 0xB2, 0xB3, 0xB4, 0xB5, 0xB6},
			PathLen:         2,
			TxtType:         frame.TxtTypePlain,
			SenderTimestamp: 1756000100,
			Text:            "hi there",
		}),
		mustResp(t, frame.ChannelMsg{
			ChannelIdx:      0,
			PathLen:         0xFF,
			TxtType:         frame.TxtTypePlain,
			SenderTimestamp: 1756000200,
			Text:            "hello all",
		}),
		mustResp(t, frame.NoMoreMessages{}),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	msgs, err := s.DrainMessages(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	require.False(t, msgs[0].FromChannel)
	require.Equal(t, byte(0xB1), msgs[0].Prefix[0])
	require.Equal(t, "hi there", msgs[0].Text)
	require.Equal(t, uint32(1756000100), msgs[0].SenderTimestamp)

	require.True(t, msgs[1].FromChannel)
	require.Equal(t, int8(0), msgs[1].ChannelIdx)
	require.Equal(t, "hello all", msgs[1].Text)
	require.Equal(t, byte(0xFF), msgs[1].PathLen)
}
