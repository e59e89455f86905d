package session

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/mclink/internal/common"
	"github.com/dmitrijs2005/mclink/internal/meshcore/frame"
	"github.com/dmitrijs2005/mclink/internal/meshcore/transport"
)

func mustResp(t *testing.T, r frame.Response) []byte {
	t.Helper()
	raw, err := frame.EncodeResponse(r)
	require.NoError(t, err)
	return raw
}

func mustPush(t *testing.T, p frame.Push) []byte {
	t.Helper()
	raw, err := frame.EncodePush(p)
	require.NoError(t, err)
	return raw
}

func testSelfInfo(t *testing.T) []byte {
	t.Helper()
	return mustResp(t, frame.SelfInfo{
		TxPower: 22, MaxTxPower: 30,
		RadioFreqKHz: 869525, RadioBwHz: 250000, RadioSF: 10, RadioCR: 5,
		Name: "bench node",
	})
}

// newTestSession wires a session to a scripted device on the other end of
// an in-process pipe. The handler sees every frame except AppStart, which
// is answered with SelfInfo so Start can run the handshake.
func newTestSession(t *testing.T, tracker *Tracker, bus *Bus, cfg Config,
	handle func(raw []byte) [][]byte) (*Session, *transport.Pipe) {
	t.Helper()
	cli, dev := transport.NewPair()
	go func() {
		for raw := range dev.Frames() {
			var out [][]byte
			if raw[0] == frame.CmdAppStart {
				out = [][]byte{testSelfInfo(t)}
			} else if handle != nil {
				out = handle(raw)
			}
			for _, f := range out {
				_ = dev.Send(context.Background(), f)
			}
		}
	}()
	s := New(cli, tracker, bus, cfg, nil)
	t.Cleanup(func() { _ = s.Close() })
	return s, dev
}

func startTestSession(t *testing.T, cfg Config, handle func(raw []byte) [][]byte) *Session {
	t.Helper()
	s, _ := newTestSession(t, nil, nil, cfg, handle)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	info, err := s.Start(ctx)
	require.NoError(t, err)
	require.Equal(t, "bench node", info.Name)
	return s
}

func TestSession_StartHandshake(t *testing.T) {
	s := startTestSession(t, Config{}, nil)
	require.Equal(t, transport.StateReady, s.State())
	require.Equal(t, "bench node", s.Self().Name)
}

func TestSession_TypedRoundTrips(t *testing.T) {
	s := startTestSession(t, Config{}, func(raw []byte) [][]byte {
		switch raw[0] {
		case frame.CmdGetDeviceTime:
			return [][]byte{mustResp(t, frame.CurrTime{Epoch: 1756000000})}
		case frame.CmdSetDeviceTime:
			return [][]byte{mustResp(t, frame.Ok{})}
		case frame.CmdGetBatteryVoltage:
			return [][]byte{mustResp(t, frame.BatteryVoltage{Millivolts: 4012})}
		case frame.CmdDeviceQuery:
			return [][]byte{mustResp(t, frame.DeviceInfo{
				FirmwareVer: 3, MaxContacts: 100, MaxChannels: 8,
				FirmwareBuild: "24-Aug-2026", Model: "bench", Version: "v1",
			})}
		}
		return nil
	})
	ctx := context.Background()

	epoch, err := s.DeviceTime(ctx)
	require.NoError(t, err)
	require.Equal(t, uint32(1756000000), epoch)

	require.NoError(t, s.SetDeviceTime(ctx, 1756000001))

	mv, err := s.Battery(ctx)
	require.NoError(t, err)
	require.Equal(t, uint16(4012), mv)

	info, err := s.Query(ctx)
	require.NoError(t, err)
	require.Equal(t, uint16(100), info.MaxContacts)
	require.Equal(t, "bench", info.Model)
}

func TestSession_ErrorMapping(t *testing.T) {
	s := startTestSession(t, Config{}, func(raw []byte) [][]byte {
		switch raw[0] {
		case frame.CmdAddUpdateContact:
			return [][]byte{frame.EncodeDeviceError(frame.ECodeTableFull)}
		case frame.CmdRemoveContact:
			return [][]byte{frame.EncodeDeviceError(frame.ECodeNotFound)}
		case frame.CmdReboot:
			return [][]byte{mustResp(t, frame.Disabled{})}
		case frame.CmdGetDeviceTime:
			return [][]byte{mustResp(t, frame.Ok{})}
		}
		return nil
	})
	ctx := context.Background()

	err := s.AddUpdateContact(ctx, frame.ContactRecord{Name: "x"})
	require.ErrorIs(t, err, frame.ErrTableFull)

	err = s.RemoveContact(ctx, [frame.PublicKeySize]byte{1})
	require.ErrorIs(t, err, frame.ErrNotFound)

	err = s.Reboot(ctx)
	require.ErrorIs(t, err, frame.ErrDisabled)

	_, err = s.DeviceTime(ctx)
	require.ErrorIs(t, err, ErrUnexpectedResponse)
}

func TestSession_PushDuringCommand(t *testing.T) {
	bus := NewBus(nil)
	s, _ := newTestSession(t, nil, bus, Config{}, func(raw []byte) [][]byte {
		if raw[0] == frame.CmdGetDeviceTime {
			return [][]byte{
				mustPush(t, frame.Advert{PublicKey: [frame.PublicKeySize]byte{7}}),
				mustResp(t, frame.CurrTime{Epoch: 99}),
			}
		}
		return nil
	})
	events, unsub := bus.Subscribe(16)
	defer unsub()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := s.Start(ctx)
	require.NoError(t, err)

	epoch, err := s.DeviceTime(ctx)
	require.NoError(t, err)
	require.Equal(t, uint32(99), epoch)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-events:
			if pe, ok := ev.(PushEvent); ok {
				adv, ok := pe.Push.(frame.Advert)
				require.True(t, ok)
				require.Equal(t, byte(7), adv.PublicKey[0])
				return
			}
		case <-deadline:
			t.Fatal("push event not seen")
		}
	}
}

func TestSession_CommandsRunInRequestOrder(t *testing.T) {
	var mu sync.Mutex
	var order []uint32
	s := startTestSession(t, Config{}, func(raw []byte) [][]byte {
		if raw[0] == frame.CmdSetDeviceTime {
			cmd, err := frame.DecodeCommand(raw)
			require.NoError(t, err)
			mu.Lock()
			order = append(order, cmd.(frame.SetDeviceTime).Epoch)
			mu.Unlock()
			time.Sleep(60 * time.Millisecond)
			return [][]byte{mustResp(t, frame.Ok{})}
		}
		return nil
	})

	ctx := context.Background()
	errs := make(chan error, 4)
	var wg sync.WaitGroup
	for i := uint32(1); i <= 4; i++ {
		wg.Add(1)
		go func(epoch uint32) {
			defer wg.Done()
			errs <- s.SetDeviceTime(ctx, epoch)
		}(i)
		time.Sleep(25 * time.Millisecond)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []uint32{1, 2, 3, 4}, order)
}

func TestSession_TimeoutThenLateResponseIsDropped(t *testing.T) {
	cfg := Config{CommandTimeout: 120 * time.Millisecond}
	s := startTestSession(t, cfg, func(raw []byte) [][]byte {
		switch raw[0] {
		case frame.CmdGetDeviceTime:
			time.Sleep(300 * time.Millisecond)
			return [][]byte{mustResp(t, frame.CurrTime{Epoch: 1111})}
		case frame.CmdGetBatteryVoltage:
			return [][]byte{mustResp(t, frame.BatteryVoltage{Millivolts: 4000})}
		}
		return nil
	})

	_, err := s.DeviceTime(context.Background())
	require.ErrorIs(t, err, common.ErrTimeout)

	// the device still owes CurrTime; it must be swallowed, not handed to
	// the next command
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	mv, err := s.Battery(ctx)
	require.NoError(t, err)
	require.Equal(t, uint16(4000), mv)
}

func TestSession_DisconnectFailsInflightAndQueued(t *testing.T) {
	s, dev := newTestSession(t, nil, nil, Config{}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := s.Start(ctx)
	require.NoError(t, err)

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := s.DeviceTime(context.Background())
			errs <- err
		}()
		time.Sleep(30 * time.Millisecond)
	}

	require.NoError(t, dev.Close())

	for i := 0; i < 2; i++ {
		select {
		case err := <-errs:
			require.ErrorIs(t, err, common.ErrDisconnected)
		case <-time.After(2 * time.Second):
			t.Fatal("caller not failed on disconnect")
		}
	}

	_, err = s.DeviceTime(context.Background())
	require.ErrorIs(t, err, common.ErrDisconnected)
}

func TestSession_SendTextTracksAndConfirms(t *testing.T) {
	bus := NewBus(nil)
	tracker := NewTracker(RetryConfig{}, bus, nil)
	s, dev := newTestSession(t, tracker, bus, Config{}, func(raw []byte) [][]byte {
		if raw[0] == frame.CmdSendTxtMsg {
			return [][]byte{mustResp(t, frame.Sent{RouteType: frame.RouteTypeDirect, AckCode: 4242, TimeoutMs: 500})}
		}
		return nil
	})
	events, unsub := bus.Subscribe(16)
	defer unsub()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := s.Start(ctx)
	require.NoError(t, err)

	receipt, err := s.SendText(ctx, OutboundText{
		ContactKey: [frame.PublicKeySize]byte{0xA1},
		Text:       "hello",
	})
	require.NoError(t, err)
	require.True(t, receipt.Tracked)
	require.Equal(t, uint32(4242), receipt.AckCode)

	// the ack comes off the air later, pushed by the device
	require.NoError(t, dev.Send(ctx, mustPush(t, frame.SendConfirmed{AckCode: 4242, RoundTripMs: 800})))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-events:
			if de, ok := ev.(DeliveredEvent); ok {
				require.Equal(t, receipt.MsgID, de.MsgID)
				require.Equal(t, uint32(4242), de.AckCode)
				require.Equal(t, 800*time.Millisecond, de.RoundTrip)
				require.Equal(t, 1, de.Attempts)
				require.Empty(t, tracker.Pending())
				return
			}
		case <-deadline:
			t.Fatal("delivered event not seen")
		}
	}
}

func TestSession_SignBlob(t *testing.T) {
	var mu sync.Mutex
	var received []byte
	var expectedLen uint32
	s := startTestSession(t, Config{}, func(raw []byte) [][]byte {
		cmd, err := frame.DecodeCommand(raw)
		if err != nil {
			return [][]byte{frame.EncodeDeviceError(frame.ECodeUnsupportedCmd)}
		}
		switch v := cmd.(type) {
		case frame.SignStart:
			mu.Lock()
			expectedLen = v.ExpectedLen
			mu.Unlock()
			return [][]byte{mustResp(t, frame.SignStarted{SessionID: 9})}
		case frame.SignData:
			if v.SessionID != 9 {
				return [][]byte{frame.EncodeDeviceError(frame.ECodeBadState)}
			}
			mu.Lock()
			received = append(received, v.Chunk...)
			mu.Unlock()
			return [][]byte{mustResp(t, frame.Ok{})}
		case frame.SignFinish:
			return [][]byte{mustResp(t, frame.Signature{Sig: [frame.SignatureSize]byte{0xEE}})}
		}
		return nil
	})

	data := bytes.Repeat([]byte{0x5A}, 2500)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sig, err := s.SignBlob(ctx, data)
	require.NoError(t, err)
	require.Equal(t, byte(0xEE), sig[0])

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, uint32(2500), expectedLen)
	require.Equal(t, data, received)
}

func TestSession_ChannelSendNotTracked(t *testing.T) {
	tracker := NewTracker(RetryConfig{}, nil, nil)
	s, _ := newTestSession(t, tracker, nil, Config{}, func(raw []byte) [][]byte {
		if raw[0] == frame.CmdSendChannelTxtMsg {
			return [][]byte{mustResp(t, frame.Sent{RouteType: frame.RouteTypeFlood, AckCode: 0, TimeoutMs: 3000})}
		}
		return nil
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := s.Start(ctx)
	require.NoError(t, err)

	require.NoError(t, s.SendChannelText(ctx, 0, frame.TxtTypePlain, "hi all"))
	require.Empty(t, tracker.Pending())
}
