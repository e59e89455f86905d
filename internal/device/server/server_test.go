package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/mclink/internal/device/radio"
	"github.com/dmitrijs2005/mclink/internal/meshcore/frame"
	"github.com/dmitrijs2005/mclink/internal/meshcore/session"
	"github.com/dmitrijs2005/mclink/internal/meshcore/transport"
)

// startServer runs a node server on a loopback port and returns the node
// with the bound address once the listener is up.
func startServer(t *testing.T, cfg radio.Config) (*radio.Node, string) {
	t.Helper()
	node, err := radio.New(cfg, nil)
	require.NoError(t, err)

	srv := New("127.0.0.1:0", node, nil)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-errCh:
		case <-time.After(2 * time.Second):
			t.Error("server did not stop")
		}
	})

	require.Eventually(t, func() bool { return srv.Addr() != "" }, time.Second, 5*time.Millisecond)
	return node, srv.Addr()
}

func dialSession(t *testing.T, addr string) (*session.Session, <-chan session.Event) {
	t.Helper()
	bus := session.NewBus(nil)
	tracker := session.NewTracker(session.DefaultConfig().Retry, bus, nil)
	sess := session.New(transport.NewTCP(addr, nil), tracker, bus, session.DefaultConfig(), nil)
	events, unsub := bus.Subscribe(32)
	t.Cleanup(func() {
		_ = sess.Close()
		unsub()
	})
	return sess, events
}

func TestServer_CommandsOverLoopback(t *testing.T) {
	ctx := context.Background()
	node, addr := startServer(t, radio.Config{Name: "loop node", BatteryMV: 3900})
	sess, _ := dialSession(t, addr)

	self, err := sess.Start(ctx)
	require.NoError(t, err)
	require.Equal(t, "loop node", self.Name)
	require.Equal(t, node.PublicKey(), self.PublicKey)

	mv, err := sess.Battery(ctx)
	require.NoError(t, err)
	require.Equal(t, uint16(3900), mv)

	require.NoError(t, sess.SetDeviceTime(ctx, 1756000000))
	epoch, err := sess.DeviceTime(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, epoch, uint32(1756000000))
	require.Less(t, epoch, uint32(1756000005))

	info, err := sess.Query(ctx)
	require.NoError(t, err)
	require.NotZero(t, info.MaxContacts)
}

func TestServer_DeliveryConfirmReachesBus(t *testing.T) {
	ctx := context.Background()
	_, addr := startServer(t, radio.Config{AckDelay: 15 * time.Millisecond})
	sess, events := dialSession(t, addr)

	_, err := sess.Start(ctx)
	require.NoError(t, err)

	rec := frame.ContactRecord{Type: frame.ContactTypeChat, Name: "peer", OutPathLen: 1}
	rec.PublicKey[0] = 0xA1
	rec.OutPath[0] = 0x42
	require.NoError(t, sess.AddUpdateContact(ctx, rec))

	receipt, err := sess.SendText(ctx, session.OutboundText{
		ContactKey:      rec.PublicKey,
		TxtType:         frame.TxtTypePlain,
		Text:            "over tcp",
		SenderTimestamp: uint32(time.Now().Unix()),
	})
	require.NoError(t, err)
	require.True(t, receipt.Tracked)
	require.Equal(t, frame.RouteTypeDirect, receipt.RouteType)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-events:
			if d, ok := ev.(session.DeliveredEvent); ok {
				require.Equal(t, receipt.MsgID, d.MsgID)
				require.Equal(t, receipt.AckCode, d.AckCode)
				return
			}
		case <-deadline:
			t.Fatal("no delivery confirmation")
		}
	}
}

func TestServer_SecondSessionAfterDisconnect(t *testing.T) {
	ctx := context.Background()
	node, addr := startServer(t, radio.Config{Name: "first name"})

	sess1, _ := dialSession(t, addr)
	self, err := sess1.Start(ctx)
	require.NoError(t, err)
	require.Equal(t, "first name", self.Name)
	require.NoError(t, sess1.SetAdvertName(ctx, "renamed node"))
	require.NoError(t, sess1.Close())

	sess2, _ := dialSession(t, addr)
	self, err = sess2.Start(ctx)
	require.NoError(t, err)
	require.Equal(t, "renamed node", self.Name)
	require.Equal(t, "renamed node", node.Name())
}

func TestServer_CancelStopsActiveLink(t *testing.T) {
	node, err := radio.New(radio.Config{}, nil)
	require.NoError(t, err)
	srv := New("127.0.0.1:0", node, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(ctx) }()
	require.Eventually(t, func() bool { return srv.Addr() != "" }, time.Second, 5*time.Millisecond)

	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer conn.Close()

	// Give the accept loop a moment to hand the connection to serve.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop while a link was active")
	}
}
