// Package services holds the client's application services: the device
// link owner, the contact mirror and the messaging flow. Services depend
// on repository interfaces and on each other through small seams so tests
// can swap fakes in.
package services

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/mclink/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/mclink/internal/cryptox"
	"github.com/dmitrijs2005/mclink/internal/logging"
	"github.com/dmitrijs2005/mclink/internal/meshcore/frame"
	"github.com/dmitrijs2005/mclink/internal/meshcore/session"
	"github.com/dmitrijs2005/mclink/internal/meshcore/transport"
)

// DeviceService owns the link to the node. Sessions are single use, so a
// dropped link means dialing a fresh one; the service shares one ack
// tracker and one event bus across all of them, which keeps pending
// deliveries and subscribers alive through reconnects.
type DeviceService struct {
	addr    string
	cfg     session.Config
	meta    metadata.Repository
	logger  logging.Logger
	bus     *session.Bus
	tracker *session.Tracker

	// connectMu serializes dial attempts; mu guards the session pointer.
	connectMu sync.Mutex
	mu        sync.Mutex
	sess      *session.Session
}

func NewDeviceService(addr string, cfg session.Config, metaRepo metadata.Repository, logger logging.Logger) *DeviceService {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	bus := session.NewBus(logger)
	tracker := session.NewTracker(cfg.Retry, bus, logger)
	return &DeviceService{
		addr:    addr,
		cfg:     cfg,
		meta:    metaRepo,
		logger:  logger,
		bus:     bus,
		tracker: tracker,
	}
}

// Bus exposes the shared event bus.
func (s *DeviceService) Bus() *session.Bus { return s.bus }

// Tracker exposes the shared delivery tracker.
func (s *DeviceService) Tracker() *session.Tracker { return s.tracker }

// Session returns the current session, nil before the first connect.
func (s *DeviceService) Session() *session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sess
}

// Connected reports whether a live session exists.
func (s *DeviceService) Connected() bool {
	sess := s.Session()
	if sess == nil {
		return false
	}
	select {
	case <-sess.Done():
		return false
	default:
		return true
	}
}

// Connect dials a fresh session and performs the handshake. Any previous
// session is closed first.
func (s *DeviceService) Connect(ctx context.Context) (frame.SelfInfo, error) {
	s.connectMu.Lock()
	defer s.connectMu.Unlock()

	if old := s.Session(); old != nil {
		_ = old.Close()
	}

	sess := session.New(transport.NewTCP(s.addr, s.logger), s.tracker, s.bus, s.cfg, s.logger)
	self, err := sess.Start(ctx)
	if err != nil {
		return frame.SelfInfo{}, err
	}

	s.mu.Lock()
	s.sess = sess
	s.mu.Unlock()

	s.rememberPairing(ctx, self)
	return self, nil
}

// EnsureConnected returns the live session, dialing a new one when the
// previous dropped.
func (s *DeviceService) EnsureConnected(ctx context.Context) (*session.Session, error) {
	if s.Connected() {
		return s.Session(), nil
	}
	if _, err := s.Connect(ctx); err != nil {
		return nil, err
	}
	return s.Session(), nil
}

// Close drops the current session. The tracker and bus stay usable for a
// later Connect.
func (s *DeviceService) Close() error {
	sess := s.Session()
	if sess == nil {
		return nil
	}
	return sess.Close()
}

// StartReconnectWatcher re-dials dropped sessions every interval until ctx
// ends. Dial failures are quiet; the next tick tries again.
func (s *DeviceService) StartReconnectWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if s.Connected() {
				continue
			}
			dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			self, err := s.Connect(dialCtx)
			cancel()
			if err != nil {
				s.logger.Debug("reconnect attempt failed", "error", err)
				continue
			}
			s.logger.Info("reconnected", "node", self.Name)

		case <-ctx.Done():
			return
		}
	}
}

// rememberPairing records which node this store belongs to and warns when
// the address suddenly answers with a different identity.
func (s *DeviceService) rememberPairing(ctx context.Context, self frame.SelfInfo) {
	if s.meta == nil {
		return
	}
	prev, err := s.meta.Get(ctx, metadata.KeyNodeKey)
	if err == nil && len(prev) > 0 && !bytes.Equal(prev, self.PublicKey[:]) {
		s.logger.Warn("node identity changed since last pairing", "node", self.Name)
	}
	if err := s.meta.Set(ctx, metadata.KeyNodeKey, self.PublicKey[:]); err != nil {
		s.logger.Warn("failed to record paired node key", "error", err)
	}
	if err := s.meta.Set(ctx, metadata.KeyNodeName, []byte(self.Name)); err != nil {
		s.logger.Warn("failed to record paired node name", "error", err)
	}
}

// SetChannelPassphrase derives the shared channel secret from a passphrase
// and programs the slot. Everyone entering the same passphrase lands on
// the same secret.
func (s *DeviceService) SetChannelPassphrase(ctx context.Context, idx byte, name, passphrase string) error {
	var secret [frame.SecretSize]byte
	copy(secret[:], cryptox.DeriveChannelSecret(passphrase))

	sess, err := s.EnsureConnected(ctx)
	if err != nil {
		return err
	}
	return sess.SetChannel(ctx, idx, name, secret)
}

// SendText forwards to the live session. Satisfies the messaging seam.
func (s *DeviceService) SendText(ctx context.Context, msg session.OutboundText) (session.SendReceipt, error) {
	sess, err := s.EnsureConnected(ctx)
	if err != nil {
		return session.SendReceipt{}, err
	}
	return sess.SendText(ctx, msg)
}

// SendChannelText forwards to the live session.
func (s *DeviceService) SendChannelText(ctx context.Context, idx, txtType byte, text string) error {
	sess, err := s.EnsureConnected(ctx)
	if err != nil {
		return err
	}
	return sess.SendChannelText(ctx, idx, txtType, text)
}

// DrainMessages forwards to the live session.
func (s *DeviceService) DrainMessages(ctx context.Context) ([]session.InboundMessage, error) {
	sess, err := s.EnsureConnected(ctx)
	if err != nil {
		return nil, err
	}
	return sess.DrainMessages(ctx)
}

// SyncContacts starts a device contact stream. Satisfies the contact sync
// seam.
func (s *DeviceService) SyncContacts(ctx context.Context, since uint32) (ContactStream, error) {
	sess, err := s.EnsureConnected(ctx)
	if err != nil {
		return nil, err
	}
	return sess.SyncContacts(ctx, since)
}

// Self returns the identity reported by the node on the last handshake,
// zero before the first connect. The value survives a link drop.
func (s *DeviceService) Self() frame.SelfInfo {
	sess := s.Session()
	if sess == nil {
		return frame.SelfInfo{}
	}
	return sess.Self()
}

// Query asks the node for its firmware and hardware description.
func (s *DeviceService) Query(ctx context.Context) (frame.DeviceInfo, error) {
	sess, err := s.EnsureConnected(ctx)
	if err != nil {
		return frame.DeviceInfo{}, err
	}
	return sess.Query(ctx)
}

// DeviceTime reads the node clock.
func (s *DeviceService) DeviceTime(ctx context.Context) (uint32, error) {
	sess, err := s.EnsureConnected(ctx)
	if err != nil {
		return 0, err
	}
	return sess.DeviceTime(ctx)
}

// SetDeviceTime sets the node clock.
func (s *DeviceService) SetDeviceTime(ctx context.Context, epoch uint32) error {
	sess, err := s.EnsureConnected(ctx)
	if err != nil {
		return err
	}
	return sess.SetDeviceTime(ctx, epoch)
}

// Battery reads the node battery level in millivolts.
func (s *DeviceService) Battery(ctx context.Context) (uint16, error) {
	sess, err := s.EnsureConnected(ctx)
	if err != nil {
		return 0, err
	}
	return sess.Battery(ctx)
}

// SetAdvertName renames the node.
func (s *DeviceService) SetAdvertName(ctx context.Context, name string) error {
	sess, err := s.EnsureConnected(ctx)
	if err != nil {
		return err
	}
	return sess.SetAdvertName(ctx, name)
}

// SendSelfAdvert asks the node to advertise itself, flood or zero-hop.
func (s *DeviceService) SendSelfAdvert(ctx context.Context, flood bool) error {
	sess, err := s.EnsureConnected(ctx)
	if err != nil {
		return err
	}
	return sess.SendSelfAdvert(ctx, flood)
}

// Channel reads one channel slot.
func (s *DeviceService) Channel(ctx context.Context, idx byte) (frame.ChannelInfo, error) {
	sess, err := s.EnsureConnected(ctx)
	if err != nil {
		return frame.ChannelInfo{}, err
	}
	return sess.Channel(ctx, idx)
}

// Login starts an authentication exchange with a remote node. The outcome
// arrives later as a push.
func (s *DeviceService) Login(ctx context.Context, prefix [frame.PrefixSize]byte, password string) (frame.Sent, error) {
	sess, err := s.EnsureConnected(ctx)
	if err != nil {
		return frame.Sent{}, err
	}
	return sess.Login(ctx, prefix, password)
}

// StatusReq requests a status blob from a remote node.
func (s *DeviceService) StatusReq(ctx context.Context, prefix [frame.PrefixSize]byte) (frame.Sent, error) {
	sess, err := s.EnsureConnected(ctx)
	if err != nil {
		return frame.Sent{}, err
	}
	return sess.StatusReq(ctx, prefix)
}

// ExportSelf returns the node's own signed advert blob.
func (s *DeviceService) ExportSelf(ctx context.Context) (frame.AdvertBlock, error) {
	sess, err := s.EnsureConnected(ctx)
	if err != nil {
		return frame.AdvertBlock{}, err
	}
	return sess.ExportSelf(ctx)
}

// ExportContact returns the signed advert blob of a stored contact.
func (s *DeviceService) ExportContact(ctx context.Context, key [frame.PublicKeySize]byte) (frame.AdvertBlock, error) {
	sess, err := s.EnsureConnected(ctx)
	if err != nil {
		return frame.AdvertBlock{}, err
	}
	return sess.ExportContact(ctx, key)
}

// ImportContact hands a signed advert blob to the node for verification
// and insertion into its contact table.
func (s *DeviceService) ImportContact(ctx context.Context, advert frame.AdvertBlock) error {
	sess, err := s.EnsureConnected(ctx)
	if err != nil {
		return err
	}
	return sess.ImportContact(ctx, advert)
}

// Reboot restarts the node. The link drops right after, so the session is
// closed without waiting for it to die on its own.
func (s *DeviceService) Reboot(ctx context.Context) error {
	sess, err := s.EnsureConnected(ctx)
	if err != nil {
		return err
	}
	if err := sess.Reboot(ctx); err != nil {
		return err
	}
	return sess.Close()
}
