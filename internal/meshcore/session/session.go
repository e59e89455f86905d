// Package session drives the companion protocol over one transport: it
// correlates commands with responses, routes pushes to an event bus and
// tracks delivery of acked sends.
//
// Commands are single flight. Callers queue on a one-slot channel and the
// runtime wakes them in arrival order, so a burst of concurrent calls runs
// fairly without an explicit queue. Responses belong to whichever call
// holds the slot; a call that times out leaves a note for the dispatch
// loop to swallow the response it is still owed, so a late reply is never
// matched to the next command.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/mclink/internal/common"
	"github.com/dmitrijs2005/mclink/internal/logging"
	"github.com/dmitrijs2005/mclink/internal/meshcore/frame"
	"github.com/dmitrijs2005/mclink/internal/meshcore/transport"
)

// ErrUnexpectedResponse is returned when the device answers a command with
// a response type the command cannot produce.
var ErrUnexpectedResponse = errors.New("unexpected response type")

// SendReceipt is what a caller gets back from an acked send.
type SendReceipt struct {
	MsgID     string
	AckCode   uint32
	RouteType byte
	Timeout   time.Duration
	Tracked   bool
}

type call struct {
	frames chan []byte
}

// Session owns exactly one transport for its lifetime. A dropped link ends
// the session; the owner builds a new session, reusing the tracker and bus
// so pending acks and subscribers carry over.
type Session struct {
	cfg     Config
	tr      transport.Transport
	tracker *Tracker
	bus     *Bus
	logger  logging.Logger

	slot chan struct{}
	done chan struct{}

	runCtx    context.Context
	runCancel context.CancelFunc
	stopOnce  sync.Once

	active       atomic.Pointer[call]
	orphans      atomic.Int32
	streamOrphan atomic.Bool

	mu      sync.Mutex
	self    frame.SelfInfo
	started bool
}

// New wires a session. Tracker and bus may be shared across sessions; a nil
// bus gets a private one and a nil tracker disables delivery tracking.
func New(tr transport.Transport, tracker *Tracker, bus *Bus, cfg Config, logger logging.Logger) *Session {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if bus == nil {
		bus = NewBus(logger)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		cfg:       cfg.withDefaults(),
		tr:        tr,
		tracker:   tracker,
		bus:       bus,
		logger:    logger,
		slot:      make(chan struct{}, 1),
		done:      make(chan struct{}),
		runCtx:    ctx,
		runCancel: cancel,
	}
}

// Start connects, begins dispatching and performs the AppStart handshake.
// On success the link is ready and the node's own SelfInfo is returned.
func (s *Session) Start(ctx context.Context) (frame.SelfInfo, error) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return frame.SelfInfo{}, errors.New("session already started")
	}
	s.started = true
	s.mu.Unlock()

	if err := s.tr.Connect(ctx); err != nil {
		s.shutdown()
		return frame.SelfInfo{}, fmt.Errorf("start session: %w", err)
	}
	go s.dispatch()
	go s.scanLoop()

	resp, err := s.roundTrip(ctx, frame.AppStart{AppVer: s.cfg.AppVer, AppName: s.cfg.AppName})
	if err != nil {
		s.Close()
		return frame.SelfInfo{}, fmt.Errorf("handshake: %w", err)
	}
	info, ok := resp.(frame.SelfInfo)
	if !ok {
		s.Close()
		return frame.SelfInfo{}, fmt.Errorf("handshake: %w: %T", ErrUnexpectedResponse, resp)
	}

	s.mu.Lock()
	s.self = info
	s.mu.Unlock()
	s.tr.SetReady()
	s.bus.Publish(LinkStateEvent{State: transport.StateReady})
	s.logger.Info("session ready", "node", info.Name, "tx_power", info.TxPower)
	return info, nil
}

// Close drops the link. In-flight and queued commands fail with a
// disconnect error; tracked acks stay pending for a later session.
func (s *Session) Close() error {
	err := s.tr.Close()
	s.shutdown()
	return err
}

// Self returns the SelfInfo captured during the handshake.
func (s *Session) Self() frame.SelfInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.self
}

// State reports the transport state.
func (s *Session) State() transport.State {
	return s.tr.State()
}

// Bus exposes the event bus for subscribers.
func (s *Session) Bus() *Bus {
	return s.bus
}

// Acks exposes the delivery tracker, nil when tracking is disabled.
func (s *Session) Acks() *Tracker {
	return s.tracker
}

// Done is closed when the session has shut down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) shutdown() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.runCancel()
		s.bus.Publish(LinkStateEvent{State: transport.StateDisconnected})
		s.logger.Info("session closed")
	})
}

// dispatch reads every inbound frame: pushes go to the bus, responses to
// the call holding the slot. It exits when the transport closes its frame
// channel, which fails everything still waiting.
func (s *Session) dispatch() {
	defer s.shutdown()
	frames := s.tr.Frames()
	states := s.tr.StateChanges()
	for {
		select {
		case raw, ok := <-frames:
			if !ok {
				return
			}
			s.route(raw)
		case st := <-states:
			s.bus.Publish(LinkStateEvent{State: st})
		}
	}
}

func (s *Session) route(raw []byte) {
	if len(raw) == 0 {
		return
	}
	if frame.IsPushCode(raw[0]) {
		p, err := frame.DecodePush(raw)
		if err != nil {
			s.logger.Warn("bad push frame", "error", err)
			return
		}
		s.handlePush(p)
		return
	}

	if s.streamOrphan.Load() {
		if raw[0] == frame.RespEndOfContacts {
			s.streamOrphan.Store(false)
		}
		s.logger.Debug("dropping frame of abandoned sync", "code", raw[0])
		return
	}
	if s.orphans.Load() > 0 {
		s.orphans.Add(-1)
		s.logger.Debug("dropping late response", "code", raw[0])
		return
	}

	c := s.active.Load()
	if c == nil {
		s.logger.Warn("response with no command in flight", "code", raw[0])
		return
	}
	select {
	case c.frames <- raw:
	default:
		s.logger.Warn("in-flight buffer full, dropping frame", "code", raw[0])
	}
}

func (s *Session) handlePush(p frame.Push) {
	if sc, ok := p.(frame.SendConfirmed); ok {
		if s.tracker == nil || !s.tracker.Confirm(sc.AckCode, sc.RoundTripMs) {
			s.logger.Debug("confirmation for unknown ack code", "ack_code", sc.AckCode)
		}
	}
	s.bus.Publish(PushEvent{Push: p})
}

// scanLoop drives ack deadlines and retries while the link is ready.
func (s *Session) scanLoop() {
	ticker := time.NewTicker(s.cfg.AckScanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if s.tracker == nil || s.tr.State() != transport.StateReady {
				continue
			}
			s.tracker.processDue(s.runCtx, s)
		}
	}
}

// acquire takes the single command slot, honoring request order.
func (s *Session) acquire(ctx context.Context) (func(), error) {
	select {
	case s.slot <- struct{}{}:
		return func() { <-s.slot }, nil
	case <-ctx.Done():
		return nil, mapCtxErr(ctx.Err())
	case <-s.done:
		return nil, common.ErrDisconnected
	}
}

// exchange runs one command while holding the slot.
func (s *Session) exchange(ctx context.Context, cmd frame.Command) (frame.Response, error) {
	raw, err := frame.EncodeCommand(cmd)
	if err != nil {
		return nil, err
	}
	c := &call{frames: make(chan []byte, 256)}
	s.active.Store(c)
	defer s.active.Store(nil)

	if err := s.tr.Send(ctx, raw); err != nil {
		return nil, err
	}
	select {
	case respRaw := <-c.frames:
		resp, err := frame.DecodeResponse(respRaw)
		if err != nil {
			return nil, err
		}
		if _, ok := resp.(frame.Disabled); ok {
			return nil, frame.ErrDisabled
		}
		return resp, nil
	case <-ctx.Done():
		s.orphans.Add(1)
		return nil, fmt.Errorf("command 0x%02X: %w", cmd.Code(), mapCtxErr(ctx.Err()))
	case <-s.done:
		return nil, common.ErrDisconnected
	}
}

// nextStreamFrame waits for one more frame of an open stream, bounded by
// the command timeout when the caller set no deadline.
func (s *Session) nextStreamFrame(ctx context.Context, c *call) ([]byte, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.CommandTimeout)
		defer cancel()
	}
	select {
	case raw := <-c.frames:
		return raw, nil
	case <-ctx.Done():
		return nil, mapCtxErr(ctx.Err())
	case <-s.done:
		return nil, common.ErrDisconnected
	}
}

func (s *Session) roundTrip(ctx context.Context, cmd frame.Command) (frame.Response, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.CommandTimeout)
		defer cancel()
	}
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return s.exchange(ctx, cmd)
}

func (s *Session) expectOk(op string, resp frame.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, ok := resp.(frame.Ok); !ok {
		return fmt.Errorf("%s: %w: %T", op, ErrUnexpectedResponse, resp)
	}
	return nil
}

func (s *Session) expectSent(op string, resp frame.Response, err error) (frame.Sent, error) {
	if err != nil {
		return frame.Sent{}, fmt.Errorf("%s: %w", op, err)
	}
	sent, ok := resp.(frame.Sent)
	if !ok {
		return frame.Sent{}, fmt.Errorf("%s: %w: %T", op, ErrUnexpectedResponse, resp)
	}
	return sent, nil
}

// Query reads firmware and hardware details.
func (s *Session) Query(ctx context.Context) (frame.DeviceInfo, error) {
	resp, err := s.roundTrip(ctx, frame.DeviceQuery{AppTargetVer: s.cfg.AppVer})
	if err != nil {
		return frame.DeviceInfo{}, fmt.Errorf("device query: %w", err)
	}
	info, ok := resp.(frame.DeviceInfo)
	if !ok {
		return frame.DeviceInfo{}, fmt.Errorf("device query: %w: %T", ErrUnexpectedResponse, resp)
	}
	return info, nil
}

// DeviceTime reads the device clock as epoch seconds.
func (s *Session) DeviceTime(ctx context.Context) (uint32, error) {
	resp, err := s.roundTrip(ctx, frame.GetDeviceTime{})
	if err != nil {
		return 0, fmt.Errorf("get device time: %w", err)
	}
	ct, ok := resp.(frame.CurrTime)
	if !ok {
		return 0, fmt.Errorf("get device time: %w: %T", ErrUnexpectedResponse, resp)
	}
	return ct.Epoch, nil
}

// SetDeviceTime sets the device clock.
func (s *Session) SetDeviceTime(ctx context.Context, epoch uint32) error {
	resp, err := s.roundTrip(ctx, frame.SetDeviceTime{Epoch: epoch})
	return s.expectOk("set device time", resp, err)
}

// Battery reads the battery level in millivolts.
func (s *Session) Battery(ctx context.Context) (uint16, error) {
	resp, err := s.roundTrip(ctx, frame.GetBatteryVoltage{})
	if err != nil {
		return 0, fmt.Errorf("get battery: %w", err)
	}
	bv, ok := resp.(frame.BatteryVoltage)
	if !ok {
		return 0, fmt.Errorf("get battery: %w: %T", ErrUnexpectedResponse, resp)
	}
	return bv.Millivolts, nil
}

// SetAdvertName renames the node.
func (s *Session) SetAdvertName(ctx context.Context, name string) error {
	resp, err := s.roundTrip(ctx, frame.SetAdvertName{Name: name})
	return s.expectOk("set advert name", resp, err)
}

// SetAdvertLatLon pins the advertised location.
func (s *Session) SetAdvertLatLon(ctx context.Context, lat, lon int32) error {
	resp, err := s.roundTrip(ctx, frame.SetAdvertLatLon{Lat: lat, Lon: lon})
	return s.expectOk("set advert location", resp, err)
}

// SetTxPower sets transmit power in dBm.
func (s *Session) SetTxPower(ctx context.Context, dbm byte) error {
	resp, err := s.roundTrip(ctx, frame.SetTxPower{Dbm: dbm})
	return s.expectOk("set tx power", resp, err)
}

// SetRadioParams reconfigures the radio.
func (s *Session) SetRadioParams(ctx context.Context, freqKHz, bwHz uint32, sf, cr byte) error {
	resp, err := s.roundTrip(ctx, frame.SetRadioParams{FreqKHz: freqKHz, BwHz: bwHz, SF: sf, CR: cr})
	return s.expectOk("set radio params", resp, err)
}

// SetTuningParams adjusts mesh timing knobs.
func (s *Session) SetTuningParams(ctx context.Context, rxDelayBase, airtimeFactor uint32) error {
	resp, err := s.roundTrip(ctx, frame.SetTuningParams{RxDelayBase: rxDelayBase, AirtimeFactor: airtimeFactor})
	return s.expectOk("set tuning params", resp, err)
}

// SetOtherParams toggles manual contact adding.
func (s *Session) SetOtherParams(ctx context.Context, manualAddContacts bool) error {
	resp, err := s.roundTrip(ctx, frame.SetOtherParams{ManualAddContacts: manualAddContacts})
	return s.expectOk("set other params", resp, err)
}

// SendSelfAdvert broadcasts the node's advert.
func (s *Session) SendSelfAdvert(ctx context.Context, flood bool) error {
	resp, err := s.roundTrip(ctx, frame.SendSelfAdvert{Flood: flood})
	return s.expectOk("send self advert", resp, err)
}

// Channel reads one channel slot.
func (s *Session) Channel(ctx context.Context, idx byte) (frame.ChannelInfo, error) {
	resp, err := s.roundTrip(ctx, frame.GetChannel{Index: idx})
	if err != nil {
		return frame.ChannelInfo{}, fmt.Errorf("get channel: %w", err)
	}
	ci, ok := resp.(frame.ChannelInfo)
	if !ok {
		return frame.ChannelInfo{}, fmt.Errorf("get channel: %w: %T", ErrUnexpectedResponse, resp)
	}
	return ci, nil
}

// SetChannel writes one channel slot.
func (s *Session) SetChannel(ctx context.Context, idx byte, name string, secret [frame.SecretSize]byte) error {
	resp, err := s.roundTrip(ctx, frame.SetChannel{Index: idx, Name: name, Secret: secret})
	return s.expectOk("set channel", resp, err)
}

// SendText sends a direct message and, when the device assigns an ack
// code, registers it with the tracker for delivery confirmation.
func (s *Session) SendText(ctx context.Context, msg OutboundText) (SendReceipt, error) {
	if msg.SenderTimestamp == 0 {
		msg.SenderTimestamp = uint32(time.Now().Unix())
	}
	sent, err := s.sendTextAttempt(ctx, msg, 0)
	if err != nil {
		return SendReceipt{}, fmt.Errorf("send text: %w", err)
	}
	r := SendReceipt{
		MsgID:     uuid.NewString(),
		AckCode:   sent.AckCode,
		RouteType: sent.RouteType,
		Timeout:   time.Duration(sent.TimeoutMs) * time.Millisecond,
		Tracked:   sent.AckCode != 0 && s.tracker != nil,
	}
	if r.Tracked {
		s.tracker.Track(r.MsgID, msg, sent)
	}
	return r, nil
}

// SendChannelText sends a group message. Channel traffic carries no ack
// code and is never tracked.
func (s *Session) SendChannelText(ctx context.Context, idx, txtType byte, text string) error {
	cmd := frame.SendChannelTxtMsg{
		TxtType:    txtType,
		ChannelIdx: idx,
		Timestamp:  uint32(time.Now().Unix()),
		Text:       text,
	}
	resp, err := s.roundTrip(ctx, cmd)
	_, err = s.expectSent("send channel text", resp, err)
	return err
}

func (s *Session) sendTextAttempt(ctx context.Context, msg OutboundText, attempt byte) (frame.Sent, error) {
	cmd := frame.SendTxtMsg{
		TxtType:         msg.TxtType,
		Attempt:         attempt,
		SenderTimestamp: msg.SenderTimestamp,
		Prefix:          msg.prefix(),
		Text:            msg.Text,
	}
	resp, err := s.roundTrip(ctx, cmd)
	return s.expectSent("send text", resp, err)
}

// AddUpdateContact upserts one contact on the device.
func (s *Session) AddUpdateContact(ctx context.Context, c frame.ContactRecord) error {
	resp, err := s.roundTrip(ctx, frame.AddUpdateContact{Contact: c})
	return s.expectOk("add contact", resp, err)
}

// RemoveContact deletes one contact on the device.
func (s *Session) RemoveContact(ctx context.Context, key [frame.PublicKeySize]byte) error {
	resp, err := s.roundTrip(ctx, frame.RemoveContact{PublicKey: key})
	return s.expectOk("remove contact", resp, err)
}

// ResetPath forgets the stored route to a contact.
func (s *Session) ResetPath(ctx context.Context, key [frame.PublicKeySize]byte) error {
	return s.resetPath(ctx, key)
}

func (s *Session) resetPath(ctx context.Context, key [frame.PublicKeySize]byte) error {
	resp, err := s.roundTrip(ctx, frame.ResetPath{PublicKey: key})
	return s.expectOk("reset path", resp, err)
}

// ShareContact re-broadcasts a stored contact to the mesh.
func (s *Session) ShareContact(ctx context.Context, key [frame.PublicKeySize]byte) error {
	resp, err := s.roundTrip(ctx, frame.ShareContact{PublicKey: key})
	return s.expectOk("share contact", resp, err)
}

// ExportSelf fetches the node's own signed advert.
func (s *Session) ExportSelf(ctx context.Context) (frame.AdvertBlock, error) {
	return s.exportContact(ctx, frame.ExportContact{Self: true})
}

// ExportContact fetches the signed advert of a stored contact.
func (s *Session) ExportContact(ctx context.Context, key [frame.PublicKeySize]byte) (frame.AdvertBlock, error) {
	return s.exportContact(ctx, frame.ExportContact{PublicKey: key})
}

func (s *Session) exportContact(ctx context.Context, cmd frame.ExportContact) (frame.AdvertBlock, error) {
	resp, err := s.roundTrip(ctx, cmd)
	if err != nil {
		return frame.AdvertBlock{}, fmt.Errorf("export contact: %w", err)
	}
	ce, ok := resp.(frame.ContactExport)
	if !ok {
		return frame.AdvertBlock{}, fmt.Errorf("export contact: %w: %T", ErrUnexpectedResponse, resp)
	}
	return ce.Advert, nil
}

// ImportContact adds a contact from a signed advert blob.
func (s *Session) ImportContact(ctx context.Context, advert frame.AdvertBlock) error {
	resp, err := s.roundTrip(ctx, frame.ImportContact{Advert: advert})
	return s.expectOk("import contact", resp, err)
}

// ExportPrivateKey reads the device identity key pair.
func (s *Session) ExportPrivateKey(ctx context.Context) ([frame.PrivateKeySize]byte, error) {
	resp, err := s.roundTrip(ctx, frame.ExportPrivateKey{})
	if err != nil {
		return [frame.PrivateKeySize]byte{}, fmt.Errorf("export private key: %w", err)
	}
	pk, ok := resp.(frame.PrivateKey)
	if !ok {
		return [frame.PrivateKeySize]byte{}, fmt.Errorf("export private key: %w: %T", ErrUnexpectedResponse, resp)
	}
	return pk.Key, nil
}

// ImportPrivateKey replaces the device identity key pair.
func (s *Session) ImportPrivateKey(ctx context.Context, key [frame.PrivateKeySize]byte) error {
	resp, err := s.roundTrip(ctx, frame.ImportPrivateKey{Key: key})
	return s.expectOk("import private key", resp, err)
}

// Login authenticates against a remote node. Success arrives later as a
// LoginSuccess push.
func (s *Session) Login(ctx context.Context, prefix [frame.PrefixSize]byte, password string) (frame.Sent, error) {
	resp, err := s.roundTrip(ctx, frame.SendLogin{Prefix: prefix, Password: password})
	return s.expectSent("login", resp, err)
}

// StatusReq asks a remote node for its status blob; the answer arrives as
// a StatusResponse push.
func (s *Session) StatusReq(ctx context.Context, prefix [frame.PrefixSize]byte) (frame.Sent, error) {
	resp, err := s.roundTrip(ctx, frame.SendStatusReq{Prefix: prefix})
	return s.expectSent("status request", resp, err)
}

// TelemetryReq asks a remote node for telemetry; the answer arrives as a
// Telemetry push.
func (s *Session) TelemetryReq(ctx context.Context, prefix [frame.PrefixSize]byte) (frame.Sent, error) {
	resp, err := s.roundTrip(ctx, frame.SendTelemetryReq{Prefix: prefix})
	return s.expectSent("telemetry request", resp, err)
}

// BinaryReq sends a typed binary request to a remote node; the answer
// arrives as a BinaryResponse push.
func (s *Session) BinaryReq(ctx context.Context, prefix [frame.PrefixSize]byte, reqType byte, payload []byte) (frame.Sent, error) {
	resp, err := s.roundTrip(ctx, frame.SendBinaryReq{Prefix: prefix, ReqType: reqType, Payload: payload})
	return s.expectSent("binary request", resp, err)
}

// TracePath probes a route; the result arrives as a TraceData push.
func (s *Session) TracePath(ctx context.Context, tag, auth uint32, flags byte, path []byte) (frame.Sent, error) {
	resp, err := s.roundTrip(ctx, frame.SendTracePath{Tag: tag, Auth: auth, Flags: flags, Path: path})
	return s.expectSent("trace path", resp, err)
}

// SendRaw transmits an opaque payload.
func (s *Session) SendRaw(ctx context.Context, path, payload []byte) (frame.Sent, error) {
	resp, err := s.roundTrip(ctx, frame.SendRawData{Path: path, Payload: payload})
	return s.expectSent("send raw", resp, err)
}

// Reboot restarts the device. The link usually drops right after.
func (s *Session) Reboot(ctx context.Context) error {
	resp, err := s.roundTrip(ctx, frame.Reboot{})
	return s.expectOk("reboot", resp, err)
}

func mapCtxErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return common.ErrTimeout
	}
	return err
}
