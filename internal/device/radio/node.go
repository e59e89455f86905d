// Package radio simulates a companion radio node: the full command set over
// a contact table, channel slots, a mailbox and an ed25519 identity, with
// delivery confirmations arriving later as pushes, the way a real node
// reports them off the air.
package radio

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/dmitrijs2005/mclink/internal/cryptox"
	"github.com/dmitrijs2005/mclink/internal/logging"
	"github.com/dmitrijs2005/mclink/internal/meshcore/frame"
)

const (
	// FirmwareVersionCode is the protocol revision reported by DeviceQuery.
	FirmwareVersionCode = 3
	// MaxChannels is the number of group channel slots.
	MaxChannels = 8

	firmwareBuild = "11-Apr-2026"
	deviceModel   = "mclink simulator"
	deviceVersion = "v1.11.0"
)

// Config sets up a simulated node. Zero values fall back to defaults that
// mimic a stock European 869 MHz build.
type Config struct {
	Name     string
	Identity ed25519.PrivateKey

	FreqKHz    uint32
	BwHz       uint32
	SF         byte
	CR         byte
	TxPower    byte
	MaxTxPower byte
	Lat        int32
	Lon        int32

	MaxContacts int
	BatteryMV   uint16

	// AckDelay is the simulated over-the-air round trip before a delivery
	// confirmation push. DropRate is the fraction of confirmations that
	// never arrive.
	AckDelay time.Duration
	DropRate float64

	ManualAddContacts bool
	DisableKeyExport  bool
}

func (c *Config) withDefaults() {
	if c.Name == "" {
		c.Name = "mclink node"
	}
	if c.FreqKHz == 0 {
		c.FreqKHz = 869525
	}
	if c.BwHz == 0 {
		c.BwHz = 250000
	}
	if c.SF == 0 {
		c.SF = 10
	}
	if c.CR == 0 {
		c.CR = 5
	}
	if c.MaxTxPower == 0 {
		c.MaxTxPower = 30
	}
	if c.TxPower == 0 {
		c.TxPower = 22
	}
	if c.MaxContacts == 0 {
		c.MaxContacts = 100
	}
	if c.BatteryMV == 0 {
		c.BatteryMV = 4096
	}
	if c.AckDelay == 0 {
		c.AckDelay = 150 * time.Millisecond
	}
}

type channelSlot struct {
	name   string
	secret [frame.SecretSize]byte
}

type signSession struct {
	expected uint32
	buf      []byte
}

// Node holds all simulated device state. It outlives any single link, so an
// app that reconnects finds its contacts and mailbox intact.
type Node struct {
	logger logging.Logger
	pushes chan []byte

	mu            sync.Mutex
	name          string
	identity      ed25519.PrivateKey
	advLat        int32
	advLon        int32
	txPower       byte
	maxTxPower    byte
	freqKHz       uint32
	bwHz          uint32
	sf            byte
	cr            byte
	rxDelayBase   uint32
	airtimeFactor uint32
	manualAdd     bool
	batteryMV     uint16
	clockOffset   time.Duration

	contacts    map[[frame.PublicKeySize]byte]*frame.ContactRecord
	adverts     map[[frame.PublicKeySize]byte]frame.AdvertBlock
	maxContacts int

	channels [MaxChannels]channelSlot
	mailbox  []frame.Response

	signSessions map[uint32]*signSession

	disabled map[byte]bool

	ackDelay time.Duration
	dropRate float64

	clock     func() time.Time
	randFloat func() float64
}

// New builds a node. A nil identity in the config gets a freshly generated
// one.
func New(cfg Config, logger logging.Logger) (*Node, error) {
	cfg.withDefaults()
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if err := frame.ValidateRadioParams(cfg.FreqKHz, cfg.BwHz, cfg.SF, cfg.CR); err != nil {
		return nil, fmt.Errorf("node config: %w", err)
	}
	if err := frame.ValidateLatLon(cfg.Lat, cfg.Lon); err != nil {
		return nil, fmt.Errorf("node config: %w", err)
	}
	identity := cfg.Identity
	if identity == nil {
		var err error
		identity, err = GenerateIdentity()
		if err != nil {
			return nil, fmt.Errorf("node config: %w", err)
		}
	}
	if !ValidIdentity(identity) {
		return nil, errors.New("node config: identity is not a valid key pair")
	}

	n := &Node{
		logger:       logger.With("node", cfg.Name),
		pushes:       make(chan []byte, 64),
		name:         cfg.Name,
		identity:     identity,
		advLat:       cfg.Lat,
		advLon:       cfg.Lon,
		txPower:      cfg.TxPower,
		maxTxPower:   cfg.MaxTxPower,
		freqKHz:      cfg.FreqKHz,
		bwHz:         cfg.BwHz,
		sf:           cfg.SF,
		cr:           cfg.CR,
		manualAdd:    cfg.ManualAddContacts,
		batteryMV:    cfg.BatteryMV,
		contacts:     make(map[[frame.PublicKeySize]byte]*frame.ContactRecord),
		adverts:      make(map[[frame.PublicKeySize]byte]frame.AdvertBlock),
		maxContacts:  cfg.MaxContacts,
		signSessions: make(map[uint32]*signSession),
		disabled:     make(map[byte]bool),
		ackDelay:     cfg.AckDelay,
		dropRate:     cfg.DropRate,
		clock:        time.Now,
		randFloat:    rand.Float64,
	}
	if cfg.DisableKeyExport {
		n.disabled[frame.CmdExportPrivateKey] = true
		n.disabled[frame.CmdImportPrivateKey] = true
	}
	copy(n.channels[0].secret[:], cryptox.PublicChannelSecret())
	n.channels[0].name = "public"
	return n, nil
}

// Pushes delivers frames the node emits on its own: delivery confirmations,
// adverts, mailbox notifications. The channel is never closed; the server
// stops draining when the link drops.
func (n *Node) Pushes() <-chan []byte {
	return n.pushes
}

// HandleFrame processes one command frame and returns the response frames
// to write back, in order. Malformed input is answered with an Err frame,
// never dropped.
func (n *Node) HandleFrame(raw []byte) [][]byte {
	cmd, err := frame.DecodeCommand(raw)
	if err != nil {
		code := frame.ECodeIllegalArg
		if errors.Is(err, frame.ErrUnknownCommand) {
			code = frame.ECodeUnsupportedCmd
		}
		n.logger.Debug("rejecting frame", "error", err)
		return [][]byte{frame.EncodeDeviceError(code)}
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.disabled[cmd.Code()] {
		return n.encodeAll(frame.Disabled{})
	}
	resps, ecode := n.handle(cmd)
	if ecode != 0 {
		n.logger.Debug("command rejected", "code", cmd.Code(), "err_code", ecode)
		return [][]byte{frame.EncodeDeviceError(ecode)}
	}
	return n.encodeAll(resps...)
}

func (n *Node) encodeAll(resps ...frame.Response) [][]byte {
	out := make([][]byte, 0, len(resps))
	for _, r := range resps {
		b, err := frame.EncodeResponse(r)
		if err != nil {
			n.logger.Error("response encoding failed", "code", r.Code(), "error", err)
			return [][]byte{frame.EncodeDeviceError(frame.ECodeBadState)}
		}
		out = append(out, b)
	}
	return out
}

func (n *Node) handle(cmd frame.Command) ([]frame.Response, byte) {
	switch v := cmd.(type) {
	case frame.AppStart:
		n.logger.Info("app connected", "app", v.AppName, "app_ver", v.AppVer)
		return []frame.Response{n.selfInfo()}, 0
	case frame.DeviceQuery:
		return []frame.Response{frame.DeviceInfo{
			FirmwareVer:   FirmwareVersionCode,
			MaxContacts:   uint16(n.maxContacts),
			MaxChannels:   MaxChannels,
			FirmwareBuild: firmwareBuild,
			Model:         deviceModel,
			Version:       deviceVersion,
		}}, 0
	case frame.GetDeviceTime:
		return []frame.Response{frame.CurrTime{Epoch: uint32(n.now().Unix())}}, 0
	case frame.SetDeviceTime:
		return n.setDeviceTime(v)
	case frame.GetBatteryVoltage:
		return []frame.Response{frame.BatteryVoltage{Millivolts: n.batteryMV}}, 0
	case frame.SetAdvertName:
		return n.setAdvertName(v)
	case frame.SetAdvertLatLon:
		if frame.ValidateLatLon(v.Lat, v.Lon) != nil {
			return nil, frame.ECodeIllegalArg
		}
		n.advLat, n.advLon = v.Lat, v.Lon
		return okResp(), 0
	case frame.SetTxPower:
		if v.Dbm > n.maxTxPower {
			v.Dbm = n.maxTxPower
		}
		n.txPower = v.Dbm
		return okResp(), 0
	case frame.SetRadioParams:
		if frame.ValidateRadioParams(v.FreqKHz, v.BwHz, v.SF, v.CR) != nil {
			return nil, frame.ECodeIllegalArg
		}
		n.freqKHz, n.bwHz, n.sf, n.cr = v.FreqKHz, v.BwHz, v.SF, v.CR
		return okResp(), 0
	case frame.SetTuningParams:
		n.rxDelayBase, n.airtimeFactor = v.RxDelayBase, v.AirtimeFactor
		return okResp(), 0
	case frame.SetOtherParams:
		n.manualAdd = v.ManualAddContacts
		return okResp(), 0
	case frame.SendSelfAdvert:
		n.logger.Info("advert broadcast", "flood", v.Flood)
		return okResp(), 0
	case frame.Reboot:
		n.logger.Info("reboot requested")
		return okResp(), 0
	case frame.ExportPrivateKey:
		var key [frame.PrivateKeySize]byte
		copy(key[:], n.identity)
		return []frame.Response{frame.PrivateKey{Key: key}}, 0
	case frame.ImportPrivateKey:
		return n.importPrivateKey(v)
	case frame.SignStart:
		return n.signStart(v)
	case frame.SignData:
		return n.signData(v)
	case frame.SignFinish:
		return n.signFinish(v)

	case frame.GetContacts:
		return n.contactSync(v), 0
	case frame.AddUpdateContact:
		return n.addUpdateContact(v)
	case frame.RemoveContact:
		return n.removeContact(v)
	case frame.ResetPath:
		return n.resetPath(v)
	case frame.ShareContact:
		return n.shareContact(v)
	case frame.ExportContact:
		return n.exportContact(v)
	case frame.ImportContact:
		return n.importContact(v)

	case frame.GetChannel:
		return n.getChannel(v)
	case frame.SetChannel:
		return n.setChannel(v)

	case frame.SyncNextMessage:
		return n.syncNextMessage(), 0

	case frame.SendTxtMsg:
		return n.sendText(v)
	case frame.SendChannelTxtMsg:
		return n.sendChannelText(v)
	case frame.SendLogin:
		return n.sendLogin(v)
	case frame.SendStatusReq:
		return n.sendStatusReq(v)
	case frame.SendTelemetryReq:
		return n.sendTelemetryReq(v)
	case frame.SendBinaryReq:
		return n.sendBinaryReq(v)
	case frame.SendTracePath:
		return n.sendTracePath(v)
	case frame.SendRawData:
		return n.sendRawData(v)
	}
	return nil, frame.ECodeUnsupportedCmd
}

func okResp() []frame.Response {
	return []frame.Response{frame.Ok{}}
}

func (n *Node) selfInfo() frame.SelfInfo {
	return frame.SelfInfo{
		TxPower:           n.txPower,
		MaxTxPower:        n.maxTxPower,
		PublicKey:         n.publicKeyLocked(),
		AdvLat:            n.advLat,
		AdvLon:            n.advLon,
		ManualAddContacts: n.manualAdd,
		RadioFreqKHz:      n.freqKHz,
		RadioBwHz:         n.bwHz,
		RadioSF:           n.sf,
		RadioCR:           n.cr,
		Name:              n.name,
	}
}

func (n *Node) setDeviceTime(v frame.SetDeviceTime) ([]frame.Response, byte) {
	if v.Epoch == 0 {
		return nil, frame.ECodeIllegalArg
	}
	n.clockOffset = time.Unix(int64(v.Epoch), 0).Sub(n.clock())
	return okResp(), 0
}

func (n *Node) setAdvertName(v frame.SetAdvertName) ([]frame.Response, byte) {
	if v.Name == "" || len(v.Name) > frame.NameSize {
		return nil, frame.ECodeIllegalArg
	}
	n.name = v.Name
	return okResp(), 0
}

func (n *Node) importPrivateKey(v frame.ImportPrivateKey) ([]frame.Response, byte) {
	key := ed25519.PrivateKey(v.Key[:])
	if !ValidIdentity(key) {
		return nil, frame.ECodeIllegalArg
	}
	n.identity = key
	n.logger.Info("identity replaced")
	return okResp(), 0
}

func (n *Node) now() time.Time {
	return n.clock().Add(n.clockOffset)
}

// Name reports the current node name.
func (n *Node) Name() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.name
}

// PublicKey reports the node identity's public half.
func (n *Node) PublicKey() [frame.PublicKeySize]byte {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.publicKeyLocked()
}

func (n *Node) publicKeyLocked() [frame.PublicKeySize]byte {
	var pub [frame.PublicKeySize]byte
	copy(pub[:], n.identity[ed25519.SeedSize:])
	return pub
}

func (n *Node) emitPush(p frame.Push) {
	raw, err := frame.EncodePush(p)
	if err != nil {
		n.logger.Error("push encoding failed", "error", err)
		return
	}
	select {
	case n.pushes <- raw:
	default:
		n.logger.Warn("push dropped, buffer full", "code", raw[0])
	}
}
