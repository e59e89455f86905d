package cli

import (
	"bufio"
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/dmitrijs2005/mclink/internal/client/client"
	"github.com/dmitrijs2005/mclink/internal/client/config"
	"github.com/dmitrijs2005/mclink/internal/client/models"
	"github.com/dmitrijs2005/mclink/internal/client/services"
	"github.com/dmitrijs2005/mclink/internal/filex"
	"github.com/dmitrijs2005/mclink/internal/logging"
	"github.com/dmitrijs2005/mclink/internal/meshcore/frame"
	"github.com/dmitrijs2005/mclink/internal/meshcore/session"
	"github.com/dmitrijs2005/mclink/internal/meshcore/transport"

	_ "modernc.org/sqlite"
)

type Mode string

const (
	ModeLinked  Mode = "linked"
	ModeOffline Mode = "offline"
)

// nodeLink is the slice of the device service the commands use.
type nodeLink interface {
	Connect(ctx context.Context) (frame.SelfInfo, error)
	Connected() bool
	Close() error
	Self() frame.SelfInfo
	StartReconnectWatcher(ctx context.Context, interval time.Duration)
	Query(ctx context.Context) (frame.DeviceInfo, error)
	DeviceTime(ctx context.Context) (uint32, error)
	SetDeviceTime(ctx context.Context, epoch uint32) error
	Battery(ctx context.Context) (uint16, error)
	SetAdvertName(ctx context.Context, name string) error
	SendSelfAdvert(ctx context.Context, flood bool) error
	Channel(ctx context.Context, idx byte) (frame.ChannelInfo, error)
	SetChannelPassphrase(ctx context.Context, idx byte, name, passphrase string) error
	Login(ctx context.Context, prefix [frame.PrefixSize]byte, password string) (frame.Sent, error)
	StatusReq(ctx context.Context, prefix [frame.PrefixSize]byte) (frame.Sent, error)
	ExportSelf(ctx context.Context) (frame.AdvertBlock, error)
	ExportContact(ctx context.Context, key [frame.PublicKeySize]byte) (frame.AdvertBlock, error)
	ImportContact(ctx context.Context, advert frame.AdvertBlock) error
	Reboot(ctx context.Context) error
}

// contactBook is the slice of the contact service the commands use.
type contactBook interface {
	Sync(ctx context.Context) (services.SyncResult, error)
	List(ctx context.Context) ([]models.Contact, error)
	Resolve(ctx context.Context, query string) (*models.Contact, error)
}

// messenger is the slice of the message service the commands use.
type messenger interface {
	Send(ctx context.Context, contactKey []byte, text string) (*models.Message, error)
	SendChannel(ctx context.Context, idx byte, text string) (*models.Message, error)
	Drain(ctx context.Context) ([]models.Message, error)
	History(ctx context.Context, contactKey []byte, limit int) ([]models.Message, error)
	Recent(ctx context.Context, limit int) ([]models.Message, error)
	Watch(ctx context.Context)
}

type App struct {
	config   *config.Config
	logger   logging.Logger
	store    *client.Repositories
	device   nodeLink
	contacts contactBook
	messages messenger
	bus      *session.Bus
	Mode     Mode
	reader   *bufio.Reader
}

func NewApp(c *config.Config) (*App, error) {

	ctx := context.Background()

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if err := filex.EnsureParentDir(c.DatabaseDSN); err != nil {
		return nil, err
	}

	store, err := client.InitDatabase(ctx, c.DatabaseDSN)
	if err != nil {
		log.Printf("error initializing database: %s", err.Error())
		return nil, err
	}

	if c.FreshStart {
		if err := store.Reset(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		log.Println("Local mirror wiped")
	}

	ds := services.NewDeviceService(c.DeviceAddr, session.DefaultConfig(), store.Metadata, logger)
	cs := services.NewContactService(ds, store.Contacts, store.Metadata, logger)
	ms := services.NewMessageService(ds, store.Messages, store.Contacts, ds.Bus(), logger)

	return &App{
		config:   c,
		logger:   logger,
		store:    store,
		device:   ds,
		contacts: cs,
		messages: ms,
		bus:      ds.Bus(),
		reader:   bufio.NewReader(os.Stdin),
	}, nil
}

func (app *App) setMode(mode Mode) {
	if app.Mode != mode {
		app.Mode = mode
		log.Printf("Link is %s\n", mode)
	}
}

func (a *App) Run(ctx context.Context) {
	defer a.store.Close()
	defer a.device.Close()
	a.Root(ctx)
}

func (a *App) isLinked() bool {
	return a.device.Connected()
}

// StartLinkStatusWatcher follows the shared event bus until ctx ends. Link
// transitions flip the prompt mode; delivery outcomes and notable pushes
// are logged so they show up between prompts.
func (a *App) StartLinkStatusWatcher(ctx context.Context) {

	events, unsub := a.bus.Subscribe(16)
	defer unsub()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			a.applyEvent(ev)

		case <-ctx.Done():
			return
		}
	}
}

func (a *App) applyEvent(ev session.Event) {
	switch e := ev.(type) {
	case session.LinkStateEvent:
		switch e.State {
		case transport.StateReady:
			a.setMode(ModeLinked)
		case transport.StateDisconnected:
			a.setMode(ModeOffline)
		}

	case session.DeliveredEvent:
		log.Printf("Message delivered, round trip %v, attempts %d", e.RoundTrip, e.Attempts)

	case session.FailedEvent:
		log.Printf("Message not delivered after %d attempts", e.Attempts)

	case session.PushEvent:
		a.applyPush(e.Push)
	}
}

// applyPush surfaces the pushes a person at the prompt cares about. The
// rest stay on the bus for the gateway and the message watcher.
func (a *App) applyPush(p frame.Push) {
	switch p := p.(type) {
	case frame.Advert:
		log.Printf("Advert received from %x", p.PublicKey[:frame.PrefixSize])
	case frame.PathUpdated:
		log.Printf("Route updated for %x", p.PublicKey[:frame.PrefixSize])
	case frame.LoginSuccess:
		log.Printf("Remote login accepted, admin=%v", p.IsAdmin)
	case frame.StatusResponse:
		log.Printf("Status from %x: % x", p.Prefix, p.Payload)
	}
}
