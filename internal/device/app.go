// Package device initializes and runs the simulated node. It loads the
// node identity, assembles the radio state machine and serves companion
// links over TCP until the process is signalled to stop.
package device

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/mclink/internal/device/config"
	"github.com/dmitrijs2005/mclink/internal/device/radio"
	"github.com/dmitrijs2005/mclink/internal/device/server"
	"github.com/dmitrijs2005/mclink/internal/logging"
)

type App struct {
	config *config.Config
	logger logging.Logger
	node   *radio.Node
	server *server.Server
}

func NewApp(c *config.Config) (*App, error) {

	slog := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(slog)

	identity, err := radio.LoadOrCreateIdentity(c.IdentityFile, logger)
	if err != nil {
		return nil, fmt.Errorf("identity init error: %w", err)
	}

	node, err := radio.New(radio.Config{
		Name:              c.Name,
		Identity:          identity,
		FreqKHz:           c.FreqKHz,
		BwHz:              c.BwHz,
		SF:                c.SF,
		CR:                c.CR,
		TxPower:           c.TxPower,
		MaxTxPower:        c.MaxTxPower,
		Lat:               c.Lat,
		Lon:               c.Lon,
		MaxContacts:       c.MaxContacts,
		BatteryMV:         c.BatteryMV,
		AckDelay:          c.AckDelay,
		DropRate:          c.DropRate,
		ManualAddContacts: c.ManualAddContacts,
		DisableKeyExport:  c.DisableKeyExport,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("node init error: %w", err)
	}

	srv := server.New(c.Addr, node, logger)

	return &App{config: c, logger: logger, node: node, server: srv}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startNodeServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.server.Run(ctx); err != nil {
		app.logger.Error(err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info("Starting node...", "name", app.node.Name(), "address", app.config.Addr)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startNodeServer(ctx, cancelFunc)
	}()

	wg.Wait()

}
