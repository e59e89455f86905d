package cli

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"

	"github.com/dmitrijs2005/mclink/internal/client/gateway"
)

func (a *App) getStatus() string {
	s := ""
	if name := a.device.Self().Name; name != "" {
		s = name + " "
	}
	if a.Mode != "" {
		s = s + string(a.Mode)
	}
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}

// Root dials the node, starts the background watchers and runs the REPL
// until the user exits or ctx ends.
func (a *App) Root(ctx context.Context) {

	log.Println("Welcome to the mclink companion CLI (type 'help' for commands)")
	scanner := bufio.NewScanner(os.Stdin)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if self, err := a.device.Connect(ctx); err != nil {
		log.Printf("Node unreachable, retrying in background: %s", err.Error())
		a.setMode(ModeOffline)
	} else {
		log.Printf("Connected to %q", self.Name)
		a.setMode(ModeLinked)
	}

	go a.StartLinkStatusWatcher(ctx)
	go a.messages.Watch(ctx)
	go a.device.StartReconnectWatcher(ctx, a.config.ReconnectInterval)

	if a.config.GatewayAddr != "" {
		hub := gateway.NewHub(a.logger)
		srv := gateway.NewServer(a.config.GatewayAddr, hub, a.logger)
		go hub.Run(ctx)
		go gateway.Pump(ctx, a.bus, hub)
		go func() {
			if err := srv.Run(ctx); err != nil {
				a.logger.Error("gateway stopped", "error", err)
			}
		}()
	}

	runREPL(ctx, a, a.getStatus, scanner)
}
