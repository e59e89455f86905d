package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/mclink/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   address and port of the radio node
//	-d string   sqlite database path
//	-g string   websocket gateway listen address
//	-i int      reconnect interval in seconds (default from Config)
//	-fresh      wipe the local mirror on startup
//
// Note: The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	// Filter args to include only those handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-g", "-i", "-fresh"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.DeviceAddr, "a", cfg.DeviceAddr, "address and port of the radio node")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "sqlite database path")
	fs.StringVar(&cfg.GatewayAddr, "g", cfg.GatewayAddr, "websocket gateway listen address")
	reconnectInterval := fs.Int("i", int(cfg.ReconnectInterval.Seconds()), "reconnect interval (in seconds)")
	fs.BoolVar(&cfg.FreshStart, "fresh", cfg.FreshStart, "wipe the local mirror on startup")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.ReconnectInterval = time.Duration(*reconnectInterval) * time.Second
}
