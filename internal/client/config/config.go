package config

import "time"

// Config holds runtime settings for the companion client.
//
// Fields:
//   - DeviceAddr: host:port of the radio node's TCP bridge.
//   - DatabaseDSN: path of the local sqlite store.
//   - GatewayAddr: listen address of the websocket event gateway; empty
//     leaves the gateway off.
//   - ReconnectInterval: how often a dropped link is re-dialed.
//   - FreshStart: wipe the local mirror on startup. Flag-only, for
//     re-pairing with a different node.
//
// Units: ReconnectInterval is a time.Duration (e.g., 3*time.Second).
type Config struct {
	DeviceAddr        string
	DatabaseDSN       string
	GatewayAddr       string
	ReconnectInterval time.Duration
	FreshStart        bool
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DeviceAddr = "127.0.0.1:5000"
	c.DatabaseDSN = "data/client.db"
	c.ReconnectInterval = 3 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
