package config

import "time"

// Config holds runtime settings for the simulated radio node.
//
// Fields:
//   - Addr: TCP listen address for companion app links.
//   - Name: advertised node name.
//   - IdentityFile: path of the persisted ed25519 key pair; empty means a
//     fresh identity every run.
//   - FreqKHz/BwHz/SF/CR: LoRa radio parameters.
//   - TxPower/MaxTxPower: transmit power and its cap, dBm.
//   - Lat/Lon: advertised location, degrees x 1e6.
//   - MaxContacts: contact table capacity.
//   - BatteryMV: reported battery level, millivolts.
//   - AckDelay: simulated round trip before a delivery confirmation.
//   - DropRate: fraction of confirmations that never arrive, 0..1.
//   - ManualAddContacts: heard adverts need explicit import.
//   - DisableKeyExport: switch off the identity export/import commands.
type Config struct {
	Addr         string
	Name         string
	IdentityFile string

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
	AckDelay    time.Duration
	DropRate    float64

	ManualAddContacts bool
	DisableKeyExport  bool
}

// LoadDefaults populates Config with a stock European 869 MHz node listening
// on localhost.
func (c *Config) LoadDefaults() {
	c.Addr = "127.0.0.1:5000"
	c.Name = "mclink node"
	c.IdentityFile = "data/identity.key"
	c.FreqKHz = 869525
	c.BwHz = 250000
	c.SF = 10
	c.CR = 5
	c.TxPower = 22
	c.MaxTxPower = 30
	c.MaxContacts = 100
	c.BatteryMV = 4096
	c.AckDelay = 150 * time.Millisecond
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
