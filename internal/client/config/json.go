package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/mclink/internal/flagx"
	"github.com/dmitrijs2005/mclink/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify intervals either as strings like "3s"
// or as integer nanoseconds. After parsing, values are copied into the
// runtime Config.
type JsonConfig struct {
	DeviceAddr        string         `json:"device_addr"`
	DatabaseDSN       string         `json:"database_dsn"`
	GatewayAddr       string         `json:"gateway_addr"`
	ReconnectInterval timex.Duration `json:"reconnect_interval"`
}

// parseJson overlays Config with values loaded from a JSON file.
//
// The file path comes from the -c/-config flags (or MCLINK_CONFIG) via
// flagx.JsonConfigFlags(); when none is set, the function returns without
// touching Config. Read or unmarshal errors panic, matching the behavior of
// the flag stage.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	cfg.DeviceAddr = jc.DeviceAddr
	cfg.DatabaseDSN = jc.DatabaseDSN
	cfg.GatewayAddr = jc.GatewayAddr
	cfg.ReconnectInterval = time.Duration(jc.ReconnectInterval.Duration)
}
