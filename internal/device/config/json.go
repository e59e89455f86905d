package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/mclink/internal/flagx"
	"github.com/dmitrijs2005/mclink/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so the ack delay can be given either as a string like
// "150ms" or as integer nanoseconds. After parsing, values are copied into
// the runtime Config.
type JsonConfig struct {
	Addr              string         `json:"addr"`
	Name              string         `json:"name"`
	IdentityFile      string         `json:"identity_file"`
	FreqKHz           uint32         `json:"freq_khz"`
	BwHz              uint32         `json:"bw_hz"`
	SF                byte           `json:"sf"`
	CR                byte           `json:"cr"`
	TxPower           byte           `json:"tx_power"`
	MaxTxPower        byte           `json:"max_tx_power"`
	Lat               int32          `json:"lat"`
	Lon               int32          `json:"lon"`
	MaxContacts       int            `json:"max_contacts"`
	BatteryMV         uint16         `json:"battery_mv"`
	AckDelay          timex.Duration `json:"ack_delay"`
	DropRate          float64        `json:"drop_rate"`
	ManualAddContacts bool           `json:"manual_add_contacts"`
	DisableKeyExport  bool           `json:"disable_key_export"`
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

	cfg.Addr = jc.Addr
	cfg.Name = jc.Name
	cfg.IdentityFile = jc.IdentityFile
	cfg.FreqKHz = jc.FreqKHz
	cfg.BwHz = jc.BwHz
	cfg.SF = jc.SF
	cfg.CR = jc.CR
	cfg.TxPower = jc.TxPower
	cfg.MaxTxPower = jc.MaxTxPower
	cfg.Lat = jc.Lat
	cfg.Lon = jc.Lon
	cfg.MaxContacts = jc.MaxContacts
	cfg.BatteryMV = jc.BatteryMV
	cfg.AckDelay = time.Duration(jc.AckDelay.Duration)
	cfg.DropRate = jc.DropRate
	cfg.ManualAddContacts = jc.ManualAddContacts
	cfg.DisableKeyExport = jc.DisableKeyExport
}
