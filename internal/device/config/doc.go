// Package config loads runtime configuration for the simulated radio node.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c/-config or MCLINK_CONFIG.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string   TCP listen address
//	-n string   node name
//	-k string   identity key file path
//	-f int      radio frequency, kHz
//	-b int      radio bandwidth, Hz
//	-s int      spreading factor
//	-r int      coding rate
//	-p int      transmit power, dBm
//	-m int      contact table capacity
//	-d int      simulated ack delay, milliseconds
//
// Fields without a flag (location, battery level, drop rate, the manual-add
// and key-export switches) are set through the JSON file:
//
//	{
//	  "addr": "127.0.0.1:5000",
//	  "name": "bench node",
//	  "identity_file": "data/identity.key",
//	  "freq_khz": 869525,
//	  "bw_hz": 250000,
//	  "sf": 10,
//	  "cr": 5,
//	  "tx_power": 22,
//	  "max_tx_power": 30,
//	  "lat": 56946000,
//	  "lon": 24105900,
//	  "max_contacts": 100,
//	  "battery_mv": 4096,
//	  "ack_delay": "150ms",
//	  "drop_rate": 0.05,
//	  "manual_add_contacts": false,
//	  "disable_key_export": false
//	}
package config
