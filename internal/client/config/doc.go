// Package config loads runtime configuration for the companion client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c/-config or MCLINK_CONFIG.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string   address:port of the radio node
//	-d string   sqlite database path
//	-g string   websocket gateway listen address (empty disables)
//	-i int      reconnect interval (seconds)
//	-fresh      wipe the local mirror on startup
//
// # JSON schema
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "3s" or integer nanoseconds:
//
//	{
//	  "device_addr": "127.0.0.1:5000",
//	  "database_dsn": "data/client.db",
//	  "gateway_addr": "127.0.0.1:8080",
//	  "reconnect_interval": "3s"
//	}
package config
