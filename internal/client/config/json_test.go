package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	t.Setenv("MCLINK_CONFIG", "")

	dir := t.TempDir()
	pathFlag := writeTempJSON(t, dir, "flag.json", map[string]any{
		"device_addr":        "192.168.1.20:5000",
		"database_dsn":       "bench/client.db",
		"gateway_addr":       "0.0.0.0:8080",
		"reconnect_interval": "10s",
	})

	t.Run("loads from json", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", pathFlag}

		cfg := &Config{}
		parseJson(cfg)

		assert.Equal(t, "192.168.1.20:5000", cfg.DeviceAddr)
		assert.Equal(t, "bench/client.db", cfg.DatabaseDSN)
		assert.Equal(t, "0.0.0.0:8080", cfg.GatewayAddr)
		assert.Equal(t, 10*time.Second, cfg.ReconnectInterval)
	})

	t.Run("no config flag, no changes", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{DeviceAddr: "kept:1234", DatabaseDSN: "kept.db", ReconnectInterval: 2 * time.Second}
		parseJson(cfg)

		assert.Equal(t, "kept:1234", cfg.DeviceAddr)
		assert.Equal(t, "kept.db", cfg.DatabaseDSN)
		assert.Equal(t, 2*time.Second, cfg.ReconnectInterval)
	})

	t.Run("invalid JSON panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		os.Args = []string{"testbin", "-config", bad}

		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg) })
	})

	t.Run("missing file panics", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", filepath.Join(dir, "nope.json")}

		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg) })
	})
}
