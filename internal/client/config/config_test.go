package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "127.0.0.1:5000", c.DeviceAddr)
	assert.Equal(t, "data/client.db", c.DatabaseDSN)
	assert.Empty(t, c.GatewayAddr)
	assert.Equal(t, 3*time.Second, c.ReconnectInterval)
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	t.Setenv("MCLINK_CONFIG", "")

	c := LoadConfig()

	require.NotNil(t, c, "LoadConfig must not return nil")

	assert.Equal(t, "127.0.0.1:5000", c.DeviceAddr)
	assert.Equal(t, "data/client.db", c.DatabaseDSN)
	assert.Equal(t, 3*time.Second, c.ReconnectInterval)
}
