package config

import (
	"flag"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{name: "all flags set", args: []string{"cmd",
			"-a", "0.0.0.0:5001", "-n", "bench node", "-k", "bench/identity.key",
			"-f", "867500", "-b", "125000", "-s", "12", "-r", "8", "-p", "17",
			"-m", "32", "-d", "40",
		}, expectPanic: false,
			expected: &Config{
				Addr:         "0.0.0.0:5001",
				Name:         "bench node",
				IdentityFile: "bench/identity.key",
				FreqKHz:      867500,
				BwHz:         125000,
				SF:           12,
				CR:           8,
				TxPower:      17,
				MaxContacts:  32,
				AckDelay:     40 * time.Millisecond,
			}},
		{name: "no flags keep existing values", args: []string{"cmd"},
			expectPanic: false,
			expected:    &Config{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.PanicOnError)

			os.Args = tt.args

			config := &Config{}

			if !tt.expectPanic {
				require.NotPanics(t, func() { parseFlags(config) })
				assert.Empty(t, cmp.Diff(config, tt.expected))
			} else {
				require.Panics(t, func() { parseFlags(config) })
			}
		})
	}
}
