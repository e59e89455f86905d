package session

import "time"

// RetryConfig governs delivery retries for tracked messages.
type RetryConfig struct {
	// MaxAttempts is the total number of sends before a message is failed.
	MaxAttempts int
	// DirectAttempts is how many of those use the stored path; later
	// attempts reset the path and flood.
	DirectAttempts int
	// BackoffStep is multiplied by the attempt number to space retries.
	BackoffStep time.Duration
	// TimeoutFactor scales the device's delivery estimate into the ack
	// deadline.
	TimeoutFactor float64
}

// Config carries session tunables. Zero fields take defaults.
type Config struct {
	AppName string
	AppVer  byte

	// CommandTimeout bounds one command round trip when the caller's
	// context has no deadline of its own.
	CommandTimeout time.Duration
	// AckScanInterval is how often ack deadlines are checked.
	AckScanInterval time.Duration
	// EventBuffer sizes subscriber channels created by the session owner.
	EventBuffer int

	Retry RetryConfig
}

// DefaultConfig returns the tunables used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		AppName:         "mclink",
		AppVer:          1,
		CommandTimeout:  5 * time.Second,
		AckScanInterval: 100 * time.Millisecond,
		EventBuffer:     16,
		Retry: RetryConfig{
			MaxAttempts:    3,
			DirectAttempts: 2,
			BackoffStep:    200 * time.Millisecond,
			TimeoutFactor:  1.2,
		},
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.AppName == "" {
		c.AppName = def.AppName
	}
	if c.AppVer == 0 {
		c.AppVer = def.AppVer
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = def.CommandTimeout
	}
	if c.AckScanInterval <= 0 {
		c.AckScanInterval = def.AckScanInterval
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = def.EventBuffer
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = def.Retry.MaxAttempts
	}
	if c.Retry.DirectAttempts <= 0 {
		c.Retry.DirectAttempts = def.Retry.DirectAttempts
	}
	if c.Retry.BackoffStep <= 0 {
		c.Retry.BackoffStep = def.Retry.BackoffStep
	}
	if c.Retry.TimeoutFactor <= 0 {
		c.Retry.TimeoutFactor = def.Retry.TimeoutFactor
	}
	return c
}
