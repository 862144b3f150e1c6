package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	// SinkBuffer is the per-subscription delivery queue size; a
	// subscriber that falls this far behind is disconnected.
	SinkBuffer int `mapstructure:"sink_buffer" yaml:"sink_buffer"`

	// SessionBackoffMin/Max bound the retry delay for session backfill
	// after store unavailability or a lost subscription.
	SessionBackoffMin time.Duration `mapstructure:"session_backoff_min" yaml:"session_backoff_min"`
	SessionBackoffMax time.Duration `mapstructure:"session_backoff_max" yaml:"session_backoff_max"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		DatabasePath:      "linkchat.db",
		LogLevel:          "info",
		SinkBuffer:        64,
		SessionBackoffMin: 200 * time.Millisecond,
		SessionBackoffMax: 5 * time.Second,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.SinkBuffer != 0 {
		c.SinkBuffer = other.SinkBuffer
	}
	if other.SessionBackoffMin != 0 {
		c.SessionBackoffMin = other.SessionBackoffMin
	}
	if other.SessionBackoffMax != 0 {
		c.SessionBackoffMax = other.SessionBackoffMax
	}
}
