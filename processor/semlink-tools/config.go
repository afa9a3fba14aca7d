package semlinktools

import (
	"fmt"
	"time"
)

// Config holds configuration for the semlink-tools worker
type Config struct {
	StreamName         string   `json:"stream_name"`
	Timeout            string   `json:"timeout"`
	ConsumerNameSuffix string   `json:"consumer_name_suffix"`
	HeartbeatInterval  string   `json:"heartbeat_interval"`
	Workers            int      `json:"workers"`
	QueueSize          int      `json:"queue_size"`
	Allowlist          []string `json:"allowlist"`
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.StreamName == "" {
		return fmt.Errorf("stream_name is required")
	}

	if c.Timeout != "" {
		d, err := time.ParseDuration(c.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout format: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("timeout must be positive")
		}
	}

	if c.HeartbeatInterval != "" {
		d, err := time.ParseDuration(c.HeartbeatInterval)
		if err != nil {
			return fmt.Errorf("invalid heartbeat_interval format: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("heartbeat_interval must be positive")
		}
	}

	if c.Workers < 0 || c.QueueSize < 0 {
		return fmt.Errorf("workers and queue_size must not be negative")
	}
	return nil
}

// DefaultConfig returns default configuration for the semlink-tools worker
func DefaultConfig() Config {
	return Config{
		StreamName:        "AGENT",
		Timeout:           "60s",
		HeartbeatInterval: "10s",
		Workers:           4,
		QueueSize:         100,
	}
}

func (c *Config) timeout() time.Duration {
	if d, err := time.ParseDuration(c.Timeout); err == nil && d > 0 {
		return d
	}
	return 60 * time.Second
}

func (c *Config) heartbeatInterval() time.Duration {
	if d, err := time.ParseDuration(c.HeartbeatInterval); err == nil && d > 0 {
		return d
	}
	return 10 * time.Second
}

func (c *Config) allowed(tool string) bool {
	if len(c.Allowlist) == 0 {
		return true
	}
	for _, name := range c.Allowlist {
		if name == tool {
			return true
		}
	}
	return false
}
