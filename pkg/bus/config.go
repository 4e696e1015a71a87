package bus

import (
	"fmt"
	"time"
)

// Config holds the fan-out backbone and websocket hub settings.
type Config struct {
	// Pub/sub channel shared by every process
	Channel string `json:"channel" yaml:"channel"`

	// Per-client send buffer; events beyond it are dropped for that client
	ClientBuffer int `json:"client_buffer" yaml:"client_buffer"`

	WriteTimeout   time.Duration `json:"write_timeout" yaml:"write_timeout"`
	PublishTimeout time.Duration `json:"publish_timeout" yaml:"publish_timeout"`
}

// DefaultConfig returns the bus defaults
func DefaultConfig() *Config {
	return &Config{
		Channel:        "socialcache:events",
		ClientBuffer:   64,
		WriteTimeout:   10 * time.Second,
		PublishTimeout: 5 * time.Second,
	}
}

// Validate checks if the bus configuration is valid
func (c *Config) Validate() error {
	if c.Channel == "" {
		return fmt.Errorf("bus channel is required")
	}
	if c.ClientBuffer < 1 {
		return fmt.Errorf("client buffer must be at least 1")
	}
	if c.WriteTimeout <= 0 || c.PublishTimeout <= 0 {
		return fmt.Errorf("write timeout and publish timeout must be positive")
	}
	return nil
}
