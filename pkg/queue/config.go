package queue

import (
	"fmt"
	"time"
)

// Config holds the retry, concurrency and polling policy shared by all queues.
type Config struct {
	// Key prefix of every queue structure in Redis
	Prefix string `json:"prefix" yaml:"prefix"`

	// Retry Policy (fixed backoff)
	Attempts int           `json:"attempts" yaml:"attempts"`
	Backoff  time.Duration `json:"backoff" yaml:"backoff"`

	// Worker concurrency per job name, with per-name overrides
	Concurrency    int            `json:"concurrency" yaml:"concurrency"`
	JobConcurrency map[string]int `json:"job_concurrency" yaml:"job_concurrency"`

	// Stall monitor
	StallTimeout  time.Duration `json:"stall_timeout" yaml:"stall_timeout"`
	StallInterval time.Duration `json:"stall_interval" yaml:"stall_interval"`

	// Polling
	PollInterval    time.Duration `json:"poll_interval" yaml:"poll_interval"`
	PromoteInterval time.Duration `json:"promote_interval" yaml:"promote_interval"`
	EnqueueTimeout  time.Duration `json:"enqueue_timeout" yaml:"enqueue_timeout"`
}

// DefaultConfig returns 3 attempts with a fixed 5s backoff and 5 workers
// per job name.
func DefaultConfig() *Config {
	return &Config{
		Prefix:          "socialcache:queue",
		Attempts:        3,
		Backoff:         5 * time.Second,
		Concurrency:     5,
		StallTimeout:    30 * time.Second,
		StallInterval:   5 * time.Second,
		PollInterval:    250 * time.Millisecond,
		PromoteInterval: 500 * time.Millisecond,
		EnqueueTimeout:  5 * time.Second,
	}
}

// Validate checks if the queue configuration is valid
func (c *Config) Validate() error {
	if c.Prefix == "" {
		return fmt.Errorf("queue prefix is required")
	}
	if c.Attempts < 1 {
		return fmt.Errorf("attempts must be at least 1")
	}
	if c.Backoff < 0 {
		return fmt.Errorf("backoff cannot be negative")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1")
	}
	for name, n := range c.JobConcurrency {
		if n < 1 {
			return fmt.Errorf("concurrency of %s must be at least 1", name)
		}
	}
	if c.PollInterval <= 0 || c.PromoteInterval <= 0 || c.StallInterval <= 0 {
		return fmt.Errorf("poll interval, promote interval and stall interval must be positive")
	}
	if c.StallTimeout <= 0 {
		return fmt.Errorf("stall timeout must be positive")
	}
	return nil
}

// concurrencyOf returns the worker count of one job name.
func (c *Config) concurrencyOf(name Name) int {
	if n, ok := c.JobConcurrency[string(name)]; ok {
		return n
	}
	return c.Concurrency
}
