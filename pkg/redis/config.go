package redis

import (
	"fmt"
	"time"
)

// Config holds Redis cache configuration
type Config struct {
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Redis Connection
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Password string `json:"password" yaml:"password"`
	Database int    `json:"database" yaml:"database"`

	// Connection Pool
	PoolSize     int           `json:"pool_size" yaml:"pool_size"`
	MinIdleConns int           `json:"min_idle_conns" yaml:"min_idle_conns"`
	MaxConnAge   time.Duration `json:"max_conn_age" yaml:"max_conn_age"`
	PoolTimeout  time.Duration `json:"pool_timeout" yaml:"pool_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout" yaml:"idle_timeout"`

	// Performance
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`
	DialTimeout  time.Duration `json:"dial_timeout" yaml:"dial_timeout"`

	// Clustering (for Redis Cluster)
	Cluster ClusterConfig `json:"cluster" yaml:"cluster"`

	// Optimistic transaction retries for read-modify-write updates (WATCH/MULTI)
	MaxTxRetries int `json:"max_tx_retries" yaml:"max_tx_retries"`

	// Cache Metrics
	EnableMetrics bool `json:"enable_metrics" yaml:"enable_metrics"`

	// Cache Logging
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// ClusterConfig for Redis Cluster setup
type ClusterConfig struct {
	Enabled   bool     `json:"enabled" yaml:"enabled"`
	Addresses []string `json:"addresses" yaml:"addresses"`
	Username  string   `json:"username" yaml:"username"`
	Password  string   `json:"password" yaml:"password"`
}

// LoggingConfig controls Redis cache logging behavior
type LoggingConfig struct {
	LogCacheHits   bool `json:"log_cache_hits" yaml:"log_cache_hits"`
	LogCacheMisses bool `json:"log_cache_misses" yaml:"log_cache_misses"`
	LogReconnects  bool `json:"log_reconnects" yaml:"log_reconnects"`
}

// DefaultConfig returns a Redis configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		Host:          "localhost",
		Port:          6379,
		Database:      0,
		PoolSize:      10,
		MinIdleConns:  3,
		MaxConnAge:    time.Hour,
		PoolTimeout:   time.Second * 4,
		IdleTimeout:   time.Minute * 5,
		ReadTimeout:   time.Second * 3,
		WriteTimeout:  time.Second * 3,
		DialTimeout:   time.Second * 5,
		MaxTxRetries:  10,
		EnableMetrics: true,
		Cluster: ClusterConfig{
			Enabled: false,
		},
		Logging: LoggingConfig{
			LogCacheHits:   false,
			LogCacheMisses: true,
			LogReconnects:  true,
		},
	}
}

// Validate checks if the Redis configuration is valid
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil // Skip validation if cache is disabled
	}

	if c.IsClusterMode() {
		if c.PoolSize < 1 {
			return fmt.Errorf("pool_size must be at least 1")
		}
		return nil
	}

	if c.Host == "" {
		return fmt.Errorf("redis host is required when cache is enabled")
	}
	if c.Port <= 0 {
		return fmt.Errorf("redis port must be positive")
	}
	if c.PoolSize < 1 {
		return fmt.Errorf("pool_size must be at least 1")
	}
	if c.MaxTxRetries < 1 {
		return fmt.Errorf("max_tx_retries must be at least 1")
	}

	return nil
}

// GetAddr returns the Redis connection address
func (c *Config) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsClusterMode returns true if Redis cluster is enabled
func (c *Config) IsClusterMode() bool {
	return c.Cluster.Enabled && len(c.Cluster.Addresses) > 0
}
