package db

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/go-sql-driver/mysql"
)

// DefaultConfig returns a configuration for a local MySQL instance
func DefaultConfig() *Config {
	return &Config{
		Host:            "localhost",
		Port:            3306,
		Database:        "socialcache",
		Username:        "root",
		Charset:         "utf8mb4",
		Collation:       "utf8mb4_unicode_ci",
		TimeZone:        "UTC",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
		PrepareStmt:     true,
		QueryTimeout:    30 * time.Second,
		AutoMigrate:     true,
		Logging: LoggingConfig{
			Level:              "error",
			SlowQueryThreshold: 200 * time.Millisecond,
		},
	}
}

// Validate checks if the database configuration is valid
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("database port must be between 1 and 65535, got %d", c.Port)
	}
	if c.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Username == "" {
		return fmt.Errorf("database username is required")
	}
	if c.MaxOpenConns < 1 {
		return fmt.Errorf("max_open_conns must be at least 1")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return fmt.Errorf("max_idle_conns cannot be greater than max_open_conns")
	}

	if c.SSL.Enabled && !c.SSL.SkipVerify {
		if err := c.SSL.check(); err != nil {
			return fmt.Errorf("tls: %w", err)
		}
	}

	return nil
}

func (s SSLConfig) check() error {
	if s.CAFile != "" {
		if _, err := os.Stat(s.CAFile); err != nil {
			return fmt.Errorf("ca file: %w", err)
		}
	}
	if (s.CertFile == "") != (s.KeyFile == "") {
		return fmt.Errorf("cert_file and key_file must be set together")
	}
	for _, f := range []string{s.CertFile, s.KeyFile} {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); err != nil {
			return fmt.Errorf("client certificate: %w", err)
		}
	}
	return nil
}

// DSN builds the go-sql-driver connection string. With SSL enabled and
// verification on, the TLS config is registered with the driver under a
// name derived from the certificate paths, so equal configs share it.
func (c *Config) DSN() (string, error) {
	cfg := mysql.NewConfig()
	cfg.User = c.Username
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = c.Host + ":" + strconv.Itoa(c.Port)
	cfg.DBName = c.Database
	cfg.Collation = c.Collation
	cfg.Loc = location(c.TimeZone)
	cfg.Params = map[string]string{"charset": c.charset()}
	cfg.ParseTime = true

	if !c.SSL.Enabled {
		return cfg.FormatDSN(), nil
	}
	if c.SSL.SkipVerify {
		cfg.TLSConfig = "skip-verify"
		return cfg.FormatDSN(), nil
	}

	tlsConfig, err := c.SSL.build()
	if err != nil {
		return "", err
	}
	name := "socialcache_" + strconv.FormatUint(xxhash.Sum64String(c.SSL.CAFile+"|"+c.SSL.CertFile+"|"+c.SSL.KeyFile+"|"+c.SSL.ServerName), 36)
	if err := mysql.RegisterTLSConfig(name, tlsConfig); err != nil {
		return "", fmt.Errorf("register tls config: %w", err)
	}
	cfg.TLSConfig = name
	return cfg.FormatDSN(), nil
}

func (s SSLConfig) build() (*tls.Config, error) {
	tlsConfig := &tls.Config{ServerName: s.ServerName}
	if s.CAFile != "" {
		pem, err := os.ReadFile(s.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read ca file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("ca file %s holds no certificate", s.CAFile)
		}
		tlsConfig.RootCAs = pool
	}
	if s.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(s.CertFile, s.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	return tlsConfig, nil
}

// location falls back to UTC for empty or unknown zone names.
func location(tz string) *time.Location {
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) charset() string {
	if c.Charset == "" {
		return "utf8mb4"
	}
	return c.Charset
}
