package db

import (
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Config holds MySQL/GORM configuration for the system of record.
type Config struct {
	// Connection Settings
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Database string `json:"database" yaml:"database"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`

	// Connection Pool Settings
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time" yaml:"conn_max_idle_time"`

	// MySQL Specific Settings
	Charset   string `json:"charset" yaml:"charset"`     // Default: utf8mb4
	Collation string `json:"collation" yaml:"collation"` // Default: utf8mb4_unicode_ci
	TimeZone  string `json:"timezone" yaml:"timezone"`   // Default: UTC

	// GORM Settings
	SkipDefaultTransaction bool          `json:"skip_default_transaction" yaml:"skip_default_transaction"`
	PrepareStmt            bool          `json:"prepare_stmt" yaml:"prepare_stmt"`
	QueryTimeout           time.Duration `json:"query_timeout" yaml:"query_timeout"`
	AutoMigrate            bool          `json:"auto_migrate" yaml:"auto_migrate"`

	// SSL Configuration
	SSL SSLConfig `json:"ssl" yaml:"ssl"`

	// Logging Configuration
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// SSLConfig holds SSL/TLS configuration for MySQL
type SSLConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	CertFile   string `json:"cert_file" yaml:"cert_file"`
	KeyFile    string `json:"key_file" yaml:"key_file"`
	CAFile     string `json:"ca_file" yaml:"ca_file"`
	SkipVerify bool   `json:"skip_verify" yaml:"skip_verify"` // Skip certificate verification (not recommended for production)
	ServerName string `json:"server_name" yaml:"server_name"`
}

// LoggingConfig controls GORM logging
type LoggingConfig struct {
	Level              string        `json:"level" yaml:"level"` // silent, error, warn, info
	SlowQueryThreshold time.Duration `json:"slow_query_threshold" yaml:"slow_query_threshold"`
}

// Manager owns the connection pool of the system of record.
type Manager struct {
	config *Config
	db     *gorm.DB
	log    zerolog.Logger
}
