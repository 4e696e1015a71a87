package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ammar0144/socialcache/pkg/model"
)

// Models lists every table of the system of record.
var Models = []interface{}{
	&model.Auth{},
	&model.User{},
	&model.Post{},
	&model.Comment{},
	&model.Reaction{},
	&model.Follower{},
	&model.Block{},
	&model.Image{},
	&model.Notification{},
	&model.Message{},
	&model.Conversation{},
}

// NewManager connects to MySQL with full configuration.
func NewManager(config *Config, log zerolog.Logger) (*Manager, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	dsn, err := config.DSN()
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return Open(mysql.Open(dsn), config, log)
}

// Open builds a Manager over any GORM dialector. The pool settings of config
// are applied; connection validation is left to the caller.
func Open(dialector gorm.Dialector, config *Config, log zerolog.Logger) (*Manager, error) {
	if config == nil {
		config = DefaultConfig()
	}

	gormConfig := &gorm.Config{
		SkipDefaultTransaction: config.SkipDefaultTransaction,
		PrepareStmt:            config.PrepareStmt,
		Logger:                 newGormLogger(log, config.Logging),
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	return &Manager{
		config: config,
		db:     db,
		log:    log,
	}, nil
}

// Migrate creates or updates the record tables.
func (m *Manager) Migrate(ctx context.Context) error {
	if err := m.db.WithContext(ctx).AutoMigrate(Models...); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	m.log.Info().Int("tables", len(Models)).Msg("schema migrated")
	return nil
}

// DB returns the GORM database instance
func (m *Manager) DB() *gorm.DB {
	return m.db
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		sqlDB, err := m.db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}

// Config returns the manager's configuration
func (m *Manager) Config() *Config {
	return m.config
}

// Ping tests the database connection
func (m *Manager) Ping(ctx context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Stats returns database connection statistics
func (m *Manager) Stats() (sql.DBStats, error) {
	sqlDB, err := m.db.DB()
	if err != nil {
		return sql.DBStats{}, err
	}
	return sqlDB.Stats(), nil
}

// gormWriter forwards GORM log lines to zerolog.
type gormWriter struct {
	log zerolog.Logger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.log.Debug().Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func newGormLogger(log zerolog.Logger, config LoggingConfig) logger.Interface {
	threshold := config.SlowQueryThreshold
	if threshold <= 0 {
		threshold = 200 * time.Millisecond
	}
	return logger.New(gormWriter{log: log}, logger.Config{
		SlowThreshold:             threshold,
		LogLevel:                  getLogLevel(config.Level),
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

func getLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "info":
		return logger.Info
	case "warn":
		return logger.Warn
	case "error":
		return logger.Error
	case "silent":
		return logger.Silent
	default:
		return logger.Error // Default to error
	}
}
