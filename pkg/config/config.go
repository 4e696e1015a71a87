// Package config aggregates the per-package configurations of the service.
// Values are layered: package defaults, then an optional YAML file, then an
// optional .env file and SOCIALCACHE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ammar0144/socialcache/pkg/bus"
	"github.com/ammar0144/socialcache/pkg/db"
	"github.com/ammar0144/socialcache/pkg/queue"
	"github.com/ammar0144/socialcache/pkg/redis"
	"github.com/ammar0144/socialcache/pkg/worker"
)

const envPrefix = "SOCIALCACHE_"

// Mailer backends.
const (
	MailerLog  = "log"
	MailerSMTP = "smtp"
)

// Config is the configuration of one process, one section per component.
type Config struct {
	Redis redis.Config `json:"redis" yaml:"redis"`
	DB    db.Config    `json:"db" yaml:"db"`
	Queue queue.Config `json:"queue" yaml:"queue"`
	Bus   bus.Config   `json:"bus" yaml:"bus"`
	HTTP  HTTPConfig   `json:"http" yaml:"http"`
	Log   LogConfig    `json:"log" yaml:"log"`

	// Mailer is "log" or "smtp"
	Mailer string            `json:"mailer" yaml:"mailer"`
	SMTP   worker.SMTPConfig `json:"smtp" yaml:"smtp"`
}

// HTTPConfig controls the websocket and monitoring listener.
type HTTPConfig struct {
	Addr            string        `json:"addr" yaml:"addr"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// LogConfig selects the log level and sink.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Path   string `json:"path" yaml:"path"`
	Pretty bool   `json:"pretty" yaml:"pretty"`
}

// Default returns the defaults of every section.
func Default() *Config {
	return &Config{
		Redis:  *redis.DefaultConfig(),
		DB:     *db.DefaultConfig(),
		Queue:  *queue.DefaultConfig(),
		Bus:    *bus.DefaultConfig(),
		HTTP:   HTTPConfig{Addr: ":8080", ShutdownTimeout: 10 * time.Second},
		Log:    LogConfig{Level: "info"},
		Mailer: MailerLog,
	}
}

// Load builds the configuration. path may be empty to skip the YAML file;
// a missing .env file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Redis.Validate(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if err := c.DB.Validate(); err != nil {
		return fmt.Errorf("db: %w", err)
	}
	if err := c.Queue.Validate(); err != nil {
		return fmt.Errorf("queue: %w", err)
	}
	if err := c.Bus.Validate(); err != nil {
		return fmt.Errorf("bus: %w", err)
	}
	if c.HTTP.Addr == "" {
		return errors.New("http: addr is required")
	}
	switch c.Mailer {
	case MailerLog:
	case MailerSMTP:
		if c.SMTP.Host == "" || c.SMTP.Port <= 0 || c.SMTP.From == "" {
			return errors.New("smtp: host, port and from are required")
		}
	default:
		return fmt.Errorf("unknown mailer %q", c.Mailer)
	}
	return nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"REDIS_HOST":     &c.Redis.Host,
		"REDIS_PASSWORD": &c.Redis.Password,
		"DB_HOST":        &c.DB.Host,
		"DB_USER":        &c.DB.Username,
		"DB_PASSWORD":    &c.DB.Password,
		"DB_NAME":        &c.DB.Database,
		"HTTP_ADDR":      &c.HTTP.Addr,
		"LOG_LEVEL":      &c.Log.Level,
		"LOG_PATH":       &c.Log.Path,
		"MAILER":         &c.Mailer,
		"SMTP_HOST":      &c.SMTP.Host,
		"SMTP_USERNAME":  &c.SMTP.Username,
		"SMTP_PASSWORD":  &c.SMTP.Password,
		"SMTP_FROM":      &c.SMTP.From,
	}
	for key, target := range strs {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			*target = v
		}
	}

	ints := map[string]*int{
		"REDIS_PORT": &c.Redis.Port,
		"DB_PORT":    &c.DB.Port,
		"SMTP_PORT":  &c.SMTP.Port,
	}
	for key, target := range ints {
		v, ok := os.LookupEnv(envPrefix + key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, key, err)
		}
		*target = n
	}
	return nil
}

// String renders the effective configuration with secrets masked.
func (c *Config) String() string {
	var sb strings.Builder
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("  Redis: %s db=%d\n", c.Redis.GetAddr(), c.Redis.Database))
	sb.WriteString(fmt.Sprintf("  RedisPassword: %s\n", mask(c.Redis.Password)))
	sb.WriteString(fmt.Sprintf("  DB: %s@%s:%d/%s\n", c.DB.Username, c.DB.Host, c.DB.Port, c.DB.Database))
	sb.WriteString(fmt.Sprintf("  DBPassword: %s\n", mask(c.DB.Password)))
	sb.WriteString(fmt.Sprintf("  Queue: prefix=%s attempts=%d backoff=%s concurrency=%d\n",
		c.Queue.Prefix, c.Queue.Attempts, c.Queue.Backoff, c.Queue.Concurrency))
	sb.WriteString(fmt.Sprintf("  Bus: channel=%s\n", c.Bus.Channel))
	sb.WriteString(fmt.Sprintf("  HTTP: %s\n", c.HTTP.Addr))
	sb.WriteString(fmt.Sprintf("  Mailer: %s\n", c.Mailer))
	if c.Mailer == MailerSMTP {
		sb.WriteString(fmt.Sprintf("  SMTP: %s:%d from=%s\n", c.SMTP.Host, c.SMTP.Port, c.SMTP.From))
		sb.WriteString(fmt.Sprintf("  SMTPPassword: %s\n", mask(c.SMTP.Password)))
	}
	return sb.String()
}

func mask(secret string) string {
	if secret == "" {
		return "(empty)"
	}
	return "********"
}
