// Package socialcache assembles the cache-ahead write pipeline of a social
// network backend: a Redis cache that serves reads immediately, durable
// Redis-backed job queues that apply each mutation to the MySQL system of
// record, and a pub/sub fan-out bus that pushes events to websocket clients
// of every process.
package socialcache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/ammar0144/socialcache/pkg/bus"
	"github.com/ammar0144/socialcache/pkg/config"
	"github.com/ammar0144/socialcache/pkg/db"
	"github.com/ammar0144/socialcache/pkg/logger"
	"github.com/ammar0144/socialcache/pkg/queue"
	"github.com/ammar0144/socialcache/pkg/redis"
	"github.com/ammar0144/socialcache/pkg/repository"
	"github.com/ammar0144/socialcache/pkg/service"
	"github.com/ammar0144/socialcache/pkg/worker"
)

// Config represents the aggregated application configuration
type Config = config.Config

// Service runs the feature pipelines
type Service = service.Service

const healthTimeout = 2 * time.Second

// App owns the long-lived components of one process.
type App struct {
	config  *config.Config
	log     zerolog.Logger
	redis   *redis.Manager
	db      *db.Manager
	store   *repository.Store
	queues  *queue.Registry
	bus     *bus.Bus
	service *service.Service
}

// New connects to Redis and MySQL and assembles the app. The schema is
// migrated when the db config asks for it.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	redisManager, err := redis.NewManager(&cfg.Redis, logger.Component(log, "redis"))
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	dbManager, err := db.NewManager(&cfg.DB, logger.Component(log, "db"))
	if err != nil {
		_ = redisManager.Close()
		return nil, fmt.Errorf("db: %w", err)
	}
	if cfg.DB.AutoMigrate {
		if err := dbManager.Migrate(ctx); err != nil {
			_ = redisManager.Close()
			_ = dbManager.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	app, err := Assemble(cfg, redisManager, dbManager, log)
	if err != nil {
		_ = redisManager.Close()
		_ = dbManager.Close()
		return nil, err
	}
	return app, nil
}

// Assemble builds the app on managers the caller has already opened. The
// app takes ownership of both.
func Assemble(cfg *config.Config, redisManager *redis.Manager, dbManager *db.Manager, log zerolog.Logger) (*App, error) {
	store := repository.NewStore(dbManager, logger.Component(log, "store"))

	queues, err := queue.NewRegistry(redisManager, &cfg.Queue, logger.Component(log, "queue"))
	if err != nil {
		return nil, fmt.Errorf("queue: %w", err)
	}

	var mailer worker.Mailer
	switch cfg.Mailer {
	case config.MailerSMTP:
		mailer = worker.NewSMTPMailer(cfg.SMTP)
	default:
		mailer = worker.NewLogMailer(logger.Component(log, "mailer"))
	}
	worker.New(store, mailer, logger.Component(log, "worker")).Register(queues)

	fanout, err := bus.New(redisManager, &cfg.Bus, logger.Component(log, "bus"))
	if err != nil {
		return nil, fmt.Errorf("bus: %w", err)
	}

	caches := service.NewCaches(redisManager, logger.Component(log, "cache"))
	return &App{
		config:  cfg,
		log:     log,
		redis:   redisManager,
		db:      dbManager,
		store:   store,
		queues:  queues,
		bus:     fanout,
		service: service.New(caches, store, queues, fanout, logger.Component(log, "service")),
	}, nil
}

// Service returns the feature pipelines.
func (a *App) Service() *service.Service { return a.service }

func (a *App) Store() *repository.Store { return a.store }

// Queues returns the queue registry.
func (a *App) Queues() *queue.Registry { return a.queues }

func (a *App) Bus() *bus.Bus { return a.bus }

// Start runs the queue workers and subscribes the fan-out bus.
func (a *App) Start(ctx context.Context) error {
	a.queues.Start(ctx)
	if err := a.bus.Start(ctx); err != nil {
		return fmt.Errorf("bus: %w", err)
	}
	a.log.Info().Str("origin", a.bus.Origin()).Msg("socialcache started")
	return nil
}

// Handler serves the websocket hub at /ws, queue monitoring under /queues
// and a health report at /health.
func (a *App) Handler() http.Handler {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			a.log.Debug().Str("method", v.Method).Str("uri", v.URI).
				Int("status", v.Status).Dur("latency", v.Latency).Msg("request")
			return nil
		},
	}))

	e.GET("/ws", echo.WrapHandler(a.bus.Hub()))
	a.queues.Register(e.Group("/queues"))
	e.GET("/health", a.handleHealth)
	return e
}

type health struct {
	Status string                `json:"status"`
	Redis  string                `json:"redis"`
	DB     string                `json:"db"`
	Cache  redis.MetricsSnapshot `json:"cache"`
	Bus    bus.MetricsSnapshot   `json:"bus"`
	Pool   *poolStats            `json:"pool,omitempty"`
}

// poolStats is the part of sql.DBStats worth watching.
type poolStats struct {
	Open      int           `json:"open"`
	InUse     int           `json:"in_use"`
	Idle      int           `json:"idle"`
	WaitCount int64         `json:"wait_count"`
	WaitTime  time.Duration `json:"wait_time"`
}

func (a *App) handleHealth(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
	defer cancel()

	h := health{Status: "ok", Redis: "ok", DB: "ok", Cache: a.redis.GetMetrics(), Bus: a.bus.Metrics()}
	status := http.StatusOK
	if err := a.redis.Ping(ctx); err != nil {
		h.Redis, h.Status, status = err.Error(), "degraded", http.StatusServiceUnavailable
	}
	if err := a.db.Ping(ctx); err != nil {
		h.DB, h.Status, status = err.Error(), "degraded", http.StatusServiceUnavailable
	}
	if stats, err := a.db.Stats(); err == nil {
		h.Pool = &poolStats{
			Open:      stats.OpenConnections,
			InUse:     stats.InUse,
			Idle:      stats.Idle,
			WaitCount: stats.WaitCount,
			WaitTime:  stats.WaitDuration,
		}
	}
	return c.JSON(status, h)
}

// Close drains the queues and the bus and releases both connections.
func (a *App) Close() error {
	a.bus.Close()
	a.queues.Close()
	return errors.Join(a.redis.Close(), a.db.Close())
}
