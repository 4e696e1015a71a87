package queue

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ammar0144/socialcache/pkg/redis"
)

// Enqueuer is the side of the queue request handlers see.
type Enqueuer interface {
	Enqueue(ctx context.Context, payload Payload) *Result
}

// Registry owns the queues of a process. It is built once at startup and
// passed to whatever needs to enqueue, run workers or monitor queues.
type Registry struct {
	mu     sync.RWMutex
	queues map[Domain]*Queue
	log    zerolog.Logger
}

// NewRegistry creates one queue per domain in Domains.
func NewRegistry(manager *redis.Manager, config *Config, log zerolog.Logger) (*Registry, error) {
	r := &Registry{queues: make(map[Domain]*Queue), log: log}
	for _, domain := range Domains {
		q, err := New(domain, manager, config, log)
		if err != nil {
			return nil, err
		}
		r.queues[domain] = q
	}
	return r, nil
}

// Queue returns the queue of one domain, nil if unknown.
func (r *Registry) Queue(domain Domain) *Queue {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.queues[domain]
}

// Queues returns all queues in Domains order.
func (r *Registry) Queues() []*Queue {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Queue, 0, len(r.queues))
	for _, domain := range Domains {
		if q, ok := r.queues[domain]; ok {
			out = append(out, q)
		}
	}
	return out
}

// Enqueue routes payload to the queue owning its job name.
func (r *Registry) Enqueue(ctx context.Context, payload Payload) *Result {
	if payload == nil {
		err := fmt.Errorf("%w: nil payload", ErrInvalidPayload)
		r.log.Error().Err(err).Msg("enqueue failed")
		return failedResult(err)
	}
	domain, err := DomainOf(payload.JobName())
	if err != nil {
		r.log.Error().Err(err).Str("job", string(payload.JobName())).Msg("enqueue failed")
		return failedResult(err)
	}
	return r.Queue(domain).Enqueue(ctx, payload)
}

// Start starts the workers of every queue.
func (r *Registry) Start(ctx context.Context) {
	for _, q := range r.Queues() {
		q.Start(ctx)
	}
}

// Close closes every queue.
func (r *Registry) Close() {
	for _, q := range r.Queues() {
		q.Close()
	}
}

// QueueStatus is the monitoring view of one queue.
type QueueStatus struct {
	Name    Domain          `json:"name"`
	Counts  Counts          `json:"counts"`
	Metrics MetricsSnapshot `json:"metrics"`
	Error   string          `json:"error,omitempty"`
}

// Snapshot reports counts and metrics of every queue. A queue whose counts
// cannot be read carries the error instead of failing the whole snapshot.
func (r *Registry) Snapshot(ctx context.Context) []QueueStatus {
	queues := r.Queues()
	out := make([]QueueStatus, 0, len(queues))
	for _, q := range queues {
		status := QueueStatus{Name: q.Domain(), Metrics: q.Metrics().GetSnapshot()}
		counts, err := q.Counts(ctx)
		if err != nil {
			status.Error = err.Error()
		}
		status.Counts = counts
		out = append(out, status)
	}
	return out
}

// Register mounts the monitoring API on g, usually the "/queues" group:
//
//	GET  /queues
//	GET  /queues/:domain/failed?offset=&limit=
//	GET  /queues/:domain/jobs/:id
//	POST /queues/:domain/jobs/:id/retry
func (r *Registry) Register(g *echo.Group) {
	g.GET("", r.handleList)
	g.GET("/:domain/failed", r.handleFailed)
	g.GET("/:domain/jobs/:id", r.handleJob)
	g.POST("/:domain/jobs/:id/retry", r.handleRetry)
}

// Handler serves the monitoring API on its own, under /queues.
func (r *Registry) Handler() http.Handler {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	r.Register(e.Group("/queues"))
	return e
}

func (r *Registry) handleList(c echo.Context) error {
	return c.JSON(http.StatusOK, struct {
		Queues []QueueStatus `json:"queues"`
	}{Queues: r.Snapshot(c.Request().Context())})
}

func (r *Registry) handleFailed(c echo.Context) error {
	q, err := r.lookup(c)
	if err != nil {
		return err
	}
	offset := queryInt(c, "offset", 0)
	limit := queryInt(c, "limit", 20)
	jobs, err := q.Failed(c.Request().Context(), offset, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, struct {
		Jobs []*JobInfo `json:"jobs"`
	}{Jobs: jobs})
}

func (r *Registry) handleJob(c echo.Context) error {
	q, err := r.lookup(c)
	if err != nil {
		return err
	}
	job, err := q.Job(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, job)
}

func (r *Registry) handleRetry(c echo.Context) error {
	q, err := r.lookup(c)
	if err != nil {
		return err
	}
	if err := q.Retry(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (r *Registry) lookup(c echo.Context) (*Queue, error) {
	q := r.Queue(Domain(c.Param("domain")))
	if q == nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "unknown queue")
	}
	return q, nil
}

func httpError(err error) error {
	if errors.Is(err, ErrJobNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func queryInt(c echo.Context, name string, def int64) int64 {
	n, err := strconv.ParseInt(c.QueryParam(name), 10, 64)
	if err != nil || n < 0 {
		return def
	}
	return n
}
