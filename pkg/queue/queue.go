package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/ammar0144/socialcache/pkg/redis"
)

// Queue is the durable job queue of one domain, stored in Redis.
//
// Layout under <prefix>:<domain>:
//
//	wait:<name>    list of job ids ready to run
//	active:<name>  list of job ids claimed by a worker
//	delayed        zset of job ids waiting for their backoff, scored by ready time
//	failed         zset of exhausted job ids, scored by failure time
//	job:<id>       hash with name, msgpack payload, attempts and timestamps
//
// Delivery is at least once: a job leaves active only after its handler
// returned. Completed jobs are deleted; exhausted jobs stay in failed.
type Queue struct {
	domain  Domain
	manager *redis.Manager
	client  goredis.UniversalClient
	config  *Config
	log     zerolog.Logger
	metrics *Metrics

	mu       sync.RWMutex
	handlers map[Name]*handler
	started  bool
	cancel   context.CancelFunc

	closed  atomic.Bool
	pending sync.WaitGroup
	wg      sync.WaitGroup

	// active ids without processedOn at the last stall check, owned by the
	// checkStalled goroutine
	unstarted map[string]struct{}
}

// Job describes the job a handler is running.
type Job struct {
	ID           string
	Name         Name
	Queue        Domain
	AttemptsMade int
	MaxAttempts  int
	CreatedAt    time.Time
	ProcessedOn  time.Time
}

// HandlerFunc applies one job variant. Returning an error schedules a retry
// until the attempts are exhausted.
type HandlerFunc[P Payload] func(ctx context.Context, job *Job, payload P) error

type handler struct {
	name        Name
	concurrency int
	run         func(ctx context.Context, job *Job, data []byte) error
}

// New creates the queue of one domain on a connection-managed Redis handle.
func New(domain Domain, manager *redis.Manager, config *Config, log zerolog.Logger) (*Queue, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid queue config: %w", err)
	}
	if manager.Client() == nil {
		return nil, redis.ErrClientNotInitialized
	}
	if len(NamesOf(domain)) == 0 {
		return nil, fmt.Errorf("%w: no jobs in queue %s", ErrUnknownJob, domain)
	}
	return &Queue{
		domain:   domain,
		manager:  manager,
		client:   manager.Client(),
		config:   config,
		log:      log.With().Str("queue", string(domain)).Logger(),
		metrics:  NewMetrics(),
		handlers: make(map[Name]*handler),
	}, nil
}

// Handle registers fn for the job variant P. It panics when P belongs to
// another queue or is registered twice, both programming errors.
func Handle[P Payload](q *Queue, fn HandlerFunc[P]) {
	var zero P
	name := zero.JobName()
	if domain, err := DomainOf(name); err != nil || domain != q.domain {
		panic(fmt.Sprintf("job %s does not belong to queue %s", name, q.domain))
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.handlers[name]; ok {
		panic(fmt.Sprintf("job %s registered twice", name))
	}
	q.handlers[name] = &handler{
		name:        name,
		concurrency: q.config.concurrencyOf(name),
		run: func(ctx context.Context, job *Job, data []byte) error {
			var payload P
			if err := msgpack.Unmarshal(data, &payload); err != nil {
				q.metrics.RecordDecodeFailure()
				return Permanent(fmt.Errorf("decode %s: %w", name, err))
			}
			return fn(ctx, job, payload)
		},
	}
}

// Domain is the name of the queue.
func (q *Queue) Domain() Domain { return q.domain }

// Metrics returns the live counters of the queue.
func (q *Queue) Metrics() *Metrics { return q.metrics }

// Names returns the job names with a registered handler.
func (q *Queue) Names() []Name {
	q.mu.RLock()
	defer q.mu.RUnlock()
	names := make([]Name, 0, len(q.handlers))
	for name := range q.handlers {
		names = append(names, name)
	}
	return names
}

// ============================================================================
// ENQUEUE
// ============================================================================

// Enqueue validates payload and stores it in the background. It never blocks
// on Redis and never returns an error to the caller: failures are logged,
// counted and reported on the returned Result for whoever cares to look.
func (q *Queue) Enqueue(ctx context.Context, payload Payload) *Result {
	if err := q.accept(payload); err != nil {
		q.metrics.RecordEnqueueFailed()
		q.logEnqueueFailure(payload, err)
		return failedResult(err)
	}

	name := payload.JobName()
	res := newResult()
	q.pending.Add(1)
	go func() {
		defer q.pending.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), q.config.EnqueueTimeout)
		defer cancel()

		id, err := q.add(ctx, name, payload)
		if err != nil {
			q.metrics.RecordEnqueueFailed()
			q.logEnqueueFailure(payload, err)
		} else {
			q.metrics.RecordEnqueued()
			q.log.Debug().Str("job", string(name)).Str("job_id", id).Msg("job enqueued")
		}
		res.finish(id, err)
	}()
	return res
}

func (q *Queue) accept(payload Payload) error {
	if q.closed.Load() {
		return ErrQueueClosed
	}
	if payload == nil {
		return fmt.Errorf("%w: nil payload", ErrInvalidPayload)
	}
	domain, err := DomainOf(payload.JobName())
	if err != nil {
		return err
	}
	if domain != q.domain {
		return fmt.Errorf("%w: %s belongs to queue %s", ErrUnknownJob, payload.JobName(), domain)
	}
	return payload.Validate()
}

func (q *Queue) logEnqueueFailure(payload Payload, err error) {
	event := q.log.Error().Err(err)
	if payload != nil {
		event = event.Str("job", string(payload.JobName()))
	}
	event.Msg("enqueue failed")
}

func (q *Queue) add(ctx context.Context, name Name, payload Payload) (string, error) {
	data, err := msgpack.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", name, err)
	}
	if err := q.manager.EnsureConnected(ctx); err != nil {
		return "", err
	}

	id := uuid.NewString()
	_, err = q.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, q.jobKey(id), map[string]interface{}{
			"name":         string(name),
			"payload":      data,
			"attemptsMade": 0,
			"maxAttempts":  q.config.Attempts,
			"createdAt":    time.Now().UnixMilli(),
		})
		pipe.LPush(ctx, q.waitKey(name), id)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: store job: %v", redis.ErrCacheUnavailable, err)
	}
	return id, nil
}

// ============================================================================
// WORKERS
// ============================================================================

// Start launches the workers of every registered job name plus the delayed
// job promoter and the stall monitor. Workers stop when ctx is cancelled or
// Close is called.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed.Load() {
		return
	}
	q.started = true

	ctx, q.cancel = context.WithCancel(ctx)
	for _, h := range q.handlers {
		q.wg.Add(1)
		go q.dispatch(ctx, h)
	}
	q.wg.Add(2)
	go q.every(ctx, q.config.PromoteInterval, q.promoteDelayed)
	go q.every(ctx, q.config.StallInterval, q.checkStalled)

	q.log.Info().Int("handlers", len(q.handlers)).Msg("queue started")
}

// Close stops accepting jobs, waits for in-flight enqueues, then stops the
// workers and waits for running jobs to return.
func (q *Queue) Close() {
	if !q.closed.CompareAndSwap(false, true) {
		return
	}
	q.pending.Wait()

	q.mu.Lock()
	if q.cancel != nil {
		q.cancel()
	}
	q.mu.Unlock()
	q.wg.Wait()
	q.log.Info().Msg("queue closed")
}

// dispatch claims jobs of one name while fewer than its concurrency run.
func (q *Queue) dispatch(ctx context.Context, h *handler) {
	defer q.wg.Done()

	slots := make(chan struct{}, h.concurrency)
	var running sync.WaitGroup
	defer running.Wait()

	for {
		select {
		case slots <- struct{}{}:
		case <-ctx.Done():
			return
		}

		id, err := q.client.RPopLPush(ctx, q.waitKey(h.name), q.activeKey(h.name)).Result()
		if err != nil {
			<-slots
			if !errors.Is(err, goredis.Nil) && ctx.Err() == nil {
				q.log.Error().Err(err).Str("job", string(h.name)).Msg("claim failed")
			}
			if !sleep(ctx, q.config.PollInterval) {
				return
			}
			continue
		}

		running.Add(1)
		go func() {
			defer running.Done()
			defer func() { <-slots }()
			q.process(context.WithoutCancel(ctx), h, id)
		}()
	}
}

func (q *Queue) process(ctx context.Context, h *handler, id string) {
	key := q.jobKey(id)
	fields, err := q.client.HGetAll(ctx, key).Result()
	if err != nil {
		q.release(ctx, h.name, id, err)
		return
	}
	if len(fields) == 0 {
		q.client.LRem(ctx, q.activeKey(h.name), 1, id)
		return
	}

	now := time.Now()
	if err := q.client.HSet(ctx, key, "processedOn", now.UnixMilli()).Err(); err != nil {
		q.release(ctx, h.name, id, err)
		return
	}
	job := &Job{
		ID:           id,
		Name:         h.name,
		Queue:        q.domain,
		AttemptsMade: atoi(fields["attemptsMade"]),
		MaxAttempts:  atoi(fields["maxAttempts"]),
		CreatedAt:    fromMillis(fields["createdAt"]),
		ProcessedOn:  now,
	}

	if err := q.invoke(ctx, h, job, []byte(fields["payload"])); err != nil {
		q.fail(ctx, job, err)
		return
	}
	q.complete(ctx, job)
}

// release hands a claim that could not be started back to the wait list
// after one poll interval. When Redis keeps failing the id stays in the
// active list without processedOn, and checkStalled requeues it.
func (q *Queue) release(ctx context.Context, name Name, id string, cause error) {
	q.log.Warn().Err(cause).Str("job", string(name)).Str("job_id", id).Msg("load job failed, releasing claim")
	sleep(ctx, q.config.PollInterval)
	if err := q.requeue(ctx, name, id); err != nil {
		q.log.Error().Err(err).Str("job", string(name)).Str("job_id", id).Msg("release claim failed")
	}
}

// requeue moves id from the active list back to the consuming end of the
// wait list. Only the caller whose LREM removed the id pushes it.
func (q *Queue) requeue(ctx context.Context, name Name, id string) error {
	removed, err := q.client.LRem(ctx, q.activeKey(name), 1, id).Result()
	if err != nil || removed == 0 {
		return err
	}
	if err := q.client.RPush(ctx, q.waitKey(name), id).Err(); err != nil {
		return err
	}
	q.metrics.RecordReleased()
	return nil
}

func (q *Queue) invoke(ctx context.Context, h *handler, job *Job, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.run(ctx, job, data)
}

func (q *Queue) complete(ctx context.Context, job *Job) {
	_, err := q.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.LRem(ctx, q.activeKey(job.Name), 1, job.ID)
		pipe.Del(ctx, q.jobKey(job.ID))
		return nil
	})
	if err != nil {
		q.log.Error().Err(err).Str("job", string(job.Name)).Str("job_id", job.ID).Msg("remove completed job failed")
		return
	}
	q.metrics.RecordCompleted()
	q.log.Debug().Str("job", string(job.Name)).Str("job_id", job.ID).Msg("job completed")
}

// fail schedules a retry after the fixed backoff, or parks the job in the
// failed set once attempts are exhausted or the error is permanent.
func (q *Queue) fail(ctx context.Context, job *Job, cause error) {
	attempts := job.AttemptsMade + 1
	now := time.Now()
	exhausted := attempts >= job.MaxAttempts || isPermanent(cause)

	_, err := q.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.LRem(ctx, q.activeKey(job.Name), 1, job.ID)
		pipe.HSet(ctx, q.jobKey(job.ID), "attemptsMade", attempts, "failedReason", cause.Error())
		pipe.HDel(ctx, q.jobKey(job.ID), "processedOn", "stalled")
		if exhausted {
			pipe.HSet(ctx, q.jobKey(job.ID), "finishedOn", now.UnixMilli())
			pipe.ZAdd(ctx, q.failedKey(), goredis.Z{Score: float64(now.UnixMilli()), Member: job.ID})
		} else {
			ready := now.Add(q.config.Backoff)
			pipe.ZAdd(ctx, q.delayedKey(), goredis.Z{Score: float64(ready.UnixMilli()), Member: job.ID})
		}
		return nil
	})
	if err != nil {
		q.log.Error().Err(err).Str("job", string(job.Name)).Str("job_id", job.ID).Msg("record job failure failed")
		return
	}

	if exhausted {
		q.metrics.RecordExhausted()
		q.log.Error().Err(cause).Str("job", string(job.Name)).Str("job_id", job.ID).
			Int("attempts", attempts).Msg("job failed, retained for inspection")
		return
	}
	q.metrics.RecordRetried()
	q.log.Warn().Err(cause).Str("job", string(job.Name)).Str("job_id", job.ID).
		Int("attempts", attempts).Dur("backoff", q.config.Backoff).Msg("job failed, retrying")
}

// promoteDelayed moves jobs whose backoff has elapsed back to their wait
// list. ZREM decides which process moves a job when several share the queue.
func (q *Queue) promoteDelayed(ctx context.Context) {
	ids, err := q.client.ZRangeByScore(ctx, q.delayedKey(), &goredis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(time.Now().UnixMilli(), 10),
	}).Result()
	if err != nil {
		if ctx.Err() == nil {
			q.log.Error().Err(err).Msg("read delayed jobs failed")
		}
		return
	}

	for _, id := range ids {
		removed, err := q.client.ZRem(ctx, q.delayedKey(), id).Result()
		if err != nil || removed == 0 {
			continue
		}
		name, err := q.client.HGet(ctx, q.jobKey(id), "name").Result()
		if err != nil {
			q.log.Error().Err(err).Str("job_id", id).Msg("promote delayed job failed")
			continue
		}
		if err := q.client.LPush(ctx, q.waitKey(Name(name)), id).Err(); err != nil {
			q.log.Error().Err(err).Str("job_id", id).Msg("promote delayed job failed")
		}
	}
}

// checkStalled logs jobs that have been active longer than the stall
// timeout. Stalled jobs are reported once and left running. An active id
// that still has no processedOn on two consecutive checks is a claim whose
// load never succeeded; it goes back to the wait list.
func (q *Queue) checkStalled(ctx context.Context) {
	now := time.Now()
	unstarted := make(map[string]struct{})
	for _, name := range q.Names() {
		ids, err := q.client.LRange(ctx, q.activeKey(name), 0, -1).Result()
		if err != nil {
			continue
		}
		for _, id := range ids {
			values, err := q.client.HMGet(ctx, q.jobKey(id), "processedOn", "stalled").Result()
			if err != nil || len(values) != 2 {
				continue
			}
			processedOn := fromMillis(asString(values[0]))
			if processedOn.IsZero() {
				if _, seen := q.unstarted[id]; !seen {
					unstarted[id] = struct{}{}
					continue
				}
				if err := q.requeue(ctx, name, id); err != nil {
					q.log.Error().Err(err).Str("job", string(name)).Str("job_id", id).Msg("requeue orphaned claim failed")
					unstarted[id] = struct{}{}
					continue
				}
				q.log.Warn().Str("job", string(name)).Str("job_id", id).Msg("orphaned claim requeued")
				continue
			}
			if asString(values[1]) == "1" || now.Sub(processedOn) < q.config.StallTimeout {
				continue
			}
			q.client.HSet(ctx, q.jobKey(id), "stalled", "1")
			q.metrics.RecordStalled()
			q.log.Warn().Str("job", string(name)).Str("job_id", id).
				Dur("running", now.Sub(processedOn)).Msg("job stalled")
		}
	}
	q.unstarted = unstarted
}

func (q *Queue) every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	defer q.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

// ============================================================================
// KEYS AND HELPERS
// ============================================================================

func (q *Queue) key(parts ...string) string {
	return q.config.Prefix + ":" + string(q.domain) + ":" + strings.Join(parts, ":")
}

func (q *Queue) waitKey(name Name) string   { return q.key("wait", string(name)) }
func (q *Queue) activeKey(name Name) string { return q.key("active", string(name)) }
func (q *Queue) delayedKey() string         { return q.key("delayed") }
func (q *Queue) failedKey() string          { return q.key("failed") }
func (q *Queue) jobKey(id string) string    { return q.key("job", id) }

// permanentError marks a failure that retrying cannot fix.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the job is parked as failed without further retries.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func isPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func atoi64(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

func fromMillis(s string) time.Time {
	ms := atoi64(s)
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}
