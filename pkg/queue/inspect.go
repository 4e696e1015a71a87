package queue

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

// Counts is the number of jobs per state in one queue.
type Counts struct {
	Waiting int64 `json:"waiting"`
	Active  int64 `json:"active"`
	Delayed int64 `json:"delayed"`
	Failed  int64 `json:"failed"`
}

// JobInfo is the stored state of a job as exposed for inspection.
type JobInfo struct {
	ID           string `json:"id"`
	Name         Name   `json:"name"`
	Queue        Domain `json:"queue"`
	AttemptsMade int    `json:"attemptsMade"`
	MaxAttempts  int    `json:"maxAttempts"`
	FailedReason string `json:"failedReason,omitempty"`
	CreatedAt    int64  `json:"createdAt"`
	ProcessedOn  int64  `json:"processedOn,omitempty"`
	FinishedOn   int64  `json:"finishedOn,omitempty"`
	Stalled      bool   `json:"stalled,omitempty"`
}

// Counts reports the current size of each job state.
func (q *Queue) Counts(ctx context.Context) (Counts, error) {
	var counts Counts
	names := NamesOf(q.domain)
	waiting := make([]*goredis.IntCmd, len(names))
	active := make([]*goredis.IntCmd, len(names))

	var delayed, failed *goredis.IntCmd
	_, err := q.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for i, name := range names {
			waiting[i] = pipe.LLen(ctx, q.waitKey(name))
			active[i] = pipe.LLen(ctx, q.activeKey(name))
		}
		delayed = pipe.ZCard(ctx, q.delayedKey())
		failed = pipe.ZCard(ctx, q.failedKey())
		return nil
	})
	if err != nil {
		return counts, fmt.Errorf("count jobs of %s: %w", q.domain, err)
	}
	for i := range names {
		counts.Waiting += waiting[i].Val()
		counts.Active += active[i].Val()
	}
	counts.Delayed = delayed.Val()
	counts.Failed = failed.Val()
	return counts, nil
}

// Job loads one stored job. Completed jobs are deleted and report ErrJobNotFound.
func (q *Queue) Job(ctx context.Context, id string) (*JobInfo, error) {
	fields, err := q.client.HGetAll(ctx, q.jobKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return &JobInfo{
		ID:           id,
		Name:         Name(fields["name"]),
		Queue:        q.domain,
		AttemptsMade: atoi(fields["attemptsMade"]),
		MaxAttempts:  atoi(fields["maxAttempts"]),
		FailedReason: fields["failedReason"],
		CreatedAt:    atoi64(fields["createdAt"]),
		ProcessedOn:  atoi64(fields["processedOn"]),
		FinishedOn:   atoi64(fields["finishedOn"]),
		Stalled:      fields["stalled"] == "1",
	}, nil
}

// Failed lists exhausted jobs, most recent failure first.
func (q *Queue) Failed(ctx context.Context, offset, limit int64) ([]*JobInfo, error) {
	if limit <= 0 {
		return []*JobInfo{}, nil
	}
	ids, err := q.client.ZRevRange(ctx, q.failedKey(), offset, offset+limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("list failed jobs of %s: %w", q.domain, err)
	}

	jobs := make([]*JobInfo, 0, len(ids))
	for _, id := range ids {
		job, err := q.Job(ctx, id)
		if errors.Is(err, ErrJobNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Retry moves a failed job back to its wait list with a fresh attempt budget.
func (q *Queue) Retry(ctx context.Context, id string) error {
	removed, err := q.client.ZRem(ctx, q.failedKey(), id).Result()
	if err != nil {
		return fmt.Errorf("retry job %s: %w", id, err)
	}
	if removed == 0 {
		return fmt.Errorf("%w: %s is not failed", ErrJobNotFound, id)
	}

	name, err := q.client.HGet(ctx, q.jobKey(id), "name").Result()
	if errors.Is(err, goredis.Nil) {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("retry job %s: %w", id, err)
	}

	_, err = q.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, q.jobKey(id), "attemptsMade", 0)
		pipe.HDel(ctx, q.jobKey(id), "failedReason", "finishedOn", "processedOn", "stalled")
		pipe.LPush(ctx, q.waitKey(Name(name)), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("retry job %s: %w", id, err)
	}
	q.metrics.RecordManualRetry()
	q.log.Info().Str("job", name).Str("job_id", id).Msg("failed job requeued")
	return nil
}
