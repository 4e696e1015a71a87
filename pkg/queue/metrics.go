package queue

import (
	"sync/atomic"
)

// Metrics tracks the durable path of one queue. Failures here are never
// surfaced to the request that enqueued the job, so these counters are the
// only place they show up besides the logs.
type Metrics struct {
	enqueued       atomic.Uint64
	enqueueFailed  atomic.Uint64
	completed      atomic.Uint64
	retried        atomic.Uint64
	exhausted      atomic.Uint64
	stalled        atomic.Uint64
	manualRetries  atomic.Uint64
	decodeFailures atomic.Uint64
	released       atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	Enqueued       uint64 `json:"enqueued"`
	EnqueueFailed  uint64 `json:"enqueue_failed"`
	Completed      uint64 `json:"completed"`
	Retried        uint64 `json:"retried"`
	Exhausted      uint64 `json:"exhausted"`
	Stalled        uint64 `json:"stalled"`
	ManualRetries  uint64 `json:"manual_retries"`
	DecodeFailures uint64 `json:"decode_failures"`
	Released       uint64 `json:"released"`
}

// NewMetrics creates zeroed counters
func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) RecordEnqueued()      { m.enqueued.Add(1) }
func (m *Metrics) RecordEnqueueFailed() { m.enqueueFailed.Add(1) }
func (m *Metrics) RecordCompleted()     { m.completed.Add(1) }
func (m *Metrics) RecordRetried()       { m.retried.Add(1) }
func (m *Metrics) RecordExhausted()     { m.exhausted.Add(1) }
func (m *Metrics) RecordStalled()       { m.stalled.Add(1) }
func (m *Metrics) RecordManualRetry()   { m.manualRetries.Add(1) }
func (m *Metrics) RecordDecodeFailure() { m.decodeFailures.Add(1) }
func (m *Metrics) RecordReleased()      { m.released.Add(1) }

// GetSnapshot returns a consistent snapshot of current metrics
func (m *Metrics) GetSnapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Enqueued:       m.enqueued.Load(),
		EnqueueFailed:  m.enqueueFailed.Load(),
		Completed:      m.completed.Load(),
		Retried:        m.retried.Load(),
		Exhausted:      m.exhausted.Load(),
		Stalled:        m.stalled.Load(),
		ManualRetries:  m.manualRetries.Load(),
		DecodeFailures: m.decodeFailures.Load(),
		Released:       m.released.Load(),
	}
}
