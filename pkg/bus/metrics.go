package bus

import "sync/atomic"

// Metrics counts fan-out activity with atomic counters.
type Metrics struct {
	emitted       atomic.Uint64
	publishFailed atomic.Uint64
	received      atomic.Uint64
	delivered     atomic.Uint64
	dropped       atomic.Uint64
	clients       atomic.Int64
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	Emitted       uint64 `json:"emitted"`
	PublishFailed uint64 `json:"publish_failed"`
	Received      uint64 `json:"received"`
	Delivered     uint64 `json:"delivered"`
	Dropped       uint64 `json:"dropped"`
	Clients       int64  `json:"clients"`
}

// GetSnapshot returns a point-in-time copy of the counters
func (m *Metrics) GetSnapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Emitted:       m.emitted.Load(),
		PublishFailed: m.publishFailed.Load(),
		Received:      m.received.Load(),
		Delivered:     m.delivered.Load(),
		Dropped:       m.dropped.Load(),
		Clients:       m.clients.Load(),
	}
}
