package redis

import (
	"sync/atomic"
	"time"
)

// Metrics tracks cache performance statistics
type Metrics struct {
	// Cache hit/miss counters
	cacheHits   atomic.Uint64
	cacheMisses atomic.Uint64
	cacheErrors atomic.Uint64

	// Operation counters
	readOperations   atomic.Uint64
	writeOperations  atomic.Uint64
	deleteOperations atomic.Uint64

	// Timing metrics (in nanoseconds)
	totalReadLatency   atomic.Uint64
	totalWriteLatency  atomic.Uint64
	totalDeleteLatency atomic.Uint64

	// Connection metrics
	connects     atomic.Uint64
	txConflicts  atomic.Uint64
	publications atomic.Uint64
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordCacheHit increments cache hit counter
func (m *Metrics) RecordCacheHit() {
	m.cacheHits.Add(1)
}

// RecordCacheMiss increments cache miss counter
func (m *Metrics) RecordCacheMiss() {
	m.cacheMisses.Add(1)
}

// RecordCacheError increments cache error counter
func (m *Metrics) RecordCacheError() {
	m.cacheErrors.Add(1)
}

// RecordRead records a read operation with latency
func (m *Metrics) RecordRead(duration time.Duration) {
	m.readOperations.Add(1)
	m.totalReadLatency.Add(uint64(duration.Nanoseconds()))
}

// RecordWrite records a write operation with latency
func (m *Metrics) RecordWrite(duration time.Duration) {
	m.writeOperations.Add(1)
	m.totalWriteLatency.Add(uint64(duration.Nanoseconds()))
}

// RecordDelete records a delete operation with latency
func (m *Metrics) RecordDelete(duration time.Duration) {
	m.deleteOperations.Add(1)
	m.totalDeleteLatency.Add(uint64(duration.Nanoseconds()))
}

// RecordConnect increments the (re)connect counter
func (m *Metrics) RecordConnect() {
	m.connects.Add(1)
}

// RecordTxConflict increments the optimistic transaction conflict counter
func (m *Metrics) RecordTxConflict() {
	m.txConflicts.Add(1)
}

// RecordPublish increments the pub/sub publication counter
func (m *Metrics) RecordPublish() {
	m.publications.Add(1)
}

// GetSnapshot returns a snapshot of current metrics
func (m *Metrics) GetSnapshot() MetricsSnapshot {
	hits := m.cacheHits.Load()
	misses := m.cacheMisses.Load()
	total := hits + misses

	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	readOps := m.readOperations.Load()
	writeOps := m.writeOperations.Load()
	deleteOps := m.deleteOperations.Load()

	var avgReadLatency, avgWriteLatency, avgDeleteLatency time.Duration
	if readOps > 0 {
		avgReadLatency = time.Duration(m.totalReadLatency.Load() / readOps)
	}
	if writeOps > 0 {
		avgWriteLatency = time.Duration(m.totalWriteLatency.Load() / writeOps)
	}
	if deleteOps > 0 {
		avgDeleteLatency = time.Duration(m.totalDeleteLatency.Load() / deleteOps)
	}

	return MetricsSnapshot{
		CacheHits:        hits,
		CacheMisses:      misses,
		CacheErrors:      m.cacheErrors.Load(),
		CacheHitRate:     hitRate,
		ReadOperations:   readOps,
		WriteOperations:  writeOps,
		DeleteOperations: deleteOps,
		AvgReadLatency:   avgReadLatency,
		AvgWriteLatency:  avgWriteLatency,
		AvgDeleteLatency: avgDeleteLatency,
		Connects:         m.connects.Load(),
		TxConflicts:      m.txConflicts.Load(),
		Publications:     m.publications.Load(),
	}
}

// MetricsSnapshot represents a point-in-time snapshot of metrics
type MetricsSnapshot struct {
	// Cache metrics
	CacheHits    uint64  `json:"cache_hits"`
	CacheMisses  uint64  `json:"cache_misses"`
	CacheErrors  uint64  `json:"cache_errors"`
	CacheHitRate float64 `json:"cache_hit_rate"` // Percentage

	// Operation counts
	ReadOperations   uint64 `json:"read_operations"`
	WriteOperations  uint64 `json:"write_operations"`
	DeleteOperations uint64 `json:"delete_operations"`

	// Latency metrics
	AvgReadLatency   time.Duration `json:"avg_read_latency"`
	AvgWriteLatency  time.Duration `json:"avg_write_latency"`
	AvgDeleteLatency time.Duration `json:"avg_delete_latency"`

	// Connection metrics
	Connects     uint64 `json:"connects"`
	TxConflicts  uint64 `json:"tx_conflicts"`
	Publications uint64 `json:"publications"`
}
