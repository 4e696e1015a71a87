package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Nil is returned by go-redis when a key or field does not exist.
const Nil = redis.Nil

// operation kinds for metrics bookkeeping
type opKind int

const (
	opRead opKind = iota
	opWrite
	opDelete
)

// Manager manages the shared Redis connection and the structured-data
// primitives every cache adapter is built on.
//
// The connection is opened lazily by EnsureConnected and kept for the life of
// the process. A failed primitive marks the connection as unknown so the next
// call pings again before issuing commands.
type Manager struct {
	config        *Config
	client        redis.UniversalClient
	clusterClient *redis.ClusterClient
	metrics       *Metrics
	log           zerolog.Logger

	mu        sync.Mutex
	connected bool
}

// NewManager creates a new Redis cache manager
func NewManager(config *Config, log zerolog.Logger) (*Manager, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid redis config: %w", err)
	}

	manager := &Manager{
		config:  config,
		metrics: NewMetrics(),
		log:     log,
	}

	// Initialize Redis client based on configuration
	if err := manager.initializeClient(); err != nil {
		return nil, fmt.Errorf("failed to initialize redis client: %w", err)
	}

	return manager, nil
}

// initializeClient sets up the Redis client based on configuration
func (m *Manager) initializeClient() error {
	if !m.config.Enabled {
		return nil // Skip initialization if cache is disabled
	}

	if m.config.IsClusterMode() {
		m.clusterClient = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:           m.config.Cluster.Addresses,
			Username:        m.config.Cluster.Username,
			Password:        m.config.Cluster.Password,
			PoolSize:        m.config.PoolSize,
			MinIdleConns:    m.config.MinIdleConns,
			ConnMaxLifetime: m.config.MaxConnAge,
			PoolTimeout:     m.config.PoolTimeout,
			ConnMaxIdleTime: m.config.IdleTimeout,
			ReadTimeout:     m.config.ReadTimeout,
			WriteTimeout:    m.config.WriteTimeout,
			DialTimeout:     m.config.DialTimeout,
		})
		m.client = m.clusterClient
	} else {
		m.client = redis.NewClient(&redis.Options{
			Addr:            m.config.GetAddr(),
			Password:        m.config.Password,
			DB:              m.config.Database,
			PoolSize:        m.config.PoolSize,
			MinIdleConns:    m.config.MinIdleConns,
			ConnMaxLifetime: m.config.MaxConnAge,
			PoolTimeout:     m.config.PoolTimeout,
			ConnMaxIdleTime: m.config.IdleTimeout,
			ReadTimeout:     m.config.ReadTimeout,
			WriteTimeout:    m.config.WriteTimeout,
			DialTimeout:     m.config.DialTimeout,
		})
	}

	return nil
}

// Config returns the manager's configuration
func (m *Manager) Config() *Config {
	return m.config
}

// Client returns the underlying go-redis client for infrastructure that needs
// commands beyond the adapter primitives (queue storage, pub/sub).
func (m *Manager) Client() redis.UniversalClient {
	return m.client
}

// Close closes the Redis connection
func (m *Manager) Close() error {
	if m.client != nil {
		return m.client.Close()
	}
	return nil
}

// Ping tests the Redis connection
// Returns nil if cache is disabled (not an error condition)
func (m *Manager) Ping(ctx context.Context) error {
	if !m.config.Enabled {
		return nil
	}
	if m.client == nil {
		return ErrClientNotInitialized
	}
	if err := m.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	return nil
}

// EnsureConnected opens the connection if it is not already known to be open.
// It is idempotent and never disconnects.
func (m *Manager) EnsureConnected(ctx context.Context) error {
	if err := m.checkClient(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connected {
		return nil
	}
	if err := m.Ping(ctx); err != nil {
		m.metrics.RecordCacheError()
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	m.connected = true
	m.metrics.RecordConnect()
	if m.config.Logging.LogReconnects {
		m.log.Info().Str("addr", m.config.GetAddr()).Msg("cache connected")
	}
	return nil
}

// checkClient validates that cache is enabled and client is initialized
func (m *Manager) checkClient() error {
	if !m.config.Enabled {
		return ErrCacheDisabled
	}
	if m.client == nil {
		return ErrClientNotInitialized
	}
	return nil
}

// markDisconnected forces the next operation to ping before issuing commands.
func (m *Manager) markDisconnected() {
	m.mu.Lock()
	m.connected = false
	m.mu.Unlock()
}

// run wraps a primitive with connection acquisition, metrics and error
// wrapping. redis.Nil passes through unwrapped so callers can detect misses.
func (m *Manager) run(ctx context.Context, kind opKind, op string, fn func() error) error {
	if err := m.EnsureConnected(ctx); err != nil {
		return err
	}

	start := time.Now()
	err := fn()
	switch kind {
	case opRead:
		m.metrics.RecordRead(time.Since(start))
	case opWrite:
		m.metrics.RecordWrite(time.Since(start))
	case opDelete:
		m.metrics.RecordDelete(time.Since(start))
	}

	if err == nil || errors.Is(err, redis.Nil) || isOwnError(err) {
		return err
	}
	if errors.Is(err, redis.TxFailedErr) {
		m.metrics.RecordTxConflict()
		return err
	}

	m.metrics.RecordCacheError()
	m.markDisconnected()
	m.log.Error().Err(err).Str("op", op).Msg("cache operation failed")
	return fmt.Errorf("%w: %s: %v", ErrCacheUnavailable, op, err)
}

// isOwnError reports errors raised by adapter logic inside a transaction
// rather than by the cache itself.
func isOwnError(err error) bool {
	return errors.Is(err, ErrKeyNotFound) ||
		errors.Is(err, ErrSerializationFailed) ||
		errors.Is(err, ErrCacheUnavailable)
}

func (m *Manager) recordLookup(key string, found bool) {
	if found {
		m.metrics.RecordCacheHit()
		if m.config.Logging.LogCacheHits {
			m.log.Debug().Str("key", key).Msg("cache hit")
		}
		return
	}
	m.metrics.RecordCacheMiss()
	if m.config.Logging.LogCacheMisses {
		m.log.Debug().Str("key", key).Msg("cache miss")
	}
}

// ============================================================================
// HASHES
// ============================================================================

// HSet stores all fields of a structured record in one command.
func (m *Manager) HSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	values := make(map[string]interface{}, len(fields))
	for field, value := range fields {
		values[field] = value
	}
	return m.run(ctx, opWrite, "HSET "+key, func() error {
		return m.client.HSet(ctx, key, values).Err()
	})
}

// HSetField stores a single field of a structured record.
func (m *Manager) HSetField(ctx context.Context, key, field, value string) error {
	return m.run(ctx, opWrite, "HSET "+key, func() error {
		return m.client.HSet(ctx, key, field, value).Err()
	})
}

// HGet reads one field; ErrKeyNotFound when the key or field is absent.
func (m *Manager) HGet(ctx context.Context, key, field string) (string, error) {
	var value string
	err := m.run(ctx, opRead, "HGET "+key, func() error {
		var err error
		value, err = m.client.HGet(ctx, key, field).Result()
		return err
	})
	if errors.Is(err, redis.Nil) {
		m.recordLookup(key, false)
		return "", ErrKeyNotFound
	}
	if err != nil {
		return "", err
	}
	m.recordLookup(key, true)
	return value, nil
}

// HGetAll reads a structured record. A missing key yields an empty map.
func (m *Manager) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	var fields map[string]string
	err := m.run(ctx, opRead, "HGETALL "+key, func() error {
		var err error
		fields, err = m.client.HGetAll(ctx, key).Result()
		return err
	})
	if err != nil {
		return nil, err
	}
	m.recordLookup(key, len(fields) > 0)
	return fields, nil
}

// HGetAllMany reads several records in one round trip, preserving key order.
func (m *Manager) HGetAllMany(ctx context.Context, keys []string) ([]map[string]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	cmds := make([]*redis.MapStringStringCmd, len(keys))
	err := m.run(ctx, opRead, "HGETALL(pipeline)", func() error {
		_, err := m.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			for i, key := range keys {
				cmds[i] = pipe.HGetAll(ctx, key)
			}
			return nil
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	records := make([]map[string]string, len(keys))
	for i, cmd := range cmds {
		records[i] = cmd.Val()
		m.recordLookup(keys[i], len(records[i]) > 0)
	}
	return records, nil
}

// HIncrBy atomically adjusts one integer field and returns the new value.
func (m *Manager) HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	var value int64
	err := m.run(ctx, opWrite, "HINCRBY "+key, func() error {
		var err error
		value, err = m.client.HIncrBy(ctx, key, field, delta).Result()
		return err
	})
	return value, err
}

// HIncrByFields applies several deltas to one record inside MULTI/EXEC so the
// update is observed as a single logical change.
func (m *Manager) HIncrByFields(ctx context.Context, key string, deltas map[string]int64) error {
	if len(deltas) == 0 {
		return nil
	}
	return m.run(ctx, opWrite, "HINCRBY(multi) "+key, func() error {
		_, err := m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for field, delta := range deltas {
				pipe.HIncrBy(ctx, key, field, delta)
			}
			return nil
		})
		return err
	})
}

// ============================================================================
// SORTED SETS
// ============================================================================

// ZAdd adds or rescored a member.
func (m *Manager) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return m.run(ctx, opWrite, "ZADD "+key, func() error {
		return m.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
	})
}

// ZRem removes members.
func (m *Manager) ZRem(ctx context.Context, key string, members ...string) error {
	args := make([]interface{}, len(members))
	for i, member := range members {
		args[i] = member
	}
	return m.run(ctx, opDelete, "ZREM "+key, func() error {
		return m.client.ZRem(ctx, key, args...).Err()
	})
}

// ZRevRange returns members by descending score, inclusive indexes.
func (m *Manager) ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	var members []string
	err := m.run(ctx, opRead, "ZREVRANGE "+key, func() error {
		var err error
		members, err = m.client.ZRevRange(ctx, key, start, stop).Result()
		return err
	})
	return members, err
}

// ZRangeByScore returns members whose score lies in [min, max].
func (m *Manager) ZRangeByScore(ctx context.Context, key string, min, max float64) ([]string, error) {
	var members []string
	err := m.run(ctx, opRead, "ZRANGEBYSCORE "+key, func() error {
		var err error
		members, err = m.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
			Min: fmt.Sprintf("%g", min),
			Max: fmt.Sprintf("%g", max),
		}).Result()
		return err
	})
	return members, err
}

// ZCard returns the number of members.
func (m *Manager) ZCard(ctx context.Context, key string) (int64, error) {
	var count int64
	err := m.run(ctx, opRead, "ZCARD "+key, func() error {
		var err error
		count, err = m.client.ZCard(ctx, key).Result()
		return err
	})
	return count, err
}

// ============================================================================
// SETS
// ============================================================================

// SAdd adds members to a set.
func (m *Manager) SAdd(ctx context.Context, key string, members ...string) error {
	args := make([]interface{}, len(members))
	for i, member := range members {
		args[i] = member
	}
	return m.run(ctx, opWrite, "SADD "+key, func() error {
		return m.client.SAdd(ctx, key, args...).Err()
	})
}

// SRem removes members from a set.
func (m *Manager) SRem(ctx context.Context, key string, members ...string) error {
	args := make([]interface{}, len(members))
	for i, member := range members {
		args[i] = member
	}
	return m.run(ctx, opDelete, "SREM "+key, func() error {
		return m.client.SRem(ctx, key, args...).Err()
	})
}

// SMembers returns all members of a set.
func (m *Manager) SMembers(ctx context.Context, key string) ([]string, error) {
	var members []string
	err := m.run(ctx, opRead, "SMEMBERS "+key, func() error {
		var err error
		members, err = m.client.SMembers(ctx, key).Result()
		return err
	})
	return members, err
}

// SIsMember reports whether member belongs to the set.
func (m *Manager) SIsMember(ctx context.Context, key, member string) (bool, error) {
	var ok bool
	err := m.run(ctx, opRead, "SISMEMBER "+key, func() error {
		var err error
		ok, err = m.client.SIsMember(ctx, key, member).Result()
		return err
	})
	return ok, err
}

// ============================================================================
// LISTS
// ============================================================================

// LPush prepends values.
func (m *Manager) LPush(ctx context.Context, key string, values ...string) error {
	args := make([]interface{}, len(values))
	for i, value := range values {
		args[i] = value
	}
	return m.run(ctx, opWrite, "LPUSH "+key, func() error {
		return m.client.LPush(ctx, key, args...).Err()
	})
}

// RPush appends values.
func (m *Manager) RPush(ctx context.Context, key string, values ...string) error {
	args := make([]interface{}, len(values))
	for i, value := range values {
		args[i] = value
	}
	return m.run(ctx, opWrite, "RPUSH "+key, func() error {
		return m.client.RPush(ctx, key, args...).Err()
	})
}

// LRange returns list elements in [start, stop], inclusive.
func (m *Manager) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	var values []string
	err := m.run(ctx, opRead, "LRANGE "+key, func() error {
		var err error
		values, err = m.client.LRange(ctx, key, start, stop).Result()
		return err
	})
	return values, err
}

// LLen returns the list length.
func (m *Manager) LLen(ctx context.Context, key string) (int64, error) {
	var n int64
	err := m.run(ctx, opRead, "LLEN "+key, func() error {
		var err error
		n, err = m.client.LLen(ctx, key).Result()
		return err
	})
	return n, err
}

// LIndex returns one element; ErrKeyNotFound when out of range.
func (m *Manager) LIndex(ctx context.Context, key string, index int64) (string, error) {
	var value string
	err := m.run(ctx, opRead, "LINDEX "+key, func() error {
		var err error
		value, err = m.client.LIndex(ctx, key, index).Result()
		return err
	})
	if errors.Is(err, redis.Nil) {
		return "", ErrKeyNotFound
	}
	return value, err
}

// LRem removes up to count occurrences of value (0 = all).
func (m *Manager) LRem(ctx context.Context, key string, count int64, value string) error {
	return m.run(ctx, opDelete, "LREM "+key, func() error {
		return m.client.LRem(ctx, key, count, value).Err()
	})
}

// ============================================================================
// KEYS, TRANSACTIONS, PUB/SUB
// ============================================================================

// Del removes keys.
func (m *Manager) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return m.run(ctx, opDelete, "DEL", func() error {
		return m.client.Del(ctx, keys...).Err()
	})
}

// Exists checks if a key exists in cache
func (m *Manager) Exists(ctx context.Context, key string) (bool, error) {
	var n int64
	err := m.run(ctx, opRead, "EXISTS "+key, func() error {
		var err error
		n, err = m.client.Exists(ctx, key).Result()
		return err
	})
	return n > 0, err
}

// Transact runs an optimistic WATCH/MULTI read-modify-write over a single
// logical record, retrying on concurrent modification up to MaxTxRetries.
// It is the only multi-command atomicity the adapters rely on.
func (m *Manager) Transact(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	var err error
	for attempt := 0; attempt < m.config.MaxTxRetries; attempt++ {
		err = m.run(ctx, opWrite, "WATCH", func() error {
			return m.client.Watch(ctx, fn, keys...)
		})
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("%w: transaction retries exhausted: %v", ErrCacheUnavailable, err)
}

// Publish sends a message on a pub/sub channel.
func (m *Manager) Publish(ctx context.Context, channel string, payload []byte) error {
	err := m.run(ctx, opWrite, "PUBLISH "+channel, func() error {
		return m.client.Publish(ctx, channel, payload).Err()
	})
	if err == nil {
		m.metrics.RecordPublish()
	}
	return err
}

// Subscribe opens a subscription on the given channels.
func (m *Manager) Subscribe(ctx context.Context, channels ...string) (*redis.PubSub, error) {
	if err := m.EnsureConnected(ctx); err != nil {
		return nil, err
	}
	return m.client.Subscribe(ctx, channels...), nil
}

// GetMetrics returns current cache performance metrics
func (m *Manager) GetMetrics() MetricsSnapshot {
	if m.metrics == nil {
		return MetricsSnapshot{}
	}
	return m.metrics.GetSnapshot()
}
