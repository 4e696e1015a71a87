package redis_test

import (
	"context"
	"testing"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammar0144/socialcache/pkg/redis"
	"github.com/ammar0144/socialcache/pkg/redis/redistest"
)

func TestConfigValidate(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		assert.NoError(t, redis.DefaultConfig().Validate())
	})

	t.Run("disabled skips validation", func(t *testing.T) {
		cfg := &redis.Config{Enabled: false}
		assert.NoError(t, cfg.Validate())
	})

	t.Run("missing host", func(t *testing.T) {
		cfg := redis.DefaultConfig()
		cfg.Host = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("cluster mode ignores host", func(t *testing.T) {
		cfg := redis.DefaultConfig()
		cfg.Host = ""
		cfg.Cluster = redis.ClusterConfig{Enabled: true, Addresses: []string{"a:1", "b:2"}}
		assert.True(t, cfg.IsClusterMode())
		assert.NoError(t, cfg.Validate())
	})
}

func TestDisabledCache(t *testing.T) {
	manager, err := redis.NewManager(&redis.Config{Enabled: false}, zerolog.Nop())
	require.NoError(t, err)

	assert.NoError(t, manager.Ping(context.Background()))
	err = manager.EnsureConnected(context.Background())
	assert.True(t, redis.IsCacheDisabled(err))
}

func TestEnsureConnectedIsIdempotent(t *testing.T) {
	manager, _ := redistest.New(t)
	ctx := context.Background()

	require.NoError(t, manager.EnsureConnected(ctx))
	require.NoError(t, manager.EnsureConnected(ctx))
	assert.Equal(t, uint64(1), manager.GetMetrics().Connects)
}

func TestHashPrimitives(t *testing.T) {
	manager, _ := redistest.New(t)
	ctx := context.Background()

	require.NoError(t, manager.HSet(ctx, "users:1", map[string]string{"username": "Manny", "postsCount": "0"}))

	fields, err := manager.HGetAll(ctx, "users:1")
	require.NoError(t, err)
	assert.Equal(t, "Manny", fields["username"])

	n, err := manager.HIncrBy(ctx, "users:1", "postsCount", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, manager.HIncrByFields(ctx, "users:1", map[string]int64{"a": 1, "b": -1}))
	a, err := manager.HGet(ctx, "users:1", "a")
	require.NoError(t, err)
	assert.Equal(t, "1", a)

	_, err = manager.HGet(ctx, "users:1", "missing")
	assert.True(t, redis.IsKeyNotFound(err))

	empty, err := manager.HGetAll(ctx, "users:404")
	require.NoError(t, err)
	assert.Empty(t, empty)

	many, err := manager.HGetAllMany(ctx, []string{"users:1", "users:404"})
	require.NoError(t, err)
	require.Len(t, many, 2)
	assert.Equal(t, "Manny", many[0]["username"])
	assert.Empty(t, many[1])

	snap := manager.GetMetrics()
	assert.NotZero(t, snap.CacheHits)
	assert.NotZero(t, snap.CacheMisses)
}

func TestSortedSetSetAndListPrimitives(t *testing.T) {
	manager, _ := redistest.New(t)
	ctx := context.Background()

	require.NoError(t, manager.ZAdd(ctx, "user", 1, "a"))
	require.NoError(t, manager.ZAdd(ctx, "user", 2, "b"))
	require.NoError(t, manager.ZAdd(ctx, "user", 3, "c"))

	members, err := manager.ZRevRange(ctx, "user", 0, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b"}, members)

	byScore, err := manager.ZRangeByScore(ctx, "user", 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, byScore)

	require.NoError(t, manager.ZRem(ctx, "user", "b"))
	count, err := manager.ZCard(ctx, "user")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	require.NoError(t, manager.SAdd(ctx, "following:1", "2", "3"))
	require.NoError(t, manager.SRem(ctx, "following:1", "3"))
	set, err := manager.SMembers(ctx, "following:1")
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, set)
	ok, err := manager.SIsMember(ctx, "following:1", "2")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, manager.RPush(ctx, "messages:c", "m1", "m2"))
	require.NoError(t, manager.LPush(ctx, "messages:c", "m0"))
	list, err := manager.LRange(ctx, "messages:c", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"m0", "m1", "m2"}, list)

	last, err := manager.LIndex(ctx, "messages:c", -1)
	require.NoError(t, err)
	assert.Equal(t, "m2", last)
	_, err = manager.LIndex(ctx, "messages:c", 10)
	assert.True(t, redis.IsKeyNotFound(err))

	require.NoError(t, manager.LRem(ctx, "messages:c", 0, "m1"))
	length, err := manager.LLen(ctx, "messages:c")
	require.NoError(t, err)
	assert.Equal(t, int64(2), length)

	require.NoError(t, manager.Del(ctx, "messages:c"))
	exists, err := manager.Exists(ctx, "messages:c")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestTransactReadModifyWrite(t *testing.T) {
	manager, _ := redistest.New(t)
	ctx := context.Background()
	require.NoError(t, manager.HSetField(ctx, "users:1", "quote", "old"))

	err := manager.Transact(ctx, func(tx *goredis.Tx) error {
		current, err := tx.HGet(ctx, "users:1", "quote").Result()
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.HSet(ctx, "users:1", "quote", current+"+new")
			return nil
		})
		return err
	}, "users:1")
	require.NoError(t, err)

	quote, err := manager.HGet(ctx, "users:1", "quote")
	require.NoError(t, err)
	assert.Equal(t, "old+new", quote)
}

func TestTransactPassesAdapterErrorsThrough(t *testing.T) {
	manager, _ := redistest.New(t)
	ctx := context.Background()

	err := manager.Transact(ctx, func(tx *goredis.Tx) error {
		return redis.ErrKeyNotFound
	}, "users:1")
	assert.True(t, redis.IsKeyNotFound(err))
	assert.False(t, redis.IsCacheUnavailable(err))
}

func TestFailuresAreWrappedAsCacheUnavailable(t *testing.T) {
	manager, server := redistest.New(t)
	ctx := context.Background()
	require.NoError(t, manager.EnsureConnected(ctx))

	server.SetError("LOADING server is loading")
	err := manager.HSetField(ctx, "users:1", "quote", "x")
	require.Error(t, err)
	assert.True(t, redis.IsCacheUnavailable(err))
	assert.NotZero(t, manager.GetMetrics().CacheErrors)

	server.SetError("")
	assert.NoError(t, manager.HSetField(ctx, "users:1", "quote", "x"))
}

func TestUnreachableServer(t *testing.T) {
	manager, server := redistest.New(t)
	server.Close()

	_, err := manager.HGetAll(context.Background(), "users:1")
	require.Error(t, err)
	assert.True(t, redis.IsCacheUnavailable(err))
}

func TestPublishSubscribe(t *testing.T) {
	manager, _ := redistest.New(t)
	ctx := context.Background()

	sub, err := manager.Subscribe(ctx, "events")
	require.NoError(t, err)
	defer sub.Close()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, manager.Publish(ctx, "events", []byte("hello")))
	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Payload)
	assert.Equal(t, uint64(1), manager.GetMetrics().Publications)
}
