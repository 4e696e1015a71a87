package cache

import (
	"context"

	goredis "github.com/redis/go-redis/v9"
)

// Store is the subset of the keyed cache store the adapters use.
// *redis.Manager satisfies it.
type Store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetField(ctx context.Context, key, field, value string) error
	HGet(ctx context.Context, key, field string) (string, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMany(ctx context.Context, keys []string) ([]map[string]string, error)
	HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error)
	HIncrByFields(ctx context.Context, key string, deltas map[string]int64) error

	ZAdd(ctx context.Context, key string, score float64, member string) error
	ZRem(ctx context.Context, key string, members ...string) error
	ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	ZRangeByScore(ctx context.Context, key string, min, max float64) ([]string, error)
	ZCard(ctx context.Context, key string) (int64, error)

	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	SIsMember(ctx context.Context, key, member string) (bool, error)

	LPush(ctx context.Context, key string, values ...string) error
	RPush(ctx context.Context, key string, values ...string) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	LLen(ctx context.Context, key string) (int64, error)
	LIndex(ctx context.Context, key string, index int64) (string, error)
	LRem(ctx context.Context, key string, count int64, value string) error

	Del(ctx context.Context, keys ...string) error
	Transact(ctx context.Context, fn func(tx *goredis.Tx) error, keys ...string) error
}
