package cache

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ammar0144/socialcache/pkg/model"
	"github.com/ammar0144/socialcache/pkg/redis"
)

// UserCache stores user records in "users:<id>" hashes indexed by the
// sorted set "user" scored by the numeric uId (join order).
type UserCache struct {
	store Store
	log   zerolog.Logger
}

// NewUserCache creates the user adapter
func NewUserCache(store Store, log zerolog.Logger) *UserCache {
	return &UserCache{store: store, log: log}
}

// SaveUser indexes the user and writes its full record.
func (c *UserCache) SaveUser(ctx context.Context, user *model.User) error {
	score, err := parseScore(user.UID)
	if err != nil {
		return err
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	fields, err := encodeUser(user)
	if err != nil {
		return err
	}

	if err := c.store.ZAdd(ctx, userIndexKey, score, user.ID); err != nil {
		return err
	}
	if err := c.store.HSet(ctx, userKey(user.ID), fields); err != nil {
		return err
	}
	c.log.Debug().Str("user", user.ID).Msg("user saved to cache")
	return nil
}

// GetUser returns the cached user, or nil on a miss.
func (c *UserCache) GetUser(ctx context.Context, userID string) (*model.User, error) {
	fields, err := c.store.HGetAll(ctx, userKey(userID))
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return decodeUser(fields)
}

// GetUsersByID resolves several users in one round trip, skipping misses.
func (c *UserCache) GetUsersByID(ctx context.Context, userIDs []string) ([]model.User, error) {
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = userKey(id)
	}
	records, err := c.store.HGetAllMany(ctx, keys)
	if err != nil {
		return nil, err
	}
	users := make([]model.User, 0, len(records))
	for _, fields := range records {
		if len(fields) == 0 {
			continue
		}
		user, err := decodeUser(fields)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, nil
}

// GetUsers pages through users, newest join first, leaving out excludeID.
// An empty page is a miss, not an error.
func (c *UserCache) GetUsers(ctx context.Context, skip, limit int, excludeID string) ([]model.User, error) {
	start, stop, ok := pageBounds(skip, limit)
	if !ok {
		return nil, nil
	}
	ids, err := c.store.ZRevRange(ctx, userIndexKey, start, stop)
	if err != nil {
		return nil, err
	}
	filtered := ids[:0]
	for _, id := range ids {
		if id != excludeID {
			filtered = append(filtered, id)
		}
	}
	return c.GetUsersByID(ctx, filtered)
}

// TotalUsers returns the number of indexed users.
func (c *UserCache) TotalUsers(ctx context.Context) (int64, error) {
	return c.store.ZCard(ctx, userIndexKey)
}

// UpdateField overwrites one profile field and returns the updated user.
// Nested values are stored as JSON.
func (c *UserCache) UpdateField(ctx context.Context, userID, field string, value interface{}) (*model.User, error) {
	isJSON, ok := userFieldKinds[field]
	if !ok {
		return nil, fmt.Errorf("user field %q cannot be updated", field)
	}

	var encoded string
	if isJSON {
		var err error
		if encoded, err = encodeJSON(value); err != nil {
			return nil, err
		}
	} else {
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("user field %q expects a string, got %T", field, value)
		}
		encoded = s
	}

	if err := c.store.HSetField(ctx, userKey(userID), field, encoded); err != nil {
		return nil, err
	}
	return c.GetUser(ctx, userID)
}

// UpdateFields overwrites several plain string fields at once.
func (c *UserCache) UpdateFields(ctx context.Context, userID string, values map[string]string) (*model.User, error) {
	for field := range values {
		if isJSON, ok := userFieldKinds[field]; !ok || isJSON {
			return nil, fmt.Errorf("user field %q cannot be updated as text", field)
		}
	}
	if err := c.store.HSet(ctx, userKey(userID), values); err != nil {
		return nil, err
	}
	return c.GetUser(ctx, userID)
}

// IncrementCounter applies delta to a counter field with a single-key
// atomic increment.
func (c *UserCache) IncrementCounter(ctx context.Context, userID, field string, delta int64) error {
	if !userCounterFields[field] {
		return fmt.Errorf("user field %q is not a counter", field)
	}
	_, err := c.store.HIncrBy(ctx, userKey(userID), field, delta)
	return err
}

// UpdateBlockedList adds or removes targetID in the user's blocked or
// blockedBy list as one optimistic read-modify-write on the user record.
func (c *UserCache) UpdateBlockedList(ctx context.Context, userID, field, targetID string, action model.BlockAction) error {
	if field != model.FieldBlocked && field != model.FieldBlockedBy {
		return fmt.Errorf("user field %q is not a blocked list", field)
	}
	key := userKey(userID)

	return c.store.Transact(ctx, func(tx *goredis.Tx) error {
		raw, err := tx.HGet(ctx, key, field).Result()
		if err != nil && err != redis.Nil {
			return err
		}
		var list []string
		if raw != "" {
			if err := decodeJSON(raw, &list); err != nil {
				return err
			}
		}

		list = applyBlock(list, targetID, action)
		encoded, err := encodeJSON(nonNil(list))
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.HSet(ctx, key, field, encoded)
			return nil
		})
		return err
	}, key)
}

func applyBlock(list []string, targetID string, action model.BlockAction) []string {
	kept := make([]string, 0, len(list)+1)
	for _, id := range list {
		if id != targetID {
			kept = append(kept, id)
		}
	}
	if action == model.ActionBlock {
		kept = append(kept, targetID)
	}
	return kept
}
