package cache

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ammar0144/socialcache/pkg/model"
)

// FollowerCache stores each follow edge twice, in "following:<followerId>"
// and "followers:<followeeId>". Both sides of a change are awaited together;
// there is no cross-key transaction, so a failure on one side leaves the
// edge asymmetric until the next change.
type FollowerCache struct {
	store Store
	users *UserCache
	log   zerolog.Logger
}

// NewFollowerCache creates the follow-edge adapter; listings resolve members
// through users.
func NewFollowerCache(store Store, users *UserCache, log zerolog.Logger) *FollowerCache {
	return &FollowerCache{store: store, users: users, log: log}
}

// AddFollower records followerID following followeeID on both sides.
func (c *FollowerCache) AddFollower(ctx context.Context, followerID, followeeID string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.store.SAdd(ctx, followingKey(followerID), followeeID) })
	g.Go(func() error { return c.store.SAdd(ctx, followersKey(followeeID), followerID) })
	return g.Wait()
}

// RemoveFollower removes the edge from both sides.
func (c *FollowerCache) RemoveFollower(ctx context.Context, followerID, followeeID string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.store.SRem(ctx, followingKey(followerID), followeeID) })
	g.Go(func() error { return c.store.SRem(ctx, followersKey(followeeID), followerID) })
	return g.Wait()
}

// UpdateFollowCounts applies delta to the follower's followingCount and the
// followee's followersCount as two independent atomic increments.
func (c *FollowerCache) UpdateFollowCounts(ctx context.Context, followerID, followeeID string, delta int64) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.users.IncrementCounter(ctx, followerID, model.FieldFollowingCount, delta)
	})
	g.Go(func() error {
		return c.users.IncrementCounter(ctx, followeeID, model.FieldFollowersCount, delta)
	})
	return g.Wait()
}

// IsFollowing reports whether followerID follows followeeID in the cache.
func (c *FollowerCache) IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error) {
	return c.store.SIsMember(ctx, followingKey(followerID), followeeID)
}

// HasFollower is IsFollowing answered from the followee's side.
func (c *FollowerCache) HasFollower(ctx context.Context, followeeID, followerID string) (bool, error) {
	return c.store.SIsMember(ctx, followersKey(followeeID), followerID)
}

// GetFollowing lists the users userID follows. Members without a cached
// user record are skipped.
func (c *FollowerCache) GetFollowing(ctx context.Context, userID string) ([]model.FollowerData, error) {
	return c.project(ctx, followingKey(userID))
}

// GetFollowers lists the users following userID.
func (c *FollowerCache) GetFollowers(ctx context.Context, userID string) ([]model.FollowerData, error) {
	return c.project(ctx, followersKey(userID))
}

// UpdateBlocked applies a block or unblock to the blocker's blocked list and
// the target's blockedBy list, awaiting both.
func (c *FollowerCache) UpdateBlocked(ctx context.Context, blockerID, blockedID string, action model.BlockAction) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.users.UpdateBlockedList(ctx, blockerID, model.FieldBlocked, blockedID, action)
	})
	g.Go(func() error {
		return c.users.UpdateBlockedList(ctx, blockedID, model.FieldBlockedBy, blockerID, action)
	})
	return g.Wait()
}

func (c *FollowerCache) project(ctx context.Context, key string) ([]model.FollowerData, error) {
	ids, err := c.store.SMembers(ctx, key)
	if err != nil {
		return nil, err
	}
	users, err := c.users.GetUsersByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	data := make([]model.FollowerData, 0, len(users))
	for i := range users {
		data = append(data, model.NewFollowerData(&users[i]))
	}
	return data, nil
}
