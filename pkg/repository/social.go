package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/ammar0144/socialcache/pkg/model"
)

const (
	columnFollowersCount = "followers_count"
	columnFollowingCount = "following_count"
)

// AddFollower records the follower -> followee edge at version. Both
// counters move in the same transaction, and only when the edge was not
// already live. A version at or below the stored one is ErrStale.
func (s *Store) AddFollower(ctx context.Context, followerID, followeeID string, version int64) (bool, error) {
	return s.applyFollow(ctx, followerID, followeeID, true, version)
}

// RemoveFollower tombstones the edge at version and decrements both
// counters when the edge was live. A remove that runs before its add still
// wins, since the later add carries an older version.
func (s *Store) RemoveFollower(ctx context.Context, followerID, followeeID string, version int64) (bool, error) {
	return s.applyFollow(ctx, followerID, followeeID, false, version)
}

func (s *Store) applyFollow(ctx context.Context, followerID, followeeID string, live bool, version int64) (bool, error) {
	id := model.FollowerEdgeID(followerID, followeeID)
	var changed bool
	err := s.transaction(ctx, func(tx *Store) error {
		stored, err := tx.Followers.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if stored != nil && stored.Version >= version {
			return fmt.Errorf("%w: follower %s at version %d", ErrStale, id, version)
		}
		edge := &model.Follower{
			ID:         id,
			FollowerID: followerID,
			FolloweeID: followeeID,
			Removed:    !live,
			Version:    version,
			CreatedAt:  time.Now().UTC(),
		}
		if stored != nil {
			edge.CreatedAt = stored.CreatedAt
		}
		if err := tx.Followers.Upsert(ctx, edge); err != nil {
			return err
		}

		wasLive := stored != nil && !stored.Removed
		if wasLive == live {
			return nil
		}
		changed = true
		delta := int64(1)
		if !live {
			delta = -1
		}
		return tx.moveFollowCounts(ctx, followerID, followeeID, delta)
	})
	return changed, err
}

func (s *Store) moveFollowCounts(ctx context.Context, followerID, followeeID string, delta int64) error {
	if err := s.Users.Increment(ctx, followerID, map[string]int64{columnFollowingCount: delta}); err != nil {
		return err
	}
	return s.Users.Increment(ctx, followeeID, map[string]int64{columnFollowersCount: delta})
}

// IsFollowing reports whether the edge is stored and live.
func (s *Store) IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error) {
	count, err := s.Followers.Count(ctx, "id = ? AND removed = ?", model.FollowerEdgeID(followerID, followeeID), false)
	return count > 0, err
}

// GetFollowing lists the users followerID follows.
func (s *Store) GetFollowing(ctx context.Context, followerID string) ([]model.FollowerData, error) {
	edges, err := s.Followers.FindWhere(ctx, "follower_id = ? AND removed = ?", followerID, false)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(edges))
	for i, e := range edges {
		ids[i] = e.FolloweeID
	}
	return s.followerData(ctx, ids)
}

// GetFollowers lists the users following followeeID.
func (s *Store) GetFollowers(ctx context.Context, followeeID string) ([]model.FollowerData, error) {
	edges, err := s.Followers.FindWhere(ctx, "followee_id = ? AND removed = ?", followeeID, false)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(edges))
	for i, e := range edges {
		ids[i] = e.FollowerID
	}
	return s.followerData(ctx, ids)
}

func (s *Store) followerData(ctx context.Context, ids []string) ([]model.FollowerData, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	users, err := s.Users.FindWhere(ctx, "id IN ?", ids)
	if err != nil {
		return nil, err
	}
	data := make([]model.FollowerData, 0, len(users))
	for i := range users {
		data = append(data, model.NewFollowerData(&users[i]))
	}
	return data, nil
}

// UpdateBlock applies a block or unblock at version: the relation row plus
// the blocker's blocked list and the target's blockedBy list, in one
// transaction. Repeating the same action changes nothing; a version at or
// below the stored one is ErrStale.
func (s *Store) UpdateBlock(ctx context.Context, blockerID, blockedID string, action model.BlockAction, version int64) error {
	if action != model.ActionBlock && action != model.ActionUnblock {
		return fmt.Errorf("unknown block action %q", action)
	}
	return s.transaction(ctx, func(tx *Store) error {
		id := model.BlockID(blockerID, blockedID)
		stored, err := tx.Blocks.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if stored != nil && stored.Version >= version {
			return fmt.Errorf("%w: block %s at version %d", ErrStale, id, version)
		}
		block := &model.Block{
			ID:        id,
			BlockerID: blockerID,
			BlockedID: blockedID,
			Removed:   action == model.ActionUnblock,
			Version:   version,
			CreatedAt: time.Now().UTC(),
		}
		if err := tx.Blocks.Upsert(ctx, block); err != nil {
			return err
		}

		if err := tx.updateBlockList(ctx, blockerID, "blocked", blockedID, action); err != nil {
			return err
		}
		return tx.updateBlockList(ctx, blockedID, "blocked_by", blockerID, action)
	})
}

func (s *Store) updateBlockList(ctx context.Context, userID, column, targetID string, action model.BlockAction) error {
	user, err := s.Users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("%w: users %s", ErrNotFound, userID)
	}

	list := user.Blocked
	if column == "blocked_by" {
		list = user.BlockedBy
	}
	kept := make([]string, 0, len(list)+1)
	for _, id := range list {
		if id != targetID {
			kept = append(kept, id)
		}
	}
	if action == model.ActionBlock {
		kept = append(kept, targetID)
	}

	encoded, err := jsonColumn(kept)
	if err != nil {
		return err
	}
	return s.Users.UpdateFields(ctx, userID, map[string]interface{}{column: encoded})
}

// IsBlocked reports whether blockerID currently blocks blockedID.
func (s *Store) IsBlocked(ctx context.Context, blockerID, blockedID string) (bool, error) {
	count, err := s.Blocks.Count(ctx, "id = ? AND removed = ?", model.BlockID(blockerID, blockedID), false)
	return count > 0, err
}

// AddImage stores an image record once.
func (s *Store) AddImage(ctx context.Context, image *model.Image) (bool, error) {
	return s.Images.CreateIfAbsent(ctx, image)
}

// RemoveImage deletes an image record.
func (s *Store) RemoveImage(ctx context.Context, imageID string) (bool, error) {
	return s.Images.Delete(ctx, imageID)
}

// GetImages lists a user's images, newest first.
func (s *Store) GetImages(ctx context.Context, userID string) ([]model.Image, error) {
	return s.Images.Page(ctx, Page{Limit: maxListing, Order: "created_at DESC"}, "user_id = ?", userID)
}

// UpdateProfilePicture sets the user's picture URL and records the image.
func (s *Store) UpdateProfilePicture(ctx context.Context, userID, url string, image *model.Image) error {
	return s.transaction(ctx, func(tx *Store) error {
		if err := tx.Users.UpdateFields(ctx, userID, map[string]interface{}{"profile_picture": url}); err != nil {
			return err
		}
		if image == nil {
			return nil
		}
		_, err := tx.Images.CreateIfAbsent(ctx, image)
		return err
	})
}

// UpdateBackgroundImage sets the user's background image and records it.
func (s *Store) UpdateBackgroundImage(ctx context.Context, userID string, image *model.Image) error {
	return s.transaction(ctx, func(tx *Store) error {
		if err := tx.Users.UpdateFields(ctx, userID, map[string]interface{}{
			"bg_image_id":      image.BgImageID,
			"bg_image_version": image.BgImageVersion,
		}); err != nil {
			return err
		}
		_, err := tx.Images.CreateIfAbsent(ctx, image)
		return err
	})
}
