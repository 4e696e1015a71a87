package service

import (
	"context"
	"fmt"

	"github.com/ammar0144/socialcache/pkg/bus"
	"github.com/ammar0144/socialcache/pkg/model"
	"github.com/ammar0144/socialcache/pkg/queue"
)

// Follow makes the current user follow followeeID and notifies the followee.
func (s *Service) Follow(ctx context.Context, current model.CurrentUser, followeeID string) (*model.FollowerData, error) {
	pair, err := s.followPair(ctx, current, followeeID)
	if err != nil {
		return nil, err
	}
	following, known, err := s.cachedFollowing(ctx, pair)
	if err != nil {
		return nil, err
	}
	if known && following {
		return nil, fmt.Errorf("%w: already following %s", ErrValidation, followeeID)
	}

	if err := s.cache.Followers.AddFollower(ctx, current.UserID, followeeID); err != nil {
		return nil, err
	}
	if err := s.moveFollowCounts(ctx, pair, 1); err != nil {
		return nil, err
	}
	if pair.followee, err = s.GetUser(ctx, followeeID); err != nil {
		return nil, err
	}

	data := model.NewFollowerData(pair.followee)
	s.emit(ctx, bus.EventAddFollower, data)
	s.enqueue(ctx, queue.AddFollower{
		KeyOne:             current.UserID,
		KeyTwo:             followeeID,
		Username:           current.Username,
		FollowerDocumentID: model.FollowerEdgeID(current.UserID, followeeID),
		Version:            model.NextVersion(),
	})
	s.notify(ctx, pair.followee, &model.Notification{
		UserFrom:         current.UserID,
		Username:         current.Username,
		AvatarColor:      current.AvatarColor,
		Message:          fmt.Sprintf("%s is now following you.", current.Username),
		NotificationType: model.NotificationFollow,
		EntityID:         current.UserID,
		CreatedItemID:    model.FollowerEdgeID(current.UserID, followeeID),
	}, func(c queue.EmailContent) queue.Payload { return queue.FollowersEmail{EmailContent: c} }, "Follow notification")
	return &data, nil
}

// Unfollow removes the follow edge. Unfollowing a user who is not followed
// is not an error.
func (s *Service) Unfollow(ctx context.Context, current model.CurrentUser, followeeID string) error {
	pair, err := s.followPair(ctx, current, followeeID)
	if err != nil {
		return err
	}
	following, known, err := s.cachedFollowing(ctx, pair)
	if err != nil || (known && !following) {
		return err
	}

	if err := s.cache.Followers.RemoveFollower(ctx, current.UserID, followeeID); err != nil {
		return err
	}
	if err := s.moveFollowCounts(ctx, pair, -1); err != nil {
		return err
	}
	s.emit(ctx, bus.EventRemoveFollower, map[string]string{"followerId": current.UserID, "followeeId": followeeID})
	s.enqueue(ctx, queue.RemoveFollower{KeyOne: current.UserID, KeyTwo: followeeID, Version: model.NextVersion()})
	return nil
}

// IsFollowing answers from the cache when either user is cached, otherwise
// from the store.
func (s *Service) IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error) {
	if err := required("followerId", followerID, "followeeId", followeeID); err != nil {
		return false, err
	}
	pair := &followPair{followerID: followerID, followeeID: followeeID}
	var err error
	if pair.followerCached, err = s.userCached(ctx, followerID); err != nil {
		return false, err
	}
	if !pair.followerCached {
		if pair.followeeCached, err = s.userCached(ctx, followeeID); err != nil {
			return false, err
		}
	}
	following, known, err := s.cachedFollowing(ctx, pair)
	if err != nil || known {
		return following, err
	}
	return s.store.IsFollowing(ctx, followerID, followeeID)
}

// cachedFollowing reads the edge from the cache set of a cached user. A
// cached user has had every follow change since sign-up applied to its
// sets, while the store lags behind the queue. known is false when neither
// user is cached.
func (s *Service) cachedFollowing(ctx context.Context, pair *followPair) (following, known bool, err error) {
	switch {
	case pair.followerCached:
		following, err = s.cache.Followers.IsFollowing(ctx, pair.followerID, pair.followeeID)
	case pair.followeeCached:
		following, err = s.cache.Followers.HasFollower(ctx, pair.followeeID, pair.followerID)
	default:
		return false, false, nil
	}
	return following, err == nil, err
}

func (s *Service) userCached(ctx context.Context, userID string) (bool, error) {
	user, err := s.cache.Users.GetUser(ctx, userID)
	return user != nil, err
}

// GetFollowing lists the users userID follows.
func (s *Service) GetFollowing(ctx context.Context, userID string) ([]model.FollowerData, error) {
	if err := required("userId", userID); err != nil {
		return nil, err
	}
	list, err := s.cache.Followers.GetFollowing(ctx, userID)
	if err != nil || len(list) > 0 {
		return list, err
	}
	return s.store.GetFollowing(ctx, userID)
}

// GetFollowers lists the users following userID.
func (s *Service) GetFollowers(ctx context.Context, userID string) ([]model.FollowerData, error) {
	if err := required("userId", userID); err != nil {
		return nil, err
	}
	list, err := s.cache.Followers.GetFollowers(ctx, userID)
	if err != nil || len(list) > 0 {
		return list, err
	}
	return s.store.GetFollowers(ctx, userID)
}

// Block adds targetID to the current user's blocked list.
func (s *Service) Block(ctx context.Context, current model.CurrentUser, targetID string) error {
	return s.updateBlock(ctx, current, targetID, model.ActionBlock)
}

// Unblock removes targetID from the current user's blocked list.
func (s *Service) Unblock(ctx context.Context, current model.CurrentUser, targetID string) error {
	return s.updateBlock(ctx, current, targetID, model.ActionUnblock)
}

func (s *Service) updateBlock(ctx context.Context, current model.CurrentUser, targetID string, action model.BlockAction) error {
	pair, err := s.followPair(ctx, current, targetID)
	if err != nil {
		return err
	}
	switch {
	case pair.followerCached && pair.followeeCached:
		err = s.cache.Followers.UpdateBlocked(ctx, current.UserID, targetID, action)
	case pair.followerCached:
		err = s.cache.Users.UpdateBlockedList(ctx, current.UserID, model.FieldBlocked, targetID, action)
	case pair.followeeCached:
		err = s.cache.Users.UpdateBlockedList(ctx, targetID, model.FieldBlockedBy, current.UserID, action)
	}
	if err != nil {
		return err
	}
	version := model.NextVersion()
	if action == model.ActionBlock {
		s.enqueue(ctx, queue.AddBlockedUser{KeyOne: current.UserID, KeyTwo: targetID, Version: version})
	} else {
		s.enqueue(ctx, queue.RemoveBlockedUser{KeyOne: current.UserID, KeyTwo: targetID, Version: version})
	}
	return nil
}

// followPair resolves both users of a social edge.
type followPair struct {
	followerID, followeeID         string
	followee                       *model.User
	followerCached, followeeCached bool
}

func (s *Service) followPair(ctx context.Context, current model.CurrentUser, targetID string) (*followPair, error) {
	if err := validCurrent(current); err != nil {
		return nil, err
	}
	if err := required("targetId", targetID); err != nil {
		return nil, err
	}
	if targetID == current.UserID {
		return nil, fmt.Errorf("%w: cannot target yourself", ErrValidation)
	}
	follower, followerCached, err := s.findUser(ctx, current.UserID)
	if err != nil {
		return nil, err
	}
	if follower == nil {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, current.UserID)
	}
	followee, followeeCached, err := s.findUser(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if followee == nil {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, targetID)
	}
	return &followPair{
		followerID:     current.UserID,
		followeeID:     targetID,
		followee:       followee,
		followerCached: followerCached,
		followeeCached: followeeCached,
	}, nil
}

// moveFollowCounts adjusts the counters of the cached users only, so an
// uncached user never gains a partial record.
func (s *Service) moveFollowCounts(ctx context.Context, pair *followPair, delta int64) error {
	if pair.followerCached && pair.followeeCached {
		return s.cache.Followers.UpdateFollowCounts(ctx, pair.followerID, pair.followeeID, delta)
	}
	if pair.followerCached {
		return s.cache.Users.IncrementCounter(ctx, pair.followerID, model.FieldFollowingCount, delta)
	}
	if pair.followeeCached {
		return s.cache.Users.IncrementCounter(ctx, pair.followeeID, model.FieldFollowersCount, delta)
	}
	return nil
}
