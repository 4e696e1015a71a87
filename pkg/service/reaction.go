package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ammar0144/socialcache/pkg/bus"
	"github.com/ammar0144/socialcache/pkg/model"
	"github.com/ammar0144/socialcache/pkg/queue"
)

// AddReaction sets the current user's reaction on a post, replacing any
// previous one.
func (s *Service) AddReaction(ctx context.Context, current model.CurrentUser, postID, reactionType, profilePicture string) (*model.Reaction, error) {
	if err := validCurrent(current); err != nil {
		return nil, err
	}
	if err := required("postId", postID); err != nil {
		return nil, err
	}
	rt, err := model.ParseReactionType(reactionType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	post, cached, err := s.findPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, fmt.Errorf("%w: post %s", ErrNotFound, postID)
	}

	reaction := &model.Reaction{
		ID:             model.ReactionID(postID, current.Username),
		PostID:         postID,
		Type:           rt,
		Username:       current.Username,
		AvatarColor:    current.AvatarColor,
		ProfilePicture: profilePicture,
		CreatedAt:      time.Now().UTC(),
		Version:        model.NextVersion(),
	}
	prev, err := s.previousReaction(ctx, cached, postID, current.Username, func() (model.ReactionType, error) {
		return s.cache.Reactions.SaveReaction(ctx, reaction)
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, bus.EventAddReaction, reaction)
	s.enqueue(ctx, queue.AddReaction{
		PostID:           postID,
		UserTo:           post.UserID,
		UserFrom:         current.UserID,
		Username:         current.Username,
		Type:             rt,
		PreviousReaction: prev,
		ReactionObject:   *reaction,
		Version:          reaction.Version,
	})

	if prev != rt {
		if author, err := s.GetUser(ctx, post.UserID); err != nil {
			s.log.Error().Err(err).Str("user_id", post.UserID).Msg("reaction author lookup failed")
		} else {
			s.notify(ctx, author, &model.Notification{
				UserFrom:         current.UserID,
				Username:         current.Username,
				AvatarColor:      current.AvatarColor,
				ProfilePicture:   profilePicture,
				Message:          fmt.Sprintf("%s reacted to your post.", current.Username),
				NotificationType: model.NotificationReaction,
				EntityID:         postID,
				CreatedItemID:    reaction.ID,
				Reaction:         string(rt),
				Post:             post.Post,
				ImgID:            post.ImgID,
				ImgVersion:       post.ImgVersion,
				GifURL:           post.GifURL,
			}, func(c queue.EmailContent) queue.Payload { return queue.ReactionsEmail{EmailContent: c} }, "Reaction notification")
		}
	}
	return reaction, nil
}

// RemoveReaction drops the current user's reaction on a post. Removing a
// reaction that does not exist is not an error.
func (s *Service) RemoveReaction(ctx context.Context, current model.CurrentUser, postID string) error {
	if err := validCurrent(current); err != nil {
		return err
	}
	if err := required("postId", postID); err != nil {
		return err
	}
	_, cached, err := s.findPost(ctx, postID)
	if err != nil {
		return err
	}
	prev, err := s.previousReaction(ctx, cached, postID, current.Username, func() (model.ReactionType, error) {
		return s.cache.Reactions.RemoveReaction(ctx, postID, current.Username)
	})
	if err != nil {
		return err
	}

	version := model.NextVersion()
	s.emit(ctx, bus.EventAddReaction, &model.Reaction{
		ID:       model.ReactionID(postID, current.Username),
		PostID:   postID,
		Type:     prev,
		Username: current.Username,
		Version:  version,
		Removed:  true,
	})
	s.enqueue(ctx, queue.RemoveReaction{PostID: postID, Username: current.Username, PreviousReaction: prev, Version: version})
	return nil
}

// previousReaction applies the cache write when the post is cached and
// returns the user's previous reaction type. An uncached post is left alone
// and the previous type is read from the store.
func (s *Service) previousReaction(ctx context.Context, cached bool, postID, username string, write func() (model.ReactionType, error)) (model.ReactionType, error) {
	if cached {
		return write()
	}
	existing, err := s.store.GetReactionByUsername(ctx, postID, username)
	if err != nil || existing == nil {
		return "", err
	}
	return existing.Type, nil
}

// GetReactions lists a post's reactions and their count.
func (s *Service) GetReactions(ctx context.Context, postID string) ([]model.Reaction, int64, error) {
	if err := required("postId", postID); err != nil {
		return nil, 0, err
	}
	reactions, count, err := s.cache.Reactions.GetReactions(ctx, postID)
	if err != nil || count > 0 {
		return reactions, count, err
	}
	return s.store.GetReactions(ctx, postID)
}

// GetReactionByUsername returns a user's reaction on a post, or nil.
func (s *Service) GetReactionByUsername(ctx context.Context, postID, username string) (*model.Reaction, error) {
	if err := required("postId", postID, "username", username); err != nil {
		return nil, err
	}
	reaction, err := s.cache.Reactions.GetReactionByUsername(ctx, postID, username)
	if err != nil || reaction != nil {
		return reaction, err
	}
	return s.store.GetReactionByUsername(ctx, postID, username)
}
