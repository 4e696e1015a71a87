package repository

import (
	"context"
	"fmt"

	"github.com/ammar0144/socialcache/pkg/model"
)

func reactionColumn(t model.ReactionType) string {
	return "reactions_" + string(t)
}

// SaveReaction makes reaction the user's current reaction on the post when
// its version is newer than the stored one. Counter deltas are derived from
// the stored previous type, not from the job, so jobs applied out of order
// or twice leave the counters consistent. Older versions return ErrStale.
func (s *Store) SaveReaction(ctx context.Context, reaction *model.Reaction) error {
	reaction.ID = model.ReactionID(reaction.PostID, reaction.Username)
	reaction.Removed = false
	return s.applyReaction(ctx, reaction)
}

// RemoveReaction replaces the user's reaction with a tombstone at version,
// so an older add arriving later is rejected.
func (s *Store) RemoveReaction(ctx context.Context, postID, username string, version int64) error {
	return s.applyReaction(ctx, &model.Reaction{
		ID:       model.ReactionID(postID, username),
		PostID:   postID,
		Username: username,
		Version:  version,
		Removed:  true,
	})
}

func (s *Store) applyReaction(ctx context.Context, next *model.Reaction) error {
	return s.transaction(ctx, func(tx *Store) error {
		stored, err := tx.Reactions.FindByID(ctx, next.ID)
		if err != nil {
			return err
		}
		if stored != nil && stored.Version >= next.Version {
			return fmt.Errorf("%w: reaction %s at version %d", ErrStale, next.ID, next.Version)
		}

		var prev, current model.ReactionType
		if stored != nil && !stored.Removed {
			prev = stored.Type
		}
		if !next.Removed {
			current = next.Type
		}

		deltas := make(map[string]int64)
		for t, d := range model.ReactionDeltas(prev, current) {
			deltas[reactionColumn(t)] = d
		}
		if err := tx.Posts.Increment(ctx, next.PostID, deltas); err != nil {
			return err
		}
		return tx.Reactions.Upsert(ctx, next)
	})
}

// GetReactions returns the live reactions of a post and their count.
func (s *Store) GetReactions(ctx context.Context, postID string) ([]model.Reaction, int64, error) {
	reactions, err := s.Reactions.Page(ctx, Page{Limit: maxListing, Order: "created_at DESC"}, "post_id = ? AND removed = ?", postID, false)
	if err != nil {
		return nil, 0, err
	}
	return reactions, int64(len(reactions)), nil
}

// GetReactionByUsername returns the user's live reaction on a post, or nil.
func (s *Store) GetReactionByUsername(ctx context.Context, postID, username string) (*model.Reaction, error) {
	r, err := s.Reactions.FindByID(ctx, model.ReactionID(postID, username))
	if err != nil || r == nil || r.Removed {
		return nil, err
	}
	return r, nil
}
