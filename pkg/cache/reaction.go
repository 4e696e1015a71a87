package cache

import (
	"context"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ammar0144/socialcache/pkg/model"
)

// ReactionCache keeps the reactions of a post in the list
// "reactions:<postId>", at most one entry per username. Per-type counters
// live on the post record and are moved through the post adapter.
type ReactionCache struct {
	store Store
	posts *PostCache
	log   zerolog.Logger
}

// NewReactionCache creates the reaction adapter; per-type counters are
// written through posts.
func NewReactionCache(store Store, posts *PostCache, log zerolog.Logger) *ReactionCache {
	return &ReactionCache{store: store, posts: posts, log: log}
}

// SaveReaction replaces the user's reaction on the post and moves the post
// counters from the previous type to the new one. It returns the previous
// type, empty when the user had not reacted.
func (c *ReactionCache) SaveReaction(ctx context.Context, reaction *model.Reaction) (model.ReactionType, error) {
	if reaction.CreatedAt.IsZero() {
		reaction.CreatedAt = time.Now().UTC()
	}
	encoded, err := encodeJSON(reaction)
	if err != nil {
		return "", err
	}

	key := reactionsKey(reaction.PostID)
	var prev model.ReactionType
	err = c.store.Transact(ctx, func(tx *goredis.Tx) error {
		existing, raw, err := findReaction(ctx, tx, key, reaction.Username)
		if err != nil {
			return err
		}
		prev = ""
		if existing != nil {
			prev = existing.Type
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			if existing != nil {
				pipe.LRem(ctx, key, 1, raw)
			}
			pipe.LPush(ctx, key, encoded)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return "", err
	}

	if err := c.posts.ApplyReactionChange(ctx, reaction.PostID, prev, reaction.Type); err != nil {
		return prev, err
	}
	return prev, nil
}

// RemoveReaction drops the user's reaction and decrements its counter. It
// returns the removed type, empty when there was nothing to remove.
func (c *ReactionCache) RemoveReaction(ctx context.Context, postID, username string) (model.ReactionType, error) {
	key := reactionsKey(postID)
	var prev model.ReactionType
	err := c.store.Transact(ctx, func(tx *goredis.Tx) error {
		existing, raw, err := findReaction(ctx, tx, key, username)
		if err != nil {
			return err
		}
		prev = ""
		if existing == nil {
			return nil
		}
		prev = existing.Type
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.LRem(ctx, key, 1, raw)
			return nil
		})
		return err
	}, key)
	if err != nil || prev == "" {
		return prev, err
	}

	if err := c.posts.ApplyReactionChange(ctx, postID, prev, ""); err != nil {
		return prev, err
	}
	return prev, nil
}

// GetReactions returns the reactions of a post and their count.
func (c *ReactionCache) GetReactions(ctx context.Context, postID string) ([]model.Reaction, int64, error) {
	raw, err := c.store.LRange(ctx, reactionsKey(postID), 0, -1)
	if err != nil {
		return nil, 0, err
	}
	reactions := make([]model.Reaction, 0, len(raw))
	for _, item := range raw {
		var r model.Reaction
		if err := decodeJSON(item, &r); err != nil {
			return nil, 0, err
		}
		reactions = append(reactions, r)
	}
	return reactions, int64(len(reactions)), nil
}

// GetReactionByUsername returns the user's reaction on the post, or nil.
func (c *ReactionCache) GetReactionByUsername(ctx context.Context, postID, username string) (*model.Reaction, error) {
	reactions, _, err := c.GetReactions(ctx, postID)
	if err != nil {
		return nil, err
	}
	for i := range reactions {
		if strings.EqualFold(reactions[i].Username, username) {
			return &reactions[i], nil
		}
	}
	return nil, nil
}

// DeleteForPost drops every cached reaction of a post.
func (c *ReactionCache) DeleteForPost(ctx context.Context, postID string) error {
	return c.store.Del(ctx, reactionsKey(postID))
}

// findReaction reads the list inside a WATCH and returns the entry for
// username together with its raw encoding.
func findReaction(ctx context.Context, tx *goredis.Tx, key, username string) (*model.Reaction, string, error) {
	items, err := tx.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, "", err
	}
	for _, item := range items {
		var r model.Reaction
		if err := decodeJSON(item, &r); err != nil {
			return nil, "", err
		}
		if strings.EqualFold(r.Username, username) {
			return &r, item, nil
		}
	}
	return nil, "", nil
}
