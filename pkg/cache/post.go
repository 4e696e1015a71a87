package cache

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ammar0144/socialcache/pkg/model"
)

// PostCache stores posts in "posts:<id>" hashes indexed by the sorted set
// "post" scored by the author's numeric uId. The author's postsCount is
// maintained through the user adapter.
type PostCache struct {
	store Store
	users *UserCache
	log   zerolog.Logger
}

// NewPostCache creates the post adapter. Post counters on the author
// hash go through users.
func NewPostCache(store Store, users *UserCache, log zerolog.Logger) *PostCache {
	return &PostCache{store: store, users: users, log: log}
}

// SavePost indexes the post under the author's uId, writes the record and
// increments the author's postsCount.
func (c *PostCache) SavePost(ctx context.Context, post *model.Post, authorUID string) error {
	score, err := parseScore(authorUID)
	if err != nil {
		return err
	}
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}

	if err := c.store.ZAdd(ctx, postIndexKey, score, post.ID); err != nil {
		return err
	}
	if err := c.store.HSet(ctx, postKey(post.ID), encodePost(post)); err != nil {
		return err
	}
	return c.users.IncrementCounter(ctx, post.UserID, model.FieldPostsCount, 1)
}

// GetPost returns the cached post, or nil on a miss.
func (c *PostCache) GetPost(ctx context.Context, postID string) (*model.Post, error) {
	fields, err := c.store.HGetAll(ctx, postKey(postID))
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return decodePost(fields)
}

// GetPosts returns one page of the global feed, highest score first.
func (c *PostCache) GetPosts(ctx context.Context, skip, limit int) ([]model.Post, error) {
	start, stop, ok := pageBounds(skip, limit)
	if !ok {
		return nil, nil
	}
	ids, err := c.store.ZRevRange(ctx, postIndexKey, start, stop)
	if err != nil {
		return nil, err
	}
	return c.load(ctx, ids)
}

// GetPostsWithImages is GetPosts restricted to posts carrying an image or gif.
func (c *PostCache) GetPostsWithImages(ctx context.Context, skip, limit int) ([]model.Post, error) {
	return c.filtered(ctx, skip, limit, model.Post.HasImage)
}

// GetPostsWithVideos is GetPosts restricted to posts carrying a video.
func (c *PostCache) GetPostsWithVideos(ctx context.Context, skip, limit int) ([]model.Post, error) {
	return c.filtered(ctx, skip, limit, model.Post.HasVideo)
}

// GetUserPosts returns every post indexed under the author's uId.
func (c *PostCache) GetUserPosts(ctx context.Context, authorUID string) ([]model.Post, error) {
	score, err := parseScore(authorUID)
	if err != nil {
		return nil, err
	}
	ids, err := c.store.ZRangeByScore(ctx, postIndexKey, score, score)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
	return c.load(ctx, ids)
}

// TotalPosts returns the number of indexed posts.
func (c *PostCache) TotalPosts(ctx context.Context) (int64, error) {
	return c.store.ZCard(ctx, postIndexKey)
}

// UpdatePost overwrites the editable fields and returns the updated post.
// Counters and authorship are left untouched.
func (c *PostCache) UpdatePost(ctx context.Context, postID string, post *model.Post) (*model.Post, error) {
	if err := c.store.HSet(ctx, postKey(postID), editablePostFields(post)); err != nil {
		return nil, err
	}
	return c.GetPost(ctx, postID)
}

// DeletePost removes the record and its index entry and decrements the
// author's postsCount.
func (c *PostCache) DeletePost(ctx context.Context, postID, authorID string) error {
	if err := c.store.ZRem(ctx, postIndexKey, postID); err != nil {
		return err
	}
	if err := c.store.Del(ctx, postKey(postID)); err != nil {
		return err
	}
	return c.users.IncrementCounter(ctx, authorID, model.FieldPostsCount, -1)
}

// IncrementComments adjusts the post's commentsCount.
func (c *PostCache) IncrementComments(ctx context.Context, postID string, delta int64) error {
	_, err := c.store.HIncrBy(ctx, postKey(postID), model.FieldCommentsCount, delta)
	return err
}

// ApplyReactionChange moves one reaction from prev to next in a single
// MULTI using model.ReactionDeltas.
func (c *PostCache) ApplyReactionChange(ctx context.Context, postID string, prev, next model.ReactionType) error {
	deltas := model.ReactionDeltas(prev, next)
	if len(deltas) == 0 {
		return nil
	}
	fields := make(map[string]int64, len(deltas))
	for t, d := range deltas {
		fields[reactionField(t)] = d
	}
	return c.store.HIncrByFields(ctx, postKey(postID), fields)
}

func (c *PostCache) filtered(ctx context.Context, skip, limit int, keep func(model.Post) bool) ([]model.Post, error) {
	posts, err := c.GetPosts(ctx, skip, limit)
	if err != nil {
		return nil, err
	}
	out := posts[:0]
	for _, p := range posts {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (c *PostCache) load(ctx context.Context, ids []string) ([]model.Post, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = postKey(id)
	}
	records, err := c.store.HGetAllMany(ctx, keys)
	if err != nil {
		return nil, err
	}
	posts := make([]model.Post, 0, len(records))
	for _, fields := range records {
		if len(fields) == 0 {
			continue
		}
		p, err := decodePost(fields)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *p)
	}
	return posts, nil
}
