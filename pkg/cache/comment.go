package cache

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ammar0144/socialcache/pkg/model"
)

// CommentCache keeps each post's comments in the list "comments:<postId>",
// newest first. The post's commentsCount goes through the post adapter.
type CommentCache struct {
	store Store
	posts *PostCache
	log   zerolog.Logger
}

// NewCommentCache creates the comment adapter
func NewCommentCache(store Store, posts *PostCache, log zerolog.Logger) *CommentCache {
	return &CommentCache{store: store, posts: posts, log: log}
}

// SaveComment prepends the comment and increments the post's commentsCount.
func (c *CommentCache) SaveComment(ctx context.Context, comment *model.Comment) error {
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}
	encoded, err := encodeJSON(comment)
	if err != nil {
		return err
	}
	if err := c.store.LPush(ctx, commentsKey(comment.PostID), encoded); err != nil {
		return err
	}
	return c.posts.IncrementComments(ctx, comment.PostID, 1)
}

// GetComments returns every cached comment of a post, newest first.
func (c *CommentCache) GetComments(ctx context.Context, postID string) ([]model.Comment, error) {
	raw, err := c.store.LRange(ctx, commentsKey(postID), 0, -1)
	if err != nil {
		return nil, err
	}
	comments := make([]model.Comment, 0, len(raw))
	for _, item := range raw {
		var comment model.Comment
		if err := decodeJSON(item, &comment); err != nil {
			return nil, err
		}
		comments = append(comments, comment)
	}
	return comments, nil
}

// GetCommentNames returns the comment count and the distinct commenters.
func (c *CommentCache) GetCommentNames(ctx context.Context, postID string) (*model.CommentNames, error) {
	comments, err := c.GetComments(ctx, postID)
	if err != nil {
		return nil, err
	}
	names := &model.CommentNames{Count: int64(len(comments)), Names: []string{}}
	seen := make(map[string]bool, len(comments))
	for _, comment := range comments {
		if !seen[comment.Username] {
			seen[comment.Username] = true
			names.Names = append(names.Names, comment.Username)
		}
	}
	return names, nil
}

// GetComment finds one comment of a post, or nil on a miss.
func (c *CommentCache) GetComment(ctx context.Context, postID, commentID string) (*model.Comment, error) {
	comments, err := c.GetComments(ctx, postID)
	if err != nil {
		return nil, err
	}
	for i := range comments {
		if comments[i].ID == commentID {
			return &comments[i], nil
		}
	}
	return nil, nil
}

// DeleteForPost drops every cached comment of a post.
func (c *CommentCache) DeleteForPost(ctx context.Context, postID string) error {
	return c.store.Del(ctx, commentsKey(postID))
}
