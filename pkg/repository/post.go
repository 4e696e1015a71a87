package repository

import (
	"context"

	"github.com/ammar0144/socialcache/pkg/model"
)

const (
	columnPostsCount    = "posts_count"
	columnCommentsCount = "comments_count"
	postsNewestFirst    = "created_at DESC"
)

// CreatePost stores a post once and increments the author's postsCount in
// the same transaction. A redelivered job changes nothing.
func (s *Store) CreatePost(ctx context.Context, post *model.Post) (bool, error) {
	var inserted bool
	err := s.transaction(ctx, func(tx *Store) error {
		var err error
		if inserted, err = tx.Posts.CreateIfAbsent(ctx, post); err != nil || !inserted {
			return err
		}
		return tx.Users.Increment(ctx, post.UserID, map[string]int64{columnPostsCount: 1})
	})
	return inserted, err
}

// UpdatePost is a last-writer-wins update of the editable post fields.
func (s *Store) UpdatePost(ctx context.Context, postID string, post *model.Post, version int64) error {
	return s.Posts.UpdateVersioned(ctx, postID, "version", version, map[string]interface{}{
		"post":            post.Post,
		"bg_color":        post.BgColor,
		"feelings":        post.Feelings,
		"privacy":         post.Privacy,
		"gif_url":         post.GifURL,
		"profile_picture": post.ProfilePicture,
		"img_version":     post.ImgVersion,
		"img_id":          post.ImgID,
		"video_version":   post.VideoVersion,
		"video_id":        post.VideoID,
	})
}

// DeletePost removes a post with its comments and reactions and decrements
// the author's postsCount once.
func (s *Store) DeletePost(ctx context.Context, postID, authorID string) error {
	return s.transaction(ctx, func(tx *Store) error {
		deleted, err := tx.Posts.Delete(ctx, postID)
		if err != nil || !deleted {
			return err
		}
		if _, err := tx.Comments.DeleteWhere(ctx, "post_id = ?", postID); err != nil {
			return err
		}
		if _, err := tx.Reactions.DeleteWhere(ctx, "post_id = ?", postID); err != nil {
			return err
		}
		return tx.Users.Increment(ctx, authorID, map[string]int64{columnPostsCount: -1})
	})
}

// GetPost returns the stored post, or nil.
func (s *Store) GetPost(ctx context.Context, postID string) (*model.Post, error) {
	return s.Posts.FindByID(ctx, postID)
}

// GetPosts pages through every post, newest first.
func (s *Store) GetPosts(ctx context.Context, skip, limit int) ([]model.Post, error) {
	return s.Posts.Page(ctx, Page{Skip: skip, Limit: limit, Order: postsNewestFirst}, nil)
}

// GetPostsWithImages pages through posts carrying an image or gif.
func (s *Store) GetPostsWithImages(ctx context.Context, skip, limit int) ([]model.Post, error) {
	return s.Posts.Page(ctx, Page{Skip: skip, Limit: limit, Order: postsNewestFirst}, "img_id <> '' OR gif_url <> ''")
}

// GetPostsWithVideos pages through posts carrying a video.
func (s *Store) GetPostsWithVideos(ctx context.Context, skip, limit int) ([]model.Post, error) {
	return s.Posts.Page(ctx, Page{Skip: skip, Limit: limit, Order: postsNewestFirst}, "video_id <> ''")
}

// GetUserPosts returns every post of one author, newest first.
func (s *Store) GetUserPosts(ctx context.Context, authorID string) ([]model.Post, error) {
	return s.Posts.Page(ctx, Page{Limit: maxListing, Order: postsNewestFirst}, "user_id = ?", authorID)
}

// CountPosts returns the number of stored posts.
func (s *Store) CountPosts(ctx context.Context) (int64, error) {
	return s.Posts.Count(ctx, nil)
}

// AddComment stores a comment once and increments the post's commentsCount
// only when the row was inserted.
func (s *Store) AddComment(ctx context.Context, comment *model.Comment) (bool, error) {
	var inserted bool
	err := s.transaction(ctx, func(tx *Store) error {
		var err error
		if inserted, err = tx.Comments.CreateIfAbsent(ctx, comment); err != nil || !inserted {
			return err
		}
		return tx.Posts.Increment(ctx, comment.PostID, map[string]int64{columnCommentsCount: 1})
	})
	return inserted, err
}

// GetComments returns the comments of a post, newest first.
func (s *Store) GetComments(ctx context.Context, postID string) ([]model.Comment, error) {
	return s.Comments.Page(ctx, Page{Limit: maxListing, Order: postsNewestFirst}, "post_id = ?", postID)
}

// GetComment returns one comment of a post, or nil.
func (s *Store) GetComment(ctx context.Context, postID, commentID string) (*model.Comment, error) {
	return s.Comments.First(ctx, "post_id = ? AND id = ?", postID, commentID)
}

// GetCommentNames returns the comment count and the distinct commenters.
func (s *Store) GetCommentNames(ctx context.Context, postID string) (*model.CommentNames, error) {
	comments, err := s.GetComments(ctx, postID)
	if err != nil {
		return nil, err
	}
	names := &model.CommentNames{Count: int64(len(comments)), Names: []string{}}
	seen := make(map[string]bool, len(comments))
	for _, c := range comments {
		if !seen[c.Username] {
			seen[c.Username] = true
			names.Names = append(names.Names, c.Username)
		}
	}
	return names, nil
}

// maxListing bounds unpaginated listings read from the store.
const maxListing = 1000
