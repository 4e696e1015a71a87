package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ammar0144/socialcache/pkg/bus"
	"github.com/ammar0144/socialcache/pkg/model"
	"github.com/ammar0144/socialcache/pkg/queue"
)

// PostInput is the author-editable part of a post.
type PostInput struct {
	Post           string `json:"post"`
	BgColor        string `json:"bgColor"`
	Feelings       string `json:"feelings"`
	Privacy        string `json:"privacy"`
	GifURL         string `json:"gifUrl"`
	ProfilePicture string `json:"profilePicture"`
	ImgID          string `json:"imgId"`
	ImgVersion     string `json:"imgVersion"`
	VideoID        string `json:"videoId"`
	VideoVersion   string `json:"videoVersion"`
}

func (in PostInput) empty() bool {
	return in.Post == "" && in.GifURL == "" && in.ImgID == "" && in.VideoID == ""
}

func (in PostInput) apply(p *model.Post) {
	p.Post = in.Post
	p.BgColor = in.BgColor
	p.Feelings = in.Feelings
	p.Privacy = in.Privacy
	p.GifURL = in.GifURL
	p.ProfilePicture = in.ProfilePicture
	p.ImgID = in.ImgID
	p.ImgVersion = in.ImgVersion
	p.VideoID = in.VideoID
	p.VideoVersion = in.VideoVersion
}

// CreatePost adds a post to the feed. A post with an image also records the
// image against the author.
func (s *Service) CreatePost(ctx context.Context, current model.CurrentUser, in PostInput) (*model.Post, error) {
	if err := validCurrent(current); err != nil {
		return nil, err
	}
	if err := required("uId", current.UID); err != nil {
		return nil, err
	}
	if in.empty() {
		return nil, fmt.Errorf("%w: post has no content", ErrValidation)
	}

	post := &model.Post{
		ID:          model.NewID(),
		UserID:      current.UserID,
		Username:    current.Username,
		Email:       current.Email,
		AvatarColor: current.AvatarColor,
		CreatedAt:   time.Now().UTC(),
		Version:     model.NextVersion(),
	}
	in.apply(post)

	if err := s.cache.Posts.SavePost(ctx, post, current.UID); err != nil {
		return nil, err
	}
	s.emit(ctx, bus.EventAddPost, post)
	s.enqueue(ctx, queue.AddPost{Key: current.UserID, Value: *post})
	if post.ImgID != "" {
		s.enqueue(ctx, queue.AddImage{Key: current.UserID, ImgID: post.ImgID, ImgVersion: post.ImgVersion})
	}
	return post, nil
}

// GetPost returns a single post, nil when it exists in neither tier.
func (s *Service) GetPost(ctx context.Context, postID string) (*model.Post, error) {
	post, _, err := s.findPost(ctx, postID)
	return post, err
}

func (s *Service) findPost(ctx context.Context, postID string) (*model.Post, bool, error) {
	if err := required("postId", postID); err != nil {
		return nil, false, err
	}
	post, err := s.cache.Posts.GetPost(ctx, postID)
	if err != nil {
		return nil, false, err
	}
	if post != nil {
		return post, true, nil
	}
	post, err = s.store.GetPost(ctx, postID)
	return post, false, err
}

// PostPage is one page of the feed with the total number of posts.
type PostPage struct {
	Posts []model.Post `json:"posts"`
	Total int64        `json:"totalPosts"`
}

// GetPosts pages through the global feed.
func (s *Service) GetPosts(ctx context.Context, skip, limit int) (*PostPage, error) {
	if err := pageArgs(skip, limit); err != nil {
		return nil, err
	}
	posts, err := s.cache.Posts.GetPosts(ctx, skip, limit)
	if err != nil {
		return nil, err
	}
	if len(posts) > 0 {
		total, err := s.cache.Posts.TotalPosts(ctx)
		if err != nil {
			return nil, err
		}
		return &PostPage{Posts: posts, Total: total}, nil
	}
	if posts, err = s.store.GetPosts(ctx, skip, limit); err != nil {
		return nil, err
	}
	total, err := s.store.CountPosts(ctx)
	if err != nil {
		return nil, err
	}
	return &PostPage{Posts: posts, Total: total}, nil
}

// GetPostsWithImages pages through posts carrying an image or gif.
func (s *Service) GetPostsWithImages(ctx context.Context, skip, limit int) ([]model.Post, error) {
	return s.feed(ctx, skip, limit, s.cache.Posts.GetPostsWithImages, s.store.GetPostsWithImages)
}

// GetPostsWithVideos pages through posts carrying a video.
func (s *Service) GetPostsWithVideos(ctx context.Context, skip, limit int) ([]model.Post, error) {
	return s.feed(ctx, skip, limit, s.cache.Posts.GetPostsWithVideos, s.store.GetPostsWithVideos)
}

type postReader func(ctx context.Context, skip, limit int) ([]model.Post, error)

func (s *Service) feed(ctx context.Context, skip, limit int, cached, stored postReader) ([]model.Post, error) {
	if err := pageArgs(skip, limit); err != nil {
		return nil, err
	}
	posts, err := cached(ctx, skip, limit)
	if err != nil || len(posts) > 0 {
		return posts, err
	}
	return stored(ctx, skip, limit)
}

// GetUserPosts lists a user's posts, newest first. The cache indexes posts
// by the author's uId, the store by user id.
func (s *Service) GetUserPosts(ctx context.Context, userID, uID string) ([]model.Post, error) {
	if err := required("userId", userID, "uId", uID); err != nil {
		return nil, err
	}
	posts, err := s.cache.Posts.GetUserPosts(ctx, uID)
	if err != nil || len(posts) > 0 {
		return posts, err
	}
	return s.store.GetUserPosts(ctx, userID)
}

// UpdatePost replaces the editable fields of the current user's post.
func (s *Service) UpdatePost(ctx context.Context, current model.CurrentUser, postID string, in PostInput) (*model.Post, error) {
	if err := validCurrent(current); err != nil {
		return nil, err
	}
	if in.empty() {
		return nil, fmt.Errorf("%w: post has no content", ErrValidation)
	}
	post, cached, err := s.ownPost(ctx, current, postID)
	if err != nil {
		return nil, err
	}
	in.apply(post)
	post.Version = model.NextVersion()

	if cached {
		if post, err = s.cache.Posts.UpdatePost(ctx, postID, post); err != nil {
			return nil, err
		}
	}
	s.emit(ctx, bus.EventUpdatePost, post)
	s.enqueue(ctx, queue.UpdatePost{Key: postID, Value: *post, Version: post.Version})
	if in.ImgID != "" {
		s.enqueue(ctx, queue.AddImage{Key: current.UserID, ImgID: in.ImgID, ImgVersion: in.ImgVersion})
	}
	return post, nil
}

// DeletePost removes the current user's post with its comments and
// reactions.
func (s *Service) DeletePost(ctx context.Context, current model.CurrentUser, postID string) error {
	if err := validCurrent(current); err != nil {
		return err
	}
	_, cached, err := s.ownPost(ctx, current, postID)
	if err != nil {
		return err
	}
	if cached {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return s.cache.Posts.DeletePost(gctx, postID, current.UserID) })
		g.Go(func() error { return s.cache.Comments.DeleteForPost(gctx, postID) })
		g.Go(func() error { return s.cache.Reactions.DeleteForPost(gctx, postID) })
		if err := g.Wait(); err != nil {
			return err
		}
	}
	s.emit(ctx, bus.EventDeletePost, map[string]string{"postId": postID})
	s.enqueue(ctx, queue.DeletePost{KeyOne: postID, KeyTwo: current.UserID})
	return nil
}

func (s *Service) ownPost(ctx context.Context, current model.CurrentUser, postID string) (*model.Post, bool, error) {
	post, cached, err := s.findPost(ctx, postID)
	if err != nil {
		return nil, false, err
	}
	if post == nil {
		return nil, false, fmt.Errorf("%w: post %s", ErrNotFound, postID)
	}
	if post.UserID != current.UserID {
		return nil, false, fmt.Errorf("%w: post %s", ErrForbidden, postID)
	}
	return post, cached, nil
}
