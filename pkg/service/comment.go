package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ammar0144/socialcache/pkg/bus"
	"github.com/ammar0144/socialcache/pkg/model"
	"github.com/ammar0144/socialcache/pkg/queue"
)

// AddComment comments on an existing post and notifies its author.
func (s *Service) AddComment(ctx context.Context, current model.CurrentUser, postID, text, profilePicture string) (*model.Comment, error) {
	if err := validCurrent(current); err != nil {
		return nil, err
	}
	if err := required("postId", postID, "comment", text); err != nil {
		return nil, err
	}
	post, cached, err := s.findPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, fmt.Errorf("%w: post %s", ErrNotFound, postID)
	}

	comment := &model.Comment{
		ID:             model.NewID(),
		PostID:         postID,
		Username:       current.Username,
		AvatarColor:    current.AvatarColor,
		ProfilePicture: profilePicture,
		Comment:        text,
		CreatedAt:      time.Now().UTC(),
	}
	// The comment counter lives on the post hash; an uncached post must not
	// gain a partial record.
	if cached {
		if err := s.cache.Comments.SaveComment(ctx, comment); err != nil {
			return nil, err
		}
		post.CommentsCount++
	}
	s.emit(ctx, bus.EventAddComment, comment)
	s.enqueue(ctx, queue.AddComment{
		PostID:   postID,
		UserTo:   post.UserID,
		UserFrom: current.UserID,
		Username: current.Username,
		Comment:  *comment,
	})

	if author, err := s.GetUser(ctx, post.UserID); err != nil {
		s.log.Error().Err(err).Str("user_id", post.UserID).Msg("comment author lookup failed")
	} else {
		s.notify(ctx, author, &model.Notification{
			UserFrom:         current.UserID,
			Username:         current.Username,
			AvatarColor:      current.AvatarColor,
			ProfilePicture:   profilePicture,
			Message:          fmt.Sprintf("%s commented on your post.", current.Username),
			NotificationType: model.NotificationComment,
			EntityID:         postID,
			CreatedItemID:    comment.ID,
			Comment:          text,
			Post:             post.Post,
			ImgID:            post.ImgID,
			ImgVersion:       post.ImgVersion,
			GifURL:           post.GifURL,
		}, func(c queue.EmailContent) queue.Payload { return queue.CommentsEmail{EmailContent: c} }, "Post notification")
	}
	return comment, nil
}

// GetComments lists a post's comments, newest first.
func (s *Service) GetComments(ctx context.Context, postID string) ([]model.Comment, error) {
	if err := required("postId", postID); err != nil {
		return nil, err
	}
	comments, err := s.cache.Comments.GetComments(ctx, postID)
	if err != nil || len(comments) > 0 {
		return comments, err
	}
	return s.store.GetComments(ctx, postID)
}

// GetCommentNames returns the comment count and the distinct commenters.
func (s *Service) GetCommentNames(ctx context.Context, postID string) (*model.CommentNames, error) {
	if err := required("postId", postID); err != nil {
		return nil, err
	}
	names, err := s.cache.Comments.GetCommentNames(ctx, postID)
	if err != nil || names.Count > 0 {
		return names, err
	}
	return s.store.GetCommentNames(ctx, postID)
}

// GetComment returns one comment, nil when it exists in neither tier.
func (s *Service) GetComment(ctx context.Context, postID, commentID string) (*model.Comment, error) {
	if err := required("postId", postID, "commentId", commentID); err != nil {
		return nil, err
	}
	comment, err := s.cache.Comments.GetComment(ctx, postID, commentID)
	if err != nil || comment != nil {
		return comment, err
	}
	return s.store.GetComment(ctx, postID, commentID)
}
