package worker

import (
	"context"

	"github.com/ammar0144/socialcache/pkg/queue"
)

func (w *Workers) registerPost(posts, comments *queue.Queue) {
	queue.Handle(posts, func(ctx context.Context, job *queue.Job, p queue.AddPost) error {
		post := p.Value
		if post.UserID == "" {
			post.UserID = p.Key
		}
		created, err := w.store.CreatePost(ctx, &post)
		return w.inserted(job, created, err)
	})
	queue.Handle(posts, func(ctx context.Context, job *queue.Job, p queue.UpdatePost) error {
		return w.settle(job, w.store.UpdatePost(ctx, p.Key, &p.Value, p.Version))
	})
	queue.Handle(posts, func(ctx context.Context, job *queue.Job, p queue.DeletePost) error {
		return w.store.DeletePost(ctx, p.KeyOne, p.KeyTwo)
	})

	queue.Handle(comments, func(ctx context.Context, job *queue.Job, p queue.AddComment) error {
		comment := p.Comment
		comment.PostID = p.PostID
		if comment.Username == "" {
			comment.Username = p.Username
		}
		created, err := w.store.AddComment(ctx, &comment)
		return w.inserted(job, created, err)
	})
}

func (w *Workers) registerReaction(reactions *queue.Queue) {
	queue.Handle(reactions, func(ctx context.Context, job *queue.Job, p queue.AddReaction) error {
		reaction := p.ReactionObject
		reaction.PostID = p.PostID
		reaction.Username = p.Username
		reaction.Type = p.Type
		reaction.Version = p.Version
		return w.settle(job, w.store.SaveReaction(ctx, &reaction))
	})
	queue.Handle(reactions, func(ctx context.Context, job *queue.Job, p queue.RemoveReaction) error {
		return w.settle(job, w.store.RemoveReaction(ctx, p.PostID, p.Username, p.Version))
	})
}
