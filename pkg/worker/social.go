package worker

import (
	"context"
	"time"

	"github.com/ammar0144/socialcache/pkg/model"
	"github.com/ammar0144/socialcache/pkg/queue"
)

func (w *Workers) registerFollower(followers *queue.Queue) {
	queue.Handle(followers, func(ctx context.Context, job *queue.Job, p queue.AddFollower) error {
		_, err := w.store.AddFollower(ctx, p.KeyOne, p.KeyTwo, p.Version)
		return w.settle(job, err)
	})
	queue.Handle(followers, func(ctx context.Context, job *queue.Job, p queue.RemoveFollower) error {
		_, err := w.store.RemoveFollower(ctx, p.KeyOne, p.KeyTwo, p.Version)
		return w.settle(job, err)
	})
	queue.Handle(followers, func(ctx context.Context, job *queue.Job, p queue.AddBlockedUser) error {
		return w.settle(job, w.store.UpdateBlock(ctx, p.KeyOne, p.KeyTwo, model.ActionBlock, p.Version))
	})
	queue.Handle(followers, func(ctx context.Context, job *queue.Job, p queue.RemoveBlockedUser) error {
		return w.settle(job, w.store.UpdateBlock(ctx, p.KeyOne, p.KeyTwo, model.ActionUnblock, p.Version))
	})
}

func (w *Workers) registerImage(images *queue.Queue) {
	queue.Handle(images, func(ctx context.Context, job *queue.Job, p queue.AddUserProfileImage) error {
		var image *model.Image
		if p.ImgID != "" {
			image = &model.Image{ID: p.ImgID, UserID: p.Key, ImgID: p.ImgID, ImgVersion: p.ImgVersion, CreatedAt: time.Now().UTC()}
		}
		return w.store.UpdateProfilePicture(ctx, p.Key, p.Value, image)
	})
	queue.Handle(images, func(ctx context.Context, job *queue.Job, p queue.UpdateBGImage) error {
		return w.store.UpdateBackgroundImage(ctx, p.Key, &model.Image{
			ID:             p.ImgID,
			UserID:         p.Key,
			BgImageID:      p.ImgID,
			BgImageVersion: p.ImgVersion,
			CreatedAt:      time.Now().UTC(),
		})
	})
	queue.Handle(images, func(ctx context.Context, job *queue.Job, p queue.AddImage) error {
		created, err := w.store.AddImage(ctx, &model.Image{
			ID:         p.ImgID,
			UserID:     p.Key,
			ImgID:      p.ImgID,
			ImgVersion: p.ImgVersion,
			CreatedAt:  time.Now().UTC(),
		})
		return w.inserted(job, created, err)
	})
	queue.Handle(images, func(ctx context.Context, job *queue.Job, p queue.RemoveImage) error {
		_, err := w.store.RemoveImage(ctx, p.ImageID)
		return err
	})
}
