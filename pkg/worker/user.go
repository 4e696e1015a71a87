package worker

import (
	"context"

	"github.com/ammar0144/socialcache/pkg/queue"
)

func (w *Workers) registerUser(auth, users *queue.Queue) {
	queue.Handle(auth, func(ctx context.Context, job *queue.Job, p queue.AddAuthUser) error {
		created, err := w.store.CreateAuth(ctx, &p.Value)
		return w.inserted(job, created, err)
	})
	queue.Handle(users, func(ctx context.Context, job *queue.Job, p queue.AddUser) error {
		created, err := w.store.CreateUser(ctx, &p.Value)
		return w.inserted(job, created, err)
	})
	queue.Handle(users, func(ctx context.Context, job *queue.Job, p queue.UpdateBasicInfo) error {
		return w.settle(job, w.store.UpdateBasicInfo(ctx, p.Key, p.Value, p.Version))
	})
	queue.Handle(users, func(ctx context.Context, job *queue.Job, p queue.UpdateSocialLinks) error {
		return w.settle(job, w.store.UpdateSocialLinks(ctx, p.Key, p.Value, p.Version))
	})
	queue.Handle(users, func(ctx context.Context, job *queue.Job, p queue.UpdateNotificationSettings) error {
		return w.settle(job, w.store.UpdateNotificationSettings(ctx, p.Key, p.Value, p.Version))
	})
}
