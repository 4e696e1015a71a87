package worker

import (
	"context"

	"github.com/ammar0144/socialcache/pkg/queue"
)

func (w *Workers) registerChat(chat *queue.Queue) {
	queue.Handle(chat, func(ctx context.Context, job *queue.Job, p queue.AddChatMessage) error {
		created, err := w.store.AddMessage(ctx, &p.Value)
		return w.inserted(job, created, err)
	})
	queue.Handle(chat, func(ctx context.Context, job *queue.Job, p queue.MarkMessageDeleted) error {
		return w.store.MarkMessageDeleted(ctx, p.MessageID, p.Type)
	})
	queue.Handle(chat, func(ctx context.Context, job *queue.Job, p queue.MarkMessagesRead) error {
		n, err := w.store.MarkMessagesRead(ctx, p.SenderID, p.ReceiverID)
		if err == nil {
			w.log.Debug().Str("job_id", job.ID).Int64("messages", n).Msg("messages marked read")
		}
		return err
	})
	queue.Handle(chat, func(ctx context.Context, job *queue.Job, p queue.UpdateMessageReaction) error {
		return w.store.UpdateMessageReaction(ctx, p.MessageID, p.SenderName, p.Reaction, p.Type)
	})
}

func (w *Workers) registerNotification(notifications *queue.Queue) {
	queue.Handle(notifications, func(ctx context.Context, job *queue.Job, p queue.AddNotification) error {
		created, err := w.store.AddNotification(ctx, &p.Value)
		return w.inserted(job, created, err)
	})
	queue.Handle(notifications, func(ctx context.Context, job *queue.Job, p queue.UpdateNotification) error {
		return w.store.MarkNotificationRead(ctx, p.Key)
	})
	queue.Handle(notifications, func(ctx context.Context, job *queue.Job, p queue.DeleteNotification) error {
		_, err := w.store.DeleteNotification(ctx, p.Key)
		return err
	})
}
