package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ammar0144/socialcache/pkg/bus"
	"github.com/ammar0144/socialcache/pkg/model"
	"github.com/ammar0144/socialcache/pkg/queue"
)

type mailer func(queue.EmailContent) queue.Payload

// notify records a notification of another user's action when the
// recipient's settings allow it and mails the recipient. Failures are logged;
// they never fail the action that produced the notification.
func (s *Service) notify(ctx context.Context, recipient *model.User, n *model.Notification, mail mailer, subject string) {
	if recipient == nil || recipient.ID == n.UserFrom || !recipient.Notifications.Allows(n.NotificationType) {
		return
	}
	n.ID = model.NewID()
	n.UserTo = recipient.ID
	n.CreatedAt = time.Now().UTC()

	if err := s.cache.Notifications.SaveNotification(ctx, n); err != nil {
		s.log.Error().Err(err).Str("user_to", n.UserTo).Str("type", string(n.NotificationType)).Msg("notification not saved")
		return
	}
	s.enqueue(ctx, queue.AddNotification{Value: *n})
	s.emit(ctx, bus.EventInsertNotification, n)

	if mail == nil || recipient.Email == "" {
		return
	}
	body, err := renderEmail(emailData{Username: recipient.Username, Message: n.Message})
	if err != nil {
		s.log.Error().Err(err).Str("user_to", n.UserTo).Msg("notification email not rendered")
		return
	}
	s.enqueue(ctx, mail(queue.EmailContent{ReceiverEmail: recipient.Email, Subject: subject, Template: body}))
}

// GetNotifications pages through the current user's notifications, newest
// first.
func (s *Service) GetNotifications(ctx context.Context, current model.CurrentUser, skip, limit int) ([]model.Notification, error) {
	if err := validCurrent(current); err != nil {
		return nil, err
	}
	if err := pageArgs(skip, limit); err != nil {
		return nil, err
	}
	list, err := s.cache.Notifications.GetNotifications(ctx, current.UserID, skip, limit)
	if err != nil || len(list) > 0 {
		return list, err
	}
	return s.store.GetNotifications(ctx, current.UserID, skip, limit)
}

// MarkNotificationRead flags one of the current user's notifications read.
func (s *Service) MarkNotificationRead(ctx context.Context, current model.CurrentUser, id string) (*model.Notification, error) {
	n, cached, err := s.ownNotification(ctx, current, id)
	if err != nil {
		return nil, err
	}
	if cached {
		if n, err = s.cache.Notifications.MarkRead(ctx, id); err != nil {
			return nil, err
		}
	} else {
		n.Read = true
	}
	s.enqueue(ctx, queue.UpdateNotification{Key: id})
	s.emit(ctx, bus.EventUpdateNotification, n)
	return n, nil
}

// DeleteNotification removes one of the current user's notifications.
func (s *Service) DeleteNotification(ctx context.Context, current model.CurrentUser, id string) error {
	_, cached, err := s.ownNotification(ctx, current, id)
	if err != nil {
		return err
	}
	if cached {
		if err := s.cache.Notifications.DeleteNotification(ctx, id); err != nil {
			return err
		}
	}
	s.enqueue(ctx, queue.DeleteNotification{Key: id})
	s.emit(ctx, bus.EventDeleteNotification, map[string]string{"notificationId": id, "userTo": current.UserID})
	return nil
}

func (s *Service) ownNotification(ctx context.Context, current model.CurrentUser, id string) (*model.Notification, bool, error) {
	if err := validCurrent(current); err != nil {
		return nil, false, err
	}
	if err := required("notificationId", id); err != nil {
		return nil, false, err
	}
	n, err := s.cache.Notifications.GetNotification(ctx, id)
	if err != nil {
		return nil, false, err
	}
	cached := n != nil
	if !cached {
		if n, err = s.store.Notifications.FindByID(ctx, id); err != nil {
			return nil, false, err
		}
	}
	if n == nil {
		return nil, false, fmt.Errorf("%w: notification %s", ErrNotFound, id)
	}
	if n.UserTo != current.UserID {
		return nil, false, fmt.Errorf("%w: notification %s", ErrForbidden, id)
	}
	return n, cached, nil
}
