package repository

import (
	"context"

	"github.com/ammar0144/socialcache/pkg/model"
)

// AddNotification stores a notification once.
func (s *Store) AddNotification(ctx context.Context, n *model.Notification) (bool, error) {
	return s.Notifications.CreateIfAbsent(ctx, n)
}

// MarkNotificationRead flags one notification read.
func (s *Store) MarkNotificationRead(ctx context.Context, id string) error {
	return s.Notifications.UpdateFields(ctx, id, map[string]interface{}{"read": true})
}

// DeleteNotification removes one notification.
func (s *Store) DeleteNotification(ctx context.Context, id string) (bool, error) {
	return s.Notifications.Delete(ctx, id)
}

// GetNotifications pages through a user's notifications, newest first.
func (s *Store) GetNotifications(ctx context.Context, userID string, skip, limit int) ([]model.Notification, error) {
	return s.Notifications.Page(ctx, Page{Skip: skip, Limit: limit, Order: "created_at DESC"}, "user_to = ?", userID)
}
