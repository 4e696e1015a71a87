package cache

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ammar0144/socialcache/pkg/model"
)

// NotificationCache stores notifications in "notifications:<id>" hashes
// indexed per receiver by "userNotifications:<userId>", scored by creation
// time in milliseconds.
type NotificationCache struct {
	store Store
	log   zerolog.Logger
}

// NewNotificationCache creates the notification adapter
func NewNotificationCache(store Store, log zerolog.Logger) *NotificationCache {
	return &NotificationCache{store: store, log: log}
}

// SaveNotification stores the notification hash and indexes it under its
// recipient by creation time.
func (c *NotificationCache) SaveNotification(ctx context.Context, n *model.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if err := c.store.HSet(ctx, notificationKey(n.ID), encodeNotification(n)); err != nil {
		return err
	}
	return c.store.ZAdd(ctx, userNotificationsKey(n.UserTo), float64(n.CreatedAt.UnixMilli()), n.ID)
}

// GetNotification returns the cached notification, or nil on a miss.
func (c *NotificationCache) GetNotification(ctx context.Context, id string) (*model.Notification, error) {
	fields, err := c.store.HGetAll(ctx, notificationKey(id))
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return decodeNotification(fields)
}

// GetNotifications pages through a user's notifications, newest first.
func (c *NotificationCache) GetNotifications(ctx context.Context, userID string, skip, limit int) ([]model.Notification, error) {
	start, stop, ok := pageBounds(skip, limit)
	if !ok {
		return nil, nil
	}
	ids, err := c.store.ZRevRange(ctx, userNotificationsKey(userID), start, stop)
	if err != nil || len(ids) == 0 {
		return nil, err
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = notificationKey(id)
	}
	records, err := c.store.HGetAllMany(ctx, keys)
	if err != nil {
		return nil, err
	}
	out := make([]model.Notification, 0, len(records))
	for _, fields := range records {
		if len(fields) == 0 {
			continue
		}
		n, err := decodeNotification(fields)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, nil
}

// MarkRead flags the notification read and returns it, or nil on a miss.
func (c *NotificationCache) MarkRead(ctx context.Context, id string) (*model.Notification, error) {
	n, err := c.GetNotification(ctx, id)
	if err != nil || n == nil {
		return nil, err
	}
	if err := c.store.HSetField(ctx, notificationKey(id), "read", formatBool(true)); err != nil {
		return nil, err
	}
	n.Read = true
	return n, nil
}

// DeleteNotification removes the record and its index entry.
func (c *NotificationCache) DeleteNotification(ctx context.Context, id string) error {
	n, err := c.GetNotification(ctx, id)
	if err != nil {
		return err
	}
	if n != nil {
		if err := c.store.ZRem(ctx, userNotificationsKey(n.UserTo), id); err != nil {
			return err
		}
	}
	return c.store.Del(ctx, notificationKey(id))
}
