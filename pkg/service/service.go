// Package service composes the write pipeline of every feature:
//
//  1. validate the input, failing before any I/O;
//  2. write the new state to the cache, which is on the critical path and
//     whose failure is returned to the caller;
//  3. build the response from cache data;
//  4. enqueue the durable write, best effort;
//  5. emit the real-time event, best effort.
//
// Reads try the cache first and fall back to the system of record on a
// miss. A miss never repopulates the cache.
package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ammar0144/socialcache/pkg/bus"
	"github.com/ammar0144/socialcache/pkg/cache"
	"github.com/ammar0144/socialcache/pkg/model"
	"github.com/ammar0144/socialcache/pkg/queue"
	"github.com/ammar0144/socialcache/pkg/repository"
)

// Caches bundles the entity adapters over one keyed cache store.
type Caches struct {
	Users         *cache.UserCache
	Posts         *cache.PostCache
	Comments      *cache.CommentCache
	Reactions     *cache.ReactionCache
	Followers     *cache.FollowerCache
	Messages      *cache.MessageCache
	Notifications *cache.NotificationCache
}

// NewCaches builds every adapter over one keyed store.
func NewCaches(store cache.Store, log zerolog.Logger) *Caches {
	users := cache.NewUserCache(store, log)
	posts := cache.NewPostCache(store, users, log)
	return &Caches{
		Users:         users,
		Posts:         posts,
		Comments:      cache.NewCommentCache(store, posts, log),
		Reactions:     cache.NewReactionCache(store, posts, log),
		Followers:     cache.NewFollowerCache(store, users, log),
		Messages:      cache.NewMessageCache(store, log),
		Notifications: cache.NewNotificationCache(store, log),
	}
}

// Service runs the feature pipelines.
type Service struct {
	cache *Caches
	store *repository.Store
	queue queue.Enqueuer
	bus   bus.Emitter
	log   zerolog.Logger
}

// New creates the service. Enqueue and emit failures are logged, never
// returned.
func New(caches *Caches, store *repository.Store, enqueuer queue.Enqueuer, emitter bus.Emitter, log zerolog.Logger) *Service {
	return &Service{cache: caches, store: store, queue: enqueuer, bus: emitter, log: log}
}

// enqueue hands a durable write to the queue. The result is not awaited:
// failures are logged and counted by the queue.
func (s *Service) enqueue(ctx context.Context, payload queue.Payload) {
	_ = s.queue.Enqueue(ctx, payload)
}

func (s *Service) emit(ctx context.Context, event string, payload interface{}) {
	s.bus.Emit(ctx, event, payload)
}

// required reports the first empty field as a validation error. Arguments
// are name, value pairs.
func required(fields ...string) error {
	for i := 0; i+1 < len(fields); i += 2 {
		if strings.TrimSpace(fields[i+1]) == "" {
			return fmt.Errorf("%w: %s is required", ErrValidation, fields[i])
		}
	}
	return nil
}

func validCurrent(current model.CurrentUser) error {
	return required("userId", current.UserID, "username", current.Username)
}

func pageArgs(skip, limit int) error {
	if skip < 0 || limit <= 0 {
		return fmt.Errorf("%w: invalid page skip=%d limit=%d", ErrValidation, skip, limit)
	}
	return nil
}
