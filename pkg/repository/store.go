package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/ammar0144/socialcache/pkg/db"
	"github.com/ammar0144/socialcache/pkg/model"
)

// Store groups the collections of the system of record and implements the
// entity mutations the workers apply. Mutations that touch several rows run
// in one database transaction.
type Store struct {
	db      *gorm.DB
	timeout time.Duration
	log     zerolog.Logger

	Auth          *GenericRepository[model.Auth]
	Users         *GenericRepository[model.User]
	Posts         *GenericRepository[model.Post]
	Comments      *GenericRepository[model.Comment]
	Reactions     *GenericRepository[model.Reaction]
	Followers     *GenericRepository[model.Follower]
	Blocks        *GenericRepository[model.Block]
	Images        *GenericRepository[model.Image]
	Notifications *GenericRepository[model.Notification]
	Messages      *GenericRepository[model.Message]
	Conversations *GenericRepository[model.Conversation]
}

// NewStore builds the collections on the manager's connection pool.
func NewStore(manager *db.Manager, log zerolog.Logger) *Store {
	var timeout time.Duration
	if cfg := manager.Config(); cfg != nil {
		timeout = cfg.QueryTimeout
	}
	return newStore(manager.DB(), timeout, log)
}

func newStore(gormDB *gorm.DB, timeout time.Duration, log zerolog.Logger) *Store {
	return &Store{
		db:            gormDB,
		timeout:       timeout,
		log:           log,
		Auth:          NewGenericRepository[model.Auth](gormDB, timeout),
		Users:         NewGenericRepository[model.User](gormDB, timeout),
		Posts:         NewGenericRepository[model.Post](gormDB, timeout),
		Comments:      NewGenericRepository[model.Comment](gormDB, timeout),
		Reactions:     NewGenericRepository[model.Reaction](gormDB, timeout),
		Followers:     NewGenericRepository[model.Follower](gormDB, timeout),
		Blocks:        NewGenericRepository[model.Block](gormDB, timeout),
		Images:        NewGenericRepository[model.Image](gormDB, timeout),
		Notifications: NewGenericRepository[model.Notification](gormDB, timeout),
		Messages:      NewGenericRepository[model.Message](gormDB, timeout),
		Conversations: NewGenericRepository[model.Conversation](gormDB, timeout),
	}
}

// transaction runs fn against a Store bound to one database transaction.
func (s *Store) transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(newStore(tx, s.timeout, s.log))
	})
}

// jsonColumn encodes a value for a column declared with serializer:json.
func jsonColumn(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode column: %w", err)
	}
	return string(data), nil
}
