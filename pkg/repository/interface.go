package repository

import (
	"context"
)

// Repository is the system-of-record contract of one collection: create,
// upsert, atomic increment and query by filter.
type Repository[T Entity] interface {
	// Queries
	FindByID(ctx context.Context, id string) (*T, error)
	FindWhere(ctx context.Context, query interface{}, args ...interface{}) ([]T, error)
	First(ctx context.Context, query interface{}, args ...interface{}) (*T, error)
	Page(ctx context.Context, page Page, query interface{}, args ...interface{}) ([]T, error)
	Count(ctx context.Context, query interface{}, args ...interface{}) (int64, error)
	Exists(ctx context.Context, id string) (bool, error)

	// Commands
	CreateIfAbsent(ctx context.Context, entity *T) (bool, error)
	Upsert(ctx context.Context, entity *T) error
	UpdateFields(ctx context.Context, id string, updates map[string]interface{}) error
	UpdateVersioned(ctx context.Context, id, versionColumn string, version int64, updates map[string]interface{}) error
	Increment(ctx context.Context, id string, deltas map[string]int64) error
	Delete(ctx context.Context, id string) (bool, error)
	DeleteWhere(ctx context.Context, query interface{}, args ...interface{}) (int64, error)
}

// Page selects a window of an ordered query.
type Page struct {
	Skip  int
	Limit int
	Order string
}
