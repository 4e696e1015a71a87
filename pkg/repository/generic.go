package repository

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GenericRepository implements Repository over one GORM model. It never
// touches the cache: the cache tier is written ahead by the services and the
// collections only see worker traffic and read fallbacks.
type GenericRepository[T Entity] struct {
	db         *gorm.DB
	timeout    time.Duration
	tableName  string
	primaryKey string
}

// NewGenericRepository creates a collection for T on db.
func NewGenericRepository[T Entity](db *gorm.DB, timeout time.Duration) *GenericRepository[T] {
	entityType := reflect.TypeOf((*T)(nil)).Elem()

	var model T
	tableName := model.TableName()
	if tableName == "" {
		panic(fmt.Sprintf("entity type %v returned empty TableName(), Entity interface not properly implemented", entityType))
	}

	primaryKey := extractPrimaryKeyNameFromDB(db, entityType)
	if primaryKey == "" {
		primaryKey = "id"
	}

	return &GenericRepository[T]{
		db:         db,
		timeout:    timeout,
		tableName:  tableName,
		primaryKey: primaryKey,
	}
}

// withQueryTimeout wraps a context with the configured query timeout
func (r *GenericRepository[T]) withQueryTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout > 0 {
		return context.WithTimeout(ctx, r.timeout)
	}
	return ctx, func() {}
}

// table addresses the collection by name so map updates carry raw column
// values, including pre-encoded JSON for serializer columns.
func (r *GenericRepository[T]) table(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Table(r.tableName)
}

func (r *GenericRepository[T]) byID() string {
	return r.primaryKey + " = ?"
}

// ============================================================================
// READ OPERATIONS
// ============================================================================

// FindByID returns the record or nil when it does not exist.
func (r *GenericRepository[T]) FindByID(ctx context.Context, id string) (*T, error) {
	ctx, cancel := r.withQueryTimeout(ctx)
	defer cancel()

	var entity T
	err := r.db.WithContext(ctx).Where(r.byID(), id).Take(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: find %s: %w", r.tableName, id, err)
	}
	return &entity, nil
}

// FindWhere returns every record matching the filter.
func (r *GenericRepository[T]) FindWhere(ctx context.Context, query interface{}, args ...interface{}) ([]T, error) {
	ctx, cancel := r.withQueryTimeout(ctx)
	defer cancel()

	var entities []T
	if err := r.db.WithContext(ctx).Where(query, args...).Find(&entities).Error; err != nil {
		return nil, fmt.Errorf("%s: find: %w", r.tableName, err)
	}
	return entities, nil
}

// First returns the first record matching the filter, or nil.
func (r *GenericRepository[T]) First(ctx context.Context, query interface{}, args ...interface{}) (*T, error) {
	ctx, cancel := r.withQueryTimeout(ctx)
	defer cancel()

	var entity T
	err := r.db.WithContext(ctx).Where(query, args...).Take(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: first: %w", r.tableName, err)
	}
	return &entity, nil
}

// Page returns a window of the records matching the filter. A nil query
// matches everything.
func (r *GenericRepository[T]) Page(ctx context.Context, page Page, query interface{}, args ...interface{}) ([]T, error) {
	ctx, cancel := r.withQueryTimeout(ctx)
	defer cancel()

	if page.Limit <= 0 {
		return nil, nil
	}
	if page.Skip < 0 {
		page.Skip = 0
	}

	tx := r.db.WithContext(ctx)
	if query != nil {
		tx = tx.Where(query, args...)
	}
	if page.Order != "" {
		tx = tx.Order(page.Order)
	}

	var entities []T
	if err := tx.Offset(page.Skip).Limit(page.Limit).Find(&entities).Error; err != nil {
		return nil, fmt.Errorf("%s: page: %w", r.tableName, err)
	}
	return entities, nil
}

// Count returns the number of records matching the filter; nil counts all.
func (r *GenericRepository[T]) Count(ctx context.Context, query interface{}, args ...interface{}) (int64, error) {
	ctx, cancel := r.withQueryTimeout(ctx)
	defer cancel()

	var count int64
	tx := r.db.WithContext(ctx).Model(new(T))
	if query != nil {
		tx = tx.Where(query, args...)
	}
	if err := tx.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("%s: count: %w", r.tableName, err)
	}
	return count, nil
}

// Exists checks if a record exists by ID
func (r *GenericRepository[T]) Exists(ctx context.Context, id string) (bool, error) {
	count, err := r.Count(ctx, r.byID(), id)
	return count > 0, err
}

// ============================================================================
// WRITE OPERATIONS
// ============================================================================

// CreateIfAbsent inserts the record unless its key already exists and
// reports whether a row was written. Redelivered jobs land here as no-ops.
func (r *GenericRepository[T]) CreateIfAbsent(ctx context.Context, entity *T) (bool, error) {
	if entity == nil {
		return false, fmt.Errorf("entity cannot be nil")
	}

	ctx, cancel := r.withQueryTimeout(ctx)
	defer cancel()

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(entity)
	if result.Error != nil {
		return false, fmt.Errorf("%s: create: %w", r.tableName, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// Upsert inserts the record or overwrites every column of the existing one.
func (r *GenericRepository[T]) Upsert(ctx context.Context, entity *T) error {
	if entity == nil {
		return fmt.Errorf("entity cannot be nil")
	}

	ctx, cancel := r.withQueryTimeout(ctx)
	defer cancel()

	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(entity).Error; err != nil {
		return fmt.Errorf("%s: upsert: %w", r.tableName, err)
	}
	return nil
}

// UpdateFields sets columns on one record; ErrNotFound when nothing matched.
func (r *GenericRepository[T]) UpdateFields(ctx context.Context, id string, updates map[string]interface{}) error {
	ctx, cancel := r.withQueryTimeout(ctx)
	defer cancel()

	result := r.table(ctx).Where(r.byID(), id).UpdateColumns(updates)
	if result.Error != nil {
		return fmt.Errorf("%s: update %s: %w", r.tableName, id, result.Error)
	}
	if result.RowsAffected == 0 {
		return r.missing(ctx, id)
	}
	return nil
}

// UpdateVersioned applies updates only when version is newer than the one
// stored in versionColumn (last writer wins). It returns ErrStale for an
// older or equal version and ErrNotFound when the record does not exist yet.
func (r *GenericRepository[T]) UpdateVersioned(ctx context.Context, id, versionColumn string, version int64, updates map[string]interface{}) error {
	ctx, cancel := r.withQueryTimeout(ctx)
	defer cancel()

	columns := make(map[string]interface{}, len(updates)+1)
	for k, v := range updates {
		columns[k] = v
	}
	columns[versionColumn] = version

	result := r.table(ctx).
		Where(r.byID()+" AND "+versionColumn+" < ?", id, version).
		UpdateColumns(columns)
	if result.Error != nil {
		return fmt.Errorf("%s: versioned update %s: %w", r.tableName, id, result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	exists, err := r.Exists(ctx, id)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s %s at version %d", ErrStale, r.tableName, id, version)
	}
	return fmt.Errorf("%w: %s %s", ErrNotFound, r.tableName, id)
}

// Increment applies $inc-style atomic deltas to integer columns of one record.
func (r *GenericRepository[T]) Increment(ctx context.Context, id string, deltas map[string]int64) error {
	if len(deltas) == 0 {
		return nil
	}

	ctx, cancel := r.withQueryTimeout(ctx)
	defer cancel()

	columns := make(map[string]interface{}, len(deltas))
	for column, delta := range deltas {
		columns[column] = gorm.Expr(column+" + ?", delta)
	}

	result := r.table(ctx).Where(r.byID(), id).UpdateColumns(columns)
	if result.Error != nil {
		return fmt.Errorf("%s: increment %s: %w", r.tableName, id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s %s", ErrNotFound, r.tableName, id)
	}
	return nil
}

// Delete removes one record and reports whether it existed.
func (r *GenericRepository[T]) Delete(ctx context.Context, id string) (bool, error) {
	n, err := r.DeleteWhere(ctx, r.byID(), id)
	return n > 0, err
}

// DeleteWhere removes every record matching the filter.
func (r *GenericRepository[T]) DeleteWhere(ctx context.Context, query interface{}, args ...interface{}) (int64, error) {
	ctx, cancel := r.withQueryTimeout(ctx)
	defer cancel()

	result := r.db.WithContext(ctx).Where(query, args...).Delete(new(T))
	if result.Error != nil {
		return 0, fmt.Errorf("%s: delete: %w", r.tableName, result.Error)
	}
	return result.RowsAffected, nil
}

// missing distinguishes "no such row" from "row already had these values",
// which some drivers report as zero affected rows.
func (r *GenericRepository[T]) missing(ctx context.Context, id string) error {
	exists, err := r.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s %s", ErrNotFound, r.tableName, id)
	}
	return nil
}

// ============================================================================
// UTILITY FUNCTIONS
// ============================================================================

// extractPrimaryKeyNameFromDB tries to obtain the primary key column name using GORM schema
// Returns empty string if it cannot be determined
func extractPrimaryKeyNameFromDB(gormDB *gorm.DB, entityType reflect.Type) string {
	if gormDB == nil || entityType == nil {
		return ""
	}

	var model interface{}
	if entityType.Kind() == reflect.Ptr {
		model = reflect.New(entityType.Elem()).Interface()
	} else {
		model = reflect.New(entityType).Interface()
	}

	stmt := &gorm.Statement{DB: gormDB}
	if err := stmt.Parse(model); err != nil {
		return ""
	}

	if stmt.Schema == nil {
		return ""
	}

	if len(stmt.Schema.PrimaryFields) > 0 {
		if f := stmt.Schema.PrimaryFields[0]; f != nil {
			return f.DBName
		}
	}

	return ""
}
