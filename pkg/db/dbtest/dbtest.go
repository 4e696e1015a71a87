// Package dbtest opens a migrated in-process SQLite system of record for
// package tests.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"

	"github.com/ammar0144/socialcache/pkg/db"
)

// New returns a migrated Manager backed by a SQLite file in a temporary
// directory. A single connection serializes writers.
func New(t testing.TB) *db.Manager {
	t.Helper()

	config := db.DefaultConfig()
	config.MaxOpenConns = 1
	config.MaxIdleConns = 1
	config.PrepareStmt = false
	config.Logging.Level = "silent"

	dsn := filepath.Join(t.TempDir(), "records.db") + "?_pragma=busy_timeout(5000)"
	manager, err := db.Open(sqlite.Open(dsn), config, zerolog.Nop())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = manager.Close() })

	if err := manager.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return manager
}
