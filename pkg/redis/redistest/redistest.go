// Package redistest starts an in-process Redis server and a Manager bound to
// it for package tests.
package redistest

import (
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"

	"github.com/ammar0144/socialcache/pkg/redis"
)

// New returns a Manager connected to a fresh miniredis instance. Both are
// closed when the test ends.
func New(t testing.TB) (*redis.Manager, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)
	port, err := strconv.Atoi(server.Port())
	if err != nil {
		t.Fatalf("miniredis port: %v", err)
	}

	config := redis.DefaultConfig()
	config.Host = server.Host()
	config.Port = port
	config.Logging.LogReconnects = false

	manager, err := redis.NewManager(config, zerolog.Nop())
	if err != nil {
		t.Fatalf("redis manager: %v", err)
	}
	t.Cleanup(func() { _ = manager.Close() })

	return manager, server
}
