package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "socialcache.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 6379, cfg.Redis.Port)
	assert.Equal(t, 3, cfg.Queue.Attempts)
	assert.Equal(t, "socialcache:events", cfg.Bus.Channel)
	assert.Equal(t, MailerLog, cfg.Mailer)
}

func TestLoadLayers(t *testing.T) {
	path := writeFile(t, `
redis:
  host: cache.internal
queue:
  attempts: 5
  backoff: 2s
  job_concurrency:
    addPostToDB: 2
http:
  addr: ":9000"
`)
	t.Setenv("SOCIALCACHE_REDIS_PORT", "6380")
	t.Setenv("SOCIALCACHE_DB_PASSWORD", "secret")
	t.Setenv("SOCIALCACHE_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "cache.internal", cfg.Redis.Host)
	assert.Equal(t, 6380, cfg.Redis.Port)
	assert.Equal(t, 10, cfg.Redis.PoolSize, "unset keys keep their defaults")
	assert.Equal(t, 5, cfg.Queue.Attempts)
	assert.Equal(t, 2*time.Second, cfg.Queue.Backoff)
	assert.Equal(t, map[string]int{"addPostToDB": 2}, cfg.Queue.JobConcurrency)
	assert.Equal(t, ":9000", cfg.HTTP.Addr)
	assert.Equal(t, "secret", cfg.DB.Password)
	assert.Equal(t, "debug", cfg.Log.Level)

	out := cfg.String()
	assert.NotContains(t, out, "secret")
	assert.Contains(t, out, "cache.internal:6380")
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		env  map[string]string
	}{
		{name: "bad port", env: map[string]string{"SOCIALCACHE_DB_PORT": "many"}},
		{name: "unknown mailer", yaml: "mailer: pigeon\n"},
		{name: "smtp without host", yaml: "mailer: smtp\n"},
		{name: "zero attempts", yaml: "queue:\n  attempts: 0\n"},
		{name: "malformed yaml", yaml: "redis: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.yaml != "" {
				path = writeFile(t, tt.yaml)
			}
			_, err := Load(path)
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSMTPMailerConfig(t *testing.T) {
	t.Setenv("SOCIALCACHE_MAILER", "smtp")
	t.Setenv("SOCIALCACHE_SMTP_HOST", "mail.internal")
	t.Setenv("SOCIALCACHE_SMTP_PORT", "587")
	t.Setenv("SOCIALCACHE_SMTP_FROM", "noreply@example.com")
	t.Setenv("SOCIALCACHE_SMTP_PASSWORD", "hunter2")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 587, cfg.SMTP.Port)
	assert.NotContains(t, cfg.String(), "hunter2")
}
