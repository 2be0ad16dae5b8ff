package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shiftguard/internal/remote"
)

var knownKeys = []string{
	"APP_ENV", "LOG_LEVEL", "LOG_JSON", "REMOTE_BACKEND", "REMOTE_TABLE", "REMOTE_KEY",
	"REMOTE_URL", "REMOTE_API_KEY", "REMOTE_TIMEOUT", "REDIS_ADDR",
	"REDIS_PASSWORD", "REDIS_DB", "DATABASE_URL", "SQLITE_PATH",
	"FIRESTORE_PROJECT", "FIRESTORE_CREDENTIALS", "POLL_INTERVAL",
	"PUSH_DEBOUNCE", "HTTP_ADDR", "JWT_ISSUER", "JWT_SIGNING_KEY",
	"SESSION_TTL", "RATE_LIMIT_PER_MIN", "OWNER_ACCESS_CODE",
	"ADMIN_ACCESS_CODE", "TIMEZONE",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range knownKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("REMOTE_URL", "https://example.supabase.co/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, remote.BackendHTTP, cfg.Remote.Backend)
	assert.Equal(t, "https://example.supabase.co", cfg.Remote.URL, "trailing slash trimmed")
	assert.Equal(t, remote.DefaultTable, cfg.Remote.Table)
	assert.Equal(t, remote.DefaultKey, cfg.Remote.Key)
	assert.Equal(t, 7*time.Second, cfg.PollInterval)
	assert.Equal(t, time.Second, cfg.PushDebounce)
	assert.Equal(t, 10*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, 120, cfg.RateLimitPerMin)
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("REMOTE_BACKEND", "sqlite")
	t.Setenv("SQLITE_PATH", "/tmp/sg.db")
	t.Setenv("POLL_INTERVAL", "3s")
	t.Setenv("PUSH_DEBOUNCE", "250ms")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("OWNER_ACCESS_CODE", "o")
	t.Setenv("LOG_JSON", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, remote.BackendSQLite, cfg.Remote.Backend)
	assert.Equal(t, "/tmp/sg.db", cfg.Remote.SQLitePath)
	assert.Equal(t, 3*time.Second, cfg.PollInterval)
	assert.Equal(t, 250*time.Millisecond, cfg.PushDebounce)
	assert.Equal(t, 2, cfg.Remote.RedisDB)
	assert.Equal(t, "o", cfg.OwnerAccessCode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.LogJSON)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("REMOTE_BACKEND", "memory")
	t.Setenv("POLL_INTERVAL", "often")
	t.Setenv("RATE_LIMIT_PER_MIN", "many")
	t.Setenv("LOG_JSON", "sometimes")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7*time.Second, cfg.PollInterval)
	assert.Equal(t, 120, cfg.RateLimitPerMin)
	assert.False(t, cfg.LogJSON)
}

func TestLoad_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"http without url", map[string]string{}},
		{"http url without scheme", map[string]string{"REMOTE_URL": "example.com"}},
		{"unknown backend", map[string]string{"REMOTE_BACKEND": "mongo"}},
		{"bad table", map[string]string{"REMOTE_BACKEND": "memory", "REMOTE_TABLE": "drop-table"}},
		{"zero poll", map[string]string{"REMOTE_BACKEND": "memory", "POLL_INTERVAL": "0s"}},
		{"postgres without url", map[string]string{"REMOTE_BACKEND": "postgres"}},
		{"firestore without project", map[string]string{"REMOTE_BACKEND": "firestore"}},
		{"unknown log level", map[string]string{"REMOTE_BACKEND": "memory", "LOG_LEVEL": "trace"}},
		{"prod short key", map[string]string{"REMOTE_BACKEND": "memory", "APP_ENV": "prod", "JWT_SIGNING_KEY": "short"}},
		{"bad timezone", map[string]string{"REMOTE_BACKEND": "memory", "TIMEZONE": "Mars/Olympus"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			var cfgErr *Error
			require.ErrorAs(t, err, &cfgErr)
			assert.Contains(t, err.Error(), "invalid configuration")
		})
	}
}

func TestLoad_ProdWithStrongKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("REMOTE_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/sg")
	t.Setenv("APP_ENV", "prod")
	t.Setenv("JWT_SIGNING_KEY", "0123456789abcdef0123")

	_, err := Load()
	require.NoError(t, err)
}

func TestSlogLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", Config{LogLevel: "debug"}.SlogLevel().String())
	assert.Equal(t, "INFO", Config{}.SlogLevel().String())
	assert.Equal(t, "ERROR", Config{LogLevel: "error"}.SlogLevel().String())
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("SHIFTGUARD_TEST_MARKER=loaded\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("SHIFTGUARD_TEST_MARKER") })

	require.NoError(t, LoadEnvFile(path, false))
	assert.Equal(t, "loaded", os.Getenv("SHIFTGUARD_TEST_MARKER"))
}

func TestLoadEnvFile_Missing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.env")

	assert.NoError(t, LoadEnvFile(missing, true))
	assert.Error(t, LoadEnvFile(missing, false))
}
