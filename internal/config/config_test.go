package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wacontacts/internal/infrastructure"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiry)
	assert.Equal(t, 25, cfg.Sync.ChunkSize)
	assert.Equal(t, 1, cfg.Sync.Concurrency)
}

func TestLoadExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadYAMLThenEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`database:
  url: libsql://contacts.turso.io
  auth-token: file-token
http:
  addr: ":9090"
jwt:
  secret: from-file
  expiry: 2h
sync:
  chunk-size: 10
  concurrency: 2
telegram:
  report-chat-id: 42
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	t.Setenv(EnvConfigPath, path)
	t.Setenv(EnvDatabaseAuthToken, "env-token")
	t.Setenv(EnvJWTExpiry, "30m")
	t.Setenv(EnvSyncChunkSize, "50")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "libsql://contacts.turso.io", cfg.Database.URL)
	assert.Equal(t, "env-token", cfg.Database.AuthToken)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, "from-file", cfg.JWT.Secret)
	assert.Equal(t, 30*time.Minute, cfg.JWT.Expiry)
	assert.Equal(t, 50, cfg.Sync.ChunkSize)
	assert.Equal(t, 2, cfg.Sync.Concurrency)
	assert.Equal(t, int64(42), cfg.Telegram.ReportChatID)
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	t.Chdir(t.TempDir())
	t.Setenv(EnvSyncConcurrency, "many")
	t.Setenv(EnvJWTExpiry, "soon")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Sync.Concurrency)
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiry)
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	assert.ErrorIs(t, cfg.Validate(), infrastructure.ErrMissingDatabaseURL)

	cfg.Database.URL = "libsql://contacts.turso.io"
	assert.ErrorIs(t, cfg.Validate(), infrastructure.ErrMissingAuthToken)

	cfg.Database.AuthToken = "token"
	assert.NoError(t, cfg.Validate())
	assert.ErrorIs(t, cfg.ValidateServe(), ErrMissingJWTSecret)

	cfg.JWT.Secret = "secret"
	assert.NoError(t, cfg.ValidateServe())

	local := Defaults()
	local.Database.URL = "file:contacts.db"
	assert.NoError(t, local.Validate())

	local.Sync.ChunkSize = -1
	assert.Error(t, local.Validate())
}

func TestSyncPauseDuration(t *testing.T) {
	assert.Equal(t, 200*time.Millisecond, Defaults().Sync.PauseDuration())
}
