package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "postgate.db", cfg.DBPath)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.True(t, cfg.DryRun)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.RetryDelay)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("POSTGATE_DB_PATH", "/tmp/pg.db")
	t.Setenv("POSTGATE_WORKERS", "4")
	t.Setenv("POSTGATE_DRY_RUN", "false")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/pg.db", cfg.DBPath)
	assert.Equal(t, 4, cfg.Workers)
	assert.False(t, cfg.DryRun)
}

func TestLoadDotenv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("POSTGATE_ADDR=:9999\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("POSTGATE_ADDR") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.ListenAddr)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("POSTGATE_WORKERS", "0")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)

	t.Setenv("POSTGATE_WORKERS", "lots")
	_, err = Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}
