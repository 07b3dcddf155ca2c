package file

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	stores, err := cfg.StoreTypes()
	require.NoError(t, err)
	assert.Equal(t, []domain.StoreType{domain.StoreVector, domain.StoreKeyword}, stores)
	assert.Equal(t, 768, cfg.Models.DocEmbeddingDim)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.toml")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, cfg.Storage.Backend)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "data"), cfg.Storage.DataDir)
	assert.Equal(t, 10*time.Second, cfg.Scheduler.TickInterval.Duration)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[storage]
data_dir = "/var/lib/sercha"

[indexing]
stores = ["keyword"]
workers = 8

[scheduler]
tick_interval = "1m30s"
max_concurrent = 5
`)

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "/var/lib/sercha", cfg.Storage.DataDir)
	assert.Equal(t, []string{"keyword"}, cfg.Indexing.Stores)
	assert.Equal(t, 8, cfg.Indexing.Workers)
	assert.Equal(t, 512, cfg.Indexing.ChunkSize)
	assert.Equal(t, 90*time.Second, cfg.Scheduler.TickInterval.Duration)
	assert.Equal(t, 5, cfg.Scheduler.MaxConcurrent)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, `
[log]
level = "warn"
`)
	t.Setenv("SERCHA_LOG_LEVEL", "debug")
	t.Setenv("SERCHA_INDEXING_STORES", "vector")
	t.Setenv("SERCHA_SCHEDULER_ENABLED", "false")
	t.Setenv("SERCHA_SCHEDULER_TICK_INTERVAL", "2m")
	t.Setenv("SERCHA_DELETION_RATE_PER_SECOND", "2.5")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, []string{"vector"}, cfg.Indexing.Stores)
	assert.False(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 2*time.Minute, cfg.Scheduler.TickInterval.Duration)
	assert.InDelta(t, 2.5, cfg.Deletion.RatePerSecond, 1e-9)
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("malformed toml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "[storage\nbackend ="))
		require.Error(t, err)
	})

	t.Run("postgres without dsn", func(t *testing.T) {
		_, err := Load(writeConfig(t, "[storage]\nbackend = \"postgres\"\n"))
		require.ErrorIs(t, err, domain.ErrInvalidInput)
		assert.Contains(t, err.Error(), "postgres_dsn")
	})

	t.Run("unknown store", func(t *testing.T) {
		_, err := Load(writeConfig(t, "[indexing]\nstores = [\"graph\"]\n"))
		require.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("bad duration from env", func(t *testing.T) {
		t.Setenv("SERCHA_SCHEDULER_TICK_INTERVAL", "soon")
		_, err := Load(filepath.Join(t.TempDir(), "none.toml"))
		require.Error(t, err)
	})
}

func TestConfig_ValidateCollectsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Storage.Backend = "mysql"
	cfg.Indexing.Workers = 0
	cfg.Indexing.ChunkOverlap = cfg.Indexing.ChunkSize
	cfg.Scheduler.MaxConcurrent = 0

	err := cfg.Validate()

	require.ErrorIs(t, err, domain.ErrInvalidInput)
	for _, want := range []string{"storage.backend", "indexing.workers", "chunk_overlap", "max_concurrent"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := Default()
	cfg.Storage.DataDir = "/data"
	cfg.Scheduler.TickInterval = Duration{45 * time.Second}

	require.NoError(t, Save(path, &cfg))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "tick_interval")
	assert.Contains(t, string(raw), "45s")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, *loaded)
}
