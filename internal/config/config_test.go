package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "jobs.db", cfg.Store.DatabaseURL)
	assert.InDelta(t, 0.5, cfg.Ingest.MaxRejectFraction, 0.001)
	assert.InDelta(t, 0.6, cfg.Resolve.SimilarityThreshold, 0.001)
	assert.Equal(t, 8, cfg.Pipeline.ClassifyWorkers)
	assert.Equal(t, 14, cfg.Lifecycle.RetentionDays)
	assert.Equal(t, 2, cfg.Lifecycle.RetentionSnapshots)
	assert.Equal(t, 5, cfg.Lifecycle.SubstituteCount)
	assert.Equal(t, 3, cfg.Aggregate.MinSample)
	assert.Equal(t, 5, cfg.Aggregate.TrendTopN)
	assert.Equal(t, 5, cfg.Aggregate.TopRoles)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chTempDir(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/jobs
resolve:
  similarity_threshold: 0.75
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/jobs", cfg.Store.DatabaseURL)
	assert.InDelta(t, 0.75, cfg.Resolve.SimilarityThreshold, 0.001)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	// Defaults still apply for unset values
	assert.Equal(t, 3, cfg.Aggregate.MinSample)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chTempDir(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("JOBS_STORE_DRIVER", "postgres")
	t.Setenv("JOBS_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chTempDir(t)

	t.Setenv("JOBS_AGGREGATE_MIN_SAMPLE", "5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Aggregate.MinSample)
}

func TestValidate_Defaults(t *testing.T) {
	chTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())
}

func TestValidate_Errors(t *testing.T) {
	chTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	cfg.Store.Driver = "mysql"
	assert.ErrorContains(t, cfg.Validate(), "store.driver")
	cfg.Store.Driver = "sqlite"

	cfg.Store.DatabaseURL = ""
	assert.ErrorContains(t, cfg.Validate(), "database_url")
	cfg.Store.DatabaseURL = "jobs.db"

	cfg.Ingest.MaxRejectFraction = 1.5
	assert.ErrorContains(t, cfg.Validate(), "max_reject_fraction")
	cfg.Ingest.MaxRejectFraction = 0.5

	cfg.Resolve.SimilarityThreshold = -0.1
	assert.ErrorContains(t, cfg.Validate(), "similarity_threshold")
	cfg.Resolve.SimilarityThreshold = 0.6

	cfg.Aggregate.MinSample = 0
	assert.ErrorContains(t, cfg.Validate(), "min_sample")
	cfg.Aggregate.MinSample = 3

	cfg.Pipeline.ClassifyWorkers = 0
	assert.ErrorContains(t, cfg.Validate(), "classify_workers")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
