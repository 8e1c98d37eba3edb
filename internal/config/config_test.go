package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "fs", cfg.Store.Driver)
	assert.Equal(t, "data", cfg.Store.Root)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 30, cfg.Fetch.TimeoutSecs)
	assert.Equal(t, 3, cfg.Fetch.MaxRetries)
	assert.InDelta(t, 2.0, cfg.Fetch.PerHostRate, 0.001)
	assert.Equal(t, "__NEXT_DATA__", cfg.Fetch.ScriptID)
	assert.Equal(t, "https://membership.cyclingbc.ca/api/v1", cfg.Membership.BaseURL)
	assert.Equal(t, time.Now().Year(), cfg.Pipeline.Year)
	assert.Equal(t, 8, cfg.Pipeline.Concurrency)
	assert.Equal(t, "overrides.json", cfg.Pipeline.OverridesKey)
	assert.InDelta(t, 0.75, cfg.Inference.RaceConfidence, 0.001)
	assert.InDelta(t, 0.9, cfg.Inference.SnapshotConfidence, 0.001)
	assert.InDelta(t, 0.4, cfg.Inference.UnreliableSnapshotConfidence, 0.001)
	assert.Equal(t, []string{"bc-superweek"}, cfg.Inference.ExcludedSeries)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
  root: /var/lib/races
log:
  level: debug
  format: console
pipeline:
  year: 2024
inference:
  unreliable_snapshot_date: "2024-02-01"
  excluded_series: [bc-superweek, tour-de-delta]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "/var/lib/races", cfg.Store.Root)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 2024, cfg.Pipeline.Year)
	assert.Equal(t, "2024-02-01", cfg.Inference.UnreliableSnapshotDate)
	assert.Equal(t, []string{"bc-superweek", "tour-de-delta"}, cfg.Inference.ExcludedSeries)
	// Defaults still apply for unset values
	assert.Equal(t, 8, cfg.Pipeline.Concurrency)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("RACEDATA_STORE_DRIVER", "postgres")
	t.Setenv("RACEDATA_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("RACEDATA_PIPELINE_CONCURRENCY", "3")
	t.Setenv("RACEDATA_MEMBERSHIP_API_KEY", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Pipeline.Concurrency)
	assert.Equal(t, "secret", cfg.Membership.APIKey)
}

func TestFetchConfig_HTTPOptions(t *testing.T) {
	opts := FetchConfig{UserAgent: "ua", TimeoutSecs: 5, MaxRetries: 2, PerHostRate: 1.5, RetryDelayMs: 250}.HTTPOptions()
	assert.Equal(t, "ua", opts.UserAgent)
	assert.Equal(t, 5*time.Second, opts.Timeout)
	assert.Equal(t, 2, opts.MaxRetries)
	assert.InDelta(t, 1.5, float64(opts.PerHostRate), 0.001)
	assert.Equal(t, 250*time.Millisecond, opts.RetryDelay)
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

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "fs"
	cfg.Fetch.PerHostRate = 2
	cfg.Pipeline.Year = 2025
	cfg.Pipeline.Concurrency = 8
	cfg.Inference.RaceConfidence = 0.75
	cfg.Inference.SnapshotConfidence = 0.9
	cfg.Inference.UnreliableSnapshotConfidence = 0.4
	return cfg
}

func TestValidate_AllModes(t *testing.T) {
	cfg := validDefaults()
	for _, mode := range []string{"fetch", "clean", "unpack", "athletes", "publish", "run"} {
		assert.NoError(t, cfg.Validate(mode), mode)
	}
}

func TestValidate_PostgresNeedsURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "postgres"

	err := cfg.Validate("publish")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	cfg.Store.DatabaseURL = "postgres://localhost/races"
	assert.NoError(t, cfg.Validate("publish"))
}

func TestValidate_UnknownDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "s3"

	err := cfg.Validate("publish")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), `store.driver "s3" is not supported`)
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateConcurrencyBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Pipeline.Concurrency = 0
	err := cfg.Validate("clean")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline.concurrency must be between 1 and 64")

	cfg.Pipeline.Concurrency = 65
	assert.Error(t, cfg.Validate("clean"))

	cfg.Pipeline.Concurrency = 64
	assert.NoError(t, cfg.Validate("clean"))
}

func TestValidateYearAndInference(t *testing.T) {
	cfg := validDefaults()

	cfg.Pipeline.Year = 25
	err := cfg.Validate("athletes")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline.year 25 is out of range")
	assert.NoError(t, cfg.Validate("publish"))

	cfg.Pipeline.Year = 2025
	cfg.Inference.SnapshotConfidence = 1.2
	err = cfg.Validate("athletes")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "inference.snapshot_confidence")

	cfg.Inference.SnapshotConfidence = 0.9
	cfg.Inference.UnreliableSnapshotDate = "02/01/2024"
	err = cfg.Validate("run")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unreliable_snapshot_date")
}

func TestValidateFetchRate(t *testing.T) {
	cfg := validDefaults()
	cfg.Fetch.PerHostRate = 0

	err := cfg.Validate("fetch")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "fetch.per_host_rate must be > 0")
}
