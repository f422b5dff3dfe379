package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.apify.com/v2", cfg.Apify.BaseURL)
	assert.Equal(t, "clockworks/tiktok-scraper", cfg.Apify.SearchActor)
	assert.Equal(t, "clockworks/tiktok-profile-scraper", cfg.Apify.ProfileActor)
	assert.Equal(t, 300, cfg.Apify.RunTimeoutSecs)
	assert.Equal(t, 5, cfg.Apify.PollIntervalSecs)
	assert.InDelta(t, 2.0, cfg.Apify.MaxRPS, 0.001)
	assert.Equal(t, 50, cfg.Search.ResultsPerHashtag)
	assert.Equal(t, 20, cfg.Search.MaxProfilesPerTopic)
	assert.True(t, cfg.Filter.RequireEmail)
	assert.Equal(t, "csv", cfg.Export.Format)
	assert.Equal(t, "output", cfg.Export.OutputDir)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "tiktok-apify.db", cfg.Store.DatabaseURL)
	assert.Equal(t, 1, cfg.Pipeline.TopicConcurrency)
	assert.Equal(t, 3, cfg.Pipeline.RetryMaxAttempts)
	assert.Equal(t, 500, cfg.Pipeline.RetryInitialBackoffMS)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
apify:
  token: test-token
search:
  results_per_hashtag: 100
filter:
  require_email: false
export:
  format: json
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "test-token", cfg.Apify.Token)
	assert.Equal(t, 100, cfg.Search.ResultsPerHashtag)
	assert.False(t, cfg.Filter.RequireEmail)
	assert.Equal(t, "json", cfg.Export.Format)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	// Defaults still apply for unset values
	assert.Equal(t, 20, cfg.Search.MaxProfilesPerTopic)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("TIKTOK_STORE_DRIVER", "postgres")
	t.Setenv("TIKTOK_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("TIKTOK_APIFY_TOKEN", "apify_api_abc123")
	t.Setenv("TIKTOK_SEARCH_MAX_PROFILES_PER_TOPIC", "5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "apify_api_abc123", cfg.Apify.Token)
	assert.Equal(t, 5, cfg.Search.MaxProfilesPerTopic)
}

func validConfig() *Config {
	return &Config{
		Apify: ApifyConfig{
			Token:          "apify_api_abc123",
			BaseURL:        "https://api.apify.com/v2",
			SearchActor:    "clockworks/tiktok-scraper",
			ProfileActor:   "clockworks/tiktok-profile-scraper",
			RunTimeoutSecs: 300,
		},
		Search:   SearchConfig{ResultsPerHashtag: 50, MaxProfilesPerTopic: 20},
		Export:   ExportConfig{Format: "csv", OutputDir: "output"},
		Store:    StoreConfig{Driver: "sqlite", DatabaseURL: "test.db"},
		Pipeline: PipelineConfig{TopicConcurrency: 1, RetryMaxAttempts: 3},
		Log:      LogConfig{Level: "info", Format: "json"},
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, validConfig().Validate())

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{
			name:    "missing token",
			mutate:  func(c *Config) { c.Apify.Token = "" },
			wantMsg: "apify.token",
		},
		{
			name:    "missing search actor",
			mutate:  func(c *Config) { c.Apify.SearchActor = "" },
			wantMsg: "search_actor",
		},
		{
			name:    "missing profile actor",
			mutate:  func(c *Config) { c.Apify.ProfileActor = "" },
			wantMsg: "profile_actor",
		},
		{
			name:    "zero run timeout",
			mutate:  func(c *Config) { c.Apify.RunTimeoutSecs = 0 },
			wantMsg: "run_timeout_secs",
		},
		{
			name:    "zero results per hashtag",
			mutate:  func(c *Config) { c.Search.ResultsPerHashtag = 0 },
			wantMsg: "results_per_hashtag",
		},
		{
			name:    "negative max profiles",
			mutate:  func(c *Config) { c.Search.MaxProfilesPerTopic = -1 },
			wantMsg: "max_profiles_per_topic",
		},
		{
			name:    "unknown format",
			mutate:  func(c *Config) { c.Export.Format = "parquet" },
			wantMsg: "export format",
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Store.Driver = "mysql" },
			wantMsg: "store driver",
		},
		{
			name:    "zero concurrency",
			mutate:  func(c *Config) { c.Pipeline.TopicConcurrency = 0 },
			wantMsg: "topic_concurrency",
		},
		{
			name:    "zero retry attempts",
			mutate:  func(c *Config) { c.Pipeline.RetryMaxAttempts = 0 },
			wantMsg: "retry_max_attempts",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
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

func TestInitLoggerBadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "extremely-loud", Format: "json"})
	require.Error(t, err)
}
