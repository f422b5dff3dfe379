package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Apify    ApifyConfig    `yaml:"apify" mapstructure:"apify"`
	Search   SearchConfig   `yaml:"search" mapstructure:"search"`
	Filter   FilterConfig   `yaml:"filter" mapstructure:"filter"`
	Export   ExportConfig   `yaml:"export" mapstructure:"export"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// ApifyConfig holds Apify API credentials and the actor IDs the pipeline
// delegates scraping to.
type ApifyConfig struct {
	Token            string  `yaml:"token" mapstructure:"token"`
	BaseURL          string  `yaml:"base_url" mapstructure:"base_url"`
	SearchActor      string  `yaml:"search_actor" mapstructure:"search_actor"`
	ProfileActor     string  `yaml:"profile_actor" mapstructure:"profile_actor"`
	RunTimeoutSecs   int     `yaml:"run_timeout_secs" mapstructure:"run_timeout_secs"`
	PollIntervalSecs int     `yaml:"poll_interval_secs" mapstructure:"poll_interval_secs"`
	MaxRPS           float64 `yaml:"max_rps" mapstructure:"max_rps"`
}

// SearchConfig configures discovery and retrieval volumes.
type SearchConfig struct {
	ResultsPerHashtag   int `yaml:"results_per_hashtag" mapstructure:"results_per_hashtag"`
	MaxProfilesPerTopic int `yaml:"max_profiles_per_topic" mapstructure:"max_profiles_per_topic"`
}

// FilterConfig configures result filtering.
type FilterConfig struct {
	RequireEmail bool `yaml:"require_email" mapstructure:"require_email"`
}

// ExportConfig configures artifact output.
type ExportConfig struct {
	Format    string `yaml:"format" mapstructure:"format"`
	OutputDir string `yaml:"output_dir" mapstructure:"output_dir"`
}

// StoreConfig configures the database backend. MaxConns and MinConns only
// apply to the postgres driver; zero means the pool's defaults.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// PipelineConfig configures orchestration behavior.
type PipelineConfig struct {
	TopicConcurrency      int    `yaml:"topic_concurrency" mapstructure:"topic_concurrency"`
	RetryMaxAttempts      int    `yaml:"retry_max_attempts" mapstructure:"retry_max_attempts"`
	RetryInitialBackoffMS int    `yaml:"retry_initial_backoff_ms" mapstructure:"retry_initial_backoff_ms"`
	AliasFile             string `yaml:"alias_file" mapstructure:"alias_file"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("TIKTOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("apify.base_url", "https://api.apify.com/v2")
	v.SetDefault("apify.search_actor", "clockworks/tiktok-scraper")
	v.SetDefault("apify.profile_actor", "clockworks/tiktok-profile-scraper")
	v.SetDefault("apify.run_timeout_secs", 300)
	v.SetDefault("apify.poll_interval_secs", 5)
	v.SetDefault("apify.max_rps", 2)
	v.SetDefault("search.results_per_hashtag", 50)
	v.SetDefault("search.max_profiles_per_topic", 20)
	v.SetDefault("filter.require_email", true)
	v.SetDefault("export.format", "csv")
	v.SetDefault("export.output_dir", "output")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "tiktok-apify.db")
	v.SetDefault("pipeline.topic_concurrency", 1)
	v.SetDefault("pipeline.retry_max_attempts", 3)
	v.SetDefault("pipeline.retry_initial_backoff_ms", 500)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks settings that must hold before any billed call is made.
func (c *Config) Validate() error {
	if c.Apify.Token == "" {
		return eris.New("config: apify.token is required (set TIKTOK_APIFY_TOKEN)")
	}
	if c.Apify.SearchActor == "" {
		return eris.New("config: apify.search_actor must not be empty")
	}
	if c.Apify.ProfileActor == "" {
		return eris.New("config: apify.profile_actor must not be empty")
	}
	if c.Apify.RunTimeoutSecs < 1 {
		return eris.New("config: apify.run_timeout_secs must be >= 1")
	}
	if c.Search.ResultsPerHashtag < 1 {
		return eris.New("config: search.results_per_hashtag must be >= 1")
	}
	if c.Search.MaxProfilesPerTopic < 1 {
		return eris.New("config: search.max_profiles_per_topic must be >= 1")
	}
	switch c.Export.Format {
	case "csv", "json", "xlsx":
	default:
		return eris.Errorf("config: unknown export format %q (want csv, json, or xlsx)", c.Export.Format)
	}
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return eris.Errorf("config: unknown store driver %q (want sqlite or postgres)", c.Store.Driver)
	}
	if c.Pipeline.TopicConcurrency < 1 {
		return eris.New("config: pipeline.topic_concurrency must be >= 1")
	}
	if c.Pipeline.RetryMaxAttempts < 1 {
		return eris.New("config: pipeline.retry_max_attempts must be >= 1")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
