package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"

	"github.com/velodata/race-pipeline/internal/fetcher"
	"github.com/velodata/race-pipeline/internal/objstore"
	"github.com/velodata/race-pipeline/internal/upgrade"
)

// Config holds the full application configuration.
type Config struct {
	Store      objstore.Config  `yaml:"store" mapstructure:"store"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Fetch      FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Membership MembershipConfig `yaml:"membership" mapstructure:"membership"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Inference  upgrade.Config   `yaml:"inference" mapstructure:"inference"`
}

// FetchConfig configures provider downloads.
type FetchConfig struct {
	UserAgent    string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs  int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries   int     `yaml:"max_retries" mapstructure:"max_retries"`
	PerHostRate  float64 `yaml:"per_host_rate" mapstructure:"per_host_rate"`
	RetryDelayMs int     `yaml:"retry_delay_ms" mapstructure:"retry_delay_ms"`
	// ScriptID is the id of the script element carrying timing-app payloads.
	ScriptID string `yaml:"script_id" mapstructure:"script_id"`
}

// HTTPOptions converts the fetch settings for the HTTP fetcher.
func (f FetchConfig) HTTPOptions() fetcher.HTTPOptions {
	return fetcher.HTTPOptions{
		UserAgent:   f.UserAgent,
		Timeout:     time.Duration(f.TimeoutSecs) * time.Second,
		MaxRetries:  f.MaxRetries,
		PerHostRate: rate.Limit(f.PerHostRate),
		RetryDelay:  time.Duration(f.RetryDelayMs) * time.Millisecond,
	}
}

// MembershipConfig holds the membership registry API settings.
type MembershipConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
}

// PipelineConfig configures stage execution.
type PipelineConfig struct {
	Year         int    `yaml:"year" mapstructure:"year"`
	Concurrency  int    `yaml:"concurrency" mapstructure:"concurrency"`
	OverridesKey string `yaml:"overrides_key" mapstructure:"overrides_key"`
	// TeamsFile replaces the built-in team alias table when set.
	TeamsFile string `yaml:"teams_file" mapstructure:"teams_file"`
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
	v.SetEnvPrefix("RACEDATA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	inference := upgrade.DefaultConfig()
	v.SetDefault("store.driver", "fs")
	v.SetDefault("store.root", "data")
	v.SetDefault("store.database_url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("fetch.user_agent", "race-pipeline/1.0")
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.per_host_rate", 2.0)
	v.SetDefault("fetch.retry_delay_ms", 500)
	v.SetDefault("fetch.script_id", "__NEXT_DATA__")
	v.SetDefault("membership.base_url", "https://membership.cyclingbc.ca/api/v1")
	v.SetDefault("membership.api_key", "")
	v.SetDefault("pipeline.year", time.Now().Year())
	v.SetDefault("pipeline.concurrency", 8)
	v.SetDefault("pipeline.overrides_key", "overrides.json")
	v.SetDefault("pipeline.teams_file", "")
	v.SetDefault("inference.race_confidence", inference.RaceConfidence)
	v.SetDefault("inference.snapshot_confidence", inference.SnapshotConfidence)
	v.SetDefault("inference.unreliable_snapshot_confidence", inference.UnreliableSnapshotConfidence)
	v.SetDefault("inference.unreliable_snapshot_date", "")
	v.SetDefault("inference.excluded_series", inference.ExcludedSeries)
	v.SetDefault("inference.concurrency", 8)

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

// Validate checks the settings the given command depends on.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "", "fs", "sqlite", "memory":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for the postgres driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not supported", c.Store.Driver))
	}
	if c.Pipeline.Concurrency < 1 || c.Pipeline.Concurrency > 64 {
		errs = append(errs, "pipeline.concurrency must be between 1 and 64")
	}

	switch mode {
	case "fetch", "run":
		if c.Fetch.PerHostRate <= 0 {
			errs = append(errs, "fetch.per_host_rate must be > 0")
		}
		errs = append(errs, c.checkYear()...)
	case "clean", "unpack":
		errs = append(errs, c.checkYear()...)
	case "athletes":
		errs = append(errs, c.checkYear()...)
		errs = append(errs, c.checkInference()...)
	case "publish":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}
	if mode == "run" {
		errs = append(errs, c.checkInference()...)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) checkYear() []string {
	if c.Pipeline.Year < 1990 || c.Pipeline.Year > 2100 {
		return []string{fmt.Sprintf("pipeline.year %d is out of range", c.Pipeline.Year)}
	}
	return nil
}

func (c *Config) checkInference() []string {
	var errs []string
	weights := []struct {
		name string
		v    float64
	}{
		{"race_confidence", c.Inference.RaceConfidence},
		{"snapshot_confidence", c.Inference.SnapshotConfidence},
		{"unreliable_snapshot_confidence", c.Inference.UnreliableSnapshotConfidence},
	}
	for _, w := range weights {
		if w.v < 0 || w.v > 1 {
			errs = append(errs, "inference."+w.name+" must be between 0 and 1")
		}
	}
	if d := c.Inference.UnreliableSnapshotDate; d != "" {
		if _, err := time.Parse(time.DateOnly, d); err != nil {
			errs = append(errs, "inference.unreliable_snapshot_date must be YYYY-MM-DD")
		}
	}
	return errs
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
