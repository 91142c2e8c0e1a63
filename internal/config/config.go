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
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Ingest    IngestConfig    `yaml:"ingest" mapstructure:"ingest"`
	Resolve   ResolveConfig   `yaml:"resolve" mapstructure:"resolve"`
	Enrich    EnrichConfig    `yaml:"enrich" mapstructure:"enrich"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Lifecycle LifecycleConfig `yaml:"lifecycle" mapstructure:"lifecycle"`
	Aggregate AggregateConfig `yaml:"aggregate" mapstructure:"aggregate"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the master store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// IngestConfig configures raw batch parsing.
type IngestConfig struct {
	// MaxRejectFraction aborts the batch when more than this share of rows
	// is rejected, indicating an upstream format change.
	MaxRejectFraction float64 `yaml:"max_reject_fraction" mapstructure:"max_reject_fraction"`
}

// ResolveConfig configures identity resolution.
type ResolveConfig struct {
	// SimilarityThreshold is the minimum normalized-title token overlap
	// for treating two postings at the same company and metro as the same
	// identity. Tunable; validate against real duplicate pairs before
	// changing the default.
	SimilarityThreshold float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
}

// EnrichConfig configures classification.
type EnrichConfig struct {
	// RulesPath points at an optional YAML file overriding the built-in
	// classification rule tables and the seniority-gate vocabulary.
	RulesPath string `yaml:"rules_path" mapstructure:"rules_path"`
}

// PipelineConfig configures batch execution.
type PipelineConfig struct {
	ClassifyWorkers int `yaml:"classify_workers" mapstructure:"classify_workers"`
}

// LifecycleConfig configures the Stale→Archived retention window.
type LifecycleConfig struct {
	RetentionDays      int `yaml:"retention_days" mapstructure:"retention_days"`
	RetentionSnapshots int `yaml:"retention_snapshots" mapstructure:"retention_snapshots"`
	SubstituteCount    int `yaml:"substitute_count" mapstructure:"substitute_count"`
}

// AggregateConfig configures the aggregation engine.
type AggregateConfig struct {
	MinSample int `yaml:"min_sample" mapstructure:"min_sample"`
	TrendTopN int `yaml:"trend_top_n" mapstructure:"trend_top_n"`
	TopRoles  int `yaml:"top_roles" mapstructure:"top_roles"`
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
	v.SetEnvPrefix("JOBS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "jobs.db")
	v.SetDefault("ingest.max_reject_fraction", 0.5)
	v.SetDefault("resolve.similarity_threshold", 0.6)
	v.SetDefault("pipeline.classify_workers", 8)
	v.SetDefault("lifecycle.retention_days", 14)
	v.SetDefault("lifecycle.retention_snapshots", 2)
	v.SetDefault("lifecycle.substitute_count", 5)
	v.SetDefault("aggregate.min_sample", 3)
	v.SetDefault("aggregate.trend_top_n", 5)
	v.SetDefault("aggregate.top_roles", 5)
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

// Validate checks config values that would otherwise fail deep inside a
// run: driver names, fractional thresholds and sample floors.
func (c *Config) Validate() error {
	if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
		return eris.Errorf("config: unknown store.driver %q", c.Store.Driver)
	}
	if c.Store.DatabaseURL == "" {
		return eris.New("config: store.database_url is required")
	}
	if c.Ingest.MaxRejectFraction < 0 || c.Ingest.MaxRejectFraction > 1 {
		return eris.New("config: ingest.max_reject_fraction must be between 0 and 1")
	}
	if c.Resolve.SimilarityThreshold < 0 || c.Resolve.SimilarityThreshold > 1 {
		return eris.New("config: resolve.similarity_threshold must be between 0 and 1")
	}
	if c.Aggregate.MinSample < 1 {
		return eris.New("config: aggregate.min_sample must be >= 1")
	}
	if c.Pipeline.ClassifyWorkers < 1 {
		return eris.New("config: pipeline.classify_workers must be >= 1")
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
