// Package config loads runtime settings from defaults, an optional file and
// PLDFT_-prefixed environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "PLDFT"

// Config is the full runtime configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Lease    LeaseConfig    `mapstructure:"lease"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	AI       AIConfig       `mapstructure:"ai"`
	Search   SearchConfig   `mapstructure:"search"`
	Backfill BackfillConfig `mapstructure:"backfill"`
	Ops      OpsConfig      `mapstructure:"ops"`
	Log      LogConfig      `mapstructure:"log"`
	Sources  SourcesConfig  `mapstructure:"sources"`
}

// DatabaseConfig selects the store. An empty URL runs on the in-memory store.
type DatabaseConfig struct {
	URL          string        `mapstructure:"url"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	MaxIdleConns int           `mapstructure:"max_idle_conns"`
	TxTimeout    time.Duration `mapstructure:"tx_timeout"`
}

// RedisConfig is optional; an empty URL disables Redis.
type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

const (
	LeaseBackendLocal = "local"
	LeaseBackendRedis = "redis"
)

type LeaseConfig struct {
	Backend string        `mapstructure:"backend"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// KafkaConfig is optional; no brokers disables event publishing.
type KafkaConfig struct {
	Brokers      []string `mapstructure:"brokers"`
	ClientID     string   `mapstructure:"client_id"`
	SyncTopic    string   `mapstructure:"sync_topic"`
	AnomalyTopic string   `mapstructure:"anomaly_topic"`
}

// AIConfig is optional; without an API key or host the vector stage,
// classifier and summaries are disabled.
type AIConfig struct {
	EmbeddingHost    string        `mapstructure:"embedding_host"`
	EmbeddingModel   string        `mapstructure:"embedding_model"`
	ClassifierHost   string        `mapstructure:"classifier_host"`
	ClassifierModel  string        `mapstructure:"classifier_model"`
	APIKey           string        `mapstructure:"api_key"`
	EmbeddingTimeout time.Duration `mapstructure:"embedding_timeout"`
}

// Enabled reports whether an AI provider is configured.
func (c AIConfig) Enabled() bool {
	return c.APIKey != "" || c.EmbeddingHost != ""
}

type SearchConfig struct {
	DefaultLimit   int     `mapstructure:"default_limit"`
	MaxLimit       int     `mapstructure:"max_limit"`
	FuzzyThreshold float64 `mapstructure:"fuzzy_threshold"`
}

type BackfillConfig struct {
	Workers   int `mapstructure:"workers"`
	BatchSize int `mapstructure:"batch_size"`
}

type OpsConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type SourcesConfig struct {
	// Catalog is the path of the YAML feed catalog. Optional.
	Catalog string `mapstructure:"catalog"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.tx_timeout", 2*time.Minute)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)

	v.SetDefault("lease.backend", LeaseBackendLocal)
	v.SetDefault("lease.ttl", 30*time.Second)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.client_id", "pldft")
	v.SetDefault("kafka.sync_topic", "pldft.sanctions.sync")
	v.SetDefault("kafka.anomaly_topic", "pldft.sanctions.anomalies")

	v.SetDefault("ai.embedding_host", "")
	v.SetDefault("ai.embedding_model", "text-embedding-3-small")
	v.SetDefault("ai.classifier_host", "")
	v.SetDefault("ai.classifier_model", "gpt-4o-mini")
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.embedding_timeout", 5*time.Second)

	v.SetDefault("search.default_limit", 10)
	v.SetDefault("search.max_limit", 50)
	v.SetDefault("search.fuzzy_threshold", 0.3)

	v.SetDefault("backfill.workers", 4)
	v.SetDefault("backfill.batch_size", 0)

	v.SetDefault("ops.addr", ":9090")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("sources.catalog", "")
}

// Load reads configuration. path may be empty, in which case a pldft.yaml in
// the working directory is used when present.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("pldft")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	switch c.Lease.Backend {
	case LeaseBackendLocal:
	case LeaseBackendRedis:
		if c.Redis.URL == "" {
			return errors.New("config: lease.backend=redis requires redis.url")
		}
	default:
		return fmt.Errorf("config: unknown lease.backend %q", c.Lease.Backend)
	}
	if c.Search.MaxLimit <= 0 || c.Search.DefaultLimit <= 0 {
		return errors.New("config: search limits must be positive")
	}
	if c.Search.FuzzyThreshold <= 0 || c.Search.FuzzyThreshold >= 1 {
		return errors.New("config: search.fuzzy_threshold must be in (0, 1)")
	}
	if c.Backfill.Workers <= 0 {
		return errors.New("config: backfill.workers must be positive")
	}
	return nil
}
