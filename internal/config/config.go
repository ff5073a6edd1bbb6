// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/farolnews/farol-ingest/internal/ingest"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Logging    LoggingConfig    `mapstructure:"logging"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Politeness PolitenessConfig `mapstructure:"politeness"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Headless   HeadlessConfig   `mapstructure:"headless"`
	Gazetteer  GazetteerConfig  `mapstructure:"gazetteer"`
	NER        NERConfig        `mapstructure:"ner"`
	DB         DBConfig         `mapstructure:"db"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
	Blob       BlobConfig       `mapstructure:"blob"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Sources    SourcesConfig    `mapstructure:"sources"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// PipelineConfig governs the runner and the event version tag.
type PipelineConfig struct {
	FlowName     string `mapstructure:"flow_name"`
	Version      string `mapstructure:"version"`
	Concurrency  int    `mapstructure:"concurrency"`
	RunTimeoutS  int    `mapstructure:"run_timeout_seconds"`
	ArchiveHTML  bool   `mapstructure:"archive_html"`
	PublishRetry int    `mapstructure:"publish_retries"`
}

// PolitenessConfig controls per-host pacing and robots handling.
type PolitenessConfig struct {
	UserAgent       string  `mapstructure:"user_agent"`
	DefaultRPS      float64 `mapstructure:"default_rps"`
	Burst           int     `mapstructure:"burst"`
	RobotsTTLMin    int     `mapstructure:"robots_ttl_minutes"`
	MaxAttempts     int     `mapstructure:"max_attempts"`
	BackoffBaseMs   int     `mapstructure:"backoff_base_ms"`
	BackoffMaxMs    int     `mapstructure:"backoff_max_ms"`
	RespectRobots   bool    `mapstructure:"respect_robots"`
	PerHostParallel int     `mapstructure:"per_host_parallel"`
}

// HTTPConfig configures the plain HTTP fetch path.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	MaxBodyBytes   int `mapstructure:"max_body_bytes"`
}

// HeadlessConfig configures the chromedp rendering subsystem.
type HeadlessConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxParallel   int  `mapstructure:"max_parallel"`
	NavTimeoutSec int  `mapstructure:"nav_timeout_seconds"`
}

// GazetteerConfig locates the city reference snapshot.
type GazetteerConfig struct {
	Path string `mapstructure:"path"`
}

// NERConfig points at the external person-name capability.
type NERConfig struct {
	Endpoint        string  `mapstructure:"endpoint"`
	TimeoutSeconds  int     `mapstructure:"timeout_seconds"`
	ConfidenceFloor float64 `mapstructure:"confidence_floor"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	Provider string `mapstructure:"provider"`
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// PubSubConfig holds metadata for event publication.
type PubSubConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// BlobConfig sets where raw markup snapshots are archived.
type BlobConfig struct {
	Provider    string `mapstructure:"provider"`
	GCSBucket   string `mapstructure:"gcs_bucket"`
	LocalDir    string `mapstructure:"local_dir"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
}

// MetricsConfig controls the promhttp listener.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// SourcesConfig locates the per-source catalog.
type SourcesConfig struct {
	Path string `mapstructure:"path"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FAROL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", true)
	v.SetDefault("pipeline.flow_name", "farol-ingest")
	v.SetDefault("pipeline.version", "v1")
	v.SetDefault("pipeline.concurrency", 4)
	v.SetDefault("pipeline.run_timeout_seconds", 900)
	v.SetDefault("pipeline.publish_retries", 3)
	v.SetDefault("politeness.user_agent", "FarolBot/1.0 (+https://github.com/farolnews/farol-ingest)")
	v.SetDefault("politeness.default_rps", 2)
	v.SetDefault("politeness.burst", 1)
	v.SetDefault("politeness.robots_ttl_minutes", 60)
	v.SetDefault("politeness.max_attempts", 3)
	v.SetDefault("politeness.backoff_base_ms", 250)
	v.SetDefault("politeness.backoff_max_ms", 5000)
	v.SetDefault("politeness.respect_robots", true)
	v.SetDefault("politeness.per_host_parallel", 2)
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.max_body_bytes", 5*1024*1024)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 25)
	v.SetDefault("ner.timeout_seconds", 10)
	v.SetDefault("ner.confidence_floor", 0.5)
	v.SetDefault("db.provider", "memory")
	v.SetDefault("pubsub.provider", "memory")
	v.SetDefault("blob.provider", "noop")
	v.SetDefault("blob.prefix", "raw")
	v.SetDefault("blob.content_type", "text/html; charset=utf-8")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("sources.path", "configs/sources.yaml")
	v.SetDefault("gazetteer.path", "configs/gazetteer.yaml")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Pipeline.Concurrency <= 0 {
		return fmt.Errorf("pipeline.concurrency must be > 0")
	}
	if c.Pipeline.Version == "" {
		return fmt.Errorf("pipeline.version must be set")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Politeness.DefaultRPS <= 0 {
		return fmt.Errorf("politeness.default_rps must be > 0")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.DB.Provider == "postgres" && c.DB.DSN == "" {
		return fmt.Errorf("db.dsn must be set when db.provider is postgres")
	}
	if c.PubSub.Provider == "pubsub" && (c.PubSub.ProjectID == "" || c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set when pubsub.provider is pubsub")
	}
	if c.Blob.Provider == "gcs" && c.Blob.GCSBucket == "" {
		return fmt.Errorf("blob.gcs_bucket must be set when blob.provider is gcs")
	}
	return nil
}

// RunTimeout converts the run deadline config into a duration.
func (c Config) RunTimeout() time.Duration {
	return time.Duration(c.Pipeline.RunTimeoutS) * time.Second
}

// sourceCatalog is the on-disk shape of the sources file.
type sourceCatalog struct {
	Sources []ingest.Source `yaml:"sources"`
}

// LoadSources reads the per-source catalog and applies per-source defaults.
func LoadSources(path string) ([]ingest.Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}
	var catalog sourceCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("unmarshal sources file: %w", err)
	}
	seen := make(map[string]struct{}, len(catalog.Sources))
	for i := range catalog.Sources {
		src := &catalog.Sources[i]
		if src.ID == "" {
			return nil, fmt.Errorf("source %d: id is required", i)
		}
		if _, dup := seen[src.ID]; dup {
			return nil, fmt.Errorf("duplicate source id %q", src.ID)
		}
		seen[src.ID] = struct{}{}
		applySourceDefaults(src)
		if len(src.Strategies) == 0 {
			return nil, fmt.Errorf("source %q: at least one strategy is required", src.ID)
		}
	}
	return catalog.Sources, nil
}

func applySourceDefaults(src *ingest.Source) {
	if src.Timezone == "" {
		src.Timezone = "America/Recife"
	}
	if src.MinContentLen == 0 {
		src.MinContentLen = 300
	}
	if src.HeadlessBudget == 0 {
		src.HeadlessBudget = 0.10
	}
	if src.ExpectedLanguage == "" {
		src.ExpectedLanguage = "pt"
	}
	if src.FallbackTitle == "" {
		src.FallbackTitle = "Sem título"
	}
	if src.Pagination.MaxPages == 0 {
		src.Pagination.MaxPages = 3
	}
}
