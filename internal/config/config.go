// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Fetch      FetchConfig      `mapstructure:"fetch"`
	Scrape     ScrapeConfig     `mapstructure:"scrape"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
	DB         DBConfig         `mapstructure:"db"`
	Archive    ArchiveConfig    `mapstructure:"archive"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// FetchConfig configures the two-tier fetch client.
type FetchConfig struct {
	RenderEndpoint      string `mapstructure:"render_endpoint"`
	RenderUsageEndpoint string `mapstructure:"render_usage_endpoint"`
	RenderAPIKey        string `mapstructure:"render_api_key"`
	MaxRetries          int    `mapstructure:"max_retries"`
	BackoffInitialMs    int    `mapstructure:"backoff_initial_ms"`
	TimeoutSeconds      int    `mapstructure:"timeout_seconds"`
	MinViableLength     int    `mapstructure:"min_viable_length"`
	UserAgent           string `mapstructure:"user_agent"`
}

// ScrapeConfig governs sweep pacing and extraction caps.
type ScrapeConfig struct {
	DelaySeconds    int `mapstructure:"delay_seconds"`
	MaxChapters     int `mapstructure:"max_chapters"`
	MinCostBalance  int `mapstructure:"min_cost_balance"`
	RenderWaitMsMax int `mapstructure:"render_wait_ms_max"`
}

// ExtractionConfig points at the structured extraction service.
type ExtractionConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	Model          string `mapstructure:"model"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN             string `mapstructure:"dsn"`
	MaxConns        int    `mapstructure:"max_conns"`
	MinConns        int    `mapstructure:"min_conns"`
	ConnLifetimeMin int    `mapstructure:"conn_lifetime_minutes"`
}

// ArchiveConfig selects and parameterizes the scrape snapshot store.
type ArchiveConfig struct {
	// Backend is one of "gcs", "local", "memory", or "" to disable.
	Backend   string `mapstructure:"backend"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	LocalDir  string `mapstructure:"local_dir"`
}

// PubSubConfig holds metadata for job lifecycle notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CODECRAWLER")
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
	v.SetDefault("server.port", 8080)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.backoff_initial_ms", 1000)
	v.SetDefault("fetch.timeout_seconds", 60)
	v.SetDefault("fetch.min_viable_length", 500)
	v.SetDefault("fetch.user_agent", "codecrawler/0.1")
	v.SetDefault("scrape.delay_seconds", 2)
	v.SetDefault("scrape.max_chapters", 15)
	v.SetDefault("scrape.min_cost_balance", 100)
	v.SetDefault("extraction.endpoint", "https://api.anthropic.com/v1/messages")
	v.SetDefault("extraction.model", "claude-sonnet-4-20250514")
	v.SetDefault("extraction.timeout_seconds", 120)
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("db.conn_lifetime_minutes", 30)
	v.SetDefault("archive.backend", "local")
	v.SetDefault("archive.local_dir", "./data/scrapes")
	v.SetDefault("pubsub.topic_name", "extraction-events")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Fetch.MaxRetries <= 0 {
		return fmt.Errorf("fetch.max_retries must be > 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Scrape.DelaySeconds < 0 {
		return fmt.Errorf("scrape.delay_seconds must be >= 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	switch c.Archive.Backend {
	case "", "memory":
	case "gcs":
		if c.Archive.GCSBucket == "" {
			return fmt.Errorf("archive.gcs_bucket must be set for the gcs backend")
		}
	case "local":
		if c.Archive.LocalDir == "" {
			return fmt.Errorf("archive.local_dir must be set for the local backend")
		}
	default:
		return fmt.Errorf("archive.backend must be one of gcs, local, memory")
	}
	return nil
}

// FetchTimeout converts the fetch timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// FetchBackoff converts the initial backoff into a duration.
func (c Config) FetchBackoff() time.Duration {
	return time.Duration(c.Fetch.BackoffInitialMs) * time.Millisecond
}

// ScrapeDelay converts the inter-request delay into a duration.
func (c Config) ScrapeDelay() time.Duration {
	return time.Duration(c.Scrape.DelaySeconds) * time.Second
}

// ExtractionTimeout converts the extraction timeout into a duration.
func (c Config) ExtractionTimeout() time.Duration {
	return time.Duration(c.Extraction.TimeoutSeconds) * time.Second
}
