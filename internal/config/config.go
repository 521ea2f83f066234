// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/secondbrain-app/article-hub/internal/stats"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Line    LineConfig    `mapstructure:"line"`
	Store   StoreConfig   `mapstructure:"store"`
	Backup  BackupConfig  `mapstructure:"backup"`
	Stats   StatsConfig   `mapstructure:"stats"`
	Notify  NotifyConfig  `mapstructure:"notify"`
	Enrich  EnrichConfig  `mapstructure:"enrich"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LineConfig holds LINE Messaging API credentials.
type LineConfig struct {
	ChannelSecret  string `mapstructure:"channel_secret"`
	ChannelToken   string `mapstructure:"channel_token"`
	ReplyEndpoint  string `mapstructure:"reply_endpoint"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// StoreConfig selects and configures the article store backend.
type StoreConfig struct {
	Provider string         `mapstructure:"provider"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig controls access to the relational database.
type PostgresConfig struct {
	DSN                string `mapstructure:"dsn"`
	Table              string `mapstructure:"table"`
	MaxConns           int32  `mapstructure:"max_conns"`
	MinConns           int32  `mapstructure:"min_conns"`
	MaxConnLifetimeMin int    `mapstructure:"max_conn_lifetime_minutes"`
}

// BackupConfig controls periodic snapshot persistence.
type BackupConfig struct {
	Provider        string `mapstructure:"provider"`
	GCSBucket       string `mapstructure:"gcs_bucket"`
	Prefix          string `mapstructure:"prefix"`
	ObjectName      string `mapstructure:"object_name"`
	LocalDir        string `mapstructure:"local_dir"`
	IntervalSeconds int    `mapstructure:"interval_seconds"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
}

// StatsConfig controls how /stats aggregates and where /summary's day
// boundary falls.
type StatsConfig struct {
	Scope    string `mapstructure:"scope"`
	Timezone string `mapstructure:"timezone"`
}

// NotifyConfig holds metadata for publish-subscribe notifications.
type NotifyConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// EnrichConfig governs background title fetching.
type EnrichConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ARTICLEHUB")
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
	// Credentials default to empty so the keys are visible to AutomaticEnv.
	v.SetDefault("line.channel_secret", "")
	v.SetDefault("line.channel_token", "")
	v.SetDefault("line.timeout_seconds", 10)
	v.SetDefault("store.provider", "memory")
	v.SetDefault("store.postgres.table", "articles")
	v.SetDefault("backup.provider", "none")
	v.SetDefault("backup.prefix", "backups")
	v.SetDefault("backup.object_name", "articles.json")
	v.SetDefault("backup.interval_seconds", 30)
	v.SetDefault("backup.timeout_seconds", 10)
	v.SetDefault("stats.scope", "owner")
	v.SetDefault("stats.timezone", "UTC")
	v.SetDefault("notify.provider", "none")
	v.SetDefault("enrich.enabled", true)
	v.SetDefault("enrich.timeout_seconds", 10)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Line.ChannelSecret == "" {
		return fmt.Errorf("line.channel_secret is required")
	}
	switch c.Store.Provider {
	case "memory":
	case "postgres":
		if c.Store.Postgres.DSN == "" {
			return fmt.Errorf("store.postgres.dsn is required when store.provider is postgres")
		}
	default:
		return fmt.Errorf("unknown store.provider %q", c.Store.Provider)
	}
	switch c.Backup.Provider {
	case "none", "memory":
	case "gcs":
		if c.Backup.GCSBucket == "" {
			return fmt.Errorf("backup.gcs_bucket is required when backup.provider is gcs")
		}
	case "local":
		if c.Backup.LocalDir == "" {
			return fmt.Errorf("backup.local_dir is required when backup.provider is local")
		}
	default:
		return fmt.Errorf("unknown backup.provider %q", c.Backup.Provider)
	}
	if c.Backup.Provider != "none" && c.Backup.IntervalSeconds <= 0 {
		return fmt.Errorf("backup.interval_seconds must be > 0")
	}
	if !stats.Scope(c.Stats.Scope).Valid() {
		return fmt.Errorf("stats.scope must be %q or %q", stats.ScopeOwner, stats.ScopeGlobal)
	}
	if c.Stats.Timezone != "" {
		if _, err := time.LoadLocation(c.Stats.Timezone); err != nil {
			return fmt.Errorf("stats.timezone: %w", err)
		}
	}
	switch c.Notify.Provider {
	case "none", "memory":
	case "pubsub":
		if c.Notify.ProjectID == "" || c.Notify.TopicName == "" {
			return fmt.Errorf("notify.project_id and notify.topic_name are required when notify.provider is pubsub")
		}
	default:
		return fmt.Errorf("unknown notify.provider %q", c.Notify.Provider)
	}
	if c.Enrich.Enabled && c.Enrich.TimeoutSeconds <= 0 {
		return fmt.Errorf("enrich.timeout_seconds must be > 0 when enrich is enabled")
	}
	return nil
}

// SummaryLocation resolves the configured stats timezone, defaulting to UTC.
func (c Config) SummaryLocation() (*time.Location, error) {
	if c.Stats.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Stats.Timezone)
	if err != nil {
		return nil, fmt.Errorf("stats.timezone: %w", err)
	}
	return loc, nil
}

// BackupInterval converts the configured interval into a duration.
func (c Config) BackupInterval() time.Duration {
	return time.Duration(c.Backup.IntervalSeconds) * time.Second
}

// BackupTimeout converts the configured per-run timeout into a duration.
func (c Config) BackupTimeout() time.Duration {
	return time.Duration(c.Backup.TimeoutSeconds) * time.Second
}
