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
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	DB       DBConfig       `mapstructure:"db"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Search   SearchConfig   `mapstructure:"search"`
	Payments PaymentsConfig `mapstructure:"payments"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// AuthConfig guards the admin endpoints.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int    `mapstructure:"max_conns"`
}

// LoggingConfig toggles zap development features and the optional
// rotating file sink.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	File        string `mapstructure:"file"`
	MaxSizeMB   int    `mapstructure:"max_size_mb"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAgeDays  int    `mapstructure:"max_age_days"`
}

// CrawlerConfig governs the ingestion pipeline.
type CrawlerConfig struct {
	SitemapDir        string `mapstructure:"sitemap_dir"`
	SitemapPattern    string `mapstructure:"sitemap_pattern"`
	SitemapStart      int    `mapstructure:"sitemap_start"`
	SitemapEnd        int    `mapstructure:"sitemap_end"`
	UserAgent         string `mapstructure:"user_agent"`
	DelaySeconds      int    `mapstructure:"delay_seconds"`
	TimeoutSeconds    int    `mapstructure:"timeout_seconds"`
	EpisodesURL       string `mapstructure:"episodes_url"`
	AcceptDegradedIDs bool   `mapstructure:"accept_degraded_ids"`
}

// SearchConfig bounds the search endpoint's page size.
type SearchConfig struct {
	DefaultLimit int `mapstructure:"default_limit"`
	MaxLimit     int `mapstructure:"max_limit"`
}

// PaymentsConfig configures the payment gateway client.
type PaymentsConfig struct {
	BaseURL        string  `mapstructure:"base_url"`
	APIKey         string  `mapstructure:"api_key"`
	Amount         float64 `mapstructure:"amount"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CATALOG")
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
	v.SetDefault("server.timeout_seconds", 60)
	v.SetDefault("db.max_conns", 10)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)
	v.SetDefault("crawler.sitemap_dir", "sitemaps")
	v.SetDefault("crawler.sitemap_pattern", "sitemap-list-%d.xml")
	v.SetDefault("crawler.sitemap_start", 1)
	v.SetDefault("crawler.sitemap_end", 1)
	v.SetDefault("crawler.delay_seconds", 1)
	v.SetDefault("crawler.timeout_seconds", 15)
	v.SetDefault("crawler.accept_degraded_ids", false)
	v.SetDefault("search.default_limit", 20)
	v.SetDefault("search.max_limit", 50)
	v.SetDefault("payments.amount", 4.99)
	v.SetDefault("payments.timeout_seconds", 10)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Crawler.SitemapStart <= 0 {
		return fmt.Errorf("crawler.sitemap_start must be > 0")
	}
	if c.Crawler.SitemapEnd < c.Crawler.SitemapStart {
		return fmt.Errorf("crawler.sitemap_end must be >= crawler.sitemap_start")
	}
	if c.Crawler.TimeoutSeconds <= 0 {
		return fmt.Errorf("crawler.timeout_seconds must be > 0")
	}
	if c.Search.DefaultLimit <= 0 {
		return fmt.Errorf("search.default_limit must be > 0")
	}
	if c.Search.MaxLimit < c.Search.DefaultLimit {
		return fmt.Errorf("search.max_limit must be >= search.default_limit")
	}
	if c.Payments.Amount <= 0 {
		return fmt.Errorf("payments.amount must be > 0")
	}
	return nil
}

// CrawlDelay converts the configured pacing delay into a Duration.
func (c Config) CrawlDelay() time.Duration {
	return time.Duration(c.Crawler.DelaySeconds) * time.Second
}

// FetchTimeout converts the per-fetch timeout into a Duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Crawler.TimeoutSeconds) * time.Second
}

// ServerTimeout converts the request timeout into a Duration.
func (c Config) ServerTimeout() time.Duration {
	return time.Duration(c.Server.TimeoutSeconds) * time.Second
}

// PaymentsTimeout converts the gateway timeout into a Duration.
func (c Config) PaymentsTimeout() time.Duration {
	return time.Duration(c.Payments.TimeoutSeconds) * time.Second
}
