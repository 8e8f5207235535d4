// Package config loads and validates application configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Ancylx/FontSniffer/internal/sniffer"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Site    SiteConfig    `mapstructure:"site"`
	Search  SearchConfig  `mapstructure:"search"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Retry   RetryConfig   `mapstructure:"retry"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// SiteConfig describes the target listing site. Its HTML layout is an
// unstable external schema; these knobs exist so a layout shift does not
// require a rebuild.
type SiteConfig struct {
	BaseURL         string `mapstructure:"base_url"`
	ListURLTemplate string `mapstructure:"list_url_template"`
	FallbackPages   int    `mapstructure:"fallback_pages"`
	MaxPages        int    `mapstructure:"max_pages"`
}

// SearchConfig governs worker pool and queue behavior.
type SearchConfig struct {
	Threads    int `mapstructure:"threads"`
	QueueDepth int `mapstructure:"queue_depth"`
}

// HTTPConfig configures the outbound HTTP client.
type HTTPConfig struct {
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
	UserAgent         string  `mapstructure:"user_agent"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// RetryConfig bounds the per-page retry policy.
type RetryConfig struct {
	MaxAttempts      int `mapstructure:"max_attempts"`
	BackoffInitialMs int `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int `mapstructure:"backoff_max_ms"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// MetricsConfig controls the optional Prometheus debug listener. Empty Addr
// keeps it off; the tool exposes no server by default.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Timeout returns the per-fetch timeout as a duration.
func (c HTTPConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// BackoffInitial returns the initial retry backoff as a duration.
func (c RetryConfig) BackoffInitial() time.Duration {
	return time.Duration(c.BackoffInitialMs) * time.Millisecond
}

// BackoffMax returns the retry backoff ceiling as a duration.
func (c RetryConfig) BackoffMax() time.Duration {
	return time.Duration(c.BackoffMaxMs) * time.Millisecond
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FONTSNIFFER")
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
	v.SetDefault("site.base_url", "http://www.downcc.com")
	v.SetDefault("site.list_url_template", "http://www.downcc.com/font/list_200_%d.html")
	v.SetDefault("site.fallback_pages", 383)
	v.SetDefault("site.max_pages", 383)
	v.SetDefault("search.threads", 8)
	v.SetDefault("search.queue_depth", 64)
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	v.SetDefault("http.requests_per_second", 0)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.backoff_initial_ms", 300)
	v.SetDefault("retry.backoff_max_ms", 5000)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Site.BaseURL == "" {
		return fmt.Errorf("site.base_url must be set")
	}
	if !strings.Contains(c.Site.ListURLTemplate, "%d") {
		return fmt.Errorf("site.list_url_template must contain a %%d page placeholder")
	}
	if c.Site.FallbackPages <= 0 {
		return fmt.Errorf("site.fallback_pages must be > 0")
	}
	if c.Site.MaxPages <= 0 {
		return fmt.Errorf("site.max_pages must be > 0")
	}
	if c.Search.Threads < sniffer.MinThreads || c.Search.Threads > sniffer.MaxThreads {
		return fmt.Errorf("search.threads must be between %d and %d", sniffer.MinThreads, sniffer.MaxThreads)
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.RequestsPerSecond < 0 {
		return fmt.Errorf("http.requests_per_second must be >= 0")
	}
	if c.Retry.MaxAttempts < 0 {
		return fmt.Errorf("retry.max_attempts must be >= 0")
	}
	return nil
}
