// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix namespaces environment overrides, e.g. SCRAPER_CRAWLER_CONCURRENCY.
const EnvPrefix = "SCRAPER"

// Renderer backends.
const (
	BackendChromedp = "chromedp"
	BackendRod      = "rod"
	BackendHTTP     = "http"
)

// Config captures every knob of a scrape run.
type Config struct {
	Site      string          `mapstructure:"site"`
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	Renderer  RendererConfig  `mapstructure:"renderer"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Output    OutputConfig    `mapstructure:"output"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Server    ServerConfig    `mapstructure:"server"`
}

// CrawlerConfig governs the worker pool and page loading.
type CrawlerConfig struct {
	Concurrency       int           `mapstructure:"concurrency"`
	MaxConcurrency    int           `mapstructure:"max_concurrency"`
	Limit             int           `mapstructure:"limit"`
	UserAgent         string        `mapstructure:"user_agent"`
	RetryAttempts     int           `mapstructure:"retry_attempts"`
	RetryDelay        time.Duration `mapstructure:"retry_delay"`
	PageTimeout       time.Duration `mapstructure:"page_timeout"`
	SettleDelay       time.Duration `mapstructure:"settle_delay"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	RateBurst         int           `mapstructure:"rate_burst"`
	RespectRobots     bool          `mapstructure:"respect_robots"`
	ShutdownGrace     time.Duration `mapstructure:"shutdown_grace"`
}

// RendererConfig selects and tunes the page session backend.
type RendererConfig struct {
	Backend   string `mapstructure:"backend"`
	Headless  bool   `mapstructure:"headless"`
	Stealth   bool   `mapstructure:"stealth"`
	ExecPath  string `mapstructure:"exec_path"`
	RemoteURL string `mapstructure:"remote_url"`
}

// DiscoveryConfig controls sitemap probing.
type DiscoveryConfig struct {
	SitemapPaths []string      `mapstructure:"sitemap_paths"`
	CacheSize    int           `mapstructure:"cache_size"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// OutputConfig sets where the CSV lands.
type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// ServerConfig controls the optional status server. An empty address disables it.
type ServerConfig struct {
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// NewViper returns a Viper instance with env binding and defaults applied.
// Callers may bind flags to it before Load.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// Read decodes configuration from v and the optional file at path without
// validating it.
func Read(v *viper.Viper, path string) (Config, error) {
	if v == nil {
		v = NewViper()
	}
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
	cfg.Renderer.Backend = strings.ToLower(strings.TrimSpace(cfg.Renderer.Backend))
	return cfg, nil
}

// Load reads and validates configuration.
func Load(v *viper.Viper, path string) (Config, error) {
	cfg, err := Read(v, path)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("site", "")
	v.SetDefault("crawler.concurrency", 3)
	v.SetDefault("crawler.max_concurrency", 10)
	v.SetDefault("crawler.limit", 0)
	v.SetDefault("crawler.user_agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")
	v.SetDefault("crawler.retry_attempts", 3)
	v.SetDefault("crawler.retry_delay", 5*time.Second)
	v.SetDefault("crawler.page_timeout", 30*time.Second)
	v.SetDefault("crawler.settle_delay", 0)
	v.SetDefault("crawler.requests_per_second", 0)
	v.SetDefault("crawler.rate_burst", 1)
	v.SetDefault("crawler.respect_robots", false)
	v.SetDefault("crawler.shutdown_grace", 10*time.Second)
	v.SetDefault("renderer.backend", BackendChromedp)
	v.SetDefault("renderer.headless", true)
	v.SetDefault("renderer.stealth", false)
	v.SetDefault("renderer.exec_path", "")
	v.SetDefault("renderer.remote_url", "")
	v.SetDefault("discovery.sitemap_paths", []string{"/sitemap.xml", "/product-sitemap.xml"})
	v.SetDefault("discovery.cache_size", 64)
	v.SetDefault("discovery.timeout", 15*time.Second)
	v.SetDefault("output.dir", ".")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("server.metrics_addr", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if err := c.Crawler.validate(); err != nil {
		return err
	}
	backends := []string{BackendChromedp, BackendRod, BackendHTTP}
	if !slices.Contains(backends, c.Renderer.Backend) {
		return fmt.Errorf("renderer.backend must be one of %s", strings.Join(backends, ", "))
	}
	if len(c.Discovery.SitemapPaths) == 0 {
		return fmt.Errorf("discovery.sitemap_paths must not be empty")
	}
	for _, p := range c.Discovery.SitemapPaths {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("discovery.sitemap_paths entries must start with /: %q", p)
		}
	}
	if c.Discovery.CacheSize <= 0 {
		return fmt.Errorf("discovery.cache_size must be > 0")
	}
	if c.Discovery.Timeout <= 0 {
		return fmt.Errorf("discovery.timeout must be > 0")
	}
	if strings.TrimSpace(c.Output.Dir) == "" {
		return fmt.Errorf("output.dir must be set")
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level is invalid: %w", err)
	}
	return nil
}

func (c CrawlerConfig) validate() error {
	if c.MaxConcurrency <= 0 {
		return fmt.Errorf("crawler.max_concurrency must be > 0")
	}
	if err := c.ValidateConcurrency(c.Concurrency); err != nil {
		return err
	}
	if err := ValidateLimit(c.Limit); err != nil {
		return err
	}
	if c.RetryAttempts <= 0 {
		return fmt.Errorf("crawler.retry_attempts must be > 0")
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("crawler.retry_delay must be >= 0")
	}
	if c.PageTimeout <= 0 {
		return fmt.Errorf("crawler.page_timeout must be > 0")
	}
	if c.SettleDelay < 0 {
		return fmt.Errorf("crawler.settle_delay must be >= 0")
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("crawler.requests_per_second must be >= 0")
	}
	if c.ShutdownGrace < 0 {
		return fmt.Errorf("crawler.shutdown_grace must be >= 0")
	}
	return nil
}

// ValidateConcurrency checks n against 1..MaxConcurrency.
func (c CrawlerConfig) ValidateConcurrency(n int) error {
	if n < 1 || n > c.MaxConcurrency {
		return fmt.Errorf("crawler.concurrency must be between 1 and %d", c.MaxConcurrency)
	}
	return nil
}

// ValidateLimit checks that limit is not negative. Zero means unlimited.
func ValidateLimit(limit int) error {
	if limit < 0 {
		return fmt.Errorf("crawler.limit must be >= 0")
	}
	return nil
}
