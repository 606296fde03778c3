package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	defaultMaxAge         = 24 * time.Hour
	defaultMaxWorkers     = 20
	defaultRequestTimeout = 10 * time.Second
	defaultRetryAttempts  = 2
)

// Feed is one configured source: a unique display name and a fetch URL.
type Feed struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// Config is the explicit configuration passed into the fetcher, orchestrator,
// and cache store. Durations are kept as strings so the YAML can say "24h"
// or "7d"; the accessor methods parse them and fall back to defaults.
type Config struct {
	MaxAge         string `yaml:"max_age" envconfig:"MAX_AGE"`
	MaxWorkers     int    `yaml:"max_workers" envconfig:"MAX_WORKERS"`
	RequestTimeout string `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
	RetryAttempts  int    `yaml:"retry_attempts" envconfig:"RETRY_ATTEMPTS"`
	CachePath      string `yaml:"cache_path" envconfig:"CACHE_PATH"`
	Feeds          []Feed `yaml:"feeds" ignored:"true"`
}

// Window returns the freshness window: only articles published inside
// [now-window, now] are shown or cached.
func (c *Config) Window() time.Duration {
	d, err := parseDuration(c.MaxAge)
	if err != nil {
		return defaultMaxAge
	}
	return d
}

// Timeout returns the per-request network timeout.
func (c *Config) Timeout() time.Duration {
	d, err := parseDuration(c.RequestTimeout)
	if err != nil {
		return defaultRequestTimeout
	}
	return d
}

// Workers returns the fetch concurrency cap.
func (c *Config) Workers() int {
	if c.MaxWorkers <= 0 {
		return defaultMaxWorkers
	}
	return c.MaxWorkers
}

// Retries returns the per-feed retry budget. Zero is a valid "no retries".
func (c *Config) Retries() int {
	if c.RetryAttempts < 0 {
		return defaultRetryAttempts
	}
	return c.RetryAttempts
}

// CacheFile returns the snapshot location, defaulting under the XDG cache
// home.
func (c *Config) CacheFile() string {
	if c.CachePath != "" {
		return c.CachePath
	}
	return DefaultCachePath()
}

// FeedNames returns the current feed-name set used to filter cached articles
// whose feed has been removed from configuration.
func (c *Config) FeedNames() map[string]bool {
	names := make(map[string]bool, len(c.Feeds))
	for _, f := range c.Feeds {
		if f.Name != "" {
			names[f.Name] = true
		}
	}
	return names
}

func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "rspy", "config.yaml")
}

func DefaultCachePath() string {
	return filepath.Join(xdg.CacheHome, "rspy", "rss_cache.json")
}

// Load reads the YAML config file, applies RSPY_* environment overrides, and
// validates the feed list. A missing or unparsable file is fatal for the
// run; the caller reports it and exits.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := Config{
		MaxWorkers:    defaultMaxWorkers,
		RetryAttempts: defaultRetryAttempts,
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := envconfig.Process("rspy", &cfg); err != nil {
		return nil, fmt.Errorf("applying env overrides: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	seen := make(map[string]bool, len(cfg.Feeds))
	for i, f := range cfg.Feeds {
		if f.Name == "" {
			return fmt.Errorf("feed %d: name is required", i)
		}
		if seen[f.Name] {
			return fmt.Errorf("feed %q: duplicate name", f.Name)
		}
		seen[f.Name] = true

		if f.URL == "" {
			return fmt.Errorf("feed %q: url is required", f.Name)
		}
		u, err := url.Parse(f.URL)
		if err != nil {
			return fmt.Errorf("feed %q: invalid url: %w", f.Name, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("feed %q: url scheme must be http or https, got %q", f.Name, u.Scheme)
		}
	}
	return nil
}

// parseDuration accepts time.ParseDuration syntax plus a "Nd" day suffix.
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	if len(s) > 1 && s[len(s)-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(s, "%dd", &days); err == nil {
			return time.Duration(days) * 24 * time.Hour, nil
		}
	}
	return time.ParseDuration(s)
}
