// Package config loads the proxy configuration from an optional YAML file
// and environment overrides.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/davidgenn/HttpReplayingProxy/pkg/cache"
	"github.com/davidgenn/HttpReplayingProxy/pkg/client"
	"github.com/davidgenn/HttpReplayingProxy/pkg/fingerprint"
	"github.com/davidgenn/HttpReplayingProxy/pkg/logging"
	"gopkg.in/yaml.v3"
)

// Environment variables that enable the startup reset when non-empty.
const (
	EnvReset       = "HTTP_REPLAYING_PROXY_RESET"
	EnvResetLegacy = "RESET_HTTPREPLAYINGPROXY_CACHE"
)

// Config holds all proxy configuration.
type Config struct {
	Listen        string        `yaml:"listen"`
	MetricsListen string        `yaml:"metrics_listen"`
	Backend       BackendConfig `yaml:"backend"`
	Cache         CacheConfig   `yaml:"cache"`
	Log           LogConfig     `yaml:"log"`
}

// BackendConfig defines the recorded backend.
type BackendConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// CacheConfig controls the response store.
type CacheConfig struct {
	Dir            string                   `yaml:"dir"`
	TTLSeconds     int64                    `yaml:"ttl_seconds"`
	MatchHeaders   fingerprint.MatchHeaders `yaml:"match_headers"`
	ResetAtStartup bool                     `yaml:"reset_at_startup"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns a Config with sensible defaults. The backend URL has no
// default and must be configured.
func Default() *Config {
	return &Config{
		Listen:        ":8080",
		MetricsListen: ":9090",
		Backend: BackendConfig{
			Timeout: client.DefaultTimeout,
		},
		Cache: CacheConfig{
			Dir:          "cache",
			TTLSeconds:   cache.TTLForever,
			MatchHeaders: fingerprint.DefaultMatchHeaders,
		},
		Log: LogConfig{
			Level: string(logging.LevelInfo),
		},
	}
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides fields from the environment. The reset variables are
// read here once and never again.
func (c *Config) ApplyEnv() error {
	c.Backend.URL = getEnv("PROXY_BACKEND_URL", c.Backend.URL)
	c.Listen = getEnv("PROXY_LISTEN", c.Listen)
	if port := os.Getenv("PROXY_PORT"); port != "" {
		c.Listen = ":" + port
	}
	c.MetricsListen = getEnv("PROXY_METRICS_LISTEN", c.MetricsListen)
	c.Cache.Dir = getEnv("PROXY_CACHE_DIR", c.Cache.Dir)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)

	if ttl := os.Getenv("PROXY_CACHE_TTL_SECONDS"); ttl != "" {
		v, err := strconv.ParseInt(ttl, 10, 64)
		if err != nil {
			return fmt.Errorf("PROXY_CACHE_TTL_SECONDS: %w", err)
		}
		c.Cache.TTLSeconds = v
	}

	if policy := os.Getenv("PROXY_MATCH_HEADERS"); policy != "" {
		m, err := fingerprint.ParseMatchHeaders(policy)
		if err != nil {
			return fmt.Errorf("PROXY_MATCH_HEADERS: %w", err)
		}
		c.Cache.MatchHeaders = m
	}

	if os.Getenv(EnvReset) != "" || os.Getenv(EnvResetLegacy) != "" {
		c.Cache.ResetAtStartup = true
	}

	return nil
}

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	if c.Backend.URL == "" {
		return fmt.Errorf("backend url is required")
	}
	u, err := url.Parse(c.Backend.URL)
	if err != nil {
		return fmt.Errorf("backend url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("backend url must be an absolute http(s) url (got %q)", c.Backend.URL)
	}
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("backend timeout must be positive (got %s)", c.Backend.Timeout)
	}
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.Cache.Dir == "" {
		return fmt.Errorf("cache dir is required")
	}
	if c.Cache.TTLSeconds <= 0 {
		return fmt.Errorf("cache ttl_seconds must be positive (got %d)", c.Cache.TTLSeconds)
	}
	if _, err := fingerprint.ParseMatchHeaders(string(c.Cache.MatchHeaders)); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
