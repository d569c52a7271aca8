package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xkelxmc/eden-tanstack-query/observe"
)

// Config is the root configuration of an edenquery client.
type Config struct {
	// BaseURL is the root URL of the route tree.
	BaseURL string `yaml:"base_url"`
	// Timeout bounds each HTTP call. Zero means no timeout.
	Timeout time.Duration `yaml:"timeout"`
	// Headers are sent with every call.
	Headers map[string]string `yaml:"headers"`
	// AbortOnUnmount is the default for queries that do not set it.
	AbortOnUnmount bool `yaml:"abort_on_unmount"`

	Auth    AuthConfig     `yaml:"auth"`
	Cache   CacheConfig    `yaml:"cache"`
	Observe observe.Config `yaml:"observe"`
}

// AuthConfig selects the bearer token sent with calls. At most one of
// Token and JWT.Secret may be set.
type AuthConfig struct {
	Token string    `yaml:"token"`
	JWT   JWTConfig `yaml:"jwt"`
}

// JWTConfig configures locally signed HS256 tokens.
type JWTConfig struct {
	Secret   string        `yaml:"secret"`
	Issuer   string        `yaml:"issuer"`
	Subject  string        `yaml:"subject"`
	Audience string        `yaml:"audience"`
	TTL      time.Duration `yaml:"ttl"`
}

// CacheConfig holds the defaults of the query cache.
type CacheConfig struct {
	StaleTime     time.Duration `yaml:"stale_time"`
	GCTime        time.Duration `yaml:"gc_time"`
	Retry         int           `yaml:"retry"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
	MaxRetryDelay time.Duration `yaml:"max_retry_delay"`
}

// Default returns the configuration used for unset fields.
func Default() Config {
	return Config{
		Timeout: 30 * time.Second,
		Cache: CacheConfig{
			StaleTime:     0,
			GCTime:        5 * time.Minute,
			Retry:         3,
			RetryDelay:    time.Second,
			MaxRetryDelay: 30 * time.Second,
		},
		Observe: observe.Config{
			ServiceName: "edenquery",
			Tracing:     observe.TracingConfig{Exporter: "none", SamplePct: 1.0},
			Metrics:     observe.MetricsConfig{Exporter: "none"},
			Logging:     observe.LoggingConfig{Level: "info"},
		},
	}
}

// Load reads, expands and validates the YAML file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse expands ${VAR} references in data, decodes it over Default, applies
// EDENQUERY_* overrides and validates the result.
func Parse(data []byte) (Config, error) {
	expanded, err := ExpandEnvStrict(string(data))
	if err != nil {
		return Config{}, err
	}

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse: %w", err)
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnvOverrides applies EDENQUERY_* environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("EDENQUERY_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("EDENQUERY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Timeout = d
		}
	}
	if v := os.Getenv("EDENQUERY_TOKEN"); v != "" {
		cfg.Auth.Token = v
	}
	if v := os.Getenv("EDENQUERY_ABORT_ON_UNMOUNT"); v != "" {
		cfg.AbortOnUnmount = parseBool(v)
	}
	if v := os.Getenv("EDENQUERY_CACHE_RETRY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Cache.Retry = n
		}
	}
	if v := os.Getenv("EDENQUERY_LOG_LEVEL"); v != "" {
		cfg.Observe.Logging.Enabled = true
		cfg.Observe.Logging.Level = v
	}
}

func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return ErrMissingBaseURL
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTimeout, c.Timeout)
	}
	if c.Auth.Token != "" && c.Auth.JWT.Secret != "" {
		return ErrConflictingAuth
	}
	if c.Auth.JWT.TTL < 0 {
		return fmt.Errorf("config: auth.jwt.ttl must not be negative, got %s", c.Auth.JWT.TTL)
	}
	if c.Cache.StaleTime < 0 || c.Cache.GCTime < 0 {
		return ErrInvalidCacheTime
	}
	if c.Cache.Retry < 0 || c.Cache.RetryDelay < 0 || c.Cache.MaxRetryDelay < 0 {
		return ErrInvalidRetry
	}
	if err := c.Observe.Validate(); err != nil {
		return fmt.Errorf("config: observe: %w", err)
	}
	return nil
}
