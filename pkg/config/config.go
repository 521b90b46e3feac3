// Package config loads TaskIndex server settings from an optional YAML file
// with environment variable overrides for the values that differ between
// deployments.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values can use the usual Go
// duration syntax ("250ms", "2s").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// RateLimit configures the Redis-backed admission gate for the submit
// endpoint.
type RateLimit struct {
	// Rate is the number of tokens refilled per second.
	Rate int `yaml:"rate"`
	// Burst is the bucket capacity.
	Burst int `yaml:"burst"`
}

// Config holds the settings for the server, dispatcher and admission gate.
type Config struct {
	// ListenAddr is the HTTP API listen address.
	ListenAddr string `yaml:"listen_addr"`

	// RedisAddr is the Redis instance backing the rate limiter.
	RedisAddr string `yaml:"redis_addr"`

	// APIKey protects the HTTP API. Empty disables authentication.
	APIKey string `yaml:"api_key"`

	// DispatchEnabled turns on the in-process dispatcher, which drains the
	// index and executes tasks. Off by default: the server then acts as a
	// pure index service and leaves execution to other collaborators.
	DispatchEnabled bool `yaml:"dispatch_enabled"`

	// Workers is the number of dispatcher goroutines.
	Workers int `yaml:"workers"`

	// MaxRetries is how many times a failed task is retried before it is
	// marked failed for good.
	MaxRetries int `yaml:"max_retries"`

	// RetryBase is the base delay for exponential backoff (2^retry * base).
	RetryBase Duration `yaml:"retry_base"`

	// RateLimit configures submit-endpoint throttling.
	RateLimit RateLimit `yaml:"rate_limit"`
}

// Default returns the configuration used when no file is provided.
func Default() Config {
	return Config{
		ListenAddr: ":8081",
		RedisAddr:  "127.0.0.1:6379",
		Workers:    4,
		MaxRetries: 3,
		RetryBase:  Duration(100 * time.Millisecond),
		RateLimit:  RateLimit{Rate: 10, Burst: 20},
	}
}

// Load reads the YAML file at path over the defaults and then applies
// environment overrides. An empty path skips the file and uses defaults
// plus environment only.
//
// Environment overrides:
//   - TASKINDEX_LISTEN_ADDR
//   - TASKINDEX_REDIS_ADDR
//   - TASKINDEX_WORKERS
//   - API_KEY
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("TASKINDEX_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("TASKINDEX_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("TASKINDEX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workers = n
		}
	}
	if v := os.Getenv("API_KEY"); v != "" {
		cfg.APIKey = v
	}
}

func (c Config) validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("config: workers must be >= 1, got %d", c.Workers)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("config: max_retries must be >= 0, got %d", c.MaxRetries)
	}
	if c.RateLimit.Rate < 1 || c.RateLimit.Burst < 1 {
		return fmt.Errorf("config: rate_limit rate and burst must be >= 1")
	}
	return nil
}
