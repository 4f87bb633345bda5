package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ligustah/bundlefetch/internal/progress"
)

// Config defines configuration for the bundlefetch CLI. Timeout bounds the
// wait for a transport's response headers, not the whole download.
type Config struct {
	CacheDir    string        `yaml:"cache_dir"`
	BucketURL   string        `yaml:"bucket_url"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxSize     int64         `yaml:"max_size"`
	LockTimeout time.Duration `yaml:"lock_timeout"`
	Progress    bool          `yaml:"progress"`
	Retry       RetryConfig   `yaml:"retry"`
	Log         LogConfig     `yaml:"log"`
}

// RetryConfig defines retry behavior for HTTP transfers.
type RetryConfig struct {
	Attempts   int           `yaml:"attempts"`
	Backoff    time.Duration `yaml:"backoff"`
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

// LogConfig selects the log handler.
type LogConfig struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		CacheDir:    defaultCacheDir(),
		Timeout:     time.Minute,
		LockTimeout: 5 * time.Minute,
		Retry: RetryConfig{
			Attempts:   3,
			Backoff:    500 * time.Millisecond,
			MaxBackoff: 10 * time.Second,
		},
		Log: LogConfig{
			Format: "text",
			Level:  "warn",
		},
	}
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "bundlefetch")
	}
	return filepath.Join(os.TempDir(), "bundlefetch")
}

// yamlConfig is used for YAML unmarshaling with string durations and sizes.
type yamlConfig struct {
	CacheDir    string          `yaml:"cache_dir"`
	BucketURL   string          `yaml:"bucket_url"`
	Timeout     string          `yaml:"timeout"`
	MaxSize     string          `yaml:"max_size"`
	LockTimeout string          `yaml:"lock_timeout"`
	Progress    bool            `yaml:"progress"`
	Retry       yamlRetryConfig `yaml:"retry"`
	Log         LogConfig       `yaml:"log"`
}

type yamlRetryConfig struct {
	Attempts   int    `yaml:"attempts"`
	Backoff    string `yaml:"backoff"`
	MaxBackoff string `yaml:"max_backoff"`
}

// LoadFromFile loads configuration from a YAML file on top of Default.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()

	if yc.CacheDir != "" {
		cfg.CacheDir = yc.CacheDir
	}
	cfg.BucketURL = yc.BucketURL
	if err := parseDuration(yc.Timeout, "timeout", &cfg.Timeout); err != nil {
		return Config{}, err
	}
	if yc.MaxSize != "" {
		size, err := progress.ParseBytes(yc.MaxSize)
		if err != nil {
			return Config{}, fmt.Errorf("parse max_size: %w", err)
		}
		cfg.MaxSize = size
	}
	if err := parseDuration(yc.LockTimeout, "lock_timeout", &cfg.LockTimeout); err != nil {
		return Config{}, err
	}
	cfg.Progress = yc.Progress
	if yc.Retry.Attempts != 0 {
		cfg.Retry.Attempts = yc.Retry.Attempts
	}
	if err := parseDuration(yc.Retry.Backoff, "retry.backoff", &cfg.Retry.Backoff); err != nil {
		return Config{}, err
	}
	if err := parseDuration(yc.Retry.MaxBackoff, "retry.max_backoff", &cfg.Retry.MaxBackoff); err != nil {
		return Config{}, err
	}
	if yc.Log.Format != "" {
		cfg.Log.Format = yc.Log.Format
	}
	if yc.Log.Level != "" {
		cfg.Log.Level = yc.Log.Level
	}

	return cfg, nil
}

func parseDuration(s, field string, dst *time.Duration) error {
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse %s: %w", field, err)
	}
	*dst = d
	return nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the BUNDLEFETCH_ prefix.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("BUNDLEFETCH_CACHE_DIR"); v != "" {
		c.CacheDir = v
	}
	if v := os.Getenv("BUNDLEFETCH_BUCKET_URL"); v != "" {
		c.BucketURL = v
	}
	if v := os.Getenv("BUNDLEFETCH_TIMEOUT"); v != "" {
		if err := parseDuration(v, "BUNDLEFETCH_TIMEOUT", &c.Timeout); err != nil {
			return err
		}
	}
	if v := os.Getenv("BUNDLEFETCH_MAX_SIZE"); v != "" {
		size, err := progress.ParseBytes(v)
		if err != nil {
			return fmt.Errorf("parse BUNDLEFETCH_MAX_SIZE: %w", err)
		}
		c.MaxSize = size
	}
	if v := os.Getenv("BUNDLEFETCH_LOCK_TIMEOUT"); v != "" {
		if err := parseDuration(v, "BUNDLEFETCH_LOCK_TIMEOUT", &c.LockTimeout); err != nil {
			return err
		}
	}
	if v := os.Getenv("BUNDLEFETCH_PROGRESS"); v != "" {
		c.Progress = v == "true" || v == "1"
	}
	if v := os.Getenv("BUNDLEFETCH_RETRY_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse BUNDLEFETCH_RETRY_ATTEMPTS: %w", err)
		}
		c.Retry.Attempts = n
	}
	if v := os.Getenv("BUNDLEFETCH_RETRY_BACKOFF"); v != "" {
		if err := parseDuration(v, "BUNDLEFETCH_RETRY_BACKOFF", &c.Retry.Backoff); err != nil {
			return err
		}
	}
	if v := os.Getenv("BUNDLEFETCH_RETRY_MAX_BACKOFF"); v != "" {
		if err := parseDuration(v, "BUNDLEFETCH_RETRY_MAX_BACKOFF", &c.Retry.MaxBackoff); err != nil {
			return err
		}
	}
	if v := os.Getenv("BUNDLEFETCH_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	if v := os.Getenv("BUNDLEFETCH_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.CacheDir == "" {
		return errors.New("config: cache_dir is required")
	}
	if c.Timeout < 0 {
		return errors.New("config: timeout must not be negative")
	}
	if c.MaxSize < 0 {
		return errors.New("config: max_size must not be negative")
	}
	if c.LockTimeout <= 0 {
		return errors.New("config: lock_timeout must be positive")
	}
	if c.Retry.Attempts < 0 {
		return errors.New("config: retry.attempts must not be negative")
	}
	if c.Retry.Backoff > c.Retry.MaxBackoff {
		return errors.New("config: retry.backoff must not exceed retry.max_backoff")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log.format %q", c.Log.Format)
	}
	return nil
}

// Merge merges override values into c, returning a new Config.
// Zero values in override are ignored. Progress is not merged since false
// is a valid override; callers set it directly.
func (c Config) Merge(override Config) Config {
	if override.CacheDir != "" {
		c.CacheDir = override.CacheDir
	}
	if override.BucketURL != "" {
		c.BucketURL = override.BucketURL
	}
	if override.Timeout != 0 {
		c.Timeout = override.Timeout
	}
	if override.MaxSize != 0 {
		c.MaxSize = override.MaxSize
	}
	if override.LockTimeout != 0 {
		c.LockTimeout = override.LockTimeout
	}
	if override.Retry.Attempts != 0 {
		c.Retry.Attempts = override.Retry.Attempts
	}
	if override.Retry.Backoff != 0 {
		c.Retry.Backoff = override.Retry.Backoff
	}
	if override.Retry.MaxBackoff != 0 {
		c.Retry.MaxBackoff = override.Retry.MaxBackoff
	}
	if override.Log.Format != "" {
		c.Log.Format = override.Log.Format
	}
	if override.Log.Level != "" {
		c.Log.Level = override.Log.Level
	}
	return c
}
