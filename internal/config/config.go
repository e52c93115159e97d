// Package config provides configuration management for the sync core.
// It supports loading configuration from environment variables, a YAML/JSON
// file, and defaults, with a clear precedence order: env > file > defaults.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/insien-dev/sync-core/internal/validation"
	"gopkg.in/yaml.v3"
)

// Config represents the complete sync-core configuration.
type Config struct {
	Backend       BackendConfig       `json:"backend" yaml:"backend"`
	Logging       LoggingConfig       `json:"logging" yaml:"logging"`
	Observability ObservabilityConfig `json:"observability" yaml:"observability"`
	ProgressBus   ProgressBusConfig   `json:"progressbus" yaml:"progressbus"`
	SessionCache  SessionCacheConfig  `json:"session_cache" yaml:"session_cache"`
}

// BackendConfig holds the remote backend's base URL and bearer token.
type BackendConfig struct {
	URL       string `json:"url" yaml:"url"`
	AuthToken string `json:"auth_token" yaml:"auth_token"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// ObservabilityConfig holds observability configuration.
type ObservabilityConfig struct {
	Tracing TracingConfig `json:"tracing" yaml:"tracing"`
	Sentry  SentryConfig  `json:"sentry" yaml:"sentry"`
}

// TracingConfig holds tracing configuration.
type TracingConfig struct {
	OTLPEndpoint string `json:"otlp_endpoint" yaml:"otlp_endpoint"`
}

// SentryConfig holds Sentry error monitoring configuration.
type SentryConfig struct {
	DSN string `json:"dsn" yaml:"dsn"`
}

// ProgressBusConfig holds the optional Redis pub/sub mirror configuration.
// An empty Redis.Addr disables the bus entirely.
type ProgressBusConfig struct {
	Redis RedisConfig `json:"redis" yaml:"redis"`
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

// SessionCacheConfig holds the optional SQLite session mirror configuration.
type SessionCacheConfig struct {
	Path string `json:"path" yaml:"path"`
}

// Defaults.
const (
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "json"
	DefaultSessionPath = ":memory:"
)

// Valid values for validation.
var (
	ValidLogLevels  = []string{"debug", "info", "warn", "error"}
	ValidLogFormats = []string{"json", "text"}
)

// Load loads configuration from environment variables and an optional
// config file. Precedence: env vars > config file > defaults.
func Load(ctx context.Context) (*Config, error) {
	cfg := defaults()

	if configFile := os.Getenv("SYNCCORE_CONFIG_FILE"); configFile != "" {
		validatedPath, err := validation.ValidateConfigPath(configFile)
		if err != nil {
			return nil, fmt.Errorf("config file path validation failed: %w", err)
		}

		fileCfg, err := loadFile(validatedPath)
		if err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
		cfg = merge(cfg, fileCfg)
	}

	cfg = loadEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config with all default values.
func defaults() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		SessionCache: SessionCacheConfig{
			Path: DefaultSessionPath,
		},
	}
}

// loadFile loads configuration from a YAML or JSON file.
func loadFile(path string) (*Config, error) {
	safePath := filepath.Clean(path)

	data, err := os.ReadFile(safePath)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	cfg := &Config{}
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}

	return cfg, nil
}

// loadEnv overrides cfg with any non-empty SYNCCORE_* environment variables.
func loadEnv(cfg *Config) *Config {
	if url := os.Getenv("SYNCCORE_BACKEND_URL"); url != "" {
		cfg.Backend.URL = url
	}
	if token := os.Getenv("SYNCCORE_AUTH_TOKEN"); token != "" {
		cfg.Backend.AuthToken = token
	}

	if logLevel := os.Getenv("SYNCCORE_LOG_LEVEL"); logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat := os.Getenv("SYNCCORE_LOG_FORMAT"); logFormat != "" {
		cfg.Logging.Format = logFormat
	}

	if dsn := os.Getenv("SYNCCORE_SENTRY_DSN"); dsn != "" {
		cfg.Observability.Sentry.DSN = dsn
	}
	if endpoint := os.Getenv("SYNCCORE_OTLP_ENDPOINT"); endpoint != "" {
		cfg.Observability.Tracing.OTLPEndpoint = endpoint
	}

	if addr := os.Getenv("SYNCCORE_REDIS_ADDR"); addr != "" {
		cfg.ProgressBus.Redis.Addr = addr
	}

	if path := os.Getenv("SYNCCORE_SESSION_CACHE_PATH"); path != "" {
		cfg.SessionCache.Path = path
	}

	return cfg
}

// merge overlays non-zero fields of override onto base, returning base.
func merge(base, override *Config) *Config {
	if override.Backend.URL != "" {
		base.Backend.URL = override.Backend.URL
	}
	if override.Backend.AuthToken != "" {
		base.Backend.AuthToken = override.Backend.AuthToken
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.Observability.Sentry.DSN != "" {
		base.Observability.Sentry.DSN = override.Observability.Sentry.DSN
	}
	if override.Observability.Tracing.OTLPEndpoint != "" {
		base.Observability.Tracing.OTLPEndpoint = override.Observability.Tracing.OTLPEndpoint
	}

	if override.ProgressBus.Redis.Addr != "" {
		base.ProgressBus.Redis.Addr = override.ProgressBus.Redis.Addr
	}

	if override.SessionCache.Path != "" {
		base.SessionCache.Path = override.SessionCache.Path
	}

	return base
}

// Validate checks the configuration for well-formedness.
func (c *Config) Validate() error {
	if !contains(ValidLogLevels, c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (valid: %v)", c.Logging.Level, ValidLogLevels)
	}
	if !contains(ValidLogFormats, c.Logging.Format) {
		return fmt.Errorf("invalid log format: %s (valid: %v)", c.Logging.Format, ValidLogFormats)
	}
	if c.SessionCache.Path == "" {
		return fmt.Errorf("session cache path cannot be empty")
	}
	return nil
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// Default returns a default configuration for testing and documentation.
func Default() *Config {
	return defaults()
}
