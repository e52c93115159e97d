package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := defaults()

	assert.Equal(t, DefaultLogLevel, cfg.Logging.Level)
	assert.Equal(t, DefaultLogFormat, cfg.Logging.Format)
	assert.Equal(t, DefaultSessionPath, cfg.SessionCache.Path)
	assert.Empty(t, cfg.Backend.URL)
	assert.Empty(t, cfg.Backend.AuthToken)
}

func TestLoadEnv(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		expected *Config
	}{
		{
			name: "all env vars",
			envVars: map[string]string{
				"SYNCCORE_BACKEND_URL":        "https://backend.example.com",
				"SYNCCORE_AUTH_TOKEN":         "tok-123",
				"SYNCCORE_LOG_LEVEL":          "debug",
				"SYNCCORE_LOG_FORMAT":         "text",
				"SYNCCORE_SENTRY_DSN":         "https://sentry.example.com/1",
				"SYNCCORE_OTLP_ENDPOINT":      "localhost:4317",
				"SYNCCORE_REDIS_ADDR":         "localhost:6379",
				"SYNCCORE_SESSION_CACHE_PATH": "/tmp/sessions.db",
			},
			expected: &Config{
				Backend: BackendConfig{
					URL:       "https://backend.example.com",
					AuthToken: "tok-123",
				},
				Logging: LoggingConfig{
					Level:  "debug",
					Format: "text",
				},
				Observability: ObservabilityConfig{
					Tracing: TracingConfig{OTLPEndpoint: "localhost:4317"},
					Sentry:  SentryConfig{DSN: "https://sentry.example.com/1"},
				},
				ProgressBus:  ProgressBusConfig{Redis: RedisConfig{Addr: "localhost:6379"}},
				SessionCache: SessionCacheConfig{Path: "/tmp/sessions.db"},
			},
		},
		{
			name:    "no env vars falls back to defaults",
			envVars: map[string]string{},
			expected: &Config{
				Logging:      LoggingConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
				SessionCache: SessionCacheConfig{Path: DefaultSessionPath},
			},
		},
	}

	envKeys := []string{
		"SYNCCORE_BACKEND_URL", "SYNCCORE_AUTH_TOKEN", "SYNCCORE_LOG_LEVEL", "SYNCCORE_LOG_FORMAT",
		"SYNCCORE_SENTRY_DSN", "SYNCCORE_OTLP_ENDPOINT", "SYNCCORE_REDIS_ADDR", "SYNCCORE_SESSION_CACHE_PATH",
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range envKeys {
				os.Unsetenv(key)
			}
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			cfg := loadEnv(defaults())
			assert.Equal(t, tt.expected, cfg)
		})
	}
}

func TestLoadFile_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
backend:
  url: https://backend.example.com
  auth_token: tok-abc
logging:
  level: warn
  format: text
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := loadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "https://backend.example.com", cfg.Backend.URL)
	assert.Equal(t, "tok-abc", cfg.Backend.AuthToken)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadFile_JSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{"backend": {"url": "https://backend.example.com"}, "logging": {"level": "debug", "format": "json"}}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := loadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "https://backend.example.com", cfg.Backend.URL)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFile_UnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("x=1"), 0o644))

	_, err := loadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file extension")
}

func TestMerge_OverrideWinsOverBase(t *testing.T) {
	base := defaults()
	override := &Config{
		Backend: BackendConfig{URL: "https://override.example.com"},
		Logging: LoggingConfig{Level: "debug"},
	}

	merged := merge(base, override)

	assert.Equal(t, "https://override.example.com", merged.Backend.URL)
	assert.Equal(t, "debug", merged.Logging.Level)
	// Fields absent from override keep the base's defaults.
	assert.Equal(t, DefaultLogFormat, merged.Logging.Format)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid defaults",
			mutate: func(c *Config) {},
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "invalid log level",
		},
		{
			name:    "invalid log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "invalid log format",
		},
		{
			name:    "empty session cache path",
			mutate:  func(c *Config) { c.SessionCache.Path = "" },
			wantErr: "session cache path cannot be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoad_PrecedenceEnvOverFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
backend:
  url: https://from-file.example.com
logging:
  level: warn
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("SYNCCORE_CONFIG_FILE", path)
	t.Setenv("SYNCCORE_LOG_LEVEL", "debug")
	os.Unsetenv("SYNCCORE_BACKEND_URL")

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "https://from-file.example.com", cfg.Backend.URL)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_RejectsRelativeConfigFilePath(t *testing.T) {
	t.Setenv("SYNCCORE_CONFIG_FILE", "relative/config.yaml")

	_, err := Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file path validation failed")
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NotNil(t, cfg)
	assert.Equal(t, DefaultLogLevel, cfg.Logging.Level)
}
