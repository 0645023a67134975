package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SINCERA_API_TOKEN", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.APIToken)
	assert.Equal(t, "https://open.sincera.io/api/publishers", cfg.APIBaseURL)
	assert.Equal(t, "sincera-data-processor/0.1.0", cfg.UserAgent)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 10*time.Second, cfg.Timeout())
	assert.Equal(t, 2*time.Second, cfg.InitialBackoff())
	assert.Equal(t, 60*time.Second, cfg.MaxBackoffDuration())
	assert.Equal(t, 45, cfg.RateLimitCount)
	assert.Equal(t, 60*time.Second, cfg.RatePeriod())
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.LogPretty)
	assert.Empty(t, cfg.MetricsFile)
}

func TestLoad_MissingToken(t *testing.T) {
	t.Setenv("SINCERA_API_TOKEN", "")

	_, err := Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "SINCERA_API_TOKEN is required")
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SINCERA_API_TOKEN", "secret")
	t.Setenv("SINCERA_MAX_RETRIES", "0")
	t.Setenv("SINCERA_RATE_LIMIT_COUNT", "5")
	t.Setenv("SINCERA_RATE_LIMIT_PERIOD", "1")
	t.Setenv("SINCERA_LOG_LEVEL", " DEBUG ")
	t.Setenv("SINCERA_LOG_PRETTY", "true")
	t.Setenv("SINCERA_REDIS_URL", "redis://localhost:6379/0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 0, cfg.MaxRetries)
	assert.Equal(t, 5, cfg.RateLimitCount)
	assert.Equal(t, time.Second, cfg.RatePeriod())
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.LogPretty)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sincera.yaml")
	content := "api_token: from-file\nmax_retries: 5\nrate_limit_count: 10\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("SINCERA_CONFIG", path)
	t.Setenv("SINCERA_RATE_LIMIT_COUNT", "20")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.APIToken)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 20, cfg.RateLimitCount, "environment wins over the file")
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("SINCERA_API_TOKEN", "secret")
	t.Setenv("SINCERA_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			APIToken:        "token",
			APIBaseURL:      "https://open.sincera.io/api/publishers",
			MaxRetries:      3,
			RequestTimeout:  10,
			RetryDelay:      2,
			MaxBackoff:      60,
			RateLimitCount:  45,
			RateLimitPeriod: 60,
			LogLevel:        "info",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "negative retries", mutate: func(c *Config) { c.MaxRetries = -1 }, wantErr: "SINCERA_MAX_RETRIES"},
		{name: "zero timeout", mutate: func(c *Config) { c.RequestTimeout = 0 }, wantErr: "SINCERA_REQUEST_TIMEOUT"},
		{name: "zero rate count", mutate: func(c *Config) { c.RateLimitCount = 0 }, wantErr: "SINCERA_RATE_LIMIT_COUNT"},
		{name: "zero rate period", mutate: func(c *Config) { c.RateLimitPeriod = 0 }, wantErr: "SINCERA_RATE_LIMIT_PERIOD"},
		{name: "backoff below delay", mutate: func(c *Config) { c.MaxBackoff = 1 }, wantErr: "SINCERA_MAX_BACKOFF must be >= retry_delay"},
		{name: "bad base url", mutate: func(c *Config) { c.APIBaseURL = "not a url" }, wantErr: "SINCERA_API_BASE_URL"},
		{name: "bad log level", mutate: func(c *Config) { c.LogLevel = "verbose" }, wantErr: "SINCERA_LOG_LEVEL must be one of"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
