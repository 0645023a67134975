// Package config loads the processor configuration from the environment
// and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable (SINCERA_API_TOKEN).
const EnvPrefix = "SINCERA"

// FileEnv names the environment variable holding an optional config file.
const FileEnv = "SINCERA_CONFIG"

// ErrInvalid is returned when the loaded configuration fails validation.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all settings of one run.
type Config struct {
	APIToken   string `mapstructure:"api_token" validate:"required"`
	APIBaseURL string `mapstructure:"api_base_url" validate:"required,url"`
	UserAgent  string `mapstructure:"user_agent"`

	MaxRetries     int `mapstructure:"max_retries" validate:"gte=0"`
	RequestTimeout int `mapstructure:"request_timeout" validate:"gt=0"`
	RetryDelay     int `mapstructure:"retry_delay" validate:"gte=0"`
	MaxBackoff     int `mapstructure:"max_backoff" validate:"gtefield=RetryDelay"`

	RateLimitCount  int `mapstructure:"rate_limit_count" validate:"gte=1"`
	RateLimitPeriod int `mapstructure:"rate_limit_period" validate:"gt=0"`

	// RedisURL shares the rate window between processes when set.
	RedisURL string `mapstructure:"redis_url" validate:"omitempty,url"`

	LogLevel  string `mapstructure:"log_level" validate:"oneof=debug info warn warning error"`
	LogPretty bool   `mapstructure:"log_pretty"`

	MetricsFile string `mapstructure:"metrics_file"`
}

var defaults = map[string]any{
	"api_token":         "",
	"api_base_url":      "https://open.sincera.io/api/publishers",
	"user_agent":        "sincera-data-processor/0.1.0",
	"max_retries":       3,
	"request_timeout":   10,
	"retry_delay":       2,
	"max_backoff":       60,
	"rate_limit_count":  45,
	"rate_limit_period": 60,
	"redis_url":         "",
	"log_level":         "info",
	"log_pretty":        false,
	"metrics_file":      "",
}

// Load reads the configuration. Environment variables override the file
// named by SINCERA_CONFIG, which overrides the defaults.
func Load() (*Config, error) {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, describe(fe))
			}
			return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// describe renders one validation failure using the environment name.
func describe(fe validator.FieldError) string {
	env := EnvPrefix + "_" + strings.ToUpper(envKey(fe.StructField()))
	switch fe.Tag() {
	case "required":
		return env + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s] (got %v)", env, fe.Param(), fe.Value())
	case "gtefield":
		return fmt.Sprintf("%s must be >= retry_delay (got %v)", env, fe.Value())
	default:
		if fe.Param() != "" {
			return fmt.Sprintf("%s failed %s=%s (got %v)", env, fe.Tag(), fe.Param(), fe.Value())
		}
		return fmt.Sprintf("%s failed %s (got %v)", env, fe.Tag(), fe.Value())
	}
}

var fieldKeys = map[string]string{
	"APIToken":        "api_token",
	"APIBaseURL":      "api_base_url",
	"UserAgent":       "user_agent",
	"MaxRetries":      "max_retries",
	"RequestTimeout":  "request_timeout",
	"RetryDelay":      "retry_delay",
	"MaxBackoff":      "max_backoff",
	"RateLimitCount":  "rate_limit_count",
	"RateLimitPeriod": "rate_limit_period",
	"RedisURL":        "redis_url",
	"LogLevel":        "log_level",
	"LogPretty":       "log_pretty",
	"MetricsFile":     "metrics_file",
}

func envKey(field string) string {
	if key, ok := fieldKeys[field]; ok {
		return key
	}
	return field
}

// Timeout is the per-request network timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// InitialBackoff is the delay before the first retry.
func (c *Config) InitialBackoff() time.Duration {
	return time.Duration(c.RetryDelay) * time.Second
}

// MaxBackoffDuration caps the exponential retry delay.
func (c *Config) MaxBackoffDuration() time.Duration {
	return time.Duration(c.MaxBackoff) * time.Second
}

// RatePeriod is the length of the sliding rate window.
func (c *Config) RatePeriod() time.Duration {
	return time.Duration(c.RateLimitPeriod) * time.Second
}
