// Package logging configures structured logging with zerolog.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Component names used in the "component" field.
const (
	ComponentCLI       = "cli"
	ComponentClient    = "sincera-client"
	ComponentLimiter   = "rate-limiter"
	ComponentProcessor = "processor"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output instead of JSON.
	Pretty bool

	// Output defaults to os.Stderr when nil.
	Output io.Writer

	// RunID, when set, is attached to every log line.
	RunID string
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures and returns the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	ctx := zerolog.New(output).With().Timestamp()
	if cfg.RunID != "" {
		ctx = ctx.Str("run_id", cfg.RunID)
	}
	logger := ctx.Logger()

	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(string(level))) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a child of the global logger tagged with component.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: per-attempt detail
//   - request URL and attempt number
//   - error classification
//   - memo hits
//
// Info: normal progress
//   - input loaded, row outcome, output written
//   - run summary
//
// Warn: degraded but continuing
//   - rate limit waits
//   - retries and Retry-After honoured
//   - skipped rows, suspicious domains
//   - lookups that failed terminally (the row is still written)
//
// Error: conditions that end the run
//   - unreadable input or unwritable output
//   - interruption
//
// Context Fields:
//   - run_id: unique id of one CLI run
//   - row: 1-based spreadsheet row number
//   - identifier_kind: domain or publisher_id
//   - identifier: lookup value
//   - status_code: HTTP status code
//   - error_class: client, server, rate_limit, network, response
//   - attempt: attempt number, starting at 1
//   - wait_duration: rate limiter or backoff wait
