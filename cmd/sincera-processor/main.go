// Command sincera-processor enriches a spreadsheet of publisher domains or
// ids with metadata from the Sincera API.
//
// Usage:
//
//	sincera-processor <input-file>
//
// Configuration is read from SINCERA_* environment variables and the
// optional YAML file named by SINCERA_CONFIG.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/miyaichi/sincera-data-processor/internal/processor"
	"github.com/miyaichi/sincera-data-processor/pkg/client"
	"github.com/miyaichi/sincera-data-processor/pkg/config"
	"github.com/miyaichi/sincera-data-processor/pkg/logging"
	"github.com/miyaichi/sincera-data-processor/pkg/metrics"
	"github.com/miyaichi/sincera-data-processor/pkg/ratelimit"
)

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

const usage = "Usage: sincera-processor <input-file>"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one batch and returns the process exit code.
func run(ctx context.Context, args []string, stderr io.Writer) int {
	if len(args) != 1 || args[0] == "" {
		fmt.Fprintln(stderr, usage)
		return exitUsage
	}
	input := args[0]

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
		Output: stderr,
		RunID:  uuid.NewString(),
	})
	logger := logging.NewLogger(logging.ComponentCLI)

	if _, err := os.Stat(input); err != nil {
		logger.Error().Err(err).Str("input", input).Msg("Input file not found")
		return exitError
	}

	store, closeStore, err := newStore(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to set up rate limit store")
		return exitError
	}
	defer closeStore()

	limiter := ratelimit.NewLimiter(store, ratelimit.SystemClock{}, logging.NewLogger(logging.ComponentLimiter))

	clientCfg := client.DefaultConfig(cfg.APIToken, limiter)
	clientCfg.BaseURL = cfg.APIBaseURL
	clientCfg.UserAgent = cfg.UserAgent
	clientCfg.Timeout = cfg.Timeout()
	clientCfg.Retry.MaxRetries = cfg.MaxRetries
	clientCfg.Retry.InitialBackoff = cfg.InitialBackoff()
	clientCfg.Retry.MaxBackoff = cfg.MaxBackoffDuration()

	sincera, err := client.New(clientCfg)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create Sincera client")
		return exitError
	}

	logger.Info().
		Str("input", input).
		Int("rate_limit_count", cfg.RateLimitCount).
		Dur("rate_limit_period", cfg.RatePeriod()).
		Int("max_retries", cfg.MaxRetries).
		Bool("shared_window", cfg.RedisURL != "").
		Msg("Starting run")

	summary, runErr := processor.New(sincera, logging.NewLogger(logging.ComponentProcessor)).Run(ctx, input)

	if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
		logger.Warn().Err(err).Str("path", cfg.MetricsFile).Msg("Failed to write metrics file")
	}

	if runErr != nil {
		if errors.Is(runErr, processor.ErrInterrupted) {
			logger.Error().Err(runErr).Str("output", summary.OutputPath).Msg("Run interrupted")
		} else {
			logger.Error().Err(runErr).Msg("Run failed")
		}
		return exitError
	}

	fmt.Fprintf(stderr, "Processing complete. Results written to '%s'\n", summary.OutputPath)
	return exitOK
}

// newStore picks the rate window backend. A Redis URL shares the window
// between processes using the same token.
func newStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (ratelimit.Store, func(), error) {
	if cfg.RedisURL == "" {
		return ratelimit.NewMemoryStore(cfg.RateLimitCount, cfg.RatePeriod()), func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}

	redisClient := redis.NewClient(opts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		redisClient.Close()
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info().Str("addr", opts.Addr).Msg("Connected to Redis - using shared rate window")

	store := ratelimit.NewRedisStore(redisClient, ratelimit.RedisKeyDispatches, cfg.RateLimitCount, cfg.RatePeriod())
	return store, func() { redisClient.Close() }, nil
}
