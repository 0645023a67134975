package client

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/miyaichi/sincera-data-processor/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sincera_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sincera_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sincera_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the exponential delay. A server Retry-After may
	// exceed it.
	MaxBackoff time.Duration

	// BackoffMultiplier is the growth factor between retries.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    2 * time.Second,
		MaxBackoff:        60 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// Backoff returns the exponential delay before retry number retry (0-based).
func (c RetryConfig) Backoff(retry int) time.Duration {
	multiplier := c.BackoffMultiplier
	if multiplier < 1 {
		multiplier = 1
	}

	backoff := float64(c.InitialBackoff) * math.Pow(multiplier, float64(retry))
	if c.MaxBackoff > 0 && backoff > float64(c.MaxBackoff) {
		return c.MaxBackoff
	}
	return time.Duration(backoff)
}

// NextDelay returns the delay before retry number retry. It is never
// shorter than the previous delay or the server's Retry-After.
func (c RetryConfig) NextDelay(previous time.Duration, retry int, retryAfter time.Duration) time.Duration {
	return max(c.Backoff(retry), previous, retryAfter)
}

// retryWithBackoff runs fn until it succeeds, fails with a non-retryable
// error, or MaxRetries retries have been spent. It returns the number of
// attempts made.
func retryWithBackoff(ctx context.Context, config RetryConfig, clock ratelimit.Clock, logger zerolog.Logger, fn func(attempt int) error) (int, error) {
	var (
		lastErr error
		delay   time.Duration
	)

	for attempt := 1; ; attempt++ {
		err := fn(attempt)
		if err == nil {
			if attempt > 1 {
				logger.Info().
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return attempt, nil
		}

		lastErr = err
		errorClass := classOf(err)

		if !shouldRetry(errorClass) {
			return attempt, lastErr
		}

		retry := attempt - 1
		if retry >= config.MaxRetries {
			retryExhaustedTotal.WithLabelValues(string(errorClass)).Inc()
			logger.Warn().
				Str("error_class", string(errorClass)).
				Int("max_retries", config.MaxRetries).
				Msg("Retry attempts exhausted")
			return attempt, fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, attempt, lastErr)
		}

		delay = config.NextDelay(delay, retry, retryAfterOf(err))

		retriesTotal.WithLabelValues(string(errorClass)).Inc()
		retryBackoffSeconds.WithLabelValues(string(errorClass)).Observe(delay.Seconds())

		logger.Warn().
			Err(err).
			Str("error_class", string(errorClass)).
			Int("attempt", attempt).
			Dur("wait_duration", delay).
			Msg("Retrying request after backoff")

		if err := clock.Sleep(ctx, delay); err != nil {
			logger.Warn().
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return attempt, fmt.Errorf("%w: %w", ErrContextCancelled, err)
		}
	}
}
