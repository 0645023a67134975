package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limiting.
var (
	rateLimitDispatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sincera_rate_limit_dispatches_total",
		Help: "Total number of dispatch slots granted by the rate limiter",
	})

	rateLimitWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sincera_rate_limit_waits_total",
		Help: "Total number of times a dispatch had to wait for the window to free up",
	})

	rateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sincera_rate_limit_wait_seconds",
		Help:    "Time spent waiting for a free slot in the rate window",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// Store holds the dispatch window.
type Store interface {
	// Reserve records a dispatch at now and returns 0 when the window has
	// room. When the window is full nothing is recorded and the returned
	// duration is how long to wait before trying again.
	Reserve(ctx context.Context, now time.Time) (time.Duration, error)
}

// MemoryStore keeps the window in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	window *Window
}

// NewMemoryStore creates an in-memory window store.
func NewMemoryStore(limit int, period time.Duration) *MemoryStore {
	if limit < 1 {
		panic("rate limit must be at least 1")
	}
	if period <= 0 {
		panic("rate limit period must be positive")
	}
	return &MemoryStore{
		window: NewWindow(limit, period),
	}
}

// Reserve implements Store.
func (s *MemoryStore) Reserve(_ context.Context, now time.Time) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.window.Prune(now)
	if s.window.IsFull() {
		return s.window.WaitTime(now), nil
	}
	s.window.Record(now)
	return 0, nil
}

// Count returns the number of dispatches in the window at now.
func (s *MemoryStore) Count(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.window.Prune(now)
	return s.window.Count()
}

// Limiter gates outbound requests against a Store.
type Limiter struct {
	store  Store
	clock  Clock
	logger zerolog.Logger
}

// NewLimiter creates a limiter. A nil clock means SystemClock.
func NewLimiter(store Store, clock Clock, logger zerolog.Logger) *Limiter {
	if store == nil {
		panic("rate limit store cannot be nil")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Limiter{
		store:  store,
		clock:  clock,
		logger: logger,
	}
}

// Acquire blocks until one more request fits into the window, then records
// it. It only returns an error if ctx is done or the store fails.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		wait, err := l.store.Reserve(ctx, l.clock.Now())
		if err != nil {
			return fmt.Errorf("reserve dispatch slot: %w", err)
		}

		if wait <= 0 {
			rateLimitDispatchesTotal.Inc()
			return nil
		}

		rateLimitWaitsTotal.Inc()
		rateLimitWaitSeconds.Observe(wait.Seconds())

		l.logger.Warn().
			Dur("wait_duration", wait).
			Msg("Rate limit reached - waiting for window")

		if err := l.clock.Sleep(ctx, wait); err != nil {
			return err
		}
	}
}
