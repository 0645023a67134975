//go:build integration

package client

import (
	"context"
	"testing"
	"time"

	"github.com/miyaichi/sincera-data-processor/internal/testutil"
	"github.com/miyaichi/sincera-data-processor/pkg/publisher"
	"github.com/miyaichi/sincera-data-processor/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedisContainer creates a Redis container for integration testing.
func setupRedisContainer(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: endpoint})

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func TestIntegration_LookupThroughRedisLimiter(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	mock := testutil.NewMockSincera()
	defer mock.Close()

	for _, domain := range []string{"a.com", "b.com", "c.com"} {
		mock.SetResponse(testutil.DomainKey(domain), testutil.NewPublisherResponse(`{"name": "`+domain+`"}`))
	}

	clock := testutil.NewFakeClock(time.Now())
	store := ratelimit.NewRedisStore(redisClient, ratelimit.RedisKeyDispatches, 2, time.Minute)
	limiter := ratelimit.NewLimiter(store, clock, testLogger)

	cfg := DefaultConfig("token", limiter)
	cfg.BaseURL = mock.URL()
	cfg.Clock = clock

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	for i, domain := range []string{"a.com", "b.com", "c.com"} {
		req, _ := publisher.NewLookupRequest(i+1, domain, "")
		result := c.Lookup(ctx, req)
		if !result.Success() {
			t.Fatalf("lookup %s failed: %v", domain, result.Err)
		}
		if result.Payload["name"] != domain {
			t.Errorf("name = %q, want %q", result.Payload["name"], domain)
		}
	}

	// The third dispatch must have waited for the first to leave the window.
	sleeps := clock.Sleeps()
	if len(sleeps) == 0 {
		t.Fatal("expected the limiter to wait before the third dispatch")
	}
	var waited time.Duration
	for _, d := range sleeps {
		waited += d
	}
	if waited < time.Minute-time.Second {
		t.Errorf("total wait = %v, want about one period", waited)
	}

	count, err := store.Count(ctx, clock.Now())
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count > 2 {
		t.Errorf("window holds %d dispatches, limit is 2", count)
	}
}
