package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// reserveScript prunes, checks and records a dispatch in one round trip so
// that several processes sharing the key cannot overshoot the limit.
// Returns 0 when recorded, otherwise the wait in milliseconds.
var reserveScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local period = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - period)

if redis.call('ZCARD', key) >= limit then
	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	local wait = tonumber(oldest[2]) + period - now
	if wait < 1 then
		wait = 1
	end
	return wait
end

redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, period)
return 0
`)

// RedisStore keeps the window in a Redis sorted set scored by dispatch time
// in milliseconds. The key expires one period after the last dispatch.
type RedisStore struct {
	redis  *redis.Client
	key    string
	limit  int
	period time.Duration
}

// NewRedisStore creates a Redis-backed window store.
func NewRedisStore(redisClient *redis.Client, key string, limit int, period time.Duration) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if limit < 1 {
		panic("rate limit must be at least 1")
	}
	if period < time.Millisecond {
		panic("rate limit period must be at least 1ms")
	}
	if key == "" {
		key = RedisKeyDispatches
	}
	return &RedisStore{
		redis:  redisClient,
		key:    key,
		limit:  limit,
		period: period,
	}
}

// Reserve implements Store.
func (s *RedisStore) Reserve(ctx context.Context, now time.Time) (time.Duration, error) {
	waitMs, err := reserveScript.Run(ctx, s.redis, []string{s.key},
		now.UnixMilli(),
		s.period.Milliseconds(),
		s.limit,
		uuid.NewString(),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("run reserve script: %w", err)
	}

	return time.Duration(waitMs) * time.Millisecond, nil
}

// Count returns the number of dispatches recorded in the window at now.
func (s *RedisStore) Count(ctx context.Context, now time.Time) (int, error) {
	lower := fmt.Sprintf("(%d", now.Add(-s.period).UnixMilli())
	n, err := s.redis.ZCount(ctx, s.key, lower, "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("count dispatches: %w", err)
	}
	return int(n), nil
}
