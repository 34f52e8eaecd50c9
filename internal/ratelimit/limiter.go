package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/redmonkez12/go-notes-api/internal/config"
)

const keyPrefix = "ratelimit"

// Limiter enforces a fixed-window request budget per purpose and key
// (usually a client IP) using Redis counters.
type Limiter struct {
	client   *redis.Client
	requests int
	window   time.Duration
}

func NewLimiter(client *redis.Client, cfg config.RateLimitConfig) *Limiter {
	return &Limiter{
		client:   client,
		requests: cfg.Requests,
		window:   cfg.Window,
	}
}

// Allow records one request and reports whether it fits in the current window.
// A counter left without a TTL, e.g. by a failed EXPIRE, gets one on the next call.
func (l *Limiter) Allow(ctx context.Context, purpose, key string) (bool, error) {
	redisKey := fmt.Sprintf("%s:%s:%s", keyPrefix, purpose, key)

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		ttl = pipe.TTL(ctx, redisKey)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	// Negative TTL means the key has no expiry: the first hit opens the window.
	if ttl.Val() < 0 {
		if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil {
			return false, fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}

	return incr.Val() <= int64(l.requests), nil
}

// Noop allows every request. Used when Redis is disabled.
type Noop struct{}

func (Noop) Allow(context.Context, string, string) (bool, error) {
	return true, nil
}
