package ratelimit

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/go-notes-api/internal/config"
)

func newTestLimiter(t *testing.T, requests int, window time.Duration) (*Limiter, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewLimiter(client, config.RateLimitConfig{Requests: requests, Window: window}), mr
}

func TestLimiter_AllowsUpToLimit(t *testing.T) {
	limiter, _ := newTestLimiter(t, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, "login", "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i+1)
	}

	ok, err := limiter.Allow(ctx, "login", "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLimiter_KeysArePerPurposeAndClient(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1, time.Minute)
	ctx := context.Background()

	ok, err := limiter.Allow(ctx, "login", "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = limiter.Allow(ctx, "register", "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = limiter.Allow(ctx, "login", "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = limiter.Allow(ctx, "login", "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLimiter_WindowExpires(t *testing.T) {
	limiter, mr := newTestLimiter(t, 1, time.Minute)
	ctx := context.Background()

	_, err := limiter.Allow(ctx, "login", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, mr.TTL("ratelimit:login:10.0.0.1"))

	mr.FastForward(time.Minute + time.Second)

	ok, err := limiter.Allow(ctx, "login", "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok)
}

// failOnceExpire makes the first EXPIRE sent through the client fail.
type failOnceExpire struct {
	failed atomic.Bool
}

func (h *failOnceExpire) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h *failOnceExpire) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if cmd.Name() == "expire" && h.failed.CompareAndSwap(false, true) {
			err := errors.New("transient")
			cmd.SetErr(err)
			return err
		}
		return next(ctx, cmd)
	}
}

func (h *failOnceExpire) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestLimiter_RecoversFromFailedExpire(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	client.AddHook(&failOnceExpire{})

	limiter := NewLimiter(client, config.RateLimitConfig{Requests: 2, Window: time.Minute})
	ctx := context.Background()
	const key = "ratelimit:login:10.0.0.1"

	_, err := limiter.Allow(ctx, "login", "10.0.0.1")
	require.Error(t, err)
	assert.Zero(t, mr.TTL(key), "counter has no window yet")

	ok, err := limiter.Allow(ctx, "login", "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, time.Minute, mr.TTL(key))

	ok, err = limiter.Allow(ctx, "login", "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(time.Minute + time.Second)

	ok, err = limiter.Allow(ctx, "login", "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok, "window must expire after a failed EXPIRE")
}

func TestLimiter_WindowNotExtendedByLaterHits(t *testing.T) {
	limiter, mr := newTestLimiter(t, 5, time.Minute)
	ctx := context.Background()

	_, err := limiter.Allow(ctx, "register", "10.0.0.1")
	require.NoError(t, err)

	mr.FastForward(30 * time.Second)
	_, err = limiter.Allow(ctx, "register", "10.0.0.1")
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, mr.TTL("ratelimit:register:10.0.0.1"))
}

func TestLimiter_RedisDown(t *testing.T) {
	limiter, mr := newTestLimiter(t, 1, time.Minute)
	mr.Close()

	_, err := limiter.Allow(context.Background(), "login", "10.0.0.1")
	assert.Error(t, err)
}

func TestNoop(t *testing.T) {
	ok, err := Noop{}.Allow(context.Background(), "login", "anyone")
	require.NoError(t, err)
	assert.True(t, ok)
}
