package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tutorhub/tutorhub/pkg/config"
	"github.com/tutorhub/tutorhub/pkg/observability/logger"
	"github.com/tutorhub/tutorhub/pkg/resilience"
)

type fakeRedisClient struct {
	mu      sync.Mutex
	data    map[string]int64
	expires map[string]time.Time
	incrErr error
	calls   int
	closed  bool
}

func newFakeRedisClient() *fakeRedisClient {
	return &fakeRedisClient{data: map[string]int64{}, expires: map[string]time.Time{}}
}

func (c *fakeRedisClient) Incr(_ context.Context, key string) *redis.IntCmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.incrErr != nil {
		return redis.NewIntResult(0, c.incrErr)
	}
	if exp, ok := c.expires[key]; ok && time.Now().After(exp) {
		delete(c.data, key)
		delete(c.expires, key)
	}
	c.data[key]++
	return redis.NewIntResult(c.data[key], nil)
}

func (c *fakeRedisClient) Expire(_ context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expires[key] = time.Now().Add(expiration)
	return redis.NewBoolResult(true, nil)
}

func (c *fakeRedisClient) Close() error {
	c.closed = true
	return nil
}

func TestRedisRateLimiter_AllowsWithinLimitAndResetsWindow(t *testing.T) {
	client := newFakeRedisClient()
	limiter := newRedisRateLimiterFromClient(client, 200*time.Millisecond, 5, 100*time.Millisecond, "rl-test", logger.Nop())
	ctx := context.Background()

	for i := range 5 {
		if !limiter.Allow(ctx, "user:42") {
			t.Fatalf("request %d rejected", i+1)
		}
	}
	if limiter.Allow(ctx, "user:42") {
		t.Fatal("request beyond limit allowed")
	}
	if !limiter.Allow(ctx, "user:43") {
		t.Fatal("keys are not isolated")
	}
	if _, ok := client.expires["rl-test:user:42"]; !ok {
		t.Fatal("window expiry not set on prefixed key")
	}

	time.Sleep(250 * time.Millisecond)
	if !limiter.Allow(ctx, "user:42") {
		t.Fatal("window did not reset")
	}

	if err := limiter.Close(); err != nil || !client.closed {
		t.Fatalf("Close() = %v closed=%v", err, client.closed)
	}
}

func TestRedisRateLimiter_FailsOpen(t *testing.T) {
	client := newFakeRedisClient()
	client.incrErr = errors.New("connection refused")
	limiter := newRedisRateLimiterFromClient(client, time.Second, 1, 50*time.Millisecond, "", logger.Nop())

	for range 3 {
		if !limiter.Allow(context.Background(), "ip:10.0.0.1") {
			t.Fatal("redis failure should not block traffic")
		}
	}
}

func TestRedisRateLimiter_BreakerSkipsRedis(t *testing.T) {
	client := newFakeRedisClient()
	client.incrErr = errors.New("connection refused")
	limiter := newRedisRateLimiterFromClient(client, time.Second, 1, 50*time.Millisecond, "", logger.Nop())
	limiter.breaker = resilience.NewBreaker(2, time.Hour)

	for range 5 {
		if !limiter.Allow(context.Background(), "ip:10.0.0.1") {
			t.Fatal("open breaker should not block traffic")
		}
	}
	if client.calls != 2 {
		t.Fatalf("expected redis to be called until the breaker opened, got %d calls", client.calls)
	}
	if limiter.breaker.State() != resilience.StateOpen {
		t.Fatalf("expected open breaker, got %s", limiter.breaker.State())
	}
}

func TestNewRedisRateLimiter_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.RateLimitRedisConfig
		rps  int
	}{
		{"missing url", config.RateLimitRedisConfig{}, 10},
		{"zero rate", config.RateLimitRedisConfig{URL: "redis://localhost:6379/0"}, 0},
		{"bad url", config.RateLimitRedisConfig{URL: "http://nope"}, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRedisRateLimiter(tt.cfg, tt.rps, 0, logger.Nop()); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
