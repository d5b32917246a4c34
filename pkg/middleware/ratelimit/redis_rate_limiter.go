package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tutorhub/tutorhub/pkg/config"
	"github.com/tutorhub/tutorhub/pkg/observability/logger"
	"github.com/tutorhub/tutorhub/pkg/observability/tracing"
	"github.com/tutorhub/tutorhub/pkg/resilience"
)

type redisClient interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Close() error
}

// RedisRateLimiter counts requests per key in fixed windows shared by every instance.
type RedisRateLimiter struct {
	client    redisClient
	limit     int64
	window    time.Duration
	opTimeout time.Duration
	prefix    string
	breaker   *resilience.Breaker
	log       logger.Logger
}

// NewRedisRateLimiter connects to cfg.URL and allows requestsPerSecond+burst
// requests per key and window.
func NewRedisRateLimiter(cfg config.RateLimitRedisConfig, requestsPerSecond, burst int, log logger.Logger) (*RedisRateLimiter, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis URL is required for distributed rate limiting")
	}
	if requestsPerSecond <= 0 {
		return nil, errors.New("requests_per_second must be greater than zero")
	}
	if burst < 0 {
		return nil, errors.New("burst cannot be negative")
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		opts.PoolSize = cfg.MaxConns
	}
	timeout := cfg.OperationTimeout
	if timeout <= 0 {
		timeout = time.Second
	}
	opts.ReadTimeout = timeout
	opts.WriteTimeout = timeout

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis rate limiter ping failed: %w", err)
	}

	log.Info("redis rate limiter connected", "limit", requestsPerSecond, "burst", burst, "window", cfg.Window, "prefix", cfg.Prefix)
	limiter := newRedisRateLimiterFromClient(client, cfg.Window, int64(requestsPerSecond+burst), timeout, cfg.Prefix, log)
	limiter.breaker = newBreaker(cfg, log)
	return limiter, nil
}

func newBreaker(cfg config.RateLimitRedisConfig, log logger.Logger) *resilience.Breaker {
	cooldown := cfg.BreakerCooldown
	if cooldown <= 0 {
		cooldown = 10 * time.Second
	}
	return resilience.NewBreaker(cfg.BreakerFailures, cooldown, resilience.OnStateChange(func(from, to resilience.State) {
		log.Warn("redis rate limiter breaker changed state", "from", from.String(), "to", to.String())
	}))
}

func newRedisRateLimiterFromClient(client redisClient, window time.Duration, limit int64, timeout time.Duration, prefix string, log logger.Logger) *RedisRateLimiter {
	if window <= 0 {
		window = time.Second
	}
	if prefix == "" {
		prefix = "tutorhub:ratelimit"
	}
	return &RedisRateLimiter{
		client:    client,
		limit:     limit,
		window:    window,
		opTimeout: timeout,
		prefix:    prefix,
		breaker:   newBreaker(config.RateLimitRedisConfig{}, log),
		log:       log,
	}
}

// Allow increments the key counter, setting its expiry on the first hit of a
// window. Redis failures let the request through, and once the breaker opens
// requests pass without contacting Redis until the cooldown ends.
func (r *RedisRateLimiter) Allow(ctx context.Context, key string) bool {
	allowed := true
	err := r.breaker.Execute(func() error {
		var err error
		allowed, err = r.allow(ctx, key)
		return err
	})
	if errors.Is(err, resilience.ErrOpen) {
		return true
	}
	return allowed
}

func (r *RedisRateLimiter) allow(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	redisKey := r.prefix + ":" + key
	ctx, span := tracing.StartCacheSpan(ctx, tracing.SpanOperationCacheIncr,
		tracing.WithCacheSystem("redis"),
		tracing.WithCacheKey(redisKey),
	)
	defer span.End()

	count, err := r.client.Incr(ctx, redisKey).Result()
	if err != nil {
		tracing.RecordError(span, err)
		r.log.WithContext(ctx).Error("redis rate limiter increment failed", "error", err)
		return true, err
	}
	if count == 1 {
		if err := r.client.Expire(ctx, redisKey, r.window).Err(); err != nil {
			r.log.WithContext(ctx).Warn("redis rate limiter failed to set TTL", "error", err)
		}
	}
	tracing.RecordSuccess(span)
	return count <= r.limit, nil
}

// Close shuts down the Redis client.
func (r *RedisRateLimiter) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
