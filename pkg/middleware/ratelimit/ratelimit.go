// Package ratelimit throttles requests per caller with a local token bucket or
// a Redis counter shared between instances.
package ratelimit

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/tutorhub/tutorhub/pkg/auth"
	"github.com/tutorhub/tutorhub/pkg/config"
	"github.com/tutorhub/tutorhub/pkg/controller"
	"github.com/tutorhub/tutorhub/pkg/observability/logger"
	"github.com/tutorhub/tutorhub/pkg/server/router"
)

// RateLimiter decides whether the caller identified by key may proceed.
// Implementations must be safe for concurrent use.
type RateLimiter interface {
	Allow(ctx context.Context, key string) bool
}

// TokenBucketLimiter keeps one token bucket per key in memory.
type TokenBucketLimiter struct {
	limiters sync.Map // key -> *rate.Limiter
	rate     rate.Limit
	burst    int
}

// NewTokenBucketLimiter allows requestsPerSecond on average with bursts up to burst.
func NewTokenBucketLimiter(requestsPerSecond, burst int) *TokenBucketLimiter {
	return &TokenBucketLimiter{
		rate:  rate.Limit(requestsPerSecond),
		burst: burst,
	}
}

func (l *TokenBucketLimiter) Allow(_ context.Context, key string) bool {
	limiter, _ := l.limiters.LoadOrStore(key, rate.NewLimiter(l.rate, l.burst))
	return limiter.(*rate.Limiter).Allow()
}

// New builds the limiter selected by cfg.Type ("local" or "redis"). The returned
// close function releases the Redis client and is never nil.
func New(cfg config.RateLimitConfig, log logger.Logger) (RateLimiter, func() error, error) {
	switch strings.ToLower(cfg.Type) {
	case "", "local":
		return NewTokenBucketLimiter(cfg.RequestsPerSecond, cfg.Burst), func() error { return nil }, nil
	case "redis":
		limiter, err := NewRedisRateLimiter(cfg.Redis, cfg.RequestsPerSecond, cfg.Burst, log)
		if err != nil {
			return nil, nil, err
		}
		return limiter, limiter.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported rate limit type %q", cfg.Type)
	}
}

// KeyFunc extracts the throttling key of a request.
type KeyFunc func(router.Context) string

// RateLimit answers 429 with Retry-After when limiter rejects the request key.
// A nil keyFunc uses ByIdentityOrIP.
func RateLimit(limiter RateLimiter, keyFunc KeyFunc) router.MiddlewareFunc {
	if keyFunc == nil {
		keyFunc = ByIdentityOrIP
	}
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			if !limiter.Allow(c.Request().Context(), keyFunc(c)) {
				c.Response().Header().Set("Retry-After", "1")
				return controller.Error(c, controller.NewTooManyRequestsError("rate limit exceeded"))
			}
			return next(c)
		}
	}
}

// ByIdentityOrIP keys authenticated callers by user id and everyone else by client IP.
func ByIdentityOrIP(c router.Context) string {
	if id, ok := auth.IdentityFromContext(c.Request().Context()); ok {
		return "user:" + strconv.FormatInt(id.UserID, 10)
	}
	return "ip:" + ClientIP(c.Request())
}

// ClientIP returns the first X-Forwarded-For hop, X-Real-IP, or the remote address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
