package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/mordenhost/whm2bunny/pkg/config"
	"github.com/mordenhost/whm2bunny/pkg/httputil"
	"github.com/mordenhost/whm2bunny/pkg/observability"
)

// RateLimiter counts requests per key in Redis using a fixed window.
type RateLimiter struct {
	redis  *redis.Client
	limit  int
	window time.Duration
	prefix string
}

// NewRateLimiter creates a Redis-backed fixed-window limiter from config.
func NewRateLimiter(redisClient *redis.Client, cfg config.RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		redis:  redisClient,
		limit:  cfg.RequestsPerWindow,
		window: cfg.WindowDuration,
		prefix: "whm2bunny:ratelimit",
	}
}

// Allow increments the counter for key and reports whether it is still
// under the limit. Redis failures return an error with allowed=true so the
// caller can fail open.
func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := rl.prefix + ":" + key

	pipe := rl.redis.Pipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, rl.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, fmt.Errorf("redis error: %w", err)
	}

	return incr.Val() <= int64(rl.limit), nil
}

// Remaining reports how many requests are left in the current window.
func (rl *RateLimiter) Remaining(ctx context.Context, key string) (int, error) {
	count, err := rl.redis.Get(ctx, rl.prefix+":"+key).Int()
	if err == redis.Nil {
		return rl.limit, nil
	} else if err != nil {
		return 0, err
	}

	remaining := rl.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// TTL reports the time until the window for key resets.
func (rl *RateLimiter) TTL(ctx context.Context, key string) (time.Duration, error) {
	return rl.redis.TTL(ctx, rl.prefix+":"+key).Result()
}

// Reset clears the counter for a key.
func (rl *RateLimiter) Reset(ctx context.Context, key string) error {
	return rl.redis.Del(ctx, rl.prefix+":"+key).Err()
}

// HealthCheck verifies Redis connectivity.
func (rl *RateLimiter) HealthCheck(ctx context.Context) error {
	return rl.redis.Ping(ctx).Err()
}

// Handler wraps an HTTP handler with per-client-IP rate limiting. logger
// and metrics may be nil.
func (rl *RateLimiter) Handler(logger *observability.Logger, metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := "ip:" + clientIP(r)

			allowed, err := rl.Allow(ctx, key)
			if err != nil {
				// Fail open: a hook delivery is worth more than the limit.
				if logger != nil {
					logger.WithError(err).Warn("rate limiter unavailable, allowing request")
				}
				next.ServeHTTP(w, r)
				return
			}

			if !allowed {
				if metrics != nil {
					metrics.RateLimitDropsTotal.Inc()
				}
				if logger != nil {
					logger.WithField("key", key).Warn("rate limit exceeded")
				}
				rl.writeLimitExceeded(ctx, w, key)
				return
			}

			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", rl.limit))
			if remaining, err := rl.Remaining(ctx, key); err == nil {
				w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
			}
			if ttl, err := rl.TTL(ctx, key); err == nil && ttl > 0 {
				w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Add(ttl).Unix()))
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) writeLimitExceeded(ctx context.Context, w http.ResponseWriter, key string) {
	retryAfter := rl.window.Seconds()
	if ttl, err := rl.TTL(ctx, key); err == nil && ttl > 0 {
		retryAfter = ttl.Seconds()
	}

	w.Header().Set("Retry-After", fmt.Sprintf("%.0f", retryAfter))
	w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", rl.limit))
	w.Header().Set("X-RateLimit-Remaining", "0")
	httputil.WriteTooManyRequests(w, "rate limit exceeded")
}

// clientIP prefers proxy headers since the daemon normally sits behind the
// hosting load balancer.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if idx := strings.IndexByte(forwarded, ','); idx >= 0 {
			return strings.TrimSpace(forwarded[:idx])
		}
		return forwarded
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
