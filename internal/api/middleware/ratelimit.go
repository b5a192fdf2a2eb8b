package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"customer-service/internal/config"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"

	rateLimitKeyPrefix = "customer-service:ratelimit:"
)

// Limiter decides whether the client identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RedisCounter is the subset of *redis.Client the fixed window needs.
type RedisCounter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

type RateLimiterMiddleware struct {
	limiter Limiter
	cfg     config.RateLimitConfig
	logger  *slog.Logger
}

// NewRateLimiterMiddleware picks the backend named in cfg. A redis backend
// without a client falls back to the in-process limiter.
func NewRateLimiterMiddleware(cfg config.RateLimitConfig, counter RedisCounter, logger *slog.Logger) *RateLimiterMiddleware {
	logger = logger.With("component", "RateLimiter")

	rl := &RateLimiterMiddleware{cfg: cfg, logger: logger}
	if !cfg.Enabled {
		logger.Info("Rate limiting is disabled via configuration.")
		return rl
	}

	switch {
	case cfg.Backend == BackendRedis && counter != nil:
		rl.limiter = NewRedisLimiter(counter, int64(cfg.RPS), cfg.Window)
		logger.Info("Rate limiter configured", "backend", BackendRedis, "limit", cfg.RPS, "window", cfg.Window)
	default:
		if cfg.Backend == BackendRedis {
			logger.Warn("Redis rate limiting requested but no Redis client available; using memory backend")
		}
		rl.limiter = NewMemoryLimiter(cfg.RPS, cfg.Burst)
		logger.Info("Rate limiter configured", "backend", BackendMemory, "rps", cfg.RPS, "burst", cfg.Burst)
	}
	return rl
}

func (rl *RateLimiterMiddleware) IsEnabled() bool {
	return rl.cfg.Enabled && rl.limiter != nil
}

func (rl *RateLimiterMiddleware) extractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ip := strings.TrimSpace(strings.Split(xff, ",")[0])
		if net.ParseIP(ip) != nil {
			return ip
		}
	}

	if xRealIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); xRealIP != "" && net.ParseIP(xRealIP) != nil {
		return xRealIP
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func (rl *RateLimiterMiddleware) Middleware(next http.Handler) http.Handler {
	if !rl.IsEnabled() {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := rl.extractIP(r)

		allowed, err := rl.limiter.Allow(r.Context(), ip)
		if err != nil {
			// Fail open.
			rl.logger.ErrorContext(r.Context(), "Rate limiter check failed", "error", err, "ip", ip)
			next.ServeHTTP(w, r)
			return
		}

		if !allowed {
			rl.logger.WarnContext(r.Context(), "Rate limit exceeded", "ip", ip)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"error": map[string]string{
					"message": "Rate limit exceeded",
				},
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// MemoryLimiter keeps one token bucket per client in process memory.
type MemoryLimiter struct {
	limiters sync.Map
	rps      rate.Limit
	burst    int
}

func NewMemoryLimiter(rps float64, burst int) *MemoryLimiter {
	ml := &MemoryLimiter{rps: rate.Limit(rps), burst: burst}
	go ml.cleanupLimiters(10 * time.Minute)
	return ml
}

func (ml *MemoryLimiter) getLimiter(key string) *rate.Limiter {
	limiter, _ := ml.limiters.LoadOrStore(key, rate.NewLimiter(ml.rps, ml.burst))
	return limiter.(*rate.Limiter)
}

func (ml *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	return ml.getLimiter(key).Allow(), nil
}

// cleanupLimiters drops buckets that have refilled completely.
func (ml *MemoryLimiter) cleanupLimiters(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for range ticker.C {
		ml.sweep(time.Now())
	}
}

func (ml *MemoryLimiter) sweep(now time.Time) {
	ml.limiters.Range(func(key, value interface{}) bool {
		limiter := value.(*rate.Limiter)
		if limiter.TokensAt(now) >= float64(ml.burst) {
			ml.limiters.Delete(key)
		}
		return true
	})
}

// RedisLimiter is a fixed window counter shared by every replica.
type RedisLimiter struct {
	counter RedisCounter
	limit   int64
	window  time.Duration
}

func NewRedisLimiter(counter RedisCounter, limit int64, window time.Duration) *RedisLimiter {
	if window <= 0 {
		window = time.Second
	}
	if limit <= 0 {
		limit = 1
	}
	return &RedisLimiter{counter: counter, limit: limit, window: window}
}

func (rl *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := rateLimitKeyPrefix + key

	count, err := rl.counter.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("incrementing rate limit counter: %w", err)
	}
	if count == 1 {
		if err := rl.counter.Expire(ctx, redisKey, rl.window).Err(); err != nil {
			return false, fmt.Errorf("setting rate limit window: %w", err)
		}
	}
	return count <= rl.limit, nil
}
