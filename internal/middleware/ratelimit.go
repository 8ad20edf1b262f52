package middleware

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	goredis "github.com/redis/go-redis/v9"

	"github.com/sanctions-web/sanctions-web/internal/telemetry"
)

// RateLimitConfig holds configuration for rate limiting
type RateLimitConfig struct {
	// RequestsPerMinute is the sustained refill rate
	RequestsPerMinute int
	// BurstSize is the bucket capacity
	BurstSize int
	// CleanupInterval is how often idle in-memory buckets are dropped
	CleanupInterval time.Duration
}

// DefaultRateLimitConfig returns the limits used when none are configured
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 120,
		BurstSize:         30,
		CleanupInterval:   5 * time.Minute,
	}
}

// Decision is the outcome of one rate limit check
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether a request identified by key may proceed
type Limiter interface {
	Take(ctx context.Context, key string) (Decision, error)
	Limit() int
	Backend() string
}

type bucket struct {
	tokens     float64
	lastUpdate time.Time
}

// RateLimiter is an in-process token bucket limiter. Each replica keeps its
// own buckets; use RedisLimiter to share limits between replicas.
type RateLimiter struct {
	config  RateLimitConfig
	entries map[string]*bucket
	mu      sync.Mutex
	stopCh  chan struct{}
	now     func() time.Time
}

// NewRateLimiter creates a limiter and starts its cleanup goroutine
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}
	rl := &RateLimiter{
		config:  config,
		entries: make(map[string]*bucket),
		stopCh:  make(chan struct{}),
		now:     time.Now,
	}
	go rl.cleanup()
	return rl
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			now := rl.now()
			for key, b := range rl.entries {
				if now.Sub(b.lastUpdate) > 10*time.Minute {
					delete(rl.entries, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

// Stop stops the cleanup goroutine
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

func (rl *RateLimiter) perSecond() float64 {
	return float64(rl.config.RequestsPerMinute) / 60.0
}

// Take consumes one token for key
func (rl *RateLimiter) Take(_ context.Context, key string) (Decision, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.entries[key]
	if !ok {
		b = &bucket{tokens: float64(rl.config.BurstSize), lastUpdate: now}
		rl.entries[key] = b
	} else {
		elapsed := now.Sub(b.lastUpdate).Seconds()
		b.tokens = math.Min(float64(rl.config.BurstSize), b.tokens+elapsed*rl.perSecond())
		b.lastUpdate = now
	}

	if b.tokens >= 1 {
		b.tokens--
		return Decision{Allowed: true, Remaining: int(b.tokens)}, nil
	}

	wait := time.Duration((1 - b.tokens) / rl.perSecond() * float64(time.Second))
	return Decision{Allowed: false, Remaining: 0, RetryAfter: wait}, nil
}

// Limit returns the configured requests per minute
func (rl *RateLimiter) Limit() int { return rl.config.RequestsPerMinute }

// Backend names the limiter in metrics
func (rl *RateLimiter) Backend() string { return "memory" }

// RedisLimiter applies the GCRA algorithm in Redis so every replica shares
// the same per-client budget.
type RedisLimiter struct {
	limiter *redis_rate.Limiter
	limit   redis_rate.Limit
}

// NewRedisLimiter creates a limiter backed by rdb
func NewRedisLimiter(rdb *goredis.Client, config RateLimitConfig) *RedisLimiter {
	return &RedisLimiter{
		limiter: redis_rate.NewLimiter(rdb),
		limit: redis_rate.Limit{
			Rate:   config.RequestsPerMinute,
			Burst:  config.BurstSize,
			Period: time.Minute,
		},
	}
}

// Take consumes one request for key
func (rl *RedisLimiter) Take(ctx context.Context, key string) (Decision, error) {
	res, err := rl.limiter.Allow(ctx, "ratelimit:"+key, rl.limit)
	if err != nil {
		return Decision{}, err
	}
	return Decision{
		Allowed:    res.Allowed > 0,
		Remaining:  res.Remaining,
		RetryAfter: res.RetryAfter,
	}, nil
}

// Limit returns the configured requests per minute
func (rl *RedisLimiter) Limit() int { return rl.limit.Rate }

// Backend names the limiter in metrics
func (rl *RedisLimiter) Backend() string { return "redis" }

// RateLimitMiddleware rejects clients that exceed the limiter's budget with
// 429 Too Many Requests. When the limiter itself fails (for example Redis is
// unreachable) the request is let through and the failure logged.
func RateLimitMiddleware(limiter Limiter) gin.HandlerFunc {
	limit := strconv.Itoa(limiter.Limit())
	backend := limiter.Backend()

	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()

		d, err := limiter.Take(c.Request.Context(), key)
		if err != nil {
			slog.Warn("rate limiter unavailable, allowing request",
				"backend", backend, "error", err, "request_id", GetRequestID(c))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", limit)
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))

		if !d.Allowed {
			retry := int(math.Ceil(d.RetryAfter.Seconds()))
			if retry < 1 {
				retry = 1
			}
			telemetry.RateLimitRejectedTotal.WithLabelValues(backend).Inc()
			c.Header("Retry-After", strconv.Itoa(retry))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": retry,
			})
			return
		}

		c.Next()
	}
}
