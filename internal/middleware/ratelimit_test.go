package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/sanctions-web/sanctions-web/internal/telemetry"
)

// fakeClock lets tests move the limiter's notion of time
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func newTestLimiter(t *testing.T, perMinute, burst int) (*RateLimiter, *fakeClock) {
	t.Helper()
	rl := NewRateLimiter(RateLimitConfig{RequestsPerMinute: perMinute, BurstSize: burst, CleanupInterval: time.Hour})
	t.Cleanup(rl.Stop)
	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	rl.now = clock.Now
	return rl, clock
}

func TestDefaultRateLimitConfig(t *testing.T) {
	cfg := DefaultRateLimitConfig()
	if cfg.RequestsPerMinute != 120 || cfg.BurstSize != 30 {
		t.Errorf("defaults = %d/min burst %d, want 120/min burst 30", cfg.RequestsPerMinute, cfg.BurstSize)
	}
	if cfg.CleanupInterval != 5*time.Minute {
		t.Errorf("CleanupInterval = %v, want 5m", cfg.CleanupInterval)
	}
}

func TestRateLimiter_BurstThenReject(t *testing.T) {
	rl, _ := newTestLimiter(t, 60, 3)
	ctx := context.Background()

	for i := range 3 {
		d, err := rl.Take(ctx, "ip:1.2.3.4")
		if err != nil {
			t.Fatalf("Take() error = %v", err)
		}
		if !d.Allowed {
			t.Fatalf("request %d rejected within burst", i+1)
		}
		if d.Remaining != 2-i {
			t.Errorf("request %d: Remaining = %d, want %d", i+1, d.Remaining, 2-i)
		}
	}

	d, _ := rl.Take(ctx, "ip:1.2.3.4")
	if d.Allowed {
		t.Fatal("request beyond burst was allowed")
	}
	if d.RetryAfter <= 0 || d.RetryAfter > time.Second {
		t.Errorf("RetryAfter = %v, want within (0, 1s] at 1 req/s", d.RetryAfter)
	}

	// other clients keep their own bucket
	if d, _ := rl.Take(ctx, "ip:5.6.7.8"); !d.Allowed {
		t.Error("separate key was rejected")
	}
}

func TestRateLimiter_Refills(t *testing.T) {
	rl, clock := newTestLimiter(t, 60, 1)
	ctx := context.Background()

	if d, _ := rl.Take(ctx, "k"); !d.Allowed {
		t.Fatal("first request rejected")
	}
	if d, _ := rl.Take(ctx, "k"); d.Allowed {
		t.Fatal("second request allowed with empty bucket")
	}

	clock.Advance(1500 * time.Millisecond)
	if d, _ := rl.Take(ctx, "k"); !d.Allowed {
		t.Error("request rejected after refill")
	}
}

func TestRateLimiter_RefillCappedAtBurst(t *testing.T) {
	rl, clock := newTestLimiter(t, 600, 2)
	ctx := context.Background()

	rl.Take(ctx, "k")
	clock.Advance(time.Hour)

	d, _ := rl.Take(ctx, "k")
	if d.Remaining != 1 {
		t.Errorf("Remaining = %d, want 1 (bucket capped at burst 2)", d.Remaining)
	}
}

func newRateLimitRouter(l Limiter) *gin.Engine {
	r := gin.New()
	r.Use(RateLimitMiddleware(l))
	r.GET("/search/", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestRateLimitMiddleware(t *testing.T) {
	rl, _ := newTestLimiter(t, 60, 2)
	r := newRateLimitRouter(rl)
	rejected := prometheus.Labels{"backend": "memory"}
	before := collectCounter(telemetry.RateLimitRejectedTotal, rejected)

	serve := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/search/", nil)
		req.RemoteAddr = "203.0.113.9:5555"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	for i := range 2 {
		w := serve()
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, w.Code)
		}
		if got := w.Header().Get("X-RateLimit-Limit"); got != "60" {
			t.Errorf("X-RateLimit-Limit = %q, want 60", got)
		}
	}

	w := serve()
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	retry, err := strconv.Atoi(w.Header().Get("Retry-After"))
	if err != nil || retry < 1 {
		t.Errorf("Retry-After = %q, want a positive number of seconds", w.Header().Get("Retry-After"))
	}
	if got := w.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Errorf("X-RateLimit-Remaining = %q, want 0", got)
	}
	if got := collectCounter(telemetry.RateLimitRejectedTotal, rejected); got-before != 1 {
		t.Errorf("rate_limit_rejected_total delta = %.0f, want 1", got-before)
	}
}

type failingLimiter struct{}

func (failingLimiter) Take(context.Context, string) (Decision, error) {
	return Decision{}, errors.New("connection refused")
}
func (failingLimiter) Limit() int      { return 10 }
func (failingLimiter) Backend() string { return "redis" }

func TestRateLimitMiddleware_FailsOpen(t *testing.T) {
	r := newRateLimitRouter(failingLimiter{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/search/", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 when the limiter errors", w.Code)
	}
}

// TestRedisLimiter runs against a real server when SXW_TEST_REDIS_URL is set
func TestRedisLimiter(t *testing.T) {
	url := os.Getenv("SXW_TEST_REDIS_URL")
	if url == "" {
		t.Skip("SXW_TEST_REDIS_URL not set")
	}
	opts, err := goredis.ParseURL(url)
	if err != nil {
		t.Fatalf("ParseURL() error = %v", err)
	}
	rdb := goredis.NewClient(opts)
	t.Cleanup(func() { rdb.Close() })

	rl := NewRedisLimiter(rdb, RateLimitConfig{RequestsPerMinute: 60, BurstSize: 2})
	key := "test:" + strconv.FormatInt(time.Now().UnixNano(), 10)
	t.Cleanup(func() { rdb.Del(context.Background(), "ratelimit:"+key) })

	ctx := context.Background()
	for i := range 2 {
		d, err := rl.Take(ctx, key)
		if err != nil {
			t.Fatalf("Take() error = %v", err)
		}
		if !d.Allowed {
			t.Fatalf("request %d rejected within burst", i+1)
		}
	}
	d, err := rl.Take(ctx, key)
	if err != nil {
		t.Fatalf("Take() error = %v", err)
	}
	if d.Allowed {
		t.Error("request beyond burst was allowed")
	}
	if rl.Backend() != "redis" || rl.Limit() != 60 {
		t.Errorf("Backend()/Limit() = %s/%d", rl.Backend(), rl.Limit())
	}
}
