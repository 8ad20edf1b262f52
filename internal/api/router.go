// Package api assembles the HTTP router: shared middleware, the system
// endpoints used by orchestration (/health, /ready, /version) and the site
// pages mounted by the web package.
//
// Pages that call the upstream API are rate limited per client IP; pages
// answered from the in-memory index are not.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sanctions-web/sanctions-web/internal/config"
	"github.com/sanctions-web/sanctions-web/internal/index"
	"github.com/sanctions-web/sanctions-web/internal/middleware"
	"github.com/sanctions-web/sanctions-web/internal/redis"
	"github.com/sanctions-web/sanctions-web/internal/storage"
	"github.com/sanctions-web/sanctions-web/internal/web"
)

// BuildInfo identifies the running binary
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}

// Dependencies are the components the router serves from. Redis is nil when
// not configured.
type Dependencies struct {
	Index   *index.Index
	Pages   *web.Handler
	Storage storage.Storage
	Redis   *redis.Client
	Build   BuildInfo
}

// BackgroundServices holds resources with goroutines or connections that
// must be released on shutdown, after the HTTP server has drained.
type BackgroundServices struct {
	rateLimiter *middleware.RateLimiter
	redis       *redis.Client
}

// Shutdown stops background goroutines and closes connections
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.rateLimiter != nil {
		bg.rateLimiter.Stop()
	}
	if bg.redis != nil {
		if err := bg.redis.Close(); err != nil {
			slog.Warn("failed to close redis connection", "error", err)
		}
	}
	slog.Info("all background services stopped")
}

// newLimiter picks the rate limit backend. A redis backend without a
// connection falls back to the in-process limiter.
func newLimiter(cfg *config.Config, rdb *redis.Client, bg *BackgroundServices) middleware.Limiter {
	rl := cfg.Security.RateLimiting
	limits := middleware.DefaultRateLimitConfig()
	if rl.RequestsPerMinute > 0 {
		limits.RequestsPerMinute = rl.RequestsPerMinute
	}
	if rl.Burst > 0 {
		limits.BurstSize = rl.Burst
	}

	if rl.Backend == "redis" {
		if rdb != nil {
			return middleware.NewRedisLimiter(rdb.Client, limits)
		}
		slog.Warn("redis rate limiting configured without a redis connection, using memory backend")
	}
	memory := middleware.NewRateLimiter(limits)
	bg.rateLimiter = memory
	return memory
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, deps Dependencies) (*gin.Engine, *BackgroundServices) {
	router := gin.New()
	bg := &BackgroundServices{redis: deps.Redis}

	security := middleware.DefaultSecurityHeadersConfig()
	security.EnableHSTS = cfg.Security.TLS.Enabled

	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(CORSMiddleware(cfg))
	router.Use(middleware.SecurityHeadersMiddleware(security))

	router.GET("/health", healthCheckHandler())
	router.GET("/ready", readinessHandler(cfg, deps))
	router.GET("/version", versionHandler(deps))

	var upstreamMW []gin.HandlerFunc
	if cfg.Security.RateLimiting.Enabled {
		limiter := newLimiter(cfg, deps.Redis, bg)
		upstreamMW = append(upstreamMW, middleware.RateLimitMiddleware(limiter))
		slog.Info("rate limiting enabled",
			"backend", limiter.Backend(),
			"requests_per_minute", limiter.Limit())
	}

	if deps.Pages != nil {
		deps.Pages.Register(router, upstreamMW...)
	}

	return router, bg
}

// healthCheckHandler is the liveness probe. The process is healthy as long
// as it can answer.
func healthCheckHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// readinessHandler reports whether the service can serve pages: the index
// is loaded, the snapshot is still reachable in storage, and Redis answers
// when it is configured. The upstream API is not probed.
func readinessHandler(cfg *config.Config, deps Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}
		notReady := func(check, msg string) {
			checks[check] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  msg,
			})
		}

		if deps.Index == nil {
			notReady("index", "index not loaded")
			return
		}
		checks["index"] = "healthy"

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		if deps.Storage != nil {
			ok, err := deps.Storage.Exists(ctx, cfg.Index.Path)
			if err != nil || !ok {
				notReady("storage", "storage backend not ready")
				return
			}
			checks["storage"] = "healthy"
		}

		if deps.Redis != nil {
			if err := deps.Redis.Health(ctx); err != nil {
				notReady("redis", "redis not ready")
				return
			}
			checks["redis"] = "healthy"
		}

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// versionHandler reports the binary build and the loaded index snapshot
func versionHandler(deps Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{
			"version":    deps.Build.Version,
			"commit":     deps.Build.Commit,
			"build_date": deps.Build.BuildDate,
		}
		if idx := deps.Index; idx != nil {
			body["index"] = gin.H{
				"app":      idx.App(),
				"version":  idx.Version(),
				"checksum": idx.Checksum(),
				"datasets": len(idx.Datasets()),
			}
		}
		c.JSON(http.StatusOK, body)
	}
}

// LoggerMiddleware emits one structured record per request. Server errors
// log at error level, client errors at warn.
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		}

		slog.LogAttrs(
			c.Request.Context(),
			level,
			"http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.Int("status", status),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", time.Since(start)),
			slog.String("ip", c.ClientIP()),
			slog.String("request_id", middleware.GetRequestID(c)),
			slog.String("user_agent", c.Request.UserAgent()),
		)
	}
}

// CORSMiddleware allows the configured origins to read the JSON exports
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		allowed := false
		wildcard := false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			if allowedOrigin == "*" {
				allowed, wildcard = true, true
				break
			}
			if allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if wildcard || origin == "" {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
			}
			c.Header("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, If-None-Match")
			c.Header("Access-Control-Expose-Headers", "ETag, X-Request-ID")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
