// Package middleware provides the Gin middleware shared by every route of the
// site: request IDs, Prometheus metrics, security headers and rate limits.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sanctions-web/sanctions-web/internal/telemetry"
)

// NoRoutePath labels requests that did not match a registered route, so that
// arbitrary 404 URLs do not create new metric series.
const NoRoutePath = "<no-route>"

// MetricsMiddleware records http_requests_total and
// http_request_duration_seconds for every request. The path label is the
// matched route template (for example /datasets/:name/), not the raw URL.
//
// Register it after gin.Recovery() so the status written by the recovery
// handler is observed.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = NoRoutePath
		}
		method := c.Request.Method

		telemetry.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
