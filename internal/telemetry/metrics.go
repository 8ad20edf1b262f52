// Package telemetry provides logging setup and Prometheus metrics for the site.
//
// All metrics are registered against the default Prometheus registry and are
// exposed on the side-channel HTTP server started by main.go:
//
//	GET http://<host>:<SXW_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090. The endpoint is not served by the gin router.
//
// # Metric Groups
//
//   - HTTP request counters and latency histograms (labelled by route template)
//   - Upstream API request counters and latency histograms (labelled by endpoint)
//   - Datasets loaded from the index snapshot, by dataset type
//   - Requests rejected by the rate limiter
//
// # Label Cardinality
//
// HTTP metrics use c.FullPath() (for example /datasets/:name/) rather than the
// raw URL, and upstream metrics use a fixed endpoint name such as "entities" or
// "search", so that entity IDs and query strings never become label values.
package telemetry

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics, labelled by method, route template, and status code.
//
// Example PromQL queries:
//   - Request rate (req/s, 5 m window):  rate(http_requests_total[5m])
//   - p99 latency per route:             histogram_quantile(0.99, sum by (path, le) (rate(http_request_duration_seconds_bucket[5m])))
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Upstream API metrics, recorded by the upstream client for every outbound
// request. The status label is the status class ("2xx", "4xx", "5xx") or
// "error" when no response was received.
//
// Example PromQL queries:
//   - Upstream error ratio:  sum(rate(upstream_requests_total{status=~"5xx|error"}[5m])) / sum(rate(upstream_requests_total[5m]))
//   - Search p95 latency:    histogram_quantile(0.95, sum by (le) (rate(upstream_request_duration_seconds_bucket{endpoint="search"}[5m])))
var (
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_requests_total",
			Help: "Total number of requests sent to the upstream data API, by endpoint and status class.",
		},
		[]string{"endpoint", "status"},
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_request_duration_seconds",
			Help:    "Histogram of upstream data API request latencies, by endpoint.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint"},
	)
)

// IndexDatasets reports how many datasets of each type the loaded index
// snapshot holds. It is set once at startup after the index is decoded.
var IndexDatasets = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "index_datasets",
		Help: "Number of datasets in the loaded index snapshot, by dataset type.",
	},
	[]string{"type"},
)

// RateLimitRejectedTotal counts requests answered with 429 by the rate limiter.
var RateLimitRejectedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rate_limit_rejected_total",
		Help: "Total number of requests rejected by the rate limiter, by limiter backend.",
	},
	[]string{"backend"},
)

// StatusClass collapses an HTTP status code into the label used by the
// upstream metrics. A zero code means the request never got a response.
func StatusClass(code int) string {
	if code <= 0 {
		return "error"
	}
	return strconv.Itoa(code/100) + "xx"
}

// RecordIndexDatasets replaces the per-type dataset gauge with counts.
func RecordIndexDatasets(counts map[string]int) {
	IndexDatasets.Reset()
	for typ, n := range counts {
		IndexDatasets.WithLabelValues(typ).Set(float64(n))
	}
}
