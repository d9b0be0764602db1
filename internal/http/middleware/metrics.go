// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file wires Prometheus instrumentation for HTTP traffic. Labels stay
// on method, registered route, and status so cardinality is bounded no
// matter what record ids or prompts appear in URLs.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	reqCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	// Status is left off the latency histogram to keep its series count down.
	reqLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	reqInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "Current number of in-flight HTTP requests.",
		},
	)

	// Buckets span a one-line JSON error up to a multi-megabyte record export.
	respBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_response_size_bytes",
			Help: "Size of HTTP responses in bytes.",
			Buckets: []float64{
				200, 500, 1 << 10, 2 << 10, 5 << 10,
				10 << 10, 25 << 10, 50 << 10,
				100 << 10, 250 << 10, 500 << 10,
				1 << 20, 2 << 20, 5 << 20,
			},
		},
		[]string{"method", "path"},
	)
)

func init() {
	prometheus.MustRegister(reqCount, reqLatency, reqInflight, respBytes)
}

// Metrics returns a Gin middleware that records request counts, latencies,
// in-flight concurrency, and response sizes.
//
// The path label uses c.FullPath() so /records/42/like and /records/7/like
// collapse into one series; unmatched routes fall back to the raw URL path.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqInflight.Inc()
		defer reqInflight.Dec()

		c.Next()

		dur := time.Since(start).Seconds()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		reqCount.WithLabelValues(method, path, status).Inc()
		reqLatency.WithLabelValues(method, path).Observe(dur)
		// Size is -1 on hijacked or bodyless responses.
		if size := c.Writer.Size(); size >= 0 {
			respBytes.WithLabelValues(method, path).Observe(float64(size))
		}
	}
}
