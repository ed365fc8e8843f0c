// Package metrics exposes Prometheus counters for evaluation, routing and
// publishing.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	evaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postgate_evaluations_total",
			Help: "Availability evaluations by content type.",
		},
		[]string{"content_type"},
	)

	targetsRoutedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postgate_targets_routed_total",
			Help: "Post targets routed by publish orchestration.",
		},
		[]string{"platform", "status"},
	)

	publishAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postgate_publish_attempts_total",
			Help: "Publish attempts by platform and outcome.",
		},
		[]string{"platform", "outcome"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postgate_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "postgate_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	registerOnce sync.Once
)

// Register adds the collectors to the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(evaluationsTotal, targetsRoutedTotal, publishAttemptsTotal, httpRequestsTotal, httpRequestDuration)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveEvaluation counts one availability evaluation.
func ObserveEvaluation(contentType string) {
	evaluationsTotal.WithLabelValues(contentType).Inc()
}

// ObserveRouted counts a target marked queued or rejected.
func ObserveRouted(platform, status string) {
	targetsRoutedTotal.WithLabelValues(platform, status).Inc()
}

// ObservePublish counts one publish attempt outcome.
func ObservePublish(platform, outcome string) {
	publishAttemptsTotal.WithLabelValues(platform, outcome).Inc()
}

// Instrument records request counts and latency per matched route.
func Instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}
