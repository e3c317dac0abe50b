package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Upstream music API metrics.
var (
	UpstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Requests sent to the music search API",
		},
		[]string{"endpoint", "status"}, // status: ok, not_found, error, breaker_open
	)

	UpstreamRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Music search API request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		},
		[]string{"endpoint"},
	)

	UpstreamBreakerState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "upstream_breaker_state",
			Help:      "Circuit breaker state: 0 closed, 1 half-open, 2 open",
		},
	)
)

var upstreamOnce sync.Once

// RegisterUpstreamMetrics registers the upstream client metrics.
func RegisterUpstreamMetrics() {
	upstreamOnce.Do(func() {
		prometheus.MustRegister(UpstreamRequestsTotal, UpstreamRequestDuration, UpstreamBreakerState)
	})
}
