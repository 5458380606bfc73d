package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Collector aggregates screening and HTTP metrics. Attempt outcomes use
// the provider error codes plus "ok", so a grafana panel can split rate
// limits from timeouts without log archaeology.
type Collector struct {
	screeningsTotal   *prometheus.CounterVec
	providerAttempts  *prometheus.CounterVec
	attemptDuration   *prometheus.HistogramVec
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector creates a collector and registers its vectors on the given
// registry. Pass prometheus.NewRegistry() in tests to avoid default
// registry collisions.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	factory := prometheus.WrapRegistererWith(nil, reg)

	c.screeningsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "screenings_total",
			Help:      "Total number of completed screenings",
		},
		[]string{"provider", "stage"},
	)

	c.providerAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_attempts_total",
			Help:      "Provider attempts by outcome (ok or error code)",
		},
		[]string{"provider", "outcome"},
	)

	c.attemptDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_attempt_duration_seconds",
			Help:      "Provider attempt duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"provider"},
	)

	c.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	factory.MustRegister(
		c.screeningsTotal,
		c.providerAttempts,
		c.attemptDuration,
		c.httpRequestsTotal,
		c.httpDuration,
	)

	return c
}

// RecordScreening counts one completed screening call.
func (c *Collector) RecordScreening(provider, stage string) {
	c.screeningsTotal.WithLabelValues(provider, stage).Inc()
}

// RecordProviderAttempt counts one provider attempt and its latency.
// outcome is "ok" or the provider error code.
func (c *Collector) RecordProviderAttempt(provider, outcome string, elapsed time.Duration) {
	c.providerAttempts.WithLabelValues(provider, outcome).Inc()
	c.attemptDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// RecordHTTPRequest counts one served HTTP request.
func (c *Collector) RecordHTTPRequest(method, path, status string, elapsed time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	c.httpDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}
