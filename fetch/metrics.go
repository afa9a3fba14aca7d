package fetch

import (
	"time"

	"github.com/c360studio/semstreams/metric"
	"github.com/prometheus/client_golang/prometheus"
)

// fetchMetrics holds Prometheus metrics for outbound HTTP requests.
type fetchMetrics struct {
	requests *prometheus.CounterVec   // by status class
	duration *prometheus.HistogramVec // by status class
	blocked  prometheus.Counter
}

// newFetchMetrics creates and registers fetch metrics. A nil registry
// disables metrics.
func newFetchMetrics(registry *metric.MetricsRegistry) (*fetchMetrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &fetchMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "semlink",
			Subsystem: "fetch",
			Name:      "requests_total",
			Help:      "Total outbound linked-data HTTP requests",
		}, []string{"status"}),

		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "semlink",
			Subsystem: "fetch",
			Name:      "request_duration_seconds",
			Help:      "Outbound HTTP request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"status"}),

		blocked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "semlink",
			Subsystem: "fetch",
			Name:      "blocked_total",
			Help:      "Requests rejected by the URL guard",
		}),
	}

	if err := registry.RegisterCounterVec("fetch", "requests_total", m.requests); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogramVec("fetch", "request_duration", m.duration); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("fetch", "blocked_total", m.blocked); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *fetchMetrics) record(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(status).Inc()
	m.duration.WithLabelValues(status).Observe(d.Seconds())
}

func (m *fetchMetrics) recordBlocked() {
	if m == nil {
		return
	}
	m.blocked.Inc()
}
