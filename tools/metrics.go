package tools

import (
	"time"

	"github.com/c360studio/semstreams/metric"
	"github.com/prometheus/client_golang/prometheus"
)

// toolMetrics holds Prometheus metrics for tool calls.
type toolMetrics struct {
	calls    *prometheus.CounterVec   // by tool and status
	duration *prometheus.HistogramVec // by tool
}

// newToolMetrics creates and registers tool metrics. A nil registry
// disables metrics.
func newToolMetrics(registry *metric.MetricsRegistry) (*toolMetrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &toolMetrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "semlink",
			Name:      "tool_calls_total",
			Help:      "Total tool calls by tool and status",
		}, []string{"tool", "status"}),

		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "semlink",
			Name:      "tool_duration_seconds",
			Help:      "Tool call duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"tool"}),
	}

	if err := registry.RegisterCounterVec("tools", "calls_total", m.calls); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogramVec("tools", "duration", m.duration); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *toolMetrics) record(tool, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(tool, status).Inc()
	m.duration.WithLabelValues(tool).Observe(d.Seconds())
}
