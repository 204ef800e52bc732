package events

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsSink counts requests and operations so a long acceptance run
// can be inspected for rate-limit pressure and retry storms.
type MetricsSink struct {
	requests  *prometheus.CounterVec
	durations *prometheus.HistogramVec
	failures  *prometheus.CounterVec
}

// NewMetricsSink registers the harness metrics with the given
// registerer, typically prometheus.DefaultRegisterer.
func NewMetricsSink(reg prometheus.Registerer) *MetricsSink {
	s := &MetricsSink{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "acctest_requests_total",
			Help: "Provider API requests, by method and response status.",
		}, []string{"method", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "acctest_operation_seconds",
			Help:    "Duration of named harness operations.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"event"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "acctest_operation_failures_total",
			Help: "Failed harness operations, by event name.",
		}, []string{"event"}),
	}

	reg.MustRegister(s.requests, s.durations, s.failures)

	return s
}

func (s *MetricsSink) Record(_ context.Context, e Event) {
	if e.Method != "" {
		s.requests.WithLabelValues(e.Method, strconv.Itoa(e.Status)).Inc()
		return
	}

	s.durations.WithLabelValues(e.Name).Observe(e.Took.Seconds())

	if e.Err != nil {
		s.failures.WithLabelValues(e.Name).Inc()
	}
}
