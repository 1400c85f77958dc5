package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the per-backend Prometheus series.
type Metrics struct {
	selections *prometheus.CounterVec
	responses  *prometheus.CounterVec
	durations  *prometheus.HistogramVec
}

// NewMetrics creates the per-backend series and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		selections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proxy_backend_selections_total",
				Help: "Number of times each backend was selected",
			},
			[]string{"backend"},
		),
		responses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proxy_upstream_responses_total",
				Help: "Responses sent to callers by backend and status code",
			},
			[]string{"backend", "code"},
		),
		durations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "proxy_request_duration_seconds",
				Help:    "Time from backend selection to response completion",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"backend"},
		),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.selections, m.responses, m.durations} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}

	return m, nil
}

func (m *Metrics) RecordBackendSelection(backend string) {
	m.selections.WithLabelValues(backend).Inc()
}

func (m *Metrics) RecordResponse(backend string, duration time.Duration, statusCode int) {
	m.responses.WithLabelValues(backend, strconv.Itoa(statusCode)).Inc()
	m.durations.WithLabelValues(backend).Observe(duration.Seconds())
}
