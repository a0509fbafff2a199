package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusRecorder implements the Recorder interface using Prometheus metrics.
// Each recorder owns a private registry.
type PrometheusRecorder struct {
	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	transitions     *prometheus.CounterVec
}

// NewPrometheusRecorder creates a recorder whose metric names carry the given namespace.
func NewPrometheusRecorder(namespace string) *PrometheusRecorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &PrometheusRecorder{
		registry: reg,
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "riskapi_requests_total",
				Help:      "Total number of analysis service requests by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "riskapi_request_duration_seconds",
				Help:      "Duration of analysis service requests in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 90},
			},
			[]string{"operation"},
		),
		transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "workflow_transitions_total",
				Help:      "Total number of workflow state transitions",
			},
			[]string{"from", "to"},
		),
	}
}

// Registry exposes the recorder's registry for exporting.
func (p *PrometheusRecorder) Registry() *prometheus.Registry {
	return p.registry
}

// ObserveRequest records one remote call.
func (p *PrometheusRecorder) ObserveRequest(operation, outcome string, duration time.Duration) {
	p.requestsTotal.WithLabelValues(operation, outcome).Inc()
	p.requestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveTransition records one state machine transition.
func (p *PrometheusRecorder) ObserveTransition(from, to string) {
	p.transitions.WithLabelValues(from, to).Inc()
}
