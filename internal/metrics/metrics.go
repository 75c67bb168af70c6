// Package metrics exposes protocol activity as Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/core-coin/adsponsor/internal/models"
)

const namespace = "adsponsor"

// Metrics holds the collectors on a private registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	events          *prometheus.CounterVec
	totalFunds      prometheus.Gauge
	operationErrors *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Committed state transitions by event type",
			},
			[]string{"type"},
		),
		totalFunds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      "total_funds",
				Help:      "Pool balance after the last fund-moving transition",
			},
		),
		operationErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operation_errors_total",
				Help:      "Rejected operations by operation and error code",
			},
			[]string{"operation", "code"},
		),
	}
	m.registry.MustRegister(m.events, m.totalFunds, m.operationErrors)
	return m
}

// Observe records a committed event.
func (m *Metrics) Observe(event *models.Event) {
	if m == nil || event == nil {
		return
	}
	m.events.WithLabelValues(string(event.Type)).Inc()
	switch event.Type {
	case models.EventInitialized, models.EventDeposited, models.EventWithdrawn, models.EventTransactionCompleted:
		m.totalFunds.Set(float64(event.TotalFunds))
	}
}

// OperationFailed counts a rejected operation.
func (m *Metrics) OperationFailed(operation, code string) {
	if m == nil {
		return
	}
	m.operationErrors.WithLabelValues(operation, code).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
