// Package metrics exposes the identity service's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ecotrack/internal/apperrors"
)

// Metrics groups the collectors registered on one registry.
type Metrics struct {
	registry    *prometheus.Registry
	attempts    *prometheus.CounterVec
	subscribers prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ecotrack",
			Name:      "auth_attempts_total",
			Help:      "Auth operations by outcome code.",
		}, []string{"operation", "outcome"}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ecotrack",
			Name:      "identity_feed_subscribers",
			Help:      "Open identity event streams.",
		}),
	}
	m.registry.MustRegister(m.attempts, m.subscribers)
	return m
}

// ObserveAttempt counts one auth operation; a nil err counts as "ok".
func (m *Metrics) ObserveAttempt(operation string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = string(apperrors.CodeOf(err))
	}
	m.attempts.WithLabelValues(operation, outcome).Inc()
}

// StreamOpened and StreamClosed track open event streams.
func (m *Metrics) StreamOpened() {
	if m != nil {
		m.subscribers.Inc()
	}
}

func (m *Metrics) StreamClosed() {
	if m != nil {
		m.subscribers.Dec()
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
