// Package metrics exposes the router's Prometheus instrumentation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the router's collectors. All routers in a process register
// against their own registry so tests can instantiate freely.
type Metrics struct {
	registry *prometheus.Registry

	DecisionsTotal   *prometheus.CounterVec
	AttemptsTotal    *prometheus.CounterVec
	FallbacksTotal   *prometheus.CounterVec
	ExhaustionsTotal prometheus.Counter
	RequestDuration  *prometheus.HistogramVec
}

// New creates and registers the collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		DecisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ai_router",
			Name:      "decisions_total",
			Help:      "Routing decisions made, labeled by selected provider.",
		}, []string{"provider"}),
		AttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ai_router",
			Name:      "provider_attempts_total",
			Help:      "Provider execution attempts by outcome.",
		}, []string{"provider", "result"}),
		FallbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ai_router",
			Name:      "fallbacks_total",
			Help:      "Fallback transitions between providers, labeled by failure reason.",
		}, []string{"reason"}),
		ExhaustionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ai_router",
			Name:      "chain_exhaustions_total",
			Help:      "Requests that failed every provider in the fallback chain.",
		}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ai_router",
			Name:      "request_duration_seconds",
			Help:      "End-to-end request latency by endpoint.",
			Buckets:   []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"endpoint", "status"}),
	}

	reg.MustRegister(
		m.DecisionsTotal,
		m.AttemptsTotal,
		m.FallbacksTotal,
		m.ExhaustionsTotal,
		m.RequestDuration,
	)
	return m
}

// ObserveRequest records one finished HTTP request.
func (m *Metrics) ObserveRequest(endpoint string, status string, d time.Duration) {
	m.RequestDuration.WithLabelValues(endpoint, status).Observe(d.Seconds())
}

// RecordAttempt counts one provider attempt.
func (m *Metrics) RecordAttempt(provider string, succeeded bool) {
	result := "success"
	if !succeeded {
		result = "failure"
	}
	m.AttemptsTotal.WithLabelValues(provider, result).Inc()
}

// Handler serves the scrape endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
