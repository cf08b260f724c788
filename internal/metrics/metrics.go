// Package metrics exposes Prometheus collectors for the launch sequencer.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	transitions      *prometheus.CounterVec
	starts           *prometheus.CounterVec
	crashes          *prometheus.CounterVec
	restarts         *prometheus.CounterVec
	readinessSeconds *prometheus.HistogramVec
	services         *prometheus.GaugeVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yardmaster_state_transitions_total",
				Help: "Service state transitions, labeled by service and target state.",
			},
			[]string{"service", "state"},
		),
		starts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yardmaster_service_starts_total",
				Help: "Instances started, labeled by service and result.",
			},
			[]string{"service", "result"},
		),
		crashes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yardmaster_service_crashes_total",
				Help: "Unexpected instance exits, labeled by service.",
			},
			[]string{"service"},
		),
		restarts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yardmaster_service_restarts_total",
				Help: "Restarts performed under the always policy, labeled by service.",
			},
			[]string{"service"},
		),
		readinessSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "yardmaster_readiness_seconds",
				Help:    "Time from instance start to readiness, labeled by service.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"service"},
		),
		services: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "yardmaster_services",
				Help: "Services currently in each state.",
			},
			[]string{"state"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveTransition counts a transition and moves one service between state
// gauges. from is empty for the initial state.
func (m *Metrics) ObserveTransition(service, from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(service, to).Inc()
	if from != "" {
		m.services.WithLabelValues(from).Dec()
	}
	m.services.WithLabelValues(to).Inc()
}

func (m *Metrics) ObserveStart(service string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.starts.WithLabelValues(service, result).Inc()
}

func (m *Metrics) ObserveCrash(service string) {
	if m == nil {
		return
	}
	m.crashes.WithLabelValues(service).Inc()
}

func (m *Metrics) ObserveRestart(service string) {
	if m == nil {
		return
	}
	m.restarts.WithLabelValues(service).Inc()
}

func (m *Metrics) ObserveReadiness(service string, d time.Duration) {
	if m == nil {
		return
	}
	m.readinessSeconds.WithLabelValues(service).Observe(d.Seconds())
}
