// Package metrics holds the Prometheus collectors of a lighthouse process.
// Collectors live in their own registry rather than the global default one.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lighthouse"

type Metrics struct {
	registry *prometheus.Registry

	passes         *prometheus.CounterVec
	passDuration   prometheus.Histogram
	changesApplied *prometheus.CounterVec
	actual         prometheus.Gauge
}

// New creates the collectors and registers them in a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_passes_total",
			Help:      "Reconciliation passes by result.",
		}, []string{"result"}),
		passDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconcile_pass_duration_seconds",
			Help:      "Duration of reconciliation passes.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		changesApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "changes_applied_total",
			Help:      "Container changes applied by kind.",
		}, []string{"kind"}),
		actual: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "actual_containers",
			Help:      "Containers observed by the last collection.",
		}),
	}
	m.registry.MustRegister(m.passes, m.passDuration, m.changesApplied, m.actual)
	return m
}

// ObservePass records one reconciliation pass.
func (m *Metrics) ObservePass(start time.Time, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.passes.WithLabelValues(result).Inc()
	m.passDuration.Observe(time.Since(start).Seconds())
}

// ChangeApplied counts one applied change of the given kind.
func (m *Metrics) ChangeApplied(kind string) {
	if m == nil {
		return
	}
	m.changesApplied.WithLabelValues(kind).Inc()
}

// ActualContainers records the size of the collected state.
func (m *Metrics) ActualContainers(n int) {
	if m == nil {
		return
	}
	m.actual.Set(float64(n))
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
