// Package metrics holds the Prometheus collectors for the clip pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cliptitle"

// Metrics groups the pipeline collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	runs      *prometheus.CounterVec
	titles    *prometheus.CounterVec
	persists  *prometheus.CounterVec
	inference prometheus.Histogram
	persist   prometheus.Histogram
	pending   prometheus.Gauge
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "runs_total",
				Help:      "Pipeline runs by outcome.",
			},
			[]string{"outcome"},
		),
		titles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "titles_total",
				Help:      "Resolved titles by source.",
			},
			[]string{"source"},
		),
		persists: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "persist_total",
				Help:      "Persist operations by action and result.",
			},
			[]string{"action", "result"},
		),
		inference: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inference_seconds",
			Help:      "Latency of title generation requests in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 9), // 50ms to ~13s
		}),
		persist: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "persist_seconds",
			Help:      "Latency of file writes in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~2s
		}),
		pending: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_actions",
			Help:      "Clips waiting for an append or new-file decision.",
		}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRun counts one pipeline run.
func (m *Metrics) ObserveRun(outcome string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
}

// ObserveTitle counts one resolved title.
func (m *Metrics) ObserveTitle(source string) {
	if m == nil {
		return
	}
	m.titles.WithLabelValues(source).Inc()
}

// ObserveInference records one generation attempt.
func (m *Metrics) ObserveInference(d time.Duration) {
	if m == nil {
		return
	}
	m.inference.Observe(d.Seconds())
}

// ObservePersist records one persist operation.
func (m *Metrics) ObservePersist(action string, d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.persists.WithLabelValues(action, result).Inc()
	m.persist.Observe(d.Seconds())
}

// SetPending sets the number of pending action requests.
func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.pending.Set(float64(n))
}
