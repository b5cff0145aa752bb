// Package metrics exposes synchronizer counters and gauges for Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dayahead"

// Chunk outcomes.
const (
	OutcomeOK      = "ok"
	OutcomePartial = "partial"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// Metrics groups the synchronizer collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ChunksTotal          *prometheus.CounterVec
	BackendRecordsTotal  *prometheus.CounterVec
	BackendFailuresTotal *prometheus.CounterVec
	Watermark            *prometheus.GaugeVec
	PassDuration         prometheus.Histogram
}

// New builds the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ChunksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_total",
			Help:      "Fetched chunks by domain pair and outcome",
		}, []string{"pair", "outcome"}),
		BackendRecordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_records_total",
			Help:      "Records written per backend",
		}, []string{"backend"}),
		BackendFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_failures_total",
			Help:      "Failed upserts per backend",
		}, []string{"backend"}),
		Watermark: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "watermark_timestamp_seconds",
			Help:      "Most recent durable sample per backend and domain pair",
		}, []string{"backend", "pair"}),
		PassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pass_duration_seconds",
			Help:      "Duration of synchronization passes",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 180, 600},
		}),
	}

	m.registry.MustRegister(
		m.ChunksTotal,
		m.BackendRecordsTotal,
		m.BackendFailuresTotal,
		m.Watermark,
		m.PassDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordChunk counts a processed chunk.
func (m *Metrics) RecordChunk(pair, outcome string) {
	if m == nil {
		return
	}
	m.ChunksTotal.WithLabelValues(pair, outcome).Inc()
}

// RecordBackend counts a backend write outcome.
func (m *Metrics) RecordBackend(backend string, written int, failed bool) {
	if m == nil {
		return
	}
	if written > 0 {
		m.BackendRecordsTotal.WithLabelValues(backend).Add(float64(written))
	}
	if failed {
		m.BackendFailuresTotal.WithLabelValues(backend).Inc()
	}
}

// SetWatermark publishes a backend watermark.
func (m *Metrics) SetWatermark(backend, pair string, at time.Time) {
	if m == nil {
		return
	}
	m.Watermark.WithLabelValues(backend, pair).Set(float64(at.Unix()))
}

// ObservePass records the duration of a pass.
func (m *Metrics) ObservePass(d time.Duration) {
	if m == nil {
		return
	}
	m.PassDuration.Observe(d.Seconds())
}
