// Package metrics exposes Prometheus instrumentation for correlator ingestion.
//
// A nil *Metrics is valid and records nothing, so readers and caches can be
// used without a registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Cache request outcomes.
const (
	CacheHit  = "hit"
	CacheMiss = "miss"
)

// Metrics holds the ingestion collectors.
type Metrics struct {
	RecordsAppended *prometheus.CounterVec
	Warnings        *prometheus.CounterVec
	ParseDuration   *prometheus.HistogramVec
	CacheRequests   *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered, which is convenient in tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RecordsAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meson_records_appended_total",
			Help: "Correlator records appended, by input format",
		}, []string{"format"}),
		Warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meson_ingest_warnings_total",
			Help: "Non-fatal data-quality diagnostics, by input format and code",
		}, []string{"format", "code"}),
		ParseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "meson_parse_duration_seconds",
			Help:    "Wall time of one complete parse, by input format",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30},
		}, []string{"format"}),
		CacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meson_cache_requests_total",
			Help: "Parse cache lookups, by result",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.RecordsAppended, m.Warnings, m.ParseDuration, m.CacheRequests)
	}
	return m
}

// RecordAppended counts one appended record.
func (m *Metrics) RecordAppended(format string) {
	if m == nil {
		return
	}
	m.RecordsAppended.WithLabelValues(format).Inc()
}

// Warning counts one data-quality diagnostic.
func (m *Metrics) Warning(format, code string) {
	if m == nil {
		return
	}
	m.Warnings.WithLabelValues(format, code).Inc()
}

// ObserveParse records the duration of a parse that started at start.
func (m *Metrics) ObserveParse(format string, start time.Time) {
	if m == nil {
		return
	}
	m.ParseDuration.WithLabelValues(format).Observe(time.Since(start).Seconds())
}

// CacheRequest counts one cache lookup.
func (m *Metrics) CacheRequest(result string) {
	if m == nil {
		return
	}
	m.CacheRequests.WithLabelValues(result).Inc()
}
