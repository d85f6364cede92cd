// Package metrics holds the Prometheus collectors of the price oracle.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "priceoracle"

// Metrics groups the oracle's collectors.
type Metrics struct {
	registry *prometheus.Registry

	adapterCalls    *prometheus.CounterVec
	adapterDuration *prometheus.HistogramVec
	cacheLookups    *prometheus.CounterVec
	passes          *prometheus.CounterVec
	quotes          *prometheus.GaugeVec
	lastPass        prometheus.Gauge
}

// New registers the oracle collectors, plus process and Go runtime collectors,
// on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		adapterCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "adapter",
				Name:      "calls_total",
				Help:      "Upstream adapter calls by provider and outcome.",
			},
			[]string{"provider", "outcome"},
		),
		adapterDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "adapter",
				Name:      "call_duration_seconds",
				Help:      "Duration of upstream adapter calls.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
			},
			[]string{"provider"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "lookups_total",
				Help:      "Quote table cache lookups by result.",
			},
			[]string{"result"},
		),
		passes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "aggregate",
				Name:      "passes_total",
				Help:      "Aggregation passes by trigger.",
			},
			[]string{"trigger"},
		),
		quotes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "aggregate",
				Name:      "quotes",
				Help:      "Canonical quotes in the latest table by provenance.",
			},
			[]string{"source"},
		),
		lastPass: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "aggregate",
				Name:      "last_pass_timestamp_seconds",
				Help:      "Unix time of the latest completed aggregation pass.",
			},
		),
	}
	m.registry.MustRegister(
		m.adapterCalls,
		m.adapterDuration,
		m.cacheLookups,
		m.passes,
		m.quotes,
		m.lastPass,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	return m
}

// Registry exposes the underlying registry for tests and custom handlers.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	// The server compresses responses itself.
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{DisableCompression: true})
}

// AdapterCall records one upstream call. A nil err counts as "ok".
func (m *Metrics) AdapterCall(provider string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.adapterCalls.WithLabelValues(provider, outcome).Inc()
	m.adapterDuration.WithLabelValues(provider).Observe(d.Seconds())
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues("hit").Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

// Pass records a completed aggregation pass and the provenance mix of its
// canonical quotes.
func (m *Metrics) Pass(trigger string, bySource map[string]int, at time.Time) {
	if m == nil {
		return
	}
	m.passes.WithLabelValues(trigger).Inc()
	m.quotes.Reset()
	for src, n := range bySource {
		m.quotes.WithLabelValues(src).Set(float64(n))
	}
	m.lastPass.Set(float64(at.Unix()))
}
