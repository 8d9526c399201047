package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "weather_timeline"

// Metrics holds the Prometheus collectors for the report pipeline.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	UpstreamRequests *prometheus.CounterVec // labels: source, outcome={success,error,empty,retry}
	Fallbacks        *prometheus.CounterVec // labels: kind
	ThunderStrategy  *prometheus.CounterVec // labels: strategy={recent,historical}
	ReportDuration   prometheus.Histogram
	CacheLookups     *prometheus.CounterVec // labels: result={hit,miss}
}

func newMetrics() *Metrics {
	return &Metrics{
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Upstream requests by source and outcome.",
		}, []string{"source", "outcome"}),
		Fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallbacks_total",
			Help:      "Documented fallbacks taken, by kind.",
		}, []string{"kind"}),
		ThunderStrategy: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "thunder_strategy_total",
			Help:      "Thunder evidence strategy chosen per report.",
		}, []string{"strategy"}),
		ReportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "report_duration_seconds",
			Help:      "Duration of a complete report pipeline run.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Upstream cache lookups by result.",
		}, []string{"result"}),
	}
}

// NewMetrics creates the collectors and registers them with the default registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.UpstreamRequests,
		m.Fallbacks,
		m.ThunderStrategy,
		m.ReportDuration,
		m.CacheLookups,
	)
	return m
}

// NewMetricsForTesting creates unregistered collectors so tests can build
// as many as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

// Upstream counts one upstream call outcome.
func (m *Metrics) Upstream(source, outcome string) {
	if m == nil {
		return
	}
	m.UpstreamRequests.WithLabelValues(source, outcome).Inc()
}

// Fallback counts a fallback of the given kind.
func (m *Metrics) Fallback(kind string) {
	if m == nil {
		return
	}
	m.Fallbacks.WithLabelValues(kind).Inc()
}

// Strategy counts the thunder strategy chosen for a report.
func (m *Metrics) Strategy(strategy string) {
	if m == nil {
		return
	}
	m.ThunderStrategy.WithLabelValues(strategy).Inc()
}

// ObserveReport records the duration of one pipeline run.
func (m *Metrics) ObserveReport(seconds float64) {
	if m == nil {
		return
	}
	m.ReportDuration.Observe(seconds)
}

// Cache counts a cache hit or miss.
func (m *Metrics) Cache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}
