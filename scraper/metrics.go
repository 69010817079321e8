package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the price pipeline.
type Metrics struct {
	Registry          *prometheus.Registry
	FetchTotal        *prometheus.CounterVec
	FetchDuration     *prometheus.HistogramVec
	SamplesTotal      *prometheus.CounterVec
	ErrorsTotal       *prometheus.CounterVec
	AggregationsTotal *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	fetches := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricer_fetch_total",
			Help: "Candidate pages fetched, by source and outcome.",
		},
		[]string{"source", "outcome"},
	)
	fetchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pricer_fetch_duration_seconds",
			Help:    "Latency of candidate page fetches.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)
	samples := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricer_samples_total",
			Help: "Price samples accepted, by source.",
		},
		[]string{"source"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricer_errors_total",
			Help: "Skipped fetches by error type.",
		},
		[]string{"error_type"},
	)
	aggregations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricer_aggregations_total",
			Help: "Aggregation calls by provenance of the reported statistics.",
		},
		[]string{"provenance"},
	)

	registry.MustRegister(fetches, fetchDuration, samples, errorsTotal, aggregations)

	return &Metrics{
		Registry:          registry,
		FetchTotal:        fetches,
		FetchDuration:     fetchDuration,
		SamplesTotal:      samples,
		ErrorsTotal:       errorsTotal,
		AggregationsTotal: aggregations,
	}
}

// IncFetch increments the fetch counter.
func (m *Metrics) IncFetch(source, outcome string) {
	if m == nil {
		return
	}
	m.FetchTotal.WithLabelValues(source, outcome).Inc()
}

// ObserveFetch records a fetch duration.
func (m *Metrics) ObserveFetch(source string, d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDuration.WithLabelValues(source).Observe(d.Seconds())
}

// AddSamples adds accepted samples for a source.
func (m *Metrics) AddSamples(source string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SamplesTotal.WithLabelValues(source).Add(float64(n))
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncAggregation counts a finished aggregation. An empty provenance is
// reported as "none".
func (m *Metrics) IncAggregation(provenance string) {
	if m == nil {
		return
	}
	if provenance == "" {
		provenance = "none"
	}
	m.AggregationsTotal.WithLabelValues(provenance).Inc()
}
