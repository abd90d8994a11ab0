package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
	"time"
)

const namespace = "festfinder"

// Search modes for labeling.
const (
	ModeBlank   = "blank"
	ModeDayOnly = "day_only"
	ModeTokens  = "tokens"
)

// Metrics holds all collectors of festfinder.
type Metrics struct {
	registry *prometheus.Registry
	// searchesTotal counts searches by mode and outcome.
	searchesTotal *prometheus.CounterVec
	// searchDuration observes the duration of searches including catalog
	// loading.
	searchDuration prometheus.Histogram
	// searchResults observes the number of results per search.
	searchResults prometheus.Histogram
	// catalogSize is the number of festivals in the last loaded catalog.
	catalogSize prometheus.Gauge
	// rejectedRecords counts catalog records that failed validation.
	rejectedRecords prometheus.Counter
}

// New creates Metrics with its own registry that also includes Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		searchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Number of searches by query mode and outcome",
		}, []string{"mode", "outcome"}),
		searchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Time spent for searches including catalog retrieval",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		searchResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_results",
			Help:      "Number of festivals returned per search",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100, 200, 500},
		}),
		catalogSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_festivals",
			Help:      "Number of festivals in the last loaded catalog",
		}),
		rejectedRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_rejected_records_total",
			Help:      "Number of catalog records skipped due to validation errors",
		}),
	}
	m.registry.MustRegister(
		m.searchesTotal, m.searchDuration, m.searchResults,
		m.catalogSize, m.rejectedRecords,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveSearch records a search with the given mode, duration and number of
// results.
func (m *Metrics) ObserveSearch(mode string, duration time.Duration, results int) {
	m.searchesTotal.WithLabelValues(mode, "ok").Inc()
	m.searchDuration.Observe(duration.Seconds())
	m.searchResults.Observe(float64(results))
}

// ObserveSearchFailure records a search that failed.
func (m *Metrics) ObserveSearchFailure(mode string) {
	m.searchesTotal.WithLabelValues(mode, "error").Inc()
}

// SetCatalogSize sets the number of festivals in the loaded catalog.
func (m *Metrics) SetCatalogSize(size int) {
	m.catalogSize.Set(float64(size))
}

// AddRejectedRecords adds to the number of rejected catalog records.
func (m *Metrics) AddRejectedRecords(n int) {
	m.rejectedRecords.Add(float64(n))
}

// Registry returns the prometheus.Registry all collectors are registered in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
