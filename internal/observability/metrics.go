package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters and histograms for the sync engine
// and the paged fetcher.
type Metrics struct {
	PagesFetched     *prometheus.CounterVec // labels: quality_grade
	FetchErrors      prometheus.Counter
	RecordsRejected  prometheus.Counter
	RecordsMerged    prometheus.Counter
	RefreshRollbacks prometheus.Counter

	SpeciesUpdated *prometheus.CounterVec // labels: outcome={updated,unchanged,error}
	UpdateDuration prometheus.Histogram
}

// NewMetrics creates and registers all metrics with the default registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.PagesFetched,
		m.FetchErrors,
		m.RecordsRejected,
		m.RecordsMerged,
		m.RefreshRollbacks,
		m.SpeciesUpdated,
		m.UpdateDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, so tests
// can construct engines repeatedly without "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		PagesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fungiwatch",
			Name:      "pages_fetched_total",
			Help:      "API result pages fetched, by quality grade partition.",
		}, []string{"quality_grade"}),
		FetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fungiwatch",
			Name:      "fetch_errors_total",
			Help:      "Page requests that failed and aborted their partition.",
		}),
		RecordsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fungiwatch",
			Name:      "records_rejected_total",
			Help:      "Raw records dropped by validation.",
		}),
		RecordsMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fungiwatch",
			Name:      "records_merged_total",
			Help:      "New records folded into a cached record set.",
		}),
		RefreshRollbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fungiwatch",
			Name:      "refresh_rollbacks_total",
			Help:      "Forced refreshes that restored the previous cache.",
		}),
		SpeciesUpdated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fungiwatch",
			Name:      "species_updated_total",
			Help:      "Per-species update outcomes during batch runs.",
		}, []string{"outcome"}),
		UpdateDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "fungiwatch",
			Name:      "update_duration_seconds",
			Help:      "Duration of a single-species incremental update.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
	}
}
