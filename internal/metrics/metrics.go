package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for sitemap resolution.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	FetchesTotal       *prometheus.CounterVec
	FetchDuration      *prometheus.HistogramVec
	ResolutionsTotal   *prometheus.CounterVec
	ResolutionDuration prometheus.Histogram
	EntriesTotal       prometheus.Counter
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FetchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sitemap_fetches_total",
			Help: "Total number of sitemap documents fetched.",
		}, []string{"kind", "status"}), // kind: url, file; status: ok, error
		FetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sitemap_fetch_duration_seconds",
			Help:    "Duration of sitemap fetches.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		ResolutionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sitemap_resolutions_total",
			Help: "Total number of top-level resolutions.",
		}, []string{"status"}),
		ResolutionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sitemap_resolution_duration_seconds",
			Help:    "Duration of top-level resolutions.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120},
		}),
		EntriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "sitemap_entries_total",
			Help: "Total number of page entries discovered.",
		}),
	}
}

func (m *Metrics) ObserveFetch(kind string, err error, d time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.FetchesTotal.WithLabelValues(kind, status).Inc()
	m.FetchDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *Metrics) ObserveResolution(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.ResolutionsTotal.WithLabelValues(status).Inc()
	m.ResolutionDuration.Observe(d.Seconds())
}

func (m *Metrics) AddEntries(n int) {
	if m == nil {
		return
	}
	m.EntriesTotal.Add(float64(n))
}
