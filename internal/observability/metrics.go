// Package observability holds the Prometheus metrics shared by the pipeline
// and its adapters. Logging uses storm-data-shared/observability.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for a feed run.
type Metrics struct {
	RowsRead        *prometheus.CounterVec // labels: feed
	RowsSkipped     *prometheus.CounterVec // labels: feed
	ItemsStored     *prometheus.CounterVec // labels: class
	Files           *prometheus.CounterVec // labels: outcome={processed,failed}
	Locations       prometheus.Gauge
	RunDuration     prometheus.Histogram
	PipelineRunning prometheus.Gauge

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec // labels: outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeAPIDuration prometheus.Histogram
	GeocodeEnabled     prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RowsRead,
		m.RowsSkipped,
		m.ItemsStored,
		m.Files,
		m.Locations,
		m.RunDuration,
		m.PipelineRunning,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RowsRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "epi_etl",
			Name:      "rows_read_total",
			Help:      "Total data rows read from input files.",
		}, []string{"feed"}),
		RowsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "epi_etl",
			Name:      "rows_skipped_total",
			Help:      "Rows dropped because a location-defining field was empty.",
		}, []string{"feed"}),
		ItemsStored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "epi_etl",
			Name:      "items_stored_total",
			Help:      "Items written to the sink by class.",
		}, []string{"class"}),
		Files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "epi_etl",
			Name:      "files_total",
			Help:      "Input files by outcome.",
		}, []string{"outcome"}),
		Locations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "epi_etl",
			Name:      "locations",
			Help:      "Distinct locations held by the current run.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "epi_etl",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete feed run including the final flush.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "epi_etl",
			Name:      "pipeline_running",
			Help:      "1 while a run is in progress, 0 otherwise.",
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "epi_etl",
			Name:      "geocode_requests_total",
			Help:      "Forward geocoding API requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "epi_etl",
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "epi_etl",
			Name:      "geocode_api_duration_seconds",
			Help:      "Latency of geocoding API calls.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "epi_etl",
			Name:      "geocode_enabled",
			Help:      "1 when geocoding enrichment is enabled, 0 otherwise.",
		}),
	}
}
