package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "weather_briefing"

// Metrics holds the Prometheus counters, histograms, and gauges for the briefing pipeline.
type Metrics struct {
	RunsTotal       *prometheus.CounterVec // labels: outcome={success,partial}
	RunDuration     prometheus.Histogram
	PipelineRunning prometheus.Gauge

	// Source fetches.
	SourceFetches       *prometheus.CounterVec   // labels: source, outcome={ok,error}
	SourceFetchDuration *prometheus.HistogramVec // labels: source
	DataGaps            prometheus.Counter

	// Attribution.
	HazardsAttributed *prometheus.CounterVec // labels: category, method
	EngineInfo        *prometheus.GaugeVec   // labels: engine

	// Sinks and caches.
	SinkErrors     *prometheus.CounterVec // labels: sink
	GridPointCache *prometheus.CounterVec // labels: result={hit,miss}
}

func newMetrics() *Metrics {
	return &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Briefing runs by outcome. A partial run carried at least one data gap.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete fetch-assemble-publish cycle.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		SourceFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_fetches_total",
			Help:      "Upstream fetches by source and outcome.",
		}, []string{"source", "outcome"}),
		SourceFetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_fetch_duration_seconds",
			Help:      "Upstream fetch duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source"}),
		DataGaps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "data_gaps_total",
			Help:      "Data gaps reported across all briefings.",
		}),
		HazardsAttributed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hazards_attributed_total",
			Help:      "Hazard to county attributions by category and method.",
		}, []string{"category", "method"}),
		EngineInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geometry_engine",
			Help:      "1 for the geometry engine in use.",
		}, []string{"engine"}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Failed briefing publishes by sink.",
		}, []string{"sink"}),
		GridPointCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gridpoint_cache_total",
			Help:      "NWS grid point cache lookups by result.",
		}, []string{"result"}),
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.PipelineRunning,
		m.SourceFetches,
		m.SourceFetchDuration,
		m.DataGaps,
		m.HazardsAttributed,
		m.EngineInfo,
		m.SinkErrors,
		m.GridPointCache,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
