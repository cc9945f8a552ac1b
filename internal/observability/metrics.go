package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "bloom_forecast"

// Metrics holds the Prometheus collectors for engine calls and forecast delivery.
type Metrics struct {
	// Engine metrics.
	EngineCalls    *prometheus.CounterVec   // labels: variant={full,nomet,operational}, outcome={success,error}
	EngineDuration *prometheus.HistogramVec // labels: variant
	CacheLookups   *prometheus.CounterVec   // labels: result={hit,miss}

	// Forecast metrics.
	ForecastsIssued    *prometheus.CounterVec // labels: variant
	ForecastErrors     prometheus.Counter
	ForecastsPublished prometheus.Counter
	PublishErrors      prometheus.Counter
	PublishEnabled     prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.EngineCalls,
		m.EngineDuration,
		m.CacheLookups,
		m.ForecastsIssued,
		m.ForecastErrors,
		m.ForecastsPublished,
		m.PublishErrors,
		m.PublishEnabled,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		EngineCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_calls_total",
			Help:      "Bayesian network engine calls by variant and outcome.",
		}, []string{"variant", "outcome"}),
		EngineDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "engine_duration_seconds",
			Help:      "Wall time of an engine call, including R start-up and network load.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"variant"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Prediction cache lookups by result.",
		}, []string{"result"}),
		ForecastsIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forecasts_issued_total",
			Help:      "Forecasts produced by variant.",
		}, []string{"variant"}),
		ForecastErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forecast_errors_total",
			Help:      "Forecast requests that failed validation or inference.",
		}),
		ForecastsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forecasts_published_total",
			Help:      "Forecasts written to the sink topic.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Failed writes to the sink topic.",
		}),
		PublishEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "publish_enabled",
			Help:      "1 when forecasts are published to Kafka, 0 otherwise.",
		}),
	}
}
