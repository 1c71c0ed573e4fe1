package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain repository.Metrics using Prometheus.
type Recorder struct {
	forecasts   *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	cache       *prometheus.CounterVec
	artifacts   *prometheus.GaugeVec
	historyRows prometheus.Gauge
	errorsTotal *prometheus.CounterVec
}

// New registers the recorder on the default registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the recorder on reg; tests pass a fresh registry.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		forecasts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brentcast_forecasts_total",
				Help: "Forecast requests by model kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "brentcast_forecast_duration_seconds",
				Help:    "Forecast latency including validation",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"kind"},
		),
		cache: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brentcast_forecast_cache_total",
				Help: "Forecast cache lookups by result",
			},
			[]string{"kind", "result"},
		),
		artifacts: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "brentcast_artifact_loaded",
				Help: "1 when the model artifact loaded at startup, 0 otherwise",
			},
			[]string{"kind"},
		),
		historyRows: f.NewGauge(prometheus.GaugeOpts{
			Name: "brentcast_history_rows",
			Help: "Rows in the loaded price series",
		}),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brentcast_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
	}
}

func (r *Recorder) RecordForecast(kind, outcome string, seconds float64) {
	r.forecasts.WithLabelValues(kind, outcome).Inc()
	r.latency.WithLabelValues(kind).Observe(seconds)
}

func (r *Recorder) RecordCache(kind string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cache.WithLabelValues(kind, result).Inc()
}

func (r *Recorder) RecordArtifact(kind string, loaded bool) {
	v := 0.0
	if loaded {
		v = 1
	}
	r.artifacts.WithLabelValues(kind).Set(v)
}

func (r *Recorder) RecordHistoryRows(n int) { r.historyRows.Set(float64(n)) }

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}
