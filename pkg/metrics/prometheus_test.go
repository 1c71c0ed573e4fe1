package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	r := NewWithRegistry(prometheus.NewRegistry())

	r.RecordForecast("ARIMA", "ok", 0.01)
	r.RecordForecast("ARIMA", "ok", 0.02)
	r.RecordForecast("LSTM", "shape_error", 0.001)
	r.RecordCache("ARIMA", true)
	r.RecordCache("ARIMA", false)
	r.RecordArtifact("GARCH", false)
	r.RecordArtifact("VAR", true)
	r.RecordHistoryRows(9000)
	r.RecordError("inference")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.forecasts.WithLabelValues("ARIMA", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.forecasts.WithLabelValues("LSTM", "shape_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.cache.WithLabelValues("ARIMA", "hit")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.artifacts.WithLabelValues("GARCH")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.artifacts.WithLabelValues("VAR")))
	assert.Equal(t, 9000.0, testutil.ToFloat64(r.historyRows))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("inference")))
}
