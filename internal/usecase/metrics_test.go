package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricsReportHasEveryKind(t *testing.T) {
	report := NewMetricsUseCase(nil).GetMetrics()
	for _, k := range []string{"ARIMA", "LSTM", "GARCH", "VAR"} {
		assert.Contains(t, report, k)
	}
	assert.Equal(t, 2.5, report["ARIMA"]["RMSE"])
	assert.Equal(t, 1.5, report["LSTM"]["MAE"])
	assert.Equal(t, "Volatility analysis model - metrics to be defined", report["GARCH"]["Note"])
	assert.Equal(t, "Multivariate model - metrics to be defined", report["VAR"]["Note"])
}

func TestMetricsOverrides(t *testing.T) {
	uc := NewMetricsUseCase(map[string]map[string]any{
		"arima":   {"RMSE": 2.1},
		"garch":   {"AIC": 1021.4},
		"PROPHET": {"RMSE": 9},
	})
	report := uc.GetMetrics()

	assert.Len(t, report, 4)
	assert.Equal(t, 2.1, report["ARIMA"]["RMSE"])
	assert.Equal(t, 1.8, report["ARIMA"]["MAE"])
	assert.Equal(t, 1021.4, report["GARCH"]["AIC"])
	assert.NotContains(t, report, "PROPHET")

	// mutating a returned report leaves the next one intact
	report["ARIMA"]["RMSE"] = 0.0
	delete(report, "VAR")
	fresh := uc.GetMetrics()
	assert.Equal(t, 2.1, fresh["ARIMA"]["RMSE"])
	assert.Contains(t, fresh, "VAR")
}
