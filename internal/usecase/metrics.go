package usecase

import (
	"maps"
	"strings"

	"BrentCast/internal/domain/models"
)

// DefaultMetricsReport is the quality report shipped with the trained models.
func DefaultMetricsReport() models.MetricsReport {
	return models.MetricsReport{
		string(models.KindARIMA): {"RMSE": 2.5, "MAE": 1.8},
		string(models.KindLSTM):  {"RMSE": 2.0, "MAE": 1.5},
		string(models.KindGARCH): {"Note": "Volatility analysis model - metrics to be defined"},
		string(models.KindVAR):   {"Note": "Multivariate model - metrics to be defined"},
	}
}

// MetricsUseCase serves a static report. Every supported kind is always present.
type MetricsUseCase struct {
	report models.MetricsReport
}

// NewMetricsUseCase merges overrides (keyed by kind, any casing) onto the
// defaults. Keys that are not a supported kind are ignored.
func NewMetricsUseCase(overrides map[string]map[string]any) *MetricsUseCase {
	report := DefaultMetricsReport()
	for name, metrics := range overrides {
		kind, err := models.ParseModelKind(name)
		if err != nil {
			continue
		}
		entry := report[string(kind)]
		for k, v := range metrics {
			entry[strings.TrimSpace(k)] = v
		}
	}
	return &MetricsUseCase{report: report}
}

// GetMetrics returns a copy of the report.
func (uc *MetricsUseCase) GetMetrics() models.MetricsReport {
	out := make(models.MetricsReport, len(uc.report))
	for k, v := range uc.report {
		out[k] = maps.Clone(v)
	}
	return out
}
