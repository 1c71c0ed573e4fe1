package models

import (
	"fmt"
	"strings"
	"time"
)

// ModelKind identifies one of the four supported forecasting model families.
type ModelKind string

const (
	KindARIMA ModelKind = "ARIMA"
	KindGARCH ModelKind = "GARCH"
	KindVAR   ModelKind = "VAR"
	KindLSTM  ModelKind = "LSTM"
)

// AllKinds lists the supported kinds in reporting order.
var AllKinds = []ModelKind{KindARIMA, KindLSTM, KindGARCH, KindVAR}

// ParseModelKind accepts any casing ("arima", "Arima", "ARIMA").
func ParseModelKind(s string) (ModelKind, error) {
	k := ModelKind(strings.ToUpper(strings.TrimSpace(s)))
	switch k {
	case KindARIMA, KindGARCH, KindVAR, KindLSTM:
		return k, nil
	}
	return "", NewForecastError(ModelKind(s), ErrUnknownModelKind, "", fmt.Errorf("unsupported model kind %q", s))
}

// Lower is the path-friendly form of the kind.
func (k ModelKind) Lower() string { return strings.ToLower(string(k)) }

// HorizonBased reports whether the kind takes a step count instead of an input sequence.
func (k ModelKind) HorizonBased() bool { return k != KindLSTM }

// ForecastRequest is a tagged variant over kind. Steps is used by ARIMA, GARCH
// and VAR and is nil when the caller omitted it. Input is used by LSTM and holds
// the caller's raw value (a scalar or a possibly nested array) before numeric
// coercion.
type ForecastRequest struct {
	Kind  ModelKind
	Steps *int
	Input any
	// Raw marks Input as price units that must be scaled before inference.
	Raw bool
}

// ForecastParams is the validated, normalized request handed to an adapter.
type ForecastParams struct {
	Steps  int
	Series []float64
	Raw    bool
}

// ForecastResult is what every adapter returns. Values is never empty on success.
type ForecastResult struct {
	Kind   ModelKind
	Values []float64
	// Series carries one sequence per tracked variable (VAR only).
	Series map[string][]float64
}

// ModelStatus describes whether a kind's artifact was loaded at startup.
type ModelStatus struct {
	Kind      ModelKind
	Available bool
	Source    string
	Backend   string
	LoadedAt  time.Time
	Error     string
}

// ForecastEvent is published after each successful forecast.
type ForecastEvent struct {
	ID         string
	Kind       ModelKind
	Steps      int
	InputLen   int
	Values     []float64
	Cached     bool
	DurationMs int64
	At         time.Time
}

// BatchForecast is the outcome of forecasting every horizon-based kind at once.
type BatchForecast struct {
	Steps   int
	Results map[ModelKind]ForecastResult
	Errors  map[ModelKind]string
}
