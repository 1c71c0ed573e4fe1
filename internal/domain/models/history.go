package models

import "time"

// PricePoint is one observation of the commodity price series.
type PricePoint struct {
	Date  time.Time
	Price float64
}

// HistorySummary describes the loaded series for dashboards.
type HistorySummary struct {
	Count      int
	First      time.Time
	Last       time.Time
	MinPrice   float64
	MaxPrice   float64
	LastPrice  float64
	MeanPrice  float64
	Window     int
	MovingAvg  []float64
	Volatility float64
}

// MetricsReport maps a model kind name to metric name to a number or a note.
type MetricsReport map[string]map[string]any
