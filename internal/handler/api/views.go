package api

import (
	"time"

	"BrentCast/internal/domain/models"
)

const dateLayout = "2006-01-02"

type pricePointView struct {
	Date  string  `json:"Date"`
	Price float64 `json:"Price"`
}

func toPricePoints(points []models.PricePoint) []pricePointView {
	out := make([]pricePointView, len(points))
	for i, p := range points {
		out[i] = pricePointView{Date: p.Date.Format(dateLayout), Price: p.Price}
	}
	return out
}

type summaryView struct {
	Count      int       `json:"count"`
	First      string    `json:"first,omitempty"`
	Last       string    `json:"last,omitempty"`
	MinPrice   float64   `json:"min_price"`
	MaxPrice   float64   `json:"max_price"`
	LastPrice  float64   `json:"last_price"`
	MeanPrice  float64   `json:"mean_price"`
	Window     int       `json:"window"`
	MovingAvg  []float64 `json:"moving_average"`
	Volatility float64   `json:"volatility"`
}

func toSummaryView(s *models.HistorySummary) summaryView {
	v := summaryView{
		Count:      s.Count,
		MinPrice:   s.MinPrice,
		MaxPrice:   s.MaxPrice,
		LastPrice:  s.LastPrice,
		MeanPrice:  s.MeanPrice,
		Window:     s.Window,
		MovingAvg:  s.MovingAvg,
		Volatility: s.Volatility,
	}
	if v.MovingAvg == nil {
		v.MovingAvg = []float64{}
	}
	if !s.First.IsZero() {
		v.First = s.First.Format(dateLayout)
		v.Last = s.Last.Format(dateLayout)
	}
	return v
}

type modelStatusView struct {
	Kind      string     `json:"kind"`
	Available bool       `json:"available"`
	Source    string     `json:"source,omitempty"`
	Backend   string     `json:"backend,omitempty"`
	LoadedAt  *time.Time `json:"loaded_at,omitempty"`
	Error     string     `json:"error,omitempty"`
}

func toModelStatusViews(statuses []models.ModelStatus) []modelStatusView {
	out := make([]modelStatusView, len(statuses))
	for i, s := range statuses {
		v := modelStatusView{
			Kind:      string(s.Kind),
			Available: s.Available,
			Source:    s.Source,
			Backend:   s.Backend,
			Error:     s.Error,
		}
		if !s.LoadedAt.IsZero() {
			t := s.LoadedAt
			v.LoadedAt = &t
		}
		out[i] = v
	}
	return out
}

type batchView struct {
	Steps   int               `json:"steps"`
	Results map[string]any    `json:"results"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// forecastBody shapes each kind's result the way its endpoint returns it.
func forecastBody(res models.ForecastResult) map[string]any {
	switch res.Kind {
	case models.KindLSTM:
		return map[string]any{"prediction": res.Values}
	case models.KindGARCH:
		return map[string]any{"volatility": res.Values}
	case models.KindVAR:
		return map[string]any{"forecast": res.Values, "series": res.Series}
	default:
		return map[string]any{"forecast": res.Values}
	}
}

func toBatchView(b *models.BatchForecast) batchView {
	v := batchView{Steps: b.Steps, Results: make(map[string]any, len(b.Results))}
	for k, r := range b.Results {
		v.Results[string(k)] = forecastBody(r)
	}
	if len(b.Errors) > 0 {
		v.Errors = make(map[string]string, len(b.Errors))
		for k, e := range b.Errors {
			v.Errors[string(k)] = e
		}
	}
	return v
}
