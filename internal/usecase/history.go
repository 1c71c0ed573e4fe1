package usecase

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"BrentCast/internal/domain/models"
	domrepo "BrentCast/internal/domain/repository"
	"BrentCast/internal/services/features"
	applogger "BrentCast/pkg/logger"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultSummaryWindow matches the moving average drawn on the dashboard.
const DefaultSummaryWindow = 30

// HistoryUseCase serves the price series from memory. The store is read once;
// a failed read is retried on the next call.
type HistoryUseCase struct {
	store   domrepo.HistoryStore
	metrics domrepo.Metrics
	log     *applogger.Logger

	mu     sync.RWMutex
	series []models.PricePoint
	loaded bool
}

func NewHistoryUseCase(store domrepo.HistoryStore, m domrepo.Metrics, l *applogger.Logger) *HistoryUseCase {
	if l == nil {
		l = applogger.Nop()
	}
	return &HistoryUseCase{store: store, metrics: m, log: l}
}

// Load reads the store if it has not been read yet.
func (uc *HistoryUseCase) Load(ctx context.Context) error {
	uc.mu.RLock()
	loaded := uc.loaded
	uc.mu.RUnlock()
	if loaded {
		return nil
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()
	if uc.loaded {
		return nil
	}

	start := time.Now()
	points, err := uc.store.Load(ctx)
	if err != nil {
		uc.log.Error("history load failed", applogger.Error(err))
		return fmt.Errorf("load history: %w", err)
	}
	uc.series = points
	uc.loaded = true
	if uc.metrics != nil {
		uc.metrics.RecordHistoryRows(len(points))
	}
	uc.log.Info("history ready",
		applogger.Int("rows", len(points)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

// GetAll returns the full series in ascending date order. The slice is a copy.
func (uc *HistoryUseCase) GetAll(ctx context.Context) ([]models.PricePoint, error) {
	if err := uc.Load(ctx); err != nil {
		return nil, err
	}
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	return slices.Clone(uc.series), nil
}

// Summary describes the series. A nil window selects DefaultSummaryWindow.
func (uc *HistoryUseCase) Summary(ctx context.Context, window *int) (*models.HistorySummary, error) {
	w := DefaultSummaryWindow
	if window != nil {
		w = *window
	}
	if w < 1 {
		return nil, models.InvalidParam("", "window", "window must be a positive integer, got %d", w)
	}

	if err := uc.Load(ctx); err != nil {
		return nil, err
	}
	uc.mu.RLock()
	series := uc.series
	uc.mu.RUnlock()

	out := &models.HistorySummary{Count: len(series), Window: w}
	if len(series) == 0 {
		return out, nil
	}

	prices := features.Prices(series)
	out.First = series[0].Date
	out.Last = series[len(series)-1].Date
	out.MinPrice = floats.Min(prices)
	out.MaxPrice = floats.Max(prices)
	out.LastPrice = prices[len(prices)-1]
	out.MeanPrice = stat.Mean(prices, nil)
	out.MovingAvg = features.MovingAverage(prices, w)

	rets := features.ComputeLogReturns(prices)
	out.Volatility = features.RealizedVolatility(rets, min(w, len(rets)), features.TradingDaysPerYear)
	return out, nil
}
