package usecase

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"testing"
	"time"

	"BrentCast/internal/domain/models"
	"BrentCast/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const brentCSV = `Date,Price
20-May-87,18.63
21-May-87,18.45
22-May-87,18.55
26-May-87,18.60
27-May-87,18.63
`

type flakyStore struct {
	fail  int
	calls int
	rows  []models.PricePoint
}

func (s *flakyStore) Load(context.Context) ([]models.PricePoint, error) {
	s.calls++
	if s.calls <= s.fail {
		return nil, errors.New("backend down")
	}
	return s.rows, nil
}

func (s *flakyStore) Close() error { return nil }

func loadCSV(t *testing.T) []models.PricePoint {
	t.Helper()
	rows, err := repository.ParseHistoryCSV(context.Background(), strings.NewReader(brentCSV))
	require.NoError(t, err)
	return rows
}

func TestHistoryGetAllIsOrderedAndComplete(t *testing.T) {
	rows := loadCSV(t)
	uc := NewHistoryUseCase(&flakyStore{rows: rows}, nil, nil)

	got, err := uc.GetAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 5)
	assert.True(t, sort.SliceIsSorted(got, func(i, j int) bool { return got[i].Date.Before(got[j].Date) }))
	assert.Equal(t, time.Date(1987, 5, 20, 0, 0, 0, 0, time.UTC), got[0].Date)

	// callers get a copy
	got[0].Price = -1
	again, err := uc.GetAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 18.63, again[0].Price)
}

func TestHistoryLoadRetriesAfterFailure(t *testing.T) {
	store := &flakyStore{fail: 1, rows: loadCSV(t)}
	uc := NewHistoryUseCase(store, nil, nil)

	_, err := uc.GetAll(context.Background())
	require.Error(t, err)

	got, err := uc.GetAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 5)

	_, _ = uc.GetAll(context.Background())
	assert.Equal(t, 2, store.calls)
}

func TestHistorySummary(t *testing.T) {
	uc := NewHistoryUseCase(&flakyStore{rows: loadCSV(t)}, nil, nil)

	s, err := uc.Summary(context.Background(), intp(3))
	require.NoError(t, err)
	assert.Equal(t, 5, s.Count)
	assert.Equal(t, 3, s.Window)
	assert.Equal(t, 18.45, s.MinPrice)
	assert.Equal(t, 18.63, s.MaxPrice)
	assert.Equal(t, 18.63, s.LastPrice)
	assert.InDelta(t, (18.63+18.45+18.55+18.60+18.63)/5, s.MeanPrice, 1e-9)
	require.Len(t, s.MovingAvg, 3)
	assert.InDelta(t, (18.63+18.45+18.55)/3, s.MovingAvg[0], 1e-9)
	assert.Greater(t, s.Volatility, 0.0)
	assert.False(t, math.IsNaN(s.Volatility))

	def, err := uc.Summary(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultSummaryWindow, def.Window)
	assert.Empty(t, def.MovingAvg)

	_, err = uc.Summary(context.Background(), intp(0))
	assert.ErrorIs(t, err, models.ErrInvalidParameter)
}

func TestHistorySummaryEmptySeries(t *testing.T) {
	uc := NewHistoryUseCase(&flakyStore{}, nil, nil)
	s, err := uc.Summary(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, s.Count)
	assert.True(t, s.First.IsZero())
}
