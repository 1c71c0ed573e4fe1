package repository

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"BrentCast/internal/domain/models"
	"BrentCast/pkg/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `Date,Price
20-May-87,18.63
21-May-87,18.45
2020-04-21,9.12
1987-05-22,18.55
`

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func TestParseHistoryCSVSortsAscending(t *testing.T) {
	points, err := ParseHistoryCSV(context.Background(), strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, points, 4)

	for i := 1; i < len(points); i++ {
		assert.False(t, points[i].Date.Before(points[i-1].Date), "row %d out of order", i)
	}
	assert.Equal(t, day(1987, time.May, 20), points[0].Date)
	assert.Equal(t, 18.55, points[2].Price)
	assert.Equal(t, 9.12, points[3].Price)
}

func TestParseHistoryCSVColumnsAnyOrder(t *testing.T) {
	in := "price,extra,date\n70.5,x,2022-01-03\n"
	points, err := ParseHistoryCSV(context.Background(), strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, 70.5, points[0].Price)
}

func TestParseHistoryCSVErrors(t *testing.T) {
	cases := map[string]string{
		"no price column": "Date,Volume\n2020-01-01,1\n",
		"bad date":        "Date,Price\nsoon,1\n",
		"bad price":       "Date,Price\n2020-01-01,abc\n",
		"short row":       "Date,Price\n2020-01-01\n",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseHistoryCSV(context.Background(), strings.NewReader(in))
			assert.Error(t, err)
		})
	}
}

func TestCSVHistoryStoreLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "brent.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))

	store := NewCSVHistoryStore(path)
	points, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, points, 4)
	assert.NoError(t, store.Close())

	_, err = NewCSVHistoryStore(filepath.Join(t.TempDir(), "missing.csv")).Load(context.Background())
	assert.Error(t, err)
}

func TestSQLiteHistoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.Open(ctx, ":memory:")
	require.NoError(t, err)

	store := NewSQLiteHistoryStore(db, "brent_prices", nil)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Init(ctx))

	in := []models.PricePoint{
		{Date: day(2021, time.March, 2), Price: 64.1},
		{Date: day(2021, time.March, 1), Price: 63.7},
		{Date: day(2021, time.March, 3), Price: 66.0},
	}
	require.NoError(t, store.StoreBatch(ctx, in))
	// re-importing the same dates replaces rather than duplicates
	require.NoError(t, store.StoreBatch(ctx, in[:1]))

	out, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, day(2021, time.March, 1), out[0].Date)
	assert.Equal(t, 63.7, out[0].Price)
	assert.Equal(t, 66.0, out[2].Price)
	assert.NoError(t, store.Health(ctx))
}

func TestLoadQueryCollapsesReplacedRows(t *testing.T) {
	ch := &SQLHistoryStore{table: "market.brent_prices", d: clickhouseDialect}
	assert.Equal(t, "SELECT date, price FROM market.brent_prices FINAL ORDER BY date ASC", ch.loadQuery())

	lite := &SQLHistoryStore{table: "brent_prices", d: sqliteDialect}
	assert.NotContains(t, lite.loadQuery(), "FINAL")
}
