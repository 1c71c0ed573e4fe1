package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"BrentCast/internal/domain/models"
	domrepo "BrentCast/internal/domain/repository"
	"BrentCast/pkg/util"
)

// CSVHistoryStore reads a Date,Price file such as the published Brent series.
// Extra columns are ignored; column names are matched case-insensitively.
type CSVHistoryStore struct {
	path string
}

func NewCSVHistoryStore(path string) *CSVHistoryStore {
	return &CSVHistoryStore{path: path}
}

func (s *CSVHistoryStore) Load(ctx context.Context) ([]models.PricePoint, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	defer f.Close()
	return ParseHistoryCSV(ctx, f)
}

func (s *CSVHistoryStore) Close() error { return nil }

// ParseHistoryCSV decodes rows and returns them sorted ascending by date.
func ParseHistoryCSV(ctx context.Context, r io.Reader) ([]models.PricePoint, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	dateCol, priceCol := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case "date", "day", "timestamp":
			dateCol = i
		case "price", "close", "value":
			priceCol = i
		}
	}
	if dateCol < 0 || priceCol < 0 {
		return nil, fmt.Errorf("history header %v needs Date and Price columns", header)
	}

	out := make([]models.PricePoint, 0, 4096)
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if line%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if len(rec) <= dateCol || len(rec) <= priceCol {
			return nil, fmt.Errorf("line %d: expected at least %d fields", line, max(dateCol, priceCol)+1)
		}
		d, ok := util.ParseTime(rec[dateCol])
		if !ok {
			return nil, fmt.Errorf("line %d: bad date %q", line, rec[dateCol])
		}
		p, err := strconv.ParseFloat(strings.TrimSpace(rec[priceCol]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad price %q", line, rec[priceCol])
		}
		out = append(out, models.PricePoint{Date: d, Price: p})
	}

	SortByDate(out)
	return out, nil
}

// SortByDate orders points ascending by date, keeping input order for ties.
func SortByDate(points []models.PricePoint) {
	sort.SliceStable(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
}

var _ domrepo.HistoryStore = (*CSVHistoryStore)(nil)
