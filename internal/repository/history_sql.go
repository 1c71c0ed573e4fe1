package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"BrentCast/internal/domain/models"
	domrepo "BrentCast/internal/domain/repository"
	pkgch "BrentCast/pkg/clickhouse"
	applogger "BrentCast/pkg/logger"
)

// dialect captures the few statements that differ between backends.
type dialect struct {
	name       string
	createStmt string
	// selectStmt reads every row; ClickHouse needs FINAL so rows replaced by a
	// re-import are collapsed before the background merge runs.
	selectStmt string
	// dates are stored as Date in ClickHouse and unix seconds in SQLite
	encodeDate func(time.Time) any
	scanDate   func(*sql.Rows) (time.Time, float64, error)
}

var clickhouseDialect = dialect{
	name:       "clickhouse",
	createStmt: "CREATE TABLE IF NOT EXISTS %s (date Date, price Float64) ENGINE = ReplacingMergeTree ORDER BY date",
	selectStmt: "SELECT date, price FROM %s FINAL ORDER BY date ASC",
	encodeDate: func(t time.Time) any { return t.UTC() },
	scanDate: func(rows *sql.Rows) (time.Time, float64, error) {
		var d time.Time
		var p float64
		err := rows.Scan(&d, &p)
		return d.UTC(), p, err
	},
}

var sqliteDialect = dialect{
	name:       "sqlite",
	createStmt: "CREATE TABLE IF NOT EXISTS %s (date INTEGER PRIMARY KEY, price REAL NOT NULL)",
	selectStmt: "SELECT date, price FROM %s ORDER BY date ASC",
	encodeDate: func(t time.Time) any { return t.UTC().Unix() },
	scanDate: func(rows *sql.Rows) (time.Time, float64, error) {
		var ts int64
		var p float64
		err := rows.Scan(&ts, &p)
		return time.Unix(ts, 0).UTC(), p, err
	},
}

// SQLHistoryStore reads and imports the price series in a SQL table with
// columns (date, price).
type SQLHistoryStore struct {
	db    *sql.DB
	table string
	d     dialect
	l     *applogger.Logger
	owned bool
}

// NewClickHouseHistoryStore reads from table (optionally database-qualified).
func NewClickHouseHistoryStore(ch *pkgch.Client, table string, l *applogger.Logger) *SQLHistoryStore {
	if !strings.Contains(table, ".") && ch.Database() != "" {
		table = ch.Database() + "." + table
	}
	return &SQLHistoryStore{db: ch.DB(), table: table, d: clickhouseDialect, l: orNop(l)}
}

// NewSQLiteHistoryStore takes ownership of db and closes it on Close.
func NewSQLiteHistoryStore(db *sql.DB, table string, l *applogger.Logger) *SQLHistoryStore {
	return &SQLHistoryStore{db: db, table: table, d: sqliteDialect, l: orNop(l), owned: true}
}

func orNop(l *applogger.Logger) *applogger.Logger {
	if l == nil {
		return applogger.Nop()
	}
	return l
}

// Init creates the table if it does not exist.
func (s *SQLHistoryStore) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(s.d.createStmt, s.table)); err != nil {
		return fmt.Errorf("%s create %s: %w", s.d.name, s.table, err)
	}
	return nil
}

func (s *SQLHistoryStore) Load(ctx context.Context) ([]models.PricePoint, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, s.loadQuery())
	if err != nil {
		s.l.Error("history query error",
			applogger.String("backend", s.d.name),
			applogger.String("table", s.table),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	out := make([]models.PricePoint, 0, 4096)
	for rows.Next() {
		d, p, err := s.d.scanDate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		out = append(out, models.PricePoint{Date: d, Price: p})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	SortByDate(out)
	s.l.Info("history loaded",
		applogger.String("backend", s.d.name),
		applogger.String("table", s.table),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

func (s *SQLHistoryStore) loadQuery() string {
	return fmt.Sprintf(s.d.selectStmt, s.table)
}

// StoreBatch inserts points with multi-row VALUES in chunks.
func (s *SQLHistoryStore) StoreBatch(ctx context.Context, points []models.PricePoint) error {
	const chunkSize = 2000
	for start := 0; start < len(points); start += chunkSize {
		end := min(start+chunkSize, len(points))

		values := make([]string, 0, end-start)
		args := make([]any, 0, (end-start)*2)
		for _, p := range points[start:end] {
			if p.Date.IsZero() {
				continue
			}
			values = append(values, "(?, ?)")
			args = append(args, s.d.encodeDate(p.Date), p.Price)
		}
		if len(values) == 0 {
			continue
		}
		verb := "INSERT INTO"
		if s.d.name == "sqlite" {
			verb = "INSERT OR REPLACE INTO"
		}
		q := fmt.Sprintf("%s %s (date, price) VALUES %s", verb, s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert history chunk %d-%d: %w", start, end, err)
		}
	}
	return nil
}

func (s *SQLHistoryStore) Health(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLHistoryStore) Close() error {
	if s.owned {
		return s.db.Close()
	}
	return nil
}

var _ domrepo.HistoryStore = (*SQLHistoryStore)(nil)
