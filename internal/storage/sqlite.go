package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"portfolio-watch/internal/portfolio"
)

const (
	sqliteDayLayout = time.DateOnly

	sqliteSchemaSQL = `CREATE TABLE IF NOT EXISTS portfolio_value_log (
        id              INTEGER PRIMARY KEY AUTOINCREMENT,
        date            TEXT NOT NULL,
        day             TEXT NOT NULL UNIQUE,
        date_period     TEXT NOT NULL DEFAULT 'd',
        portfolio_value INTEGER NOT NULL,
        threshold       TEXT NOT NULL,
        notes           TEXT NOT NULL DEFAULT '',
        created_at      TEXT NOT NULL,
        updated_at      TEXT NOT NULL
    )`

	sqliteUpsertSQL = `INSERT INTO portfolio_value_log (
        date, day, date_period, portfolio_value, threshold, notes, created_at, updated_at
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    ON CONFLICT(day) DO UPDATE SET
        date            = excluded.date,
        date_period     = excluded.date_period,
        portfolio_value = excluded.portfolio_value,
        threshold       = excluded.threshold,
        notes           = excluded.notes,
        updated_at      = excluded.updated_at`

	sqliteSelectColumns = `SELECT id, date, day, date_period, portfolio_value, threshold, notes, created_at, updated_at
    FROM portfolio_value_log`
)

// SQLiteStore keeps the daily log in a local SQLite file.
type SQLiteStore struct {
	db  *sql.DB
	mu  sync.Mutex
	now func() time.Time
}

// OpenSQLite opens (or creates) the database file and its schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create portfolio_value_log: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// UpsertDailyLog inserts the row or updates the existing row of the same day.
func (s *SQLiteStore) UpsertDailyLog(ctx context.Context, row DailyLog) error {
	if s == nil || s.db == nil {
		return ErrNotConfigured
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	period := row.Period
	if period == "" {
		period = PeriodDaily
	}
	now := s.now().UTC().Format(time.RFC3339)

	_, err := s.db.ExecContext(ctx, sqliteUpsertSQL,
		row.Date.UTC().Format(time.RFC3339),
		DayOf(row.Day).Format(sqliteDayLayout),
		period,
		row.TotalValue,
		string(row.Status),
		row.Notes,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("upsert daily log: %w", err)
	}
	return nil
}

// ListRecent lists the most recent rows ordered by descending day.
func (s *SQLiteStore) ListRecent(ctx context.Context, limit int) ([]DailyLog, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotConfigured
	}
	rows, err := s.db.QueryContext(ctx, sqliteSelectColumns+` ORDER BY day DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent daily logs: %w", err)
	}
	defer rows.Close()
	return scanSQLiteRows(rows)
}

// ListBetween lists rows whose day is in [from, to).
func (s *SQLiteStore) ListBetween(ctx context.Context, from, to time.Time) ([]DailyLog, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotConfigured
	}
	rows, err := s.db.QueryContext(ctx, sqliteSelectColumns+` WHERE day >= ? AND day < ? ORDER BY day`,
		DayOf(from).Format(sqliteDayLayout), DayOf(to).Format(sqliteDayLayout))
	if err != nil {
		return nil, fmt.Errorf("list daily logs between: %w", err)
	}
	defer rows.Close()
	return scanSQLiteRows(rows)
}

func scanSQLiteRows(rows *sql.Rows) ([]DailyLog, error) {
	logs := make([]DailyLog, 0)
	for rows.Next() {
		var (
			row                                 DailyLog
			date, day, status, created, updated string
		)
		if err := rows.Scan(&row.ID, &date, &day, &row.Period, &row.TotalValue, &status, &row.Notes, &created, &updated); err != nil {
			return nil, err
		}

		var err error
		if row.Date, err = time.Parse(time.RFC3339, date); err != nil {
			return nil, fmt.Errorf("parse date: %w", err)
		}
		if row.Day, err = time.Parse(sqliteDayLayout, day); err != nil {
			return nil, fmt.Errorf("parse day: %w", err)
		}
		if row.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		if row.UpdatedAt, err = time.Parse(time.RFC3339, updated); err != nil {
			return nil, fmt.Errorf("parse updated_at: %w", err)
		}
		if row.Status, err = portfolio.ParseStatus(status); err != nil {
			return nil, err
		}
		logs = append(logs, row)
	}
	return logs, rows.Err()
}

var _ DailyLogStore = (*SQLiteStore)(nil)
