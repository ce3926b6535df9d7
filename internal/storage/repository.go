package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"portfolio-watch/internal/portfolio"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	createDailyLogSQL = `CREATE TABLE IF NOT EXISTS portfolio_value_log (
        id              BIGSERIAL PRIMARY KEY,
        date            TIMESTAMPTZ NOT NULL,
        day             DATE NOT NULL UNIQUE,
        date_period     TEXT NOT NULL DEFAULT 'd',
        portfolio_value BIGINT NOT NULL,
        threshold       TEXT NOT NULL,
        notes           TEXT NOT NULL DEFAULT '',
        created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
        updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
    );`

	upsertDailyLogSQL = `INSERT INTO portfolio_value_log (
        date,
        day,
        date_period,
        portfolio_value,
        threshold,
        notes
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    )
    ON CONFLICT (day) DO UPDATE
    SET
        date            = EXCLUDED.date,
        date_period     = EXCLUDED.date_period,
        portfolio_value = EXCLUDED.portfolio_value,
        threshold       = EXCLUDED.threshold,
        notes           = EXCLUDED.notes,
        updated_at      = now();`

	listDailyLogsBetweenSQL = `SELECT
        id,
        date,
        day,
        date_period,
        portfolio_value,
        threshold,
        notes,
        created_at,
        updated_at
    FROM portfolio_value_log
    WHERE day >= $1
      AND day < $2
    ORDER BY day;`

	listRecentDailyLogsSQL = `SELECT
        id,
        date,
        day,
        date_period,
        portfolio_value,
        threshold,
        notes,
        created_at,
        updated_at
    FROM portfolio_value_log
    ORDER BY day DESC
    LIMIT $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// DailyLogStore persists one valuation row per calendar day.
type DailyLogStore interface {
	UpsertDailyLog(ctx context.Context, row DailyLog) error
	ListRecent(ctx context.Context, limit int) ([]DailyLog, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]DailyLog, error)
	Close() error
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store is the PostgreSQL daily log store.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// EnsureSchema creates the daily log table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, createDailyLogSQL); err != nil {
		return fmt.Errorf("create portfolio_value_log: %w", err)
	}
	return nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// best effort; the session lock dies with the connection anyway
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

// UpsertDailyLog inserts the row or updates the existing row of the same day.
func (s *Store) UpsertDailyLog(ctx context.Context, row DailyLog) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	period := row.Period
	if period == "" {
		period = PeriodDaily
	}

	_, execErr := pool.Exec(ctx, upsertDailyLogSQL,
		row.Date,
		DayOf(row.Day),
		period,
		row.TotalValue,
		string(row.Status),
		row.Notes,
	)
	if execErr != nil {
		return fmt.Errorf("upsert daily log: %w", execErr)
	}
	return nil
}

// ListBetween lists rows whose day is in [from, to).
func (s *Store) ListBetween(ctx context.Context, from, to time.Time) ([]DailyLog, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listDailyLogsBetweenSQL, DayOf(from), DayOf(to))
	if queryErr != nil {
		return nil, fmt.Errorf("list daily logs between: %w", queryErr)
	}
	defer rows.Close()

	return collectDailyLogs(rows, 0)
}

// ListRecent lists the most recent rows ordered by descending day.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]DailyLog, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentDailyLogsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent daily logs: %w", queryErr)
	}
	defer rows.Close()

	return collectDailyLogs(rows, limit)
}

func collectDailyLogs(rows pgx.Rows, capacity int) ([]DailyLog, error) {
	logs := make([]DailyLog, 0, capacity)
	for rows.Next() {
		var (
			row    DailyLog
			status string
		)
		if err := rows.Scan(
			&row.ID,
			&row.Date,
			&row.Day,
			&row.Period,
			&row.TotalValue,
			&status,
			&row.Notes,
			&row.CreatedAt,
			&row.UpdatedAt,
		); err != nil {
			return nil, err
		}
		parsed, err := portfolio.ParseStatus(status)
		if err != nil {
			return nil, err
		}
		row.Status = parsed
		logs = append(logs, row)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return logs, nil
}

var (
	_ DailyLogStore  = (*Store)(nil)
	_ AdvisoryLocker = (*Store)(nil)
)
