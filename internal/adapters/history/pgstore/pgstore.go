// Package pgstore keeps history rows in PostgreSQL.
package pgstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/marksense/internal/adapters/history"
	"github.com/okian/marksense/internal/domain/model"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS history_header (
	position    INTEGER PRIMARY KEY,
	column_name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS history_rows (
	day     DATE             NOT NULL,
	name    TEXT             NOT NULL,
	marks   JSONB            NOT NULL,
	total   DOUBLE PRECISION NOT NULL,
	average DOUBLE PRECISION NOT NULL,
	rank    INTEGER          NOT NULL,
	PRIMARY KEY (day, name)
);
CREATE INDEX IF NOT EXISTS history_rows_name ON history_rows (name);
`

const upsertSQL = `
INSERT INTO history_rows (day, name, marks, total, average, rank)
VALUES ($1, $2, $3::jsonb, $4, $5, $6)
ON CONFLICT (day, name) DO UPDATE SET
	marks = EXCLUDED.marks,
	total = EXCLUDED.total,
	average = EXCLUDED.average,
	rank = EXCLUDED.rank`

// Store persists history in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ history.Backend = (*Store)(nil)

// Open connects to databaseURL and creates the tables when missing.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("postgres: database URL is required")
	}
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to parse database URL: %w", err)
	}
	if poolConfig.MaxConns == 0 {
		poolConfig.MaxConns = 4
	}
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaDDL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: create history tables: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Reset drops all history. Used by tests sharing one database.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE history_header, history_rows`)
	return err
}

func (s *Store) Header(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT column_name FROM history_header ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("postgres: query header: %w", err)
	}
	header, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres: scan header: %w", err)
	}
	if header == nil {
		header = []string{}
	}
	return header, nil
}

func (s *Store) WriteHeader(ctx context.Context, header []string) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM history_header`); err != nil {
			return fmt.Errorf("postgres: clear header: %w", err)
		}
		batch := &pgx.Batch{}
		for i, col := range header {
			batch.Queue(`INSERT INTO history_header (position, column_name) VALUES ($1, $2)`, i, col)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

func (s *Store) Upsert(ctx context.Context, rows []model.HistoryRow) error {
	batch := &pgx.Batch{}
	for _, r := range rows {
		marks, err := history.EncodeMarks(r.Marks)
		if err != nil {
			return err
		}
		batch.Queue(upsertSQL, model.Day(r.Date), r.Name, marks, r.Total, r.Average, r.Rank)
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("postgres: upsert rows: %w", err)
		}
		return nil
	})
}

func (s *Store) RowsByDate(ctx context.Context, date time.Time) ([]model.HistoryRow, error) {
	return s.query(ctx,
		`SELECT day, name, marks::text, total, average, rank FROM history_rows WHERE day = $1 ORDER BY name`,
		model.Day(date))
}

func (s *Store) RowsByName(ctx context.Context, name string) ([]model.HistoryRow, error) {
	return s.query(ctx,
		`SELECT day, name, marks::text, total, average, rank FROM history_rows WHERE name = $1 ORDER BY day`,
		name)
}

func (s *Store) Dates(ctx context.Context) ([]time.Time, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT day FROM history_rows ORDER BY day`)
	if err != nil {
		return nil, fmt.Errorf("postgres: query dates: %w", err)
	}
	dates, err := pgx.CollectRows(rows, pgx.RowTo[time.Time])
	if err != nil {
		return nil, fmt.Errorf("postgres: scan dates: %w", err)
	}
	out := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		out = append(out, model.Day(d))
	}
	return out, nil
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]model.HistoryRow, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query rows: %w", err)
	}
	defer rows.Close()

	out := []model.HistoryRow{}
	for rows.Next() {
		var (
			r     model.HistoryRow
			marks string
		)
		if err := rows.Scan(&r.Date, &r.Name, &marks, &r.Total, &r.Average, &r.Rank); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		if r.Marks, err = history.DecodeMarks(marks); err != nil {
			return nil, err
		}
		r.Date = model.Day(r.Date)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: read rows: %w", err)
	}
	return out, nil
}
