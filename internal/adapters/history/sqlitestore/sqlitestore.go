// Package sqlitestore keeps history rows in a SQLite database.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/okian/marksense/internal/adapters/history"
	"github.com/okian/marksense/internal/domain/model"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS history_header (
	position    INTEGER PRIMARY KEY,
	column_name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS history_rows (
	day     TEXT    NOT NULL,
	name    TEXT    NOT NULL,
	marks   TEXT    NOT NULL,
	total   REAL    NOT NULL,
	average REAL    NOT NULL,
	rank    INTEGER NOT NULL,
	PRIMARY KEY (day, name)
);
CREATE INDEX IF NOT EXISTS history_rows_name ON history_rows (name);
`

// Store persists history in SQLite.
type Store struct {
	sqlDB *sql.DB
}

var _ history.Backend = (*Store)(nil)

// Open opens the database at path and creates the tables when missing.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schemaDDL); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create history tables: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) Header(ctx context.Context) ([]string, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT column_name FROM history_header ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query header: %w", err)
	}
	defer rows.Close()

	header := []string{}
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return nil, fmt.Errorf("scan header: %w", err)
		}
		header = append(header, col)
	}
	return header, rows.Err()
}

func (s *Store) WriteHeader(ctx context.Context, header []string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM history_header`); err != nil {
			return fmt.Errorf("clear header: %w", err)
		}
		for i, col := range header {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO history_header (position, column_name) VALUES (?, ?)`, i, col); err != nil {
				return fmt.Errorf("insert header column %q: %w", col, err)
			}
		}
		return nil
	})
}

func (s *Store) Upsert(ctx context.Context, rows []model.HistoryRow) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO history_rows (day, name, marks, total, average, rank)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT (day, name) DO UPDATE SET
			   marks = excluded.marks,
			   total = excluded.total,
			   average = excluded.average,
			   rank = excluded.rank`)
		if err != nil {
			return fmt.Errorf("prepare upsert: %w", err)
		}
		defer stmt.Close()

		for _, r := range rows {
			marks, err := history.EncodeMarks(r.Marks)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx,
				model.FormatDay(model.Day(r.Date)), r.Name, marks, r.Total, r.Average, r.Rank); err != nil {
				return fmt.Errorf("upsert %s/%s: %w", model.FormatDay(r.Date), r.Name, err)
			}
		}
		return nil
	})
}

func (s *Store) RowsByDate(ctx context.Context, date time.Time) ([]model.HistoryRow, error) {
	return s.query(ctx,
		`SELECT day, name, marks, total, average, rank FROM history_rows WHERE day = ? ORDER BY name`,
		model.FormatDay(model.Day(date)))
}

func (s *Store) RowsByName(ctx context.Context, name string) ([]model.HistoryRow, error) {
	return s.query(ctx,
		`SELECT day, name, marks, total, average, rank FROM history_rows WHERE name = ? ORDER BY day`,
		name)
}

func (s *Store) Dates(ctx context.Context) ([]time.Time, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT DISTINCT day FROM history_rows ORDER BY day`)
	if err != nil {
		return nil, fmt.Errorf("query dates: %w", err)
	}
	defer rows.Close()

	out := []time.Time{}
	for rows.Next() {
		var day string
		if err := rows.Scan(&day); err != nil {
			return nil, fmt.Errorf("scan date: %w", err)
		}
		d, err := model.ParseDay(day)
		if err != nil {
			return nil, history.CorruptRow(err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]model.HistoryRow, error) {
	rows, err := s.sqlDB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	out := []model.HistoryRow{}
	for rows.Next() {
		var (
			day, name, marks string
			r                model.HistoryRow
		)
		if err := rows.Scan(&day, &name, &marks, &r.Total, &r.Average, &r.Rank); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if r.Date, err = model.ParseDay(day); err != nil {
			return nil, history.CorruptRow(err)
		}
		if r.Marks, err = history.DecodeMarks(marks); err != nil {
			return nil, err
		}
		r.Name = name
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
