package history

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/okian/marksense/internal/domain/model"
	"github.com/okian/marksense/internal/domain/ranking"
	"github.com/okian/marksense/pkg/logger"
	"github.com/okian/marksense/pkg/metrics"
)

// Operation names used in logs, metrics and StoreUnavailableError.Op.
const (
	OpSave       = "save"
	OpLoadByDate = "load_by_date"
	OpLoadDates  = "load_dates"
	OpLoadSeries = "load_series"
)

// Adapter stores ranked rosters in a Backend. Every backend call runs under
// a per-attempt timeout and transient failures are retried with exponential
// backoff. Loaded rosters are always re-ranked; stored ranks are ignored.
type Adapter struct {
	backend Backend
	schema  model.Schema
	agg     *ranking.Aggregator
	header  []string

	timeout        time.Duration
	attempts       int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	log            logger.Logger
}

// New creates an Adapter over backend for schema.
func New(backend Backend, schema model.Schema, agg *ranking.Aggregator, opts ...Option) *Adapter {
	a := &Adapter{
		backend:        backend,
		schema:         schema,
		agg:            agg,
		header:         schema.Header(),
		timeout:        DefaultTimeout,
		attempts:       DefaultRetryAttempts,
		initialBackoff: DefaultInitialBackoff,
		maxBackoff:     DefaultMaxBackoff,
		log:            logger.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.agg == nil {
		a.agg = ranking.New(schema)
	}
	a.log = a.log.Named("history")
	return a
}

// Close closes the backend.
func (a *Adapter) Close() error { return a.backend.Close() }

// Save upserts one row per record of r, keyed by (r.Date, name).
func (a *Adapter) Save(ctx context.Context, r ranking.RankedRoster) error {
	if r.Date.IsZero() {
		return &model.InvalidRecordError{Field: model.ColumnDate, Reason: "must be set before saving"}
	}
	rows := make([]model.HistoryRow, 0, len(r.Records))
	for _, rec := range r.Records {
		rows = append(rows, model.RowFromRecord(r.Date, rec))
	}

	err := a.do(ctx, OpSave, func(ctx context.Context) error {
		fresh, err := a.checkHeader(ctx)
		if err != nil {
			return err
		}
		if fresh {
			if err := a.backend.WriteHeader(ctx, a.header); err != nil {
				return err
			}
		}
		if len(rows) == 0 {
			return nil
		}
		return a.backend.Upsert(ctx, rows)
	})
	if err != nil {
		return err
	}
	a.log.Info(ctx, "roster saved",
		logger.String("date", model.FormatDay(r.Date)),
		logger.Int("rows", len(rows)))
	return nil
}

// LoadByDate reads the rows saved for date and ranks them afresh.
// ErrSnapshotNotFound is returned when nothing was saved for that day.
func (a *Adapter) LoadByDate(ctx context.Context, date time.Time) (ranking.RankedRoster, error) {
	day := model.Day(date)
	var rows []model.HistoryRow
	err := a.do(ctx, OpLoadByDate, func(ctx context.Context) error {
		fresh, err := a.checkHeader(ctx)
		if err != nil {
			return err
		}
		if fresh {
			rows = nil
			return nil
		}
		rows, err = a.backend.RowsByDate(ctx, day)
		return err
	})
	if err != nil {
		return ranking.RankedRoster{}, err
	}
	if len(rows) == 0 {
		return ranking.RankedRoster{}, fmt.Errorf("%w: %s", ErrSnapshotNotFound, model.FormatDay(day))
	}
	return a.rank(day, rows)
}

// LoadLatest loads the most recent saved date.
func (a *Adapter) LoadLatest(ctx context.Context) (ranking.RankedRoster, error) {
	dates, err := a.LoadDates(ctx)
	if err != nil {
		return ranking.RankedRoster{}, err
	}
	if len(dates) == 0 {
		return ranking.RankedRoster{}, fmt.Errorf("%w: history is empty", ErrSnapshotNotFound)
	}
	return a.LoadByDate(ctx, dates[len(dates)-1])
}

// LoadDates returns the distinct saved dates in ascending order.
func (a *Adapter) LoadDates(ctx context.Context) ([]time.Time, error) {
	var dates []time.Time
	err := a.do(ctx, OpLoadDates, func(ctx context.Context) error {
		fresh, err := a.checkHeader(ctx)
		if err != nil || fresh {
			dates = nil
			return err
		}
		dates, err = a.backend.Dates(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	out := normalizeDates(dates)
	metrics.UpdateSnapshotDates(len(out))
	return out, nil
}

// LoadSeriesForStudent returns name's progress over every saved date, in
// ascending date order. Each point's rank is recomputed within that day's
// full roster. An unknown student yields an empty series.
func (a *Adapter) LoadSeriesForStudent(ctx context.Context, name string) ([]model.SeriesPoint, error) {
	name = strings.TrimSpace(name)
	var rows []model.HistoryRow
	err := a.do(ctx, OpLoadSeries, func(ctx context.Context) error {
		fresh, err := a.checkHeader(ctx)
		if err != nil || fresh {
			rows = nil
			return err
		}
		rows, err = a.backend.RowsByName(ctx, name)
		return err
	})
	if err != nil {
		return nil, err
	}

	days := make([]time.Time, 0, len(rows))
	for _, row := range rows {
		days = append(days, row.Date)
	}
	days = normalizeDates(days)

	points := make([]model.SeriesPoint, 0, len(days))
	for _, day := range days {
		roster, err := a.LoadByDate(ctx, day)
		if err != nil {
			return nil, err
		}
		rec, ok := roster.Find(name)
		if !ok {
			continue
		}
		points = append(points, model.SeriesPoint{
			Date:    day,
			Total:   rec.Total,
			Average: rec.Average,
			Rank:    rec.Rank,
		})
	}
	return points, nil
}

// LoadAll loads every saved date as a ranked roster, oldest first.
func (a *Adapter) LoadAll(ctx context.Context) ([]ranking.RankedRoster, error) {
	dates, err := a.LoadDates(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ranking.RankedRoster, 0, len(dates))
	for _, day := range dates {
		r, err := a.LoadByDate(ctx, day)
		if errors.Is(err, ErrSnapshotNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (a *Adapter) rank(day time.Time, rows []model.HistoryRow) (ranking.RankedRoster, error) {
	records := make([]model.StudentRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.Record(a.schema)
		if err != nil {
			return ranking.RankedRoster{}, CorruptRow(err)
		}
		records = append(records, rec)
	}
	roster, err := model.NewRoster(day, records)
	if err != nil {
		return ranking.RankedRoster{}, CorruptRow(err)
	}
	return a.agg.RankRoster(roster), nil
}

// checkHeader compares the stored header with the configured one. A store
// without a header is fresh.
func (a *Adapter) checkHeader(ctx context.Context) (bool, error) {
	stored, err := a.backend.Header(ctx)
	if err != nil {
		return false, err
	}
	if len(stored) == 0 {
		return true, nil
	}
	actual := make([]string, len(stored))
	for i, h := range stored {
		actual[i] = strings.TrimSpace(h)
	}
	if !slices.Equal(actual, a.header) {
		return false, &SchemaMismatchError{Expected: slices.Clone(a.header), Actual: actual}
	}
	return false, nil
}

// do runs fn with a per-attempt timeout, retrying transient failures.
func (a *Adapter) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	start := time.Now()
	attempts := 0
	var last error

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = a.initialBackoff
	b.MaxInterval = a.maxBackoff

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		if attempts > 1 {
			metrics.RecordStoreRetry(op)
		}
		actx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()

		last = fn(actx)
		if last == nil {
			return struct{}{}, nil
		}
		if permanent(ctx, last) {
			return struct{}{}, backoff.Permanent(last)
		}
		return struct{}{}, last
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(a.attempts)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			a.log.Warn(ctx, "history store call failed, retrying",
				logger.String("op", op),
				logger.Int("attempt", attempts),
				logger.Duration("wait", wait),
				logger.Error(err))
		}),
	)
	elapsed := float64(time.Since(start).Milliseconds())
	if err == nil {
		metrics.RecordStoreOperation(op, metrics.OutcomeSuccess, elapsed)
		return nil
	}
	if last == nil {
		last = err
	}

	switch {
	case errors.Is(last, ErrSchemaMismatch):
		metrics.RecordStoreOperation(op, metrics.OutcomeMismatch, elapsed)
		a.log.Error(ctx, "history schema mismatch", logger.String("op", op), logger.Error(last))
		return last
	case errors.Is(last, ErrSnapshotNotFound):
		metrics.RecordStoreOperation(op, metrics.OutcomeNotFound, elapsed)
		return last
	case errors.Is(last, ErrCorruptRow), errors.Is(last, model.ErrInvalidRecord):
		metrics.RecordStoreOperation(op, metrics.OutcomeError, elapsed)
		a.log.Error(ctx, "history row rejected", logger.String("op", op), logger.Error(last))
		return last
	}

	metrics.RecordStoreOperation(op, metrics.OutcomeUnavailable, elapsed)
	a.log.Error(ctx, "history store unavailable",
		logger.String("op", op),
		logger.Int("attempts", attempts),
		logger.Error(last))
	return &StoreUnavailableError{Op: op, Attempts: attempts, Err: last}
}

// permanent reports errors that a retry cannot fix.
func permanent(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, ErrSchemaMismatch) ||
		errors.Is(err, ErrSnapshotNotFound) ||
		errors.Is(err, ErrCorruptRow) ||
		errors.Is(err, ErrClosed) ||
		errors.Is(err, model.ErrInvalidRecord)
}

func normalizeDates(in []time.Time) []time.Time {
	out := make([]time.Time, 0, len(in))
	for _, d := range in {
		out = append(out, model.Day(d))
	}
	slices.SortFunc(out, func(x, y time.Time) int { return x.Compare(y) })
	return slices.CompactFunc(out, func(x, y time.Time) bool { return x.Equal(y) })
}
