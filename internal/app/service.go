// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/marksense/internal/domain/model"
	"github.com/okian/marksense/internal/domain/ranking"
	"github.com/okian/marksense/internal/domain/types"
	"github.com/okian/marksense/pkg/logger"
	"github.com/okian/marksense/pkg/metrics"
)

// LatestDate selects the most recent saved date wherever a date is accepted.
const LatestDate = "latest"

// Distribution fields.
const (
	FieldTotal   = "total"
	FieldAverage = "average"
)

// History is the persistence the service needs. *history.Adapter satisfies it.
type History interface {
	Save(ctx context.Context, r ranking.RankedRoster) error
	LoadByDate(ctx context.Context, date time.Time) (ranking.RankedRoster, error)
	LoadLatest(ctx context.Context) (ranking.RankedRoster, error)
	LoadDates(ctx context.Context) ([]time.Time, error)
	LoadSeriesForStudent(ctx context.Context, name string) ([]model.SeriesPoint, error)
	LoadAll(ctx context.Context) ([]ranking.RankedRoster, error)
	Close() error
}

// Service holds the session roster and mediates between the HTTP API,
// the aggregator and the history store.
type Service struct {
	mu sync.RWMutex

	schema  model.Schema
	agg     *ranking.Aggregator
	history History

	// Session state
	current    ranking.RankedRoster
	hasCurrent bool
	generation uint64 // bumped whenever current is replaced
	saves      int
	lastSaveID string
	started    bool

	// Configuration
	maxCompare int
	clock      func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the clock used for default dates.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.clock = now
		}
	}
}

// WithRand sets the generator used by random spotlights.
func WithRand(r *rand.Rand) Option {
	return func(s *Service) {
		s.rng = r
	}
}

// WithMaxCompare caps how many students one comparison may name.
func WithMaxCompare(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxCompare = n
		}
	}
}

// New constructs a Service over schema and history.
func New(schema model.Schema, history History, opts ...Option) *Service {
	s := &Service{
		schema:     schema,
		agg:        ranking.New(schema),
		history:    history,
		maxCompare: ranking.DefaultMaxCompare,
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start prepares the service. It is safe to call more than once.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	dates, err := s.history.LoadDates(ctx)
	if err != nil {
		// The store may come up later; requests report it per call.
		s.logger.Warn(ctx, "history store not reachable at start", logger.Error(err))
	}

	s.started = true
	s.logger.Info(ctx, "marksense service started",
		logger.Any("subjects", s.schema.Subjects()),
		logger.Int("saved_dates", len(dates)),
	)
	return nil
}

// Stop closes the history store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	if err := s.history.Close(); err != nil {
		s.logger.Error(context.Background(), "closing history store", logger.Error(err))
	}
	s.started = false
	s.logger.Info(context.Background(), "marksense service stopped")
}

// Schema returns the configured subject schema.
func (s *Service) Schema() model.Schema { return s.schema }

// SubmitRoster validates the submitted students, ranks them and makes the
// result the session roster.
func (s *Service) SubmitRoster(ctx context.Context, req types.SubmitRequest) (ranking.RankedRoster, error) {
	date, err := s.parseDate(req.Date)
	if err != nil {
		return ranking.RankedRoster{}, err
	}

	records := make([]model.StudentRecord, 0, len(req.Students))
	for i, in := range req.Students {
		rec, err := model.NewStudentRecord(s.schema, in.Name, in.Marks)
		if err != nil {
			s.recordInvalid(err)
			return ranking.RankedRoster{}, fmt.Errorf("student %d: %w", i+1, err)
		}
		records = append(records, rec)
	}
	roster, err := model.NewRoster(date, records)
	if err != nil {
		s.recordInvalid(err)
		return ranking.RankedRoster{}, err
	}

	ranked := s.agg.RankRoster(roster)
	metrics.RecordRosterRanked(len(ranked.Records))

	s.mu.Lock()
	s.current = ranked
	s.hasCurrent = true
	s.generation++
	s.mu.Unlock()

	s.log().Debug(ctx, "roster ranked",
		logger.String("date", model.FormatDay(date)),
		logger.Int("students", len(ranked.Records)),
		logger.Float64("class_average", ranked.ClassAverage),
		logger.Bool("empty", ranked.Empty),
	)
	return ranked, nil
}

// CurrentRoster returns the session roster. Without one an empty roster
// for today is returned.
func (s *Service) CurrentRoster(_ context.Context) ranking.RankedRoster {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.hasCurrent {
		empty := s.agg.Rank(nil)
		empty.Date = model.Day(s.clock())
		return empty
	}
	return s.current
}

// SaveCurrent persists the session roster. A non-empty date re-dates the
// roster before saving.
func (s *Service) SaveCurrent(ctx context.Context, date string) (types.SaveResult, error) {
	s.mu.RLock()
	roster, ok, gen := s.current, s.hasCurrent, s.generation
	s.mu.RUnlock()
	if !ok {
		return types.SaveResult{}, ErrNoRoster
	}
	if roster.Empty {
		return types.SaveResult{}, ranking.ErrEmptyRoster
	}

	if strings.TrimSpace(date) != "" {
		d, err := model.ParseDay(date)
		if err != nil {
			return types.SaveResult{}, err
		}
		roster.Date = d
	}

	id := uuid.NewString()
	if err := s.history.Save(ctx, roster); err != nil {
		s.log().Error(ctx, "save failed", logger.String("save_id", id), logger.Error(err))
		return types.SaveResult{}, err
	}

	s.mu.Lock()
	s.saves++
	s.lastSaveID = id
	// A roster submitted while the save ran keeps its own date.
	if s.generation == gen {
		s.current.Date = roster.Date
	}
	s.mu.Unlock()

	s.log().Info(ctx, "roster saved",
		logger.String("save_id", id),
		logger.String("date", model.FormatDay(roster.Date)),
		logger.Int("students", len(roster.Records)),
	)
	return types.SaveResult{SaveID: id, Date: model.FormatDay(roster.Date), Students: len(roster.Records)}, nil
}

// LoadIntoSession loads a saved date ("" or "latest" for the most recent)
// and makes it the session roster.
func (s *Service) LoadIntoSession(ctx context.Context, date string) (ranking.RankedRoster, error) {
	if strings.TrimSpace(date) == "" {
		date = LatestDate
	}
	r, err := s.Snapshot(ctx, date)
	if err != nil {
		return ranking.RankedRoster{}, err
	}
	s.mu.Lock()
	s.current = r
	s.hasCurrent = true
	s.generation++
	s.mu.Unlock()
	metrics.RecordRosterRanked(len(r.Records))
	return r, nil
}

// Dates lists the saved dates in ascending order.
func (s *Service) Dates(ctx context.Context) ([]time.Time, error) {
	return s.history.LoadDates(ctx)
}

// Snapshot loads a saved date without touching the session. date is a
// 2006-01-02 day or "latest".
func (s *Service) Snapshot(ctx context.Context, date string) (ranking.RankedRoster, error) {
	if strings.EqualFold(strings.TrimSpace(date), LatestDate) {
		return s.history.LoadLatest(ctx)
	}
	d, err := model.ParseDay(date)
	if err != nil {
		return ranking.RankedRoster{}, err
	}
	return s.history.LoadByDate(ctx, d)
}

// Series returns name's saved progress.
func (s *Service) Series(ctx context.Context, name string) ([]model.SeriesPoint, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &model.InvalidRecordError{Field: model.ColumnName, Reason: "must not be empty"}
	}
	points, err := s.history.LoadSeriesForStudent(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: %q", ranking.ErrStudentNotFound, name)
	}
	return points, nil
}

// Trends summarises every saved date: class average, top total and size.
func (s *Service) Trends(ctx context.Context) ([]types.TrendPoint, error) {
	all, err := s.history.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]types.TrendPoint, 0, len(all))
	for _, r := range all {
		p := types.TrendPoint{
			Date:         model.FormatDay(r.Date),
			ClassAverage: r.ClassAverage,
			Students:     len(r.Records),
		}
		if r.Highest != nil {
			p.TopTotal = r.Highest.Total
		}
		out = append(out, p)
	}
	return out, nil
}

// Compare returns the named students from the roster selected by date.
func (s *Service) Compare(ctx context.Context, names []string, date string) ([]model.StudentRecord, error) {
	r, err := s.roster(ctx, date)
	if err != nil {
		return nil, err
	}
	return ranking.Compare(r, names, s.maxCompare)
}

// Spotlight picks one student from the roster selected by date.
func (s *Service) Spotlight(ctx context.Context, mode, name, date string) (model.StudentRecord, error) {
	m, err := ranking.ParseSpotlightMode(mode)
	if err != nil {
		return model.StudentRecord{}, err
	}
	r, err := s.roster(ctx, date)
	if err != nil {
		return model.StudentRecord{}, err
	}
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return ranking.Spotlight(r, m, name, s.rng)
}

// Distribution buckets totals or averages of the roster selected by date.
func (s *Service) Distribution(ctx context.Context, field string, bins int, date string) ([]ranking.Bucket, error) {
	r, err := s.roster(ctx, date)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(strings.TrimSpace(field)) {
	case "", FieldTotal:
		return ranking.Distribution(r.Totals(), bins), nil
	case FieldAverage:
		return ranking.Distribution(r.Averages(), bins), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limits := make(map[string]float64, s.schema.SubjectCount())
	for _, sub := range s.schema.Subjects() {
		limits[sub] = s.schema.MaxFor(sub)
	}
	stats := map[string]interface{}{
		"started":         s.started,
		"subjects":        s.schema.Subjects(),
		"maxMarks":        s.schema.MaxMarks(),
		"subjectMaxMarks": limits,
		"hasRoster":       s.hasCurrent,
		"saves":           s.saves,
		"maxCompare":      s.maxCompare,
	}
	if s.hasCurrent {
		stats["rosterDate"] = model.FormatDay(s.current.Date)
		stats["students"] = len(s.current.Records)
		stats["classAverage"] = s.current.ClassAverage
	}
	if s.lastSaveID != "" {
		stats["lastSaveId"] = s.lastSaveID
	}
	return stats
}

// roster resolves date to the session roster ("") or a saved one.
func (s *Service) roster(ctx context.Context, date string) (ranking.RankedRoster, error) {
	if strings.TrimSpace(date) == "" {
		s.mu.RLock()
		defer s.mu.RUnlock()
		if !s.hasCurrent {
			return ranking.RankedRoster{}, ErrNoRoster
		}
		return s.current, nil
	}
	return s.Snapshot(ctx, date)
}

func (s *Service) parseDate(date string) (time.Time, error) {
	if strings.TrimSpace(date) == "" {
		return model.Day(s.clock()), nil
	}
	return model.ParseDay(date)
}

func (s *Service) recordInvalid(err error) {
	var invalid *model.InvalidRecordError
	if errors.As(err, &invalid) {
		metrics.RecordValidationFailure(invalid.Field)
	}
}

func (s *Service) log() logger.Logger {
	if s.logger == nil {
		return logger.Nop()
	}
	return s.logger
}
