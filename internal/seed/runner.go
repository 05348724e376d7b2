package seed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/marksense/internal/domain/model"
	"github.com/okian/marksense/internal/domain/types"
	"github.com/okian/marksense/pkg/logger"
)

// Defaults applied to zero Config fields.
const (
	DefaultDays     = 7
	DefaultStudents = 30
	DefaultWorkers  = 4
	DefaultTimeout  = 10 * time.Second

	directoryPermission = 0750
	filePermission      = 0600
)

// ErrVerification is returned when the service disagrees with the local
// ranking or the history read back.
var ErrVerification = errors.New("seed verification failed")

// Run executes a complete seed run against cfg.BaseURL.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	c := withDefaults(*cfg)
	stats := &Stats{RunID: uuid.NewString(), StartTime: time.Now()}
	log := logger.Named("seed").With(logger.String("run_id", stats.RunID))

	log.Info(ctx, "starting marksense seed run",
		logger.String("baseURL", c.BaseURL),
		logger.Int("days", c.Days),
		logger.Int("students", c.Students),
		logger.Int("workers", c.Workers),
		logger.String("startDate", model.FormatDay(c.StartDate)))

	client := newHTTPClient(c.BaseURL, c.Timeout)

	// Step 1: Check service health
	if err := client.get(ctx, "/healthz", nil); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Learn the subject schema
	var info serverInfo
	if err := client.get(ctx, "/stats", &info); err != nil {
		return stats, fmt.Errorf("stats: %w", err)
	}
	schema, err := model.NewSchema(info.Subjects, info.MaxMarks, info.SubjectMaxMarks)
	if err != nil {
		return stats, fmt.Errorf("server schema: %w", err)
	}

	seed := c.Seed
	if seed == 0 {
		h := fnv.New64a()
		_, _ = h.Write([]byte(stats.RunID))
		seed = h.Sum64()
	}
	gen := NewGenerator(schema, seed)
	names := gen.Names(stats.RunID, c.Students)

	// Step 3: Submit, verify and save one roster per day
	ranks := make(map[string]map[string]int, c.Days)
	submitted := make([]types.SubmitRequest, 0, c.Days)
	for d := 0; d < c.Days; d++ {
		day := c.StartDate.AddDate(0, 0, d)
		req := gen.Roster(day, names)
		submitted = append(submitted, req)

		if err := submitDay(ctx, client, schema, req, stats); err != nil {
			return stats, err
		}
		dayRanks, err := saveDay(ctx, client, req, names, stats)
		if err != nil {
			return stats, err
		}
		ranks[req.Date] = dayRanks
		if c.Verbose {
			log.Info(ctx, "day saved", logger.String("date", req.Date), logger.Int("students", len(req.Students)))
		}
	}

	// Step 4: Read every student's series back concurrently
	checkSeries(ctx, client, c, names, ranks, stats, log)

	// Step 5: Trends and insights over the last day
	if err := checkTrends(ctx, client, ranks, stats); err != nil {
		return stats, err
	}
	if err := checkInsights(ctx, client, names, submitted[len(submitted)-1].Date, info.MaxCompare); err != nil {
		return stats, err
	}

	// Step 6: Save rosters to file
	if c.OutputFile != "" {
		if err := saveRostersToFile(c.OutputFile, submitted); err != nil {
			log.Warn(ctx, "failed to save rosters to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, log, stats)

	if stats.RankMismatches > 0 || stats.SeriesFailed > 0 {
		return stats, fmt.Errorf("%w: %d rank mismatches, %d series failures",
			ErrVerification, stats.RankMismatches, stats.SeriesFailed)
	}
	log.Info(ctx, "seed run completed successfully")
	return stats, nil
}

func withDefaults(c Config) Config {
	if c.Days <= 0 {
		c.Days = DefaultDays
	}
	if c.Students <= 0 {
		c.Students = DefaultStudents
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.StartDate.IsZero() {
		c.StartDate = model.Day(time.Now()).AddDate(0, 0, -c.Days)
	}
	c.StartDate = model.Day(c.StartDate)
	return c
}

// submitDay posts req and compares the ranking with a local one.
func submitDay(ctx context.Context, client *HTTPClient, schema model.Schema, req types.SubmitRequest, stats *Stats) error {
	want, err := expectedRoster(schema, req)
	if err != nil {
		return fmt.Errorf("generated roster for %s is invalid: %w", req.Date, err)
	}
	var got types.RosterView
	if err := client.post(ctx, "/roster", req, http.StatusOK, &got); err != nil {
		return fmt.Errorf("submit %s: %w", req.Date, err)
	}
	stats.DaysSubmitted++

	mismatches, err := verifyRoster(want, got)
	stats.RankMismatches += mismatches
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrVerification, req.Date, err)
	}
	return nil
}

// saveDay saves the session roster and returns the ranks of names in the
// stored snapshot, which may hold students from earlier runs too.
func saveDay(ctx context.Context, client *HTTPClient, req types.SubmitRequest, names []string, stats *Stats) (map[string]int, error) {
	var res types.SaveResult
	if err := client.post(ctx, "/roster/save?date="+url.QueryEscape(req.Date), nil, http.StatusCreated, &res); err != nil {
		return nil, fmt.Errorf("save %s: %w", req.Date, err)
	}
	stats.DaysSaved++
	stats.RowsSaved += res.Students

	var snap types.RosterView
	if err := client.get(ctx, "/snapshots/"+req.Date, &snap); err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", req.Date, err)
	}
	out := make(map[string]int, len(names))
	for _, e := range snap.Students {
		out[e.Name] = e.Rank
	}
	for _, n := range names {
		if _, ok := out[n]; !ok {
			return nil, fmt.Errorf("%w: %s missing from snapshot %s", ErrVerification, n, req.Date)
		}
	}
	return out, nil
}

type seriesResponse struct {
	Name   string              `json:"name"`
	Points []types.SeriesPoint `json:"points"`
}

// checkSeries reads every student's series with a pool of workers.
func checkSeries(ctx context.Context, client *HTTPClient, c Config, names []string,
	ranks map[string]map[string]int, stats *Stats, log logger.Logger) {
	var (
		checked int64
		failed  int64
		wg      sync.WaitGroup
	)
	nameChan := make(chan string, c.Workers*2)

	for i := 0; i < c.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range nameChan {
				var res seriesResponse
				err := client.get(ctx, "/students/"+url.PathEscape(name)+"/series", &res)
				if err == nil {
					err = verifySeries(name, res.Points, ranks)
				}
				atomic.AddInt64(&checked, 1)
				if err != nil {
					atomic.AddInt64(&failed, 1)
					if c.Verbose {
						log.Warn(ctx, "series check failed", logger.String("student", name), logger.Error(err))
					}
				}
			}
		}()
	}

	go func() {
		defer close(nameChan)
		for _, name := range names {
			select {
			case <-ctx.Done():
				return
			case nameChan <- name:
			}
		}
	}()

	wg.Wait()
	stats.SeriesChecked = int(atomic.LoadInt64(&checked))
	stats.SeriesFailed = int(atomic.LoadInt64(&failed))
}

func checkTrends(ctx context.Context, client *HTTPClient, ranks map[string]map[string]int, stats *Stats) error {
	var res struct {
		Trends []types.TrendPoint `json:"trends"`
	}
	if err := client.get(ctx, "/trends", &res); err != nil {
		return fmt.Errorf("trends: %w", err)
	}
	seen := make(map[string]bool, len(res.Trends))
	for _, p := range res.Trends {
		seen[p.Date] = true
	}
	for day := range ranks {
		if !seen[day] {
			return fmt.Errorf("%w: trends miss %s", ErrVerification, day)
		}
	}
	stats.TrendPoints = len(res.Trends)
	return nil
}

func checkInsights(ctx context.Context, client *HTTPClient, names []string, date string, maxCompare int) error {
	n := min(len(names), max(maxCompare, 1))
	q := url.Values{"names": {strings.Join(names[:n], ",")}, "date": {date}}
	var cmp struct {
		Students []types.Entry `json:"students"`
	}
	if err := client.get(ctx, "/compare?"+q.Encode(), &cmp); err != nil {
		return fmt.Errorf("compare: %w", err)
	}
	if len(cmp.Students) != n {
		return fmt.Errorf("%w: compare returned %d students, want %d", ErrVerification, len(cmp.Students), n)
	}
	if err := client.get(ctx, "/distribution?"+url.Values{"date": {date}}.Encode(), nil); err != nil {
		return fmt.Errorf("distribution: %w", err)
	}
	return nil
}

// saveRostersToFile writes the submitted rosters as a JSON array.
func saveRostersToFile(filename string, rosters []types.SubmitRequest) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(rosters, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal rosters: %w", err)
	}
	if err := os.WriteFile(filename, append(data, '\n'), filePermission); err != nil {
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}
	return nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	log.Info(ctx, "final statistics",
		logger.Int("daysSubmitted", stats.DaysSubmitted),
		logger.Int("daysSaved", stats.DaysSaved),
		logger.Int("rowsSaved", stats.RowsSaved),
		logger.Int("rankMismatches", stats.RankMismatches),
		logger.Int("seriesChecked", stats.SeriesChecked),
		logger.Int("seriesFailed", stats.SeriesFailed),
		logger.Int("trendPoints", stats.TrendPoints),
		logger.Duration("duration", stats.Duration))
}
