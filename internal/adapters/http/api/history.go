package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/okian/marksense/internal/domain/model"
	"github.com/okian/marksense/internal/domain/ranking"
	"github.com/okian/marksense/internal/domain/types"
	"github.com/okian/marksense/pkg/logger"
)

// HistoryDependencies defines the read side of the saved history.
type HistoryDependencies interface {
	Dates(ctx context.Context) ([]time.Time, error)
	Snapshot(ctx context.Context, date string) (ranking.RankedRoster, error)
	Series(ctx context.Context, name string) ([]model.SeriesPoint, error)
	Trends(ctx context.Context) ([]types.TrendPoint, error)
}

// HistoryHandler serves saved snapshots, series and trends.
type HistoryHandler struct {
	deps HistoryDependencies
	log  logger.Logger
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(deps HistoryDependencies, l logger.Logger) *HistoryHandler {
	return &HistoryHandler{deps: deps, log: l}
}

type datesResponse struct {
	Dates []string `json:"dates"`
}

// HandleDates handles GET /snapshots.
func (h *HistoryHandler) HandleDates(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_snapshots"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	dates, err := h.deps.Dates(r.Context())
	if err != nil {
		writeFailure(r.Context(), w, h.log, Wrap(op, err))
		return
	}
	out := datesResponse{Dates: make([]string, 0, len(dates))}
	for _, d := range dates {
		out.Dates = append(out.Dates, model.FormatDay(d))
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleSnapshot handles GET /snapshots/{date|latest}.
func (h *HistoryHandler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_snapshot"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	date := strings.TrimPrefix(r.URL.Path, "/snapshots/")
	if date == "" || strings.Contains(date, "/") {
		writeError(w, http.StatusBadRequest, CodeBadRequest, NewKind(op, ErrBadRequest))
		return
	}
	ranked, err := h.deps.Snapshot(r.Context(), date)
	if err != nil {
		writeFailure(r.Context(), w, h.log, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, types.FromRoster(ranked))
}

type seriesResponse struct {
	Name   string              `json:"name"`
	Points []types.SeriesPoint `json:"points"`
}

// HandleSeries handles GET /students/{name}/series.
func (h *HistoryHandler) HandleSeries(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_series"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	rest := strings.TrimPrefix(r.URL.EscapedPath(), "/students/")
	escaped, ok := strings.CutSuffix(rest, "/series")
	if !ok || escaped == "" || strings.Contains(escaped, "/") {
		http.NotFound(w, r)
		return
	}
	name, err := url.PathUnescape(escaped)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, WrapKind(op, ErrBadRequest, err))
		return
	}
	points, err := h.deps.Series(r.Context(), name)
	if err != nil {
		writeFailure(r.Context(), w, h.log, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, seriesResponse{Name: name, Points: types.FromSeries(points)})
}

type trendsResponse struct {
	Trends []types.TrendPoint `json:"trends"`
}

// HandleTrends handles GET /trends.
func (h *HistoryHandler) HandleTrends(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_trends"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	trends, err := h.deps.Trends(r.Context())
	if err != nil {
		writeFailure(r.Context(), w, h.log, Wrap(op, err))
		return
	}
	if trends == nil {
		trends = []types.TrendPoint{}
	}
	writeJSON(w, http.StatusOK, trendsResponse{Trends: trends})
}
