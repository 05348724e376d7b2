package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/marksense/internal/domain/model"
	"github.com/okian/marksense/internal/domain/ranking"
	"github.com/okian/marksense/internal/domain/types"
	"github.com/okian/marksense/pkg/logger"
)

// InsightsDependencies defines the roster insight queries. An empty date
// selects the session roster.
type InsightsDependencies interface {
	Compare(ctx context.Context, names []string, date string) ([]model.StudentRecord, error)
	Spotlight(ctx context.Context, mode, name, date string) (model.StudentRecord, error)
	Distribution(ctx context.Context, field string, bins int, date string) ([]ranking.Bucket, error)
}

// InsightsHandler serves compare, spotlight and distribution queries.
type InsightsHandler struct {
	deps InsightsDependencies
	log  logger.Logger
}

// NewInsightsHandler creates a new insights handler.
func NewInsightsHandler(deps InsightsDependencies, l logger.Logger) *InsightsHandler {
	return &InsightsHandler{deps: deps, log: l}
}

type compareResponse struct {
	Students []types.Entry `json:"students"`
}

// HandleCompare handles GET /compare?names=a,b[&date=].
func (h *InsightsHandler) HandleCompare(w http.ResponseWriter, r *http.Request) {
	const op = "api.compare"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	var names []string
	for _, n := range strings.Split(q.Get("names"), ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		writeError(w, http.StatusBadRequest, CodeBadRequest, NewKind(op, ErrBadRequest))
		return
	}
	recs, err := h.deps.Compare(r.Context(), names, q.Get("date"))
	if err != nil {
		writeFailure(r.Context(), w, h.log, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, compareResponse{Students: types.FromRecords(recs)})
}

type spotlightResponse struct {
	Mode    string      `json:"mode"`
	Student types.Entry `json:"student"`
}

// HandleSpotlight handles GET /spotlight?mode=top|bottom|random|name[&name=][&date=].
func (h *InsightsHandler) HandleSpotlight(w http.ResponseWriter, r *http.Request) {
	const op = "api.spotlight"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	mode := q.Get("mode")
	rec, err := h.deps.Spotlight(r.Context(), mode, q.Get("name"), q.Get("date"))
	if err != nil {
		writeFailure(r.Context(), w, h.log, Wrap(op, err))
		return
	}
	if mode == "" {
		mode = string(ranking.SpotlightTop)
	}
	writeJSON(w, http.StatusOK, spotlightResponse{Mode: strings.ToLower(mode), Student: types.FromRecord(rec)})
}

type distributionResponse struct {
	Field   string         `json:"field"`
	Buckets []types.Bucket `json:"buckets"`
}

// HandleDistribution handles GET /distribution?field=total|average[&bins=][&date=].
func (h *InsightsHandler) HandleDistribution(w http.ResponseWriter, r *http.Request) {
	const op = "api.distribution"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	bins := 0
	if s := q.Get("bins"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, CodeBadRequest, NewKind(op, ErrBadRequest))
			return
		}
		bins = n
	}
	field := q.Get("field")
	buckets, err := h.deps.Distribution(r.Context(), field, bins, q.Get("date"))
	if err != nil {
		writeFailure(r.Context(), w, h.log, Wrap(op, err))
		return
	}
	if field == "" {
		field = "total"
	}
	writeJSON(w, http.StatusOK, distributionResponse{Field: strings.ToLower(field), Buckets: types.FromBuckets(buckets)})
}
