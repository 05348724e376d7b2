// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/marksense/pkg/logger"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers.
type Dependencies interface {
	RosterDependencies
	HistoryDependencies
	InsightsDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	rosterHandler   *RosterHandler
	historyHandler  *HistoryHandler
	insightsHandler *InsightsHandler
}

// ServerOption configures a Server.
type ServerOption func(*serverOptions)

type serverOptions struct {
	log logger.Logger
}

// WithLogger sets the logger used for server side failures.
func WithLogger(l logger.Logger) ServerOption {
	return func(o *serverOptions) {
		if l != nil {
			o.log = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...ServerOption) *Server {
	o := serverOptions{log: logger.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		rosterHandler:   NewRosterHandler(deps, o.log),
		historyHandler:  NewHistoryHandler(deps, o.log),
		insightsHandler: NewInsightsHandler(deps, o.log),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("/roster", MetricsMiddleware(s.rosterHandler.HandleRoster, "roster"))
	mux.HandleFunc("/roster/save", MetricsMiddleware(s.rosterHandler.HandleSave, "roster_save"))
	mux.HandleFunc("/roster/load", MetricsMiddleware(s.rosterHandler.HandleLoad, "roster_load"))

	mux.HandleFunc("/snapshots", MetricsMiddleware(s.historyHandler.HandleDates, "snapshots"))
	mux.HandleFunc("/snapshots/", MetricsMiddleware(s.historyHandler.HandleSnapshot, "snapshot"))
	mux.HandleFunc("/students/", MetricsMiddleware(s.historyHandler.HandleSeries, "series"))
	mux.HandleFunc("/trends", MetricsMiddleware(s.historyHandler.HandleTrends, "trends"))

	mux.HandleFunc("/compare", MetricsMiddleware(s.insightsHandler.HandleCompare, "compare"))
	mux.HandleFunc("/spotlight", MetricsMiddleware(s.insightsHandler.HandleSpotlight, "spotlight"))
	mux.HandleFunc("/distribution", MetricsMiddleware(s.insightsHandler.HandleDistribution, "distribution"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	noteErrorCode(w, code)
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure classifies err and writes the matching error body. Server
// side failures are logged to l.
func writeFailure(ctx context.Context, w http.ResponseWriter, l logger.Logger, err error) {
	status, code, field := classify(err)
	if status >= http.StatusInternalServerError {
		l.Error(ctx, "request failed", logger.String("code", code), logger.Error(err))
	}
	noteErrorCode(w, code)
	writeJSON(w, status, errorResponse{Code: code, Message: err.Error(), Field: field})
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

