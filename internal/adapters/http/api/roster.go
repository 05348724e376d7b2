package api

import (
	"context"
	"net/http"

	"github.com/okian/marksense/internal/domain/ranking"
	"github.com/okian/marksense/internal/domain/types"
	"github.com/okian/marksense/pkg/logger"
)

// RosterDependencies defines the session roster operations.
type RosterDependencies interface {
	SubmitRoster(ctx context.Context, req types.SubmitRequest) (ranking.RankedRoster, error)
	CurrentRoster(ctx context.Context) ranking.RankedRoster
	SaveCurrent(ctx context.Context, date string) (types.SaveResult, error)
	LoadIntoSession(ctx context.Context, date string) (ranking.RankedRoster, error)
}

// RosterHandler handles the session roster.
type RosterHandler struct {
	deps RosterDependencies
	log  logger.Logger
}

// NewRosterHandler creates a new roster handler.
func NewRosterHandler(deps RosterDependencies, l logger.Logger) *RosterHandler {
	return &RosterHandler{deps: deps, log: l}
}

// HandleRoster handles GET /roster and POST /roster.
func (h *RosterHandler) HandleRoster(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, types.FromRoster(h.deps.CurrentRoster(r.Context())))
	case http.MethodPost:
		h.submit(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *RosterHandler) submit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_roster"
	var req types.SubmitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, WrapKind(op, ErrBadRequest, err))
		return
	}
	ranked, err := h.deps.SubmitRoster(r.Context(), req)
	if err != nil {
		writeFailure(r.Context(), w, h.log, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, types.FromRoster(ranked))
}

// HandleSave handles POST /roster/save?date=YYYY-MM-DD.
func (h *RosterHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	const op = "api.save_roster"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	res, err := h.deps.SaveCurrent(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		writeFailure(r.Context(), w, h.log, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// HandleLoad handles POST /roster/load?date=YYYY-MM-DD|latest.
func (h *RosterHandler) HandleLoad(w http.ResponseWriter, r *http.Request) {
	const op = "api.load_roster"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	ranked, err := h.deps.LoadIntoSession(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		writeFailure(r.Context(), w, h.log, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, types.FromRoster(ranked))
}
