package api

import (
	"maps"
	"net/http"

	"github.com/okian/marksense/pkg/metrics"
)

// StatsProvider reports service state for GET /stats.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// StatsHandler serves the provider's figures plus the metrics settings.
type StatsHandler struct {
	provider StatsProvider
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(provider StatsProvider) *StatsHandler {
	return &StatsHandler{provider: provider}
}

// HandleStats handles GET /stats.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	stats := maps.Clone(h.provider.GetStats())
	if stats == nil {
		stats = map[string]interface{}{}
	}
	stats["metrics"] = map[string]interface{}{
		"enabled":         metrics.Enabled(),
		"refreshInterval": metrics.RefreshInterval().String(),
	}
	writeJSON(w, http.StatusOK, stats)
}
