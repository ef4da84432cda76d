// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/example/wanistats/internal/domain/types"
)

// ReportDependencies defines the interface for report lookups.
type ReportDependencies interface {
	Stats(ctx context.Context, username string) (*types.Report, error)
}

// StatsHandler handles statistics report requests.
type StatsHandler struct {
	deps ReportDependencies
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(deps ReportDependencies) *StatsHandler {
	return &StatsHandler{deps: deps}
}

// HandleGetStats handles GET /api/stats/{username} requests.
func (h *StatsHandler) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	// Extract path parameter after /api/stats/
	username := strings.TrimPrefix(r.URL.Path, "/api/stats/")
	if username == "" || strings.Contains(username, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	report, err := h.deps.Stats(r.Context(), username)
	if err != nil {
		status, code := reportStatus(err)
		writeError(w, status, code, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
