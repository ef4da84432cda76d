// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/example/wanistats/internal/adapters/repository"
	"github.com/example/wanistats/internal/app"
	"github.com/example/wanistats/internal/domain/guard"
	"github.com/example/wanistats/internal/domain/model"
	"github.com/example/wanistats/internal/domain/types"
	"github.com/example/wanistats/internal/pipeline"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Identify resolves the account owning an api key with a single
	// upstream user fetch.
	Identify(ctx context.Context, apiKey string) (model.Account, error)

	// EnqueueRefresh queues an asynchronous refresh for a user.
	EnqueueRefresh(ctx context.Context, username, apiKey string) (uuid.UUID, error)

	// Stats returns the statistics report for a user.
	Stats(ctx context.Context, username string) (*types.Report, error)
}

// Report mirrors the read shape returned by statistics queries.
type Report = types.Report

// Server wires HTTP routes for the business API.
type Server struct {
	refreshHandler *RefreshHandler
	statsHandler   *StatsHandler
	exportHandler  *ExportHandler
	healthHandler  *HealthHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		refreshHandler: NewRefreshHandler(deps),
		statsHandler:   NewStatsHandler(deps),
		exportHandler:  NewExportHandler(deps),
		healthHandler:  NewHealthHandler(),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/api/refresh", MetricsMiddleware(s.refreshHandler.HandlePostRefresh, "refresh"))
	mux.HandleFunc("/api/stats/", func(w http.ResponseWriter, r *http.Request) {
		// The export variant shares the prefix, so dispatch here to keep
		// the metrics endpoint label accurate per route.
		if strings.HasSuffix(r.URL.Path, "/export") {
			MetricsMiddleware(s.exportHandler.HandleGetExport, "export")(w, r)
			return
		}
		MetricsMiddleware(s.statsHandler.HandleGetStats, "stats")(w, r)
	})
}

// refreshRequest mirrors the OpenAPI schema for POST /api/refresh.
type refreshRequest struct {
	APIKey string `json:"api_key"`
}

func (q refreshRequest) validate() error {
	if strings.TrimSpace(q.APIKey) == "" {
		return errors.New("missing api_key")
	}
	return nil
}

// queuedResponse acknowledges an accepted refresh request.
type queuedResponse struct {
	TaskID   string `json:"task_id"`
	Username string `json:"username"`
	Status   string `json:"status"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
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
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// reportStatus translates service errors from a stats lookup to an HTTP
// status and a stable machine-readable code.
func reportStatus(err error) (int, string) {
	switch {
	case errors.Is(err, app.ErrUnknownUser),
		errors.Is(err, pipeline.ErrNoData),
		errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, guard.ErrBusy):
		return http.StatusConflict, "busy"
	case errors.Is(err, guard.ErrTimeout):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, pipeline.ErrStoreUnavailable),
		errors.Is(err, repository.ErrClosed):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
