// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/example/wanistats/internal/adapters/mq/queue"
	"github.com/example/wanistats/internal/adapters/wanikani"
	"github.com/example/wanistats/internal/app"
	"github.com/example/wanistats/internal/domain/model"
)

// RefreshDependencies defines the interface for refresh operations.
type RefreshDependencies interface {
	Identify(ctx context.Context, apiKey string) (model.Account, error)
	EnqueueRefresh(ctx context.Context, username, apiKey string) (uuid.UUID, error)
}

// RefreshHandler handles refresh requests.
type RefreshHandler struct {
	deps RefreshDependencies
}

// NewRefreshHandler creates a new refresh handler.
func NewRefreshHandler(deps RefreshDependencies) *RefreshHandler {
	return &RefreshHandler{deps: deps}
}

// HandlePostRefresh handles POST /api/refresh requests.
func (h *RefreshHandler) HandlePostRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	// The key check doubles as the username lookup; a refresh is always
	// queued under the account the key belongs to.
	account, err := h.deps.Identify(r.Context(), req.APIKey)
	if err != nil {
		if errors.Is(err, wanikani.ErrUnauthorized) {
			writeError(w, http.StatusUnauthorized, "unauthorized", err)
			return
		}
		writeError(w, http.StatusBadGateway, "upstream_error", err)
		return
	}

	taskID, err := h.deps.EnqueueRefresh(r.Context(), account.Username, req.APIKey)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrAlreadyQueued):
			writeError(w, http.StatusConflict, "already_queued", err)
		case errors.Is(err, app.ErrQueueFull):
			writeError(w, http.StatusConflict, "busy", err)
		case errors.Is(err, queue.ErrClosed):
			writeError(w, http.StatusServiceUnavailable, "unavailable", err)
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", err)
		}
		return
	}
	writeJSON(w, http.StatusAccepted, queuedResponse{
		TaskID:   taskID.String(),
		Username: account.Username,
		Status:   "queued",
	})
}
