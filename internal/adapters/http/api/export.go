// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/example/wanistats/internal/export"
)

// xlsxContentType is the MIME type for Office Open XML workbooks.
const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportHandler handles workbook download requests.
type ExportHandler struct {
	deps ReportDependencies
}

// NewExportHandler creates a new export handler.
func NewExportHandler(deps ReportDependencies) *ExportHandler {
	return &ExportHandler{deps: deps}
}

// HandleGetExport handles GET /api/stats/{username}/export requests.
func (h *ExportHandler) HandleGetExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	// Extract path parameter between /api/stats/ and /export
	username := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/stats/"), "/export")
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

	book, err := export.Workbook(report)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	// Render fully before touching the response so a failed render can
	// still produce a proper error status.
	var buf bytes.Buffer
	if err := book.Write(&buf); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}

	filename := export.Filename(username, report.ComputedAt)
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
