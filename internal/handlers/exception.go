package handlers

import (
	"net/http"
	"strconv"

	"github.com/mineflow/fleet-dispatch/internal/db"
	"github.com/mineflow/fleet-dispatch/internal/middleware"
	"github.com/mineflow/fleet-dispatch/internal/models"
	"github.com/mineflow/fleet-dispatch/internal/process"
)

// ExceptionHandler exposes exception triage over HTTP.
type ExceptionHandler struct {
	svc *process.Service
}

// NewExceptionHandler creates a new exception handler.
func NewExceptionHandler(svc *process.Service) *ExceptionHandler {
	return &ExceptionHandler{svc: svc}
}

// List queries exceptions with optional status, severity, truck and
// process filters.
func (h *ExceptionHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := db.ExceptionFilter{
		ProcessID: r.URL.Query().Get("process_id"),
		TruckNo:   r.URL.Query().Get("truck_no"),
		Status:    models.ExceptionStatus(r.URL.Query().Get("status")),
		Severity:  models.Severity(r.URL.Query().Get("severity")),
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		if n, err := strconv.ParseInt(limit, 10, 64); err == nil {
			filter.Limit = n
		}
	}

	exceptions, err := h.svc.ListExceptions(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exceptions)
}

// Resolve closes an exception by operator action. The owning process is
// untouched; the operator resubmits evidence separately.
func (h *ExceptionHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}

	resolved, err := h.svc.ResolveException(r.Context(), r.PathValue("id"), claims.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resolved)
}
