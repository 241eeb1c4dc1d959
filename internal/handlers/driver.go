package handlers

import (
	"net/http"
	"time"

	"github.com/mineflow/fleet-dispatch/internal/db"
	"github.com/mineflow/fleet-dispatch/internal/models"
	"github.com/mineflow/fleet-dispatch/internal/process"
)

// DriverHandler exposes driver rosters and driver dashboard queries.
type DriverHandler struct {
	svc   *process.Service
	users db.UserCollection
}

// NewDriverHandler creates a new driver handler.
func NewDriverHandler(svc *process.Service, users db.UserCollection) *DriverHandler {
	return &DriverHandler{svc: svc, users: users}
}

// List returns all drivers sorted by name.
func (h *DriverHandler) List(w http.ResponseWriter, r *http.Request) {
	drivers, err := h.users.FindUsers(r.Context(), models.RoleDriver)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, drivers)
}

// ListAvailable returns active drivers with no truck assigned.
func (h *DriverHandler) ListAvailable(w http.ResponseWriter, r *http.Request) {
	drivers, err := h.users.FindAvailableDrivers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, drivers)
}

// Dispatches returns a driver's dispatches: active ones by default,
// delivered ones with ?completed=true and an optional ?since=RFC3339.
func (h *DriverHandler) Dispatches(w http.ResponseWriter, r *http.Request) {
	driverID := r.PathValue("id")

	if r.URL.Query().Get("completed") == "true" {
		var since *time.Time
		if raw := r.URL.Query().Get("since"); raw != "" {
			if t, err := time.Parse(time.RFC3339, raw); err == nil {
				since = &t
			}
		}
		dispatches, err := h.svc.CompletedDispatches(r.Context(), driverID, since)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, dispatches)
		return
	}

	dispatches, err := h.svc.ActiveDispatches(r.Context(), driverID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dispatches)
}

// Stats returns the driver dashboard counters.
func (h *DriverHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.GetDriverStats(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
