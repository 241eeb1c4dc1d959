package handlers

import (
	"net/http"
	"strconv"

	"github.com/mineflow/fleet-dispatch/internal/process"
)

// StatsHandler exposes dashboard aggregates.
type StatsHandler struct {
	svc *process.Service
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(svc *process.Service) *StatsHandler {
	return &StatsHandler{svc: svc}
}

// Dashboard returns fleet-wide counters.
func (h *StatsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.GetDashboardStats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// RecentActivity returns the newest processes for the dashboard feed.
func (h *StatsHandler) RecentActivity(w http.ResponseWriter, r *http.Request) {
	limit := int64(10)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			limit = n
		}
	}
	activity, err := h.svc.RecentActivity(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, activity)
}
