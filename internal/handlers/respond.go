package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mineflow/fleet-dispatch/internal/db"
	"github.com/mineflow/fleet-dispatch/internal/process"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// writeError maps core error categories onto HTTP status codes. Policy
// violations carry their reason code so clients can prompt for the
// right evidence.
func writeError(w http.ResponseWriter, err error) {
	if violation, ok := process.AsPolicyError(err); ok {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error":  violation.Error(),
			"reason": string(violation.Reason),
		})
		return
	}
	if _, ok := process.AsSequenceError(err); ok {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	switch {
	case errors.Is(err, db.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, db.ErrConflict), errors.Is(err, process.ErrBlocked), errors.Is(err, process.ErrTerminal):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, process.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
