package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/orebase/mine-maintenance/internal/workflow"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps workflow failure classes to HTTP status codes. Anything
// unclassified is a persistence failure and becomes a 500.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, workflow.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, workflow.ErrUnauthorized):
		http.Error(w, err.Error(), http.StatusForbidden)
	default:
		log.WithError(err).Error("request failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// logWarnings records best-effort side-effect failures. Degraded side
// effects are visible in logs only, never in the API response.
func logWarnings(op string, warnings []workflow.Warning) {
	for _, warning := range warnings {
		log.WithField("op", op).WithError(warning.Err).Warnf("side effect failed: %s", warning.Op)
	}
}
