package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/chorequest/chorequest/internal/workflow"
)

func parseIDParam(r *http.Request) (int64, error) {
	idStr := r.PathValue("id")
	return strconv.ParseInt(idStr, 10, 64)
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeTransitionError maps the workflow error taxonomy onto HTTP statuses.
// Anything outside the taxonomy is an internal failure and gets logged.
func writeTransitionError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var (
		valErr  workflow.ValidationError
		authErr workflow.AuthorizationError
		preErr  workflow.PreconditionError
		nfErr   workflow.NotFoundError
	)
	switch {
	case errors.As(err, &valErr):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": valErr.Error()})
	case errors.As(err, &authErr):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": authErr.Error()})
	case errors.As(err, &preErr):
		writeJSON(w, http.StatusConflict, map[string]string{"error": preErr.Error()})
	case errors.As(err, &nfErr):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": nfErr.Error()})
	default:
		logger.Error("state transition failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
