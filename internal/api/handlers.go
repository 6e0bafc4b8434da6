package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/mirelhart/cantus/internal/identity"
	"github.com/mirelhart/cantus/internal/version"
)

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
		"commit":  version.Commit,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encode error", http.StatusInternalServerError)
	}
}

// writeIdentityError maps identity errors to HTTP status codes. Unknown
// errors are logged and reported as internal.
func (r *Router) writeIdentityError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, identity.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, identity.ErrSelfReference):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, identity.ErrTypeMismatch),
		errors.Is(err, identity.ErrCollision):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		r.logger.Error("identity operation failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
