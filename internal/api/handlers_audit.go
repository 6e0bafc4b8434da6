package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/mirelhart/cantus/internal/audit"
	"github.com/mirelhart/cantus/internal/logging"
)

func (r *Router) handleListAudit(w http.ResponseWriter, req *http.Request) {
	limit := 0
	if v := req.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}

	entries, err := r.auditService.List(req.Context(), limit)
	if err != nil {
		r.logger.Error("listing audit entries", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (r *Router) handleGetLogging(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, r.logManager.Config())
}

func (r *Router) handleUpdateLogging(w http.ResponseWriter, req *http.Request) {
	var cfg logging.Config
	if err := json.NewDecoder(req.Body).Decode(&cfg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if !logging.ValidLevel(cfg.Level) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid log level"})
		return
	}
	if !logging.ValidFormat(cfg.Format) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid log format"})
		return
	}

	r.logManager.Reconfigure(cfg)
	r.logger.Info("logging reconfigured", "level", cfg.Level, "format", cfg.Format)
	writeJSON(w, http.StatusOK, r.logManager.Config())
}
