package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/hacknation/dataset-publisher/internal/legacy"
	"github.com/hacknation/dataset-publisher/internal/storage"
	"github.com/hacknation/dataset-publisher/internal/wizard"
)

// StatsSource computes the dashboard counts
type StatsSource interface {
	Stats(ctx context.Context) (*storage.Stats, error)
}

// HealthCheck is a named dependency check
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Handler contains all HTTP handlers
type Handler struct {
	wizard *wizard.Orchestrator
	stats  StatsSource
	legacy legacy.Getter
	checks []HealthCheck
}

// NewHandler creates a new handler instance. legacyAPI may be nil when no
// legacy host is configured.
func NewHandler(w *wizard.Orchestrator, stats StatsSource, legacyAPI legacy.Getter, checks ...HealthCheck) *Handler {
	return &Handler{
		wizard: w,
		stats:  stats,
		legacy: legacyAPI,
		checks: checks,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorResponse{Error: msg})
}

// DashboardHandler returns aggregate counts over all datasets
func (h *Handler) DashboardHandler(w http.ResponseWriter, r *http.Request) {
	st, err := h.stats.Stats(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to compute dashboard stats")
		respondError(w, http.StatusInternalServerError, "Failed to load dashboard")
		return
	}
	respondJSON(w, http.StatusOK, st)
}

// LegacyHandler reads through to the legacy API
func (h *Handler) LegacyHandler(w http.ResponseWriter, r *http.Request) {
	if h.legacy == nil {
		respondError(w, http.StatusServiceUnavailable, "Legacy API is not configured")
		return
	}

	vars := mux.Vars(r)
	res := h.legacy.Get(r.Context(), vars["resource"], vars["action"])
	body, ok := res.Get()
	if !ok {
		respondError(w, http.StatusBadGateway, res.Reason())
		return
	}
	respondJSON(w, http.StatusOK, body)
}

// HealthCheckHandler returns health status
func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := "healthy"
	checks := make(map[string]string, len(h.checks))
	for _, c := range h.checks {
		if err := c.Check(ctx); err != nil {
			status = "unhealthy"
			checks[c.Name] = err.Error()
			continue
		}
		checks[c.Name] = "ok"
	}

	statusCode := http.StatusOK
	if status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}
	respondJSON(w, statusCode, map[string]any{
		"status": status,
		"checks": checks,
	})
}
