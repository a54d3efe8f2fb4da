package handlers

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// NewRouter configures all routes and middleware
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()

	r.Use(loggingMiddleware)
	r.Use(recoveryMiddleware)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/datasets", h.CreateDatasetHandler).Methods("POST")
	api.HandleFunc("/datasets/{id}", h.GetDatasetHandler).Methods("GET")
	api.HandleFunc("/datasets/{id}/review", h.ReviewDatasetHandler).Methods("GET")
	api.HandleFunc("/datasets/{id}/steps/{step}", h.AdvanceStepHandler).Methods("POST")
	api.HandleFunc("/datasets/{id}/publish", h.PublishDatasetHandler).Methods("POST")
	api.HandleFunc("/dashboard", h.DashboardHandler).Methods("GET")
	api.HandleFunc("/legacy/{resource}/{action}", h.LegacyHandler).Methods("GET")

	r.HandleFunc("/health", h.HealthCheckHandler).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	log.Info().Msg("Routes configured successfully")
	return r
}
