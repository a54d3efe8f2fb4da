package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/hacknation/dataset-publisher/internal/lifecycle"
	"github.com/hacknation/dataset-publisher/internal/models"
	"github.com/hacknation/dataset-publisher/internal/validation"
	"github.com/hacknation/dataset-publisher/internal/wizard"
)

// CreateDatasetRequest starts a new draft
type CreateDatasetRequest struct {
	CreatorID      int64 `json:"creator_id"`
	OrganisationID int64 `json:"organisation_id"`
}

// StepResponse tells the client which page comes next
type StepResponse struct {
	NextStep models.StepID       `json:"next_step"`
	Period   models.PeriodFields `json:"period,omitempty"`
}

// StepErrorResponse carries the rendered field failures of a rejected step
type StepErrorResponse struct {
	Errors validation.Rendered `json:"errors"`
}

// CreateDatasetHandler starts a draft dataset
func (h *Handler) CreateDatasetHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateDatasetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.CreatorID == 0 || req.OrganisationID == 0 {
		respondError(w, http.StatusBadRequest, "creator_id and organisation_id are required")
		return
	}

	ds, err := h.wizard.StartDraft(r.Context(), req.CreatorID, req.OrganisationID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to start draft")
		respondError(w, http.StatusInternalServerError, "Failed to create dataset")
		return
	}
	respondJSON(w, http.StatusCreated, ds)
}

// GetDatasetHandler returns a dataset
func (h *Handler) GetDatasetHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := datasetID(w, r)
	if !ok {
		return
	}

	ds, err := h.wizard.Get(r.Context(), id)
	if err != nil {
		h.respondWorkflowError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ds)
}

// ReviewDatasetHandler returns the summary shown before publishing
func (h *Handler) ReviewDatasetHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := datasetID(w, r)
	if !ok {
		return
	}

	review, err := h.wizard.Review(r.Context(), id)
	if err != nil {
		h.respondWorkflowError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, review)
}

// AdvanceStepHandler submits one wizard page
func (h *Handler) AdvanceStepHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := datasetID(w, r)
	if !ok {
		return
	}
	step := models.StepID(mux.Vars(r)["step"])

	var in models.StepInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	out, err := h.wizard.Advance(r.Context(), id, step, in)
	if err != nil {
		h.respondWorkflowError(w, err)
		return
	}
	if !out.Valid() {
		respondJSON(w, http.StatusUnprocessableEntity, StepErrorResponse{Errors: out.Failures.Render()})
		return
	}
	respondJSON(w, http.StatusOK, StepResponse{NextStep: out.Next.Step, Period: out.Next.Period})
}

// PublishDatasetHandler publishes a complete draft
func (h *Handler) PublishDatasetHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := datasetID(w, r)
	if !ok {
		return
	}

	ds, err := h.wizard.Publish(r.Context(), id)
	if err != nil {
		h.respondWorkflowError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ds)
}

func datasetID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "Invalid dataset id")
		return 0, false
	}
	return id, true
}

// respondWorkflowError maps wizard errors to status codes
func (h *Handler) respondWorkflowError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, wizard.ErrDatasetNotFound), errors.Is(err, wizard.ErrUnknownStep):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, wizard.ErrFrequencyRequired),
		errors.Is(err, wizard.ErrFrequencyLocked),
		errors.Is(err, lifecycle.ErrNotPublishable),
		errors.Is(err, lifecycle.ErrAlreadyPublished):
		respondError(w, http.StatusConflict, err.Error())
	default:
		log.Error().Err(err).Msg("Wizard request failed")
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}
