package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"imcitrack/internal/model"
	"imcitrack/internal/service"
)

// ObservationHandler handles draft and observation endpoints
type ObservationHandler struct {
	svc    *service.ObservationService
	logger zerolog.Logger
}

// NewObservationHandler creates a new observation handler
func NewObservationHandler(svc *service.ObservationService, logger zerolog.Logger) *ObservationHandler {
	return &ObservationHandler{svc: svc, logger: logger}
}

// SaveDraft handles PUT /v1/drafts/{id}
func (h *ObservationHandler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	var draft model.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	draft.ID = mux.Vars(r)["id"]

	saved, err := h.svc.SaveDraft(r.Context(), &draft)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// GetDraft handles GET /v1/drafts/{id}
func (h *ObservationHandler) GetDraft(w http.ResponseWriter, r *http.Request) {
	draft, err := h.svc.GetDraft(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

// Submit handles POST /v1/observations
func (h *ObservationHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req model.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	obs, err := h.svc.Submit(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, obs)
}

// Get handles GET /v1/observations/{id}
func (h *ObservationHandler) Get(w http.ResponseWriter, r *http.Request) {
	obs, err := h.svc.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, obs)
}

// Rescore handles POST /v1/observations/{id}/rescore
func (h *ObservationHandler) Rescore(w http.ResponseWriter, r *http.Request) {
	obs, changed, err := h.svc.Rescore(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"changed":     changed,
		"observation": obs,
	})
}

// ListByCourse handles GET /v1/courses/{courseId}/observations
func (h *ObservationHandler) ListByCourse(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListByCourse(r.Context(), mux.Vars(r)["courseId"])
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"observations": list})
}
