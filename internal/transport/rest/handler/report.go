package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"imcitrack/internal/checklist"
	"imcitrack/internal/service"
)

// ReportHandler handles report endpoints
type ReportHandler struct {
	reportSvc *service.ReportService
	logger    zerolog.Logger
}

// NewReportHandler creates a new report handler
func NewReportHandler(reportSvc *service.ReportService, logger zerolog.Logger) *ReportHandler {
	return &ReportHandler{reportSvc: reportSvc, logger: logger}
}

// Observation handles GET /v1/reports/observations/{id}
func (h *ReportHandler) Observation(w http.ResponseWriter, r *http.Request) {
	report, err := h.reportSvc.ObservationReport(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Course handles GET /v1/reports/courses/{courseId}
func (h *ReportHandler) Course(w http.ResponseWriter, r *http.Request) {
	summary, err := h.reportSvc.CourseSummary(r.Context(), mux.Vars(r)["courseId"])
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// ChecklistHandler serves the loaded checklist
type ChecklistHandler struct {
	outline checklist.Outline
}

// NewChecklistHandler creates a checklist handler. The outline is computed once.
func NewChecklistHandler(cl *checklist.Checklist) *ChecklistHandler {
	return &ChecklistHandler{outline: cl.Outline()}
}

// Outline handles GET /v1/checklist
func (h *ChecklistHandler) Outline(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.outline)
}
