package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"imcitrack/internal/model"
	"imcitrack/internal/service"
)

// ImportHandler handles bulk import endpoints
type ImportHandler struct {
	svc    *service.ImportService
	logger zerolog.Logger
}

// NewImportHandler creates a new import handler
func NewImportHandler(svc *service.ImportService, logger zerolog.Logger) *ImportHandler {
	return &ImportHandler{svc: svc, logger: logger}
}

// Import handles POST /v1/imports. With ?dryRun=true nothing is stored.
func (h *ImportHandler) Import(w http.ResponseWriter, r *http.Request) {
	dryRun := false
	if v := r.URL.Query().Get("dryRun"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "dryRun must be true or false")
			return
		}
		dryRun = b
	}

	var batch model.ImportBatch
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	run := h.svc.Import
	if dryRun {
		run = h.svc.DryRun
	}
	report, err := run(r.Context(), &batch)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	status := http.StatusOK
	if !dryRun && report.Accepted > 0 {
		status = http.StatusCreated
	}
	writeJSON(w, status, report)
}
