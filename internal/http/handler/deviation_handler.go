package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/nordholz-group/salesplan-api/internal/domain"
	"github.com/nordholz-group/salesplan-api/internal/repository"
	"github.com/nordholz-group/salesplan-api/internal/service"
	"go.uber.org/zap"
)

// DeviationHandler exposes deviation detection and the findings list.
type DeviationHandler struct {
	deviations *service.DeviationService
	logger     *zap.Logger
}

// NewDeviationHandler creates a new DeviationHandler instance
func NewDeviationHandler(deviations *service.DeviationService, logger *zap.Logger) *DeviationHandler {
	return &DeviationHandler{deviations: deviations, logger: logger}
}

// Detect handles POST /api/v1/deviations/detect
func (h *DeviationHandler) Detect(w http.ResponseWriter, r *http.Request) {
	var req domain.DetectDeviationsRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if err := validate.Struct(&req); err != nil {
			respondValidationError(w, err)
			return
		}
	}

	summary, err := h.deviations.Detect(r.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrJobAlreadyRunning) {
			respondWithError(w, http.StatusConflict, "Job is already running")
			return
		}
		h.logger.Error("deviation detection failed", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// List handles GET /api/v1/deviations
func (h *DeviationHandler) List(w http.ResponseWriter, r *http.Request) {
	var filter repository.DeviationFilter

	if v := r.URL.Query().Get("userId"); v != "" {
		filter.UserID = &v
	}
	if raw := r.URL.Query().Get("fiscalYear"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid fiscalYear")
			return
		}
		filter.FiscalYear = &v
	}
	if raw := r.URL.Query().Get("type"); raw != "" {
		t := domain.DeviationType(raw)
		if t != domain.DeviationSales && t != domain.DeviationForecast {
			respondWithError(w, http.StatusBadRequest, "Invalid deviation type")
			return
		}
		filter.Type = &t
	}
	filter.OnlyUnreviewed = r.URL.Query().Get("unreviewed") == "true"

	rows, err := h.deviations.ListDeviations(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list deviations", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

// SetJustified handles PATCH /api/v1/deviations/{id}/justified
func (h *DeviationHandler) SetJustified(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid deviation id")
		return
	}

	var body struct {
		Justified bool `json:"justified"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.deviations.SetJustified(r.Context(), uint(id), body.Justified); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Deviation not found")
			return
		}
		h.logger.Error("failed to update deviation", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}
