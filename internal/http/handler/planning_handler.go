package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/nordholz-group/salesplan-api/internal/domain"
	"github.com/nordholz-group/salesplan-api/internal/service"
	"go.uber.org/zap"
)

// PlanningHandler exposes the batch planning entry points: budget
// generation, forecast generation and the ERP sales import.
type PlanningHandler struct {
	budgets *service.BudgetService
	imports *service.SalesImportService
	logger  *zap.Logger
}

// NewPlanningHandler creates a new PlanningHandler instance
func NewPlanningHandler(budgets *service.BudgetService, imports *service.SalesImportService, logger *zap.Logger) *PlanningHandler {
	return &PlanningHandler{budgets: budgets, imports: imports, logger: logger}
}

// GenerateBudgets handles POST /api/v1/planning/budgets/generate
func (h *PlanningHandler) GenerateBudgets(w http.ResponseWriter, r *http.Request) {
	var req domain.GenerateBudgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		respondValidationError(w, err)
		return
	}

	summary, err := h.budgets.GenerateBudgets(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, err, "budget generation failed")
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// GenerateForecasts handles POST /api/v1/planning/forecasts/generate
func (h *PlanningHandler) GenerateForecasts(w http.ResponseWriter, r *http.Request) {
	var req domain.GenerateForecastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		respondValidationError(w, err)
		return
	}

	summary, err := h.budgets.GenerateForecasts(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, err, "forecast generation failed")
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// ImportSales handles POST /api/v1/planning/sales/import
func (h *PlanningHandler) ImportSales(w http.ResponseWriter, r *http.Request) {
	fiscalYear := 0
	if raw := r.URL.Query().Get("fiscalYear"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 2000 || v > 2100 {
			respondWithError(w, http.StatusBadRequest, "Invalid fiscalYear")
			return
		}
		fiscalYear = v
	}

	summary, err := h.imports.Import(r.Context(), fiscalYear)
	if err != nil {
		if errors.Is(err, service.ErrImportDisabled) {
			respondWithError(w, http.StatusServiceUnavailable, "ERP import is not configured")
			return
		}
		h.respondServiceError(w, err, "sales import failed")
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (h *PlanningHandler) respondServiceError(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, service.ErrJobAlreadyRunning) {
		respondWithError(w, http.StatusConflict, "Job is already running")
		return
	}
	h.logger.Error(msg, zap.Error(err))
	respondWithError(w, http.StatusInternalServerError, "Internal server error")
}
