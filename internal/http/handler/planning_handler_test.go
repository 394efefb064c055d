package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/nordholz-group/salesplan-api/internal/domain"
	"github.com/nordholz-group/salesplan-api/internal/http/handler"
	"github.com/nordholz-group/salesplan-api/internal/repository"
	"github.com/nordholz-group/salesplan-api/internal/service"
	"github.com/nordholz-group/salesplan-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newPlanningRouter(db *gorm.DB, clock service.Clock) chi.Router {
	logger := zap.NewNop()
	resolver := service.NewSeasonalityResolver(repository.NewReferenceRepository(db))
	locks := service.NewJobLockManager(repository.NewJobLockRepository(db), clock, 0, logger)
	budgets := service.NewBudgetService(db, resolver, locks, clock, logger)
	imports := service.NewSalesImportService(db, nil, locks, clock, logger)

	h := handler.NewPlanningHandler(budgets, imports, logger)
	r := chi.NewRouter()
	r.Post("/planning/budgets/generate", h.GenerateBudgets)
	r.Post("/planning/forecasts/generate", h.GenerateForecasts)
	r.Post("/planning/sales/import", h.ImportSales)
	return r
}

func TestGenerateBudgetsEndpoint(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cpc := testutil.SeedPair(t, db, "10001", 999, 1)
	testutil.SeedSeasonality(t, db, 999, 2025, [12]float64{10, 10, 10, 10, 10, 10, 10, 10, 10, 4, 3, 3})
	testutil.SeedSeasonality(t, db, 999, 2024, [12]float64{10, 10, 10, 10, 10, 10, 5, 3, 2, 10, 10, 10})
	for month := 4; month <= 8; month++ {
		testutil.SeedSale(t, db, cpc.ID, 2025, month, 1000, 0, 0)
	}
	router := newPlanningRouter(db, fixedSeptember())

	body := `{"fiscalYear":2025,"case":"best","fullRebuild":true}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/planning/budgets/generate", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	var summary domain.GenerationSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 2025, summary.FiscalYear)
	assert.Equal(t, 1, summary.Processed)
}

func TestGenerateBudgetsEndpointValidation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	router := newPlanningRouter(db, fixedSeptember())

	tests := []struct {
		name string
		body string
	}{
		{name: "missing fiscal year", body: `{"case":"best"}`},
		{name: "unknown scenario", body: `{"fiscalYear":2025,"case":"middling"}`},
		{name: "fiscal year out of range", body: `{"fiscalYear":1980,"case":"best"}`},
		{name: "malformed json", body: `{`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/planning/budgets/generate", strings.NewReader(tc.body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestGenerateForecastsEndpoint(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cpc := testutil.SeedPair(t, db, "10001", 999, 1)
	for _, month := range []int{4, 5, 6, 7, 8, 9, 10, 11, 12, 1, 2, 3} {
		require.NoError(t, db.Create(&domain.Budget{CPCID: cpc.ID, FiscalYear: 2025, Month: month, Volume: 100}).Error)
	}
	router := newPlanningRouter(db, fixedSeptember())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/planning/forecasts/generate", strings.NewReader(`{"fiscalYear":2025,"version":1}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	var summary domain.GenerationSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 1, summary.Written)
}

func TestImportSalesEndpointUnconfigured(t *testing.T) {
	db := testutil.SetupTestDB(t)
	router := newPlanningRouter(db, fixedSeptember())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/planning/sales/import", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestImportSalesEndpointRejectsBadYear(t *testing.T) {
	db := testutil.SetupTestDB(t)
	router := newPlanningRouter(db, fixedSeptember())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/planning/sales/import?fiscalYear=99", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
