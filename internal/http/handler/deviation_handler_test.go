package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

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

func newDeviationRouter(db *gorm.DB, clock service.Clock) chi.Router {
	logger := zap.NewNop()
	resolver := service.NewSeasonalityResolver(repository.NewReferenceRepository(db))
	converter := service.NewUnitConverter(repository.NewReferenceRepository(db))
	extraQuota := service.NewExtraQuotaService(db, resolver, converter)
	locks := service.NewJobLockManager(repository.NewJobLockRepository(db), clock, 0, logger)
	deviations := service.NewDeviationService(db, extraQuota, locks, clock, logger)

	h := handler.NewDeviationHandler(deviations, logger)
	r := chi.NewRouter()
	r.Get("/deviations", h.List)
	r.Post("/deviations/detect", h.Detect)
	r.Patch("/deviations/{id}/justified", h.SetJustified)
	return r
}

func seedSalesDeviation(t *testing.T, db *gorm.DB) {
	t.Helper()
	cpc := testutil.SeedPair(t, db, "10001", 999, 1)
	testutil.SeedAssignment(t, db, cpc.ID, testutil.Ptr("u1"))
	require.NoError(t, db.Create(&domain.Budget{CPCID: cpc.ID, FiscalYear: 2025, Month: 8, Volume: 100}).Error)
	testutil.SeedSale(t, db, cpc.ID, 2025, 8, 80, 0, 0)
}

func fixedSeptember() service.Clock {
	return service.FixedClock(time.Date(2025, time.September, 15, 10, 0, 0, 0, time.UTC))
}

func TestDetectEndpoint(t *testing.T) {
	db := testutil.SetupTestDB(t)
	seedSalesDeviation(t, db)
	router := newDeviationRouter(db, fixedSeptember())

	req := httptest.NewRequest(http.MethodPost, "/deviations/detect", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var summary domain.DeviationRunSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 1, summary.PairsProcessed)
	assert.Equal(t, 1, summary.SalesDeviations)
}

func TestDetectEndpointConflictWhileLocked(t *testing.T) {
	db := testutil.SetupTestDB(t)
	clock := fixedSeptember()
	locks := service.NewJobLockManager(repository.NewJobLockRepository(db), clock, 0, zap.NewNop())
	_, err := locks.Acquire(context.Background(), service.LockDeviationDetection)
	require.NoError(t, err)

	router := newDeviationRouter(db, clock)
	req := httptest.NewRequest(http.MethodPost, "/deviations/detect", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestListEndpointFilters(t *testing.T) {
	db := testutil.SetupTestDB(t)
	seedSalesDeviation(t, db)
	router := newDeviationRouter(db, fixedSeptember())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/deviations/detect", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/deviations?userId=u1&type=SALES", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var rows []domain.DeviationDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "u1", rows[0].UserID)
	assert.InDelta(t, 80.0, rows[0].Percent, 1e-9)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/deviations?userId=nobody", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	rows = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	assert.Empty(t, rows)
}

func TestListEndpointRejectsBadType(t *testing.T) {
	db := testutil.SetupTestDB(t)
	router := newDeviationRouter(db, fixedSeptember())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/deviations?type=WEATHER", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetJustifiedEndpoint(t *testing.T) {
	db := testutil.SetupTestDB(t)
	seedSalesDeviation(t, db)
	router := newDeviationRouter(db, fixedSeptember())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/deviations/detect", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var row domain.Deviation
	require.NoError(t, db.First(&row).Error)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/deviations/"+strconv.Itoa(int(row.ID))+"/justified", strings.NewReader(`{"justified":true}`))
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	require.NoError(t, db.First(&row, row.ID).Error)
	assert.True(t, row.Justified)
}

func TestSetJustifiedEndpointUnknownID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	router := newDeviationRouter(db, fixedSeptember())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/deviations/99999/justified", strings.NewReader(`{"justified":true}`))
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
