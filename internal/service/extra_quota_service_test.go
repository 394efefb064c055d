package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/nordholz-group/salesplan-api/internal/domain"
	"github.com/nordholz-group/salesplan-api/internal/service"
	"github.com/nordholz-group/salesplan-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newExtraQuotaService(db *gorm.DB) *service.ExtraQuotaService {
	return service.NewExtraQuotaService(db, newResolver(db), newConverter(db))
}

func seedQuota(t *testing.T, db *gorm.DB, userID string, pcCode, fiscalYear int, volume float64, published bool) {
	t.Helper()
	require.NoError(t, db.Create(&domain.ExtraQuotaAssignment{
		FiscalYear:       fiscalYear,
		ProfitCenterCode: pcCode,
		UserID:           userID,
		Volume:           volume,
		IsPublished:      published,
	}).Error)
}

func seedOpportunity(t *testing.T, db *gorm.DB, o domain.SalesOpportunity) {
	t.Helper()
	require.NoError(t, db.Create(&o).Error)
}

func TestEffectiveAssignedVolume(t *testing.T) {
	db := testutil.SetupTestDB(t)
	seedQuota(t, db, "u1", 999, 2025, 1200, true)
	seedQuota(t, db, "u1", 999, 2025, 500, false)

	group := uuid.New()
	seedOpportunity(t, db, domain.SalesOpportunity{
		GroupID: group, Version: 1, Status: domain.OpportunityOpen,
		UserID: "u1", ProfitCenterCode: 999, FiscalYear: 2025, Volume: 300,
	})
	seedOpportunity(t, db, domain.SalesOpportunity{
		GroupID: group, Version: 2, Status: domain.OpportunityWon,
		UserID: "u1", ProfitCenterCode: 999, FiscalYear: 2025, Volume: 300,
	})

	got, err := newExtraQuotaService(db).EffectiveAssignedVolume(context.Background(), nil, "u1", 999, 2025)
	require.NoError(t, err)
	assert.InDelta(t, 900.0, got, 1e-9, "published quota net of won volume, unpublished rows ignored")
}

func TestEffectiveAssignedVolumeNeverNegative(t *testing.T) {
	db := testutil.SetupTestDB(t)
	seedQuota(t, db, "u1", 999, 2025, 200, true)
	seedOpportunity(t, db, domain.SalesOpportunity{
		GroupID: uuid.New(), Version: 1, Status: domain.OpportunityWon,
		UserID: "u1", ProfitCenterCode: 999, FiscalYear: 2025, Volume: 500,
	})

	got, err := newExtraQuotaService(db).EffectiveAssignedVolume(context.Background(), nil, "u1", 999, 2025)
	require.NoError(t, err)
	assert.Zero(t, got)
}

func TestEffectiveAssignedVolumeIgnoresOtherYears(t *testing.T) {
	db := testutil.SetupTestDB(t)
	seedQuota(t, db, "u1", 999, 2025, 1000, true)
	seedOpportunity(t, db, domain.SalesOpportunity{
		GroupID: uuid.New(), Version: 1, Status: domain.OpportunityWon,
		UserID: "u1", ProfitCenterCode: 999, FiscalYear: 2024, Volume: 400,
	})

	got, err := newExtraQuotaService(db).EffectiveAssignedVolume(context.Background(), nil, "u1", 999, 2025)
	require.NoError(t, err)
	assert.InDelta(t, 1000.0, got, 1e-9)
}

func TestMonthlyShare(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SeedSeasonality(t, db, 999, 2025, [12]float64{10, 10, 10, 10, 10, 10, 10, 10, 10, 4, 3, 3})

	got, err := newExtraQuotaService(db).MonthlyShare(context.Background(), nil, 900, 999, 2025, 4)
	require.NoError(t, err)
	assert.InDelta(t, 90.0, got, 1e-9)
}

func TestMonthlyShareZeroQuota(t *testing.T) {
	db := testutil.SetupTestDB(t)

	got, err := newExtraQuotaService(db).MonthlyShare(context.Background(), nil, 0, 999, 2025, 4)
	require.NoError(t, err)
	assert.Zero(t, got, "zero quota never hits seasonality lookup")
}

func TestMonthlyShareConvertsCubicMeterNativeCodes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SeedSeasonality(t, db, 110, 2025, [12]float64{10, 10, 10, 10, 10, 10, 10, 10, 10, 4, 3, 3})
	seedConversion(t, db, 110, testutil.Ptr(2025), 2.0, 1)

	got, err := newExtraQuotaService(db).MonthlyShare(context.Background(), nil, 900, 110, 2025, 4)
	require.NoError(t, err)
	assert.InDelta(t, 180.0, got, 1e-9)
}

func TestOpenPipelineVolume(t *testing.T) {
	db := testutil.SetupTestDB(t)

	open := uuid.New()
	seedOpportunity(t, db, domain.SalesOpportunity{
		GroupID: open, Version: 1, Status: domain.OpportunityOpen, ProbabilityPct: 50,
		UserID: "u1", ProfitCenterCode: 999, FiscalYear: 2025, Volume: 100,
	})
	require.NoError(t, db.Create(&domain.ExtraQuotaForecast{
		GroupID: open, Version: 1, FiscalYear: 2025, Month: 4, Volume: 100,
	}).Error)

	// A closed opportunity contributes nothing even with splits attached.
	closed := uuid.New()
	seedOpportunity(t, db, domain.SalesOpportunity{
		GroupID: closed, Version: 1, Status: domain.OpportunityWon,
		UserID: "u1", ProfitCenterCode: 999, FiscalYear: 2025, Volume: 50,
	})
	require.NoError(t, db.Create(&domain.ExtraQuotaForecast{
		GroupID: closed, Version: 1, FiscalYear: 2025, Month: 4, Volume: 50,
	}).Error)

	svc := newExtraQuotaService(db)

	full, err := svc.OpenPipelineVolume(context.Background(), nil, "u1", 999, 2025, 4, service.PipelineFull)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, full, 1e-9)

	weighted, err := svc.OpenPipelineVolume(context.Background(), nil, "u1", 999, 2025, 4, service.PipelineProbabilityWeighted)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, weighted, 1e-9)
}

func TestOpenPipelineVolumeUsesCurrentRevisionSplits(t *testing.T) {
	db := testutil.SetupTestDB(t)

	group := uuid.New()
	seedOpportunity(t, db, domain.SalesOpportunity{
		GroupID: group, Version: 1, Status: domain.OpportunityOpen,
		UserID: "u1", ProfitCenterCode: 999, FiscalYear: 2025, Volume: 100,
	})
	seedOpportunity(t, db, domain.SalesOpportunity{
		GroupID: group, Version: 2, Status: domain.OpportunityOpen,
		UserID: "u1", ProfitCenterCode: 999, FiscalYear: 2025, Volume: 80,
	})
	require.NoError(t, db.Create(&domain.ExtraQuotaForecast{
		GroupID: group, Version: 1, FiscalYear: 2025, Month: 4, Volume: 100,
	}).Error)
	require.NoError(t, db.Create(&domain.ExtraQuotaForecast{
		GroupID: group, Version: 2, FiscalYear: 2025, Month: 4, Volume: 80,
	}).Error)

	got, err := newExtraQuotaService(db).OpenPipelineVolume(context.Background(), nil, "u1", 999, 2025, 4, service.PipelineFull)
	require.NoError(t, err)
	assert.InDelta(t, 80.0, got, 1e-9)
}
