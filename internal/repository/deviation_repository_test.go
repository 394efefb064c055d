package repository_test

import (
	"context"
	"testing"

	"github.com/nordholz-group/salesplan-api/internal/domain"
	"github.com/nordholz-group/salesplan-api/internal/repository"
	"github.com/nordholz-group/salesplan-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func sampleDeviation(percent float64) *domain.Deviation {
	return &domain.Deviation{
		ProfitCenterCode: 999,
		FiscalYear:       2025,
		Month:            8,
		Type:             domain.DeviationSales,
		UserID:           "u1",
		SalesTotal:       80,
		BudgetTotal:      100,
		ForecastTotal:    0,
		Percent:          percent,
		Delta:            -20,
		Months:           domain.MonthKeys{"2025-08"},
		SalesSeries:      domain.FloatSeries{80},
		BudgetSeries:     domain.FloatSeries{100},
		ForecastSeries:   domain.FloatSeries{0},
	}
}

func TestUpsertByKeyInsertsThenUpdates(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewDeviationRepository(db)

	require.NoError(t, repo.UpsertByKey(context.Background(), sampleDeviation(80)))
	require.NoError(t, repo.UpsertByKey(context.Background(), sampleDeviation(75)))

	var count int64
	require.NoError(t, db.Model(&domain.Deviation{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	row, err := repo.GetByKey(context.Background(), sampleDeviation(0).Key())
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.InDelta(t, 75.0, row.Percent, 1e-9)
}

func TestUpsertByKeyPreservesJustified(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewDeviationRepository(db)

	require.NoError(t, repo.UpsertByKey(context.Background(), sampleDeviation(80)))

	row, err := repo.GetByKey(context.Background(), sampleDeviation(0).Key())
	require.NoError(t, err)
	require.NotNil(t, row)
	require.NoError(t, repo.SetJustified(context.Background(), row.ID, true))

	require.NoError(t, repo.UpsertByKey(context.Background(), sampleDeviation(70)))

	row, err = repo.GetByKey(context.Background(), sampleDeviation(0).Key())
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.True(t, row.Justified)
	assert.InDelta(t, 70.0, row.Percent, 1e-9)
}

func TestListByFilter(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewDeviationRepository(db)

	first := sampleDeviation(80)
	require.NoError(t, repo.UpsertByKey(context.Background(), first))

	second := sampleDeviation(120)
	second.UserID = "u2"
	second.Type = domain.DeviationForecast
	second.FiscalYear = 2024
	require.NoError(t, repo.UpsertByKey(context.Background(), second))

	rows, err := repo.ListByFilter(context.Background(), repository.DeviationFilter{UserID: testutil.Ptr("u1")})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "u1", rows[0].UserID)

	forecastType := domain.DeviationForecast
	rows, err = repo.ListByFilter(context.Background(), repository.DeviationFilter{Type: &forecastType})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.DeviationForecast, rows[0].Type)

	rows, err = repo.ListByFilter(context.Background(), repository.DeviationFilter{FiscalYear: testutil.Ptr(2024)})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row, err := repo.GetByKey(context.Background(), first.Key())
	require.NoError(t, err)
	require.NoError(t, repo.SetJustified(context.Background(), row.ID, true))

	rows, err = repo.ListByFilter(context.Background(), repository.DeviationFilter{OnlyUnreviewed: true})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].Justified)
}

func TestSetJustifiedUnknownID(t *testing.T) {
	db := testutil.SetupTestDB(t)

	err := repository.NewDeviationRepository(db).SetJustified(context.Background(), 9999, true)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestGetByKeyMiss(t *testing.T) {
	db := testutil.SetupTestDB(t)

	row, err := repository.NewDeviationRepository(db).GetByKey(context.Background(), domain.DeviationKey{
		ProfitCenterCode: 1, FiscalYear: 2025, Month: 4,
		Type: domain.DeviationSales, UserID: "nobody",
	})
	require.NoError(t, err)
	assert.Nil(t, row)
}
