package service_test

import (
	"context"
	"testing"

	"github.com/nordholz-group/salesplan-api/internal/domain"
	"github.com/nordholz-group/salesplan-api/internal/repository"
	"github.com/nordholz-group/salesplan-api/internal/service"
	"github.com/nordholz-group/salesplan-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newResolver(db *gorm.DB) *service.SeasonalityResolver {
	return service.NewSeasonalityResolver(repository.NewReferenceRepository(db))
}

func TestWeightsForExactYear(t *testing.T) {
	db := testutil.SetupTestDB(t)
	w := [12]float64{20, 10, 10, 10, 10, 10, 5, 5, 5, 5, 5, 5}
	testutil.SeedSeasonality(t, db, 200, 2025, w)

	got, usedYear, err := newResolver(db).WeightsFor(context.Background(), nil, 200, 2025)
	require.NoError(t, err)
	assert.Equal(t, 2025, usedYear)
	assert.Equal(t, 20.0, got.At(1))
	assert.Equal(t, 5.0, got.At(12))
}

func TestWeightsForFallsBackToNearestOlderYear(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SeedSeasonality(t, db, 200, 2021, [12]float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 89})
	testutil.SeedSeasonality(t, db, 200, 2023, [12]float64{30, 10, 10, 10, 10, 10, 5, 5, 5, 2, 2, 1})

	_, usedYear, err := newResolver(db).WeightsFor(context.Background(), nil, 200, 2025)
	require.NoError(t, err)
	assert.Equal(t, 2023, usedYear, "the nearest year below the requested one wins")
}

func TestWeightsForFallsBackToOldestYear(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SeedSeasonality(t, db, 200, 2027, [12]float64{30, 10, 10, 10, 10, 10, 5, 5, 5, 2, 2, 1})
	testutil.SeedSeasonality(t, db, 200, 2029, [12]float64{10, 10, 10, 10, 10, 10, 10, 10, 10, 5, 3, 2})

	// Requested year is below every row on record, so the nearest-below
	// lookup misses and the oldest row is used.
	_, usedYear, err := newResolver(db).WeightsFor(context.Background(), nil, 200, 2025)
	require.NoError(t, err)
	assert.Equal(t, 2027, usedYear)
}

func TestWeightsForNoHistory(t *testing.T) {
	db := testutil.SetupTestDB(t)

	_, _, err := newResolver(db).WeightsFor(context.Background(), nil, 200, 2025)
	assert.ErrorIs(t, err, service.ErrNoSeasonalityData)
}

func TestWeightsForSubstitutesUniformSplit(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SeedSeasonality(t, db, 200, 2025, [12]float64{})

	got, _, err := newResolver(db).WeightsFor(context.Background(), nil, 200, 2025)
	require.NoError(t, err)
	assert.Equal(t, domain.UniformWeights(), got)
	assert.InDelta(t, 100.0, got.Total(), 1e-9)
}

func TestWeightsForUsesRunCache(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SeedSeasonality(t, db, 200, 2025, [12]float64{20, 10, 10, 10, 10, 10, 5, 5, 5, 5, 5, 5})

	resolver := newResolver(db)
	cache := service.NewRunCache()

	first, _, err := resolver.WeightsFor(context.Background(), cache, 200, 2025)
	require.NoError(t, err)

	// Remove the row; a cached run must not notice.
	require.NoError(t, db.Where("profit_center_code = ?", 200).Delete(&domain.Seasonality{}).Error)

	second, _, err := resolver.WeightsFor(context.Background(), cache, 200, 2025)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestYTDPercent(t *testing.T) {
	w := domain.SeasonalityWeights{10, 10, 10, 10, 10, 10, 10, 10, 10, 4, 3, 3}

	assert.InDelta(t, 50.0, service.YTDPercent(w, 1, 5), 1e-9)
	assert.InDelta(t, 10.0, service.YTDPercent(w, 10, 12), 1e-9)
	assert.InDelta(t, 100.0, service.YTDPercent(w, 1, 12), 1e-9)
	assert.Zero(t, service.YTDPercent(w, 5, 3), "inverted range sums nothing")
}
