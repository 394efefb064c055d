package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/nordholz-group/salesplan-api/internal/domain"
	"github.com/nordholz-group/salesplan-api/internal/repository"
	"gorm.io/gorm"
)

// SeasonalityResolver resolves the twelve monthly weights of a profit
// center for a fiscal year, falling back to older years when the requested
// one has no row.
type SeasonalityResolver struct {
	refs *repository.ReferenceRepository
}

// NewSeasonalityResolver creates a new SeasonalityResolver instance
func NewSeasonalityResolver(refs *repository.ReferenceRepository) *SeasonalityResolver {
	return &SeasonalityResolver{refs: refs}
}

// WeightsFor resolves weights for a profit center and fiscal year. The
// lookup order is exact year, then the nearest year below, then the oldest
// row on record. The fiscal year actually used is returned alongside so
// callers can report provenance. ErrNoSeasonalityData when the profit
// center has no history at all.
//
// An entirely non-positive weight map is replaced by a uniform 1/12 split.
func (s *SeasonalityResolver) WeightsFor(ctx context.Context, cache *RunCache, profitCenterCode, fiscalYear int) (domain.SeasonalityWeights, int, error) {
	key := weightsKey(profitCenterCode, fiscalYear)
	if cache != nil {
		if w, usedYear, ok := cache.getWeights(key); ok {
			return w, usedYear, nil
		}
	}

	row, err := s.lookup(ctx, profitCenterCode, fiscalYear)
	if err != nil {
		return domain.SeasonalityWeights{}, 0, err
	}

	weights := row.Weights()
	if weights.AllNonPositive() {
		weights = domain.UniformWeights()
	}
	if cache != nil {
		cache.putWeights(key, weights, row.FiscalYear)
	}
	return weights, row.FiscalYear, nil
}

func (s *SeasonalityResolver) lookup(ctx context.Context, profitCenterCode, fiscalYear int) (*domain.Seasonality, error) {
	row, err := s.refs.FindSeasonality(ctx, profitCenterCode, fiscalYear)
	if err == nil {
		return row, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	row, err = s.refs.FindSeasonalityBefore(ctx, profitCenterCode, fiscalYear)
	if err == nil {
		return row, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	row, err = s.refs.FindOldestSeasonality(ctx, profitCenterCode)
	if err == nil {
		return row, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	return nil, fmt.Errorf("profit center %d: %w", profitCenterCode, ErrNoSeasonalityData)
}

// YTDPercent sums weights over a closed fiscal-month-index range, 1-based
// with April = 1. Out-of-range or inverted bounds contribute nothing.
func YTDPercent(weights domain.SeasonalityWeights, fromFiscalIndex, toFiscalIndex int) float64 {
	var sum float64
	for i := fromFiscalIndex; i <= toFiscalIndex; i++ {
		sum += weights.At(i)
	}
	return sum
}
