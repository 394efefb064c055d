package service

import (
	"context"

	"github.com/nordholz-group/salesplan-api/internal/fiscal"
	"github.com/nordholz-group/salesplan-api/internal/repository"
	"gorm.io/gorm"
)

// PipelineStrategy selects how open opportunities contribute to forecast
// composition.
type PipelineStrategy int

const (
	// PipelineFull counts each open opportunity's forecast split at face
	// value. The live calculation path.
	PipelineFull PipelineStrategy = iota
	// PipelineProbabilityWeighted scales each split by the opportunity's
	// probability. Kept behind the same interface for a secondary code
	// path whose call site is still unsettled.
	PipelineProbabilityWeighted
)

// ExtraQuotaService computes the pipeline-driven volumes layered on top of
// generated budgets: effective assigned quota, its monthly seasonal share,
// and the open-opportunity forecast contribution. Budget rows never store
// these; composition happens at read time.
type ExtraQuotaService struct {
	assignments   *repository.ExtraQuotaRepository
	opportunities *repository.OpportunityRepository
	seasonality   *SeasonalityResolver
	converter     *UnitConverter
}

// NewExtraQuotaService creates a new ExtraQuotaService instance
func NewExtraQuotaService(db *gorm.DB, seasonality *SeasonalityResolver, converter *UnitConverter) *ExtraQuotaService {
	return &ExtraQuotaService{
		assignments:   repository.NewExtraQuotaRepository(db),
		opportunities: repository.NewOpportunityRepository(db),
		seasonality:   seasonality,
		converter:     converter,
	}
}

// EffectiveAssignedVolume returns the published extra quota of a user on
// one profit center and fiscal year, net of opportunities already won.
// Never negative.
func (s *ExtraQuotaService) EffectiveAssignedVolume(ctx context.Context, cache *RunCache, userID string, profitCenterCode, fiscalYear int) (float64, error) {
	key := effectiveKey(userID, profitCenterCode, fiscalYear)
	if cache != nil {
		if v, ok := cache.getEffective(key); ok {
			return v, nil
		}
	}

	assigned, err := s.assignments.PublishedAssignedVolume(ctx, userID, profitCenterCode, fiscalYear)
	if err != nil {
		return 0, err
	}

	current, err := s.opportunities.CurrentOpportunities(ctx, userID, profitCenterCode)
	if err != nil {
		return 0, err
	}
	var won float64
	for i := range current {
		o := &current[i]
		if o.FiscalYear == fiscalYear && o.Won() {
			won += o.Volume
		}
	}

	effective := assigned - won
	if effective < 0 {
		effective = 0
	}
	if cache != nil {
		cache.putEffective(key, effective)
	}
	return effective, nil
}

// MonthlyShare splits an effective quota volume onto one calendar month by
// seasonality weight, converted to cubic meters when the profit center is
// cubic-meter-native.
func (s *ExtraQuotaService) MonthlyShare(ctx context.Context, cache *RunCache, effectiveVolume float64, profitCenterCode, fiscalYear, month int) (float64, error) {
	if effectiveVolume <= 0 {
		return 0, nil
	}
	weights, _, err := s.seasonality.WeightsFor(ctx, cache, profitCenterCode, fiscalYear)
	if err != nil {
		return 0, err
	}
	share := effectiveVolume * weights.At(fiscal.IndexOf(month)) / 100

	return s.toNativeUnit(ctx, cache, share, profitCenterCode, fiscalYear)
}

// OpenPipelineVolume sums the forecast splits of a user's current open
// opportunities on one profit center for a single month, converted to the
// profit center's native unit. The probability-weighted strategy scales
// each opportunity's contribution by clamp(probability, 0, 100)/100.
func (s *ExtraQuotaService) OpenPipelineVolume(ctx context.Context, cache *RunCache, userID string, profitCenterCode, fiscalYear, month int, strategy PipelineStrategy) (float64, error) {
	current, err := s.opportunities.CurrentOpportunities(ctx, userID, profitCenterCode)
	if err != nil {
		return 0, err
	}

	var total float64
	for i := range current {
		o := &current[i]
		if o.Closed() {
			continue
		}
		v, err := s.opportunities.ForecastVolume(ctx, o.GroupID, o.Version, fiscalYear, month)
		if err != nil {
			return 0, err
		}
		if strategy == PipelineProbabilityWeighted {
			v *= clampPct(o.ProbabilityPct) / 100
		}
		total += v
	}

	return s.toNativeUnit(ctx, cache, total, profitCenterCode, fiscalYear)
}

// toNativeUnit converts a raw-unit volume to cubic meters for m3-native
// profit centers, and passes it through unchanged otherwise.
func (s *ExtraQuotaService) toNativeUnit(ctx context.Context, cache *RunCache, volume float64, profitCenterCode, fiscalYear int) (float64, error) {
	if volume == 0 || !UsesCubicMetersNatively(profitCenterCode) {
		return volume, nil
	}
	factor, err := s.converter.FactorToCubicMeters(ctx, cache, profitCenterCode, &fiscalYear)
	if err != nil {
		return 0, err
	}
	return volume * factor, nil
}

func clampPct(pct int) float64 {
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return float64(pct)
}
