package service

import (
	"context"
	"math"

	"github.com/nordholz-group/salesplan-api/internal/domain"
	"github.com/nordholz-group/salesplan-api/internal/repository"
)

// cubicMeterNativeCodes are the business lines whose native planning unit is
// cubic meters rather than raw sales units. Fixed allow-list; adding a
// business line requires a code change.
var cubicMeterNativeCodes = map[int]bool{
	110: true,
	170: true,
	171: true,
	175: true,
}

// UsesCubicMetersNatively reports whether a profit center plans in cubic
// meters.
func UsesCubicMetersNatively(profitCenterCode int) bool {
	return cubicMeterNativeCodes[profitCenterCode]
}

// NativeUnit returns the volume unit a profit center's budgets are stored
// in.
func NativeUnit(profitCenterCode int) domain.VolumeUnit {
	if UsesCubicMetersNatively(profitCenterCode) {
		return domain.UnitCubicMeters
	}
	return domain.UnitSales
}

// UnitConverter resolves multiplicative conversion factors between a profit
// center's raw sales units and cubic meters or euros.
type UnitConverter struct {
	refs *repository.ReferenceRepository
}

// NewUnitConverter creates a new UnitConverter instance
func NewUnitConverter(refs *repository.ReferenceRepository) *UnitConverter {
	return &UnitConverter{refs: refs}
}

// FactorToCubicMeters resolves the units-to-m3 factor of a profit center.
// A row scoped to the requested fiscal year wins; otherwise the maximum
// factor across all rows of the code is used. Missing or non-finite data
// resolves to 1 (no conversion).
func (u *UnitConverter) FactorToCubicMeters(ctx context.Context, cache *RunCache, profitCenterCode int, fiscalYear *int) (float64, error) {
	return u.factor(ctx, cache, "m3", profitCenterCode, fiscalYear, func(c domain.UnitConversion) float64 { return c.FactorToM3 })
}

// FactorToEuro resolves the units-to-euro factor of a profit center with
// the same resolution policy as FactorToCubicMeters.
func (u *UnitConverter) FactorToEuro(ctx context.Context, cache *RunCache, profitCenterCode int, fiscalYear *int) (float64, error) {
	return u.factor(ctx, cache, "eur", profitCenterCode, fiscalYear, func(c domain.UnitConversion) float64 { return c.FactorToEuro })
}

func (u *UnitConverter) factor(ctx context.Context, cache *RunCache, kind string, profitCenterCode int, fiscalYear *int, pick func(domain.UnitConversion) float64) (float64, error) {
	key := factorKey(kind, profitCenterCode, fiscalYear)
	if cache != nil {
		if v, ok := cache.getFactor(key); ok {
			return v, nil
		}
	}

	rows, err := u.refs.ListUnitConversions(ctx, profitCenterCode)
	if err != nil {
		return 0, err
	}

	factor := resolveFactor(rows, fiscalYear, pick)
	if cache != nil {
		cache.putFactor(key, factor)
	}
	return factor, nil
}

func resolveFactor(rows []domain.UnitConversion, fiscalYear *int, pick func(domain.UnitConversion) float64) float64 {
	if fiscalYear != nil {
		for _, row := range rows {
			if row.FiscalYear != nil && *row.FiscalYear == *fiscalYear {
				return sanitizeFactor(pick(row))
			}
		}
	}

	best := 0.0
	found := false
	for _, row := range rows {
		v := pick(row)
		if !isUsableFactor(v) {
			continue
		}
		if !found || v > best {
			best = v
			found = true
		}
	}
	if !found {
		return 1.0
	}
	return best
}

func sanitizeFactor(v float64) float64 {
	if !isUsableFactor(v) {
		return 1.0
	}
	return v
}

func isUsableFactor(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
