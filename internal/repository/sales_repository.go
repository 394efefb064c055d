package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/nordholz-group/salesplan-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SalesRepository handles database operations for actual sales rows. Rows
// are written by the ERP import and read as plain aggregates everywhere else.
type SalesRepository struct {
	db *gorm.DB
}

// NewSalesRepository creates a new SalesRepository instance
func NewSalesRepository(db *gorm.DB) *SalesRepository {
	return &SalesRepository{db: db}
}

// volumeColumn maps a unit onto its native column. Kept as a switch so the
// column name can never come from request input.
func volumeColumn(unit domain.VolumeUnit) (string, error) {
	switch unit {
	case domain.UnitSales:
		return "sales_units", nil
	case domain.UnitCubicMeters:
		return "cubic_meters", nil
	case domain.UnitEuros:
		return "euros", nil
	}
	return "", fmt.Errorf("unknown volume unit %q", unit)
}

// SumVolume sums the native column matching unit across the given planning
// pairs, one fiscal year and an arbitrary set of calendar months.
func (r *SalesRepository) SumVolume(ctx context.Context, cpcIDs []uuid.UUID, fiscalYear int, months []int, unit domain.VolumeUnit) (float64, error) {
	if len(cpcIDs) == 0 || len(months) == 0 {
		return 0, nil
	}
	column, err := volumeColumn(unit)
	if err != nil {
		return 0, err
	}

	var total float64
	err = r.db.WithContext(ctx).
		Model(&domain.Sale{}).
		Select(fmt.Sprintf("COALESCE(SUM(%s), 0)", column)).
		Where("cpc_id IN ? AND fiscal_year = ? AND month IN ?", cpcIDs, fiscalYear, months).
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum sales volume: %w", err)
	}
	return total, nil
}

// UpsertMonthly inserts or updates sales rows keyed by (cpc, fiscal year,
// month). Used by the ERP import.
func (r *SalesRepository) UpsertMonthly(ctx context.Context, rows []domain.Sale) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "cpc_id"}, {Name: "fiscal_year"}, {Name: "month"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"sales_units", "cubic_meters", "euros", "imported_at",
			}),
		}).
		Create(&rows).Error
}

// ListByPairAndYear returns the raw sales rows of one pair and fiscal year,
// in fiscal month order.
func (r *SalesRepository) ListByPairAndYear(ctx context.Context, cpcID uuid.UUID, fiscalYear int) ([]domain.Sale, error) {
	var rows []domain.Sale
	err := r.db.WithContext(ctx).
		Where("cpc_id = ? AND fiscal_year = ?", cpcID, fiscalYear).
		Order("CASE WHEN month >= 4 THEN month - 3 ELSE month + 9 END").
		Find(&rows).Error
	return rows, err
}
