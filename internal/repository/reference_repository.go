package repository

import (
	"context"

	"github.com/nordholz-group/salesplan-api/internal/domain"
	"gorm.io/gorm"
)

// ReferenceRepository handles the immutable reference data: profit centers,
// unit conversions and seasonality rows.
type ReferenceRepository struct {
	db *gorm.DB
}

// NewReferenceRepository creates a new ReferenceRepository instance
func NewReferenceRepository(db *gorm.DB) *ReferenceRepository {
	return &ReferenceRepository{db: db}
}

// ListProfitCenters returns all business lines
func (r *ReferenceRepository) ListProfitCenters(ctx context.Context) ([]domain.ProfitCenter, error) {
	var pcs []domain.ProfitCenter
	err := r.db.WithContext(ctx).Order("code ASC").Find(&pcs).Error
	return pcs, err
}

// ListUnitConversions returns all conversion rows of one profit center.
// Multiple rows may exist per code (versioned by fiscal year).
func (r *ReferenceRepository) ListUnitConversions(ctx context.Context, profitCenterCode int) ([]domain.UnitConversion, error) {
	var rows []domain.UnitConversion
	err := r.db.WithContext(ctx).
		Where("profit_center_code = ?", profitCenterCode).
		Find(&rows).Error
	return rows, err
}

// FindSeasonality returns the seasonality row for the exact fiscal year, or
// gorm.ErrRecordNotFound when absent.
func (r *ReferenceRepository) FindSeasonality(ctx context.Context, profitCenterCode, fiscalYear int) (*domain.Seasonality, error) {
	var row domain.Seasonality
	err := r.db.WithContext(ctx).
		Where("profit_center_code = ? AND fiscal_year = ?", profitCenterCode, fiscalYear).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// FindSeasonalityBefore returns the most recent seasonality row with a
// fiscal year strictly below the given one.
func (r *ReferenceRepository) FindSeasonalityBefore(ctx context.Context, profitCenterCode, fiscalYear int) (*domain.Seasonality, error) {
	var row domain.Seasonality
	err := r.db.WithContext(ctx).
		Where("profit_center_code = ? AND fiscal_year < ?", profitCenterCode, fiscalYear).
		Order("fiscal_year DESC").
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// FindOldestSeasonality returns the earliest seasonality row of a profit
// center, the extreme fallback of the resolution policy.
func (r *ReferenceRepository) FindOldestSeasonality(ctx context.Context, profitCenterCode int) (*domain.Seasonality, error) {
	var row domain.Seasonality
	err := r.db.WithContext(ctx).
		Where("profit_center_code = ?", profitCenterCode).
		Order("fiscal_year ASC").
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}
