package repository

import (
	"context"
	"errors"

	"github.com/nordholz-group/salesplan-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeviationRepository handles database operations for deviation findings
type DeviationRepository struct {
	db *gorm.DB
}

// NewDeviationRepository creates a new DeviationRepository instance
func NewDeviationRepository(db *gorm.DB) *DeviationRepository {
	return &DeviationRepository{db: db}
}

// UpsertByKey writes a deviation finding keyed by (profit center, fiscal
// year, month, type, user). Re-detection refreshes the figures but must not
// touch the justified flag a reviewer may have set.
func (r *DeviationRepository) UpsertByKey(ctx context.Context, row *domain.Deviation) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "profit_center_code"}, {Name: "fiscal_year"},
				{Name: "month"}, {Name: "deviation_type"}, {Name: "user_id"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"sales_total", "budget_total", "forecast_total",
				"percent", "delta",
				"months", "sales_series", "budget_series", "forecast_series",
				"updated_at",
			}),
		}).
		Create(row).Error
}

// DeviationFilter narrows ListByFilter. Zero-valued fields are ignored.
type DeviationFilter struct {
	UserID         *string
	FiscalYear     *int
	Type           *domain.DeviationType
	OnlyUnreviewed bool
}

// ListByFilter returns deviation findings matching the filter, newest
// first.
func (r *DeviationRepository) ListByFilter(ctx context.Context, filter DeviationFilter) ([]domain.Deviation, error) {
	q := r.db.WithContext(ctx).Model(&domain.Deviation{})
	if filter.UserID != nil {
		q = q.Where("user_id = ?", *filter.UserID)
	}
	if filter.FiscalYear != nil {
		q = q.Where("fiscal_year = ?", *filter.FiscalYear)
	}
	if filter.Type != nil {
		q = q.Where("deviation_type = ?", *filter.Type)
	}
	if filter.OnlyUnreviewed {
		q = q.Where("justified = ?", false)
	}

	var rows []domain.Deviation
	err := q.Order("updated_at DESC, id DESC").Find(&rows).Error
	return rows, err
}

// GetByKey returns the finding matching one logical key, or nil when none
// exists.
func (r *DeviationRepository) GetByKey(ctx context.Context, key domain.DeviationKey) (*domain.Deviation, error) {
	var row domain.Deviation
	err := r.db.WithContext(ctx).
		Where("profit_center_code = ? AND fiscal_year = ? AND month = ? AND deviation_type = ? AND user_id = ?",
			key.ProfitCenterCode, key.FiscalYear, key.Month, key.Type, key.UserID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// SetJustified marks a finding reviewed or not reviewed.
func (r *DeviationRepository) SetJustified(ctx context.Context, id uint, justified bool) error {
	res := r.db.WithContext(ctx).
		Model(&domain.Deviation{}).
		Where("id = ?", id).
		Update("justified", justified)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
