package repository

import (
	"context"
	"fmt"

	"github.com/nordholz-group/salesplan-api/internal/domain"
	"gorm.io/gorm"
)

// ExtraQuotaRepository handles database operations for extra quota
// assignments, the published volumes management grants on top of regular
// budgets.
type ExtraQuotaRepository struct {
	db *gorm.DB
}

// NewExtraQuotaRepository creates a new ExtraQuotaRepository instance
func NewExtraQuotaRepository(db *gorm.DB) *ExtraQuotaRepository {
	return &ExtraQuotaRepository{db: db}
}

// PublishedAssignedVolume sums the published extra quota granted to a user
// on one profit center and fiscal year.
func (r *ExtraQuotaRepository) PublishedAssignedVolume(ctx context.Context, userID string, profitCenterCode, fiscalYear int) (float64, error) {
	var total float64
	err := r.db.WithContext(ctx).
		Model(&domain.ExtraQuotaAssignment{}).
		Select("COALESCE(SUM(volume), 0)").
		Where("user_id = ? AND profit_center_code = ? AND fiscal_year = ? AND is_published = ?", userID, profitCenterCode, fiscalYear, true).
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum extra quota: %w", err)
	}
	return total, nil
}
