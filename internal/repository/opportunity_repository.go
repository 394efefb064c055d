package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/nordholz-group/salesplan-api/internal/domain"
	"gorm.io/gorm"
)

// OpportunityRepository handles database operations for sales opportunities
// and their attached monthly forecast and budget splits.
type OpportunityRepository struct {
	db *gorm.DB
}

// NewOpportunityRepository creates a new OpportunityRepository instance
func NewOpportunityRepository(db *gorm.DB) *OpportunityRepository {
	return &OpportunityRepository{db: db}
}

// currentFilter keeps only the newest revision within each opportunity
// group, highest version first and row id as tie break.
const currentFilter = `NOT EXISTS (
	SELECT 1 FROM sales_opportunities o
	WHERE o.group_id = sales_opportunities.group_id
	  AND (o.version > sales_opportunities.version OR (o.version = sales_opportunities.version AND o.id > sales_opportunities.id))
)`

// CurrentOpportunities returns the current revision of every opportunity a
// user owns on one profit center.
func (r *OpportunityRepository) CurrentOpportunities(ctx context.Context, userID string, profitCenterCode int) ([]domain.SalesOpportunity, error) {
	var rows []domain.SalesOpportunity
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND profit_center_code = ?", userID, profitCenterCode).
		Where(currentFilter).
		Find(&rows).Error
	return rows, err
}

// ForecastVolume sums an opportunity revision's forecast split for one
// fiscal year and calendar month.
func (r *OpportunityRepository) ForecastVolume(ctx context.Context, groupID uuid.UUID, version, fiscalYear, month int) (float64, error) {
	var total float64
	err := r.db.WithContext(ctx).
		Model(&domain.ExtraQuotaForecast{}).
		Select("COALESCE(SUM(volume), 0)").
		Where("group_id = ? AND version = ? AND fiscal_year = ? AND month = ?", groupID, version, fiscalYear, month).
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum opportunity forecast: %w", err)
	}
	return total, nil
}

// BudgetVolume sums an opportunity revision's budget split for one fiscal
// year and calendar month.
func (r *OpportunityRepository) BudgetVolume(ctx context.Context, groupID uuid.UUID, version, fiscalYear, month int) (float64, error) {
	var total float64
	err := r.db.WithContext(ctx).
		Model(&domain.ExtraQuotaBudget{}).
		Select("COALESCE(SUM(volume), 0)").
		Where("group_id = ? AND version = ? AND fiscal_year = ? AND month = ?", groupID, version, fiscalYear, month).
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum opportunity budget: %w", err)
	}
	return total, nil
}
