package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/nordholz-group/salesplan-api/internal/domain"
	"gorm.io/gorm"
)

// BudgetCaseRepository handles database operations for planner growth-case
// rows and their legacy forecast-case predecessors.
type BudgetCaseRepository struct {
	db *gorm.DB
}

// NewBudgetCaseRepository creates a new BudgetCaseRepository instance
func NewBudgetCaseRepository(db *gorm.DB) *BudgetCaseRepository {
	return &BudgetCaseRepository{db: db}
}

// FindBudgetCase returns the growth-case row of a pair and fiscal year, or
// nil when none exists.
func (r *BudgetCaseRepository) FindBudgetCase(ctx context.Context, cpcID uuid.UUID, fiscalYear int) (*domain.BudgetCase, error) {
	var row domain.BudgetCase
	err := r.db.WithContext(ctx).
		Where("cpc_id = ? AND fiscal_year = ?", cpcID, fiscalYear).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// FindForecastCase returns the legacy single-percentage row of a pair and
// fiscal year, or nil when none exists.
func (r *BudgetCaseRepository) FindForecastCase(ctx context.Context, cpcID uuid.UUID, fiscalYear int) (*domain.ForecastCase, error) {
	var row domain.ForecastCase
	err := r.db.WithContext(ctx).
		Where("cpc_id = ? AND fiscal_year = ?", cpcID, fiscalYear).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}
