package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/nordholz-group/salesplan-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BudgetRepository handles database operations for budget rows
type BudgetRepository struct {
	db *gorm.DB
}

// NewBudgetRepository creates a new BudgetRepository instance
func NewBudgetRepository(db *gorm.DB) *BudgetRepository {
	return &BudgetRepository{db: db}
}

// SumVolume sums budget volume, in the pair's native unit, across planning
// pairs, one fiscal year and a set of calendar months.
func (r *BudgetRepository) SumVolume(ctx context.Context, cpcIDs []uuid.UUID, fiscalYear int, months []int) (float64, error) {
	if len(cpcIDs) == 0 || len(months) == 0 {
		return 0, nil
	}
	var total float64
	err := r.db.WithContext(ctx).
		Model(&domain.Budget{}).
		Select("COALESCE(SUM(volume), 0)").
		Where("cpc_id IN ? AND fiscal_year = ? AND month IN ?", cpcIDs, fiscalYear, months).
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum budget volume: %w", err)
	}
	return total, nil
}

// Upsert writes budget rows keyed by (cpc, fiscal year, month), replacing
// the volumes of rows that already exist.
func (r *BudgetRepository) Upsert(ctx context.Context, rows []domain.Budget) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cpc_id"}, {Name: "fiscal_year"}, {Name: "month"}},
			DoUpdates: clause.AssignmentColumns([]string{"volume", "updated_at"}),
		}).
		Create(&rows).Error
}

// DeleteByPairAndYear removes all budget rows of one pair and fiscal year.
// Used by full rebuilds before regeneration.
func (r *BudgetRepository) DeleteByPairAndYear(ctx context.Context, cpcID uuid.UUID, fiscalYear int) error {
	return r.db.WithContext(ctx).
		Where("cpc_id = ? AND fiscal_year = ?", cpcID, fiscalYear).
		Delete(&domain.Budget{}).Error
}

// ExistsForPair reports whether any budget row exists for the pair and
// fiscal year. The generator uses this to decide between skip and rebuild.
func (r *BudgetRepository) ExistsForPair(ctx context.Context, cpcID uuid.UUID, fiscalYear int) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Budget{}).
		Where("cpc_id = ? AND fiscal_year = ?", cpcID, fiscalYear).
		Count(&count).Error
	return count > 0, err
}

// ListByPairAndYear returns the budget rows of one pair and fiscal year in
// fiscal month order.
func (r *BudgetRepository) ListByPairAndYear(ctx context.Context, cpcID uuid.UUID, fiscalYear int) ([]domain.Budget, error) {
	var rows []domain.Budget
	err := r.db.WithContext(ctx).
		Where("cpc_id = ? AND fiscal_year = ?", cpcID, fiscalYear).
		Order("CASE WHEN month >= 4 THEN month - 3 ELSE month + 9 END").
		Find(&rows).Error
	return rows, err
}
