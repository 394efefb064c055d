package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/nordholz-group/salesplan-api/internal/domain"
	"gorm.io/gorm"
)

// RunLogRepository handles database operations for planning run log entries
type RunLogRepository struct {
	db *gorm.DB
}

// NewRunLogRepository creates a new RunLogRepository instance
func NewRunLogRepository(db *gorm.DB) *RunLogRepository {
	return &RunLogRepository{db: db}
}

// Create persists a run log entry
func (r *RunLogRepository) Create(ctx context.Context, entry *domain.PlanningRunLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// DeleteByPairAndYear removes the run log rows of one planning pair and
// fiscal year. Full rebuilds call this before regenerating.
func (r *RunLogRepository) DeleteByPairAndYear(ctx context.Context, cpcID uuid.UUID, fiscalYear int) error {
	return r.db.WithContext(ctx).
		Where("cpc_id = ? AND fiscal_year = ?", cpcID, fiscalYear).
		Delete(&domain.PlanningRunLog{}).Error
}

// ListRecent returns the newest run log entries, optionally narrowed to one
// stage.
func (r *RunLogRepository) ListRecent(ctx context.Context, stage string, limit int) ([]domain.PlanningRunLog, error) {
	if limit <= 0 {
		limit = 50
	}
	q := r.db.WithContext(ctx).Model(&domain.PlanningRunLog{})
	if stage != "" {
		q = q.Where("stage = ?", stage)
	}
	var rows []domain.PlanningRunLog
	err := q.Order("created_at DESC").Limit(limit).Find(&rows).Error
	return rows, err
}
