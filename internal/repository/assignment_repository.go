package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/nordholz-group/salesplan-api/internal/domain"
	"gorm.io/gorm"
)

// AssignmentRepository handles database operations for planning assignments,
// the mapping of users onto the planning pairs they manage.
type AssignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository creates a new AssignmentRepository instance
func NewAssignmentRepository(db *gorm.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// PlanningPair is one distinct (user, profit center) combination derived
// from the assignment table. Deviation detection iterates over these.
type PlanningPair struct {
	UserID           string
	ProfitCenterCode int
}

// CurrentHolder returns the user id of the pair's most recently updated
// assignment with a user set. Rows without a user never win.
// gorm.ErrRecordNotFound means the pair has never had a holder.
func (r *AssignmentRepository) CurrentHolder(ctx context.Context, cpcID uuid.UUID) (*string, error) {
	var row domain.PlanningAssignment
	err := r.db.WithContext(ctx).
		Where("cpc_id = ?", cpcID).
		Where("user_id IS NOT NULL").
		Order("updated_at DESC, id DESC").
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return row.UserID, nil
}

// Pairs returns the distinct (user, profit center) combinations with at
// least one assignment, optionally narrowed to a single user. Unassigned
// pairs do not appear.
func (r *AssignmentRepository) Pairs(ctx context.Context, userID *string) ([]PlanningPair, error) {
	q := r.db.WithContext(ctx).
		Table("planning_assignments pa").
		Select("DISTINCT pa.user_id AS user_id, cpc.profit_center_code AS profit_center_code").
		Joins("JOIN client_profit_centers cpc ON cpc.id = pa.cpc_id").
		Where("pa.user_id IS NOT NULL").
		Where(`NOT EXISTS (
			SELECT 1 FROM planning_assignments newer
			WHERE newer.cpc_id = pa.cpc_id AND newer.id > pa.id
		)`)
	if userID != nil {
		q = q.Where("pa.user_id = ?", *userID)
	}

	var pairs []PlanningPair
	if err := q.Order("user_id, profit_center_code").Scan(&pairs).Error; err != nil {
		return nil, err
	}
	return pairs, nil
}

// CPCIDsFor returns the ids of the planning pairs a user currently holds on
// one profit center.
func (r *AssignmentRepository) CPCIDsFor(ctx context.Context, userID string, profitCenterCode int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Table("planning_assignments pa").
		Select("pa.cpc_id").
		Joins("JOIN client_profit_centers cpc ON cpc.id = pa.cpc_id").
		Where("pa.user_id = ? AND cpc.profit_center_code = ?", userID, profitCenterCode).
		Where(`NOT EXISTS (
			SELECT 1 FROM planning_assignments newer
			WHERE newer.cpc_id = pa.cpc_id AND newer.id > pa.id
		)`).
		Scan(&ids).Error
	return ids, err
}
