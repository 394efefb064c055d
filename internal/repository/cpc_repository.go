package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/nordholz-group/salesplan-api/internal/domain"
	"gorm.io/gorm"
)

// CPCRepository handles database operations for client profit centers, the
// atomic planning units.
type CPCRepository struct {
	db *gorm.DB
}

// NewCPCRepository creates a new CPCRepository instance
func NewCPCRepository(db *gorm.DB) *CPCRepository {
	return &CPCRepository{db: db}
}

// GetByID retrieves a planning pair by its surrogate id
func (r *CPCRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.ClientProfitCenter, error) {
	var cpc domain.ClientProfitCenter
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&cpc).Error
	if err != nil {
		return nil, err
	}
	return &cpc, nil
}

// ListAll returns every planning pair, ordered for stable batch iteration
func (r *CPCRepository) ListAll(ctx context.Context) ([]domain.ClientProfitCenter, error) {
	var cpcs []domain.ClientProfitCenter
	err := r.db.WithContext(ctx).
		Order("client_number ASC, profit_center_code ASC").
		Find(&cpcs).Error
	return cpcs, err
}

// GetByClientAndProfitCenter resolves a pair by its business identity, used
// by the ERP import to map incoming rows onto surrogate ids
func (r *CPCRepository) GetByClientAndProfitCenter(ctx context.Context, clientNumber string, profitCenterCode int) (*domain.ClientProfitCenter, error) {
	var cpc domain.ClientProfitCenter
	err := r.db.WithContext(ctx).
		Where("client_number = ? AND profit_center_code = ?", clientNumber, profitCenterCode).
		First(&cpc).Error
	if err != nil {
		return nil, err
	}
	return &cpc, nil
}

// ListByProfitCenter returns all pairs of one business line
func (r *CPCRepository) ListByProfitCenter(ctx context.Context, profitCenterCode int) ([]domain.ClientProfitCenter, error) {
	var cpcs []domain.ClientProfitCenter
	err := r.db.WithContext(ctx).
		Where("profit_center_code = ?", profitCenterCode).
		Find(&cpcs).Error
	return cpcs, err
}
