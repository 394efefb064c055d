package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/nordholz-group/salesplan-api/internal/domain"
	"gorm.io/gorm"
)

// ForecastRepository handles database operations for forecast rows. A cell
// may hold several versions; readers always resolve the latest one, where
// latest means highest version and, within a version, highest row id.
type ForecastRepository struct {
	db *gorm.DB
}

// NewForecastRepository creates a new ForecastRepository instance
func NewForecastRepository(db *gorm.DB) *ForecastRepository {
	return &ForecastRepository{db: db}
}

// latestFilter keeps only rows with no newer sibling in the same cell. The
// user id comparison has to be null safe because house forecasts carry no
// owner.
const latestFilter = `NOT EXISTS (
	SELECT 1 FROM forecasts g
	WHERE g.cpc_id = forecasts.cpc_id
	  AND g.fiscal_year = forecasts.fiscal_year
	  AND g.month = forecasts.month
	  AND ((g.user_id IS NULL AND forecasts.user_id IS NULL) OR g.user_id = forecasts.user_id)
	  AND (g.version > forecasts.version OR (g.version = forecasts.version AND g.id > forecasts.id))
)`

// SumLatestVolume sums the latest-version forecast volume, in the pair's
// native unit, across planning pairs, one fiscal year and a set of calendar
// months.
func (r *ForecastRepository) SumLatestVolume(ctx context.Context, cpcIDs []uuid.UUID, fiscalYear int, months []int) (float64, error) {
	if len(cpcIDs) == 0 || len(months) == 0 {
		return 0, nil
	}
	var total float64
	err := r.db.WithContext(ctx).
		Model(&domain.Forecast{}).
		Select("COALESCE(SUM(volume), 0)").
		Where("cpc_id IN ? AND fiscal_year = ? AND month IN ?", cpcIDs, fiscalYear, months).
		Where(latestFilter).
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum forecast volume: %w", err)
	}
	return total, nil
}

// ListLatestByPairAndYear returns the latest-version forecast rows of one
// pair and fiscal year in fiscal month order.
func (r *ForecastRepository) ListLatestByPairAndYear(ctx context.Context, cpcID uuid.UUID, fiscalYear int) ([]domain.Forecast, error) {
	var rows []domain.Forecast
	err := r.db.WithContext(ctx).
		Where("cpc_id = ? AND fiscal_year = ?", cpcID, fiscalYear).
		Where(latestFilter).
		Order("CASE WHEN month >= 4 THEN month - 3 ELSE month + 9 END").
		Find(&rows).Error
	return rows, err
}

// InsertBatch writes new forecast rows. Versioning is append-only, so this
// never updates.
func (r *ForecastRepository) InsertBatch(ctx context.Context, rows []domain.Forecast) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

// HasVersion reports whether any forecast row of a pair, fiscal year and
// version exists, null-safely matching the owner.
func (r *ForecastRepository) HasVersion(ctx context.Context, cpcID uuid.UUID, fiscalYear, version int, userID *string) (bool, error) {
	q := r.db.WithContext(ctx).
		Model(&domain.Forecast{}).
		Where("cpc_id = ? AND fiscal_year = ? AND version = ?", cpcID, fiscalYear, version)
	if userID == nil {
		q = q.Where("user_id IS NULL")
	} else {
		q = q.Where("user_id = ?", *userID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// DeleteVersion removes one version of a pair's forecast, null-safely
// matching the owner. Used when a generation run overwrites.
func (r *ForecastRepository) DeleteVersion(ctx context.Context, cpcID uuid.UUID, fiscalYear, version int, userID *string) error {
	q := r.db.WithContext(ctx).
		Where("cpc_id = ? AND fiscal_year = ? AND version = ?", cpcID, fiscalYear, version)
	if userID == nil {
		q = q.Where("user_id IS NULL")
	} else {
		q = q.Where("user_id = ?", *userID)
	}
	return q.Delete(&domain.Forecast{}).Error
}
