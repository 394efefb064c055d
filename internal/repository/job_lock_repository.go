package repository

import (
	"context"
	"time"

	"github.com/nordholz-group/salesplan-api/internal/domain"
	"gorm.io/gorm"
)

// JobLockRepository handles the named advisory locks long-running jobs take
// before starting. A lock is one row per job name; taking it is a single
// conditional upsert so overlapping runs on different instances cannot both
// win.
type JobLockRepository struct {
	db *gorm.DB
}

// NewJobLockRepository creates a new JobLockRepository instance
func NewJobLockRepository(db *gorm.DB) *JobLockRepository {
	return &JobLockRepository{db: db}
}

// Acquire tries to take the named lock until the given expiry. It returns
// false when another holder has it and the hold has not yet expired.
func (r *JobLockRepository) Acquire(ctx context.Context, name string, now, expiresAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		INSERT INTO job_locks (name, locked_at, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT (name) DO UPDATE
		SET locked_at = EXCLUDED.locked_at, expires_at = EXCLUDED.expires_at
		WHERE job_locks.expires_at <= ?`,
		name, now, expiresAt, now)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Release expires the named lock immediately. Releasing a lock that was
// never taken is a no-op.
func (r *JobLockRepository) Release(ctx context.Context, name string, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&domain.JobLock{}).
		Where("name = ?", name).
		Update("expires_at", now).Error
}
