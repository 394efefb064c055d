package service

import (
	"context"
	"time"

	"github.com/nordholz-group/salesplan-api/internal/repository"
	"go.uber.org/zap"
)

// Job lock names. One lock per batch entry point.
const (
	LockBudgetGeneration   = "budget-generation"
	LockForecastGeneration = "forecast-generation"
	LockDeviationDetection = "deviation-detection"
	LockERPImport          = "erp-import"
)

// JobLockManager serializes batch entry points through named database
// locks. Overlapping triggers are rejected, not queued; a stuck run is
// cleared by lock expiry rather than active cancellation.
type JobLockManager struct {
	locks  *repository.JobLockRepository
	clock  Clock
	ttl    time.Duration
	logger *zap.Logger
}

// NewJobLockManager creates a new JobLockManager instance
func NewJobLockManager(locks *repository.JobLockRepository, clock Clock, ttl time.Duration, logger *zap.Logger) *JobLockManager {
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &JobLockManager{locks: locks, clock: clock, ttl: ttl, logger: logger}
}

// Acquire takes the named lock and returns a release function. It returns
// ErrJobAlreadyRunning when another holder has the lock and its expiry has
// not passed.
func (m *JobLockManager) Acquire(ctx context.Context, name string) (func(), error) {
	now := m.clock.Now()
	ok, err := m.locks.Acquire(ctx, name, now, now.Add(m.ttl))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrJobAlreadyRunning
	}

	release := func() {
		if err := m.locks.Release(context.Background(), name, m.clock.Now()); err != nil {
			m.logger.Warn("failed to release job lock",
				zap.String("lock", name),
				zap.Error(err))
		}
	}
	return release, nil
}
