package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/nordholz-group/salesplan-api/internal/service"
	"github.com/nordholz-group/salesplan-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobLockAcquireAndRelease(t *testing.T) {
	db := testutil.SetupTestDB(t)
	clock := septemberClock(2025)
	locks := newLockManager(db, clock)

	release, err := locks.Acquire(context.Background(), service.LockBudgetGeneration)
	require.NoError(t, err)

	_, err = locks.Acquire(context.Background(), service.LockBudgetGeneration)
	assert.ErrorIs(t, err, service.ErrJobAlreadyRunning)

	release()

	release, err = locks.Acquire(context.Background(), service.LockBudgetGeneration)
	require.NoError(t, err)
	release()
}

func TestJobLocksAreIndependentByName(t *testing.T) {
	db := testutil.SetupTestDB(t)
	clock := septemberClock(2025)
	locks := newLockManager(db, clock)

	_, err := locks.Acquire(context.Background(), service.LockBudgetGeneration)
	require.NoError(t, err)

	release, err := locks.Acquire(context.Background(), service.LockDeviationDetection)
	require.NoError(t, err)
	release()
}

func TestJobLockExpiresWithoutRelease(t *testing.T) {
	db := testutil.SetupTestDB(t)
	start := time.Date(2025, time.September, 15, 10, 0, 0, 0, time.UTC)

	locks := newLockManager(db, service.FixedClock(start))
	_, err := locks.Acquire(context.Background(), service.LockERPImport)
	require.NoError(t, err)

	// The default hold is six hours; a crashed run frees the lock by
	// letting it lapse.
	stillHeld := newLockManager(db, service.FixedClock(start.Add(5*time.Hour)))
	_, err = stillHeld.Acquire(context.Background(), service.LockERPImport)
	assert.ErrorIs(t, err, service.ErrJobAlreadyRunning)

	lapsed := newLockManager(db, service.FixedClock(start.Add(7*time.Hour)))
	release, err := lapsed.Acquire(context.Background(), service.LockERPImport)
	require.NoError(t, err)
	release()
}
