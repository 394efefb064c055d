package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/nordholz-group/salesplan-api/internal/repository"
	"github.com/nordholz-group/salesplan-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobLockAcquire(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewJobLockRepository(db)
	now := time.Date(2025, time.September, 15, 10, 0, 0, 0, time.UTC)

	ok, err := repo.Acquire(context.Background(), "budget-generation", now, now.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Acquire(context.Background(), "budget-generation", now.Add(time.Minute), now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, ok, "an unexpired lock cannot be taken over")
}

func TestJobLockAcquireAfterExpiry(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewJobLockRepository(db)
	now := time.Date(2025, time.September, 15, 10, 0, 0, 0, time.UTC)

	ok, err := repo.Acquire(context.Background(), "erp-import", now, now.Add(time.Hour))
	require.NoError(t, err)
	require.True(t, ok)

	later := now.Add(2 * time.Hour)
	ok, err = repo.Acquire(context.Background(), "erp-import", later, later.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, ok, "an expired hold is taken over")
}

func TestJobLockReleaseFreesTheLock(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewJobLockRepository(db)
	now := time.Date(2025, time.September, 15, 10, 0, 0, 0, time.UTC)

	ok, err := repo.Acquire(context.Background(), "deviation-detection", now, now.Add(time.Hour))
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, repo.Release(context.Background(), "deviation-detection", now))

	ok, err = repo.Acquire(context.Background(), "deviation-detection", now, now.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestJobLockReleaseUnknownNameIsNoOp(t *testing.T) {
	db := testutil.SetupTestDB(t)

	err := repository.NewJobLockRepository(db).Release(context.Background(), "never-taken", time.Now().UTC())
	assert.NoError(t, err)
}
