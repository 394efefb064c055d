package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/nordholz-group/salesplan-api/internal/domain"
	"github.com/nordholz-group/salesplan-api/internal/repository"
	"github.com/nordholz-group/salesplan-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestCurrentHolderNewestAssignmentWins(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cpc := testutil.SeedPair(t, db, "10001", 999, 1)
	testutil.SeedAssignment(t, db, cpc.ID, testutil.Ptr("u1"))
	testutil.SeedAssignment(t, db, cpc.ID, testutil.Ptr("u2"))

	owner, err := repository.NewAssignmentRepository(db).CurrentHolder(context.Background(), cpc.ID)
	require.NoError(t, err)
	require.NotNil(t, owner)
	assert.Equal(t, "u2", *owner)
}

func TestCurrentHolderSkipsRowsWithoutUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cpc := testutil.SeedPair(t, db, "10001", 999, 1)
	testutil.SeedAssignment(t, db, cpc.ID, testutil.Ptr("u1"))
	testutil.SeedAssignment(t, db, cpc.ID, nil)

	owner, err := repository.NewAssignmentRepository(db).CurrentHolder(context.Background(), cpc.ID)
	require.NoError(t, err)
	require.NotNil(t, owner, "a newer row without a user must not hide the holder")
	assert.Equal(t, "u1", *owner)
}

func TestCurrentHolderLatestUpdateWins(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cpc := testutil.SeedPair(t, db, "10001", 999, 1)

	base := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, db.Create(&domain.PlanningAssignment{
		CPCID:     cpc.ID,
		UserID:    testutil.Ptr("u1"),
		CreatedAt: base,
		UpdatedAt: base.Add(2 * time.Hour),
	}).Error)
	require.NoError(t, db.Create(&domain.PlanningAssignment{
		CPCID:     cpc.ID,
		UserID:    testutil.Ptr("u2"),
		CreatedAt: base,
		UpdatedAt: base,
	}).Error)

	owner, err := repository.NewAssignmentRepository(db).CurrentHolder(context.Background(), cpc.ID)
	require.NoError(t, err)
	require.NotNil(t, owner)
	assert.Equal(t, "u1", *owner, "the older row was touched last, so it holds the pair")
}

func TestCurrentHolderNoAssignment(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cpc := testutil.SeedPair(t, db, "10001", 999, 1)

	_, err := repository.NewAssignmentRepository(db).CurrentHolder(context.Background(), cpc.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	// A pair that only ever carried rows without a user is treated the same
	// as one with no rows at all.
	testutil.SeedAssignment(t, db, cpc.ID, nil)
	_, err = repository.NewAssignmentRepository(db).CurrentHolder(context.Background(), cpc.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestPairsDistinctAndCurrentOnly(t *testing.T) {
	db := testutil.SetupTestDB(t)

	// Two clients on the same profit center held by the same user collapse
	// into one pair.
	first := testutil.SeedPair(t, db, "10001", 999, 1)
	second := testutil.SeedPair(t, db, "10002", 999, 1)
	testutil.SeedAssignment(t, db, first.ID, testutil.Ptr("u1"))
	testutil.SeedAssignment(t, db, second.ID, testutil.Ptr("u1"))

	// A pair whose newest assignment is null does not show up.
	third := testutil.SeedPair(t, db, "10003", 170, 1)
	testutil.SeedAssignment(t, db, third.ID, testutil.Ptr("u2"))
	testutil.SeedAssignment(t, db, third.ID, nil)

	pairs, err := repository.NewAssignmentRepository(db).Pairs(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, "u1", pairs[0].UserID)
	assert.Equal(t, 999, pairs[0].ProfitCenterCode)
}

func TestPairsFilteredByUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	first := testutil.SeedPair(t, db, "10001", 999, 1)
	second := testutil.SeedPair(t, db, "10002", 170, 1)
	testutil.SeedAssignment(t, db, first.ID, testutil.Ptr("u1"))
	testutil.SeedAssignment(t, db, second.ID, testutil.Ptr("u2"))

	pairs, err := repository.NewAssignmentRepository(db).Pairs(context.Background(), testutil.Ptr("u2"))
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, 170, pairs[0].ProfitCenterCode)
}

func TestCPCIDsFor(t *testing.T) {
	db := testutil.SetupTestDB(t)
	first := testutil.SeedPair(t, db, "10001", 999, 1)
	second := testutil.SeedPair(t, db, "10002", 999, 1)
	other := testutil.SeedPair(t, db, "10003", 170, 1)
	testutil.SeedAssignment(t, db, first.ID, testutil.Ptr("u1"))
	testutil.SeedAssignment(t, db, second.ID, testutil.Ptr("u1"))
	testutil.SeedAssignment(t, db, other.ID, testutil.Ptr("u1"))

	ids, err := repository.NewAssignmentRepository(db).CPCIDsFor(context.Background(), "u1", 999)
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.ElementsMatch(t, []string{first.ID.String(), second.ID.String()}, []string{ids[0].String(), ids[1].String()})
}

func TestCPCIDsForExcludesReassignedPairs(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cpc := testutil.SeedPair(t, db, "10001", 999, 1)
	testutil.SeedAssignment(t, db, cpc.ID, testutil.Ptr("u1"))
	testutil.SeedAssignment(t, db, cpc.ID, testutil.Ptr("u2"))

	ids, err := repository.NewAssignmentRepository(db).CPCIDsFor(context.Background(), "u1", 999)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
