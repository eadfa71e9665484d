package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/surrogate/internal/openml"
	"github.com/banshee-data/surrogate/internal/testutil"
	"github.com/banshee-data/surrogate/internal/timeutil"
)

func TestCachedStudyTasks(t *testing.T) {
	repo := testutil.NewFakeRepository()
	repo.Studies["OpenML100"] = []int{11, 3, 6}
	cache := NewCachedRepository(newTestDB(t), repo)
	ctx := context.Background()

	first, err := cache.StudyTasks(ctx, "OpenML100")
	require.NoError(t, err)
	second, err := cache.StudyTasks(ctx, "OpenML100")
	require.NoError(t, err)

	assert.Equal(t, []int{11, 3, 6}, first)
	assert.Equal(t, first, second, "cached order is preserved")
	assert.Equal(t, 1, repo.StudyCalls)
}

func TestCachedStudyTasksError(t *testing.T) {
	repo := testutil.NewFakeRepository()
	cache := NewCachedRepository(newTestDB(t), repo)

	_, err := cache.StudyTasks(context.Background(), "unknown")
	assert.Error(t, err)
	_, err = cache.StudyTasks(context.Background(), "unknown")
	assert.Error(t, err)
	assert.Equal(t, 2, repo.StudyCalls, "errors are not cached")
}

func TestCachedRuns(t *testing.T) {
	repo := testutil.NewFakeRepository()
	repo.Runs[3] = testutil.SVCRuns(5)
	cache := NewCachedRepository(newTestDB(t), repo)
	ctx := context.Background()
	q := openml.RunQuery{TaskID: 3, FlowID: 7707, Limit: 500, Measure: "predictive_accuracy"}

	first, err := cache.TaskFlowRuns(ctx, q)
	require.NoError(t, err)
	second, err := cache.TaskFlowRuns(ctx, q)
	require.NoError(t, err)

	assert.Equal(t, 1, repo.RunCalls)
	assert.Equal(t, first, second)
	assert.Equal(t, repo.Runs[3], second)

	// A different limit is a different query.
	q.Limit = 2
	limited, err := cache.TaskFlowRuns(ctx, q)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
	assert.Equal(t, 2, repo.RunCalls)
}

func TestCachedRunsEmptyListing(t *testing.T) {
	repo := testutil.NewFakeRepository()
	cache := NewCachedRepository(newTestDB(t), repo)
	q := openml.RunQuery{TaskID: 8, FlowID: 7707, Limit: 500, Measure: "predictive_accuracy"}

	for i := 0; i < 2; i++ {
		runs, err := cache.TaskFlowRuns(context.Background(), q)
		require.NoError(t, err)
		assert.Empty(t, runs)
	}
	assert.Equal(t, 1, repo.RunCalls)
}

func TestCachedRunsError(t *testing.T) {
	repo := testutil.NewFakeRepository()
	boom := errors.New("connection reset")
	repo.Errs[3] = boom
	cache := NewCachedRepository(newTestDB(t), repo)

	_, err := cache.TaskFlowRuns(context.Background(), openml.RunQuery{TaskID: 3})
	assert.ErrorIs(t, err, boom)
}

func TestCacheMaxAge(t *testing.T) {
	repo := testutil.NewFakeRepository()
	repo.Studies["OpenML100"] = []int{3}
	repo.Runs[3] = testutil.SVCRuns(4)
	clock := timeutil.NewMockClock(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	cache := NewCachedRepository(newTestDB(t), repo)
	cache.Clock = clock
	cache.MaxAge = 24 * time.Hour
	ctx := context.Background()
	q := openml.RunQuery{TaskID: 3, FlowID: 7707, Limit: 500, Measure: "predictive_accuracy"}

	fetch := func() {
		t.Helper()
		_, err := cache.StudyTasks(ctx, "OpenML100")
		require.NoError(t, err)
		_, err = cache.TaskFlowRuns(ctx, q)
		require.NoError(t, err)
	}

	fetch()
	clock.Advance(23 * time.Hour)
	fetch()
	assert.Equal(t, 1, repo.StudyCalls)
	assert.Equal(t, 1, repo.RunCalls)

	clock.Advance(2 * time.Hour)
	fetch()
	assert.Equal(t, 2, repo.StudyCalls, "expired study is refetched")
	assert.Equal(t, 2, repo.RunCalls, "expired runs are refetched")

	// The refetch reset the age.
	clock.Advance(time.Hour)
	fetch()
	assert.Equal(t, 2, repo.RunCalls)
}
