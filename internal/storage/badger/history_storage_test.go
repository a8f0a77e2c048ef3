package badger

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/checkin/internal/interfaces"
	"github.com/ternarybob/checkin/internal/models"
)

func newTestStorage(t *testing.T) interfaces.HistoryStorage {
	t.Helper()
	logger := arbor.NewLogger()

	db, err := NewBadgerDB(filepath.Join(t.TempDir(), "history"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewHistoryStorage(db, logger)
}

func TestStoreAndGetRun(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	report := &models.RunReport{
		ID:        "run-1",
		StartedAt: time.Now().Truncate(time.Second),
		Outcomes: []models.CheckInOutcome{
			{
				Account: "alice",
				Method:  models.AuthMethodCookies,
				Success: true,
				Message: "签到成功",
				Balance: &models.UserBalance{Quota: 2.00, Used: 1.00},
			},
		},
		SuccessCount: 1,
		TotalCount:   1,
		BalanceHash:  "deadbeefdeadbeef",
	}
	require.NoError(t, storage.StoreRun(ctx, report))

	got, err := storage.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "deadbeefdeadbeef", got.BalanceHash)
	require.Len(t, got.Outcomes, 1)
	assert.Equal(t, "alice", got.Outcomes[0].Account)
	require.NotNil(t, got.Outcomes[0].Balance)
	assert.Equal(t, 2.00, got.Outcomes[0].Balance.Quota)
}

func TestStoreRunRequiresID(t *testing.T) {
	storage := newTestStorage(t)

	err := storage.StoreRun(context.Background(), &models.RunReport{})
	assert.Error(t, err)
}

func TestGetRunNotFound(t *testing.T) {
	storage := newTestStorage(t)

	_, err := storage.GetRun(context.Background(), "never-stored")
	assert.Error(t, err)
}

func TestStoreRunUpsertsExisting(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	report := &models.RunReport{ID: "run-1", SuccessCount: 0, TotalCount: 1}
	require.NoError(t, storage.StoreRun(ctx, report))

	report.SuccessCount = 1
	require.NoError(t, storage.StoreRun(ctx, report))

	got, err := storage.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.SuccessCount)
}

func TestRecentRunsOrderAndLimit(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		report := &models.RunReport{
			ID:        fmt.Sprintf("run-%d", i),
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, storage.StoreRun(ctx, report))
	}

	runs, err := storage.RecentRuns(ctx, 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "run-4", runs[0].ID)
	assert.Equal(t, "run-3", runs[1].ID)
	assert.Equal(t, "run-2", runs[2].ID)
	for i := 1; i < len(runs); i++ {
		assert.False(t, runs[i].StartedAt.After(runs[i-1].StartedAt), "RecentRuns should be newest first")
	}
}
