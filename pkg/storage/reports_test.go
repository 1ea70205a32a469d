package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/weblens/pkg/report"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "reports.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleReport(runID string, startedAt time.Time, success bool) *report.ExecutionReport {
	r := &report.ExecutionReport{
		RunID:      runID,
		FlowName:   "checkout flow",
		StartedAt:  startedAt,
		FinishedAt: startedAt.Add(3 * time.Second),
		DurationMS: 3000,
		Success:    success,
		Blocks: []report.BlockExecution{
			{RunID: runID, BlockID: "open", Status: report.StatusSuccess,
				TAF: report.TAF{report.ChannelTrace: {"Opening page..."}}},
		},
		ExecutedBlocks: []string{"open"},
		FinalVariables: map[string]string{"order_no": "ORD-1"},
	}
	if !success {
		r.Error = &report.UserFacingError{
			Title:  "Verification failed",
			Reason: "The value 'x' did not match the expected 'y'.",
			Owner:  "USER",
		}
		r.ErrorBlockID = "open"
	}
	return r
}

func TestReportRoundTrip(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	orig := sampleReport("run-1", time.Now().UTC().Truncate(time.Second), false)
	require.NoError(t, store.SaveReport(ctx, orig))

	got, err := store.GetReport(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, orig.RunID, got.RunID)
	assert.Equal(t, orig.FlowName, got.FlowName)
	assert.False(t, got.Success)
	require.NotNil(t, got.Error)
	assert.Equal(t, "Verification failed", got.Error.Title)
	require.Len(t, got.Blocks, 1)
	assert.Equal(t, []string{"Opening page..."}, got.Blocks[0].TAF[report.ChannelTrace])
	assert.Equal(t, "ORD-1", got.FinalVariables["order_no"])
}

func TestSaveReportUpserts(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	require.NoError(t, store.SaveReport(ctx, sampleReport("run-1", base, false)))
	require.NoError(t, store.SaveReport(ctx, sampleReport("run-1", base, true)))

	got, err := store.GetReport(ctx, "run-1")
	require.NoError(t, err)
	assert.True(t, got.Success)

	list, err := store.ListReports(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestListReportsNewestFirst(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	require.NoError(t, store.SaveReport(ctx, sampleReport("run-old", base.Add(-2*time.Hour), true)))
	require.NoError(t, store.SaveReport(ctx, sampleReport("run-mid", base.Add(-1*time.Hour), false)))
	require.NoError(t, store.SaveReport(ctx, sampleReport("run-new", base, true)))

	list, err := store.ListReports(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "run-new", list[0].RunID)
	assert.Equal(t, "run-mid", list[1].RunID)
	assert.Equal(t, "run-old", list[2].RunID)
	assert.Equal(t, "Verification failed", list[1].ErrorSummary)

	limited, err := store.ListReports(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestDeleteAndClear(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	require.NoError(t, store.SaveReport(ctx, sampleReport("run-1", base, true)))
	require.NoError(t, store.SaveReport(ctx, sampleReport("run-2", base, true)))

	require.NoError(t, store.DeleteReport(ctx, "run-1"))
	_, err := store.GetReport(ctx, "run-1")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting a missing id is not an error.
	require.NoError(t, store.DeleteReport(ctx, "run-1"))

	require.NoError(t, store.ClearReports(ctx))
	list, err := store.ListReports(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestGetReportMissing(t *testing.T) {
	store := testStore(t)
	_, err := store.GetReport(context.Background(), "no-such-run")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveReportRequiresRunID(t *testing.T) {
	store := testStore(t)
	err := store.SaveReport(context.Background(), &report.ExecutionReport{})
	assert.Error(t, err)
}
