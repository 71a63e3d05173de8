package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"orderflow/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "reports.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func sampleReport(id string, finished time.Time) types.BatchReport {
	return types.BatchReport{
		BatchID: id,
		Venue:   "IG",
		Balance: types.AccountBalance{Amount: decimal.RequireFromString("10000.50"), Currency: "GBP"},
		Invalid: []types.Key{types.NewKey("ZZ", "IG")},
		RejectedByRisk: []types.RiskDecision{
			{OrderID: "r1", Key: types.NewKey("VX", "IG"), Reason: types.RiskReasonExposure, Exposure: decimal.RequireFromString("0.5")},
		},
		Outcomes: []types.ExecutionOutcome{
			{OrderID: "o1", Key: types.NewKey("VX", "IG"), Completed: true, Status: types.OutcomeExecuted, Reference: "DIAAAA"},
			{OrderID: "o2", Key: types.NewKey("VX", "IG"), Completed: false, Status: types.OutcomeTimeout},
		},
		StartedAt:  finished.Add(-time.Second),
		FinishedAt: finished,
	}
}

func TestSendAndGet(t *testing.T) {
	ctx := context.Background()
	j := openTest(t)
	now := time.UnixMilli(time.Now().UnixMilli())
	require.NoError(t, j.Send(ctx, sampleReport("b1", now)))

	got, ok, err := j.Get(ctx, "b1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "IG", got.Venue)
	assert.True(t, got.Balance.Amount.Equal(decimal.RequireFromString("10000.50")))
	require.Len(t, got.Outcomes, 2)
	assert.Equal(t, "DIAAAA", got.Outcomes[0].Reference)
	assert.False(t, got.Outcomes[1].Completed)

	_, ok, err = j.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListNewestFirst(t *testing.T) {
	ctx := context.Background()
	j := openTest(t)
	base := time.Now()
	require.NoError(t, j.Send(ctx, sampleReport("old", base.Add(-time.Minute))))
	require.NoError(t, j.Send(ctx, sampleReport("new", base)))

	entries, err := j.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "new", entries[0].BatchID)
	assert.Equal(t, types.ReportCounts{Invalid: 1, Rejected: 1, Executed: 1, TimedOut: 1}, entries[0].Counts)
	assert.Equal(t, "GBP", entries[0].Currency)

	limited, err := j.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSendOverwritesSameBatch(t *testing.T) {
	ctx := context.Background()
	j := openTest(t)
	r := sampleReport("b1", time.Now())
	require.NoError(t, j.Send(ctx, r))
	r.Outcomes = nil
	require.NoError(t, j.Send(ctx, r))

	entries, err := j.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Zero(t, entries[0].Counts.Executed)
}

func TestSendRequiresBatchID(t *testing.T) {
	j := openTest(t)
	assert.Error(t, j.Send(context.Background(), types.BatchReport{}))
}

func TestClosedJournal(t *testing.T) {
	j := openTest(t)
	require.NoError(t, j.Close())
	assert.Error(t, j.Send(context.Background(), sampleReport("x", time.Now())))
	_, err := j.List(context.Background(), 1)
	assert.Error(t, err)
}
