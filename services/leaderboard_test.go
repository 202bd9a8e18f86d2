package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"hunter-ledger-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeaderboardOrdering(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db)
	board := NewLeaderboardService(db)
	ctx := context.Background()

	// carol: 150 XP, earliest start. alice: 150 XP, later start. bob: 220 XP.
	_, _, err := ledger.Append(ctx, AwardEvent{Handle: "carol", ActionKind: "tutorial-accepted", SourceRef: "t#1", OccurredAt: day(2025, 1, 1)})
	require.NoError(t, err)
	_, _, err = ledger.Append(ctx, AwardEvent{Handle: "alice", ActionKind: "tutorial-accepted", SourceRef: "t#2", OccurredAt: day(2025, 6, 1)})
	require.NoError(t, err)
	_, _, err = ledger.Append(ctx, AwardEvent{Handle: "bob", ActionKind: "claim", SourceRef: "c#1", OccurredAt: day(2025, 3, 1)})
	require.NoError(t, err)
	_, _, err = ledger.Append(ctx, AwardEvent{Handle: "bob", ActionKind: "pr-merged", RTCAmount: floatPtr(60), SourceRef: "p#1", OccurredAt: day(2025, 3, 2)})
	require.NoError(t, err)

	rows, err := board.Render(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	// XP descending; on the 150-XP tie the earlier first award wins.
	assert.Equal(t, "bob", rows[0].Handle)
	assert.Equal(t, 1, rows[0].Rank)
	assert.Equal(t, "carol", rows[1].Handle)
	assert.Equal(t, 2, rows[1].Rank)
	assert.Equal(t, "alice", rows[2].Handle)
	assert.Equal(t, 3, rows[2].Rank)

	assert.Contains(t, rows[0].Badges, "first-blood")
}

func TestLeaderboardDeterministicRerender(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db)
	board := NewLeaderboardService(db)
	ctx := context.Background()

	for _, h := range []string{"alice", "bob", "carol", "dave"} {
		_, _, err := ledger.Append(ctx, AwardEvent{Handle: h, ActionKind: "claim", SourceRef: h + "#1", OccurredAt: day(2026, 1, 1)})
		require.NoError(t, err)
	}

	first, err := board.Render(ctx)
	require.NoError(t, err)
	firstJSON, _ := json.Marshal(first)
	for i := 0; i < 5; i++ {
		again, err := board.Render(ctx)
		require.NoError(t, err)
		againJSON, _ := json.Marshal(again)
		assert.Equal(t, string(firstJSON), string(againJSON), "re-rendering unchanged input must be deterministic")
	}
}

func TestRankIsNotStored(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db)
	board := NewLeaderboardService(db)
	ctx := context.Background()

	_, _, err := ledger.Append(ctx, AwardEvent{Handle: "alice", ActionKind: "claim", SourceRef: "a#1", OccurredAt: day(2026, 1, 1)})
	require.NoError(t, err)
	rows, err := board.Render(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rows[0].Rank)

	// A stronger hunter appears; alice's rank shifts purely as render output.
	_, _, err = ledger.Append(ctx, AwardEvent{Handle: "bob", ActionKind: "pr-merged", RTCAmount: floatPtr(200), SourceRef: "b#1", OccurredAt: day(2026, 1, 2)})
	require.NoError(t, err)
	rows, err = board.Render(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "bob", rows[0].Handle)
	assert.Equal(t, "alice", rows[1].Handle)
	assert.Equal(t, 2, rows[1].Rank)
}

func TestGlobalStats(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db)
	board := NewLeaderboardService(db)
	now := day(2026, 2, 15)
	board.Now = func() time.Time { return now }
	ctx := context.Background()

	_, _, err := ledger.Append(ctx, AwardEvent{Handle: "alice", ActionKind: "tutorial-accepted", SourceRef: "t#1", OccurredAt: day(2026, 2, 14)})
	require.NoError(t, err)
	_, _, err = ledger.Append(ctx, AwardEvent{Handle: "bob", ActionKind: "claim", SourceRef: "c#1", OccurredAt: day(2025, 2, 1)})
	require.NoError(t, err)

	stats, err := board.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(170), stats.TotalXP)
	assert.Equal(t, 2, stats.ActiveHunters)
	assert.Equal(t, 0, stats.LegendaryHunters)
	assert.Equal(t, int64(150), stats.WeeklyGrowth, "only the tutorial falls inside the trailing week")
	assert.Equal(t, "alice", stats.TopHunter)
	assert.Equal(t, "alice, bob", stats.Top3)
}

func TestSnapshotUpsert(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db)
	board := NewLeaderboardService(db)
	ctx := context.Background()

	_, _, err := ledger.Append(ctx, AwardEvent{Handle: "alice", ActionKind: "claim", SourceRef: "a#1", OccurredAt: day(2026, 1, 1)})
	require.NoError(t, err)
	require.NoError(t, board.Snapshot(ctx))

	var snaps []models.LeaderboardSnapshot
	require.NoError(t, db.Find(&snaps).Error)
	require.Len(t, snaps, 1)
	assert.Equal(t, 1, snaps[0].Rank)
	assert.Equal(t, int64(20), snaps[0].TotalXP)

	// Second pass updates in place, no duplicate rows.
	_, _, err = ledger.Append(ctx, AwardEvent{Handle: "alice", ActionKind: "tutorial-accepted", SourceRef: "t#1", OccurredAt: day(2026, 1, 2)})
	require.NoError(t, err)
	require.NoError(t, board.Snapshot(ctx))
	require.NoError(t, db.Find(&snaps).Error)
	require.Len(t, snaps, 1)
	assert.Equal(t, int64(170), snaps[0].TotalXP)
}
