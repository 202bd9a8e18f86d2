package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"hunter-ledger-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

// Scenario: claim, standard submit, standard merge — level crossing and First Blood.
func TestAppendLifecycle(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db)
	ctx := context.Background()

	h, _, err := ledger.Append(ctx, AwardEvent{
		Handle: "h1", ActionKind: "claim", SourceRef: "bounties#10", OccurredAt: day(2026, 2, 1),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(20), h.TotalXP)
	assert.Equal(t, 1, h.Level)

	h, _, err = ledger.Append(ctx, AwardEvent{
		Handle: "h1", ActionKind: "pr-submitted", RTCAmount: floatPtr(30),
		SourceRef: "bounties#11", OccurredAt: day(2026, 2, 2),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(120), h.TotalXP)
	assert.Equal(t, 1, h.Level, "120 XP stays below the 200 threshold")

	h, _, err = ledger.Append(ctx, AwardEvent{
		Handle: "h1", ActionKind: "pr-merged", RTCAmount: floatPtr(30),
		SourceRef: "bounties#11", OccurredAt: day(2026, 2, 3),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(220), h.TotalXP)
	assert.Equal(t, 2, h.Level)
	assert.Equal(t, "Basic Hunter", h.Title)

	_, badges, err := ledger.GetHunter(ctx, "h1")
	require.NoError(t, err)
	codes := badgeCodes(badges)
	assert.Contains(t, codes, "first-blood")

	// First Blood qualified at the merge, not at the recompute.
	for _, b := range badges {
		if b.Code == "first-blood" {
			assert.True(t, b.QualifiedAt.Equal(day(2026, 2, 3)), "qualified at merge time, got %v", b.QualifiedAt)
		}
	}

	require.NotNil(t, h.FirstAwardAt)
	assert.True(t, h.FirstAwardAt.Equal(day(2026, 2, 1)))
}

// Scenario: a retried webhook delivers the same sourceRef+kind twice.
func TestDuplicateEventIsNoOp(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db)
	ctx := context.Background()

	_, _, err := ledger.Append(ctx, AwardEvent{
		Handle: "h1", ActionKind: "claim", SourceRef: "bounties#20", OccurredAt: day(2026, 3, 1),
	})
	require.NoError(t, err)

	before, err := ledger.Export(ctx)
	require.NoError(t, err)
	beforeJSON, err := json.Marshal(before.Awards)
	require.NoError(t, err)
	beforeHunter, beforeBadges, err := ledger.GetHunter(ctx, "h1")
	require.NoError(t, err)

	_, _, err = ledger.Append(ctx, AwardEvent{
		Handle: "h1", ActionKind: "claim", SourceRef: "bounties#20", OccurredAt: day(2026, 3, 2),
	})
	if !errors.Is(err, ErrDuplicateEvent) {
		t.Fatalf("expected ErrDuplicateEvent, got %v", err)
	}

	after, err := ledger.Export(ctx)
	require.NoError(t, err)
	afterJSON, err := json.Marshal(after.Awards)
	require.NoError(t, err)
	assert.Equal(t, string(beforeJSON), string(afterJSON), "award log must be untouched by a duplicate")

	afterHunter, afterBadges, err := ledger.GetHunter(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, beforeHunter.TotalXP, afterHunter.TotalXP)
	assert.Equal(t, beforeHunter.Level, afterHunter.Level)
	assert.Equal(t, beforeHunter.LastAction, afterHunter.LastAction)
	assert.Equal(t, len(beforeBadges), len(afterBadges))
}

func TestExplicitIdempotencyKeyDeduplicates(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db)
	ctx := context.Background()

	_, _, err := ledger.Append(ctx, AwardEvent{
		Handle: "h1", ActionKind: "claim", SourceRef: "bounties#1", IdempotencyKey: "evt-1",
	})
	require.NoError(t, err)

	// Different source ref, same caller key: still the same real-world event.
	_, _, err = ledger.Append(ctx, AwardEvent{
		Handle: "h1", ActionKind: "claim", SourceRef: "bounties#2", IdempotencyKey: "evt-1",
	})
	assert.ErrorIs(t, err, ErrDuplicateEvent)
}

// Scenario: reverse-chronological backfill must equal a forward live control run.
func TestBackfillOrderIndependence(t *testing.T) {
	events := []AwardEvent{
		{Handle: "h2", ActionKind: "claim", SourceRef: "bounties#30", OccurredAt: day(2024, 5, 1)},
		{Handle: "h2", ActionKind: "pr-submitted", RTCAmount: floatPtr(80), SourceRef: "bounties#31", OccurredAt: day(2024, 9, 15)},
		{Handle: "h2", ActionKind: "pr-merged", RTCAmount: floatPtr(80), SourceRef: "bounties#31", OccurredAt: day(2025, 1, 10)},
		{Handle: "h2", ActionKind: "tutorial-accepted", SourceRef: "bounties#40", OccurredAt: day(2025, 8, 20)},
		{Handle: "h2", ActionKind: "bug-accepted", SourceRef: "bounties#55", OccurredAt: day(2026, 2, 5)},
	}

	// Control: live appends in forward chronological order.
	controlDB := setupTestDB(t)
	control := NewLedgerService(controlDB)
	ctx := context.Background()
	for _, ev := range events {
		_, _, err := control.Append(ctx, ev)
		require.NoError(t, err)
	}

	// Backfill: same awards imported newest-first.
	backfillDB := setupTestDB(t)
	backfill := NewLedgerService(backfillDB)
	reversed := make([]AwardEvent, 0, len(events))
	for i := len(events) - 1; i >= 0; i-- {
		reversed = append(reversed, events[i])
	}
	report, err := backfill.Backfill(ctx, reversed)
	require.NoError(t, err)
	assert.Equal(t, 5, report.Imported)
	assert.Zero(t, report.Duplicates)
	assert.Empty(t, report.Rejected)

	ch, cBadges, err := control.GetHunter(ctx, "h2")
	require.NoError(t, err)
	bh, bBadges, err := backfill.GetHunter(ctx, "h2")
	require.NoError(t, err)

	assert.Equal(t, ch.TotalXP, bh.TotalXP)
	assert.Equal(t, ch.Level, bh.Level)
	assert.Equal(t, ch.Title, bh.Title)
	assert.Equal(t, ch.LastAction, bh.LastAction)
	assert.ElementsMatch(t, badgeCodes(cBadges), badgeCodes(bBadges))

	require.NotNil(t, bh.FirstAwardAt)
	assert.True(t, bh.FirstAwardAt.Equal(day(2024, 5, 1)), "first-award timestamp is the minimum OccurredAt")
}

func TestBackfillReportsDuplicatesAndRejects(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db)
	ctx := context.Background()

	_, _, err := ledger.Append(ctx, AwardEvent{
		Handle: "h1", ActionKind: "claim", SourceRef: "bounties#1", OccurredAt: day(2026, 1, 1),
	})
	require.NoError(t, err)

	report, err := ledger.Backfill(ctx, []AwardEvent{
		{Handle: "h1", ActionKind: "claim", SourceRef: "bounties#1", OccurredAt: day(2026, 1, 1)},   // dup
		{Handle: "h1", ActionKind: "espionage", SourceRef: "bounties#2", OccurredAt: day(2026, 1, 2)}, // unknown kind
		{Handle: "h1", ActionKind: "vintage-proof", SourceRef: "bounties#3", OccurredAt: day(2026, 1, 3)},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Imported)
	assert.Equal(t, 1, report.Duplicates)
	require.Len(t, report.Rejected, 1)
	assert.Equal(t, "bounties#2", report.Rejected[0].SourceRef)

	h, _, err := ledger.GetHunter(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, int64(120), h.TotalXP)
}

// Scenario: a badge definition added after qualifying history is granted on the
// next catch-up pass, keyed to the original qualifying award's timestamp.
func TestRetroactiveBadgeGrant(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db)
	ctx := context.Background()

	original := models.BadgeRegistry
	defer func() { models.BadgeRegistry = original }()

	// Run with a registry that does not yet know vintage-veteran.
	trimmed := make([]models.BadgeDefinition, 0, len(original))
	for _, def := range original {
		if def.Code != "vintage-veteran" {
			trimmed = append(trimmed, def)
		}
	}
	models.BadgeRegistry = trimmed

	_, _, err := ledger.Append(ctx, AwardEvent{
		Handle: "h3", ActionKind: "vintage-proof", SourceRef: "bounties#70", OccurredAt: day(2025, 6, 1),
	})
	require.NoError(t, err)

	_, badges, err := ledger.GetHunter(ctx, "h3")
	require.NoError(t, err)
	assert.NotContains(t, badgeCodes(badges), "vintage-veteran")

	// Definition lands; no new award needed, the next recompute grants it.
	models.BadgeRegistry = original
	report, err := ledger.RecomputeAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.NewBadges)

	_, badges, err = ledger.GetHunter(ctx, "h3")
	require.NoError(t, err)
	require.Contains(t, badgeCodes(badges), "vintage-veteran")
	for _, b := range badges {
		if b.Code == "vintage-veteran" {
			assert.True(t, b.QualifiedAt.Equal(day(2025, 6, 1)), "retroactive grant keeps the qualifying award's timestamp")
			assert.True(t, b.AwardedAt.After(b.QualifiedAt), "grant time is the recompute, exposed separately")
		}
	}
}

func TestBadgePermanence(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db)
	ctx := context.Background()

	_, _, err := ledger.Append(ctx, AwardEvent{
		Handle: "h1", ActionKind: "pr-merged", RTCAmount: floatPtr(20), SourceRef: "bounties#1", OccurredAt: day(2026, 1, 1),
	})
	require.NoError(t, err)

	_, badges, err := ledger.GetHunter(ctx, "h1")
	require.NoError(t, err)
	require.Contains(t, badgeCodes(badges), "first-blood")
	prevCount := len(badges)

	// Unrelated later awards never shrink the badge set.
	for i, kind := range []string{"claim", "outreach-accepted", "tutorial-accepted"} {
		_, _, err := ledger.Append(ctx, AwardEvent{
			Handle: "h1", ActionKind: kind, SourceRef: "bounties#extra" + string(rune('a'+i)),
			OccurredAt: day(2026, 2, i+1),
		})
		require.NoError(t, err)
		_, badges, err = ledger.GetHunter(ctx, "h1")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(badges), prevCount, "badge set must be monotonically non-decreasing")
		assert.Contains(t, badgeCodes(badges), "first-blood")
		prevCount = len(badges)
	}
}

func TestCacheMatchesReplay(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db)
	ctx := context.Background()

	events := []AwardEvent{
		{Handle: "h1", ActionKind: "claim", SourceRef: "a", OccurredAt: day(2026, 1, 1)},
		{Handle: "h1", ActionKind: "pr-submitted", RTCAmount: floatPtr(120), SourceRef: "b", OccurredAt: day(2026, 1, 2)},
		{Handle: "h1", ActionKind: "pr-merged", RTCAmount: floatPtr(120), SourceRef: "b2", OccurredAt: day(2026, 1, 3)},
		{Handle: "h1", ActionKind: "tutorial-accepted", SourceRef: "c", OccurredAt: day(2026, 1, 4)},
	}
	for _, ev := range events {
		_, _, err := ledger.Append(ctx, ev)
		require.NoError(t, err)
	}

	ok, err := ledger.VerifyHunter(ctx, "h1")
	require.NoError(t, err)
	assert.True(t, ok, "cached state must equal a from-scratch replay")

	// Sum check: cumulative XP is exactly the sum of the award log.
	awards, err := ledger.GetAwards(ctx, "h1")
	require.NoError(t, err)
	var sum int64
	for _, a := range awards {
		sum += a.XP
	}
	h, _, err := ledger.GetHunter(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, sum, h.TotalXP)
}

func TestStreakBadgeFromConsecutiveDays(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _, err := ledger.Append(ctx, AwardEvent{
			Handle: "h1", ActionKind: "claim", SourceRef: string(rune('a' + i)),
			OccurredAt: day(2026, 4, 1+i),
		})
		require.NoError(t, err)
	}
	_, badges, err := ledger.GetHunter(ctx, "h1")
	require.NoError(t, err)
	assert.Contains(t, badgeCodes(badges), "streak-master")
}

func TestDegradedCountTracked(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedgerService(db)
	ctx := context.Background()

	h, award, err := ledger.Append(ctx, AwardEvent{
		Handle: "h1", ActionKind: "pr-merged", SourceRef: "bounties#9", OccurredAt: day(2026, 1, 1),
	})
	require.NoError(t, err)
	assert.True(t, award.Degraded)
	assert.Equal(t, int64(1), h.DegradedCount)
}

func badgeCodes(badges []models.HunterBadge) []string {
	codes := make([]string, 0, len(badges))
	for _, b := range badges {
		codes = append(codes, b.Code)
	}
	return codes
}
