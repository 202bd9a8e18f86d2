// services/evaluator.go
package services

import (
	"fmt"
	"sort"
	"time"

	"hunter-ledger-system/models"
)

// The evaluator is pure: level and badges are functions of the award history
// alone, so a from-scratch replay and the incrementally-maintained cache must
// always agree. Malformed tables are a startup error (models.ValidateTables),
// not a per-event one.

// statsAccumulator folds awards one at a time so badge evaluation can observe
// the state after every award during replay.
type statsAccumulator struct {
	stats   models.HunterStats
	lastDay time.Time
	streak  int
}

func newStatsAccumulator(handle string) *statsAccumulator {
	return &statsAccumulator{
		stats: models.HunterStats{
			Handle:     handle,
			KindCounts: map[models.ActionKind]int64{},
		},
	}
}

func (a *statsAccumulator) add(award models.Award) {
	s := &a.stats
	s.TotalXP += award.XP
	s.KindCounts[award.ActionKind]++
	s.RTCEarned += award.RTCAmount
	s.AwardCount++
	if award.Degraded {
		s.DegradedCount++
	}

	at := award.OccurredAt.UTC()
	if s.FirstAwardAt.IsZero() || at.Before(s.FirstAwardAt) {
		s.FirstAwardAt = at
	}
	if s.LastAwardAt.IsZero() || !at.Before(s.LastAwardAt) {
		s.LastAwardAt = at
		s.LastAction = FormatLastAction(award)
	}

	day := at.Truncate(24 * time.Hour)
	switch {
	case a.lastDay.IsZero() || day.Equal(a.lastDay):
		if a.streak == 0 {
			a.streak = 1
		}
	case day.Equal(a.lastDay.Add(24 * time.Hour)):
		a.streak++
	default:
		a.streak = 1
	}
	a.lastDay = day
	if a.streak > s.MaxDayStreak {
		s.MaxDayStreak = a.streak
	}
}

// FormatLastAction renders the one-line award summary cached on the hunter row,
// e.g. "2026-02-13: +300 XP (bounties#62, 150 RTC)".
func FormatLastAction(award models.Award) string {
	summary := fmt.Sprintf("%s: +%d XP (%s", award.OccurredAt.UTC().Format("2006-01-02"), award.XP, award.SourceRef)
	if award.RTCAmount > 0 {
		summary += fmt.Sprintf(", %g RTC", award.RTCAmount)
	}
	return summary + ")"
}

// SortAwards orders awards by event time, arrival order as the tie-break.
// Replay over this order is what makes backfill order-independent.
func SortAwards(awards []models.Award) {
	sort.SliceStable(awards, func(i, j int) bool {
		if !awards[i].OccurredAt.Equal(awards[j].OccurredAt) {
			return awards[i].OccurredAt.Before(awards[j].OccurredAt)
		}
		return awards[i].Seq < awards[j].Seq
	})
}

// StatsFromAwards derives the full hunter view from an award history.
// The input is re-sorted by event time, so callers may pass any order.
func StatsFromAwards(handle string, awards []models.Award) models.HunterStats {
	SortAwards(awards)
	acc := newStatsAccumulator(handle)
	for _, award := range awards {
		acc.add(award)
	}
	return acc.stats
}

// EvaluateBadges replays the history in event-time order and reports, for every
// satisfied badge in the registry, the OccurredAt of the award that first
// satisfied its predicate. Already-granted badges are the caller's concern —
// grants are permanent, so the caller only inserts codes it hasn't recorded.
func EvaluateBadges(handle string, awards []models.Award, registry []models.BadgeDefinition) map[string]time.Time {
	SortAwards(awards)
	qualified := make(map[string]time.Time)
	acc := newStatsAccumulator(handle)
	for _, award := range awards {
		acc.add(award)
		for _, def := range registry {
			if _, done := qualified[def.Code]; done {
				continue
			}
			if def.Predicate(acc.stats) {
				qualified[def.Code] = award.OccurredAt.UTC()
			}
		}
	}
	return qualified
}
