// services/leaderboard.go
package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"hunter-ledger-system/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LeaderboardService derives the global ranking. It is a pure read model: every
// render re-sorts the complete hunter population, nothing is patched in place.
type LeaderboardService struct {
	DB *gorm.DB

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

func NewLeaderboardService(db *gorm.DB) *LeaderboardService {
	return &LeaderboardService{DB: db, Now: time.Now}
}

// LeaderboardRow is one rendered entry. Rank is an output field computed from
// the current population — it is never stored on the hunter.
type LeaderboardRow struct {
	Rank       int      `json:"rank"`
	Handle     string   `json:"handle"`
	Slug       string   `json:"slug"`
	XP         int64    `json:"xp"`
	Level      int      `json:"level"`
	Title      string   `json:"title"`
	Badges     []string `json:"badges"`
	LastAction string   `json:"last_action"`
}

// Render produces the full ordering: XP descending, first-award timestamp
// ascending on ties (the earlier contributor ranks higher), handle as the final
// determinism guard. Repeated renders of unchanged input are byte-identical.
func (s *LeaderboardService) Render(ctx context.Context) ([]LeaderboardRow, error) {
	var hunters []models.Hunter
	if err := s.DB.WithContext(ctx).Find(&hunters).Error; err != nil {
		return nil, err
	}
	var grants []models.HunterBadge
	if err := s.DB.WithContext(ctx).Order("qualified_at ASC, code ASC").Find(&grants).Error; err != nil {
		return nil, err
	}
	badgesByHandle := map[string][]string{}
	for _, g := range grants {
		badgesByHandle[g.Handle] = append(badgesByHandle[g.Handle], g.Code)
	}

	sort.SliceStable(hunters, func(i, j int) bool {
		a, b := hunters[i], hunters[j]
		if a.TotalXP != b.TotalXP {
			return a.TotalXP > b.TotalXP
		}
		at, bt := firstAwardOrMax(a), firstAwardOrMax(b)
		if !at.Equal(bt) {
			return at.Before(bt)
		}
		return strings.ToLower(a.Handle) < strings.ToLower(b.Handle)
	})

	rows := make([]LeaderboardRow, 0, len(hunters))
	for i, h := range hunters {
		rows = append(rows, LeaderboardRow{
			Rank:       i + 1,
			Handle:     h.Handle,
			Slug:       h.Slug,
			XP:         h.TotalXP,
			Level:      h.Level,
			Title:      h.Title,
			Badges:     badgesByHandle[h.Handle],
			LastAction: h.LastAction,
		})
	}
	return rows, nil
}

func firstAwardOrMax(h models.Hunter) time.Time {
	if h.FirstAwardAt != nil {
		return *h.FirstAwardAt
	}
	// A hunter with no first-award timestamp sorts after everyone on ties.
	return time.Unix(1<<62, 0)
}

// GlobalStats feeds the repository-wide badge documents.
type GlobalStats struct {
	TotalXP          int64  `json:"total_xp"`
	ActiveHunters    int    `json:"active_hunters"`
	LegendaryHunters int    `json:"legendary_hunters"`
	WeeklyGrowth     int64  `json:"weekly_growth"`
	TopHunter        string `json:"top_hunter"`
	TopHunterXP      int64  `json:"top_hunter_xp"`
	Top3             string `json:"top_3"`
}

// Stats aggregates the population for the global documents. Weekly growth is
// the XP sum of awards that occurred in the trailing 7 days.
func (s *LeaderboardService) Stats(ctx context.Context) (*GlobalStats, error) {
	rows, err := s.Render(ctx)
	if err != nil {
		return nil, err
	}
	out := &GlobalStats{ActiveHunters: len(rows)}
	for _, r := range rows {
		out.TotalXP += r.XP
		if r.Level >= 10 {
			out.LegendaryHunters++
		}
	}
	if len(rows) > 0 {
		out.TopHunter = rows[0].Handle
		out.TopHunterXP = rows[0].XP
		top3 := rows
		if len(top3) > 3 {
			top3 = top3[:3]
		}
		names := make([]string, 0, len(top3))
		for _, r := range top3 {
			names = append(names, r.Handle)
		}
		out.Top3 = strings.Join(names, ", ")
	}

	since := s.Now().UTC().Add(-7 * 24 * time.Hour)
	var weekly int64
	if err := s.DB.WithContext(ctx).Model(&models.Award{}).
		Select("COALESCE(SUM(xp), 0)").
		Where("occurred_at >= ?", since).
		Scan(&weekly).Error; err != nil {
		return nil, err
	}
	out.WeeklyGrowth = weekly
	return out, nil
}

// Snapshot upserts the cached leaderboard table from a fresh render.
func (s *LeaderboardService) Snapshot(ctx context.Context) error {
	rows, err := s.Render(ctx)
	if err != nil {
		return err
	}
	capturedAt := s.Now().UTC()
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, r := range rows {
			snap := models.LeaderboardSnapshot{
				Handle:     r.Handle,
				Rank:       r.Rank,
				TotalXP:    r.XP,
				Level:      r.Level,
				Title:      r.Title,
				BadgeCount: len(r.Badges),
				CapturedAt: capturedAt,
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "handle"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"rank", "total_xp", "level", "title", "badge_count", "captured_at",
				}),
			}).Create(&snap).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
