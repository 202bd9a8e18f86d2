package models

import "time"

// HunterBadge: a permanent grant. Rows are only ever inserted — a badge is a
// record of an achievement, not a live view of the predicate.
//
// QualifiedAt is the timestamp of the award that first satisfied the predicate
// (derived by replay, so backfill keeps it historical). AwardedAt is when the
// grant row was written. Both are exposed; consumers pick the one they want.
type HunterBadge struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	Handle      string    `gorm:"uniqueIndex:idx_hunter_badge;not null" json:"handle"`
	Code        string    `gorm:"uniqueIndex:idx_hunter_badge;not null" json:"code"` // e.g. "first-blood"
	Name        string    `gorm:"not null" json:"name"`                              // e.g. "First Blood"
	QualifiedAt time.Time `json:"qualified_at"`
	AwardedAt   time.Time `gorm:"autoCreateTime" json:"awarded_at"`
}

// LeaderboardSnapshot is a DB-cached read model of the global ranking, upserted
// on a schedule. Never authoritative — Render always re-sorts the live hunter set.
type LeaderboardSnapshot struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	Handle     string    `gorm:"uniqueIndex;not null" json:"handle"`
	Rank       int       `gorm:"not null" json:"rank"`
	TotalXP    int64     `json:"total_xp"`
	Level      int       `json:"level"`
	Title      string    `json:"title"`
	BadgeCount int       `json:"badge_count"`
	CapturedAt time.Time `json:"captured_at"`
}
