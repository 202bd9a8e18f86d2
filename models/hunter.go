package models

import (
	"time"

	"gorm.io/gorm"
)

// Hunter tracks a contributor's derived progression (denormalized for performance).
// Every cached field below must equal a full recompute over the hunter's awards —
// the awards table stays authoritative, this row is a read cache.
type Hunter struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	Handle string `gorm:"uniqueIndex;not null" json:"handle"` // stable identity, no "@" prefix
	Slug   string `gorm:"uniqueIndex;not null" json:"slug"`   // badge-document key
	Wallet string `json:"wallet,omitempty"`                   // opaque, never validated here

	// Cached derived state
	TotalXP       int64   `json:"total_xp" gorm:"default:0"`
	Level         int     `json:"level" gorm:"default:1"`
	Title         string  `json:"title"`
	RTCEarned     float64 `json:"rtc_earned" gorm:"default:0"`
	AwardCount    int64   `json:"award_count" gorm:"default:0"`
	DegradedCount int64   `json:"degraded_count" gorm:"default:0"` // flagged for manual review

	// FirstAwardAt is the minimum OccurredAt across all awards (leaderboard tie-break),
	// not the first append — backfill can move it earlier, never later.
	FirstAwardAt *time.Time `json:"first_award_at,omitempty"`
	LastAwardAt  *time.Time `json:"last_award_at,omitempty"`
	LastAction   string     `json:"last_action"` // "2026-02-13: +300 XP (bounties#62, 150 RTC)"

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
