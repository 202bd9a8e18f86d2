package models

import "time"

// ActionKind enumerates every XP-granting action the ledger accepts.
type ActionKind string

const (
	ActionClaim                ActionKind = "claim"
	ActionPRSubmitted          ActionKind = "pr-submitted"
	ActionPRMerged             ActionKind = "pr-merged"
	ActionTutorialAccepted     ActionKind = "tutorial-accepted"
	ActionBugAccepted          ActionKind = "bug-accepted"
	ActionOutreachAccepted     ActionKind = "outreach-accepted"
	ActionVintageProof         ActionKind = "vintage-proof"
	ActionFirstCompletionBonus ActionKind = "first-completion-bonus"
)

// Award = one immutable XP-granting event. The awards table is the ledger:
// append-only, never updated in place. Seq is arrival order; OccurredAt is
// event time (backfilled rows carry historical values).
type Award struct {
	Seq            uint64     `gorm:"primaryKey;autoIncrement" json:"seq"`
	Handle         string     `gorm:"index;not null" json:"handle"`
	ActionKind     ActionKind `gorm:"type:varchar(32);not null" json:"action_kind"`
	Tier           Tier       `gorm:"type:varchar(16)" json:"tier,omitempty"` // only for pr-submitted / pr-merged
	RTCAmount      float64    `json:"rtc_amount"`                             // reference amount, not currency
	XP             int64      `gorm:"not null" json:"xp"`
	SourceRef      string     `gorm:"not null" json:"source_ref"` // issue/PR number or equivalent
	Degraded       bool       `json:"degraded"`                   // tier-classified without a usable RTC amount
	IdempotencyKey string     `gorm:"uniqueIndex;not null" json:"idempotency_key"`
	OccurredAt     time.Time  `gorm:"index;not null" json:"occurred_at"`
	RecordedAt     time.Time  `gorm:"autoCreateTime" json:"recorded_at"`
}
