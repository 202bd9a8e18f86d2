// services/ingestor.go
package services

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"hunter-ledger-system/models"
)

var (
	// ErrDuplicateEvent: the idempotency key already exists in the ledger. Non-fatal,
	// the retried event is a no-op.
	ErrDuplicateEvent = errors.New("duplicate event")
	// ErrUnknownActionKind: the kind is not in any award table. Fatal to this event only.
	ErrUnknownActionKind = errors.New("unknown action kind")
	// ErrInvalidEvent: structurally broken event (missing handle or source ref).
	ErrInvalidEvent = errors.New("invalid award event")
	// ErrHunterNotFound: read path asked for a hunter with no awards.
	ErrHunterNotFound = errors.New("hunter not found")
)

// AwardEvent is the raw event description delivered by the trigger collaborator
// (webhook, polling job, or manual backfill batch).
type AwardEvent struct {
	Handle         string    `json:"handle"`
	ActionKind     string    `json:"action_kind"`
	RTCAmount      *float64  `json:"rtc_amount,omitempty"` // nil = unknown, classification degrades
	SourceRef      string    `json:"source_ref"`
	OccurredAt     time.Time `json:"occurred_at,omitempty"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
	Wallet         string    `json:"wallet,omitempty"`
}

// DeriveIdempotencyKey builds the deterministic dedup key used when the caller
// does not supply one. A retried webhook for the same real-world event always
// hashes to the same key.
func DeriveIdempotencyKey(handle string, kind models.ActionKind, sourceRef string) string {
	sum := sha256.Sum256([]byte(handle + "|" + string(kind) + "|" + sourceRef))
	return hex.EncodeToString(sum[:])
}

// ClassifyAward validates an event and resolves its XP amount. Pure: no DB
// access, no side effect on rejection — the returned award is ready for append.
func ClassifyAward(ev AwardEvent) (*models.Award, error) {
	handle := strings.TrimPrefix(strings.TrimSpace(ev.Handle), "@")
	if handle == "" {
		return nil, fmt.Errorf("%w: missing handle", ErrInvalidEvent)
	}
	if strings.TrimSpace(ev.SourceRef) == "" {
		return nil, fmt.Errorf("%w: missing source_ref (handle %s)", ErrInvalidEvent, handle)
	}

	kind := models.ActionKind(strings.TrimSpace(ev.ActionKind))
	if !models.KnownActionKind(kind) {
		return nil, fmt.Errorf("%w: %q (source %s)", ErrUnknownActionKind, ev.ActionKind, ev.SourceRef)
	}

	occurredAt := ev.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	key := strings.TrimSpace(ev.IdempotencyKey)
	if key == "" {
		key = DeriveIdempotencyKey(handle, kind, ev.SourceRef)
	}

	award := &models.Award{
		Handle:         handle,
		ActionKind:     kind,
		SourceRef:      ev.SourceRef,
		IdempotencyKey: key,
		OccurredAt:     occurredAt.UTC(),
	}

	if models.TierClassified(kind) {
		// Partial information never blocks an otherwise-valid award: a missing or
		// malformed RTC amount degrades to the lowest tier instead of rejecting.
		if ev.RTCAmount == nil || *ev.RTCAmount < 0 {
			award.Tier = models.TierMicro
			award.Degraded = true
			log.Printf("⚠️  Degraded classification for %s (%s, source %s): no usable RTC amount, defaulting to micro tier",
				handle, kind, ev.SourceRef)
		} else {
			award.RTCAmount = *ev.RTCAmount
			award.Tier = models.ClassifyTier(*ev.RTCAmount)
		}
		if kind == models.ActionPRSubmitted {
			award.XP = models.SubmissionXP[award.Tier]
		} else {
			award.XP = models.MergeBonusXP[award.Tier]
		}
		return award, nil
	}

	if ev.RTCAmount != nil && *ev.RTCAmount > 0 {
		award.RTCAmount = *ev.RTCAmount
	}
	award.XP = models.FlatXP[kind]
	return award, nil
}
