// services/ledger.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"hunter-ledger-system/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerService owns the only mutation primitive: Append. Everything else in
// the system reads ledger-derived state. The awards table is append-only; the
// hunter row is a cache that a full replay must always reproduce.
type LedgerService struct {
	DB *gorm.DB

	// mu serializes classify-append-recompute so the idempotency check-and-insert
	// and the per-hunter cache update form one critical section on every backend.
	mu sync.Mutex
}

func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{DB: db}
}

// Append classifies the event and commits it as one transaction: insert award,
// ensure the hunter row, recompute that hunter's derived state. Either the
// whole unit commits or nothing does — there is no partial state to observe.
func (s *LedgerService) Append(ctx context.Context, ev AwardEvent) (*models.Hunter, *models.Award, error) {
	award, err := ClassifyAward(ev)
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var hunter *models.Hunter
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "idempotency_key"}},
			DoNothing: true,
		}).Create(award)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: key %s (source %s)", ErrDuplicateEvent, award.IdempotencyKey, award.SourceRef)
		}

		h, err := ensureHunter(tx, award.Handle, ev.Wallet)
		if err != nil {
			return err
		}
		if err := recomputeHunterTx(tx, h); err != nil {
			return err
		}
		hunter = h
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateEvent) {
			log.Printf("🔁 Duplicate event ignored for %s (source %s)", award.Handle, award.SourceRef)
		}
		return nil, nil, err
	}

	log.Printf("🏆 XP Awarded: %s earned %d XP (%s, source %s) -> Total: %d XP (Level %d - %s)",
		hunter.Handle, award.XP, award.ActionKind, award.SourceRef, hunter.TotalXP, hunter.Level, hunter.Title)
	return hunter, award, nil
}

// BackfillReport summarizes a bulk import. Duplicates and unknown kinds are
// reported per event, never fatal to the batch.
type BackfillReport struct {
	Imported   int             `json:"imported"`
	Duplicates int             `json:"duplicates"`
	Rejected   []RejectedEvent `json:"rejected"`
	Hunters    []string        `json:"hunters"`
}

type RejectedEvent struct {
	SourceRef string `json:"source_ref"`
	Handle    string `json:"handle"`
	Reason    string `json:"reason"`
}

// Backfill imports historical awards in any arrival order. Final derived state
// is a function of the award set: one recompute per touched hunter at the end
// replays by OccurredAt, so FirstAwardAt lands on the earliest event even when
// the batch arrives reverse-chronological.
func (s *LedgerService) Backfill(ctx context.Context, events []AwardEvent) (BackfillReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := BackfillReport{}
	touched := map[string]string{} // handle -> wallet hint

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, ev := range events {
			award, err := ClassifyAward(ev)
			if err != nil {
				report.Rejected = append(report.Rejected, RejectedEvent{
					SourceRef: ev.SourceRef,
					Handle:    ev.Handle,
					Reason:    err.Error(),
				})
				continue
			}
			res := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "idempotency_key"}},
				DoNothing: true,
			}).Create(award)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				report.Duplicates++
				log.Printf("🔁 Backfill duplicate ignored for %s (source %s)", award.Handle, award.SourceRef)
				continue
			}
			report.Imported++
			touched[award.Handle] = ev.Wallet
		}

		for handle, wallet := range touched {
			h, err := ensureHunter(tx, handle, wallet)
			if err != nil {
				return err
			}
			if err := recomputeHunterTx(tx, h); err != nil {
				return err
			}
			report.Hunters = append(report.Hunters, handle)
		}
		return nil
	})
	if err != nil {
		return BackfillReport{}, err
	}

	log.Printf("📥 Backfill complete: %d imported, %d duplicates, %d rejected (%d hunters)",
		report.Imported, report.Duplicates, len(report.Rejected), len(report.Hunters))
	return report, nil
}

// RecomputeReport summarizes a catch-up pass.
type RecomputeReport struct {
	Hunters        int `json:"hunters"`
	NewBadges      int `json:"new_badges"`
	DriftCorrected int `json:"drift_corrected"`
}

// RecomputeAll replays every hunter from scratch. This is the catch-up path:
// badge definitions registered after qualifying history are granted here, and
// any cache drift is corrected against the authoritative award log.
func (s *LedgerService) RecomputeAll(ctx context.Context) (RecomputeReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := RecomputeReport{}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var hunters []models.Hunter
		if err := tx.Find(&hunters).Error; err != nil {
			return err
		}
		for i := range hunters {
			h := &hunters[i]
			beforeXP := h.TotalXP
			var beforeBadges int64
			if err := tx.Model(&models.HunterBadge{}).Where("handle = ?", h.Handle).Count(&beforeBadges).Error; err != nil {
				return err
			}
			if err := recomputeHunterTx(tx, h); err != nil {
				return err
			}
			var afterBadges int64
			if err := tx.Model(&models.HunterBadge{}).Where("handle = ?", h.Handle).Count(&afterBadges).Error; err != nil {
				return err
			}
			report.Hunters++
			report.NewBadges += int(afterBadges - beforeBadges)
			if h.TotalXP != beforeXP {
				report.DriftCorrected++
				log.Printf("⚠️  Cache drift corrected for %s: %d -> %d XP", h.Handle, beforeXP, h.TotalXP)
			}
		}
		return nil
	})
	if err != nil {
		return RecomputeReport{}, err
	}
	log.Printf("✅ Recompute pass: %d hunters, %d retroactive badges, %d drift corrections",
		report.Hunters, report.NewBadges, report.DriftCorrected)
	return report, nil
}

// ensureHunter finds or creates the hunter row for a handle. Hunters are
// created on first valid award and never deleted.
func ensureHunter(tx *gorm.DB, handle, wallet string) (*models.Hunter, error) {
	var h models.Hunter
	err := tx.Where("handle = ?", handle).First(&h).Error
	if err == nil {
		if wallet != "" && h.Wallet == "" {
			h.Wallet = wallet
		}
		return &h, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	h = models.Hunter{
		ID:     uuid.NewString(),
		Handle: handle,
		Slug:   HunterSlug(handle),
		Wallet: wallet,
		Level:  1,
		Title:  "Starting Hunter",
	}
	if err := tx.Create(&h).Error; err != nil {
		return nil, err
	}
	return &h, nil
}

// HunterSlug derives the stable badge-document key for a handle.
func HunterSlug(handle string) string {
	s := slug.Make(handle)
	if s == "" {
		return "unknown"
	}
	return s
}

// recomputeHunterTx rebuilds one hunter's cached state from its full award
// history inside the caller's transaction. Badge grants are insert-only: a
// predicate that no longer holds never removes an existing row.
func recomputeHunterTx(tx *gorm.DB, h *models.Hunter) error {
	var awards []models.Award
	if err := tx.Where("handle = ?", h.Handle).
		Order("occurred_at ASC, seq ASC").
		Find(&awards).Error; err != nil {
		return err
	}

	stats := StatsFromAwards(h.Handle, awards)
	level, title := models.LevelForXP(stats.TotalXP)

	h.TotalXP = stats.TotalXP
	h.Level = level
	h.Title = title
	h.RTCEarned = stats.RTCEarned
	h.AwardCount = stats.AwardCount
	h.DegradedCount = stats.DegradedCount
	h.LastAction = stats.LastAction
	if !stats.FirstAwardAt.IsZero() {
		first := stats.FirstAwardAt
		h.FirstAwardAt = &first
	}
	if !stats.LastAwardAt.IsZero() {
		last := stats.LastAwardAt
		h.LastAwardAt = &last
	}
	if err := tx.Save(h).Error; err != nil {
		return err
	}

	qualified := EvaluateBadges(h.Handle, awards, models.BadgeRegistry)
	for code, qualifiedAt := range qualified {
		def, ok := models.BadgeByCode(code)
		if !ok {
			continue
		}
		grant := models.HunterBadge{
			ID:          uuid.NewString(),
			Handle:      h.Handle,
			Code:        code,
			Name:        def.Name,
			QualifiedAt: qualifiedAt,
		}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "handle"}, {Name: "code"}},
			DoNothing: true,
		}).Create(&grant)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			log.Printf("🎖️  Badge awarded: %s -> %s", def.Name, h.Handle)
		}
	}
	return nil
}

// GetHunter returns the cached snapshot plus badge grants for one handle.
func (s *LedgerService) GetHunter(ctx context.Context, handle string) (*models.Hunter, []models.HunterBadge, error) {
	var h models.Hunter
	if err := s.DB.WithContext(ctx).Where("handle = ?", handle).First(&h).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrHunterNotFound
		}
		return nil, nil, err
	}
	var badges []models.HunterBadge
	if err := s.DB.WithContext(ctx).Where("handle = ?", handle).
		Order("qualified_at ASC").Find(&badges).Error; err != nil {
		return nil, nil, err
	}
	return &h, badges, nil
}

// GetAwards returns one hunter's slice of the ledger in event-time order.
func (s *LedgerService) GetAwards(ctx context.Context, handle string) ([]models.Award, error) {
	var awards []models.Award
	err := s.DB.WithContext(ctx).Where("handle = ?", handle).
		Order("occurred_at ASC, seq ASC").Find(&awards).Error
	return awards, err
}

// LedgerExport is a durable, re-readable representation of the full award
// history, sufficient to reconstruct all derived state by replay.
type LedgerExport struct {
	GeneratedAt time.Time            `json:"generated_at"`
	Awards      []models.Award       `json:"awards"`
	Hunters     []models.Hunter      `json:"hunters"`
	Badges      []models.HunterBadge `json:"badges"`
}

// Export dumps the ordered award history plus the cached per-hunter snapshots.
func (s *LedgerService) Export(ctx context.Context) (*LedgerExport, error) {
	out := &LedgerExport{GeneratedAt: time.Now().UTC()}
	if err := s.DB.WithContext(ctx).Order("seq ASC").Find(&out.Awards).Error; err != nil {
		return nil, err
	}
	if err := s.DB.WithContext(ctx).Order("handle ASC").Find(&out.Hunters).Error; err != nil {
		return nil, err
	}
	if err := s.DB.WithContext(ctx).Order("handle ASC, code ASC").Find(&out.Badges).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// VerifyHunter recomputes a hunter from scratch and reports whether the cached
// row matches. The two must always agree; a mismatch means ledger drift.
func (s *LedgerService) VerifyHunter(ctx context.Context, handle string) (bool, error) {
	h, _, err := s.GetHunter(ctx, handle)
	if err != nil {
		return false, err
	}
	awards, err := s.GetAwards(ctx, handle)
	if err != nil {
		return false, err
	}
	stats := StatsFromAwards(handle, awards)
	level, title := models.LevelForXP(stats.TotalXP)
	ok := h.TotalXP == stats.TotalXP && h.Level == level && h.Title == title &&
		h.AwardCount == stats.AwardCount
	if !ok {
		log.Printf("❌ Ledger drift for %s: cached %d XP L%d, replay %d XP L%d",
			handle, h.TotalXP, h.Level, stats.TotalXP, level)
	}
	return ok, nil
}
