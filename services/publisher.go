// services/publisher.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"hunter-ledger-system/models"
	"hunter-ledger-system/utils"

	"github.com/gosimple/unidecode"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gorm.io/gorm"
)

// PublisherService serializes derived hunter facts into shields.io endpoint
// documents for the external badge renderer. Publishing is idempotent: the same
// derived state always serializes to byte-identical output, so at-least-once
// delivery is safe.
type PublisherService struct {
	DB          *gorm.DB
	Leaderboard *LeaderboardService
	OutDir      string

	Now func() time.Time
}

func NewPublisherService(db *gorm.DB, leaderboard *LeaderboardService, outDir string) *PublisherService {
	return &PublisherService{DB: db, Leaderboard: leaderboard, OutDir: outDir, Now: time.Now}
}

// BadgeDoc matches the shields.io endpoint schema exactly — consumers point
// img.shields.io/endpoint at these files.
type BadgeDoc struct {
	SchemaVersion int    `json:"schemaVersion"`
	Label         string `json:"label"`
	Message       string `json:"message"`
	Color         string `json:"color"`
	NamedLogo     string `json:"namedLogo"`
	LogoColor     string `json:"logoColor"`
}

func newDoc(label, msg, color, logo, logoColor string) BadgeDoc {
	return BadgeDoc{SchemaVersion: 1, Label: label, Message: msg, Color: color, NamedLogo: logo, LogoColor: logoColor}
}

// EncodeDoc renders a document with the fixed two-space indent and trailing
// newline. Republishing unchanged state must be byte-identical, so the encoding
// is part of the contract.
func EncodeDoc(doc BadgeDoc) []byte {
	data, _ := json.MarshalIndent(doc, "", "  ")
	return append(data, '\n')
}

var xpPrinter = message.NewPrinter(language.English)

// GlobalDocs builds every repository-wide document, keyed by filename without
// extension.
func (p *PublisherService) GlobalDocs(ctx context.Context) (map[string]BadgeDoc, error) {
	stats, err := p.Leaderboard.Stats(ctx)
	if err != nil {
		return nil, err
	}

	docs := map[string]BadgeDoc{}

	totalColor := "blue"
	if stats.TotalXP > 0 {
		totalColor = "orange"
	}
	docs["hunter-stats"] = newDoc("Bounty Hunter XP",
		xpPrinter.Sprintf("%d total", stats.TotalXP), totalColor, "rust", "white")

	if stats.ActiveHunters > 0 {
		docs["top-hunter"] = newDoc("Top Hunter",
			xpPrinter.Sprintf("%s (%d XP)", stats.TopHunter, stats.TopHunterXP), "gold", "crown", "black")
		docs["top-3-hunters"] = newDoc("Leaders", stats.Top3, "gold", "crown", "white")
	} else {
		docs["top-hunter"] = newDoc("Top Hunter", "none yet", "lightgrey", "crown", "white")
		docs["top-3-hunters"] = newDoc("Leaders", "none yet", "lightgrey", "crown", "white")
	}

	docs["active-hunters"] = newDoc("Active Hunters",
		fmt.Sprintf("%d", stats.ActiveHunters), "teal", "users", "white")

	legendaryColor, legendaryLogoColor := "lightgrey", "white"
	if stats.LegendaryHunters > 0 {
		legendaryColor, legendaryLogoColor = "gold", "black"
	}
	docs["legendary-hunters"] = newDoc("Legendary Hunters",
		fmt.Sprintf("%d", stats.LegendaryHunters), legendaryColor, "crown", legendaryLogoColor)

	growthColor, growthLogo := "blue", "dash"
	if stats.WeeklyGrowth > 0 {
		growthColor, growthLogo = "brightgreen", "trending-up"
	}
	docs["weekly-growth"] = newDoc("Weekly XP",
		xpPrinter.Sprintf("+%d", stats.WeeklyGrowth), growthColor, growthLogo, "white")

	docs["updated-at"] = newDoc("XP Updated",
		p.Now().UTC().Format("2006-01-02"), "blue", "clockify", "white")

	return docs, nil
}

// HunterDocs builds every document for one hunter from an already-loaded,
// consistent snapshot. Keys are filenames (without extension) relative to the
// hunters/ directory.
func (p *PublisherService) HunterDocs(ctx context.Context, h *models.Hunter, badges []models.HunterBadge) (map[string]BadgeDoc, error) {
	docs := map[string]BadgeDoc{}
	label := unidecode.Unidecode("@" + h.Handle)

	docs[h.Slug] = newDoc(
		label+" XP",
		xpPrinter.Sprintf("%d (L%d %s)", h.TotalXP, h.Level, h.Title),
		models.ColorForLevel(h.Level), "github", "white",
	)

	var completed int64
	// Completed work excludes claims, unmerged submissions and the one-off bonus.
	if err := p.DB.WithContext(ctx).Model(&models.Award{}).
		Where("handle = ? AND action_kind IN ?", h.Handle, []models.ActionKind{
			models.ActionPRMerged, models.ActionTutorialAccepted, models.ActionBugAccepted,
			models.ActionOutreachAccepted, models.ActionVintageProof,
		}).Count(&completed).Error; err != nil {
		return nil, fmt.Errorf("failed to count completed bounties for %s: %w", h.Handle, err)
	}
	bountyColor := "blue"
	if completed > 0 {
		bountyColor = "brightgreen"
	}
	docs[h.Slug+"-bounties"] = newDoc("Bounties",
		fmt.Sprintf("%d", completed), bountyColor, "check-circle", "white")

	rtcColor := "blue"
	if h.RTCEarned > 0 {
		rtcColor = "orange"
	}
	docs[h.Slug+"-rtc"] = newDoc("RTC Earned",
		fmt.Sprintf("%g RTC", h.RTCEarned), rtcColor, "bitcoin", "white")

	age := "unknown"
	if h.FirstAwardAt != nil {
		age = FormatAccountAge(*h.FirstAwardAt, p.Now().UTC())
	}
	docs[h.Slug+"-age"] = newDoc("Account Age", age, "blue", "clock", "white")

	for _, grant := range badges {
		def, ok := models.BadgeByCode(grant.Code)
		if !ok {
			continue
		}
		docs[h.Slug+"-badge-"+grant.Code] = newDoc(
			def.Name,
			grant.QualifiedAt.UTC().Format("2006-01-02"),
			def.Style.Color, def.Style.Logo, def.Style.LogoColor,
		)
	}
	return docs, nil
}

// FormatAccountAge renders the age string shown on the per-hunter age document.
func FormatAccountAge(first, now time.Time) string {
	days := int(now.Sub(first).Hours() / 24)
	if days < 0 {
		days = 0
	}
	switch {
	case days > 365:
		return fmt.Sprintf("%dy %dm", days/365, (days%365)/30)
	case days > 30:
		return fmt.Sprintf("%dm %dd", days/30, days%30)
	default:
		return fmt.Sprintf("%dd", days)
	}
}

// PublishHunter regenerates every document for one hunter atomically: the docs
// are built from a single consistent read, then each file lands via a
// temp-file rename so a consumer never sees a half-written document.
func (p *PublisherService) PublishHunter(ctx context.Context, handle string) error {
	var h models.Hunter
	var badges []models.HunterBadge
	err := p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("handle = ?", handle).First(&h).Error; err != nil {
			return err
		}
		return tx.Where("handle = ?", handle).Order("code ASC").Find(&badges).Error
	})
	if err != nil {
		return fmt.Errorf("failed to load hunter %s for publish: %w", handle, err)
	}

	docs, err := p.HunterDocs(ctx, &h, badges)
	if err != nil {
		return err
	}
	// Drop stale files for this hunter (e.g. docs for a renamed badge code)
	// before laying down the fresh set.
	if err := p.removeStaleHunterFiles(ctx, h.Slug, docs); err != nil {
		return err
	}
	return p.writeDocs(filepath.Join(p.OutDir, "hunters"), docs)
}

// PublishGlobal regenerates the repository-wide documents.
func (p *PublisherService) PublishGlobal(ctx context.Context) error {
	docs, err := p.GlobalDocs(ctx)
	if err != nil {
		return err
	}
	return p.writeDocs(p.OutDir, docs)
}

// PublishAll resets the per-hunter directory and rewrites everything — the full
// idempotent regeneration pass.
func (p *PublisherService) PublishAll(ctx context.Context) error {
	huntersDir := filepath.Join(p.OutDir, "hunters")
	if err := os.MkdirAll(huntersDir, os.ModePerm); err != nil {
		return err
	}
	stale, err := filepath.Glob(filepath.Join(huntersDir, "*.json"))
	if err != nil {
		return err
	}
	for _, f := range stale {
		if err := os.Remove(f); err != nil {
			return err
		}
	}

	var hunters []models.Hunter
	if err := p.DB.WithContext(ctx).Find(&hunters).Error; err != nil {
		return err
	}
	for _, h := range hunters {
		if err := p.PublishHunter(ctx, h.Handle); err != nil {
			return err
		}
	}
	if err := p.PublishGlobal(ctx); err != nil {
		return err
	}
	log.Printf("📤 Published badge documents for %d hunter(s) to %s", len(hunters), p.OutDir)
	return nil
}

// removeStaleHunterFiles drops this hunter's no-longer-published documents.
// Slugs can share prefixes (alice, alice-smith), so any document owned by
// another hunter's slug is off limits even when it matches this hunter's glob.
func (p *PublisherService) removeStaleHunterFiles(ctx context.Context, slug string, fresh map[string]BadgeDoc) error {
	dir := filepath.Join(p.OutDir, "hunters")
	existing, err := filepath.Glob(filepath.Join(dir, slug+"*.json"))
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		return nil
	}

	var neighbors []string
	if err := p.DB.WithContext(ctx).Model(&models.Hunter{}).
		Where("slug LIKE ? AND slug <> ?", slug+"%", slug).
		Pluck("slug", &neighbors).Error; err != nil {
		return err
	}

	for _, path := range existing {
		name := strings.TrimSuffix(filepath.Base(path), ".json")
		if name != slug && !strings.HasPrefix(name, slug+"-") {
			continue
		}
		if _, keep := fresh[name]; keep {
			continue
		}
		if ownedByNeighborSlug(name, neighbors) {
			continue
		}
		if err := os.Remove(path); err != nil {
			return err
		}
	}
	return nil
}

func ownedByNeighborSlug(name string, slugs []string) bool {
	for _, s := range slugs {
		if name == s || strings.HasPrefix(name, s+"-") {
			return true
		}
	}
	return false
}

func (p *PublisherService) writeDocs(dir string, docs map[string]BadgeDoc) error {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return err
	}
	for name, doc := range docs {
		data := EncodeDoc(doc)
		path := filepath.Join(dir, name+".json")
		if err := utils.WriteFileAtomic(path, data); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		if utils.R2Enabled() {
			rel, err := filepath.Rel(p.OutDir, path)
			if err != nil {
				return err
			}
			key := "badges/" + filepath.ToSlash(rel)
			if _, err := utils.UploadBytesToR2(key, data, "application/json"); err != nil {
				return fmt.Errorf("failed to upload %s to R2: %w", key, err)
			}
		}
	}
	return nil
}
