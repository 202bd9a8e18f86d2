package models

import "fmt"

// Static award tables. Pure data — validated once at startup via ValidateTables,
// never mutated at runtime.

// LevelThreshold: a hunter's level is the highest entry whose MinXP <= total XP.
type LevelThreshold struct {
	MinXP int64
	Level int
	Title string
}

var LevelThresholds = []LevelThreshold{
	{0, 1, "Starting Hunter"},
	{200, 2, "Basic Hunter"},
	{500, 3, "Priority Hunter"},
	{1000, 4, "Rising Hunter"},
	{2000, 5, "Multiplier Hunter"},
	{3500, 6, "Featured Hunter"},
	{5500, 7, "Veteran Hunter"},
	{8000, 8, "Elite Hunter"},
	{12000, 9, "Master Hunter"},
	{18000, 10, "Legendary Hunter"},
}

// LevelForXP returns the level and title for a cumulative XP total.
// XP beyond the top threshold stays at the top level.
func LevelForXP(totalXP int64) (int, string) {
	for i := len(LevelThresholds) - 1; i >= 0; i-- {
		if totalXP >= LevelThresholds[i].MinXP {
			return LevelThresholds[i].Level, LevelThresholds[i].Title
		}
	}
	return 1, "Starting Hunter"
}

// Tier classifies the RTC reference amount of variable-reward actions.
type Tier string

const (
	TierMicro    Tier = "micro"    // <= 10 RTC
	TierStandard Tier = "standard" // <= 50 RTC
	TierMajor    Tier = "major"    // <= 100 RTC
	TierCritical Tier = "critical" // > 100 RTC
)

// ClassifyTier maps an RTC reference amount to its payout band.
func ClassifyTier(rtc float64) Tier {
	switch {
	case rtc <= 10:
		return TierMicro
	case rtc <= 50:
		return TierStandard
	case rtc <= 100:
		return TierMajor
	default:
		return TierCritical
	}
}

// SubmissionXP: base XP for a submitted PR, by tier.
var SubmissionXP = map[Tier]int64{
	TierMicro:    50,
	TierStandard: 100,
	TierMajor:    200,
	TierCritical: 300,
}

// MergeBonusXP: bonus XP when a PR merges, by tier. The published range is
// +100..+500; standard is pinned at +100 to match the award examples.
var MergeBonusXP = map[Tier]int64{
	TierMicro:    100,
	TierStandard: 100,
	TierMajor:    300,
	TierCritical: 500,
}

// FlatXP: fixed amounts for non-tiered actions.
var FlatXP = map[ActionKind]int64{
	ActionClaim:                20,
	ActionTutorialAccepted:     150,
	ActionBugAccepted:          80,
	ActionOutreachAccepted:     30,
	ActionVintageProof:         100,
	ActionFirstCompletionBonus: 50,
}

// TierClassified reports whether a kind derives its XP from the RTC amount.
func TierClassified(kind ActionKind) bool {
	return kind == ActionPRSubmitted || kind == ActionPRMerged
}

// KnownActionKind reports whether the kind appears in any award table.
func KnownActionKind(kind ActionKind) bool {
	if TierClassified(kind) {
		return true
	}
	_, ok := FlatXP[kind]
	return ok
}

// ColorForLevel picks the shields.io color used on a hunter's XP document.
func ColorForLevel(level int) string {
	switch {
	case level >= 10:
		return "gold"
	case level >= 7:
		return "purple"
	case level >= 5:
		return "yellow"
	case level >= 4:
		return "orange"
	default:
		return "blue"
	}
}

// ValidateTables checks every static table at startup. A malformed table is a
// fatal configuration error — callers are expected to log.Fatal on it.
func ValidateTables() error {
	if len(LevelThresholds) == 0 {
		return fmt.Errorf("level threshold table is empty")
	}
	if LevelThresholds[0].MinXP != 0 {
		return fmt.Errorf("level threshold table must start at 0 XP, got %d", LevelThresholds[0].MinXP)
	}
	for i := 1; i < len(LevelThresholds); i++ {
		if LevelThresholds[i].MinXP <= LevelThresholds[i-1].MinXP {
			return fmt.Errorf("level thresholds must be strictly increasing: %d (level %d) after %d (level %d)",
				LevelThresholds[i].MinXP, LevelThresholds[i].Level,
				LevelThresholds[i-1].MinXP, LevelThresholds[i-1].Level)
		}
		if LevelThresholds[i].Level <= LevelThresholds[i-1].Level {
			return fmt.Errorf("level numbers must be strictly increasing at index %d", i)
		}
	}
	for _, tier := range []Tier{TierMicro, TierStandard, TierMajor, TierCritical} {
		if _, ok := SubmissionXP[tier]; !ok {
			return fmt.Errorf("submission XP table missing tier %q", tier)
		}
		if _, ok := MergeBonusXP[tier]; !ok {
			return fmt.Errorf("merge bonus XP table missing tier %q", tier)
		}
	}
	for kind, xp := range FlatXP {
		if xp < 0 {
			return fmt.Errorf("flat XP for %q is negative: the ledger has no deduction actions", kind)
		}
	}
	seen := map[string]bool{}
	for _, def := range BadgeRegistry {
		if def.Code == "" || def.Name == "" {
			return fmt.Errorf("badge definition with empty code or name")
		}
		if seen[def.Code] {
			return fmt.Errorf("duplicate badge code %q", def.Code)
		}
		seen[def.Code] = true
		if def.Predicate == nil {
			return fmt.Errorf("badge %q has no predicate", def.Code)
		}
	}
	return nil
}
