package models

import (
	"strings"
	"time"
)

// HunterStats is the full derived view of one hunter's award history that badge
// predicates are evaluated against. Built by replay, never stored.
type HunterStats struct {
	Handle        string
	TotalXP       int64
	KindCounts    map[ActionKind]int64
	RTCEarned     float64
	AwardCount    int64
	DegradedCount int64
	FirstAwardAt  time.Time
	LastAwardAt   time.Time
	LastAction    string
	MaxDayStreak  int // longest run of consecutive UTC days with at least one award
}

// KindCount returns the number of awards of the given kind (0 for unseen kinds).
func (s HunterStats) KindCount(kind ActionKind) int64 {
	return s.KindCounts[kind]
}

// CompletedBounties counts awards for finished work — everything except claims,
// not-yet-merged submissions and the one-off first-completion bonus.
func (s HunterStats) CompletedBounties() int64 {
	return s.KindCount(ActionPRMerged) +
		s.KindCount(ActionTutorialAccepted) +
		s.KindCount(ActionBugAccepted) +
		s.KindCount(ActionOutreachAccepted) +
		s.KindCount(ActionVintageProof)
}

// BadgeStyle mirrors the shields.io style triple used on published documents.
type BadgeStyle struct {
	Color     string
	Logo      string
	LogoColor string
}

// BadgeDefinition pairs a stable code with a predicate over hunter state.
// Predicates are evaluated generically after every append and on catch-up
// recomputes, so definitions added later are granted retroactively.
type BadgeDefinition struct {
	Code      string
	Name      string
	Style     BadgeStyle
	Predicate func(s HunterStats) bool
}

var BadgeRegistry = []BadgeDefinition{
	{
		Code:      "first-blood",
		Name:      "First Blood",
		Style:     BadgeStyle{"red", "git", "white"},
		Predicate: func(s HunterStats) bool { return s.KindCount(ActionPRMerged) >= 1 },
	},
	{
		Code:      "rising-hunter",
		Name:      "Rising Hunter",
		Style:     BadgeStyle{"orange", "rocket", "white"},
		Predicate: func(s HunterStats) bool { return s.TotalXP >= 1000 },
	},
	{
		Code:      "multiplier-hunter",
		Name:      "Multiplier Hunter",
		Style:     BadgeStyle{"yellow", "star", "black"},
		Predicate: func(s HunterStats) bool { return s.TotalXP >= 2000 },
	},
	{
		Code:      "veteran-hunter",
		Name:      "Veteran Hunter",
		Style:     BadgeStyle{"purple", "shield", "white"},
		Predicate: func(s HunterStats) bool { return s.TotalXP >= 5500 },
	},
	{
		Code:      "legendary-hunter",
		Name:      "Legendary Hunter",
		Style:     BadgeStyle{"gold", "crown", "black"},
		Predicate: func(s HunterStats) bool { return s.TotalXP >= 18000 },
	},
	{
		Code:      "vintage-veteran",
		Name:      "Vintage Veteran",
		Style:     BadgeStyle{"purple", "apple", "white"},
		Predicate: func(s HunterStats) bool { return s.KindCount(ActionVintageProof) >= 1 },
	},
	{
		Code:      "tutorial-titan",
		Name:      "Tutorial Titan",
		Style:     BadgeStyle{"blue", "book", "white"},
		Predicate: func(s HunterStats) bool { return s.KindCount(ActionTutorialAccepted) >= 1 },
	},
	{
		Code:      "bug-slayer",
		Name:      "Bug Slayer",
		Style:     BadgeStyle{"darkred", "bug", "white"},
		Predicate: func(s HunterStats) bool { return s.KindCount(ActionBugAccepted) >= 1 },
	},
	{
		Code:      "outreach-pro",
		Name:      "Outreach Pro",
		Style:     BadgeStyle{"teal", "twitter", "white"},
		Predicate: func(s HunterStats) bool { return s.KindCount(ActionOutreachAccepted) >= 1 },
	},
	{
		Code:      "streak-master",
		Name:      "Streak Master",
		Style:     BadgeStyle{"green", "fire", "white"},
		Predicate: func(s HunterStats) bool { return s.MaxDayStreak >= 3 },
	},
	{
		Code:      "agent-overlord",
		Name:      "Agent Overlord",
		Style:     BadgeStyle{"cyan", "robot", "white"},
		Predicate: func(s HunterStats) bool {
			return strings.Contains(strings.ToLower(s.Handle), "agent") && s.TotalXP >= 500
		},
	},
}

// BadgeByCode looks up a registry entry; ok is false for unknown codes.
func BadgeByCode(code string) (BadgeDefinition, bool) {
	for _, def := range BadgeRegistry {
		if def.Code == code {
			return def, true
		}
	}
	return BadgeDefinition{}, false
}
