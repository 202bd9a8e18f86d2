// services/scheduler.go
package services

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Republisher is what the scheduler needs from the publish worker — the worker
// package depends on services, not the other way around.
type Republisher interface {
	EnqueueAll()
}

// StartLedgerScheduler runs the periodic read-model maintenance:
// every 5 minutes a leaderboard snapshot + global document refresh, daily a
// full catch-up recompute (retroactive badges, drift repair) + full republish.
func StartLedgerScheduler(ledger *LedgerService, leaderboard *LeaderboardService, republisher Republisher) {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(5*time.Minute),
		gocron.NewTask(func() {
			if err := leaderboard.Snapshot(context.Background()); err != nil {
				log.Printf("[Scheduler] Leaderboard snapshot failed: %v", err)
				return
			}
			republisher.EnqueueAll()
		}),
	)

	_, _ = sched.NewJob(
		gocron.DurationJob(24*time.Hour),
		gocron.NewTask(func() {
			report, err := ledger.RecomputeAll(context.Background())
			if err != nil {
				log.Printf("[Scheduler] Catch-up recompute failed: %v", err)
				return
			}
			log.Printf("[Scheduler] Catch-up recompute: %d hunters, %d retroactive badges", report.Hunters, report.NewBadges)
			republisher.EnqueueAll()
		}),
	)
}
