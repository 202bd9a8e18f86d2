package workers

import (
	"context"
	"log"
	"time"
)

// Publisher is the emission surface the worker drives (services.PublisherService
// in production).
type Publisher interface {
	PublishHunter(ctx context.Context, handle string) error
	PublishGlobal(ctx context.Context) error
	PublishAll(ctx context.Context) error
}

// PublishWorker decouples badge-document emission from the ledger append path.
// Appends enqueue and move on; the worker drains with retries and backoff, so a
// slow or failing publish target never blocks or loses an award. Publishing is
// idempotent, so at-least-once delivery is fine.
type PublishWorker struct {
	Publisher   Publisher
	MaxAttempts int
	BaseBackoff time.Duration

	queue chan publishJob
}

type publishJob struct {
	handle string
	all    bool
}

func NewPublishWorker(publisher Publisher) *PublishWorker {
	return &PublishWorker{
		Publisher:   publisher,
		MaxAttempts: 4,
		BaseBackoff: 2 * time.Second,
		queue:       make(chan publishJob, 256),
	}
}

// Enqueue schedules a per-hunter republish. Never blocks: when the queue is
// full the job is dropped, and the next full republish covers the gap.
func (w *PublishWorker) Enqueue(handle string) {
	select {
	case w.queue <- publishJob{handle: handle}:
	default:
		log.Printf("⚠️  Publish queue full, dropping refresh for %s (next full republish covers it)", handle)
	}
}

// EnqueueAll schedules a full republish (globals + every hunter).
func (w *PublishWorker) EnqueueAll() {
	select {
	case w.queue <- publishJob{all: true}:
	default:
		log.Println("⚠️  Publish queue full, dropping full republish request")
	}
}

// Start drains the queue until the context is cancelled.
func (w *PublishWorker) Start(ctx context.Context) {
	log.Println("Starting badge document publish worker...")
	for {
		select {
		case <-ctx.Done():
			log.Println("Publish worker stopped.")
			return
		case job := <-w.queue:
			w.process(ctx, job)
		}
	}
}

func (w *PublishWorker) process(ctx context.Context, job publishJob) {
	backoff := w.BaseBackoff
	for attempt := 1; attempt <= w.MaxAttempts; attempt++ {
		var err error
		if job.all {
			err = w.Publisher.PublishAll(ctx)
		} else {
			err = w.Publisher.PublishHunter(ctx, job.handle)
			if err == nil {
				err = w.Publisher.PublishGlobal(ctx)
			}
		}
		if err == nil {
			return
		}

		// Ledger state is unaffected by publish failures — log, back off, retry.
		log.Printf("❌ Publish attempt %d/%d failed (%s): %v", attempt, w.MaxAttempts, jobLabel(job), err)
		if attempt == w.MaxAttempts {
			log.Printf("❌ Giving up on publish (%s) — next scheduled republish will retry", jobLabel(job))
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

func jobLabel(job publishJob) string {
	if job.all {
		return "full republish"
	}
	return "hunter " + job.handle
}
