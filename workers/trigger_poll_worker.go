package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"hunter-ledger-system/services"
)

// TriggerPollClient pulls pending award events from the trigger collaborator
// when it exposes a polling feed instead of pushing webhooks. Duplicate
// suppression lives in the ledger, so re-reading a window is harmless.
type TriggerPollClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Ledger     *services.LedgerService
	Worker     *PublishWorker
}

func NewTriggerPollClient(ledger *services.LedgerService, worker *PublishWorker) *TriggerPollClient {
	baseURL := os.Getenv("TRIGGER_SOURCE_URL")
	token := os.Getenv("LEDGER_SERVICE_TOKEN")
	if token == "" {
		log.Fatal("LEDGER_SERVICE_TOKEN environment variable is required for trigger polling")
	}

	return &TriggerPollClient{
		BaseURL: baseURL,
		Token:   token,
		Ledger:  ledger,
		Worker:  worker,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *TriggerPollClient) GetPendingEvents(ctx context.Context, since time.Time) ([]services.AwardEvent, error) {
	since = since.UTC()

	u, err := url.Parse(fmt.Sprintf("%s/api/v1/public/award-events", c.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}

	q := u.Query()
	q.Set("since", since.Format(time.RFC3339))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call trigger source: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("trigger source returned status %d: %s", resp.StatusCode, string(body))
	}

	var response struct {
		Events []services.AwardEvent `json:"events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode trigger source response: %w", err)
	}

	return response.Events, nil
}

// PollTrigger appends pending events on a fixed cadence. Duplicates from window
// overlap are logged no-ops; per-event failures never stall the loop.
func PollTrigger(ctx context.Context, client *TriggerPollClient, pollInterval time.Duration) {
	log.Println("Starting trigger source polling...")
	lastSyncTime := time.Now().UTC().Add(-24 * time.Hour)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Trigger polling stopped.")
			return
		case <-ticker.C:
			logTime := time.Now().UTC()

			events, err := client.GetPendingEvents(ctx, lastSyncTime)
			if err != nil {
				log.Printf("❌ Error polling trigger source: %v", err)
				continue
			}

			if len(events) == 0 {
				lastSyncTime = logTime
				continue
			}
			log.Printf("📥 Received %d award event(s) from trigger source.", len(events))

			appended := 0
			for _, ev := range events {
				hunter, _, err := client.Ledger.Append(ctx, ev)
				if err != nil {
					switch {
					case errors.Is(err, services.ErrDuplicateEvent):
						// Window overlap — already counted.
					case errors.Is(err, services.ErrUnknownActionKind), errors.Is(err, services.ErrInvalidEvent):
						log.Printf("❌ Rejected trigger event (source %s): %v", ev.SourceRef, err)
					default:
						log.Printf("❌ Failed to append trigger event (source %s): %v", ev.SourceRef, err)
					}
					continue
				}
				appended++
				client.Worker.Enqueue(hunter.Handle)
			}

			// Advance the window only after the batch is handled; failures above are
			// per-event and safe to leave behind thanks to idempotency keys.
			lastSyncTime = logTime
			if appended > 0 {
				log.Printf("✅ Appended %d award(s) from trigger source.", appended)
			}
		}
	}
}
