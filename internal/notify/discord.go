// Package notify posts record summaries to a Discord-style channel webhook.
// Delivery is fire-and-forget: a failed or slow post is logged and dropped,
// and never affects the committed record or the ledger.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gamelore-ai/gamelore-backend/internal/domain"
)

// summaryRunes caps how much of the lore text is included in the message.
const summaryRunes = 200

// Notifier shares committed generation records to a configured webhook URL.
// An empty URL disables sharing.
type Notifier struct {
	url    string
	client *http.Client
}

// New constructs a Notifier. Zero timeout selects 5s.
func New(url string, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Notifier{url: url, client: &http.Client{Timeout: timeout}}
}

// Enabled reports whether a webhook URL is configured.
func (n *Notifier) Enabled() bool { return n.url != "" }

// ShareRecord posts a short summary of rec to the channel. The returned error
// is informational only; callers must treat it as non-fatal.
func (n *Notifier) ShareRecord(ctx context.Context, rec *domain.GenerationRecord) error {
	if !n.Enabled() {
		return fmt.Errorf("notify: no webhook configured")
	}

	preview := rec.Content
	if runes := []rune(preview); len(runes) > summaryRunes {
		preview = string(runes[:summaryRunes])
	}
	payload := map[string]string{
		"content": fmt.Sprintf("🚀 **New Creation**\nType: %s\n\n%s...", rec.Kind, preview),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Uint("record_id", rec.ID).Msg("share webhook post failed")
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		err := fmt.Errorf("notify: webhook status %d", resp.StatusCode)
		log.Warn().Err(err).Uint("record_id", rec.ID).Msg("share webhook rejected")
		return err
	}
	return nil
}
