package handler

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/unclebandit/newsflow/internal/pkg/httputil"
	"github.com/unclebandit/newsflow/internal/pkg/logger"
	"github.com/unclebandit/newsflow/internal/queue"
)

// ProviderEvent is a delivery notification pushed by the mail provider.
type ProviderEvent struct {
	Type      string          `json:"type"`
	CreatedAt string          `json:"created_at,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Recipient returns data.email, falling back to the first data.to entry.
func (e ProviderEvent) Recipient() string {
	var data struct {
		Email string          `json:"email"`
		To    json.RawMessage `json:"to"`
	}
	if len(e.Data) == 0 || json.Unmarshal(e.Data, &data) != nil {
		return ""
	}
	if data.Email != "" {
		return data.Email
	}
	var one string
	if json.Unmarshal(data.To, &one) == nil {
		return one
	}
	var many []string
	if json.Unmarshal(data.To, &many) == nil && len(many) > 0 {
		return many[0]
	}
	return ""
}

// WebhookHandler accepts provider events. Nothing depends on them yet, so
// they are logged, fanned out on the queue and acknowledged.
type WebhookHandler struct {
	// Queue is optional.
	Queue queue.Queue
}

func (h *WebhookHandler) Resend(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		logger.Warn("webhook read failed", "error", err)
		httputil.OK(w, map[string]bool{"received": true})
		return
	}

	var ev ProviderEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		logger.Warn("webhook payload is not JSON", "error", err)
		httputil.OK(w, map[string]bool{"received": true})
		return
	}

	log.Printf("📬 Webhook received: %s - %s", ev.Type, logger.RedactEmail(ev.Recipient()))
	if h.Queue != nil {
		if err := h.Queue.Publish(queue.TopicProviderEvents, ev); err != nil {
			logger.Debug("provider event not published", "type", ev.Type, "error", err)
		}
	}
	httputil.OK(w, map[string]bool{"received": true})
}
