// Package mailer delivers single HTML emails through a transactional
// provider. Senders are stateless and safe for concurrent use.
package mailer

import (
	"context"
	"encoding/json"
	"fmt"
)

// Email is one outbound message.
type Email struct {
	To      string
	Subject string
	HTML    string
	// CampaignID is attached as provider metadata when the provider supports it.
	CampaignID string
}

// SendResult is what the provider returned for an accepted message.
type SendResult struct {
	ID string `json:"id"`
	// Raw is the provider's response body, passed back to API clients as is.
	Raw json.RawMessage `json:"-"`
}

func (r SendResult) MarshalJSON() ([]byte, error) {
	if len(r.Raw) > 0 && json.Valid(r.Raw) {
		return r.Raw, nil
	}
	return json.Marshal(struct {
		ID string `json:"id"`
	}{r.ID})
}

// Sender is implemented by each provider client.
type Sender interface {
	Send(ctx context.Context, email *Email) (*SendResult, error)
}

// ProviderError is a non-2xx answer from the provider.
type ProviderError struct {
	Provider string
	Status   int
	Message  string
}

func (e *ProviderError) Error() string {
	return e.Message
}

// Detail includes the provider and status for logs.
func (e *ProviderError) Detail() string {
	return fmt.Sprintf("%s error %d: %s", e.Provider, e.Status, e.Message)
}
