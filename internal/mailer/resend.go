package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/unclebandit/newsflow/internal/pkg/logger"
)

const defaultResendFailure = "Failed to send email"

// ResendClient sends through the Resend HTTP API.
type ResendClient struct {
	apiKey  string
	from    string
	baseURL string
	client  *http.Client
}

func NewResendClient(apiKey, from, baseURL string, timeout time.Duration) *ResendClient {
	if baseURL == "" {
		baseURL = "https://api.resend.com"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ResendClient{
		apiKey:  apiKey,
		from:    from,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type resendRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

func (c *ResendClient) Send(ctx context.Context, email *Email) (*SendResult, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("Resend API key not configured")
	}

	jsonData, err := json.Marshal(resendRequest{
		From:    c.from,
		To:      email.To,
		Subject: email.Subject,
		HTML:    email.HTML,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/emails", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	var data struct {
		ID      string `json:"id"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &data)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := data.Message
		if msg == "" {
			msg = defaultResendFailure
		}
		return nil, &ProviderError{Provider: "resend", Status: resp.StatusCode, Message: msg}
	}

	log.Printf("[Resend] Sent to %s (id: %s)", logger.RedactEmail(email.To), data.ID)
	return &SendResult{ID: data.ID, Raw: body}, nil
}
