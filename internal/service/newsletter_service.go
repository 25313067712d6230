// internal/service/newsletter_service.go
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	appErrors "github.com/unclebandit/newsflow/internal/errors"
	"github.com/unclebandit/newsflow/internal/mailer"
	"github.com/unclebandit/newsflow/internal/model"
	"github.com/unclebandit/newsflow/internal/pkg/logger"
	"github.com/unclebandit/newsflow/internal/repository"
)

// SendRequest is one bulk send. It is also the shape of a queued job and of
// a pending batch handed to the CLI.
type SendRequest struct {
	Subscribers []model.Subscriber `json:"subscribers"`
	Subject     string             `json:"subject"`
	HTML        string             `json:"html"`
	CampaignID  model.ID           `json:"campaignId"`
	ServerURL   string             `json:"serverUrl,omitempty"`
	Personalize bool               `json:"personalize,omitempty"`
}

type SendError struct {
	Email string `json:"email"`
	Error string `json:"error"`
}

type SentRecipient struct {
	Email  string    `json:"email"`
	Name   string    `json:"name,omitempty"`
	SentAt time.Time `json:"sentAt"`
}

type SendResult struct {
	Success        bool            `json:"success"`
	Sent           int             `json:"sent"`
	Failed         int             `json:"failed"`
	Errors         []SendError     `json:"errors"`
	SentRecipients []SentRecipient `json:"sentRecipients"`
}

// Progress is reported after every recipient.
type Progress struct {
	Index int
	Total int
	Email string
	Err   error
}

// NewsletterService sends campaigns one recipient at a time.
type NewsletterService struct {
	Sender mailer.Sender
	Pacer  Pacer
	// BaseURL is used for tracking links when a request carries no serverUrl.
	BaseURL   string
	Templates *TemplateService
	// Campaigns is optional; when set, RecordDeliveries can attach sent
	// recipients to the stored campaign.
	Campaigns repository.CampaignRepositoryInterface

	// AllowCancel lets the caller's context abort a batch between sends.
	// By default a started batch runs to completion.
	AllowCancel bool
	OnProgress  func(Progress)
	Now         func() time.Time
}

func (s *NewsletterService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// SendEmail is a single untracked send.
func (s *NewsletterService) SendEmail(ctx context.Context, to, subject, html string) (*mailer.SendResult, error) {
	return s.Sender.Send(ctx, &mailer.Email{To: to, Subject: subject, HTML: html})
}

// SendCampaign sends req in input order, waiting on the pacer between
// sends. A failed recipient is recorded and the loop moves on. This takes
// roughly len(subscribers) times the pacing interval.
func (s *NewsletterService) SendCampaign(ctx context.Context, req SendRequest) *SendResult {
	if !s.AllowCancel {
		ctx = context.WithoutCancel(ctx)
	}
	pacer := s.Pacer
	if pacer == nil {
		pacer = DefaultPacer()
	}
	baseURL := strings.TrimRight(req.ServerURL, "/")
	if baseURL == "" {
		baseURL = strings.TrimRight(s.BaseURL, "/")
	}
	campaignID := req.CampaignID.String()
	total := len(req.Subscribers)

	log.Println("📧 ====================================")
	log.Printf("📧 Sending newsletter to %d subscribers", total)
	log.Printf("📧 Campaign ID: %s", campaignID)
	log.Println("📧 ====================================")

	result := &SendResult{
		Success:        true,
		Errors:         []SendError{},
		SentRecipients: []SentRecipient{},
	}

	for i, sub := range req.Subscribers {
		err := s.sendOne(ctx, req, sub, campaignID, baseURL)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, SendError{Email: sub.Email, Error: err.Error()})
			logger.Warn("newsletter send failed", "index", fmt.Sprintf("%d/%d", i+1, total), "email", sub.Email, "error", err)
		} else {
			result.Sent++
			result.SentRecipients = append(result.SentRecipients, SentRecipient{
				Email:  sub.Email,
				Name:   sub.Name,
				SentAt: s.now(),
			})
			logger.Info("newsletter sent", "index", fmt.Sprintf("%d/%d", i+1, total), "email", sub.Email)
		}

		if s.OnProgress != nil {
			s.OnProgress(Progress{Index: i, Total: total, Email: sub.Email, Err: err})
		}

		if i < total-1 {
			if err := pacer.Wait(ctx, i+1); err != nil {
				// only reachable with AllowCancel
				log.Printf("⚠️ Batch for campaign %s cancelled after %d of %d: %v", campaignID, i+1, total, err)
				break
			}
		}
	}

	log.Printf("📊 DONE! Sent: %d, Failed: %d", result.Sent, result.Failed)
	return result
}

func (s *NewsletterService) sendOne(ctx context.Context, req SendRequest, sub model.Subscriber, campaignID, baseURL string) error {
	if strings.TrimSpace(sub.Email) == "" {
		return fmt.Errorf("missing email address")
	}

	subject, html := req.Subject, req.HTML
	if req.Personalize {
		var err error
		if subject, html, err = s.personalize(req, sub); err != nil {
			return err
		}
	}

	tracked := TrackContent(html, campaignID, sub.Email, baseURL)
	_, err := s.Sender.Send(ctx, &mailer.Email{
		To:         sub.Email,
		Subject:    subject,
		HTML:       tracked,
		CampaignID: campaignID,
	})
	return err
}

func (s *NewsletterService) personalize(req SendRequest, sub model.Subscriber) (string, string, error) {
	ts := s.Templates
	if ts == nil {
		ts = NewTemplateService()
	}
	data := subscriberBindings(sub.Email, sub.Name, stringFields(sub.Extra))

	subject, err := ts.RenderTemplate(req.Subject, data)
	if err != nil {
		return "", "", err
	}
	html, err := ts.RenderTemplate(req.HTML, data)
	if err != nil {
		return "", "", err
	}
	return subject, html, nil
}

func stringFields(extra model.Extra) map[string]string {
	out := make(map[string]string, len(extra))
	for k, raw := range extra {
		var v string
		if json.Unmarshal(raw, &v) == nil {
			out[k] = v
		}
	}
	return out
}

// RecordDeliveries marks sent recipients on the stored campaign, adding
// recipients it does not list yet. Existing open and click timestamps are
// kept. A campaign that is not stored is a no-op.
func (s *NewsletterService) RecordDeliveries(ctx context.Context, campaignID model.ID, sent []SentRecipient) error {
	if s.Campaigns == nil || len(sent) == 0 {
		return nil
	}
	_, err := s.Campaigns.Update(ctx, campaignID, func(c *model.Campaign) (bool, error) {
		for _, sr := range sent {
			at := sr.SentAt
			if r := c.Recipient(sr.Email); r != nil {
				r.MarkSent(at)
				if r.Name == "" {
					r.Name = sr.Name
				}
				continue
			}
			c.Recipients = append(c.Recipients, model.RecipientStatus{Email: sr.Email, Name: sr.Name, SentAt: &at})
		}
		return true, nil
	})
	if appErrors.IsCampaignNotFound(err) {
		return nil
	}
	return err
}
