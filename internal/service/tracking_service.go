// internal/service/tracking_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/unclebandit/newsflow/internal/errors"
	"github.com/unclebandit/newsflow/internal/model"
	"github.com/unclebandit/newsflow/internal/pkg/logger"
	"github.com/unclebandit/newsflow/internal/queue"
	"github.com/unclebandit/newsflow/internal/repository"
)

// TrackingService records opens and clicks. The event log is the source of
// truth for engagement; campaign opened/clicked counters are a derived
// first-occurrence view that Reconcile can rebuild from the log.
type TrackingService struct {
	Events    repository.EventRepositoryInterface
	Campaigns repository.CampaignRepositoryInterface
	// Queue is optional; recorded events are published on TopicTrackingEvents.
	Queue queue.Queue

	Now   func() time.Time
	NewID func() string
}

func (s *TrackingService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *TrackingService) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.New().String()
}

// RecordEvent appends one event to the bounded log.
func (s *TrackingService) RecordEvent(ctx context.Context, eventType model.EventType, campaignID model.ID, email string, url *string) (*model.TrackingEvent, error) {
	if !eventType.Valid() {
		return nil, appErrors.NewValidation("type", fmt.Sprintf("unknown event type %q", eventType))
	}

	ev := model.TrackingEvent{
		ID:         s.newID(),
		Type:       eventType,
		CampaignID: campaignID,
		Email:      email,
		URL:        url,
		Timestamp:  s.now(),
	}
	if err := s.Events.Append(ctx, ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// QueryCampaignStats aggregates the log for one campaign. Recipients are
// compared case-insensitively; openedBy and clickedBy keep the first
// spelling seen, in first-seen order.
func (s *TrackingService) QueryCampaignStats(ctx context.Context, campaignID model.ID) (*model.CampaignStats, error) {
	events, err := s.Events.List(ctx)
	if err != nil {
		return nil, err
	}

	stats := &model.CampaignStats{
		CampaignID: campaignID,
		OpenedBy:   []string{},
		ClickedBy:  []string{},
		Events:     []model.TrackingEvent{},
	}
	seenOpen := map[string]bool{}
	seenClick := map[string]bool{}

	for _, ev := range events {
		if !ev.CampaignID.Equal(campaignID) {
			continue
		}
		stats.Events = append(stats.Events, ev)
		key := emailKey(ev.Email)

		switch ev.Type {
		case model.EventOpen:
			stats.TotalOpens++
			if !seenOpen[key] {
				seenOpen[key] = true
				stats.OpenedBy = append(stats.OpenedBy, ev.Email)
			}
		case model.EventClick:
			stats.TotalClicks++
			if !seenClick[key] {
				seenClick[key] = true
				stats.ClickedBy = append(stats.ClickedBy, ev.Email)
			}
		}
	}

	stats.UniqueOpens = len(stats.OpenedBy)
	stats.UniqueClicks = len(stats.ClickedBy)
	return stats, nil
}

// ApplyEvent sets the recipient's first-occurrence timestamp and bumps the
// campaign counter. Unknown campaigns, recipients or event types, and
// repeats, are no-ops that report false.
func (s *TrackingService) ApplyEvent(ctx context.Context, campaignID model.ID, email string, eventType model.EventType) (bool, error) {
	if !eventType.Valid() {
		return false, nil
	}
	at := s.now()
	changed, err := s.Campaigns.Update(ctx, campaignID, func(c *model.Campaign) (bool, error) {
		return applyFirstOccurrence(c, email, eventType, at), nil
	})
	if appErrors.IsCampaignNotFound(err) {
		return false, nil
	}
	return changed, err
}

// Reconcile replays the campaign's logged events through the
// first-occurrence rule using each event's own timestamp. It only fills in
// missing timestamps and never lowers a counter. Returns the number of
// recipient fields it set.
func (s *TrackingService) Reconcile(ctx context.Context, campaignID model.ID) (int, error) {
	events, err := s.Events.List(ctx)
	if err != nil {
		return 0, err
	}

	var changes int
	_, err = s.Campaigns.Update(ctx, campaignID, func(c *model.Campaign) (bool, error) {
		changes = 0
		for _, ev := range events {
			if !ev.CampaignID.Equal(campaignID) {
				continue
			}
			if applyFirstOccurrence(c, ev.Email, ev.Type, ev.Timestamp.UTC()) {
				changes++
			}
		}
		return changes > 0, nil
	})
	if err != nil {
		return 0, err
	}
	return changes, nil
}

// Track is the full path of an inbound open or click: log it, update the
// campaign view and fan it out. Failures are logged and joined; the caller
// still answers the client.
func (s *TrackingService) Track(ctx context.Context, eventType model.EventType, campaignID model.ID, email string, url *string) error {
	var errs []error

	ev, err := s.RecordEvent(ctx, eventType, campaignID, email, url)
	if err != nil {
		logger.Error("record tracking event failed", "campaign", campaignID, "email", email, "error", err)
		errs = append(errs, err)
	}

	changed, err := s.ApplyEvent(ctx, campaignID, email, eventType)
	if err != nil {
		logger.Error("apply tracking event failed", "campaign", campaignID, "email", email, "error", err)
		errs = append(errs, err)
	} else if changed {
		log.Printf("   ✅ First %s recorded for campaign %s", eventType, campaignID)
	}

	if ev != nil && s.Queue != nil {
		if err := s.Queue.Publish(queue.TopicTrackingEvents, ev); err != nil {
			logger.Warn("publish tracking event failed", "campaign", campaignID, "error", err)
		}
	}

	return errors.Join(errs...)
}

func applyFirstOccurrence(c *model.Campaign, email string, eventType model.EventType, at time.Time) bool {
	r := c.Recipient(email)
	if r == nil {
		return false
	}
	switch eventType {
	case model.EventOpen:
		if r.Opened() {
			return false
		}
		r.OpenedAt = &at
		delete(r.Extra, "openedAt")
		c.Opened++
		return true
	case model.EventClick:
		if r.Clicked() {
			return false
		}
		r.ClickedAt = &at
		delete(r.Extra, "clickedAt")
		c.Clicked++
		return true
	}
	return false
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
