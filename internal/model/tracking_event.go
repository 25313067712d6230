// internal/model/tracking_event.go
package model

import "time"

type EventType string

const (
	EventOpen  EventType = "open"
	EventClick EventType = "click"
)

func (t EventType) Valid() bool {
	return t == EventOpen || t == EventClick
}

// DefaultEventLogCapacity bounds the tracking log; older events fall off the
// front once it is exceeded.
const DefaultEventLogCapacity = 10000

// TrackingEvent is one open or click, immutable once appended.
type TrackingEvent struct {
	ID         string    `json:"id,omitempty"`
	Type       EventType `json:"type"`
	CampaignID ID        `json:"campaignId"`
	Email      string    `json:"email"`
	URL        *string   `json:"url"`
	Timestamp  time.Time `json:"timestamp"`
}

// CampaignStats is the event-log view of a campaign's engagement.
type CampaignStats struct {
	CampaignID   ID              `json:"campaignId"`
	TotalOpens   int             `json:"totalOpens"`
	UniqueOpens  int             `json:"uniqueOpens"`
	TotalClicks  int             `json:"totalClicks"`
	UniqueClicks int             `json:"uniqueClicks"`
	OpenedBy     []string        `json:"openedBy"`
	ClickedBy    []string        `json:"clickedBy"`
	Events       []TrackingEvent `json:"events"`
}
