// internal/model/campaign.go
package model

import (
	"encoding/json"
	"strings"
	"time"
)

// Campaign is one newsletter send. Only the fields the tracker mutates are
// modelled; name, subject, html, status and the rest ride along in Extra.
type Campaign struct {
	ID         ID
	Recipients []RecipientStatus
	Opened     int
	Clicked    int
	Extra      Extra
}

// Recipients is a pointer so an empty list survives a round trip while a
// missing one stays missing.
type campaignJSON struct {
	ID         ID                 `json:"id"`
	Recipients *[]RecipientStatus `json:"recipients,omitempty"`
	Opened     int                `json:"opened"`
	Clicked    int                `json:"clicked"`
}

func (c Campaign) MarshalJSON() ([]byte, error) {
	var recipients *[]RecipientStatus
	if c.Recipients != nil {
		recipients = &c.Recipients
	}
	return marshalWithExtra(campaignJSON{
		ID:         c.ID,
		Recipients: recipients,
		Opened:     c.Opened,
		Clicked:    c.Clicked,
	}, c.Extra)
}

func (c *Campaign) UnmarshalJSON(data []byte) error {
	var aux campaignJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	extra, err := splitExtra(data, "id", "recipients", "opened", "clicked")
	if err != nil {
		return err
	}
	var recipients []RecipientStatus
	if aux.Recipients != nil {
		recipients = *aux.Recipients
		if recipients == nil {
			recipients = []RecipientStatus{}
		}
	}
	*c = Campaign{
		ID:         aux.ID,
		Recipients: recipients,
		Opened:     aux.Opened,
		Clicked:    aux.Clicked,
		Extra:      extra,
	}
	return nil
}

// Recipient returns the recipient whose email matches case-insensitively.
func (c *Campaign) Recipient(email string) *RecipientStatus {
	email = strings.TrimSpace(email)
	for i := range c.Recipients {
		if strings.EqualFold(strings.TrimSpace(c.Recipients[i].Email), email) {
			return &c.Recipients[i]
		}
	}
	return nil
}

// RecipientStatus tracks delivery and first engagement for one recipient.
// A timestamp written in a form that does not parse as RFC 3339 (a locale
// string, epoch millis) is kept verbatim in Extra and still counts as set.
type RecipientStatus struct {
	Email     string
	Name      string
	SentAt    *time.Time
	OpenedAt  *time.Time
	ClickedAt *time.Time
	Extra     Extra
}

type recipientJSON struct {
	Email     string     `json:"email"`
	Name      string     `json:"name,omitempty"`
	SentAt    *time.Time `json:"sentAt,omitempty"`
	OpenedAt  *time.Time `json:"openedAt,omitempty"`
	ClickedAt *time.Time `json:"clickedAt,omitempty"`
}

func (r RecipientStatus) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(recipientJSON{
		Email:     r.Email,
		Name:      r.Name,
		SentAt:    r.SentAt,
		OpenedAt:  r.OpenedAt,
		ClickedAt: r.ClickedAt,
	}, r.Extra)
}

func (r *RecipientStatus) UnmarshalJSON(data []byte) error {
	var aux struct {
		Email     string          `json:"email"`
		Name      string          `json:"name"`
		SentAt    json.RawMessage `json:"sentAt"`
		OpenedAt  json.RawMessage `json:"openedAt"`
		ClickedAt json.RawMessage `json:"clickedAt"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	extra, err := splitExtra(data, "email", "name", "sentAt", "openedAt", "clickedAt")
	if err != nil {
		return err
	}

	out := RecipientStatus{Email: aux.Email, Name: aux.Name, Extra: extra}
	for _, f := range []struct {
		key string
		raw json.RawMessage
		dst **time.Time
	}{
		{"sentAt", aux.SentAt, &out.SentAt},
		{"openedAt", aux.OpenedAt, &out.OpenedAt},
		{"clickedAt", aux.ClickedAt, &out.ClickedAt},
	} {
		t, err := parseTime(f.raw)
		if err != nil {
			if out.Extra == nil {
				out.Extra = Extra{}
			}
			out.Extra[f.key] = f.raw
			continue
		}
		*f.dst = t
	}
	*r = out
	return nil
}

// Opened reports whether an open is already recorded.
func (r *RecipientStatus) Opened() bool {
	return r.OpenedAt != nil || r.Extra.isSet("openedAt")
}

// Clicked reports whether a click is already recorded.
func (r *RecipientStatus) Clicked() bool {
	return r.ClickedAt != nil || r.Extra.isSet("clickedAt")
}

// MarkSent records a delivery, replacing any unparsed sentAt.
func (r *RecipientStatus) MarkSent(at time.Time) {
	r.SentAt = &at
	delete(r.Extra, "sentAt")
}
