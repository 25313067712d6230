// internal/model/subscriber.go
package model

import (
	"encoding/json"
	"strings"
)

// Subscriber is one entry of the mailing list. Email is the identity and is
// compared case-insensitively.
type Subscriber struct {
	Email string
	Name  string
	Extra Extra
}

type subscriberJSON struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

func (s Subscriber) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(subscriberJSON{Email: s.Email, Name: s.Name}, s.Extra)
}

func (s *Subscriber) UnmarshalJSON(data []byte) error {
	var aux subscriberJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	extra, err := splitExtra(data, "email", "name")
	if err != nil {
		return err
	}
	*s = Subscriber{Email: aux.Email, Name: aux.Name, Extra: extra}
	return nil
}

// Key is the identity used for de-duplication.
func (s Subscriber) Key() string {
	return strings.ToLower(strings.TrimSpace(s.Email))
}

// DedupeSubscribers keeps the first position of every address while letting
// the last occurrence's fields win.
func DedupeSubscribers(in []Subscriber) []Subscriber {
	out := make([]Subscriber, 0, len(in))
	index := make(map[string]int, len(in))
	for _, s := range in {
		key := s.Key()
		if key == "" {
			out = append(out, s)
			continue
		}
		if i, ok := index[key]; ok {
			out[i] = s
			continue
		}
		index[key] = len(out)
		out = append(out, s)
	}
	return out
}
