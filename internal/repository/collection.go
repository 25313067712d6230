package repository

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
)

// Collection keys. The file backend turns these into {DATA_DIR}/{key}.json.
const (
	KeySubscribers    = "subscribers"
	KeyCampaigns      = "campaigns"
	KeyPendingBatches = "pending-batches"
	KeyTrackingEvents = "tracking-events"
)

// decodeList parses a stored collection. A missing, null or unreadable
// document is an empty collection; the next write replaces it. An element
// that does not decode is logged and skipped so the rest stay usable.
func decodeList[T any](key string, data []byte) []T {
	out := []T{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return out
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		log.Printf("⚠️ Could not load %s: %v", key, err)
		return out
	}
	for i, raw := range raws {
		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			log.Printf("⚠️ Skipping %s[%d]: %v", key, i, err)
			continue
		}
		out = append(out, item)
	}
	return out
}

func encodeList[T any](key string, items []T) ([]byte, error) {
	if items == nil {
		items = []T{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", key, err)
	}
	return data, nil
}
