package model

import (
	"bytes"
	"encoding/json"
	"time"
)

// Extra holds JSON members a type does not model. Collections are replaced
// wholesale by the frontend, so anything we do not understand must survive a
// read-modify-write untouched.
type Extra map[string]json.RawMessage

// isSet reports whether key holds a value other than null, "", false or 0.
func (e Extra) isSet(key string) bool {
	raw := bytes.TrimSpace(e[key])
	if len(raw) == 0 {
		return false
	}
	switch string(raw) {
	case "null", `""`, "false", "0":
		return false
	}
	return true
}

func splitExtra(data []byte, known ...string) (Extra, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for _, k := range known {
		delete(all, k)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

func marshalWithExtra(v any, extra Extra) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(extra) == 0 {
		return b, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(b, &merged); err != nil {
		return nil, err
	}
	for k, raw := range extra {
		if _, ok := merged[k]; !ok {
			merged[k] = raw
		}
	}
	return json.Marshal(merged)
}

// parseTime treats null, "" and a missing value as unset.
func parseTime(raw json.RawMessage) (*time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) || bytes.Equal(raw, []byte(`""`)) {
		return nil, nil
	}
	var t time.Time
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, err
	}
	return &t, nil
}
