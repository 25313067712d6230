// internal/model/id.go
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ID identifies a campaign. Clients send campaign ids either as JSON numbers
// (Date.now() style) or as strings; both are reduced to one canonical string
// so that 42 and "42" compare equal.
type ID struct {
	value   string
	numeric bool
}

// ParseID builds an ID from a path segment or any other textual source.
func ParseID(s string) ID {
	return ID{value: strings.TrimSpace(s)}
}

// NumericID builds an ID that serializes as a JSON number.
func NumericID(n int64) ID {
	return ID{value: strconv.FormatInt(n, 10), numeric: true}
}

func (id ID) String() string { return id.value }

func (id ID) IsZero() bool { return id.value == "" }

// Equal compares canonical forms, ignoring whether either side was numeric.
func (id ID) Equal(other ID) bool { return id.value == other.value }

func (id ID) MarshalJSON() ([]byte, error) {
	if id.IsZero() {
		return []byte("null"), nil
	}
	if id.numeric {
		return []byte(id.value), nil
	}
	return json.Marshal(id.value)
}

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ID{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid id: %w", err)
		}
		*id = ParseID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", data, err)
	}
	canonical, err := canonicalNumber(n.String())
	if err != nil {
		return err
	}
	*id = ID{value: canonical, numeric: true}
	return nil
}

// canonicalNumber renders a JSON number the way JavaScript's String() would,
// so 1.0 and 1 both become "1".
func canonicalNumber(s string) (string, error) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return strconv.FormatInt(i, 10), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return "", fmt.Errorf("invalid numeric id %q: %w", s, err)
	}
	if math.Abs(f) < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	}
	return strconv.FormatFloat(f, 'g', -1, 64), nil
}
