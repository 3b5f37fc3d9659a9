package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is an identifier assigned by the API. The raw JSON scalar is kept as-is
// and re-emitted unchanged when the ID is used as a foreign key. The zero ID
// marks a failed creation.
type ID struct {
	raw string
}

// ParseID accepts a JSON number or string literal.
func ParseID(raw []byte) (ID, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ID{}, nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ID{}, err
		}
		if s == "" {
			return ID{}, nil
		}
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return ID{}, err
		}
	default:
		return ID{}, fmt.Errorf("identifier must be a string or number, got %s", raw)
	}
	return ID{raw: string(raw)}, nil
}

// IDFromString reads an identifier supplied by an operator (env or config).
// Bare integers are treated as numbers, anything else as a string.
func IDFromString(s string) ID {
	if s == "" {
		return ID{}
	}
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ID{raw: s}
	}
	b, _ := json.Marshal(s)
	return ID{raw: string(b)}
}

func (id ID) IsZero() bool { return id.raw == "" }

func (id ID) String() string {
	if len(id.raw) > 0 && id.raw[0] == '"' {
		s, err := strconv.Unquote(id.raw)
		if err == nil {
			return s
		}
	}
	return id.raw
}

// Raw returns the JSON literal as received.
func (id ID) Raw() string { return id.raw }

func (id ID) MarshalJSON() ([]byte, error) {
	if id.raw == "" {
		return []byte("null"), nil
	}
	return []byte(id.raw), nil
}

func (id *ID) UnmarshalJSON(b []byte) error {
	parsed, err := ParseID(b)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Compact drops zero IDs, keeping order.
func Compact(ids []ID) []ID {
	out := make([]ID, 0, len(ids))
	for _, id := range ids {
		if !id.IsZero() {
			out = append(out, id)
		}
	}
	return out
}
