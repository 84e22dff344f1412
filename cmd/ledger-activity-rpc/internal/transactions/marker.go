package transactions

import (
	"bytes"
	"encoding/json"
)

// Marker is the opaque continuation token handed out by the remote ledger.
// Its content is never interpreted, only passed back on the next request.
// A zero marker means the remote has no more results.
type Marker []byte

// MarkerFromString builds a marker holding a JSON string.
func MarkerFromString(s string) Marker {
	b, _ := json.Marshal(s)
	return Marker(b)
}

// IsZero reports whether the marker signals exhaustion.
func (m Marker) IsZero() bool {
	trimmed := bytes.TrimSpace(m)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte(`""`))
}

// String returns a string representation of this marker
func (m Marker) String() string {
	if m.IsZero() {
		return ""
	}
	return string(m)
}

// Equal compares two markers byte by byte.
func (m Marker) Equal(other Marker) bool {
	if m.IsZero() || other.IsZero() {
		return m.IsZero() == other.IsZero()
	}
	return bytes.Equal(m, other)
}

// MarshalJSON marshals the marker into JSON
func (m Marker) MarshalJSON() ([]byte, error) {
	if m.IsZero() {
		return []byte("null"), nil
	}
	return m, nil
}

// UnmarshalJSON keeps a copy of the raw JSON value
func (m *Marker) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*m = nil
		return nil
	}
	*m = append((*m)[:0], b...)
	return nil
}
