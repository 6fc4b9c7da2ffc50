package model

import (
	"bytes"
	"strconv"
	"time"
)

// Timestamp is a time decoded from the API's ISO-8601 strings. Empty
// strings and null decode to the zero value.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) || bytes.Equal(data, []byte(`""`)) {
		t.Time = time.Time{}
		return nil
	}

	s, err := strconv.Unquote(string(data))
	if err != nil {
		// Unquoted numbers are epoch milliseconds.
		ms, nerr := strconv.ParseInt(string(data), 10, 64)
		if nerr != nil {
			return &time.ParseError{Value: string(data), Message: ": not a timestamp"}
		}
		t.Time = time.UnixMilli(ms).UTC()
		return nil
	}

	var lastErr error
	for _, layout := range timestampLayouts {
		parsed, perr := time.Parse(layout, s)
		if perr == nil {
			t.Time = parsed
			return nil
		}
		lastErr = perr
	}
	return lastErr
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(strconv.Quote(t.Format(time.RFC3339Nano))), nil
}
