package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is the wire format for measurement times.
const TimestampLayout = "2006-01-02 15:04:05"

// Timestamp is a second-precision, zone-less point in time.
type Timestamp struct {
	time.Time
}

// NewTimestamp truncates t to seconds and drops its zone.
func NewTimestamp(t time.Time) Timestamp {
	t = t.Truncate(time.Second)
	return Timestamp{Time: time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)}
}

// Now returns the current UTC time as a Timestamp.
func Now() Timestamp {
	return NewTimestamp(time.Now().UTC())
}

// ParseTimestamp parses the wire format. A "T" date/time separator and a
// trailing fraction or zone are tolerated and discarded.
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(strings.Replace(s, "T", " ", 1))
	if len(s) > len(TimestampLayout) {
		s = s[:len(TimestampLayout)]
	}
	t, err := time.ParseInLocation(TimestampLayout, s, time.UTC)
	if err != nil {
		return Timestamp{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
	}
	return Timestamp{Time: t}, nil
}

// String formats the timestamp in the wire format.
func (t Timestamp) String() string {
	return t.Time.Format(TimestampLayout)
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidTimestamp, data)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
