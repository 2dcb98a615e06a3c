package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format of a Date, the value a browser's
// <input type="date"> produces.
const DateLayout = "2006-01-02"

// Date is a calendar date without a time of day. The zero Date means
// "not entered yet" and encodes to an empty JSON string.
type Date struct {
	t time.Time
}

// NewDate builds a Date from its calendar components.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses "YYYY-MM-DD". An empty (or all-space) string yields the
// zero Date without error.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return Date{t: t}, nil
}

// IsZero reports whether the date has not been entered.
func (d Date) IsZero() bool {
	return d.t.IsZero()
}

// Date returns the calendar components.
func (d Date) Date() (year int, month time.Month, day int) {
	return d.t.Date()
}

// String returns "YYYY-MM-DD", or "" for the zero Date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(DateLayout)
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
