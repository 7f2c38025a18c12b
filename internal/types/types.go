// Package types holds the shared data structures used across the admin
// app, the store client and the development store. Keeping them in one
// place prevents import cycles.
package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Student is a single student entry as served by the Remote Student Store.
//
// The JSON keys follow the store's wire contract ("_id", "studentClass",
// "dob", "profilePhoto"). Password is write-only: it may be sent on an
// update but a well-behaved store never returns it, and nothing renders it.
type Student struct {
	ID           string `json:"_id"`
	Name         string `json:"name"         validate:"required"`
	Username     string `json:"username"     validate:"required"`
	Phone        string `json:"phone"`
	StudentClass string `json:"studentClass"`
	DOB          Date   `json:"dob"`
	ProfilePhoto string `json:"profilePhoto,omitempty"`
	Password     string `json:"password,omitempty"`
}

// Fields returns the student as a JSON-keyed map.
//
// The edit buffer is kept in this shape so a single field can be merged
// by name without knowing the struct, and the whole buffer can be sent
// to the store as the update body.
func (s Student) Fields() map[string]any {
	return map[string]any{
		"_id":          s.ID,
		"name":         s.Name,
		"username":     s.Username,
		"phone":        s.Phone,
		"studentClass": s.StudentClass,
		"dob":          s.DOB.String(),
		"profilePhoto": s.ProfilePhoto,
	}
}

// DateLayout is the calendar-date form used by HTML date inputs.
const DateLayout = "2006-01-02"

// Date is a date-of-birth value.
//
// It decodes both a bare calendar date ("2006-01-02") and a full RFC 3339
// timestamp, since stores differ in which one they send back. It always
// encodes as RFC 3339 in UTC.
type Date struct {
	time.Time
}

// NewDate builds a Date at midnight UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses either accepted form. An empty string is the zero Date.
func ParseDate(s string) (Date, error) {
	if s == "" {
		return Date{}, nil
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return Date{t.UTC()}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD or RFC 3339", s)
	}
	return Date{t.UTC()}, nil
}

// String renders the calendar date, or "" for the zero value.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.UTC().Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(d.UTC().Format(time.RFC3339))
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*d = Date{}
		return nil
	}
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
