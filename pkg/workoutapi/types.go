package workoutapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Credentials are the email/password pair accepted by the register and login endpoints.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Identity is the authenticated user as reported by /users/details.
type Identity struct {
	UserID string
}

// Status is the completion state of a workout.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// Normalize lower-cases and trims s so server variations compare equal.
func (s Status) Normalize() Status {
	return Status(strings.ToLower(strings.TrimSpace(string(s))))
}

// Label is the upper-case badge text shown next to a workout.
func (s Status) Label() string {
	n := s.Normalize()
	if n == "" {
		return strings.ToUpper(string(StatusPending))
	}
	return strings.ToUpper(string(n))
}

// Workout mirrors a workout document returned by the remote API.
type Workout struct {
	ID            string    `json:"_id" yaml:"id"`
	Name          string    `json:"name" yaml:"name"`
	DurationLabel string    `json:"duration" yaml:"duration"`
	Status        Status    `json:"status" yaml:"status"`
	DateAdded     Timestamp `json:"dateAdded" yaml:"date_added"`
}

// WorkoutInput is the body of the create and update endpoints.
type WorkoutInput struct {
	Name     string `json:"name"`
	Duration string `json:"duration"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Timestamp accepts the date formats the remote API has been seen to emit.
type Timestamp struct {
	time.Time
}

// ParseTimestamp parses value using the accepted layouts.
func ParseTimestamp(value string) (Timestamp, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Timestamp{}, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return Timestamp{Time: t.UTC()}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("unrecognised timestamp %q", value)
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*t = Timestamp{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	parsed, err := ParseTimestamp(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339))
}

// MarshalYAML renders the timestamp as RFC 3339 text.
func (t Timestamp) MarshalYAML() (any, error) {
	if t.IsZero() {
		return nil, nil
	}
	return t.UTC().Format(time.RFC3339), nil
}
