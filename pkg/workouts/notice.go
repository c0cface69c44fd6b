package workouts

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Level is the severity of a Notice.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// Notice is a transient message for the user.
type Notice struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// Notifier receives notices as operations complete.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notice)

func (f NotifierFunc) Notify(ctx context.Context, n Notice) { f(ctx, n) }

// Confirmer asks the user to approve a destructive action.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) { return f(ctx, prompt) }

// Confirmed is a Confirmer that always approves, for callers that collected consent earlier.
var Confirmed Confirmer = ConfirmFunc(func(context.Context, string) (bool, error) { return true, nil })

var (
	// ErrNotConfirmed is returned by Remove when the user declined.
	ErrNotConfirmed = errors.New("deletion not confirmed")
	// ErrInvalidInput is returned when a form value is rejected before any call is made.
	ErrInvalidInput = errors.New("invalid workout input")
)

// Event subjects published after successful mutations.
const (
	SubjectCreated = "fitverse.workouts.created"
	SubjectUpdated = "fitverse.workouts.updated"
	SubjectDeleted = "fitverse.workouts.deleted"
	SubjectStatus  = "fitverse.workouts.status"

	// SubjectAll matches every workout event.
	SubjectAll = "fitverse.workouts.>"
)

// Event describes a mutation that the remote API accepted.
type Event struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	UserID    string    `json:"user_id,omitempty"`
	WorkoutID string    `json:"workout_id,omitempty"`
	Name      string    `json:"name,omitempty"`
	Duration  string    `json:"duration,omitempty"`
	Status    string    `json:"status,omitempty"`
	At        time.Time `json:"at"`
}

// Publisher delivers events to interested parties. *bus.Bus satisfies it.
type Publisher interface {
	Publish(ctx context.Context, subject string, v any) error
}

func newEvent(action string) Event {
	return Event{ID: uuid.NewString(), Action: action, At: time.Now().UTC()}
}
