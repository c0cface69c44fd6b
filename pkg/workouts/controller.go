// Package workouts holds the current user's workout list and orchestrates every mutation as
// "call the API, then re-fetch the whole list".
package workouts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"fitverse/pkg/workoutapi"
)

// Notice texts.
const (
	MsgAdded        = "Workout Added!"
	MsgUpdated      = "Workout Updated!"
	MsgDeleted      = "Workout Deleted!"
	MsgCompleted    = "Workout marked as completed!"
	MsgReopened     = "Workout marked as pending!"
	MsgFetchFailed  = "Failed to fetch workouts"
	MsgNetworkError = "Something went wrong."
)

// API is the subset of the remote client the Controller needs.
type API interface {
	ListWorkouts(ctx context.Context, token string) ([]workoutapi.Workout, error)
	CreateWorkout(ctx context.Context, token string, in workoutapi.WorkoutInput) error
	UpdateWorkout(ctx context.Context, token, id string, in workoutapi.WorkoutInput) error
	DeleteWorkout(ctx context.Context, token, id string) error
	SetWorkoutStatus(ctx context.Context, token, id string, status workoutapi.Status) error
}

// Session supplies the bearer token and user id. *session.Manager satisfies it.
type Session interface {
	Token() string
	UserID() string
}

// Controller runs workout operations for one session against one List.
type Controller struct {
	api       API
	session   Session
	list      *List
	notifier  Notifier
	publisher Publisher
	logger    zerolog.Logger
	now       func() time.Time
}

// Option customises a Controller.
type Option func(*Controller)

// WithNotifier sets where notices go. Without one they are dropped.
func WithNotifier(n Notifier) Option {
	return func(c *Controller) { c.notifier = n }
}

// WithPublisher publishes an Event after each accepted mutation.
func WithPublisher(p Publisher) Option {
	return func(c *Controller) { c.publisher = p }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// NewController wires a Controller. A nil list gets a fresh one.
func NewController(api API, sess Session, list *List, opts ...Option) *Controller {
	if list == nil {
		list = NewList()
	}
	c := &Controller{
		api:     api,
		session: sess,
		list:    list,
		logger:  zerolog.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List returns the held snapshot.
func (c *Controller) List() *List { return c.list }

// Refresh replaces the held list with the server's current set. On failure the list is left
// untouched.
func (c *Controller) Refresh(ctx context.Context) error {
	items, err := c.api.ListWorkouts(ctx, c.session.Token())
	if err != nil {
		c.logger.Warn().Err(err).Msg("refresh workouts")
		c.notify(ctx, LevelError, MsgFetchFailed)
		return fmt.Errorf("list workouts: %w", err)
	}
	c.list.Replace(items, c.now())
	c.logger.Debug().Int("count", len(items)).Msg("workouts refreshed")
	return nil
}

// Create adds a workout of the given length and refreshes.
func (c *Controller) Create(ctx context.Context, name string, minutes int) error {
	in, err := c.input(ctx, name, minutes)
	if err != nil {
		return err
	}
	if err := c.api.CreateWorkout(ctx, c.session.Token(), in); err != nil {
		return c.fail(ctx, err, "Failed to add workout", "create workout")
	}

	c.notify(ctx, LevelSuccess, MsgAdded)
	ev := newEvent("created")
	ev.Name, ev.Duration = in.Name, in.Duration
	c.publish(ctx, SubjectCreated, ev)
	c.refreshAfter(ctx)
	return nil
}

// Update replaces the name and length of workout id and refreshes.
func (c *Controller) Update(ctx context.Context, id, name string, minutes int) error {
	if strings.TrimSpace(id) == "" {
		return c.invalid(ctx, "Workout not found.")
	}
	in, err := c.input(ctx, name, minutes)
	if err != nil {
		return err
	}
	if err := c.api.UpdateWorkout(ctx, c.session.Token(), id, in); err != nil {
		return c.fail(ctx, err, "Failed to update workout", "update workout")
	}

	c.notify(ctx, LevelSuccess, MsgUpdated)
	ev := newEvent("updated")
	ev.WorkoutID, ev.Name, ev.Duration = id, in.Name, in.Duration
	c.publish(ctx, SubjectUpdated, ev)
	c.refreshAfter(ctx)
	return nil
}

// Remove deletes workout id once confirmer approves. A refusal returns ErrNotConfirmed and
// sends nothing to the server.
func (c *Controller) Remove(ctx context.Context, id string, confirmer Confirmer) error {
	if strings.TrimSpace(id) == "" {
		return c.invalid(ctx, "Workout not found.")
	}
	prompt := "Delete this workout?"
	if w, ok := c.list.Lookup(id); ok && w.Name != "" {
		prompt = fmt.Sprintf("Delete %q?", w.Name)
	}

	if confirmer == nil {
		return ErrNotConfirmed
	}
	ok, err := confirmer.Confirm(ctx, prompt)
	if err != nil {
		return fmt.Errorf("confirm delete: %w", err)
	}
	if !ok {
		return ErrNotConfirmed
	}

	if err := c.api.DeleteWorkout(ctx, c.session.Token(), id); err != nil {
		return c.fail(ctx, err, "Failed to delete workout", "delete workout")
	}

	c.notify(ctx, LevelSuccess, MsgDeleted)
	ev := newEvent("deleted")
	ev.WorkoutID = id
	c.publish(ctx, SubjectDeleted, ev)
	c.refreshAfter(ctx)
	return nil
}

// ToggleStatus flips workout id from current to the other status and refreshes.
func (c *Controller) ToggleStatus(ctx context.Context, id string, current workoutapi.Status) error {
	if strings.TrimSpace(id) == "" {
		return c.invalid(ctx, "Workout not found.")
	}
	next := NextStatus(current)
	if err := c.api.SetWorkoutStatus(ctx, c.session.Token(), id, next); err != nil {
		return c.fail(ctx, err, "Failed to update workout status", "set workout status")
	}

	msg := MsgCompleted
	if next == workoutapi.StatusPending {
		msg = MsgReopened
	}
	c.notify(ctx, LevelSuccess, msg)
	ev := newEvent("status")
	ev.WorkoutID, ev.Status = id, string(next)
	c.publish(ctx, SubjectStatus, ev)
	c.refreshAfter(ctx)
	return nil
}

// NextStatus is the status a toggle moves to. Anything that is not completed becomes completed.
func NextStatus(current workoutapi.Status) workoutapi.Status {
	if current.Normalize() == workoutapi.StatusCompleted {
		return workoutapi.StatusPending
	}
	return workoutapi.StatusCompleted
}

// FailureMessage is the notice text for a failed mutation.
func FailureMessage(err error, fallback string) string {
	if workoutapi.KindOf(err) == workoutapi.KindNetwork {
		return MsgNetworkError
	}
	if msg := workoutapi.ServerMessageOf(err); msg != "" {
		return msg
	}
	return fallback
}

func (c *Controller) input(ctx context.Context, name string, minutes int) (workoutapi.WorkoutInput, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return workoutapi.WorkoutInput{}, c.invalid(ctx, "Workout name is required.")
	}
	if minutes <= 0 {
		return workoutapi.WorkoutInput{}, c.invalid(ctx, "Duration must be a positive number of minutes.")
	}
	return workoutapi.WorkoutInput{Name: name, Duration: workoutapi.FormatDuration(minutes)}, nil
}

func (c *Controller) invalid(ctx context.Context, msg string) error {
	c.notify(ctx, LevelError, msg)
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}

func (c *Controller) fail(ctx context.Context, err error, fallback, action string) error {
	c.logger.Warn().Err(err).Str("action", action).Msg("workout mutation failed")
	c.notify(ctx, LevelError, FailureMessage(err, fallback))
	return fmt.Errorf("%s: %w", action, err)
}

// refreshAfter re-fetches after an accepted mutation. Its failure has already been surfaced as
// a notice and does not undo the mutation.
func (c *Controller) refreshAfter(ctx context.Context) {
	_ = c.Refresh(ctx)
}

func (c *Controller) notify(ctx context.Context, level Level, msg string) {
	if c.notifier == nil {
		return
	}
	c.notifier.Notify(ctx, Notice{Level: level, Message: msg})
}

func (c *Controller) publish(ctx context.Context, subject string, ev Event) {
	if c.publisher == nil {
		return
	}
	ev.UserID = c.session.UserID()
	if err := c.publisher.Publish(ctx, subject, ev); err != nil {
		c.logger.Warn().Err(err).Str("subject", subject).Msg("publish workout event")
	}
}
