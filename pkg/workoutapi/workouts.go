package workoutapi

import (
	"context"
	"fmt"
	"net/http"
)

// ListWorkouts returns every workout owned by the token's user, in server order.
func (c *Client) ListWorkouts(ctx context.Context, token string) ([]Workout, error) {
	var resp struct {
		Workouts []Workout `json:"workouts"`
	}
	err := c.do(ctx, call{
		op:     "list_workouts",
		method: http.MethodGet,
		path:   "/workouts/getMyWorkouts",
		token:  token,
		authed: true,
		out:    &resp,
	})
	if err != nil {
		return nil, err
	}
	if resp.Workouts == nil {
		return []Workout{}, nil
	}
	return resp.Workouts, nil
}

// CreateWorkout adds a workout for the token's user. Only 201 Created counts as success.
func (c *Client) CreateWorkout(ctx context.Context, token string, in WorkoutInput) error {
	return c.do(ctx, call{
		op:     "create_workout",
		method: http.MethodPost,
		path:   "/workouts/addWorkout",
		token:  token,
		authed: true,
		body:   in,
		want:   http.StatusCreated,
	})
}

// UpdateWorkout replaces the name and duration of workout id.
func (c *Client) UpdateWorkout(ctx context.Context, token, id string, in WorkoutInput) error {
	path, err := workoutPath("/workouts/updateWorkout/", id)
	if err != nil {
		return fmt.Errorf("update_workout: %w", err)
	}
	return c.do(ctx, call{
		op:     "update_workout",
		method: http.MethodPatch,
		path:   path,
		token:  token,
		authed: true,
		body:   in,
	})
}

// DeleteWorkout removes workout id.
func (c *Client) DeleteWorkout(ctx context.Context, token, id string) error {
	path, err := workoutPath("/workouts/deleteWorkout/", id)
	if err != nil {
		return fmt.Errorf("delete_workout: %w", err)
	}
	return c.do(ctx, call{
		op:     "delete_workout",
		method: http.MethodDelete,
		path:   path,
		token:  token,
		authed: true,
	})
}

// SetWorkoutStatus marks workout id as status.
func (c *Client) SetWorkoutStatus(ctx context.Context, token, id string, status Status) error {
	path, err := workoutPath("/workouts/completeWorkoutStatus/", id)
	if err != nil {
		return fmt.Errorf("set_workout_status: %w", err)
	}
	body := struct {
		Status Status `json:"status"`
	}{Status: status.Normalize()}
	return c.do(ctx, call{
		op:     "set_workout_status",
		method: http.MethodPatch,
		path:   path,
		token:  token,
		authed: true,
		body:   body,
	})
}
