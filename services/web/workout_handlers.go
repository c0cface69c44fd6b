package web

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"fitverse/pkg/render"
	"fitverse/pkg/workoutapi"
	"fitverse/pkg/workouts"
)

// MsgWorkoutNotFound is flashed when an id in the URL is not in the current list.
const MsgWorkoutNotFound = "Workout not found."

type workoutForm struct {
	Name    string
	Minutes string
}

type workoutsPage struct {
	Workouts []workoutapi.Workout
	Form     workoutForm
}

type editPage struct {
	Workout      workoutapi.Workout
	Minutes      string
	MinutesKnown bool
}

type deletePage struct {
	Workout workoutapi.Workout
}

func (s *Server) controller(rs *requestSession, n *notices) *workouts.Controller {
	opts := []workouts.Option{
		workouts.WithNotifier(n),
		workouts.WithLogger(s.logger),
	}
	if s.publisher != nil {
		opts = append(opts, workouts.WithPublisher(s.publisher))
	}
	return workouts.NewController(s.api, view{rs: rs}, s.views.list(rs.rec.ID), opts...)
}

// resolveUser fills in the user id for sessions that logged in while the identity lookup was
// failing. It reports false when the token was rejected.
func (s *Server) resolveUser(ctx context.Context, rs *requestSession) bool {
	if rs.rec.UserID != "" {
		return true
	}
	userID, ok := rs.manager.CurrentIdentity(ctx)
	if !ok {
		return rs.manager.HasToken()
	}
	rs.rec.UserID = userID
	if err := s.sessions.Put(ctx, rs.rec); err != nil {
		s.logger.Warn().Err(err).Msg("store user id")
	}
	return true
}

func (s *Server) handleWorkouts(w http.ResponseWriter, r *http.Request) {
	rs := sessionFrom(r.Context())
	if !s.resolveUser(r.Context(), rs) {
		s.sessionExpired(w, r, rs)
		return
	}

	n := &notices{}
	ctrl := s.controller(rs, n)
	if err := ctrl.Refresh(r.Context()); err != nil && workoutapi.IsUnauthenticated(err) {
		s.sessionExpired(w, r, rs)
		return
	}

	flash := s.popFlash(w, r)
	if notice, ok := n.first(); ok {
		flash = &render.Flash{Level: string(notice.Level), Message: notice.Message}
	}
	s.render(w, r, http.StatusOK, "workouts", "Workouts", flash, workoutsPage{
		Workouts: ctrl.List().All(),
	})
}

func (s *Server) handleCreateWorkout(w http.ResponseWriter, r *http.Request) {
	rs := sessionFrom(r.Context())
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	n := &notices{}
	err := s.controller(rs, n).Create(r.Context(), r.PostForm.Get("name"), formMinutes(r.PostForm.Get("minutes")))
	s.finishMutation(w, r, rs, n, err, "/workouts")
}

func (s *Server) handleEditWorkout(w http.ResponseWriter, r *http.Request) {
	rs := sessionFrom(r.Context())
	workout, ok := s.lookup(w, r, rs)
	if !ok {
		return
	}

	page := editPage{Workout: workout, Minutes: workoutapi.NotAvailable}
	if minutes, err := workoutapi.ParseDurationMinutes(workout.DurationLabel); err == nil {
		page.Minutes = strconv.Itoa(minutes)
		page.MinutesKnown = true
	}
	s.render(w, r, http.StatusOK, "edit", "Edit Workout", s.popFlash(w, r), page)
}

func (s *Server) handleUpdateWorkout(w http.ResponseWriter, r *http.Request) {
	rs := sessionFrom(r.Context())
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	id := chi.URLParam(r, "id")

	n := &notices{}
	err := s.controller(rs, n).Update(r.Context(), id, r.PostForm.Get("name"), formMinutes(r.PostForm.Get("minutes")))
	if errors.Is(err, workouts.ErrInvalidInput) {
		s.finishMutation(w, r, rs, n, err, "/workouts/"+url.PathEscape(id)+"/edit")
		return
	}
	s.finishMutation(w, r, rs, n, err, "/workouts")
}

func (s *Server) handleConfirmDelete(w http.ResponseWriter, r *http.Request) {
	rs := sessionFrom(r.Context())
	workout, ok := s.lookup(w, r, rs)
	if !ok {
		return
	}
	s.render(w, r, http.StatusOK, "confirm_delete", "Delete Workout", nil, deletePage{Workout: workout})
}

func (s *Server) handleDeleteWorkout(w http.ResponseWriter, r *http.Request) {
	rs := sessionFrom(r.Context())
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	confirmed := workouts.ConfirmFunc(func(context.Context, string) (bool, error) {
		return r.PostForm.Get("confirm") == "yes", nil
	})

	n := &notices{}
	err := s.controller(rs, n).Remove(r.Context(), chi.URLParam(r, "id"), confirmed)
	if errors.Is(err, workouts.ErrNotConfirmed) {
		redirect(w, r, "/workouts")
		return
	}
	s.finishMutation(w, r, rs, n, err, "/workouts")
}

func (s *Server) handleToggleStatus(w http.ResponseWriter, r *http.Request) {
	rs := sessionFrom(r.Context())
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	id := chi.URLParam(r, "id")
	current := workoutapi.Status(r.PostForm.Get("status"))
	if current == "" {
		if workout, ok := s.views.list(rs.rec.ID).Lookup(id); ok {
			current = workout.Status
		}
	}

	n := &notices{}
	err := s.controller(rs, n).ToggleStatus(r.Context(), id, current)
	s.finishMutation(w, r, rs, n, err, "/workouts")
}

// finishMutation turns the outcome of a controller call into a flash and a redirect.
func (s *Server) finishMutation(w http.ResponseWriter, r *http.Request, rs *requestSession, n *notices, err error, to string) {
	if err != nil && workoutapi.IsUnauthenticated(err) {
		s.sessionExpired(w, r, rs)
		return
	}
	if notice, ok := n.first(); ok {
		s.setFlash(w, notice.Level, notice.Message)
	}
	redirect(w, r, to)
}

// lookup finds the workout named in the URL, fetching the list first when the cached one is
// empty. It writes the redirect itself when the workout cannot be shown.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request, rs *requestSession) (workoutapi.Workout, bool) {
	id := chi.URLParam(r, "id")
	list := s.views.list(rs.rec.ID)
	if workout, ok := list.Lookup(id); ok {
		return workout, true
	}

	n := &notices{}
	if err := s.controller(rs, n).Refresh(r.Context()); err != nil {
		if workoutapi.IsUnauthenticated(err) {
			s.sessionExpired(w, r, rs)
			return workoutapi.Workout{}, false
		}
		s.setFlash(w, workouts.LevelError, workouts.MsgFetchFailed)
		redirect(w, r, "/workouts")
		return workoutapi.Workout{}, false
	}
	if workout, ok := list.Lookup(id); ok {
		return workout, true
	}
	s.setFlash(w, workouts.LevelError, MsgWorkoutNotFound)
	redirect(w, r, "/workouts")
	return workoutapi.Workout{}, false
}

// formMinutes reads the minutes field. Anything that is not a whole number becomes 0, which
// the controller rejects.
func formMinutes(v string) int {
	minutes, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0
	}
	return minutes
}
