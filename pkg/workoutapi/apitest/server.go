// Package apitest provides an in-memory stand-in for the remote workout API, served over
// httptest so client, session, controller and front-end tests exercise real HTTP.
package apitest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// Call is one request observed by the fake.
type Call struct {
	Method        string
	Path          string
	Authorization string
	Body          string
}

type user struct {
	id       string
	email    string
	password string
}

type workout struct {
	ID        string `json:"_id"`
	UserID    string `json:"userId"`
	Name      string `json:"name"`
	Duration  string `json:"duration"`
	Status    string `json:"status"`
	DateAdded string `json:"dateAdded"`
}

type failure struct {
	status int
	body   string
}

// Server is a fake of the workout API. The zero value is not usable; call New.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	users       map[string]*user
	tokens      map[string]string
	workouts    []*workout
	calls       []Call
	failures    map[string][]failure
	nextUser    int
	nextToken   int
	nextWorkout int
	clock       time.Time
	newestFirst bool
}

// New starts a fake API. Close it with s.Close.
func New() *Server {
	s := &Server{
		users:    make(map[string]*user),
		tokens:   make(map[string]string),
		failures: make(map[string][]failure),
		clock:    time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /users/register", s.handleRegister)
	mux.HandleFunc("POST /users/login", s.handleLogin)
	mux.HandleFunc("GET /users/details", s.authed(s.handleDetails))
	mux.HandleFunc("GET /workouts/getMyWorkouts", s.authed(s.handleList))
	mux.HandleFunc("POST /workouts/addWorkout", s.authed(s.handleAdd))
	mux.HandleFunc("PATCH /workouts/updateWorkout/{id}", s.authed(s.handleUpdate))
	mux.HandleFunc("DELETE /workouts/deleteWorkout/{id}", s.authed(s.handleDelete))
	mux.HandleFunc("PATCH /workouts/completeWorkoutStatus/{id}", s.authed(s.handleStatus))

	s.Server = httptest.NewServer(s.record(mux))
	return s
}

// AddUser registers a user directly and returns its id.
func (s *Server) AddUser(email, password string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addUserLocked(email, password).id
}

// IssueToken logs a user in directly and returns the bearer token.
func (s *Server) IssueToken(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueTokenLocked(userID)
}

// SetToken binds a specific token value to userID.
func (s *Server) SetToken(token, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = userID
}

// Revoke invalidates token so later calls answer 401.
func (s *Server) Revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
}

// SeedWorkout stores a workout as-is, bypassing the create endpoint.
func (s *Server) SeedWorkout(userID, id, name, duration, status, dateAdded string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workouts = append(s.workouts, &workout{
		ID: id, UserID: userID, Name: name, Duration: duration, Status: status, DateAdded: dateAdded,
	})
}

// ListNewestFirst makes the list endpoint return workouts newest first instead of insertion order.
func (s *Server) ListNewestFirst(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.newestFirst = v
}

// FailNext makes the next request to route ("METHOD /path") answer status with body.
func (s *Server) FailNext(route string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = append(s.failures[route], failure{status: status, body: body})
}

// Calls returns a copy of every request seen so far.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CountCalls returns how many requests matched method and path prefix.
func (s *Server) CountCalls(method, pathPrefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Method == method && strings.HasPrefix(c.Path, pathPrefix) {
			n++
		}
	}
	return n
}

// ResetCalls forgets recorded requests.
func (s *Server) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

func (s *Server) addUserLocked(email, password string) *user {
	s.nextUser++
	u := &user{id: fmt.Sprintf("u%d", s.nextUser), email: email, password: password}
	s.users[strings.ToLower(email)] = u
	return u
}

func (s *Server) issueTokenLocked(userID string) string {
	s.nextToken++
	token := fmt.Sprintf("tok%d", s.nextToken)
	s.tokens[token] = userID
	return token
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil {
			body, _ = io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewReader(body))
		}

		route := r.Method + " " + r.URL.Path
		s.mu.Lock()
		s.calls = append(s.calls, Call{
			Method:        r.Method,
			Path:          r.URL.Path,
			Authorization: r.Header.Get("Authorization"),
			Body:          string(body),
		})
		var injected *failure
		if queue := s.failures[route]; len(queue) > 0 {
			f := queue[0]
			injected = &f
			s.failures[route] = queue[1:]
		}
		s.mu.Unlock()

		if injected != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(injected.status)
			_, _ = w.Write([]byte(injected.body))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authed(next func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			respond(w, http.StatusUnauthorized, map[string]any{"auth": "Failed. No Token"})
			return
		}
		s.mu.Lock()
		userID, found := s.tokens[token]
		s.mu.Unlock()
		if !found {
			respond(w, http.StatusForbidden, map[string]any{"auth": "Failed", "message": "Action Forbidden"})
			return
		}
		next(w, r, userID)
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]any{"error": "Invalid request body"})
		return
	}
	if !strings.Contains(req.Email, "@") {
		respond(w, http.StatusBadRequest, map[string]any{"error": "Email invalid"})
		return
	}
	if len(req.Password) < 8 {
		respond(w, http.StatusBadRequest, map[string]any{"error": "Password must be atleast 8 characters"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[strings.ToLower(req.Email)]; exists {
		respond(w, http.StatusConflict, map[string]any{"error": "Email already registered"})
		return
	}
	s.addUserLocked(req.Email, req.Password)
	respond(w, http.StatusCreated, map[string]any{"message": "Registered Successfully"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]any{"error": "Invalid request body"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[strings.ToLower(req.Email)]
	if !ok {
		respond(w, http.StatusNotFound, map[string]any{"message": "No email found"})
		return
	}
	if u.password != req.Password {
		respond(w, http.StatusUnauthorized, map[string]any{"message": "Email and password do not match"})
		return
	}
	respond(w, http.StatusOK, map[string]any{"access": s.issueTokenLocked(u.id)})
}

func (s *Server) handleDetails(w http.ResponseWriter, r *http.Request, userID string) {
	s.mu.Lock()
	var email string
	for _, u := range s.users {
		if u.id == userID {
			email = u.email
		}
	}
	s.mu.Unlock()
	respond(w, http.StatusOK, map[string]any{"user": map[string]any{"_id": userID, "email": email}})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request, userID string) {
	s.mu.Lock()
	out := make([]workout, 0, len(s.workouts))
	for _, wk := range s.workouts {
		if wk.UserID == userID {
			out = append(out, *wk)
		}
	}
	if s.newestFirst {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	s.mu.Unlock()
	respond(w, http.StatusOK, map[string]any{"workouts": out})
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request, userID string) {
	var req struct {
		Name     string `json:"name"`
		Duration string `json:"duration"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		respond(w, http.StatusBadRequest, map[string]any{"error": "Name and duration are required"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextWorkout++
	s.clock = s.clock.Add(time.Minute)
	wk := &workout{
		ID:        fmt.Sprintf("w%d", s.nextWorkout),
		UserID:    userID,
		Name:      req.Name,
		Duration:  req.Duration,
		Status:    "pending",
		DateAdded: s.clock.Format(time.RFC3339),
	}
	s.workouts = append(s.workouts, wk)
	respond(w, http.StatusCreated, wk)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request, userID string) {
	var req struct {
		Name     string `json:"name"`
		Duration string `json:"duration"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]any{"error": "Invalid request body"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	wk := s.findLocked(userID, r.PathValue("id"))
	if wk == nil {
		respond(w, http.StatusNotFound, map[string]any{"error": "Workout not found"})
		return
	}
	if req.Name != "" {
		wk.Name = req.Name
	}
	if req.Duration != "" {
		wk.Duration = req.Duration
	}
	respond(w, http.StatusOK, map[string]any{"message": "Workout updated successfully", "updatedWorkout": wk})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := r.PathValue("id")
	for i, wk := range s.workouts {
		if wk.ID == id && wk.UserID == userID {
			s.workouts = append(s.workouts[:i], s.workouts[i+1:]...)
			respond(w, http.StatusOK, map[string]any{"message": "Workout deleted successfully"})
			return
		}
	}
	respond(w, http.StatusNotFound, map[string]any{"error": "Workout not found"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request, userID string) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]any{"error": "Invalid request body"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	wk := s.findLocked(userID, r.PathValue("id"))
	if wk == nil {
		respond(w, http.StatusNotFound, map[string]any{"error": "Workout not found"})
		return
	}
	status := strings.ToLower(strings.TrimSpace(req.Status))
	if status == "" {
		status = "completed"
	}
	wk.Status = status
	respond(w, http.StatusOK, map[string]any{"message": "Workout status updated successfully", "updatedWorkout": wk})
}

func (s *Server) findLocked(userID, id string) *workout {
	for _, wk := range s.workouts {
		if wk.ID == id && wk.UserID == userID {
			return wk
		}
	}
	return nil
}

func respond(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
