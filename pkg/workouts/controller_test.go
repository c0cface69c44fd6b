package workouts

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"fitverse/pkg/workoutapi"
	"fitverse/pkg/workoutapi/apitest"
)

type staticSession struct{ token, userID string }

func (s staticSession) Token() string  { return s.token }
func (s staticSession) UserID() string { return s.userID }

type noticeRecorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *noticeRecorder) Notify(_ context.Context, n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *noticeRecorder) last() Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return Notice{}
	}
	return r.notices[len(r.notices)-1]
}

func (r *noticeRecorder) has(level Level, msg string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.notices {
		if n.Level == level && n.Message == msg {
			return true
		}
	}
	return false
}

type publishRecorder struct {
	subjects []string
	events   []Event
	err      error
}

func (p *publishRecorder) Publish(_ context.Context, subject string, v any) error {
	p.subjects = append(p.subjects, subject)
	if ev, ok := v.(Event); ok {
		p.events = append(p.events, ev)
	}
	return p.err
}

type fixture struct {
	api      *apitest.Server
	ctrl     *Controller
	notices  *noticeRecorder
	events   *publishRecorder
	userID   string
	tokenVal string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	srv := apitest.New()
	t.Cleanup(srv.Close)
	client, err := workoutapi.New(srv.URL)
	if err != nil {
		t.Fatalf("workoutapi.New() error = %v", err)
	}
	uid := srv.AddUser("a@b.com", "secret12")
	token := srv.IssueToken(uid)

	f := &fixture{api: srv, notices: &noticeRecorder{}, events: &publishRecorder{}, userID: uid, tokenVal: token}
	f.ctrl = NewController(client, staticSession{token: token, userID: uid}, nil,
		WithNotifier(f.notices), WithPublisher(f.events))
	return f
}

func TestCreateThenRefreshHasExactlyOneMatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.ctrl.Create(ctx, "Run", 30); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := f.ctrl.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	matches := 0
	for _, w := range f.ctrl.List().All() {
		if w.Name == "Run" && strings.Contains(w.DurationLabel, "30") {
			matches++
		}
	}
	if matches != 1 {
		t.Fatalf("matching workouts = %d, want 1", matches)
	}
	if !f.notices.has(LevelSuccess, MsgAdded) {
		t.Fatalf("notices = %+v, want %q", f.notices.notices, MsgAdded)
	}
	if f.events.subjects[0] != SubjectCreated || f.events.events[0].UserID != f.userID {
		t.Fatalf("published = %v %+v", f.events.subjects, f.events.events)
	}
}

func TestCreateIsFollowedByListCall(t *testing.T) {
	f := newFixture(t)
	if err := f.ctrl.Create(context.Background(), "Run", 30); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	calls := f.api.Calls()
	if len(calls) != 2 {
		t.Fatalf("calls = %+v, want create then list", calls)
	}
	if calls[0].Method != http.MethodPost || calls[0].Path != "/workouts/addWorkout" {
		t.Fatalf("first call = %+v", calls[0])
	}
	if !strings.Contains(calls[0].Body, `"duration":"30 minutes"`) {
		t.Fatalf("create body = %s", calls[0].Body)
	}
	if calls[1].Method != http.MethodGet || calls[1].Path != "/workouts/getMyWorkouts" {
		t.Fatalf("second call = %+v", calls[1])
	}
	if f.ctrl.List().Len() != 1 {
		t.Fatalf("held list len = %d, want 1", f.ctrl.List().Len())
	}
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		minutes int
	}{
		{name: "blank name", input: "  ", minutes: 10},
		{name: "zero minutes", input: "Run", minutes: 0},
		{name: "negative minutes", input: "Run", minutes: -5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			err := f.ctrl.Create(context.Background(), tt.input, tt.minutes)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("Create() error = %v, want ErrInvalidInput", err)
			}
			if n := len(f.api.Calls()); n != 0 {
				t.Fatalf("calls = %d, want 0", n)
			}
			if f.notices.last().Level != LevelError {
				t.Fatalf("last notice = %+v", f.notices.last())
			}
		})
	}
}

func TestRemoveRequiresConfirmation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.api.SeedWorkout(f.userID, "w-1", "Swim", "20 minutes", "pending", "2024-02-01T10:00:00Z")
	if err := f.ctrl.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	var prompt string
	decline := ConfirmFunc(func(_ context.Context, p string) (bool, error) {
		prompt = p
		return false, nil
	})
	if err := f.ctrl.Remove(ctx, "w-1", decline); !errors.Is(err, ErrNotConfirmed) {
		t.Fatalf("Remove(decline) error = %v, want ErrNotConfirmed", err)
	}
	if !strings.Contains(prompt, "Swim") {
		t.Fatalf("prompt = %q, want workout name", prompt)
	}
	if err := f.ctrl.Remove(ctx, "w-1", nil); !errors.Is(err, ErrNotConfirmed) {
		t.Fatalf("Remove(nil) error = %v, want ErrNotConfirmed", err)
	}
	if n := f.api.CountCalls(http.MethodDelete, "/workouts/deleteWorkout/"); n != 0 {
		t.Fatalf("delete calls = %d, want 0", n)
	}

	if err := f.ctrl.Remove(ctx, "w-1", Confirmed); err != nil {
		t.Fatalf("Remove(confirmed) error = %v", err)
	}
	if n := f.api.CountCalls(http.MethodDelete, "/workouts/deleteWorkout/w-1"); n != 1 {
		t.Fatalf("delete calls = %d, want 1", n)
	}
	if _, ok := f.ctrl.List().Lookup("w-1"); ok {
		t.Fatalf("workout still listed after delete")
	}
	if !f.notices.has(LevelSuccess, MsgDeleted) {
		t.Fatalf("missing %q notice", MsgDeleted)
	}
}

func TestConfirmerError(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("tty closed")
	err := f.ctrl.Remove(context.Background(), "w-1", ConfirmFunc(func(context.Context, string) (bool, error) {
		return false, boom
	}))
	if !errors.Is(err, boom) {
		t.Fatalf("Remove() error = %v, want %v", err, boom)
	}
}

func TestToggleTwiceRestoresStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.api.SeedWorkout(f.userID, "w-1", "Row", "15 minutes", "pending", "2024-02-01T10:00:00Z")
	_ = f.ctrl.Refresh(ctx)

	for i := 0; i < 2; i++ {
		w, ok := f.ctrl.List().Lookup("w-1")
		if !ok {
			t.Fatalf("workout missing")
		}
		if err := f.ctrl.ToggleStatus(ctx, w.ID, w.Status); err != nil {
			t.Fatalf("ToggleStatus() #%d error = %v", i, err)
		}
		if i == 0 {
			if got, _ := f.ctrl.List().Lookup("w-1"); got.Status != workoutapi.StatusCompleted {
				t.Fatalf("after first toggle status = %q", got.Status)
			}
		}
	}

	w, _ := f.ctrl.List().Lookup("w-1")
	if w.Status != workoutapi.StatusPending {
		t.Fatalf("status after two toggles = %q, want pending", w.Status)
	}
	if !f.notices.has(LevelSuccess, MsgCompleted) || !f.notices.has(LevelSuccess, MsgReopened) {
		t.Fatalf("notices = %+v", f.notices.notices)
	}
}

func TestNextStatus(t *testing.T) {
	tests := map[workoutapi.Status]workoutapi.Status{
		"pending":   workoutapi.StatusCompleted,
		"completed": workoutapi.StatusPending,
		"Completed": workoutapi.StatusPending,
		"":          workoutapi.StatusCompleted,
		"active":    workoutapi.StatusCompleted,
	}
	for in, want := range tests {
		if got := NextStatus(in); got != want {
			t.Fatalf("NextStatus(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRefreshSortsNewestFirst(t *testing.T) {
	f := newFixture(t)
	f.api.SeedWorkout(f.userID, "old", "Old", "10 minutes", "pending", "2024-01-01T00:00:00Z")
	f.api.SeedWorkout(f.userID, "new", "New", "10 minutes", "pending", "2024-03-01T00:00:00Z")
	f.api.SeedWorkout(f.userID, "mid-a", "Mid A", "10 minutes", "pending", "2024-02-01T00:00:00Z")
	f.api.SeedWorkout(f.userID, "mid-b", "Mid B", "10 minutes", "pending", "2024-02-01T00:00:00Z")

	if err := f.ctrl.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	var ids []string
	for _, w := range f.ctrl.List().All() {
		ids = append(ids, w.ID)
	}
	want := "new,mid-a,mid-b,old"
	if got := strings.Join(ids, ","); got != want {
		t.Fatalf("order = %s, want %s", got, want)
	}

	f.api.ListNewestFirst(true)
	_ = f.ctrl.Refresh(context.Background())
	ids = ids[:0]
	for _, w := range f.ctrl.List().All() {
		ids = append(ids, w.ID)
	}
	if got := strings.Join(ids, ","); !strings.HasPrefix(got, "new,") || !strings.HasSuffix(got, ",old") {
		t.Fatalf("order with reversed server = %s", got)
	}
}

func TestFailuresLeaveListUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.api.SeedWorkout(f.userID, "w-1", "Run", "30 minutes", "pending", "2024-02-01T10:00:00Z")
	if err := f.ctrl.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	before := f.ctrl.List().RefreshedAt()

	f.api.FailNext("GET /workouts/getMyWorkouts", http.StatusInternalServerError, `{"error":"db down"}`)
	if err := f.ctrl.Refresh(ctx); err == nil {
		t.Fatalf("Refresh() error = nil")
	}
	if f.notices.last() != (Notice{Level: LevelError, Message: MsgFetchFailed}) {
		t.Fatalf("last notice = %+v", f.notices.last())
	}
	if f.ctrl.List().Len() != 1 || !f.ctrl.List().RefreshedAt().Equal(before) {
		t.Fatalf("list changed after failed refresh")
	}

	f.api.FailNext("POST /workouts/addWorkout", http.StatusBadRequest, `{"error":"Name too long"}`)
	if err := f.ctrl.Create(ctx, "Bike", 40); !errors.Is(err, workoutapi.ErrRejected) {
		t.Fatalf("Create() error = %v, want rejected", err)
	}
	if f.notices.last().Message != "Name too long" {
		t.Fatalf("last notice = %+v", f.notices.last())
	}
	if f.ctrl.List().Len() != 1 {
		t.Fatalf("list changed after failed create")
	}
	if len(f.events.subjects) != 0 {
		t.Fatalf("events published for failed mutations: %v", f.events.subjects)
	}
}

func TestNetworkFailureMessage(t *testing.T) {
	f := newFixture(t)
	f.api.Close()

	err := f.ctrl.Update(context.Background(), "w-1", "Run", 10)
	if !errors.Is(err, workoutapi.ErrNetwork) {
		t.Fatalf("Update() error = %v, want network", err)
	}
	if f.notices.last().Message != MsgNetworkError {
		t.Fatalf("last notice = %+v", f.notices.last())
	}
}

func TestUpdateAndPublishFailureIsLogged(t *testing.T) {
	f := newFixture(t)
	f.events.err = errors.New("nats unavailable")
	ctx := context.Background()
	f.api.SeedWorkout(f.userID, "w-1", "Run", "30 minutes", "pending", "2024-02-01T10:00:00Z")

	if err := f.ctrl.Update(ctx, "w-1", "Tempo Run", 35); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	w, ok := f.ctrl.List().Lookup("w-1")
	if !ok || w.Name != "Tempo Run" || w.DurationLabel != "35 minutes" {
		t.Fatalf("after update = %+v", w)
	}
	if f.events.subjects[0] != SubjectUpdated {
		t.Fatalf("subjects = %v", f.events.subjects)
	}
}

func TestUnauthenticatedRefresh(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()
	client, _ := workoutapi.New(srv.URL)
	ctrl := NewController(client, staticSession{}, nil)

	err := ctrl.Refresh(context.Background())
	if !workoutapi.IsUnauthenticated(err) {
		t.Fatalf("Refresh() error = %v, want unauthenticated", err)
	}
	if len(srv.Calls()) != 0 {
		t.Fatalf("request sent without a token")
	}
}

func TestListReplaceCopies(t *testing.T) {
	l := NewList()
	items := []workoutapi.Workout{{ID: "a"}, {ID: "b"}}
	l.Replace(items, time.Unix(100, 0))
	items[0].ID = "mutated"

	if _, ok := l.Lookup("a"); !ok {
		t.Fatalf("Replace did not copy its input")
	}
	all := l.All()
	all[1].ID = "mutated"
	if _, ok := l.Lookup("b"); !ok {
		t.Fatalf("All did not return a copy")
	}
	if l.RefreshedAt() != time.Unix(100, 0) {
		t.Fatalf("RefreshedAt() = %v", l.RefreshedAt())
	}
}

func TestCreateNeedsCreatedStatus(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "error body", body: `{"error":"Workout not saved"}`, want: "Workout not saved"},
		{name: "empty object", body: `{}`, want: "Failed to add workout"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.api.FailNext("POST /workouts/addWorkout", http.StatusOK, tc.body)

			if err := f.ctrl.Create(context.Background(), "Run", 30); !errors.Is(err, workoutapi.ErrRejected) {
				t.Fatalf("Create() error = %v, want rejected", err)
			}
			if f.notices.has(LevelSuccess, MsgAdded) {
				t.Fatalf("success notice after a 200 answer")
			}
			if got := f.notices.last(); got != (Notice{Level: LevelError, Message: tc.want}) {
				t.Fatalf("last notice = %+v", got)
			}
			if n := f.api.CountCalls(http.MethodGet, "/workouts/getMyWorkouts"); n != 0 {
				t.Fatalf("list calls = %d, want none", n)
			}
			if len(f.events.subjects) != 0 {
				t.Fatalf("events = %v", f.events.subjects)
			}
		})
	}
}
