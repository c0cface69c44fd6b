package web

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"fitverse/pkg/workoutapi"
	"fitverse/pkg/workouts"
)

func TestMemorySessionStoreExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemorySessionStore()
	store.now = func() time.Time { return now }

	old := Record{ID: uuid.New(), Token: "tok-old", ExpiresAt: now.Add(time.Minute)}
	if err := store.Put(ctx, old); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, err := store.Get(ctx, old.ID)
	if err != nil || got.Token != "tok-old" {
		t.Fatalf("Get() = %+v, %v", got, err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := store.Get(ctx, old.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expired Get() error = %v, want ErrSessionNotFound", err)
	}
	if store.Len() != 1 {
		t.Fatalf("expired entry purged before a write")
	}

	fresh := Record{ID: uuid.New(), Token: "tok-new", ExpiresAt: now.Add(time.Hour)}
	if err := store.Put(ctx, fresh); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("Len() = %d, want expired entry purged on write", store.Len())
	}

	if err := store.Delete(ctx, fresh.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, fresh.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Get() after Delete error = %v", err)
	}
	if err := store.Put(ctx, Record{}); err == nil {
		t.Fatalf("Put() without id error = nil")
	}
}

func TestRecordTokens(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemorySessionStore()
	store.now = func() time.Time { return now }
	rec := &Record{ID: uuid.New(), UserID: "stale"}
	tokens := &recordTokens{store: store, rec: rec, ttl: time.Hour, now: func() time.Time { return now }}

	if tok, _ := tokens.Load(ctx); tok != "" {
		t.Fatalf("Load() = %q, want empty", tok)
	}
	if err := tokens.Save(ctx, "tok1"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	stored, err := store.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if stored.Token != "tok1" || stored.UserID != "" || !stored.ExpiresAt.Equal(now.Add(time.Hour)) || !stored.CreatedAt.Equal(now) {
		t.Fatalf("stored = %+v", stored)
	}

	if err := tokens.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if rec.Token != "" {
		t.Fatalf("token kept after Clear")
	}
	if _, err := store.Get(ctx, rec.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("record kept after Clear: %v", err)
	}
}

func TestViewCacheEvictsIdleSessions(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	var reported []int
	cache := newViewCache(10*time.Minute, func(n int) { reported = append(reported, n) })
	cache.now = func() time.Time { return now }

	a, b := uuid.New(), uuid.New()
	listA := cache.list(a)
	listA.Replace([]workoutapi.Workout{{ID: "w1"}}, now)
	if cache.list(a) != listA {
		t.Fatalf("list() returned a different list for the same session")
	}

	now = now.Add(6 * time.Minute)
	cache.list(b)
	now = now.Add(6 * time.Minute)
	cache.list(b)

	if cache.len() != 1 {
		t.Fatalf("len() = %d, want idle session evicted", cache.len())
	}
	if cache.list(a).Len() != 0 {
		t.Fatalf("evicted session kept its workouts")
	}

	cache.drop(a)
	cache.drop(b)
	if last := reported[len(reported)-1]; last != 0 {
		t.Fatalf("last reported count = %d", last)
	}
}

func TestFlashRoundTrip(t *testing.T) {
	s := &Server{}
	rec := httptest.NewRecorder()
	s.setFlash(rec, workouts.LevelSuccess, "Workout Added!")

	req := httptest.NewRequest(http.MethodGet, "/workouts", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	out := httptest.NewRecorder()
	f := s.popFlash(out, req)
	if f == nil || f.Level != "success" || f.Message != "Workout Added!" {
		t.Fatalf("popFlash() = %+v", f)
	}
	cleared := out.Result().Cookies()
	if len(cleared) != 1 || cleared[0].MaxAge >= 0 {
		t.Fatalf("flash cookie not expired: %+v", cleared)
	}

	bad := httptest.NewRequest(http.MethodGet, "/", nil)
	bad.AddCookie(&http.Cookie{Name: flashCookie, Value: "%%%"})
	if f := s.popFlash(httptest.NewRecorder(), bad); f != nil {
		t.Fatalf("garbage cookie decoded to %+v", f)
	}
}

func TestFormMinutes(t *testing.T) {
	tests := map[string]int{"30": 30, " 45 ": 45, "N/A": 0, "": 0, "1.5": 0}
	for in, want := range tests {
		if got := formMinutes(in); got != want {
			t.Fatalf("formMinutes(%q) = %d, want %d", in, got, want)
		}
	}
}
