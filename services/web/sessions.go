package web

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned when a session id is unknown or has expired.
var ErrSessionNotFound = errors.New("session not found")

// Record is one browser session. Token is the remote API bearer token and never leaves the
// server.
type Record struct {
	ID         uuid.UUID
	Token      string
	UserID     string
	Attrs      map[string]any
	CreatedAt  time.Time
	LastSeenAt time.Time
	ExpiresAt  time.Time
}

func (r Record) expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

// SessionStore persists browser sessions.
type SessionStore interface {
	Get(ctx context.Context, id uuid.UUID) (Record, error)
	Put(ctx context.Context, rec Record) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Auditor is implemented by stores that keep a login/logout trail.
type Auditor interface {
	Audit(ctx context.Context, sessionID uuid.UUID, userID, action, remoteAddr string) error
}

// MemorySessionStore keeps sessions in process memory. Expired entries are purged on every
// write and are never returned by Get.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]Record
	now      func() time.Time
}

// NewMemorySessionStore returns an empty in-memory store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[uuid.UUID]Record),
		now:      time.Now,
	}
}

func (s *MemorySessionStore) Get(_ context.Context, id uuid.UUID) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[id]
	if !ok || rec.expired(s.now()) {
		return Record{}, ErrSessionNotFound
	}
	return rec, nil
}

func (s *MemorySessionStore) Put(_ context.Context, rec Record) error {
	if rec.ID == uuid.Nil {
		return errors.New("session id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, entry := range s.sessions {
		if entry.expired(now) {
			delete(s.sessions, key)
		}
	}
	s.sessions[rec.ID] = rec
	return nil
}

func (s *MemorySessionStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// Len reports how many sessions are held, expired ones included until the next write.
func (s *MemorySessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// recordTokens adapts one session Record to session.TokenStore so a session.Manager can load
// and persist its token through the SessionStore.
type recordTokens struct {
	store SessionStore
	rec   *Record
	ttl   time.Duration
	now   func() time.Time
}

func (t *recordTokens) Load(context.Context) (string, error) {
	return t.rec.Token, nil
}

func (t *recordTokens) Save(ctx context.Context, token string) error {
	now := t.now()
	t.rec.Token = token
	t.rec.UserID = ""
	t.rec.LastSeenAt = now
	t.rec.ExpiresAt = now.Add(t.ttl)
	if t.rec.CreatedAt.IsZero() {
		t.rec.CreatedAt = now
	}
	return t.store.Put(ctx, *t.rec)
}

func (t *recordTokens) Clear(ctx context.Context) error {
	t.rec.Token = ""
	t.rec.UserID = ""
	if err := t.store.Delete(ctx, t.rec.ID); err != nil && !errors.Is(err, ErrSessionNotFound) {
		return err
	}
	return nil
}
