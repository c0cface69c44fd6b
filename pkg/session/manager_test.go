package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"fitverse/pkg/workoutapi"
	"fitverse/pkg/workoutapi/apitest"
)

func newAPI(t *testing.T) (*apitest.Server, *workoutapi.Client) {
	t.Helper()
	srv := apitest.New()
	t.Cleanup(srv.Close)
	client, err := workoutapi.New(srv.URL)
	if err != nil {
		t.Fatalf("workoutapi.New() error = %v", err)
	}
	return srv, client
}

type countingObserver struct {
	logins, failures, logouts int
}

func (c *countingObserver) ObserveLogin(err error) {
	if err != nil {
		c.failures++
		return
	}
	c.logins++
}

func (c *countingObserver) ObserveLogout() { c.logouts++ }

func TestLoginThenCurrentIdentity(t *testing.T) {
	srv, client := newAPI(t)
	uid := srv.AddUser("a@b.com", "secret12")

	store := NewMemoryStore("")
	obs := &countingObserver{}
	m := NewManager(client, store, WithObserver(obs))
	ctx := context.Background()
	if err := m.Init(ctx); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if m.State() != Anonymous {
		t.Fatalf("State() = %v, want anonymous", m.State())
	}

	identity, err := m.Login(ctx, " a@b.com ", "secret12")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if identity.UserID != uid || m.UserID() != uid {
		t.Fatalf("Login() identity = %q, UserID() = %q, want %q", identity.UserID, m.UserID(), uid)
	}
	if m.State() != Authenticated {
		t.Fatalf("State() = %v, want authenticated", m.State())
	}
	stored, _ := store.Load(ctx)
	if stored == "" || stored != m.Token() {
		t.Fatalf("stored token = %q, manager token = %q", stored, m.Token())
	}

	got, ok := m.CurrentIdentity(ctx)
	if !ok || got != uid {
		t.Fatalf("CurrentIdentity() = %q, %v; want %q, true", got, ok, uid)
	}
	if obs.logins != 1 || obs.failures != 0 {
		t.Fatalf("observer = %+v", obs)
	}
}

func TestLoginScriptedTokenStored(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /users/login", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"access":"tok1"}`))
	})
	mux.HandleFunc("GET /users/details", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"user":{"_id":"u1"}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := workoutapi.New(srv.URL)
	if err != nil {
		t.Fatalf("workoutapi.New() error = %v", err)
	}
	store := NewMemoryStore("")
	m := NewManager(client, store)

	if _, err := m.Login(context.Background(), "a@b.com", "secret12"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if tok, _ := store.Load(context.Background()); tok != "tok1" {
		t.Fatalf("stored token = %q, want tok1", tok)
	}
	if m.UserID() != "u1" {
		t.Fatalf("UserID() = %q, want u1", m.UserID())
	}
}

func TestLoginFailureMessages(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{name: "server message", status: http.StatusUnauthorized, body: `{"message":"Email and password do not match"}`, want: "Email and password do not match"},
		{name: "no message", status: http.StatusUnauthorized, body: `{}`, want: MsgInvalidLogin},
		{name: "missing access", status: http.StatusOK, body: `{"token":"x"}`, want: MsgInvalidLogin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()
			client, _ := workoutapi.New(srv.URL)
			store := NewMemoryStore("")
			m := NewManager(client, store)

			_, err := m.Login(context.Background(), "a@b.com", "nope")
			var authErr *AuthError
			if !errors.As(err, &authErr) {
				t.Fatalf("Login() error = %v, want *AuthError", err)
			}
			if authErr.Message != tt.want {
				t.Fatalf("Message = %q, want %q", authErr.Message, tt.want)
			}
			if m.State() != Anonymous || m.Token() != "" {
				t.Fatalf("session changed after failed login: %v %q", m.State(), m.Token())
			}
			if tok, _ := store.Load(context.Background()); tok != "" {
				t.Fatalf("stored token = %q after failure", tok)
			}
		})
	}
}

func TestLoginNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	client, _ := workoutapi.New(url)

	_, err := NewManager(client, nil).Login(context.Background(), "a@b.com", "secret12")
	if got := UserMessage(err, ""); got != MsgNetwork {
		t.Fatalf("UserMessage() = %q, want %q", got, MsgNetwork)
	}
}

func TestLoginIdentityFailureKeepsSession(t *testing.T) {
	srv, client := newAPI(t)
	srv.AddUser("a@b.com", "secret12")
	srv.FailNext("GET /users/details", http.StatusInternalServerError, `{"error":"boom"}`)

	m := NewManager(client, nil)
	identity, err := m.Login(context.Background(), "a@b.com", "secret12")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if identity.UserID != "" || m.UserID() != "" {
		t.Fatalf("user id = %q, want empty", m.UserID())
	}
	if m.State() != Authenticated || m.Token() == "" {
		t.Fatalf("State() = %v, token %q; want authenticated with token", m.State(), m.Token())
	}
}

func TestRegisterMessages(t *testing.T) {
	srv, client := newAPI(t)
	m := NewManager(client, nil)
	ctx := context.Background()

	msg, err := m.Register(ctx, "a@b.com", "secret12")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if msg != "Registered Successfully" {
		t.Fatalf("Register() = %q", msg)
	}
	if m.State() != Anonymous || m.Token() != "" {
		t.Fatalf("Register() changed session state")
	}

	_, err = m.Register(ctx, "c@d.com", "short")
	if got := UserMessage(err, ""); got != MsgPasswordTooShort {
		t.Fatalf("short password message = %q", got)
	}

	_, err = m.Register(ctx, "a@b.com", "secret12")
	if got := UserMessage(err, ""); got != MsgRegisterFailed {
		t.Fatalf("duplicate message = %q", got)
	}

	if n := srv.CountCalls(http.MethodPost, "/users/register"); n != 3 {
		t.Fatalf("register calls = %d, want 3", n)
	}
}

func TestRegisterNeedsConfirmationMessage(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "other message", status: http.StatusOK, body: `{"message":"Email already exists"}`},
		{name: "created without message", status: http.StatusCreated, body: `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()
			client, err := workoutapi.New(srv.URL)
			if err != nil {
				t.Fatalf("workoutapi.New() error = %v", err)
			}

			msg, err := NewManager(client, nil).Register(context.Background(), "a@b.com", "secret12")
			if msg != "" {
				t.Fatalf("Register() = %q, want empty", msg)
			}
			var authErr *AuthError
			if !errors.As(err, &authErr) || authErr.Message != MsgRegisterFailed {
				t.Fatalf("Register() error = %v, want %q", err, MsgRegisterFailed)
			}
			if !errors.Is(err, ErrUnexpectedRegistration) {
				t.Fatalf("Register() error = %v, want ErrUnexpectedRegistration", err)
			}
		})
	}
}

func TestInitWithStoredToken(t *testing.T) {
	srv, client := newAPI(t)
	uid := srv.AddUser("a@b.com", "secret12")
	srv.SetToken("persisted", uid)

	m := NewManager(client, NewMemoryStore("persisted"))
	ctx := context.Background()
	if err := m.Init(ctx); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if m.State() != Authenticated || !m.HasToken() {
		t.Fatalf("State() = %v, want optimistic authenticated", m.State())
	}
	if m.UserID() != "" {
		t.Fatalf("UserID() = %q before lookup", m.UserID())
	}
	if got, ok := m.CurrentIdentity(ctx); !ok || got != uid {
		t.Fatalf("CurrentIdentity() = %q, %v", got, ok)
	}
}

func TestCurrentIdentityFailure(t *testing.T) {
	tests := []struct {
		name           string
		clearOnInvalid bool
		wantStored     string
	}{
		{name: "keeps token by default", wantStored: "stale"},
		{name: "clears rejected token", clearOnInvalid: true, wantStored: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, client := newAPI(t)
			store := NewMemoryStore("stale")
			m := NewManager(client, store, WithClearOnInvalid(tt.clearOnInvalid))
			ctx := context.Background()
			if err := m.Init(ctx); err != nil {
				t.Fatalf("Init() error = %v", err)
			}

			if got, ok := m.CurrentIdentity(ctx); ok || got != "" {
				t.Fatalf("CurrentIdentity() = %q, %v; want \"\", false", got, ok)
			}
			if m.State() != Anonymous {
				t.Fatalf("State() = %v, want anonymous", m.State())
			}
			if stored, _ := store.Load(ctx); stored != tt.wantStored {
				t.Fatalf("stored = %q, want %q", stored, tt.wantStored)
			}
		})
	}
}

func TestCurrentIdentityWithoutToken(t *testing.T) {
	srv, client := newAPI(t)
	m := NewManager(client, nil)
	if got, ok := m.CurrentIdentity(context.Background()); ok || got != "" {
		t.Fatalf("CurrentIdentity() = %q, %v", got, ok)
	}
	if n := len(srv.Calls()); n != 0 {
		t.Fatalf("calls = %d, want 0", n)
	}
}

type failingStore struct{ MemoryStore }

func (f *failingStore) Clear(context.Context) error { return errors.New("disk on fire") }

func TestLogoutAlwaysSucceeds(t *testing.T) {
	srv, client := newAPI(t)
	srv.AddUser("a@b.com", "secret12")
	store := &failingStore{}
	obs := &countingObserver{}
	m := NewManager(client, store, WithObserver(obs))
	ctx := context.Background()
	if _, err := m.Login(ctx, "a@b.com", "secret12"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	m.Logout(ctx)
	if m.State() != Anonymous || m.Token() != "" || m.UserID() != "" {
		t.Fatalf("session not cleared: %v %q %q", m.State(), m.Token(), m.UserID())
	}
	if obs.logouts != 1 {
		t.Fatalf("logouts = %d", obs.logouts)
	}
}

func TestExpireClearsStore(t *testing.T) {
	store := NewMemoryStore("tok")
	m := NewManager(nil, store)
	ctx := context.Background()
	if err := m.Init(ctx); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	m.Expire(ctx)
	if m.HasToken() || m.State() != Anonymous {
		t.Fatalf("Expire() left token %q state %v", m.Token(), m.State())
	}
	if stored, _ := store.Load(ctx); stored != "" {
		t.Fatalf("stored = %q after Expire", stored)
	}
}

func TestCloseKeepsStoredToken(t *testing.T) {
	store := NewMemoryStore("tok")
	m := NewManager(nil, store)
	ctx := context.Background()
	_ = m.Init(ctx)
	m.Close()
	if m.HasToken() {
		t.Fatalf("HasToken() = true after Close")
	}
	if stored, _ := store.Load(ctx); stored != "tok" {
		t.Fatalf("stored = %q, want tok", stored)
	}
}
