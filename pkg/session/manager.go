// Package session owns the bearer token and the identity it resolves to.
//
// A Manager is created once per session scope (a CLI invocation or a web session), initialised
// from its TokenStore, and passed explicitly to whatever needs the token.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"fitverse/pkg/workoutapi"
)

// State is the authentication state of a Manager.
type State int

const (
	Anonymous State = iota
	Authenticated
)

func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "anonymous"
}

// User-facing messages for failed authentication.
const (
	MsgNetwork          = "Network error. Please try again."
	MsgInvalidLogin     = "Invalid email or password."
	MsgRegisterFailed   = "Something went wrong. Please try again."
	MsgPasswordTooShort = "Password must be at least 8 characters"
	MsgSaveFailed       = "Could not save your session. Please try again."
)

// Wording the remote API uses for a short password and for a created account.
const (
	serverPasswordTooShort = "Password must be atleast 8 characters"
	serverRegistered       = "Registered Successfully"
)

// ErrUnexpectedRegistration is wrapped by Register when a 2xx answer does not confirm the account.
var ErrUnexpectedRegistration = errors.New("registration not confirmed by server")

// AuthError is returned by Login and Register. Message is safe to show to the user.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// UserMessage extracts the user-facing text of err. Non-auth errors yield fallback.
func UserMessage(err error, fallback string) string {
	var authErr *AuthError
	if errors.As(err, &authErr) && authErr.Message != "" {
		return authErr.Message
	}
	return fallback
}

// API is the subset of the remote client the Manager needs.
type API interface {
	Register(ctx context.Context, creds workoutapi.Credentials) (string, error)
	Login(ctx context.Context, creds workoutapi.Credentials) (string, error)
	FetchIdentity(ctx context.Context, token string) (workoutapi.Identity, error)
}

// Observer is notified of login and logout outcomes.
type Observer interface {
	ObserveLogin(err error)
	ObserveLogout()
}

// Manager tracks one user's session. It is safe for concurrent use.
type Manager struct {
	api            API
	store          TokenStore
	logger         zerolog.Logger
	observer       Observer
	clearOnInvalid bool

	mu     sync.RWMutex
	state  State
	token  string
	userID string
}

// Option customises a Manager.
type Option func(*Manager)

// WithClearOnInvalid makes a rejected identity lookup also delete the stored token.
func WithClearOnInvalid(v bool) Option {
	return func(m *Manager) { m.clearOnInvalid = v }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithObserver registers login/logout callbacks, typically metrics.
func WithObserver(o Observer) Option {
	return func(m *Manager) { m.observer = o }
}

// NewManager returns an anonymous Manager. Call Init to load a stored token.
func NewManager(api API, store TokenStore, opts ...Option) *Manager {
	if store == nil {
		store = NewMemoryStore("")
	}
	m := &Manager{
		api:    api,
		store:  store,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Init loads the stored token. A present token makes the session optimistically
// Authenticated until CurrentIdentity says otherwise.
func (m *Manager) Init(ctx context.Context) error {
	token, err := m.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load token: %w", err)
	}
	token = strings.TrimSpace(token)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	m.userID = ""
	if token != "" {
		m.state = Authenticated
	} else {
		m.state = Anonymous
	}
	return nil
}

// Login exchanges credentials for a token, stores it and resolves the user id. A failed identity
// lookup after a successful login leaves the session authenticated with an empty user id.
func (m *Manager) Login(ctx context.Context, email, password string) (workoutapi.Identity, error) {
	creds := workoutapi.Credentials{Email: strings.TrimSpace(email), Password: password}

	token, err := m.api.Login(ctx, creds)
	if err != nil {
		authErr := &AuthError{Message: loginMessage(err), Err: err}
		m.observeLogin(authErr)
		m.logger.Info().Err(err).Str("email", creds.Email).Msg("login failed")
		return workoutapi.Identity{}, authErr
	}

	if err := m.store.Save(ctx, token); err != nil {
		authErr := &AuthError{Message: MsgSaveFailed, Err: fmt.Errorf("save token: %w", err)}
		m.observeLogin(authErr)
		return workoutapi.Identity{}, authErr
	}

	m.mu.Lock()
	m.token = token
	m.userID = ""
	m.state = Authenticated
	m.mu.Unlock()
	m.observeLogin(nil)

	identity, err := m.api.FetchIdentity(ctx, token)
	if err != nil {
		m.logger.Warn().Err(err).Msg("failed to retrieve user details after login")
		return workoutapi.Identity{}, nil
	}

	m.mu.Lock()
	if m.token == token {
		m.userID = identity.UserID
	}
	m.mu.Unlock()

	m.logger.Info().Str("user_id", identity.UserID).Msg("login succeeded")
	return identity, nil
}

// Register creates an account and returns the server's confirmation. Only the
// "Registered Successfully" message counts as success. It never changes the session state.
func (m *Manager) Register(ctx context.Context, email, password string) (string, error) {
	creds := workoutapi.Credentials{Email: strings.TrimSpace(email), Password: password}
	msg, err := m.api.Register(ctx, creds)
	if err != nil {
		m.logger.Info().Err(err).Str("email", creds.Email).Msg("registration failed")
		return "", &AuthError{Message: registerMessage(err), Err: err}
	}
	if strings.TrimSpace(msg) != serverRegistered {
		m.logger.Info().Str("email", creds.Email).Str("message", msg).Msg("registration not confirmed")
		return "", &AuthError{Message: MsgRegisterFailed, Err: fmt.Errorf("%w: %q", ErrUnexpectedRegistration, msg)}
	}
	return msg, nil
}

// CurrentIdentity resolves the stored token to a user id. Any failure is reported as
// ("", false) and moves the session to Anonymous.
func (m *Manager) CurrentIdentity(ctx context.Context) (string, bool) {
	token := m.Token()
	if token == "" {
		return "", false
	}

	identity, err := m.api.FetchIdentity(ctx, token)
	if err != nil {
		m.logger.Debug().Err(err).Msg("identity lookup failed")
		m.expire(ctx, token, m.clearOnInvalid && workoutapi.IsUnauthenticated(err))
		return "", false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token != token {
		return "", false
	}
	m.userID = identity.UserID
	m.state = Authenticated
	return identity.UserID, true
}

// Expire marks the session as no longer valid, for example after an API call was rejected
// with 401. The stored token is cleared as well.
func (m *Manager) Expire(ctx context.Context) {
	m.expire(ctx, m.Token(), true)
}

func (m *Manager) expire(ctx context.Context, token string, drop bool) {
	m.mu.Lock()
	if m.token != token {
		m.mu.Unlock()
		return
	}
	m.state = Anonymous
	m.userID = ""
	if drop {
		m.token = ""
	}
	m.mu.Unlock()

	if drop {
		if err := m.store.Clear(ctx); err != nil {
			m.logger.Warn().Err(err).Msg("clear expired token")
		}
	}
}

// Logout forgets the session and its stored token. It always succeeds.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	m.token = ""
	m.userID = ""
	m.state = Anonymous
	m.mu.Unlock()

	if err := m.store.Clear(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("clear token on logout")
	}
	if m.observer != nil {
		m.observer.ObserveLogout()
	}
}

// Close drops the in-memory session. The stored token is kept for the next Init.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	m.userID = ""
	m.state = Anonymous
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Token returns the bearer token, or "" when there is none.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// UserID returns the last resolved user id.
func (m *Manager) UserID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.userID
}

// HasToken is the route guard's presence check.
func (m *Manager) HasToken() bool {
	return m.Token() != ""
}

func (m *Manager) observeLogin(err error) {
	if m.observer != nil {
		m.observer.ObserveLogin(err)
	}
}

func loginMessage(err error) string {
	if workoutapi.KindOf(err) == workoutapi.KindNetwork {
		return MsgNetwork
	}
	if msg := workoutapi.ServerMessageOf(err); msg != "" {
		return msg
	}
	return MsgInvalidLogin
}

func registerMessage(err error) string {
	if workoutapi.KindOf(err) == workoutapi.KindNetwork {
		return MsgNetwork
	}
	if workoutapi.ServerMessageOf(err) == serverPasswordTooShort {
		return MsgPasswordTooShort
	}
	return MsgRegisterFailed
}
