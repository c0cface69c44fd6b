package web

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/google/uuid"

	"fitverse/pkg/session"
	"fitverse/pkg/workouts"
)

const sessionCookie = "fitverse_session"

// MsgSessionExpired is flashed when the remote API stops accepting the session token.
const MsgSessionExpired = "Your session has expired. Please log in again."

type ctxKey struct{}

// requestSession is the browser session bound to one request.
type requestSession struct {
	rec     Record
	stored  bool
	manager *session.Manager
}

// view exposes the token and user id to a workouts.Controller.
type view struct {
	rs *requestSession
}

func (v view) Token() string  { return v.rs.manager.Token() }
func (v view) UserID() string { return v.rs.rec.UserID }

func sessionFrom(ctx context.Context) *requestSession {
	rs, _ := ctx.Value(ctxKey{}).(*requestSession)
	return rs
}

// withSession resolves the session cookie and attaches a ready session.Manager to the request.
// Unknown or expired cookies yield a fresh anonymous session that is only stored on login.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		rs := &requestSession{}

		if c, err := r.Cookie(sessionCookie); err == nil {
			if id, err := uuid.Parse(c.Value); err == nil {
				rec, err := s.sessions.Get(ctx, id)
				switch {
				case err == nil:
					rs.rec, rs.stored = rec, true
				case !errors.Is(err, ErrSessionNotFound):
					s.logger.Error().Err(err).Msg("load session")
				}
			}
		}
		if !rs.stored {
			rs.rec = Record{ID: uuid.New()}
		}

		tokens := &recordTokens{store: s.sessions, rec: &rs.rec, ttl: s.sessionTTL, now: s.now}
		rs.manager = session.NewManager(s.api, tokens,
			session.WithClearOnInvalid(true),
			session.WithObserver(s.metrics),
			session.WithLogger(s.logger),
		)
		if err := rs.manager.Init(ctx); err != nil {
			s.logger.Error().Err(err).Msg("init session")
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, ctxKey{}, rs)))
	})
}

// RequireSession sends requests without a stored token to /login. It only checks presence;
// validity is decided by the first API call.
func (s *Server) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rs := sessionFrom(r.Context())
		if rs == nil || !rs.manager.HasToken() {
			redirect(w, r, "/login")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RedirectAuthenticated sends requests that already carry a token to /workouts.
func (s *Server) RedirectAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rs := sessionFrom(r.Context()); rs != nil && rs.manager.HasToken() {
			redirect(w, r, "/workouts")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// sessionExpired clears a session the API rejected and bounces to /login.
func (s *Server) sessionExpired(w http.ResponseWriter, r *http.Request, rs *requestSession) {
	s.logger.Info().Str("session_id", rs.rec.ID.String()).Msg("session expired")
	rs.manager.Expire(r.Context())
	s.views.drop(rs.rec.ID)
	s.clearSessionCookie(w)
	s.setFlash(w, workouts.LevelError, MsgSessionExpired)
	redirect(w, r, "/login")
}

func (s *Server) setSessionCookie(w http.ResponseWriter, rec Record) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    rec.ID.String(),
		Path:     "/",
		Expires:  rec.ExpiresAt,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) audit(r *http.Request, rs *requestSession, userID, action string) {
	auditor, ok := s.sessions.(Auditor)
	if !ok {
		return
	}
	if err := auditor.Audit(r.Context(), rs.rec.ID, userID, action, clientIP(r)); err != nil {
		s.logger.Warn().Err(err).Str("action", action).Msg("session audit")
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
