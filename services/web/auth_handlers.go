package web

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"fitverse/pkg/render"
	"fitverse/pkg/session"
	"fitverse/pkg/workouts"
)

// Flash texts for the account pages.
const (
	MsgLoginSucceeded    = "Login Successful"
	MsgRegistered        = "Registration Successful!"
	MsgLoggedOut         = "Logged out successfully!"
	MsgPasswordsMismatch = "Passwords do not match"
	MsgCredentialsNeeded = "Email and password are required."
)

type authForm struct {
	Email string
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "login", "Login", s.popFlash(w, r), authForm{})
}

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "register", "Register", s.popFlash(w, r), authForm{})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	rs := sessionFrom(r.Context())
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	email := strings.TrimSpace(r.PostForm.Get("email"))
	password := r.PostForm.Get("password")
	form := authForm{Email: email}

	if email == "" || password == "" {
		s.render(w, r, http.StatusUnprocessableEntity, "login", "Login", errorFlash(MsgCredentialsNeeded), form)
		return
	}

	// A fresh id on every login so a planted cookie never becomes authenticated.
	rs.rec = Record{
		ID: uuid.New(),
		Attrs: map[string]any{
			"user_agent":  r.UserAgent(),
			"remote_addr": clientIP(r),
		},
	}

	identity, err := rs.manager.Login(r.Context(), email, password)
	if err != nil {
		s.render(w, r, http.StatusUnauthorized, "login", "Login",
			errorFlash(session.UserMessage(err, session.MsgInvalidLogin)), form)
		return
	}

	if identity.UserID != "" {
		rs.rec.UserID = identity.UserID
		if err := s.sessions.Put(r.Context(), rs.rec); err != nil {
			s.logger.Warn().Err(err).Msg("store user id")
		}
	}
	s.audit(r, rs, identity.UserID, "login")
	s.setSessionCookie(w, rs.rec)
	s.setFlash(w, workouts.LevelSuccess, MsgLoginSucceeded)
	redirect(w, r, "/workouts")
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	rs := sessionFrom(r.Context())
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	email := strings.TrimSpace(r.PostForm.Get("email"))
	password := r.PostForm.Get("password")
	form := authForm{Email: email}

	if email == "" || password == "" {
		s.render(w, r, http.StatusUnprocessableEntity, "register", "Register", errorFlash(MsgCredentialsNeeded), form)
		return
	}
	if password != r.PostForm.Get("confirm_password") {
		s.render(w, r, http.StatusUnprocessableEntity, "register", "Register", errorFlash(MsgPasswordsMismatch), form)
		return
	}

	if _, err := rs.manager.Register(r.Context(), email, password); err != nil {
		s.render(w, r, http.StatusBadRequest, "register", "Register",
			errorFlash(session.UserMessage(err, session.MsgRegisterFailed)), form)
		return
	}

	s.setFlash(w, workouts.LevelSuccess, MsgRegistered)
	redirect(w, r, "/login")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	rs := sessionFrom(r.Context())
	if rs.manager.HasToken() {
		userID := rs.rec.UserID
		s.audit(r, rs, userID, "logout")
		rs.manager.Logout(r.Context())
		s.views.drop(rs.rec.ID)
		s.setFlash(w, workouts.LevelSuccess, MsgLoggedOut)
	}
	s.clearSessionCookie(w)
	redirect(w, r, "/login")
}

func errorFlash(msg string) *render.Flash {
	return &render.Flash{Level: string(workouts.LevelError), Message: msg}
}
