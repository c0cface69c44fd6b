package web

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"

	"fitverse/pkg/render"
	"fitverse/pkg/workouts"
)

const (
	flashCookie = "fitverse_flash"
	flashMaxAge = 60
)

func (s *Server) setFlash(w http.ResponseWriter, level workouts.Level, msg string) {
	if msg == "" {
		return
	}
	payload, err := json.Marshal(render.Flash{Level: string(level), Message: msg})
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    base64.RawURLEncoding.EncodeToString(payload),
		Path:     "/",
		MaxAge:   flashMaxAge,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlash reads the pending flash, if any, and expires the cookie.
func (s *Server) popFlash(w http.ResponseWriter, r *http.Request) *render.Flash {
	c, err := r.Cookie(flashCookie)
	if err != nil {
		return nil
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	raw, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return nil
	}
	var f render.Flash
	if err := json.Unmarshal(raw, &f); err != nil || f.Message == "" {
		return nil
	}
	return &f
}

// notices collects controller notices raised while handling one request.
type notices struct {
	items []workouts.Notice
}

func (n *notices) Notify(_ context.Context, notice workouts.Notice) {
	n.items = append(n.items, notice)
}

// first is the notice describing the mutation itself; later ones come from the follow-up
// refresh.
func (n *notices) first() (workouts.Notice, bool) {
	if len(n.items) == 0 {
		return workouts.Notice{}, false
	}
	return n.items[0], true
}
