// Package web is the server-rendered FitVerse front end. Each browser session owns a
// session.Manager whose token lives in a SessionStore, keyed by an opaque cookie.
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/gorilla/csrf"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"fitverse/infra/branding"
	"fitverse/pkg/metrics"
	"fitverse/pkg/render"
	"fitverse/pkg/session"
	"fitverse/pkg/workouts"
)

const (
	defaultSessionTTL = 24 * time.Hour
	defaultLoginRate  = 10
	requestTimeout    = 60 * time.Second
)

// API is everything the web front end calls on the remote service. *workoutapi.Client
// satisfies it.
type API interface {
	session.API
	workouts.API
}

// Options configures a Server.
type Options struct {
	API       API
	Sessions  SessionStore
	Renderer  *render.Engine
	Metrics   *metrics.Metrics
	Gatherer  prometheus.Gatherer
	Publisher workouts.Publisher
	Logger    zerolog.Logger

	// CSRFKey is the 32 byte gorilla/csrf key. A nil key turns CSRF protection off.
	CSRFKey      []byte
	CookieSecure bool
	SessionTTL   time.Duration
	ViewTTL      time.Duration
	LoginRate    int

	// Ready reports whether dependencies are reachable for /readyz.
	Ready func(ctx context.Context) error
	// Middleware runs outside the router, e.g. telemetry.
	Middleware []func(http.Handler) http.Handler
}

// Server holds the dependencies shared by every handler.
type Server struct {
	api          API
	sessions     SessionStore
	renderer     *render.Engine
	metrics      *metrics.Metrics
	gatherer     prometheus.Gatherer
	publisher    workouts.Publisher
	logger       zerolog.Logger
	csrfKey      []byte
	cookieSecure bool
	sessionTTL   time.Duration
	loginRate    int
	ready        func(ctx context.Context) error
	middleware   []func(http.Handler) http.Handler
	views        *viewCache
	now          func() time.Time
}

// New validates opts and applies defaults.
func New(opts Options) (*Server, error) {
	if opts.API == nil {
		return nil, errors.New("api client is required")
	}
	if opts.Renderer == nil {
		return nil, errors.New("renderer is required")
	}
	if opts.CSRFKey != nil && len(opts.CSRFKey) != 32 {
		return nil, errors.New("csrf key must be 32 bytes")
	}
	if opts.Sessions == nil {
		opts.Sessions = NewMemorySessionStore()
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = defaultSessionTTL
	}
	if opts.LoginRate <= 0 {
		opts.LoginRate = defaultLoginRate
	}

	s := &Server{
		api:          opts.API,
		sessions:     opts.Sessions,
		renderer:     opts.Renderer,
		metrics:      opts.Metrics,
		gatherer:     opts.Gatherer,
		publisher:    opts.Publisher,
		logger:       opts.Logger,
		csrfKey:      opts.CSRFKey,
		cookieSecure: opts.CookieSecure,
		sessionTTL:   opts.SessionTTL,
		loginRate:    opts.LoginRate,
		ready:        opts.Ready,
		middleware:   opts.Middleware,
		now:          time.Now,
	}
	s.views = newViewCache(opts.ViewTTL, opts.Metrics.SetActiveSessions)
	return s, nil
}

// Routes constructs the chi router containing every page and probe.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", s.handleReady)
	r.Method(http.MethodGet, "/metrics", s.metricsHandler())
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(branding.Static()))))

	r.Group(func(r chi.Router) {
		if s.csrfKey != nil {
			r.Use(s.csrfProtect())
		}
		r.Use(s.withSession)

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
		})
		r.Post("/logout", s.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(s.RedirectAuthenticated)
			r.Get("/login", s.handleLoginPage)
			r.Get("/register", s.handleRegisterPage)
			r.With(httprate.LimitByIP(s.loginRate, time.Minute)).Post("/login", s.handleLogin)
			r.With(httprate.LimitByIP(s.loginRate, time.Minute)).Post("/register", s.handleRegister)
		})

		r.Route("/workouts", func(r chi.Router) {
			r.Use(s.RequireSession)
			r.Get("/", s.handleWorkouts)
			r.Post("/", s.handleCreateWorkout)
			r.Get("/{id}/edit", s.handleEditWorkout)
			r.Post("/{id}", s.handleUpdateWorkout)
			r.Get("/{id}/delete", s.handleConfirmDelete)
			r.Post("/{id}/delete", s.handleDeleteWorkout)
			r.Post("/{id}/status", s.handleToggleStatus)
		})
	})

	var h http.Handler = r
	for i := len(s.middleware) - 1; i >= 0; i-- {
		h = s.middleware[i](h)
	}
	return h
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			s.logger.Warn().Err(err).Msg("readiness check failed")
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) metricsHandler() http.Handler {
	if s.gatherer != nil {
		return promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}

// csrfProtect wraps gorilla/csrf. Requests that did not arrive over TLS are marked plaintext
// unless cookies are configured as secure.
func (s *Server) csrfProtect() func(http.Handler) http.Handler {
	protect := csrf.Protect(s.csrfKey,
		csrf.Secure(s.cookieSecure),
		csrf.Path("/"),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.logger.Warn().Err(csrf.FailureReason(r)).Str("path", r.URL.Path).Msg("csrf check failed")
			http.Error(w, "invalid or missing form token", http.StatusForbidden)
		})),
	)
	return func(next http.Handler) http.Handler {
		protected := protect(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.TLS == nil && !s.cookieSecure {
				r = csrf.PlaintextHTTPRequest(r)
			}
			protected.ServeHTTP(w, r)
		})
	}
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name, title string, flash *render.Flash, data any) {
	page := render.Page{
		Title: title,
		Flash: flash,
		CSRF:  csrf.TemplateField(r),
		Data:  data,
	}
	if rs := sessionFrom(r.Context()); rs != nil {
		page.Authenticated = rs.manager.HasToken()
		page.UserID = rs.rec.UserID
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf, err := s.renderer.Render(name, page)
	if err != nil {
		s.logger.Error().Err(err).Str("page", name).Msg("render page")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(buf))
}

func redirect(w http.ResponseWriter, r *http.Request, to string) {
	http.Redirect(w, r, to, http.StatusSeeOther)
}
