package main

import (
	"context"
	"crypto/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"fitverse/pkg/bus"
	"fitverse/pkg/db"
	"fitverse/pkg/metrics"
	"fitverse/pkg/render"
	"fitverse/pkg/telemetry"
	"fitverse/pkg/workoutapi"
	"fitverse/services/web"
	"fitverse/services/web/internal/config"
)

const serviceName = "fitverse-web"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	log.Logger = logger

	shutdownTracing, traceMiddleware, err := telemetry.Init(ctx, serviceName, cfg.OTLPEndpoint, logger)
	if err != nil {
		log.Fatal().Err(err).Msg("init telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown telemetry")
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(reg)
	if err != nil {
		log.Fatal().Err(err).Msg("register metrics")
	}

	client, err := workoutapi.New(cfg.APIBaseURL,
		workoutapi.WithTimeout(cfg.APITimeout),
		workoutapi.WithTransport(telemetry.Transport),
		workoutapi.WithObserver(m),
		workoutapi.WithLogger(logger),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("create api client")
	}

	opts := web.Options{
		API:          client,
		Metrics:      m,
		Gatherer:     reg,
		Logger:       logger,
		CookieSecure: cfg.CookieSecure,
		SessionTTL:   cfg.SessionTTL,
		ViewTTL:      cfg.ViewTTL,
		LoginRate:    cfg.LoginRate,
		Middleware:   []func(http.Handler) http.Handler{traceMiddleware},
	}

	if cfg.DBDSN != "" {
		database := openSessionDB(ctx, cfg.DBDSN)
		defer database.Close()
		store, err := web.NewPostgresSessionStore(database)
		if err != nil {
			log.Fatal().Err(err).Msg("create session store")
		}
		opts.Sessions = store
		opts.Ready = database.Ping
	} else {
		log.Info().Msg("DB_DSN not set; sessions are kept in memory")
	}

	if cfg.NATSURL != "" {
		b, err := bus.Connect(cfg.NATSURL, serviceName, logger)
		if err != nil {
			log.Warn().Err(err).Msg("nats unavailable; workout events disabled")
		} else {
			defer b.Close()
			opts.Publisher = b
		}
	}

	opts.CSRFKey, err = cfg.CSRFKeyBytes()
	if err != nil {
		log.Fatal().Err(err).Msg("csrf key")
	}
	if opts.CSRFKey == nil {
		opts.CSRFKey = make([]byte, 32)
		if _, err := rand.Read(opts.CSRFKey); err != nil {
			log.Fatal().Err(err).Msg("generate csrf key")
		}
		log.Warn().Msg("CSRF_KEY not set; forms rendered before a restart will be rejected")
	}

	renderer, err := render.New()
	if err != nil {
		log.Fatal().Err(err).Msg("parse templates")
	}
	opts.Renderer = renderer

	server, err := web.New(opts)
	if err != nil {
		log.Fatal().Err(err).Msg("create web server")
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Str("api", client.BaseURL()).Msg("starting fitverse-web")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown server")
	}
}

func openSessionDB(ctx context.Context, dsn string) *db.DB {
	database, err := db.Open(ctx, dsn, db.WithApplicationName(serviceName), db.WithMaxConns(8))
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}
	if err := database.Migrate(ctx); err != nil {
		database.Close()
		log.Fatal().Err(err).Msg("migrate database")
	}
	return database
}

func newLogger(level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var logger zerolog.Logger
	if format == "json" {
		logger = zerolog.New(os.Stderr)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return logger.Level(lvl).With().Timestamp().Str("service", serviceName).Logger()
}
