package config

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config holds runtime configuration for the web front end.
type Config struct {
	Addr         string        `env:"ADDR,default=:8080"`
	APIBaseURL   string        `env:"FITVERSE_API_URL,default=https://rmantonio-fitnesstrackerserver.onrender.com"`
	APITimeout   time.Duration `env:"FITVERSE_API_TIMEOUT,default=0s"`
	DBDSN        string        `env:"DB_DSN"`
	NATSURL      string        `env:"NATS_URL"`
	OTLPEndpoint string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	LogLevel     string        `env:"LOG_LEVEL,default=info"`
	LogFormat    string        `env:"LOG_FORMAT,default=console"`
	CSRFKey      string        `env:"CSRF_KEY"`
	CookieSecure bool          `env:"COOKIE_SECURE,default=false"`
	SessionTTL   time.Duration `env:"SESSION_TTL,default=24h"`
	ViewTTL      time.Duration `env:"VIEW_TTL,default=30m"`
	LoginRate    int           `env:"LOGIN_RATE_PER_MINUTE,default=10"`
}

// Load returns a Config populated from environment variables.
func Load(ctx context.Context) (Config, error) {
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith is Load with an explicit lookuper, used by tests.
func LoadWith(ctx context.Context, lookuper envconfig.Lookuper) (Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.APITimeout < 0 {
		return errors.New("FITVERSE_API_TIMEOUT must not be negative")
	}
	if c.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	if c.ViewTTL <= 0 {
		return errors.New("VIEW_TTL must be positive")
	}
	if c.LoginRate <= 0 {
		return errors.New("LOGIN_RATE_PER_MINUTE must be positive")
	}
	if c.CSRFKey != "" {
		if _, err := c.CSRFKeyBytes(); err != nil {
			return err
		}
	}
	return nil
}

// CSRFKeyBytes decodes CSRF_KEY, which must be 32 bytes hex encoded. It returns nil when the
// key is unset so the caller can generate one.
func (c Config) CSRFKeyBytes() ([]byte, error) {
	if c.CSRFKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(c.CSRFKey)
	if err != nil {
		return nil, fmt.Errorf("decode CSRF_KEY: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("CSRF_KEY must be 32 bytes, got %d", len(key))
	}
	return key, nil
}
