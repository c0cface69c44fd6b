package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"fitverse/pkg/workoutapi"
)

// Config is the on-disk CLI configuration. Environment variables and flags override it.
type Config struct {
	APIURL       string        `yaml:"api_url"`
	APITimeout   time.Duration `yaml:"api_timeout"`
	TokenFile    string        `yaml:"token_file"`
	NATSURL      string        `yaml:"nats_url"`
	ExportBucket string        `yaml:"export_bucket"`

	// Secrets are read from the environment only.
	TokenPassphrase string `yaml:"-"`
	TokenIdentity   string `yaml:"-"`
}

// DefaultConfigPath is <UserConfigDir>/fitverse/config.yaml.
func DefaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, "fitverse", "config.yaml"), nil
}

// LoadConfig reads path. A missing file yields an empty Config.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path, creating the directory.
func SaveConfig(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// applyEnv overlays FITVERSE_* variables.
func (c *Config) applyEnv(getenv func(string) string) error {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.APIURL, "FITVERSE_API_URL")
	set(&c.TokenFile, "FITVERSE_TOKEN_FILE")
	set(&c.NATSURL, "FITVERSE_NATS_URL")
	set(&c.ExportBucket, "FITVERSE_EXPORT_BUCKET")
	set(&c.TokenIdentity, "FITVERSE_TOKEN_IDENTITY")
	c.TokenPassphrase = getenv("FITVERSE_TOKEN_PASSPHRASE")

	if v := strings.TrimSpace(getenv("FITVERSE_API_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return fmt.Errorf("invalid FITVERSE_API_TIMEOUT: %q", v)
		}
		c.APITimeout = d
	}
	return nil
}

// withDefaults fills in the API URL and token file location.
func (c Config) withDefaults() (Config, error) {
	if c.APIURL == "" {
		c.APIURL = workoutapi.DefaultBaseURL
	}
	if c.TokenFile == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return Config{}, fmt.Errorf("locate config dir: %w", err)
		}
		c.TokenFile = filepath.Join(dir, "fitverse", "token")
	}
	return c, nil
}
