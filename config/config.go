// Package config loads the CLI settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

type Config struct {
	BaseURL       string
	APIPrefix     string
	CacheDB       string
	SessionFile   string
	SessionKey    string
	ToastDuration time.Duration
	PageSize      int
	LogLevel      zerolog.Level
}

// Load reads .env from the working directory when present, then the
// environment. Variables already set in the environment win over .env.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds the config from the environment only. Values are parsed
// but not validated; call Validate once any flag overrides are applied.
func FromEnv() (*Config, error) {
	cfg := &Config{
		BaseURL:     env("VULNLIB_URL", "http://localhost:5000"),
		APIPrefix:   env("VULNLIB_API_PREFIX", "/api"),
		CacheDB:     env("VULNLIB_CACHE_DB", "vulnlib-cache.db"),
		SessionFile: env("VULNLIB_SESSION_FILE", defaultSessionFile()),
		SessionKey:  os.Getenv("VULNLIB_SESSION_KEY"),
	}

	var err error
	if cfg.ToastDuration, err = time.ParseDuration(env("VULNLIB_TOAST_DURATION", "5s")); err != nil {
		return nil, fmt.Errorf("VULNLIB_TOAST_DURATION: %w", err)
	}
	if cfg.PageSize, err = strconv.Atoi(env("VULNLIB_PAGE_SIZE", "12")); err != nil {
		return nil, fmt.Errorf("VULNLIB_PAGE_SIZE: %w", err)
	}
	if cfg.LogLevel, err = zerolog.ParseLevel(strings.ToLower(env("LOG_LEVEL", "warn"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return cfg, nil
}

// Validate checks the values a bad environment can break.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("VULNLIB_URL %q is not an http(s) URL", c.BaseURL)
	}
	if c.ToastDuration <= 0 {
		return fmt.Errorf("VULNLIB_TOAST_DURATION must be positive, got %s", c.ToastDuration)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("VULNLIB_PAGE_SIZE must be positive, got %d", c.PageSize)
	}
	if c.CacheDB == "" {
		return errors.New("VULNLIB_CACHE_DB is empty")
	}
	return nil
}

func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".vulnlib-session.json"
	}
	return filepath.Join(home, ".vulnlib", "session.json")
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
