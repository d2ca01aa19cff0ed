// Package config reads settings for both binaries from the environment.
//
// ENVIRONMENT FIRST, .env SECOND:
// LoadDotEnv reads a .env file (if there is one) into the process
// environment without overriding variables that are already set. Real
// environment variables always win, so the same binary works on a laptop
// with a .env file and in a container with injected variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads the given files (default ".env"). A missing file is fine.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config: loading %s: %w", f, err)
		}
	}
	return nil
}

// =========================================================================
// CLIENT
// =========================================================================

type Client struct {
	APIURL       string
	DBPath       string // ":memory:" keeps the credential for this process only
	HTTPTimeout  time.Duration
	WelcomeDelay time.Duration
	PricesURL    string
	PricesTTL    time.Duration
	ShellPort    int
	LogLevel     slog.Level
}

// LoadClient reads CLINT_* variables and LOG_LEVEL.
func LoadClient() (*Client, error) {
	cfg := &Client{
		APIURL:    getString("CLINT_API_URL", "https://clint-crypto-hub-backend-1.onrender.com"),
		DBPath:    getString("CLINT_DB_PATH", "data/client.db"),
		PricesURL: getString("CLINT_PRICES_URL", "https://api.coingecko.com/api/v3"),
	}

	var errs []error
	var err error

	if cfg.HTTPTimeout, err = getDuration("CLINT_HTTP_TIMEOUT", 15*time.Second); err != nil {
		errs = append(errs, err)
	}
	if cfg.WelcomeDelay, err = getDuration("CLINT_WELCOME_DELAY", 4*time.Second); err != nil {
		errs = append(errs, err)
	}
	if cfg.PricesTTL, err = getDuration("CLINT_PRICES_TTL", 30*time.Second); err != nil {
		errs = append(errs, err)
	}
	if cfg.ShellPort, err = getInt("CLINT_SHELL_PORT", 8090); err != nil {
		errs = append(errs, err)
	}
	if cfg.LogLevel, err = getLevel("LOG_LEVEL"); err != nil {
		errs = append(errs, err)
	}
	for _, u := range []struct{ key, val string }{
		{"CLINT_API_URL", cfg.APIURL},
		{"CLINT_PRICES_URL", cfg.PricesURL},
	} {
		if err := checkURL(u.key, u.val); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// =========================================================================
// DEV BACKEND
// =========================================================================

// MinSecretLength is the shortest JWT_SECRET the backend accepts.
const MinSecretLength = 16

type Backend struct {
	Port      int
	DBPath    string
	JWTSecret string
	LogLevel  slog.Level
}

// LoadBackend reads PORT, DB_PATH, JWT_SECRET and LOG_LEVEL.
func LoadBackend() (*Backend, error) {
	cfg := &Backend{
		DBPath:    getString("DB_PATH", "data/backend.db"),
		JWTSecret: os.Getenv("JWT_SECRET"),
	}

	var errs []error
	var err error

	if cfg.Port, err = getInt("PORT", 8080); err != nil {
		errs = append(errs, err)
	}
	if cfg.LogLevel, err = getLevel("LOG_LEVEL"); err != nil {
		errs = append(errs, err)
	}
	if len(cfg.JWTSecret) < MinSecretLength {
		errs = append(errs, fmt.Errorf("config: JWT_SECRET must be at least %d characters", MinSecretLength))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// =========================================================================
// HELPERS
// =========================================================================

func getString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 || n > 65535 {
		return 0, fmt.Errorf("config: %s: invalid port %q", key, v)
	}
	return n, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("config: %s: invalid duration %q", key, v)
	}
	return d, nil
}

func getLevel(key string) (slog.Level, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return slog.LevelInfo, nil
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(v)); err != nil {
		return 0, fmt.Errorf("config: %s: invalid level %q", key, v)
	}
	return lvl, nil
}

func checkURL(key, v string) error {
	u, err := url.Parse(v)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: %s: invalid URL %q", key, v)
	}
	return nil
}
