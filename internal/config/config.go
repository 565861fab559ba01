// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
)

// Config is the full process configuration. Defaults are provided via struct
// tags.
type Config struct {
	HTTP  HTTP
	Log   Log
	Auth  Auth
	Store Store
}

type HTTP struct {
	// Addr like ":8080". ENV: HTTP_ADDR
	Addr string `env:"HTTP_ADDR,default=:8080"`
	// AllowedOrigins is a comma-separated CORS allow list. ENV: CORS_ALLOWED_ORIGINS
	AllowedOrigins string `env:"CORS_ALLOWED_ORIGINS,default=*"`
	// PublicURL is the externally visible base URL. When set, protected
	// resource metadata is published. ENV: PUBLIC_URL
	PublicURL string `env:"PUBLIC_URL"`
	// ShutdownGrace bounds graceful shutdown. ENV: HTTP_SHUTDOWN_GRACE
	ShutdownGrace time.Duration `env:"HTTP_SHUTDOWN_GRACE,default=10s"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL,default=info"`
	Format string `env:"LOG_FORMAT,default=json"`
}

// Auth configures bearer token verification.
type Auth struct {
	// Domain is the identity provider host. ENV: AUTH_DOMAIN
	Domain    string `env:"AUTH_DOMAIN,required"`
	Algorithm string `env:"AUTH_ALGORITHM,default=RS256"`
	Audience  string `env:"AUTH_AUDIENCE,required"`
	// JWKSURL overrides the key set location derived from Domain.
	JWKSURL   string `env:"AUTH_JWKS_URL"`
	Discovery bool   `env:"AUTH_DISCOVERY,default=false"`
	// KeySource is "cache" or "autorefresh".
	KeySource string        `env:"AUTH_KEY_SOURCE,default=cache"`
	CacheTTL  time.Duration `env:"AUTH_JWKS_CACHE_TTL,default=10m"`
	Timeout   time.Duration `env:"AUTH_JWKS_TIMEOUT,default=5s"`
	Retries   int           `env:"AUTH_JWKS_RETRIES,default=0"`
	Leeway    time.Duration `env:"AUTH_LEEWAY,default=0s"`
}

// Store selects and configures the persistence backend.
type Store struct {
	// Backend is "memory", "sqlite" or "redis". ENV: STORE_BACKEND
	Backend        string `env:"STORE_BACKEND,default=memory"`
	SQLitePath     string `env:"SQLITE_PATH,default=casting.db"`
	RedisAddr      string `env:"REDIS_ADDR,default=localhost:6379"`
	RedisKeyPrefix string `env:"REDIS_KEY_PREFIX,default=casting:"`
}

// Load decodes the environment into a Config and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerated values and ranges.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Backend {
	case "memory", "sqlite", "redis":
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND: unknown backend %q", c.Store.Backend))
	}
	switch c.Auth.KeySource {
	case "cache", "autorefresh":
	default:
		errs = append(errs, fmt.Errorf("AUTH_KEY_SOURCE: unknown key source %q", c.Auth.KeySource))
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT: unknown format %q", c.Log.Format))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.Auth.CacheTTL < 0 {
		errs = append(errs, errors.New("AUTH_JWKS_CACHE_TTL: must not be negative"))
	}
	if c.Auth.Retries < 0 {
		errs = append(errs, errors.New("AUTH_JWKS_RETRIES: must not be negative"))
	}
	return errors.Join(errs...)
}

// SlogLevel parses Level.
func (l Log) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return lvl, nil
}

// Origins splits AllowedOrigins on commas, dropping blanks.
func (h HTTP) Origins() []string {
	var out []string
	for _, o := range strings.Split(h.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
