// Command castingd serves the casting agency API.
//
// All configuration comes from the environment; see internal/config.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/ggoodman/casting-api/api"
	"github.com/ggoodman/casting-api/auth"
	"github.com/ggoodman/casting-api/internal/config"
	"github.com/ggoodman/casting-api/internal/jwks"
	"github.com/ggoodman/casting-api/internal/logctx"
	"github.com/ggoodman/casting-api/storage"
	"github.com/ggoodman/casting-api/storage/memory"
	redisstore "github.com/ggoodman/casting-api/storage/redis"
	"github.com/ggoodman/casting-api/storage/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "castingd: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logOut io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg.Log, logOut)
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close()
	log.Info("store.open.ok", slog.String("backend", cfg.Store.Backend))

	sec := auth.SecurityConfig{
		Domain:    cfg.Auth.Domain,
		Audience:  cfg.Auth.Audience,
		Algorithm: cfg.Auth.Algorithm,
		JWKSURL:   cfg.Auth.JWKSURL,
		Leeway:    cfg.Auth.Leeway,
	}
	sec.Normalize()
	if err := sec.Validate(); err != nil {
		return err
	}
	if cfg.Auth.Discovery && cfg.Auth.JWKSURL == "" {
		u, err := jwks.DiscoverURL(ctx, sec.Issuer)
		if err != nil {
			return err
		}
		sec.JWKSURL = u
	}

	keys, err := newKeySource(ctx, cfg.Auth, sec.JWKSURL, log)
	if err != nil {
		return err
	}
	verifier, err := auth.NewVerifier(sec, keys)
	if err != nil {
		return err
	}
	log.Info("auth.config.ok",
		slog.String("issuer", sec.Issuer),
		slog.String("audience", sec.Audience),
		slog.String("jwks_url", sec.JWKSURL),
		slog.String("key_source", cfg.Auth.KeySource),
	)

	opts := []api.Option{
		api.WithLogger(log),
		api.WithAllowedOrigins(cfg.HTTP.Origins()...),
	}
	if cfg.HTTP.PublicURL != "" {
		opts = append(opts, api.WithProtectedResource(cfg.HTTP.PublicURL, sec))
	}
	h, err := api.New(store, verifier, opts...)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http.listen", slog.String("addr", cfg.HTTP.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("http.shutdown.start")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("http.shutdown.ok")
	return nil
}

func newLogger(cfg config.Log, out io.Writer) (*slog.Logger, error) {
	lvl, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler
	switch cfg.Format {
	case "text":
		h = slog.NewTextHandler(out, opts)
	default:
		h = slog.NewJSONHandler(out, opts)
	}
	return slog.New(logctx.Handler{Handler: h}), nil
}

func openStore(ctx context.Context, cfg config.Store) (storage.Store, error) {
	switch cfg.Backend {
	case "memory":
		return memory.New(), nil
	case "sqlite":
		s, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "redis":
		s, err := redisstore.Dial(ctx, cfg.RedisAddr, cfg.RedisKeyPrefix)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func newKeySource(ctx context.Context, cfg config.Auth, url string, log *slog.Logger) (auth.KeySource, error) {
	switch cfg.KeySource {
	case "autorefresh":
		ar, err := jwks.NewAutoRefresh(ctx, url, cfg.Algorithm)
		if err != nil {
			return nil, err
		}
		return ar, nil
	default:
		c := jwks.DefaultConfig(url)
		c.TTL = cfg.CacheTTL
		c.Timeout = cfg.Timeout
		c.RetryCount = cfg.Retries
		c.Client = resty.New().SetHeader("User-Agent", "castingd")
		c.Logger = log
		cache, err := jwks.NewCache(c)
		if err != nil {
			return nil, err
		}
		return cache, nil
	}
}
