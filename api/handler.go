// Package api serves the movies and actors REST API. Every collection route
// is guarded by an auth.Guard requiring a route-specific permission.
package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/ggoodman/casting-api/auth"
	"github.com/ggoodman/casting-api/internal/logctx"
	"github.com/ggoodman/casting-api/internal/wellknown"
	"github.com/ggoodman/casting-api/storage"
)

// Permissions required by the routes.
const (
	PermReadMovies   = "read:movies"
	PermCreateMovies = "create:movies"
	PermUpdateMovies = "update:movies"
	PermDeleteMovies = "delete:movies"
	PermReadActors   = "read:actors"
	PermCreateActors = "create:actors"
	PermUpdateActors = "update:actors"
	PermDeleteActors = "delete:actors"
)

// Option configures the Handler.
type Option func(*newConfig)

type newConfig struct {
	logger         *slog.Logger
	allowedOrigins []string
	realm          string
	prm            *wellknown.ProtectedResourceMetadata
}

// WithLogger sets the logger used by the handler. Records are decorated with
// request and principal attributes.
func WithLogger(l *slog.Logger) Option {
	return func(c *newConfig) { c.logger = l }
}

// WithAllowedOrigins sets the CORS allow list. Defaults to "*".
func WithAllowedOrigins(origins ...string) Option {
	return func(c *newConfig) { c.allowedOrigins = origins }
}

// WithRealm sets the realm advertised in WWW-Authenticate challenges. Empty
// omits it.
func WithRealm(realm string) Option {
	return func(c *newConfig) { c.realm = realm }
}

// WithProtectedResource publishes protected resource metadata for resource,
// the public URL of this API, describing the identity provider in sec. The
// document is linked from every Bearer challenge.
func WithProtectedResource(resource string, sec auth.SecurityConfig) Option {
	return func(c *newConfig) {
		c.prm = &wellknown.ProtectedResourceMetadata{
			Resource:                          resource,
			AuthorizationServers:              []string{sec.Issuer},
			JwksURI:                           sec.JWKSURL,
			ScopesSupported:                   Permissions(),
			BearerMethodsSupported:            []string{"header"},
			ResourceSigningAlgValuesSupported: []string{sec.Algorithm},
			ResourceName:                      "Casting Agency API",
		}
	}
}

// Permissions lists every permission a route can require.
func Permissions() []string {
	return []string{
		PermReadMovies, PermCreateMovies, PermUpdateMovies, PermDeleteMovies,
		PermReadActors, PermCreateActors, PermUpdateActors, PermDeleteActors,
	}
}

// Handler is the root http.Handler of the API.
type Handler struct {
	log    *slog.Logger
	store  storage.Store
	guard  *auth.Guard
	realm  string
	prm    *wellknown.ProtectedResourceMetadata
	prmURL string
	router chi.Router
}

// New constructs the API handler over store, authorizing requests with
// verifier.
func New(store storage.Store, verifier auth.Verifier, opts ...Option) (*Handler, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if verifier == nil {
		return nil, fmt.Errorf("verifier is required")
	}

	cfg := &newConfig{logger: slog.Default(), allowedOrigins: []string{"*"}}
	for _, opt := range opts {
		opt(cfg)
	}

	log := cfg.logger
	if _, ok := log.Handler().(logctx.Handler); !ok {
		log = slog.New(logctx.Handler{Handler: log.Handler()})
	}

	h := &Handler{
		log:   log,
		store: store,
		realm: cfg.realm,
		prm:   cfg.prm,
	}
	if h.prm != nil {
		u, err := url.Parse(h.prm.Resource)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("invalid resource URL %q", h.prm.Resource)
		}
		h.prmURL = (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: wellknown.ProtectedResourcePath}).String()
	}
	h.guard = auth.NewGuard(verifier, auth.WithLogger(h.log), auth.WithErrorHandler(h.writeAuthError))

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "Resource not found.")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "Method not allowed.")
	})

	r.Get("/", h.handleIndex)
	r.Get("/healthz", h.handleHealth)
	if h.prm != nil {
		r.Get(wellknown.ProtectedResourcePath, h.handleProtectedResourceMetadata)
	}

	r.Route("/movies", func(r chi.Router) {
		r.With(h.guard.Require(PermReadMovies)).Get("/", h.handleListMovies)
		r.With(h.guard.Require(PermCreateMovies)).Post("/", h.handleCreateMovie)
		r.With(h.guard.Require(PermReadMovies)).Get("/{id}", h.handleGetMovie)
		r.With(h.guard.Require(PermUpdateMovies)).Patch("/{id}", h.handleUpdateMovie)
		r.With(h.guard.Require(PermDeleteMovies)).Delete("/{id}", h.handleDeleteMovie)
	})
	r.Route("/actors", func(r chi.Router) {
		r.With(h.guard.Require(PermReadActors)).Get("/", h.handleListActors)
		r.With(h.guard.Require(PermCreateActors)).Post("/", h.handleCreateActor)
		r.With(h.guard.Require(PermReadActors)).Get("/{id}", h.handleGetActor)
		r.With(h.guard.Require(PermUpdateActors)).Patch("/{id}", h.handleUpdateActor)
		r.With(h.guard.Require(PermDeleteActors)).Delete("/{id}", h.handleDeleteActor)
	})

	h.router = r
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	w.Header().Set(requestIDHeader, id)
	h.router.ServeHTTP(w, r.WithContext(logctx.WithRequestData(r.Context(), &logctx.RequestData{
		RequestID:  id,
		Method:     r.Method,
		UserAgent:  r.UserAgent(),
		RemoteAddr: r.RemoteAddr,
		Path:       r.URL.Path,
	})))
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.log.InfoContext(r.Context(), "http.request.done",
			slog.Int("status", ww.Status()),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("dur", time.Since(start)),
		)
	})
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Welcome to API"))
}

func (h *Handler) handleProtectedResourceMetadata(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=3600")
	writeJSON(w, http.StatusOK, h.prm)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.log.ErrorContext(r.Context(), "store.ping.fail", slog.String("err", err.Error()))
		writeError(w, http.StatusServiceUnavailable, codeServiceUnavailable, "Storage backend unavailable.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": "ok"})
}

// writeStoreError maps a storage failure to a response.
func (h *Handler) writeStoreError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, codeNotFound, "Resource not found.")
		return
	}
	h.log.ErrorContext(r.Context(), op+".fail", slog.String("err", err.Error()))
	writeError(w, http.StatusInternalServerError, codeInternal, "Internal server error.")
}

// writeRequestError maps a body or parameter decoding failure to 400, 413
// or 415.
func writeRequestError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errUnsupportedMediaType):
		writeError(w, http.StatusUnsupportedMediaType, codeUnsupportedMediaType, err.Error())
	case errors.Is(err, errBodyTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, codeBodyTooLarge, err.Error())
	default:
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
	}
}
