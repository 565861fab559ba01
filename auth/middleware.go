package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ggoodman/casting-api/internal/logctx"
)

// ErrorHandler writes the response for a failed authorization. err is an
// *AuthError unless something outside the taxonomy went wrong.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// Guard composes token extraction, verification and permission checks into
// HTTP middleware.
type Guard struct {
	verifier Verifier
	log      *slog.Logger
	onError  ErrorHandler
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithLogger sets the logger used for authorization events.
func WithLogger(l *slog.Logger) GuardOption {
	return func(g *Guard) { g.log = l }
}

// WithErrorHandler sets how failures are rendered. The default writes the
// status and code as plain text.
func WithErrorHandler(h ErrorHandler) GuardOption {
	return func(g *Guard) { g.onError = h }
}

// NewGuard constructs a Guard around v.
func NewGuard(v Verifier, opts ...GuardOption) *Guard {
	g := &Guard{verifier: v, log: slog.Default(), onError: plainErrorHandler}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Authorize runs the full pipeline for one request: extract, verify, check.
// The first failing step wins.
func (g *Guard) Authorize(ctx context.Context, h http.Header, permission string) (Claims, error) {
	tok, err := ExtractBearerToken(h)
	if err != nil {
		return nil, err
	}
	claims, err := g.verifier.Verify(ctx, tok)
	if err != nil {
		return nil, err
	}
	if err := CheckPermission(permission, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// Require returns middleware that only invokes next when the request carries
// a verified token granting permission. An empty permission only requires
// authentication. The verified claims are available to next through
// ClaimsFromContext.
func (g *Guard) Require(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			claims, err := g.Authorize(ctx, r.Header, permission)
			if err != nil {
				if kind, ok := KindOf(err); ok && kind == KindUpstream {
					g.log.ErrorContext(ctx, "auth.check.err", slog.String("permission", permission), slog.String("err", err.Error()))
				} else {
					g.log.InfoContext(ctx, "auth.check.fail", slog.String("permission", permission), slog.String("err", err.Error()))
				}
				g.onError(w, r, err)
				return
			}

			ctx = logctx.WithAuthData(ctx, &logctx.AuthData{Subject: claims.Subject(), Permission: permission})
			ctx = WithClaims(ctx, claims)
			g.log.DebugContext(ctx, "auth.check.ok")
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type claimsKey struct{}

// WithClaims returns a copy of ctx carrying claims.
func WithClaims(ctx context.Context, claims Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// ClaimsFromContext returns the verified claims stored by the Guard.
func ClaimsFromContext(ctx context.Context) (Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(Claims)
	return c, ok
}

func plainErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	if ae, ok := err.(*AuthError); ok {
		http.Error(w, ae.Code(), ae.StatusCode())
		return
	}
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
