package auth_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ggoodman/casting-api/auth"
	"github.com/ggoodman/casting-api/auth/authtest"
	"github.com/ggoodman/casting-api/internal/jwks"
)

func newCachedVerifier(t *testing.T, iss *authtest.Issuer) auth.Verifier {
	t.Helper()
	cache, err := jwks.NewCache(jwks.DefaultConfig(iss.JWKSURL()))
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	v, err := auth.NewVerifier(iss.SecurityConfig(), cache)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	return v
}

func TestNewVerifier_ValidToken(t *testing.T) {
	iss := authtest.NewIssuer(t)
	v := newCachedVerifier(t, iss)

	claims, err := v.Verify(context.Background(), iss.Token(t, "auth0|user-123", "read:movies"))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject() != "auth0|user-123" {
		t.Fatalf("subject = %q", claims.Subject())
	}
	if !claims.HasPermission("read:movies") {
		t.Fatalf("permissions lost: %v", claims["permissions"])
	}

	// A second verification is served from the cached key set.
	if _, err := v.Verify(context.Background(), iss.Token(t, "auth0|user-123")); err != nil {
		t.Fatalf("second verify: %v", err)
	}
	if hits := iss.JWKSHits(); hits != 1 {
		t.Fatalf("jwks fetched %d times, want 1", hits)
	}
}

func TestNewVerifier_Failures(t *testing.T) {
	iss := authtest.NewIssuer(t)
	v := newCachedVerifier(t, iss)

	other := authtest.NewIssuer(t)
	other.KeyID = "K2"

	tests := []struct {
		name string
		tok  func(t *testing.T) string
		want auth.Kind
	}{
		{"expired", func(t *testing.T) string {
			c := iss.Claims("u")
			c["exp"] = time.Now().Add(-time.Minute).Unix()
			return iss.Sign(t, c)
		}, auth.KindTokenExpired},
		{"wrong audience", func(t *testing.T) string {
			c := iss.Claims("u")
			c["aud"] = "https://other.example.com"
			return iss.Sign(t, c)
		}, auth.KindInvalidClaims},
		{"wrong issuer", func(t *testing.T) string {
			c := iss.Claims("u")
			c["iss"] = "https://evil.example.com/"
			return iss.Sign(t, c)
		}, auth.KindInvalidClaims},
		{"unknown kid", func(t *testing.T) string {
			return other.Sign(t, iss.Claims("u"))
		}, auth.KindInvalidHeader},
		{"alg mismatch", func(t *testing.T) string {
			tok := jwt.NewWithClaims(jwt.SigningMethodHS256, iss.Claims("u"))
			tok.Header["kid"] = iss.KeyID
			s, err := tok.SignedString([]byte("0123456789abcdef0123456789abcdef"))
			if err != nil {
				t.Fatalf("sign: %v", err)
			}
			return s
		}, auth.KindInvalidTokenHeader},
		{"garbage", func(t *testing.T) string { return "aaa.bbb.ccc" }, auth.KindInvalidHeader},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), tt.tok(t))
			kind, ok := auth.KindOf(err)
			if !ok || kind != tt.want {
				t.Fatalf("want %s, got %v", tt.want, err)
			}
		})
	}
}

func TestNewVerifier_UpstreamFailure(t *testing.T) {
	iss := authtest.NewIssuer(t)
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(down.Close)

	cache, err := jwks.NewCache(jwks.DefaultConfig(down.URL + "/.well-known/jwks.json"))
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	v, err := auth.NewVerifier(iss.SecurityConfig(), cache)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	_, err = v.Verify(context.Background(), iss.Token(t, "u", "read:movies"))
	kind, ok := auth.KindOf(err)
	if !ok || kind != auth.KindUpstream {
		t.Fatalf("want upstream failure, got %v", err)
	}
	if kind.Status() != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", kind.Status())
	}
}

func TestNewVerifier_Config(t *testing.T) {
	iss := authtest.NewIssuer(t)
	tests := map[string]auth.SecurityConfig{
		"no domain":   {Audience: "a"},
		"no audience": {Domain: "tenant.auth0.com"},
		"none alg":    {Domain: "tenant.auth0.com", Audience: "a", Algorithm: "none"},
		"unknown alg": {Domain: "tenant.auth0.com", Audience: "a", Algorithm: "XX1"},
		"neg leeway":  {Domain: "tenant.auth0.com", Audience: "a", Leeway: -time.Second},
	}
	for name, cfg := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := auth.NewVerifier(cfg, iss.Keys()); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestSecurityConfig_Normalize(t *testing.T) {
	cfg := auth.SecurityConfig{Domain: "https://example.auth0.com/", Audience: "https://api.example.com"}
	cfg.Normalize()
	if cfg.Domain != "example.auth0.com" {
		t.Fatalf("domain = %q", cfg.Domain)
	}
	if cfg.Algorithm != "RS256" {
		t.Fatalf("algorithm = %q", cfg.Algorithm)
	}
	if cfg.Issuer != "https://example.auth0.com/" {
		t.Fatalf("issuer = %q", cfg.Issuer)
	}
	if cfg.JWKSURL != "https://example.auth0.com/.well-known/jwks.json" {
		t.Fatalf("jwks url = %q", cfg.JWKSURL)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

// A K1-signed RS256 token for example.auth0.com carrying read:movies is
// accepted end to end and the permission check passes.
func TestAuth0Scenario(t *testing.T) {
	iss := authtest.NewIssuer(t)
	cfg := auth.SecurityConfig{Domain: "example.auth0.com", Audience: "https://api.example.com", Algorithm: "RS256"}
	v, err := auth.NewVerifier(cfg, iss.Keys())
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	tok := iss.Sign(t, jwt.MapClaims{
		"permissions": []string{"read:movies"},
		"aud":         "https://api.example.com",
		"iss":         "https://example.auth0.com/",
		"exp":         time.Now().Add(time.Hour).Unix(),
	})

	h := http.Header{}
	h.Set("Authorization", authtest.Bearer(tok))
	claims, err := auth.NewGuard(v).Authorize(context.Background(), h, "read:movies")
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if got := fmt.Sprint(claims["permissions"]); got != "[read:movies]" {
		t.Fatalf("permissions = %s", got)
	}
}
