// Package authtest provides test doubles for the auth package: an in-process
// identity provider that publishes a JWKS and mints signed tokens, and a
// static Verifier that skips cryptography entirely.
package authtest

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"

	"github.com/ggoodman/casting-api/auth"
)

// DefaultAudience is the audience Issuer mints tokens for unless overridden.
const DefaultAudience = "https://api.example.com"

// Issuer is a fake identity provider. It serves
// /.well-known/jwks.json from an httptest server and signs RS256 tokens.
type Issuer struct {
	KeyID    string
	Audience string

	key  *rsa.PrivateKey
	srv  *httptest.Server
	hits atomic.Int32
}

// NewIssuer starts an Issuer that is shut down when t finishes.
func NewIssuer(t testing.TB) *Issuer {
	t.Helper()
	pk, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("gen key: %v", err)
	}
	iss := &Issuer{KeyID: "K1", Audience: DefaultAudience, key: pk}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/jwks.json", func(w http.ResponseWriter, r *http.Request) {
		iss.hits.Add(1)
		set := jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
			Key:       &iss.key.PublicKey,
			KeyID:     iss.KeyID,
			Algorithm: "RS256",
			Use:       "sig",
		}}}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(set)
	})
	iss.srv = httptest.NewServer(mux)
	t.Cleanup(iss.srv.Close)
	return iss
}

// URL is the base URL of the fake provider; it doubles as the issuer claim
// prefix.
func (i *Issuer) URL() string { return i.srv.URL }

// IssuerClaim is the "iss" value minted tokens carry.
func (i *Issuer) IssuerClaim() string { return i.srv.URL + "/" }

// JWKSURL is the location of the published key set.
func (i *Issuer) JWKSURL() string { return i.srv.URL + "/.well-known/jwks.json" }

// JWKSHits reports how many times the key set was fetched.
func (i *Issuer) JWKSHits() int { return int(i.hits.Load()) }

// SecurityConfig returns a config that accepts tokens minted by i.
func (i *Issuer) SecurityConfig() auth.SecurityConfig {
	return auth.SecurityConfig{
		Audience:  i.Audience,
		Algorithm: "RS256",
		Issuer:    i.IssuerClaim(),
		JWKSURL:   i.JWKSURL(),
	}
}

// Keys returns a KeySource that resolves i's signing key without HTTP.
func (i *Issuer) Keys() auth.KeySource {
	return staticKeys{kid: i.KeyID, key: &i.key.PublicKey}
}

// Claims returns a valid claim set for sub carrying perms.
func (i *Issuer) Claims(sub string, perms ...string) jwt.MapClaims {
	now := time.Now()
	if perms == nil {
		perms = []string{}
	}
	return jwt.MapClaims{
		"iss":         i.IssuerClaim(),
		"sub":         sub,
		"aud":         i.Audience,
		"iat":         now.Unix(),
		"exp":         now.Add(time.Hour).Unix(),
		"permissions": perms,
	}
}

// Token mints a token for sub with perms.
func (i *Issuer) Token(t testing.TB, sub string, perms ...string) string {
	t.Helper()
	return i.Sign(t, i.Claims(sub, perms...))
}

// Sign signs arbitrary claims with i's key and kid.
func (i *Issuer) Sign(t testing.TB, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = i.KeyID
	s, err := tok.SignedString(i.key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

// Bearer formats tok as an Authorization header value.
func Bearer(tok string) string { return "Bearer " + tok }

type staticKeys struct {
	kid string
	key any
}

func (s staticKeys) Key(_ context.Context, kid string) (any, error) {
	if kid != s.kid {
		return nil, auth.ErrKeyNotFound
	}
	return s.key, nil
}

// StaticVerifier is a Verifier that accepts exactly the tokens in its map and
// rejects everything else as unparseable.
type StaticVerifier map[string]auth.Claims

// Verify implements auth.Verifier.
func (s StaticVerifier) Verify(_ context.Context, tok string) (auth.Claims, error) {
	if c, ok := s[tok]; ok {
		return c, nil
	}
	return nil, &auth.AuthError{Kind: auth.KindInvalidHeader, Description: "Unable to parse authentication token."}
}

// ErrorVerifier is a Verifier that always fails with Err.
type ErrorVerifier struct{ Err error }

// Verify implements auth.Verifier.
func (e ErrorVerifier) Verify(context.Context, string) (auth.Claims, error) {
	return nil, e.Err
}
