package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ggoodman/casting-api/internal/jwks"
)

// SecurityConfig describes how this API validates bearer tokens issued by a
// single identity provider.
//
// A zero value is invalid; populate Domain and Audience and call Normalize.
type SecurityConfig struct {
	// Domain is the identity provider host, e.g. "tenant.auth0.com".
	Domain string
	// Audience is the expected "aud" claim (the API identifier).
	Audience string
	// Algorithm is the single accepted signing algorithm (default RS256).
	Algorithm string
	// Issuer overrides the expected "iss" claim. Defaults to "https://<Domain>/".
	Issuer string
	// JWKSURL overrides the key set location. Defaults to
	// "https://<Domain>/.well-known/jwks.json".
	JWKSURL string
	// Leeway tolerates clock skew on time-based claims.
	Leeway time.Duration
}

// Normalize fills derived fields and defaults.
func (c *SecurityConfig) Normalize() {
	c.Domain = strings.TrimSuffix(strings.TrimPrefix(c.Domain, "https://"), "/")
	if c.Algorithm == "" {
		c.Algorithm = "RS256"
	}
	if c.Issuer == "" && c.Domain != "" {
		c.Issuer = "https://" + c.Domain + "/"
	}
	if c.JWKSURL == "" && c.Domain != "" {
		c.JWKSURL = jwks.URL(c.Domain)
	}
}

// Validate returns an error if required invariants are not met.
func (c SecurityConfig) Validate() error {
	if c.Issuer == "" {
		return errors.New("security: domain or issuer required")
	}
	if c.Audience == "" {
		return errors.New("security: audience required")
	}
	if c.Algorithm == "none" || jwt.GetSigningMethod(c.Algorithm) == nil {
		return fmt.Errorf("security: unsupported algorithm %q", c.Algorithm)
	}
	if c.Leeway < 0 {
		return errors.New("security: leeway must not be negative")
	}
	return nil
}
