package jwtauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ggoodman/casting-api/internal/jwks"
)

// Config controls validation behavior for bearer tokens.
type Config struct {
	// Issuer is the exact expected "iss" claim, e.g. "https://tenant.auth0.com/".
	Issuer string
	// Audience is the expected "aud" claim.
	Audience string
	// Algorithm is the single accepted JWS algorithm. It is pinned both when
	// validating the header and when verifying the signature.
	Algorithm string
	// Leeway tolerates clock skew when validating exp/nbf/iat.
	Leeway time.Duration
}

// DefaultConfig returns a Config with RS256 pinned and no leeway.
func DefaultConfig() *Config {
	return &Config{Algorithm: "RS256"}
}

// KeySource resolves the verification key for a kid. Implementations return
// an error wrapping jwks.ErrKeyNotFound for unknown kids and jwks.ErrUnavailable
// when the key set cannot be obtained.
type KeySource = jwks.KeySource

var (
	// ErrInvalidHeader indicates missing or mismatched kid/typ/alg header fields.
	ErrInvalidHeader = errors.New("jwtauth: invalid token header")
	// ErrKeyNotFound indicates the header kid matched no published key.
	ErrKeyNotFound = errors.New("jwtauth: signing key not found")
	// ErrExpired indicates a correctly signed token whose exp has passed.
	ErrExpired = errors.New("jwtauth: token expired")
	// ErrInvalidClaims indicates an audience, issuer or other claim policy violation.
	ErrInvalidClaims = errors.New("jwtauth: invalid claims")
	// ErrMalformed covers every other decode or signature failure.
	ErrMalformed = errors.New("jwtauth: unable to parse token")
	// ErrKeySetUnavailable indicates the identity provider could not be reached.
	ErrKeySetUnavailable = errors.New("jwtauth: key set unavailable")
)

// Verifier validates compact JWS bearer tokens against a KeySource.
type Verifier struct {
	cfg    Config
	keys   KeySource
	parser *jwt.Parser
}

// New constructs a Verifier. The issuer, audience and algorithm are required.
func New(cfg *Config, keys KeySource) (*Verifier, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if keys == nil {
		return nil, errors.New("key source is required")
	}
	if cfg.Issuer == "" {
		return nil, errors.New("issuer is required")
	}
	if cfg.Audience == "" {
		return nil, errors.New("audience is required")
	}
	if cfg.Algorithm == "" || cfg.Algorithm == "none" {
		return nil, fmt.Errorf("unsupported algorithm %q", cfg.Algorithm)
	}
	if jwt.GetSigningMethod(cfg.Algorithm) == nil {
		return nil, fmt.Errorf("unsupported algorithm %q", cfg.Algorithm)
	}

	return &Verifier{
		cfg:  *cfg,
		keys: keys,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{cfg.Algorithm}),
			jwt.WithIssuer(cfg.Issuer),
			jwt.WithAudience(cfg.Audience),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(cfg.Leeway),
		),
	}, nil
}

// Header is the decoded, unverified first token segment.
type Header struct {
	KeyID     string
	Type      string
	Algorithm string
}

// Verify validates tok and returns its decoded claims. Header checks always
// run before any key lookup or signature verification.
func (v *Verifier) Verify(ctx context.Context, tok string) (map[string]any, error) {
	hdr, err := v.UnverifiedHeader(tok)
	if err != nil {
		return nil, err
	}
	if err := v.checkHeader(hdr); err != nil {
		return nil, err
	}

	key, err := v.keys.Key(ctx, hdr.KeyID)
	if err != nil {
		if errors.Is(err, jwks.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrKeyNotFound, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrKeySetUnavailable, err)
	}

	parsed, err := v.parser.Parse(tok, func(*jwt.Token) (any, error) { return key, nil })
	if err != nil {
		return nil, classify(err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected claims type %T", ErrMalformed, parsed.Claims)
	}
	return map[string]any(claims), nil
}

// UnverifiedHeader decodes the first segment of tok without checking the
// signature.
func (v *Verifier) UnverifiedHeader(tok string) (Header, error) {
	parts := strings.Split(tok, ".")
	if len(parts) != 3 {
		return Header{}, fmt.Errorf("%w: token must have 3 segments", ErrMalformed)
	}
	raw, err := v.parser.DecodeSegment(parts[0])
	if err != nil {
		return Header{}, fmt.Errorf("%w: header segment: %v", ErrMalformed, err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Header{}, fmt.Errorf("%w: header segment: %v", ErrMalformed, err)
	}
	var hdr Header
	hdr.KeyID, _ = fields["kid"].(string)
	hdr.Type, _ = fields["typ"].(string)
	hdr.Algorithm, _ = fields["alg"].(string)
	return hdr, nil
}

func (v *Verifier) checkHeader(hdr Header) error {
	switch {
	case hdr.KeyID == "":
		return fmt.Errorf("%w: missing kid", ErrInvalidHeader)
	case hdr.Type == "":
		return fmt.Errorf("%w: missing typ", ErrInvalidHeader)
	case hdr.Algorithm == "":
		return fmt.Errorf("%w: missing alg", ErrInvalidHeader)
	case hdr.Type != "JWT":
		return fmt.Errorf("%w: typ %q, want JWT", ErrInvalidHeader, hdr.Type)
	case hdr.Algorithm != v.cfg.Algorithm:
		return fmt.Errorf("%w: alg %q, want %s", ErrInvalidHeader, hdr.Algorithm, v.cfg.Algorithm)
	}
	return nil
}

// classify maps parser failures onto the package sentinels. Expiry wins over
// other claim violations.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenInvalidAudience),
		errors.Is(err, jwt.ErrTokenInvalidIssuer),
		errors.Is(err, jwt.ErrTokenNotValidYet),
		errors.Is(err, jwt.ErrTokenUsedBeforeIssued),
		errors.Is(err, jwt.ErrTokenRequiredClaimMissing),
		errors.Is(err, jwt.ErrTokenInvalidClaims):
		return fmt.Errorf("%w: %v", ErrInvalidClaims, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}
