package auth

import (
	"context"
	"errors"

	"github.com/ggoodman/casting-api/internal/jwtauth"
)

// NewVerifier returns a Verifier that validates signed bearer tokens with the
// policy in cfg, resolving signing keys through keys.
func NewVerifier(cfg SecurityConfig, keys KeySource) (Verifier, error) {
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	jc := jwtauth.DefaultConfig()
	jc.Issuer = cfg.Issuer
	jc.Audience = cfg.Audience
	jc.Leeway = cfg.Leeway
	if cfg.Algorithm != "" {
		jc.Algorithm = cfg.Algorithm
	}
	internal, err := jwtauth.New(jc, keys)
	if err != nil {
		return nil, err
	}
	return &adapter{v: internal}, nil
}

// adapter wraps the internal verifier to satisfy the public interface.
type adapter struct {
	v *jwtauth.Verifier
}

func (ad *adapter) Verify(ctx context.Context, tok string) (Claims, error) {
	claims, err := ad.v.Verify(ctx, tok)
	if err != nil {
		// Map internal sentinel errors to the public taxonomy.
		switch {
		case errors.Is(err, jwtauth.ErrInvalidHeader):
			return nil, newError(KindInvalidTokenHeader, "Authorization malformed.", err)
		case errors.Is(err, jwtauth.ErrKeyNotFound):
			return nil, newError(KindInvalidHeader, "Unable to find the appropriate key.", err)
		case errors.Is(err, jwtauth.ErrExpired):
			return nil, newError(KindTokenExpired, "Token expired.", err)
		case errors.Is(err, jwtauth.ErrInvalidClaims):
			return nil, newError(KindInvalidClaims, "Incorrect claims. Please, check the audience and issuer.", err)
		case errors.Is(err, jwtauth.ErrKeySetUnavailable):
			return nil, newError(KindUpstream, "Unable to retrieve signing keys from the identity provider.", err)
		default:
			return nil, newError(KindInvalidHeader, "Unable to parse authentication token.", err)
		}
	}
	return Claims(claims), nil
}
