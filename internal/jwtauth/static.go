package jwtauth

import (
	"context"
	"fmt"

	"github.com/ggoodman/casting-api/internal/jwks"
)

// StaticKeys is a KeySource over a fixed kid -> public key mapping. It backs
// tests and deployments that pin keys out of band instead of fetching a JWKS.
type StaticKeys map[string]any

// Key implements KeySource.
func (s StaticKeys) Key(_ context.Context, kid string) (any, error) {
	k, ok := s[kid]
	if !ok {
		return nil, fmt.Errorf("%w: kid %q", jwks.ErrKeyNotFound, kid)
	}
	return k, nil
}

// Ensure StaticKeys satisfies the same interface as the remote sources.
var _ KeySource = StaticKeys(nil)
