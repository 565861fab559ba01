package auth

import (
	"context"
	"fmt"
	"slices"

	"github.com/ggoodman/casting-api/internal/jwks"
)

// ErrKeyNotFound is what a KeySource returns (wrapped) for an unknown kid.
var ErrKeyNotFound = jwks.ErrKeyNotFound

// ErrKeySetUnavailable is what a KeySource returns (wrapped) when the key set
// cannot be obtained from the identity provider.
var ErrKeySetUnavailable = jwks.ErrUnavailable

// KeySource resolves a key identifier to a public verification key.
// Implementations must be safe for concurrent use.
type KeySource interface {
	Key(ctx context.Context, kid string) (any, error)
}

// Verifier validates a raw bearer token and returns its decoded claims.
// Failures are reported as *AuthError.
type Verifier interface {
	Verify(ctx context.Context, token string) (Claims, error)
}

// Claims is the decoded payload of a verified token.
type Claims map[string]any

// Subject returns the "sub" claim, or "" when absent.
func (c Claims) Subject() string {
	s, _ := c["sub"].(string)
	return s
}

// Permissions returns the "permissions" claim as a string slice. The boolean
// is false when the claim is absent or is not a list of strings.
func (c Claims) Permissions() ([]string, bool) {
	raw, ok := c["permissions"]
	if !ok {
		return nil, false
	}
	switch v := raw.(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

// HasPermission reports whether the "permissions" claim contains perm.
func (c Claims) HasPermission(perm string) bool {
	perms, _ := c.Permissions()
	return slices.Contains(perms, perm)
}

func (c Claims) String() string {
	return fmt.Sprintf("Claims{sub=%q}", c.Subject())
}
