package jwks

import (
	"context"
	"errors"
	"fmt"

	"github.com/MicahParks/jwkset"
	keyfunc "github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// AutoRefresh is a KeySource backed by keyfunc's background-refreshing JWKS
// storage. Unknown kids trigger a rate-limited refresh inside keyfunc.
type AutoRefresh struct {
	kf  keyfunc.Keyfunc
	alg string
}

var _ KeySource = (*AutoRefresh)(nil)

// NewAutoRefresh starts refreshing url in the background for as long as ctx
// lives. alg is the single algorithm tokens are expected to be signed with.
func NewAutoRefresh(ctx context.Context, url string, alg string) (*AutoRefresh, error) {
	if url == "" {
		return nil, errors.New("jwks url is required")
	}
	if jwt.GetSigningMethod(alg) == nil {
		return nil, fmt.Errorf("unsupported algorithm %q", alg)
	}
	kf, err := keyfunc.NewDefaultCtx(ctx, []string{url})
	if err != nil {
		return nil, fmt.Errorf("%w: jwks init failed: %v", ErrUnavailable, err)
	}
	return &AutoRefresh{kf: kf, alg: alg}, nil
}

// Key implements KeySource. A kid missing from a loaded key set is
// ErrKeyNotFound even when keyfunc's refresh rate limiter refuses another
// fetch. ErrUnavailable is reserved for a key set that never loaded.
func (a *AutoRefresh) Key(ctx context.Context, kid string) (any, error) {
	// keyfunc resolves keys from a token header; hand it a synthetic one.
	tok := &jwt.Token{
		Header: map[string]any{"kid": kid, "alg": a.alg},
		Method: jwt.GetSigningMethod(a.alg),
	}
	key, err := a.kf.KeyfuncCtx(ctx)(tok)
	if err == nil {
		return key, nil
	}
	if !hasKeys(ctx, a.kf.Storage()) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if errors.Is(err, jwkset.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: kid %q", ErrKeyNotFound, kid)
	}
	// Rate-limited refresh, or a key keyfunc refuses to hand out.
	return nil, fmt.Errorf("%w: kid %q: %v", ErrKeyNotFound, kid, err)
}

// hasKeys reports whether store holds at least one fetched key.
func hasKeys(ctx context.Context, store jwkset.Storage) bool {
	keys, err := store.KeyReadAll(ctx)
	return err == nil && len(keys) > 0
}
