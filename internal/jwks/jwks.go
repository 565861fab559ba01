// Package jwks fetches and holds an identity provider's published signing keys.
package jwks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	jose "github.com/go-jose/go-jose/v4"
)

// ErrKeyNotFound is returned when the key set has no key for the requested kid.
var ErrKeyNotFound = errors.New("jwks: key not found")

// ErrUnavailable indicates the key set could not be obtained from the identity
// provider (network failure, timeout, non-2xx status or malformed document).
var ErrUnavailable = errors.New("jwks: key set unavailable")

// KeySource resolves a key identifier to a public verification key.
type KeySource interface {
	Key(ctx context.Context, kid string) (any, error)
}

// URL returns the conventional JWKS location for an identity provider domain.
func URL(domain string) string {
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimSuffix(domain, "/")
	return "https://" + domain + "/.well-known/jwks.json"
}

// SigningKey is one verification key from a published key set.
type SigningKey struct {
	KeyID     string
	KeyType   string
	Use       string
	Algorithm string
	// Public is the decoded key material, e.g. *rsa.PublicKey.
	Public any
}

// KeySet is an immutable snapshot of a published key set indexed by kid.
type KeySet struct {
	keys      map[string]SigningKey
	fetchedAt time.Time
}

// Lookup returns the key registered under kid.
func (s *KeySet) Lookup(kid string) (SigningKey, bool) {
	if s == nil {
		return SigningKey{}, false
	}
	k, ok := s.keys[kid]
	return k, ok
}

// Len reports the number of usable keys in the set.
func (s *KeySet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// FetchedAt is the time the snapshot was retrieved.
func (s *KeySet) FetchedAt() time.Time { return s.fetchedAt }

// ParseKeySet decodes a JWKS document. Keys that cannot be decoded, that carry
// no kid, that are marked for encryption or that are symmetric are skipped so
// that one exotic entry does not poison the whole set.
func ParseKeySet(b []byte) (*KeySet, error) {
	var doc struct {
		Keys []json.RawMessage `json:"keys"`
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("decode jwks: %w", err)
	}
	if doc.Keys == nil {
		return nil, errors.New("decode jwks: missing keys member")
	}

	set := &KeySet{keys: make(map[string]SigningKey, len(doc.Keys)), fetchedAt: time.Now()}
	for _, raw := range doc.Keys {
		var meta struct {
			Kty string `json:"kty"`
		}
		if err := json.Unmarshal(raw, &meta); err != nil {
			continue
		}
		var jwk jose.JSONWebKey
		if err := jwk.UnmarshalJSON(raw); err != nil {
			continue
		}
		if jwk.KeyID == "" || (jwk.Use != "" && jwk.Use != "sig") {
			continue
		}
		if !jwk.IsPublic() {
			jwk = jwk.Public()
		}
		if !jwk.Valid() {
			continue
		}
		set.keys[jwk.KeyID] = SigningKey{
			KeyID:     jwk.KeyID,
			KeyType:   meta.Kty,
			Use:       jwk.Use,
			Algorithm: jwk.Algorithm,
			Public:    jwk.Key,
		}
	}
	return set, nil
}
