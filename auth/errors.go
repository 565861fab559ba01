package auth

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the closed set of authorization failure categories.
type Kind int

const (
	// KindNotFound: no Authorization header was supplied.
	KindNotFound Kind = iota + 1
	// KindInvalidToken: the header is not "Bearer <a.b.c>".
	KindInvalidToken
	// KindInvalidTokenHeader: kid/typ/alg missing or not acceptable.
	KindInvalidTokenHeader
	// KindInvalidHeader: no matching key, or the token could not be parsed.
	KindInvalidHeader
	// KindTokenExpired: signature valid but exp has passed.
	KindTokenExpired
	// KindInvalidClaims: audience, issuer or another claim is wrong.
	KindInvalidClaims
	// KindInvalidTokenPayload: the permissions claim is missing or malformed.
	KindInvalidTokenPayload
	// KindUnauthorized: authenticated, but lacking the required permission.
	KindUnauthorized
	// KindUpstream: the identity provider's key set could not be obtained.
	// This is not a credential problem and maps to a 5xx status.
	KindUpstream
)

// Code returns the machine-readable error code for k.
func (k Kind) Code() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidToken:
		return "invalid_token"
	case KindInvalidTokenHeader:
		return "invalid_token_header"
	case KindInvalidHeader:
		return "invalid_header"
	case KindTokenExpired:
		return "token_expired"
	case KindInvalidClaims:
		return "invalid_claims"
	case KindInvalidTokenPayload:
		return "invalid_token_payload"
	case KindUnauthorized:
		return "unauthorized"
	case KindUpstream:
		return "upstream_unavailable"
	}
	return "unknown"
}

// Status returns the HTTP status code carried by k.
func (k Kind) Status() int {
	switch k {
	case KindNotFound, KindInvalidToken, KindInvalidTokenHeader, KindInvalidHeader,
		KindTokenExpired, KindInvalidClaims, KindInvalidTokenPayload:
		return http.StatusUnauthorized
	case KindUnauthorized:
		return http.StatusForbidden
	case KindUpstream:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (k Kind) String() string { return k.Code() }

// AuthError is a classified authorization failure.
type AuthError struct {
	Kind        Kind
	Description string
	// Err is the underlying cause, if any. It is never shown to clients.
	Err error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind.Code(), e.Description, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind.Code(), e.Description)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Code returns the machine-readable error code.
func (e *AuthError) Code() string { return e.Kind.Code() }

// StatusCode returns the HTTP status the failure maps to.
func (e *AuthError) StatusCode() int { return e.Kind.Status() }

// Is lets errors.Is match on kind: errors.Is(err, &AuthError{Kind: KindTokenExpired}).
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	return ok && t.Description == "" && t.Err == nil && t.Kind == e.Kind
}

// ErrorPayload is the client-facing body of an AuthError.
type ErrorPayload struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Payload returns the client-facing representation of e.
func (e *AuthError) Payload() ErrorPayload {
	return ErrorPayload{Code: e.Kind.Code(), Description: e.Description}
}

func newError(kind Kind, description string, cause error) *AuthError {
	return &AuthError{Kind: kind, Description: description, Err: cause}
}

// KindOf returns the Kind of the first *AuthError in err's chain.
func KindOf(err error) (Kind, bool) {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Kind, true
	}
	return 0, false
}
