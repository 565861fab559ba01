package auth_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/ggoodman/casting-api/auth"
)

func TestKind_CodeAndStatus(t *testing.T) {
	tests := []struct {
		kind   auth.Kind
		code   string
		status int
	}{
		{auth.KindNotFound, "not_found", http.StatusUnauthorized},
		{auth.KindInvalidToken, "invalid_token", http.StatusUnauthorized},
		{auth.KindInvalidTokenHeader, "invalid_token_header", http.StatusUnauthorized},
		{auth.KindInvalidHeader, "invalid_header", http.StatusUnauthorized},
		{auth.KindTokenExpired, "token_expired", http.StatusUnauthorized},
		{auth.KindInvalidClaims, "invalid_claims", http.StatusUnauthorized},
		{auth.KindInvalidTokenPayload, "invalid_token_payload", http.StatusUnauthorized},
		{auth.KindUnauthorized, "unauthorized", http.StatusForbidden},
		{auth.KindUpstream, "upstream_unavailable", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		if got := tt.kind.Code(); got != tt.code {
			t.Errorf("%d.Code() = %q, want %q", tt.kind, got, tt.code)
		}
		if got := tt.kind.Status(); got != tt.status {
			t.Errorf("%s.Status() = %d, want %d", tt.kind, got, tt.status)
		}
	}
	if auth.Kind(0).Status() != http.StatusInternalServerError {
		t.Errorf("zero kind must not map to a client error")
	}
}

func TestAuthError_Matching(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("wrapped: %w", &auth.AuthError{Kind: auth.KindTokenExpired, Description: "Token expired.", Err: cause})

	if !errors.Is(err, &auth.AuthError{Kind: auth.KindTokenExpired}) {
		t.Fatalf("errors.Is should match on kind")
	}
	if errors.Is(err, &auth.AuthError{Kind: auth.KindInvalidClaims}) {
		t.Fatalf("errors.Is matched the wrong kind")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("cause should be reachable through Unwrap")
	}
	kind, ok := auth.KindOf(err)
	if !ok || kind != auth.KindTokenExpired {
		t.Fatalf("KindOf = %v, %v", kind, ok)
	}
	if _, ok := auth.KindOf(cause); ok {
		t.Fatalf("KindOf matched a plain error")
	}

	var ae *auth.AuthError
	_ = errors.As(err, &ae)
	if p := ae.Payload(); p.Code != "token_expired" || p.Description != "Token expired." {
		t.Fatalf("payload = %+v", p)
	}
}
