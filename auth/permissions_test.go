package auth_test

import (
	"net/http"
	"testing"

	"github.com/ggoodman/casting-api/auth"
)

func TestCheckPermission(t *testing.T) {
	tests := []struct {
		name     string
		required string
		claims   auth.Claims
		wantKind auth.Kind
	}{
		{"present", "read:movies", auth.Claims{"permissions": []any{"read:actors", "read:movies"}}, 0},
		{"present typed slice", "read:movies", auth.Claims{"permissions": []string{"read:movies"}}, 0},
		{"empty requirement with permissions", "", auth.Claims{"permissions": []any{}}, 0},
		{"empty requirement without permissions", "", auth.Claims{"sub": "x"}, 0},
		{"missing claim", "read:movies", auth.Claims{"sub": "x"}, auth.KindInvalidTokenPayload},
		{"claim not a list", "read:movies", auth.Claims{"permissions": "read:movies"}, auth.KindInvalidTokenPayload},
		{"claim with non-strings", "read:movies", auth.Claims{"permissions": []any{"read:movies", 7}}, auth.KindInvalidTokenPayload},
		{"absent permission", "delete:movies", auth.Claims{"permissions": []any{"read:movies"}}, auth.KindUnauthorized},
		{"empty permission set", "read:movies", auth.Claims{"permissions": []any{}}, auth.KindUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := auth.CheckPermission(tt.required, tt.claims)
			if tt.wantKind == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			kind, ok := auth.KindOf(err)
			if !ok || kind != tt.wantKind {
				t.Fatalf("want %s, got %v", tt.wantKind, err)
			}
		})
	}
}

func TestCheckPermission_Status(t *testing.T) {
	err := auth.CheckPermission("delete:movies", auth.Claims{"permissions": []any{"read:movies"}})
	ae, ok := err.(*auth.AuthError)
	if !ok {
		t.Fatalf("want *AuthError, got %T", err)
	}
	if ae.StatusCode() != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", ae.StatusCode())
	}

	err = auth.CheckPermission("read:movies", auth.Claims{})
	ae, ok = err.(*auth.AuthError)
	if !ok || ae.StatusCode() != http.StatusUnauthorized {
		t.Fatalf("want 401 for missing permissions, got %v", err)
	}
}

func TestClaims_Accessors(t *testing.T) {
	c := auth.Claims{"sub": "auth0|1", "permissions": []any{"a", "b"}}
	if c.Subject() != "auth0|1" {
		t.Fatalf("subject = %q", c.Subject())
	}
	if !c.HasPermission("b") || c.HasPermission("c") {
		t.Fatalf("HasPermission mismatch")
	}
	if (auth.Claims{}).Subject() != "" {
		t.Fatalf("empty claims should have empty subject")
	}
}
