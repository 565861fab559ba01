package auth_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/ggoodman/casting-api/auth"
)

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name     string
		header   []string
		wantTok  string
		wantKind auth.Kind
	}{
		{name: "missing header", header: nil, wantKind: auth.KindNotFound},
		{name: "empty value", header: []string{""}, wantKind: auth.KindInvalidToken},
		{name: "wrong scheme", header: []string{"Basic a.b.c"}, wantKind: auth.KindInvalidToken},
		{name: "lowercase scheme", header: []string{"bearer a.b.c"}, wantKind: auth.KindInvalidToken},
		{name: "missing token", header: []string{"Bearer"}, wantKind: auth.KindInvalidToken},
		{name: "extra parts", header: []string{"Bearer a.b.c extra"}, wantKind: auth.KindInvalidToken},
		{name: "double space", header: []string{"Bearer  a.b.c"}, wantKind: auth.KindInvalidToken},
		{name: "two segments", header: []string{"Bearer a.b"}, wantKind: auth.KindInvalidToken},
		{name: "four segments", header: []string{"Bearer a.b.c.d"}, wantKind: auth.KindInvalidToken},
		{name: "ok", header: []string{"Bearer aaa.bbb.ccc"}, wantTok: "aaa.bbb.ccc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for _, v := range tt.header {
				h.Add("Authorization", v)
			}
			tok, err := auth.ExtractBearerToken(h)
			if tt.wantKind == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if tok != tt.wantTok {
					t.Fatalf("token = %q, want %q", tok, tt.wantTok)
				}
				return
			}
			var ae *auth.AuthError
			if !errors.As(err, &ae) {
				t.Fatalf("want *AuthError, got %v", err)
			}
			if ae.Kind != tt.wantKind {
				t.Fatalf("kind = %s, want %s", ae.Kind, tt.wantKind)
			}
			if ae.StatusCode() != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", ae.StatusCode())
			}
		})
	}
}
