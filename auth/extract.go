package auth

import (
	"net/http"
	"strings"
)

const authorizationHeader = "Authorization"

// ExtractBearerToken returns the raw compact token from an
// "Authorization: Bearer <token>" header. The token is not decoded.
func ExtractBearerToken(h http.Header) (string, error) {
	values := h.Values(authorizationHeader)
	if len(values) == 0 {
		return "", newError(KindNotFound, "Bearer Token Not Found", nil)
	}

	parts := strings.Split(values[0], " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", newError(KindInvalidToken, "Invalid Bearer Token", nil)
	}

	tok := parts[1]
	if len(strings.Split(tok, ".")) != 3 {
		return "", newError(KindInvalidToken, "Invalid Bearer Token", nil)
	}
	return tok, nil
}
