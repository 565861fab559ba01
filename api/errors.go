package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ggoodman/casting-api/auth"
)

// Error codes for failures outside the auth taxonomy.
const (
	codeBadRequest           = "bad_request"
	codeNotFound             = "resource_not_found"
	codeUnsupportedMediaType = "unsupported_media_type"
	codeBodyTooLarge         = "request_too_large"
	codeMethodNotAllowed     = "method_not_allowed"
	codeServiceUnavailable   = "service_unavailable"
	codeInternal             = "internal_error"
)

const (
	wwwAuthenticateHeader = "WWW-Authenticate"
	requestIDHeader       = "X-Request-Id"
)

type errorPayload struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type errorEnvelope struct {
	Success bool         `json:"success"`
	Error   errorPayload `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", jsonMediaType.String())
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError emits {"success":false,"error":{"code","description"}}.
func writeError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, errorEnvelope{Error: errorPayload{Code: code, Description: description}})
}

// writeAuthError renders a Guard rejection. Credential failures carry a
// Bearer challenge; an unreachable identity provider is reported as 503 and
// never as a credential problem.
func (h *Handler) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	var ae *auth.AuthError
	if !errors.As(err, &ae) {
		h.log.ErrorContext(r.Context(), "auth.error.unclassified", slog.String("err", err.Error()))
		writeError(w, http.StatusInternalServerError, codeInternal, "Internal server error.")
		return
	}

	switch ae.Kind {
	case auth.KindNotFound:
		w.Header().Add(wwwAuthenticateHeader, buildBearerChallenge(h.realm, h.prmURL, nil))
	case auth.KindInvalidToken, auth.KindInvalidTokenHeader, auth.KindInvalidHeader,
		auth.KindTokenExpired, auth.KindInvalidClaims, auth.KindInvalidTokenPayload:
		w.Header().Add(wwwAuthenticateHeader, buildBearerChallenge(h.realm, h.prmURL, map[string]string{
			"error":             "invalid_token",
			"error_description": ae.Description,
		}))
	case auth.KindUnauthorized:
		w.Header().Add(wwwAuthenticateHeader, buildBearerChallenge(h.realm, h.prmURL, map[string]string{
			"error":             "insufficient_scope",
			"error_description": ae.Description,
		}))
	case auth.KindUpstream:
		w.Header().Set("Retry-After", "5")
	default:
		h.log.ErrorContext(r.Context(), "auth.error.unknown_kind", slog.Int("kind", int(ae.Kind)))
		writeError(w, http.StatusInternalServerError, codeInternal, "Internal server error.")
		return
	}
	p := ae.Payload()
	writeError(w, ae.StatusCode(), p.Code, p.Description)
}

// buildBearerChallenge builds a Bearer challenge header value:
//
//	Bearer realm="<realm>", resource_metadata="<url>", error="...", error_description="..."
//
// Realm and resource_metadata are omitted if empty.
func buildBearerChallenge(realm, resourceMetadata string, params map[string]string) string {
	esc := func(v string) string { return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(v) }
	var pieces []string
	if realm != "" {
		pieces = append(pieces, fmt.Sprintf(`realm="%s"`, esc(realm)))
	}
	if resourceMetadata != "" {
		pieces = append(pieces, fmt.Sprintf(`resource_metadata="%s"`, esc(resourceMetadata)))
	}
	for _, k := range []string{"error", "error_description", "scope"} {
		if v, ok := params[k]; ok {
			pieces = append(pieces, fmt.Sprintf(`%s="%s"`, k, esc(v)))
		}
	}
	if len(pieces) == 0 {
		return "Bearer"
	}
	return "Bearer " + strings.Join(pieces, ", ")
}
