package server

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/54b3r/docvec-go/internal/logging"
)

// requireAPIKey guards the /documents tree with a static Bearer token. An
// empty apiKey disables the check; New logs that once at startup.
//
// Failures answer 401 with a WWW-Authenticate challenge and the same
// {"detail": ...} body as every other API error. The presented token is
// never logged.
func requireAPIKey(apiKey string, next http.Handler) http.Handler {
	if apiKey == "" {
		return next
	}
	want := []byte(apiKey)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		switch {
		case !ok:
			logging.FromContext(r.Context()).Warn("auth: missing bearer token")
			w.Header().Set("WWW-Authenticate", `Bearer realm="docvec"`)
			writeError(r.Context(), w, http.StatusUnauthorized, "authorization required")
		case subtle.ConstantTimeCompare([]byte(token), want) != 1:
			logging.FromContext(r.Context()).Warn("auth: rejected token", slog.Int("token_len", len(token)))
			w.Header().Set("WWW-Authenticate", `Bearer realm="docvec", error="invalid_token"`)
			writeError(r.Context(), w, http.StatusUnauthorized, "invalid token")
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// bearerToken parses an Authorization header value of the form
// "Bearer <token>". The scheme is case-insensitive.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
