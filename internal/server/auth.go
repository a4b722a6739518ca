package server

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/54b3r/docai-go/internal/logging"
)

// apiKeyHeader is accepted in place of a Bearer token, for clients that
// cannot set Authorization on multipart uploads.
const apiKeyHeader = "X-API-Key"

// authMiddleware guards next with the configured API key. An empty apiKey
// disables the check; New logs that once at startup.
//
// The key is read from "Authorization: Bearer <key>" or, failing that, from
// X-API-Key. Rejections answer 401 with a JSON error body and a Bearer
// challenge. Presented credentials are never logged.
func authMiddleware(apiKey string, next http.Handler) http.Handler {
	if apiKey == "" {
		return next
	}
	want := []byte(apiKey)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := requestCredential(r)
		switch {
		case got == "":
			logging.FromContext(r.Context()).Warn("auth: credential missing", slog.String("path", r.URL.Path))
			w.Header().Set("WWW-Authenticate", `Bearer realm="docai"`)
			writeJSONError(w, r, http.StatusUnauthorized, "Authorization required", "")
		case subtle.ConstantTimeCompare([]byte(got), want) != 1:
			logging.FromContext(r.Context()).Warn("auth: credential rejected", slog.String("path", r.URL.Path))
			w.Header().Set("WWW-Authenticate", `Bearer realm="docai", error="invalid_token"`)
			writeJSONError(w, r, http.StatusUnauthorized, "Invalid API key", "")
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// requestCredential returns the Bearer token, else the X-API-Key value.
func requestCredential(r *http.Request) string {
	if tok := bearerToken(r); tok != "" {
		return tok
	}
	return strings.TrimSpace(r.Header.Get(apiKeyHeader))
}

// bearerToken returns the token of an "Authorization: Bearer <token>"
// header, matching the scheme case-insensitively. Anything else is "".
func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
