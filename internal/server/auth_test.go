package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAuthMiddleware_DisabledPassesThrough(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	authMiddleware("", okHandler).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/generate", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 with auth disabled", w.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		headers   map[string]string
		wantCode  int
		wantError string
		wantChall string
	}{
		{
			name:     "bearer token",
			headers:  map[string]string{"Authorization": "Bearer secret"},
			wantCode: http.StatusOK,
		},
		{
			name:     "lowercase scheme",
			headers:  map[string]string{"Authorization": "bearer secret"},
			wantCode: http.StatusOK,
		},
		{
			name:     "api key header",
			headers:  map[string]string{"X-API-Key": "secret"},
			wantCode: http.StatusOK,
		},
		{
			name:      "missing",
			wantCode:  http.StatusUnauthorized,
			wantError: "Authorization required",
			wantChall: `Bearer realm="docai"`,
		},
		{
			name:      "basic scheme",
			headers:   map[string]string{"Authorization": "Basic dXNlcjpwYXNz"},
			wantCode:  http.StatusUnauthorized,
			wantError: "Authorization required",
		},
		{
			name:      "wrong bearer",
			headers:   map[string]string{"Authorization": "Bearer nope"},
			wantCode:  http.StatusUnauthorized,
			wantError: "Invalid API key",
			wantChall: `error="invalid_token"`,
		},
		{
			name:      "wrong bearer beats right api key header",
			headers:   map[string]string{"Authorization": "Bearer nope", "X-API-Key": "secret"},
			wantCode:  http.StatusUnauthorized,
			wantError: "Invalid API key",
		},
		{
			name:      "key prefix",
			headers:   map[string]string{"X-API-Key": "secre"},
			wantCode:  http.StatusUnauthorized,
			wantError: "Invalid API key",
		},
	}

	h := authMiddleware("secret", okHandler)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodPost, "/upload", nil)
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tc.wantCode)
			}
			if tc.wantChall != "" && !strings.Contains(w.Header().Get("WWW-Authenticate"), tc.wantChall) {
				t.Errorf("WWW-Authenticate = %q, want it to contain %q", w.Header().Get("WWW-Authenticate"), tc.wantChall)
			}
			if tc.wantError == "" {
				return
			}
			var body errorResponse
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error != tc.wantError {
				t.Errorf("error = %q, want %q", body.Error, tc.wantError)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Bearer mytoken":     "mytoken",
		"BEARER mytoken":     "mytoken",
		"Bearer  spaced ":    "spaced",
		"Basic dXNlcjpwYXNz": "",
		"Bearer":             "",
		"":                   "",
	}
	for header, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		if got := bearerToken(req); got != want {
			t.Errorf("bearerToken(%q) = %q, want %q", header, got, want)
		}
	}
}
