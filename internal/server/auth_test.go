package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func serveAuth(t *testing.T, apiKey, header string) *httptest.ResponseRecorder {
	t.Helper()
	h := requireAPIKey(apiKey, okHandler)
	req := httptest.NewRequest(http.MethodGet, "/documents", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRequireAPIKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		apiKey    string
		header    string
		want      int
		challenge string
	}{
		{name: "disabled", apiKey: "", header: "", want: http.StatusOK},
		{name: "disabled ignores header", apiKey: "", header: "Bearer anything", want: http.StatusOK},
		{name: "missing header", apiKey: "secret", want: http.StatusUnauthorized, challenge: `Bearer realm="docvec"`},
		{name: "wrong token", apiKey: "secret", header: "Bearer nope", want: http.StatusUnauthorized, challenge: "invalid_token"},
		{name: "prefix of key", apiKey: "secret", header: "Bearer secre", want: http.StatusUnauthorized, challenge: "invalid_token"},
		{name: "correct", apiKey: "secret", header: "Bearer secret", want: http.StatusOK},
		{name: "lowercase scheme", apiKey: "secret", header: "bearer secret", want: http.StatusOK},
		{name: "basic scheme", apiKey: "secret", header: "Basic c2VjcmV0", want: http.StatusUnauthorized, challenge: `Bearer realm="docvec"`},
		{name: "scheme only", apiKey: "secret", header: "Bearer", want: http.StatusUnauthorized, challenge: `Bearer realm="docvec"`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			w := serveAuth(t, tc.apiKey, tc.header)
			if w.Code != tc.want {
				t.Fatalf("status: got %d, want %d", w.Code, tc.want)
			}
			if tc.challenge == "" {
				return
			}
			if got := w.Header().Get("WWW-Authenticate"); !strings.Contains(got, tc.challenge) {
				t.Errorf("WWW-Authenticate %q does not contain %q", got, tc.challenge)
			}
			var body errorResponse
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil || body.Detail == "" {
				t.Errorf("expected JSON detail body, got %q (err %v)", w.Body.String(), err)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		token string
		ok    bool
	}{
		"":                     {"", false},
		"Bearer abc":           {"abc", true},
		"BEARER abc":           {"abc", true},
		"Bearer   spaced  ":    {"spaced", true},
		"Token abc":            {"", false},
		"Bearer":               {"", false},
		"Bearer ":              {"", false},
		"  Bearer padded-key ": {"padded-key", true},
	}
	for header, want := range cases {
		token, ok := bearerToken(header)
		if token != want.token || ok != want.ok {
			t.Errorf("bearerToken(%q) = (%q, %v), want (%q, %v)", header, token, ok, want.token, want.ok)
		}
	}
}
