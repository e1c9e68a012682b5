package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/f451labs/telemetry/internal/config"
)

// okHandler always answers 200.
var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func call(h http.Handler, header, key string) int {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/rows", nil)
	if key != "" {
		req.Header.Set(header, key)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr.Code
}

func TestAPIKey(t *testing.T) {
	tests := []struct {
		name string
		mode string
		key  string
		sent string
		want int
	}{
		{"mode none passes through", "none", "secret", "", http.StatusOK},
		{"empty key passes through", "apikey", "", "", http.StatusOK},
		{"correct key", "apikey", "supersecret", "supersecret", http.StatusOK},
		{"wrong key", "apikey", "supersecret", "wrong", http.StatusUnauthorized},
		{"missing header", "apikey", "supersecret", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := APIKey(tt.mode, "X-API-Key", tt.key)(okHandler)
			if got := call(h, "X-API-Key", tt.sent); got != tt.want {
				t.Errorf("status: got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAPIKey_UnauthorizedBody(t *testing.T) {
	h := APIKey("apikey", "X-API-Key", "k")(okHandler)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if body := rr.Body.String(); body != "{\"error\":\"invalid api key\"}\n" {
		t.Errorf("body = %q", body)
	}
}

func TestFromConfig(t *testing.T) {
	t.Setenv("TEST_API_KEY", "from-env")
	h := FromConfig(config.ServerAuthConfig{Mode: "apikey", KeyEnv: "TEST_API_KEY"})(okHandler)
	if got := call(h, config.DefaultAuthHeader, "from-env"); got != http.StatusOK {
		t.Errorf("default header with env key: got %d", got)
	}
	if got := call(h, "X-Other", "from-env"); got != http.StatusUnauthorized {
		t.Errorf("wrong header: got %d", got)
	}
}
