package chi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	answeruc "github.com/kailas-cloud/ragq/internal/usecase/answer"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestBearerAuthMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		keys   []string
		method string
		path   string
		header string
		want   int
	}{
		{"no keys configured", nil, "POST", "/v1/query", "", http.StatusOK},
		{"only blank keys", []string{"", " "}, "POST", "/v1/query", "", http.StatusOK},
		{"missing header", []string{"secret"}, "POST", "/v1/query", "", http.StatusUnauthorized},
		{"basic scheme", []string{"secret"}, "POST", "/v1/query", "Basic dXNlcjpwYXNz", http.StatusUnauthorized},
		{"wrong token", []string{"secret"}, "POST", "/v1/query", "Bearer wrong-key", http.StatusUnauthorized},
		{"token prefix", []string{"secret"}, "POST", "/invoke", "Bearer secre", http.StatusUnauthorized},
		{"token suffix", []string{"secret"}, "POST", "/invoke", "Bearer secret2", http.StatusUnauthorized},
		{"empty bearer", []string{"secret"}, "POST", "/invoke", "Bearer ", http.StatusUnauthorized},
		{"valid token", []string{"secret"}, "POST", "/v1/query", "Bearer secret", http.StatusOK},
		{"second of two keys", []string{"key1", "key2"}, "POST", "/invoke", "Bearer key2", http.StatusOK},
		{"health is exempt", []string{"secret"}, "GET", "/health", "", http.StatusOK},
		{"metrics is exempt", []string{"secret"}, "GET", "/metrics", "", http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, http.NoBody)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			BearerAuthMiddleware(tc.keys)(okHandler()).ServeHTTP(rr, req)

			if rr.Code != tc.want {
				t.Fatalf("got %d, want %d", rr.Code, tc.want)
			}
			if tc.want != http.StatusUnauthorized {
				return
			}
			var body answeruc.ErrorBody
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatalf("decode error response: %v", err)
			}
			if body.Error != "unauthorized" {
				t.Errorf("error code: got %q, want unauthorized", body.Error)
			}
		})
	}
}
