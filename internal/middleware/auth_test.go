package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuthMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := AuthMiddleware(ok)

	tests := []struct {
		name     string
		path     string
		cookie   *http.Cookie
		header   string
		expected int
	}{
		{"login page is public", "/login", nil, "", http.StatusOK},
		{"metrics are public", "/metrics", nil, "", http.StatusOK},
		{"static is public", "/static/app.js", nil, "", http.StatusOK},
		{"page redirects", "/", nil, "", http.StatusSeeOther},
		{"api rejects", "/api/episodes", nil, "", http.StatusUnauthorized},
		{"ajax rejects", "/settings", nil, "XMLHttpRequest", http.StatusUnauthorized},
		{"wrong cookie", "/api/status", &http.Cookie{Name: "authenticated", Value: "false"}, "", http.StatusUnauthorized},
		{"authenticated", "/api/status", &http.Cookie{Name: "authenticated", Value: "true"}, "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			if tt.header != "" {
				req.Header.Set("X-Requested-With", tt.header)
			}
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			if rr.Code != tt.expected {
				t.Errorf("Expected status %d, got %d", tt.expected, rr.Code)
			}
			if tt.expected == http.StatusSeeOther && rr.Header().Get("Location") != "/login" {
				t.Errorf("Expected redirect to /login, got %q", rr.Header().Get("Location"))
			}
		})
	}
}
