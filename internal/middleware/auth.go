package middleware

import (
	"net/http"
	"strings"
)

// CookieName is the session cookie set by the login handler.
const CookieName = "authenticated"

var publicPaths = map[string]bool{
	"/login":      true,
	"/auth/login": true,
	"/metrics":    true,
}

// AuthMiddleware lets through requests carrying the session cookie and the
// public pages. API calls without a session get 401, pages are redirected
// to /login.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublic(r.URL.Path) || Authenticated(r) {
			next.ServeHTTP(w, r)
			return
		}

		if wantsJSON(r) {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	})
}

// Authenticated reports whether r carries a valid session cookie.
func Authenticated(r *http.Request) bool {
	cookie, err := r.Cookie(CookieName)
	return err == nil && cookie.Value == "true"
}

func isPublic(path string) bool {
	return publicPaths[path] || strings.HasPrefix(path, "/static/")
}

// Zapytania AJAX/API dostają 401 zamiast przekierowania.
func wantsJSON(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/") ||
		r.Header.Get("X-Requested-With") == "XMLHttpRequest" ||
		r.Header.Get("Content-Type") == "application/json"
}
