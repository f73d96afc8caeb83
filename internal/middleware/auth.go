package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
)

// CookieName is the cookie carrying the session token.
const CookieName = "authenticated"

// SessionToken derives the cookie value from the configured password.
func SessionToken(password string) string {
	sum := sha256.Sum256([]byte("beveragedetect:" + password))
	return hex.EncodeToString(sum[:])
}

// ValidToken reports whether value matches the expected session token.
func ValidToken(value, token string) bool {
	return subtle.ConstantTimeCompare([]byte(value), []byte(token)) == 1
}

// AuthMiddleware checks the session cookie. The login page, the login
// endpoint and static assets stay public.
func AuthMiddleware(next http.Handler, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" ||
			r.URL.Path == "/auth/login" ||
			strings.HasPrefix(r.URL.Path, "/static/") {
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(CookieName)
		if err != nil || !ValidToken(cookie.Value, token) {
			// API and websocket clients get 401, browsers are sent to the login page
			if strings.HasPrefix(r.URL.Path, "/api/") ||
				r.Header.Get("X-Requested-With") == "XMLHttpRequest" ||
				r.Header.Get("Content-Type") == "application/json" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}
