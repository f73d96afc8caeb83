package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuthMiddleware(t *testing.T) {
	token := SessionToken("secret")
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	handler := AuthMiddleware(next, token)

	tests := []struct {
		name     string
		path     string
		cookie   string
		wantCode int
		wantLoc  string
	}{
		{"login page is public", "/login", "", http.StatusTeapot, ""},
		{"login endpoint is public", "/auth/login", "", http.StatusTeapot, ""},
		{"static is public", "/static/app.css", "", http.StatusTeapot, ""},
		{"page redirects", "/", "", http.StatusSeeOther, "/login"},
		{"api gets 401", "/api/runs", "", http.StatusUnauthorized, ""},
		{"forged cookie rejected", "/", "true", http.StatusSeeOther, "/login"},
		{"valid cookie passes", "/history", token, http.StatusTeapot, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: CookieName, Value: tt.cookie})
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Errorf("Expected status %d, got %d", tt.wantCode, w.Code)
			}
			if tt.wantLoc != "" && w.Header().Get("Location") != tt.wantLoc {
				t.Errorf("Expected redirect to %s, got %s", tt.wantLoc, w.Header().Get("Location"))
			}
		})
	}
}

func TestSessionToken(t *testing.T) {
	if SessionToken("a") == SessionToken("b") {
		t.Error("Different passwords must give different tokens")
	}
	if !ValidToken(SessionToken("a"), SessionToken("a")) {
		t.Error("Token should validate against itself")
	}
}
