package handler

import (
	"net/http"

	"beveragedetect/internal/config"
	"beveragedetect/internal/logger"
	"beveragedetect/internal/middleware"
)

// LoginPageHandler renders the login form, or redirects home when auth is off.
func LoginPageHandler(config *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !config.AuthEnabled() {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		render(w, logger, http.StatusOK, "login", page{Title: "Login"})
	}
}

// LoginHandler handles POST /auth/login by validating password and issuing an auth cookie.
func LoginHandler(config *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		password := r.FormValue("password")
		if !middleware.ValidToken(middleware.SessionToken(password), middleware.SessionToken(config.Password)) {
			logger.Warning("Failed login attempt from %s", r.RemoteAddr)
			render(w, logger, http.StatusUnauthorized, "login", page{Title: "Login", Error: "Invalid password"})
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     middleware.CookieName,
			Value:    middleware.SessionToken(config.Password),
			Path:     "/",
			MaxAge:   2592000, // 30 days
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

// LogoutHandler clears the authentication cookie and redirects to the login page.
func LogoutHandler(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:   middleware.CookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
