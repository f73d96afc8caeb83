package route

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"beveragedetect/internal/annotate"
	"beveragedetect/internal/config"
	"beveragedetect/internal/logger"
	"beveragedetect/internal/middleware"
	"beveragedetect/internal/repository/sqlite"
	"beveragedetect/internal/service"
	live "beveragedetect/internal/service/websocket"
)

func setupRouter(t *testing.T, password string) (http.Handler, *logger.Logger) {
	t.Helper()

	dir := t.TempDir()
	cfg := &config.Config{
		Password:            password,
		LogDirectory:        filepath.Join(dir, "logs"),
		LogLevel:            "info",
		ImageDirectory:      filepath.Join(dir, "images"),
		ConfidenceThreshold: 0.5,
		MaxUploadMB:         1,
		QueueSize:           1,
	}

	log, err := logger.NewLogger(cfg)
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	t.Cleanup(func() { log.Close() })

	db, err := sqlite.New(filepath.Join(dir, "runs.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	manager := service.NewManager(nil, annotate.NewAnnotator(nil), nil, nil, cfg, log)
	t.Cleanup(manager.Stop)

	router := SetupRoutes(manager, live.NewHubService(log), cfg, log,
		sqlite.NewRunRepository(db), sqlite.NewDetectionRepository(db))
	return router, log
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRoutes_NoAuth(t *testing.T) {
	router, _ := setupRouter(t, "")

	tests := []struct {
		method   string
		path     string
		wantCode int
	}{
		{http.MethodGet, "/", http.StatusOK},
		{http.MethodGet, "/history", http.StatusOK},
		{http.MethodGet, "/api/runs", http.StatusOK},
		{http.MethodGet, "/api/runs/stats", http.StatusOK},
		{http.MethodGet, "/api/runs/7", http.StatusNotFound},
		{http.MethodGet, "/login", http.StatusSeeOther},
		{http.MethodGet, "/missing", http.StatusNotFound},
		{http.MethodGet, "/detect", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := serve(router, httptest.NewRequest(tt.method, tt.path, nil))
			if w.Code != tt.wantCode {
				t.Errorf("Expected status %d, got %d", tt.wantCode, w.Code)
			}
		})
	}
}

func TestRoutes_Auth(t *testing.T) {
	router, _ := setupRouter(t, "secret")

	if w := serve(router, httptest.NewRequest(http.MethodGet, "/", nil)); w.Code != http.StatusSeeOther {
		t.Errorf("Expected redirect to login, got %d", w.Code)
	}
	if w := serve(router, httptest.NewRequest(http.MethodGet, "/api/runs", nil)); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for API, got %d", w.Code)
	}
	if w := serve(router, httptest.NewRequest(http.MethodGet, "/login", nil)); w.Code != http.StatusOK {
		t.Errorf("Expected login page, got %d", w.Code)
	}

	bad := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(url.Values{"password": {"nope"}}.Encode()))
	bad.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if w := serve(router, bad); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for wrong password, got %d", w.Code)
	}

	good := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(url.Values{"password": {"secret"}}.Encode()))
	good.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := serve(router, good)
	if w.Code != http.StatusSeeOther {
		t.Fatalf("Expected redirect after login, got %d", w.Code)
	}

	var session *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.CookieName {
			session = c
		}
	}
	if session == nil {
		t.Fatal("Login should set the session cookie")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(session)
	if w := serve(router, req); w.Code != http.StatusOK {
		t.Errorf("Expected index with session, got %d", w.Code)
	}
}

func TestRoutes_Logs(t *testing.T) {
	router, log := setupRouter(t, "")

	log.Warning("queue almost full")

	w := serve(router, httptest.NewRequest(http.MethodGet, "/logs/warning", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "queue almost full") {
		t.Fatalf("Expected warning log content, got %d: %q", w.Code, w.Body.String())
	}

	if w := serve(router, httptest.NewRequest(http.MethodPost, "/logs/warning/clear", nil)); w.Code != http.StatusNoContent {
		t.Fatalf("Expected 204 on clear, got %d", w.Code)
	}

	w = serve(router, httptest.NewRequest(http.MethodGet, "/logs/warning", nil))
	if strings.Contains(w.Body.String(), "queue almost full") {
		t.Error("Warning log should be empty after clear")
	}
}
