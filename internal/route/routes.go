package route

import (
	"net/http"

	"beveragedetect/internal/config"
	"beveragedetect/internal/handler"
	"beveragedetect/internal/logger"
	"beveragedetect/internal/middleware"
	"beveragedetect/internal/repository"
	"beveragedetect/internal/service"
	live "beveragedetect/internal/service/websocket"
)

// SetupRoutes registers the UI pages, API endpoints and log endpoints, and
// wraps the mux with the authentication middleware when a password is set.
func SetupRoutes(manager *service.Manager, hub *live.HubService, cfg *config.Config, log *logger.Logger,
	runRepo repository.RunRepository, detectionRepo repository.DetectionRepository) http.Handler {
	mux := http.NewServeMux()

	// Pages
	mux.HandleFunc("GET /{$}", handler.IndexHandler(cfg, log))
	mux.HandleFunc("POST /detect", handler.DetectPageHandler(manager, cfg, log))
	mux.HandleFunc("GET /history", handler.HistoryPageHandler(cfg, log, runRepo, detectionRepo))

	// API endpoints
	mux.HandleFunc("POST /api/detect", handler.DetectAPIHandler(manager, cfg, log))
	mux.HandleFunc("GET /api/live", handler.LiveWebsocketHandler(hub, log))
	mux.HandleFunc("GET /api/runs", handler.GetRunsHandler(log, runRepo, detectionRepo))
	mux.HandleFunc("GET /api/runs/stats", handler.RunStatsHandler(log, runRepo))
	mux.HandleFunc("POST /api/runs/clear", handler.ClearRunsHandler(cfg, log, runRepo))
	mux.HandleFunc("GET /api/runs/{id}", handler.GetRunHandler(log, runRepo, detectionRepo))
	mux.HandleFunc("GET /api/runs/{id}/image", handler.RunImageHandler(log, runRepo))
	mux.HandleFunc("GET /api/runs/{id}/csv", handler.RunCSVHandler(log, runRepo, detectionRepo))
	mux.HandleFunc("DELETE /api/runs/{id}", handler.DeleteRunHandler(log, runRepo))

	// Log endpoints
	for name, file := range map[string]string{
		"info":    logger.InfoFile,
		"warning": logger.WarningFile,
		"error":   logger.ErrorFile,
	} {
		mux.HandleFunc("GET /logs/"+name, handler.ShowLogsHandler(log, file))
		mux.HandleFunc("/logs/"+name+"/clear", handler.ClearLogsHandler(log, file))
	}

	// Auth endpoints
	mux.HandleFunc("GET /login", handler.LoginPageHandler(cfg, log))
	mux.HandleFunc("/auth/login", handler.LoginHandler(cfg, log))
	mux.HandleFunc("/auth/logout", handler.LogoutHandler)

	if !cfg.AuthEnabled() {
		return mux
	}
	return middleware.AuthMiddleware(mux, middleware.SessionToken(cfg.Password))
}
