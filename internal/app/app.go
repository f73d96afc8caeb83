package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"beveragedetect/internal/annotate"
	"beveragedetect/internal/config"
	"beveragedetect/internal/dataset"
	"beveragedetect/internal/logger"
	"beveragedetect/internal/repository/sqlite"
	"beveragedetect/internal/route"
	"beveragedetect/internal/service"
	"beveragedetect/internal/service/ai"
	"beveragedetect/internal/service/storage"
	"beveragedetect/internal/service/websocket"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config        *config.Config
	logger        *logger.Logger
	db            *sqlite.DB
	bufferService *storage.BufferService
	hubService    *websocket.HubService
	manager       *service.Manager
	server        *http.Server
}

// NewApp loads the configuration and wires every service. The model is
// loaded here, once per worker.
func NewApp() (*App, error) {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		log.Close()
		return nil, err
	}
	runRepo := sqlite.NewRunRepository(db)
	detectionRepo := sqlite.NewDetectionRepository(db)

	names, err := dataset.LoadNames(cfg.ClassNamesPath)
	if err != nil {
		log.Warning("Class names unavailable, labels fall back to class_<i>: %v", err)
	}

	face, err := annotate.LoadFace(cfg.FontPath, cfg.FontSize)
	if err != nil {
		log.Warning("Font unavailable, using built-in face: %v", err)
	}

	workers := cfg.ProcessingWorkers
	if workers <= 0 {
		workers = 1
	}
	detectors := make([]service.Detector, 0, workers)
	loaded := 0
	for i := 0; i < workers; i++ {
		detector := ai.NewDetectorService(cfg, names, log)
		if detector.Loaded() {
			loaded++
		}
		detectors = append(detectors, detector)
	}
	if loaded == 0 {
		log.Warning("No detection network loaded from %s; detection requests will fail", cfg.ModelPath)
	} else {
		log.Info("Loaded %d/%d detection networks", loaded, workers)
	}

	buffer := storage.NewBufferService(cfg, log, runRepo)
	hub := websocket.NewHubService(log)
	mng := service.NewManager(detectors, annotate.NewAnnotator(face), buffer, hub, cfg, log)

	router := route.SetupRoutes(mng, hub, cfg, log, runRepo, detectionRepo)

	return &App{
		config:        cfg,
		logger:        log,
		db:            db,
		bufferService: buffer,
		hubService:    hub,
		manager:       mng,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Run serves HTTP until ctx is cancelled, then shuts everything down in
// order: server, workers, flusher, database.
func (a *App) Run(ctx context.Context) error {
	bgCtx, stopBackground := context.WithCancel(context.Background())
	var background sync.WaitGroup
	background.Add(2)
	go func() {
		defer background.Done()
		a.bufferService.Run(bgCtx)
	}()
	go func() {
		defer background.Done()
		a.hubService.Run(bgCtx)
	}()

	a.logger.Info("Beverage detection server listening on http://localhost:%d", a.config.Port)
	a.logger.Info("Model: %s, workers: %d, images: %s", a.config.ModelPath, a.manager.Workers(), a.config.ImageDirectory)
	if a.config.AuthEnabled() {
		a.logger.Info("Login required")
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("Shutting down")
	case err := <-serveErr:
		runErr = fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("HTTP shutdown: %v", err)
	}

	a.manager.Stop()
	stopBackground()
	background.Wait()

	if err := a.db.Close(); err != nil {
		a.logger.Error("Closing database: %v", err)
	}
	a.logger.Info("Server stopped")
	a.logger.Close()

	return runErr
}
