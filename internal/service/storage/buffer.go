package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"beveragedetect/internal/config"
	"beveragedetect/internal/dto"
	"beveragedetect/internal/logger"
	"beveragedetect/internal/model"
	"beveragedetect/internal/repository"
)

// MaxFlushAttempts is how many flushes a run survives before it is dropped.
const MaxFlushAttempts = 3

type pendingRun struct {
	dto.BufferedRun
	attempts int
}

// BufferService keeps finished runs in memory and periodically flushes them
// to the image directory and the run history. Runs that fail to save stay
// buffered for the next flush, up to MaxFlushAttempts.
type BufferService struct {
	imagesDir string
	limit     int
	interval  time.Duration
	runs      []pendingRun
	mu        sync.Mutex
	logger    *logger.Logger
	runRepo   repository.RunRepository
}

// NewBufferService creates a new BufferService with the target directory and logger.
func NewBufferService(config *config.Config, logger *logger.Logger, runRepo repository.RunRepository) *BufferService {
	limit := config.ImageBufferLimit
	if limit <= 0 {
		limit = 1
	}
	interval := time.Duration(config.ImageBufferFlushInterval) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}

	return &BufferService{
		imagesDir: config.ImageDirectory,
		limit:     limit,
		interval:  interval,
		runs:      make([]pendingRun, 0, limit),
		logger:    logger,
		runRepo:   runRepo,
	}
}

// Run flushes on every tick until ctx is cancelled, then flushes once more.
func (s *BufferService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.FlushRuns()
			return
		case <-ticker.C:
			s.FlushRuns()
		}
	}
}

// AddRun appends a run to the buffer. A full buffer is flushed right away.
func (s *BufferService) AddRun(run dto.BufferedRun) {
	s.mu.Lock()
	s.runs = append(s.runs, pendingRun{BufferedRun: run})
	size := len(s.runs)
	s.mu.Unlock()

	s.logger.Info("Buffer size: %d/%d", size, s.limit)
	if size >= s.limit {
		s.FlushRuns()
	}
}

// Pending returns the number of runs not yet flushed.
func (s *BufferService) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runs)
}

// FlushRuns writes buffered runs to disk and the database. Saved runs leave
// the buffer; failed ones are retried on the next flush. It returns how many
// runs were stored.
func (s *BufferService) FlushRuns() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.runs) == 0 {
		return 0
	}

	if err := os.MkdirAll(s.imagesDir, 0755); err != nil {
		s.logger.Error("Error creating directory: %v", err)
		return 0
	}

	savedCount := 0
	remaining := s.runs[:0]
	for _, run := range s.runs {
		if err := s.saveRun(run.BufferedRun); err != nil {
			run.attempts++
			if run.attempts >= MaxFlushAttempts {
				s.logger.Error("Dropping run %s after %d attempts: %v", run.UUID, run.attempts, err)
				continue
			}
			s.logger.Warning("Error saving run %s (attempt %d/%d): %v", run.UUID, run.attempts, MaxFlushAttempts, err)
			remaining = append(remaining, run)
			continue
		}
		savedCount++
	}
	clear(s.runs[len(remaining):])
	s.runs = remaining

	s.logger.Info("Flushed %d runs to disk, %d pending", savedCount, len(s.runs))
	return savedCount
}

// saveRun writes both images and records the run with its detections. On
// failure the written files are removed again.
func (s *BufferService) saveRun(run dto.BufferedRun) (err error) {
	originalPath := filepath.Join(s.imagesDir, OriginalName(run.UUID, run.Extension))
	annotatedPath := filepath.Join(s.imagesDir, AnnotatedName(run.UUID))
	defer func() {
		if err != nil {
			os.Remove(originalPath)
			os.Remove(annotatedPath)
		}
	}()

	if err := os.WriteFile(originalPath, run.Original, 0644); err != nil {
		return fmt.Errorf("write original: %w", err)
	}
	if err := os.WriteFile(annotatedPath, run.AnnotatedJPEG, 0644); err != nil {
		return fmt.Errorf("write annotated: %w", err)
	}

	if s.runRepo == nil {
		return nil
	}

	detections := make([]model.Detection, 0, run.Result.Count())
	for _, box := range run.Result.Boxes {
		detections = append(detections, model.Detection{
			ClassName:  run.Result.Label(box.Class),
			X1:         float64(box.X1),
			Y1:         float64(box.Y1),
			X2:         float64(box.X2),
			Y2:         float64(box.Y2),
			Confidence: float64(box.Confidence),
		})
	}

	_, err = s.runRepo.Insert(&model.Run{
		UUID:          run.UUID,
		Filename:      run.Filename,
		Timestamp:     run.Timestamp,
		Confidence:    run.Confidence,
		OriginalPath:  originalPath,
		AnnotatedPath: annotatedPath,
		FileSize:      int64(len(run.Original)),
		Width:         run.Result.Width,
		Height:        run.Result.Height,
		ItemCount:     run.Result.Count(),
	}, detections)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// OriginalName is the file name of the stored upload.
func OriginalName(uuid, ext string) string {
	return uuid + "_original" + ext
}

// AnnotatedName is the file name of the stored annotated JPEG.
func AnnotatedName(uuid string) string {
	return uuid + "_annotated.jpg"
}
