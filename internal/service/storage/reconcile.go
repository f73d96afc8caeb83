package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"beveragedetect/internal/model"
	"beveragedetect/internal/repository"
)

// Report lists what Reconcile found.
type Report struct {
	OrphanFiles []string    // Images without a run
	BrokenRuns  []model.Run // Runs whose images are gone
}

// runUUID extracts the run identifier from a stored file name.
func runUUID(name string) (string, bool) {
	if i := strings.LastIndex(name, "_original."); i > 0 {
		return name[:i], true
	}
	if strings.HasSuffix(name, "_annotated.jpg") {
		return strings.TrimSuffix(name, "_annotated.jpg"), true
	}
	return "", false
}

// Reconcile brings the image directory and the run history back in sync.
// With dryRun set nothing is removed. The server should not be writing to
// the directory while this runs.
func Reconcile(imagesDir string, runRepo repository.RunRepository, dryRun bool) (*Report, error) {
	runs, err := runRepo.GetAll(nil)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	known := make(map[string]bool, len(runs))
	for _, run := range runs {
		known[run.UUID] = true
	}

	files, err := os.ReadDir(imagesDir)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", imagesDir, err)
	}

	report := &Report{}
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		id, ok := runUUID(file.Name())
		if !ok || known[id] {
			continue
		}
		report.OrphanFiles = append(report.OrphanFiles, filepath.Join(imagesDir, file.Name()))
	}

	for _, run := range runs {
		if !exists(run.OriginalPath) || !exists(run.AnnotatedPath) {
			report.BrokenRuns = append(report.BrokenRuns, run)
		}
	}

	if dryRun {
		return report, nil
	}

	for _, path := range report.OrphanFiles {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return report, fmt.Errorf("remove %s: %w", path, err)
		}
	}
	for _, run := range report.BrokenRuns {
		for _, path := range []string{run.OriginalPath, run.AnnotatedPath} {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return report, fmt.Errorf("remove %s: %w", path, err)
			}
		}
		if err := runRepo.Delete(run.ID); err != nil {
			return report, fmt.Errorf("delete run %s: %w", run.UUID, err)
		}
	}
	return report, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
