package handler

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"beveragedetect/internal/config"
	"beveragedetect/internal/detection"
	"beveragedetect/internal/dto"
	"beveragedetect/internal/logger"
	"beveragedetect/internal/model"
	"beveragedetect/internal/repository"
)

const defaultPageSize = 24

type historyPage struct {
	page
	Data       dto.RunsData
	Classes    []string
	Class      string
	DateAfter  string
	DateBefore string
	PrevPage   int
	NextPage   int
}

// listRuns applies the query filters and converts runs for display.
func listRuns(q url.Values, logger *logger.Logger, runRepo repository.RunRepository,
	detectionRepo repository.DetectionRepository) (dto.RunsData, error) {
	page := atoiDefault(q.Get("page"), 1)
	limit := atoiDefault(q.Get("limit"), defaultPageSize)

	filter := &dto.RunFilters{
		Class:      q.Get("class"),
		DateAfter:  parseDate(q.Get("dateAfter")),
		DateBefore: parseDate(q.Get("dateBefore")),
		Limit:      limit,
		Offset:     (page - 1) * limit,
	}

	runs, err := runRepo.GetAll(filter)
	if err != nil {
		return dto.RunsData{}, fmt.Errorf("query runs: %w", err)
	}

	totalCount, err := runRepo.GetTotalCount(filter)
	if err != nil {
		logger.Error("Error counting runs: %v", err)
		totalCount = len(runs)
	}

	var totalSize int64
	if stats, err := runRepo.GetStats(); err != nil {
		logger.Error("Error reading run statistics: %v", err)
	} else {
		totalSize = stats.TotalSizeBytes
	}

	infos := make([]dto.RunInfo, 0, len(runs))
	for _, run := range runs {
		infos = append(infos, runInfo(run, classNames(logger, detectionRepo, run.ID)))
	}

	return dto.RunsData{
		Runs:        infos,
		Size:        totalSize,
		Length:      totalCount,
		TotalPages:  (totalCount + limit - 1) / limit,
		CurrentPage: page,
		Limit:       limit,
	}, nil
}

func classNames(logger *logger.Logger, detectionRepo repository.DetectionRepository, runID int64) []string {
	names, err := detectionRepo.GetClassNamesByRunID(runID)
	if err != nil {
		logger.Error("Error getting classes for run %d: %v", runID, err)
		return []string{}
	}
	if names == nil {
		return []string{}
	}
	return names
}

func runInfo(run model.Run, classes []string) dto.RunInfo {
	return dto.RunInfo{
		ID:         run.ID,
		UUID:       run.UUID,
		Filename:   run.Filename,
		Date:       run.Timestamp,
		TimeOfDay:  run.Timestamp,
		Confidence: run.Confidence,
		ItemCount:  run.ItemCount,
		Classes:    classes,
	}
}

// HistoryPageHandler renders the run history as HTML.
func HistoryPageHandler(cfg *config.Config, logger *logger.Logger, runRepo repository.RunRepository,
	detectionRepo repository.DetectionRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		data, err := listRuns(q, logger, runRepo, detectionRepo)
		if err != nil {
			logger.Error("Error querying runs from database: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		classes, err := detectionRepo.GetAllClassNames()
		if err != nil {
			logger.Error("Error listing classes: %v", err)
		}

		render(w, logger, http.StatusOK, "history", historyPage{
			page:       page{Title: "History", AuthEnabled: cfg.AuthEnabled()},
			Data:       data,
			Classes:    classes,
			Class:      q.Get("class"),
			DateAfter:  q.Get("dateAfter"),
			DateBefore: q.Get("dateBefore"),
			PrevPage:   data.CurrentPage - 1,
			NextPage:   data.CurrentPage + 1,
		})
	}
}

// GetRunsHandler returns a filtered, paginated list of runs.
func GetRunsHandler(logger *logger.Logger, runRepo repository.RunRepository,
	detectionRepo repository.DetectionRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := listRuns(r.URL.Query(), logger, runRepo, detectionRepo)
		if err != nil {
			logger.Error("Error querying runs from database: %v", err)
			writeJSONError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		writeJSON(w, logger, http.StatusOK, data)
	}
}

// lookupRun resolves the {id} path value. It writes the error response and
// returns nil when the run cannot be served.
func lookupRun(w http.ResponseWriter, r *http.Request, logger *logger.Logger, runRepo repository.RunRepository) *model.Run {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "Invalid run id", http.StatusBadRequest)
		return nil
	}

	run, err := runRepo.GetByID(id)
	if err != nil {
		logger.Error("Error loading run %d: %v", id, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return nil
	}
	if run == nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return nil
	}
	return run
}

// runTable rebuilds the detection table of a stored run.
func runTable(detectionRepo repository.DetectionRepository, runID int64) (detection.Table, error) {
	detections, err := detectionRepo.GetByRunID(runID)
	if err != nil {
		return detection.Table{}, err
	}

	rows := make([]detection.Row, 0, len(detections))
	for _, d := range detections {
		rows = append(rows, detection.NewRow(d.ClassName, d.Confidence, d.X1, d.Y1, d.X2, d.Y2))
	}
	return detection.Table{Rows: rows}, nil
}

// GetRunHandler returns one run with its detection table.
func GetRunHandler(logger *logger.Logger, runRepo repository.RunRepository,
	detectionRepo repository.DetectionRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run := lookupRun(w, r, logger, runRepo)
		if run == nil {
			return
		}

		table, err := runTable(detectionRepo, run.ID)
		if err != nil {
			logger.Error("Error loading detections for run %d: %v", run.ID, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, logger, http.StatusOK, dto.RunDetail{
			Run:     runInfo(*run, classNames(logger, detectionRepo, run.ID)),
			Summary: table.Summary(),
			Table:   table,
		})
	}
}

// RunImageHandler serves the original or annotated image of a run.
func RunImageHandler(logger *logger.Logger, runRepo repository.RunRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run := lookupRun(w, r, logger, runRepo)
		if run == nil {
			return
		}

		var path string
		switch kind := r.URL.Query().Get("kind"); kind {
		case "", "annotated":
			path = run.AnnotatedPath
		case "original":
			path = run.OriginalPath
		default:
			http.Error(w, "kind must be original or annotated", http.StatusBadRequest)
			return
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			http.Error(w, "Image not found", http.StatusNotFound)
			return
		}
		http.ServeFile(w, r, path)
	}
}

// RunCSVHandler downloads the detection table of a run as CSV.
func RunCSVHandler(logger *logger.Logger, runRepo repository.RunRepository,
	detectionRepo repository.DetectionRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run := lookupRun(w, r, logger, runRepo)
		if run == nil {
			return
		}

		table, err := runTable(detectionRepo, run.ID)
		if err != nil {
			logger.Error("Error loading detections for run %d: %v", run.ID, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.csv"`, run.UUID))
		if err := table.WriteCSV(w); err != nil {
			logger.Error("Error writing CSV for run %d: %v", run.ID, err)
		}
	}
}

// DeleteRunHandler removes a run from disk and database.
func DeleteRunHandler(logger *logger.Logger, runRepo repository.RunRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run := lookupRun(w, r, logger, runRepo)
		if run == nil {
			return
		}

		for _, path := range []string{run.OriginalPath, run.AnnotatedPath} {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				logger.Error("Failed to delete file %s: %v", path, err)
			}
		}

		if err := runRepo.Delete(run.ID); err != nil {
			logger.Error("Failed to delete run %d from database: %v", run.ID, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		logger.Info("Deleted run: %s", run.UUID)
		writeJSON(w, logger, http.StatusOK, map[string]string{"status": "deleted", "uuid": run.UUID})
	}
}

// ClearRunsHandler deletes all stored images and clears the history.
func ClearRunsHandler(cfg *config.Config, logger *logger.Logger, runRepo repository.RunRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		files, err := os.ReadDir(cfg.ImageDirectory)
		if err != nil && !os.IsNotExist(err) {
			logger.Error("Error reading image directory: %v", err)
			http.Error(w, "Unable to read image directory", http.StatusInternalServerError)
			return
		}

		for _, file := range files {
			if file.IsDir() {
				continue
			}
			filePath := filepath.Join(cfg.ImageDirectory, file.Name())
			if err := os.Remove(filePath); err != nil {
				logger.Error("Error deleting file %s: %v", file.Name(), err)
			}
		}

		if err := runRepo.DeleteAll(); err != nil {
			logger.Error("Error clearing database: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		logger.Info("Run history cleared: %s", cfg.ImageDirectory)
		w.WriteHeader(http.StatusNoContent)
	}
}

// RunStatsHandler returns aggregate statistics over the history.
func RunStatsHandler(logger *logger.Logger, runRepo repository.RunRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := runRepo.GetStats()
		if err != nil {
			logger.Error("Error reading run statistics: %v", err)
			writeJSONError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		writeJSON(w, logger, http.StatusOK, stats)
	}
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

// parseDate parses a date string in the format "2006-01-02" from the request (HTML input format).
func parseDate(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}
	}
	return t
}
