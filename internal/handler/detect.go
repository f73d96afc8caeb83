package handler

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strings"
	"time"

	"beveragedetect/internal/config"
	"beveragedetect/internal/detection"
	"beveragedetect/internal/dto"
	"beveragedetect/internal/logger"
	"beveragedetect/internal/service"
)

const pageTitle = "Beverage container detection"

type indexPage struct {
	page
	Accept     string
	Confidence float64
}

type resultPage struct {
	page
	Original   template.URL
	Annotated  template.URL
	Confidence float64
	Table      detection.Table
	Elapsed    time.Duration
}

func newIndexPage(cfg *config.Config, errMsg string) indexPage {
	accept := make([]string, 0, len(AllowedExtensions))
	for _, ext := range AllowedExtensions {
		accept = append(accept, "."+ext)
	}
	return indexPage{
		page:       page{Title: pageTitle, AuthEnabled: cfg.AuthEnabled(), Error: errMsg},
		Accept:     strings.Join(accept, ","),
		Confidence: cfg.ConfidenceThreshold,
	}
}

// IndexHandler renders the upload form.
func IndexHandler(cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		render(w, logger, http.StatusOK, "index", newIndexPage(cfg, ""))
	}
}

// DetectPageHandler handles the upload form and renders the result page.
func DetectPageHandler(manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		upload, confidence, err := readUpload(w, r, cfg)
		if err != nil {
			logger.Warning("Rejected upload: %v", err)
			render(w, logger, uploadStatus(err), "index", newIndexPage(cfg, err.Error()))
			return
		}

		outcome, err := manager.Detect(r.Context(), upload, confidence)
		if err != nil {
			status := detectStatus(err)
			logger.Error("Detection failed for %s: %v", upload.Filename, err)
			render(w, logger, status, "index", newIndexPage(cfg, http.StatusText(status)+": "+err.Error()))
			return
		}

		render(w, logger, http.StatusOK, "result", resultPage{
			page:       page{Title: pageTitle, AuthEnabled: cfg.AuthEnabled()},
			Original:   dataURI(mimeType(upload.Extension), upload.Data),
			Annotated:  dataURI("image/jpeg", outcome.AnnotatedJPEG),
			Confidence: outcome.Confidence,
			Table:      outcome.Table,
			Elapsed:    outcome.Elapsed.Round(time.Millisecond),
		})
	}
}

// DetectAPIHandler is the JSON flavour of DetectPageHandler.
func DetectAPIHandler(manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		upload, confidence, err := readUpload(w, r, cfg)
		if err != nil {
			logger.Warning("Rejected upload: %v", err)
			writeJSONError(w, uploadStatus(err), err.Error())
			return
		}

		outcome, err := manager.Detect(r.Context(), upload, confidence)
		if err != nil {
			logger.Error("Detection failed for %s: %v", upload.Filename, err)
			writeJSONError(w, detectStatus(err), err.Error())
			return
		}

		writeJSON(w, logger, http.StatusOK, dto.DetectResponse{
			RunID:      outcome.RunID,
			Confidence: outcome.Confidence,
			Count:      outcome.Table.Count(),
			Summary:    outcome.Table.Summary(),
			Table:      outcome.Table,
			Annotated:  string(dataURI("image/jpeg", outcome.AnnotatedJPEG)),
			ElapsedMS:  outcome.Elapsed.Milliseconds(),
		})
	}
}

// detectStatus maps manager and detector errors to HTTP statuses.
func detectStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrQueueFull),
		errors.Is(err, service.ErrManagerStopped),
		errors.Is(err, detection.ErrModelNotLoaded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func dataURI(mime string, data []byte) template.URL {
	return template.URL("data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data))
}

func writeJSON(w http.ResponseWriter, logger *logger.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
