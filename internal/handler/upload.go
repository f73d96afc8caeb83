package handler

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"beveragedetect/internal/config"
	"beveragedetect/internal/service"
)

const uploadField = "image"

var ErrUnsupportedFormat = errors.New("unsupported image format")

// AllowedExtensions are the file types accepted by the uploader.
var AllowedExtensions = []string{"jpg", "jpeg", "png"}

// uploadError carries the HTTP status an upload problem maps to.
type uploadError struct {
	status int
	err    error
}

func (e *uploadError) Error() string { return e.err.Error() }
func (e *uploadError) Unwrap() error { return e.err }

func badUpload(status int, err error) error {
	return &uploadError{status: status, err: err}
}

// uploadStatus returns the HTTP status for an error returned by readUpload.
func uploadStatus(err error) int {
	var ue *uploadError
	if errors.As(err, &ue) {
		return ue.status
	}
	return http.StatusInternalServerError
}

// readUpload parses the multipart form, validates the file and decodes it.
// The request body is capped at the configured upload size.
func readUpload(w http.ResponseWriter, r *http.Request, cfg *config.Config) (service.Upload, float64, error) {
	r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadBytes())

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large") {
			return service.Upload{}, 0, badUpload(http.StatusRequestEntityTooLarge,
				fmt.Errorf("upload exceeds %d MB", cfg.MaxUploadMB))
		}
		return service.Upload{}, 0, badUpload(http.StatusBadRequest, fmt.Errorf("missing %q file: %w", uploadField, err))
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedExtension(ext) {
		return service.Upload{}, 0, badUpload(http.StatusBadRequest,
			fmt.Errorf("%w: %q (allowed: %s)", ErrUnsupportedFormat, ext, strings.Join(AllowedExtensions, ", ")))
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return service.Upload{}, 0, badUpload(http.StatusBadRequest, fmt.Errorf("failed to read upload: %w", err))
	}

	// The header is checked first so oversized images are never allocated.
	imgCfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return service.Upload{}, 0, badUpload(http.StatusBadRequest, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err))
	}
	if format != "jpeg" && format != "png" {
		return service.Upload{}, 0, badUpload(http.StatusBadRequest, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format))
	}
	if pixels := int64(imgCfg.Width) * int64(imgCfg.Height); pixels > cfg.MaxImagePixels() {
		return service.Upload{}, 0, badUpload(http.StatusRequestEntityTooLarge,
			fmt.Errorf("image is %dx%d, limit is %d pixels", imgCfg.Width, imgCfg.Height, cfg.MaxImagePixels()))
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return service.Upload{}, 0, badUpload(http.StatusBadRequest, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err))
	}

	upload := service.Upload{
		Filename:  filepath.Base(header.Filename),
		Extension: ext,
		Data:      data,
		Image:     img,
	}
	return upload, parseConfidence(r.FormValue("confidence"), cfg.ConfidenceThreshold), nil
}

func allowedExtension(ext string) bool {
	ext = strings.TrimPrefix(ext, ".")
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// parseConfidence returns v as a threshold in [0,1], or def.
func parseConfidence(v string, def float64) float64 {
	c, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(c) || c < 0 || c > 1 {
		return def
	}
	return c
}

// mimeType returns the content type of a stored upload by its extension.
func mimeType(ext string) string {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "png":
		return "image/png"
	default:
		return "image/jpeg"
	}
}
