package handler

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"beveragedetect/internal/logger"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// page holds the fields every template reads.
type page struct {
	Title       string
	AuthEnabled bool
	Error       string
}

// render buffers the named template and writes it with status.
func render(w http.ResponseWriter, logger *logger.Logger, status int, name string, data any) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		logger.Error("Error rendering template %s: %v", name, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
