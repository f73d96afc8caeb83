package model

import "time"

// Run represents one inference request stored in the history.
type Run struct {
	ID            int64     `json:"id"`
	UUID          string    `json:"uuid"`
	Filename      string    `json:"filename"` // Name of the uploaded file
	Timestamp     time.Time `json:"timestamp"`
	Confidence    float64   `json:"confidence"` // Threshold used for the run
	OriginalPath  string    `json:"original_path"`
	AnnotatedPath string    `json:"annotated_path"`
	FileSize      int64     `json:"filesize"`
	Width         int       `json:"width"`
	Height        int       `json:"height"`
	ItemCount     int       `json:"item_count"`
}

// RunStats contains statistics about stored runs.
type RunStats struct {
	TotalRuns      int            `json:"total_runs"`
	TotalItems     int            `json:"total_items"`
	TotalSizeBytes int64          `json:"total_size_bytes"`
	ClassCounts    map[string]int `json:"class_counts"`
}
