package dto

import (
	"time"

	"beveragedetect/internal/detection"
)

// BufferedRun holds a finished run before it is flushed to disk and database.
type BufferedRun struct {
	UUID          string
	Filename      string
	Extension     string // Of the original upload, with the dot
	Timestamp     time.Time
	Confidence    float64
	Result        detection.Result
	Original      []byte
	AnnotatedJPEG []byte
}
