package dto

import (
	"encoding/json"
	"time"

	"beveragedetect/internal/detection"
)

// RunInfo is a run as listed in the history.
type RunInfo struct {
	ID         int64     `json:"id"`
	UUID       string    `json:"uuid"`
	Filename   string    `json:"filename"`
	Date       time.Time `json:"date"`
	TimeOfDay  time.Time `json:"timeOfDay"`
	Confidence float64   `json:"confidence"`
	ItemCount  int       `json:"itemCount"`
	Classes    []string  `json:"classes"`
}

// MarshalJSON customizes JSON output for RunInfo to format date and time-of-day.
func (p RunInfo) MarshalJSON() ([]byte, error) {
	type Alias RunInfo
	return json.Marshal(&struct {
		Date      string `json:"date"`
		TimeOfDay string `json:"timeOfDay"`
		Alias
	}{
		Date:      p.Date.Format("02-01-2006"),
		TimeOfDay: p.TimeOfDay.Format("15:04"),
		Alias:     (Alias)(p),
	})
}

// RunDetail is a single run with its detection table.
type RunDetail struct {
	Run     RunInfo         `json:"run"`
	Summary string          `json:"summary"`
	Table   detection.Table `json:"table"`
}
