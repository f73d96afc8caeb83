package dto

import "beveragedetect/internal/detection"

// DetectResponse is returned by the JSON detection endpoint.
type DetectResponse struct {
	RunID      string          `json:"runId"`
	Confidence float64         `json:"confidence"`
	Count      int             `json:"count"`
	Summary    string          `json:"summary"`
	Table      detection.Table `json:"table"`
	Annotated  string          `json:"annotated"` // data: URI of the annotated JPEG
	ElapsedMS  int64           `json:"elapsedMs"`
}

// LiveEvent is pushed to live viewers when a run finishes.
type LiveEvent struct {
	RunID   string   `json:"runId"`
	Count   int      `json:"count"`
	Classes []string `json:"classes"`
	Summary string   `json:"summary"`
}
