package model

// Detection represents a detected object belonging to a run.
type Detection struct {
	ID         int64   `json:"id"`
	RunID      int64   `json:"run_id"`
	ClassName  string  `json:"class_name"`
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
	Confidence float64 `json:"confidence"`
}
