package detection

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
)

// Column headers of the detection table.
const (
	ColumnClass       = "Class"
	ColumnConfidence  = "Confidence"
	ColumnBoundingBox = "Bounding Box (XYXY format)"
)

// Row is one line of the detection table.
type Row struct {
	Class       string     `json:"class"`
	Confidence  string     `json:"confidence"`
	BoundingBox [4]float64 `json:"bounding_box"`
}

// BoundingBoxString renders the rounded box as "[x1 y1 x2 y2]".
func (r Row) BoundingBoxString() string {
	return fmt.Sprintf("[%s %s %s %s]",
		formatCoord(r.BoundingBox[0]), formatCoord(r.BoundingBox[1]),
		formatCoord(r.BoundingBox[2]), formatCoord(r.BoundingBox[3]))
}

// Table is the per-detection summary shown under "Detection Details:".
type Table struct {
	Rows []Row `json:"rows"`
}

// NewTable maps every box of the result to a row, preserving order.
func NewTable(result Result) Table {
	rows := make([]Row, 0, len(result.Boxes))
	for _, b := range result.Boxes {
		rows = append(rows, NewRow(result.Label(b.Class), float64(b.Confidence),
			float64(b.X1), float64(b.Y1), float64(b.X2), float64(b.Y2)))
	}
	return Table{Rows: rows}
}

// NewRow formats one detection. Coordinates are rounded half to even.
func NewRow(class string, confidence, x1, y1, x2, y2 float64) Row {
	return Row{
		Class:      class,
		Confidence: fmt.Sprintf("%.2f", confidence),
		BoundingBox: [4]float64{
			math.RoundToEven(x1),
			math.RoundToEven(y1),
			math.RoundToEven(x2),
			math.RoundToEven(y2),
		},
	}
}

// Count is the number of rows.
func (t Table) Count() int {
	return len(t.Rows)
}

// Headers returns the column names in display order.
func (t Table) Headers() []string {
	return []string{ColumnClass, ColumnConfidence, ColumnBoundingBox}
}

// Summary is the sentence printed above the table.
func (t Table) Summary() string {
	return fmt.Sprintf("Found %d items in total!", t.Count())
}

// WriteCSV writes the table with a header line.
func (t Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Headers()); err != nil {
		return err
	}
	for _, r := range t.Rows {
		if err := cw.Write([]string{r.Class, r.Confidence, r.BoundingBoxString()}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
