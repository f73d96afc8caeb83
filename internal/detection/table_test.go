package detection

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() Result {
	return Result{
		Boxes: []Box{
			{X1: 10.4, Y1: 20.5, X2: 110.6, Y2: 221.5, Class: 0, Confidence: 0.876},
			{X1: 0, Y1: 0, X2: 50, Y2: 50, Class: 2, Confidence: 0.5},
		},
		Names: map[int]string{0: "bottle", 1: "can"},
	}
}

func TestNewTable(t *testing.T) {
	table := NewTable(sampleResult())

	require.Equal(t, 2, table.Count())
	assert.Equal(t, "bottle", table.Rows[0].Class)
	assert.Equal(t, "0.88", table.Rows[0].Confidence)
	// Ties round to even: 20.5 -> 20, 221.5 -> 222.
	assert.Equal(t, [4]float64{10, 20, 111, 222}, table.Rows[0].BoundingBox)
	assert.Equal(t, "[10 20 111 222]", table.Rows[0].BoundingBoxString())

	assert.Equal(t, "class_2", table.Rows[1].Class)
	assert.Equal(t, "0.50", table.Rows[1].Confidence)
}

func TestTable_Summary(t *testing.T) {
	assert.Equal(t, "Found 2 items in total!", NewTable(sampleResult()).Summary())
	assert.Equal(t, "Found 0 items in total!", NewTable(Result{}).Summary())
}

func TestTable_WriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewTable(sampleResult()).WriteCSV(&buf))

	want := "Class,Confidence,Bounding Box (XYXY format)\n" +
		"bottle,0.88,[10 20 111 222]\n" +
		"class_2,0.50,[0 0 50 50]\n"
	assert.Equal(t, want, buf.String())
}

func TestResult_LabelsAndSort(t *testing.T) {
	r := Result{
		Boxes: []Box{
			{Class: 1, Confidence: 0.3},
			{Class: 0, Confidence: 0.9},
			{Class: 1, Confidence: 0.6},
		},
		Names: map[int]string{0: "bottle", 1: "can"},
	}

	r.SortByConfidence()
	assert.InDelta(t, 0.9, r.Boxes[0].Confidence, 1e-6)
	assert.InDelta(t, 0.3, r.Boxes[2].Confidence, 1e-6)
	assert.Equal(t, []string{"bottle", "can"}, r.Labels())
}
