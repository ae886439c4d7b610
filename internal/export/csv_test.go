package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spboyer/flowstats/internal/models"
)

func TestCourseRankingRoundTrip(t *testing.T) {
	rankings := []models.CourseSignal{
		{Rank: 1, Course: "Math, Advanced", Count: 2, Share: 2.0 / 3.0},
		{Rank: 2, Course: "Science", Count: 1, Share: 1.0 / 3.0},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCourseRanking(&buf, rankings))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "rank,course,times_chosen,percentage,share", lines[0])
	assert.Equal(t, `1,"Math, Advanced",2,66.7%,2/3`, lines[1])
	assert.Equal(t, "2,Science,1,33.3%,1/3", lines[2])

	got, err := ReadCourseRanking(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Math, Advanced", got[0].Course)
	assert.Equal(t, 2, got[0].Count)
	assert.InDelta(t, 2.0/3.0, got[0].Share, 1e-9)
}

func TestReadCourseRanking_Errors(t *testing.T) {
	_, err := ReadCourseRanking(strings.NewReader(""))
	require.Error(t, err)

	_, err = ReadCourseRanking(strings.NewReader("rank,course,times_chosen,percentage,share\nx,Math,1,100%,1/1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
}

func TestWriteMetricsCSV(t *testing.T) {
	ms := []models.AggregatedMetric{
		{EvaluationID: "b", Name: "Resolved", Type: models.EvaluationBoolean, Enabled: true, Count: 2,
			Boolean: &models.BooleanStats{TrueCount: 1, FalseCount: 1, SuccessRate: ptr(0.5)}},
		{EvaluationID: "e", Name: "Escalated", Type: models.EvaluationBoolean, Boolean: &models.BooleanStats{}},
		{EvaluationID: "n", Name: "Rating", Type: models.EvaluationNumber, Count: 2,
			Number: &models.NumberStats{Mean: ptr(3), StdDev: 1, Min: 2, Max: 4,
				Distribution: []models.Bucket{{Lower: 2, Upper: 3, Count: 1}, {Lower: 3, Upper: 4, Count: 1}}}},
		{EvaluationID: "s", Name: "Topic", Type: models.EvaluationString, Count: 3,
			String: &models.StringStats{Frequencies: []models.ValueCount{{Value: "Math", Count: 2}, {Value: "Art", Count: 1}}}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteMetricsCSV(&buf, ms))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, metricsHeader, records[0])

	byCol := func(row []string, col string) string {
		for i, h := range metricsHeader {
			if h == col {
				return row[i]
			}
		}
		t.Fatalf("unknown column %s", col)
		return ""
	}

	assert.Equal(t, "0.5", byCol(records[1], "success_rate"))
	assert.Equal(t, "", byCol(records[2], "success_rate"), "no data must be an empty cell")
	assert.Equal(t, "0", byCol(records[2], "true_count"))
	assert.Equal(t, "3", byCol(records[3], "mean"))
	assert.Equal(t, "2-3=1;3-4=1", byCol(records[3], "distribution"))
	assert.Equal(t, "0", byCol(records[3], "outliers"))
	assert.Equal(t, "2", byCol(records[4], "distinct_values"))
	assert.Equal(t, "Math", byCol(records[4], "top_value"))
	assert.Equal(t, "Math=2;Art=1", byCol(records[4], "distribution"))
}
