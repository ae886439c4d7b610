package export

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spboyer/flowstats/internal/aggregate"
	"github.com/spboyer/flowstats/internal/models"
	"github.com/spboyer/flowstats/internal/statistics"
)

func ptr(f float64) *float64 { return &f }

func sampleMetrics() map[string]models.AggregatedMetric {
	return map[string]models.AggregatedMetric{
		"e-bool": {
			EvaluationID: "e-bool", Name: "Resolved", Type: models.EvaluationBoolean, Enabled: true, Count: 4,
			Boolean: &models.BooleanStats{
				TrueCount: 3, FalseCount: 1, SuccessRate: ptr(0.75),
				Interval: statistics.ConfidenceInterval{Lower: 0.25, Upper: 1, Mean: 0.75, ConfidenceLevel: 0.95, NumBootstraps: 2000},
			},
		},
		"e-empty": {
			EvaluationID: "e-empty", Name: "Escalated", Type: models.EvaluationBoolean,
			Boolean: &models.BooleanStats{},
		},
		"e-num": {
			EvaluationID: "e-num", Name: "Rating", Type: models.EvaluationNumber, Enabled: true, Count: 3,
			Number: &models.NumberStats{
				Mean: ptr(3.5), StdDev: 1.2, Variance: 1.44, Min: 1, Max: 9,
				RangeMin: ptr(1), RangeMax: ptr(5),
				Distribution: []models.Bucket{{Lower: 1, Upper: 3, Count: 1}, {Lower: 3, Upper: 5, Count: 1}},
				Outliers:     []models.Outlier{{TranscriptID: "t9", Value: 9}},
			},
		},
		"e-str": {
			EvaluationID: "e-str", Name: "Topic", Type: models.EvaluationString, Enabled: true, Count: 3,
			String: &models.StringStats{Frequencies: []models.ValueCount{{Value: "Math", Count: 2}, {Value: "Science", Count: 1}}},
		},
	}
}

func TestMetricsRoundTrip(t *testing.T) {
	want := sampleMetrics()

	var buf bytes.Buffer
	require.NoError(t, WriteMetrics(&buf, want))

	got, err := ReadMetrics(&buf)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestMetricsRoundTrip_FromEngine(t *testing.T) {
	ds := &models.Dataset{
		Definitions: []models.EvaluationDefinition{
			{ID: "b", Name: "Resolved", Type: models.EvaluationBoolean, Enabled: true},
			{ID: "n", Name: "Rating", Type: models.EvaluationNumber},
			{ID: "s", Name: "Topic", Type: models.EvaluationString},
		},
		Transcripts: []models.Transcript{{ID: "t1"}, {ID: "t2"}},
		Results: map[string][]models.EvaluationResult{
			"t1": {
				{EvaluationID: "b", Value: models.BoolValue(true)},
				{EvaluationID: "n", Value: models.NumberValue(4)},
				{EvaluationID: "s", Value: models.StringValue("Math")},
			},
			"t2": {
				{EvaluationID: "b", Value: models.BoolValue(false)},
				{EvaluationID: "n", Value: models.NumberValue(2)},
			},
		},
	}
	want := aggregate.NewEngine(aggregate.Options{}).Summarize(ds).Metrics

	var buf bytes.Buffer
	require.NoError(t, WriteMetrics(&buf, want))
	got, err := ReadMetrics(&buf)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestWriteMetrics_IgnoresNonFiniteResults(t *testing.T) {
	def := models.EvaluationDefinition{ID: "n", Name: "Rating", Type: models.EvaluationNumber}
	ds := &models.Dataset{
		Definitions: []models.EvaluationDefinition{def},
		Transcripts: []models.Transcript{{ID: "t1"}, {ID: "t2"}},
		Results: map[string][]models.EvaluationResult{
			"t1": {{EvaluationID: "n", Value: models.NumberValue(4)}},
			"t2": {{EvaluationID: "n", Value: models.StringValue("NaN")}},
		},
	}
	summary := aggregate.NewEngine(aggregate.Options{}).Summarize(ds)

	var buf bytes.Buffer
	require.NoError(t, WriteMetrics(&buf, summary.Metrics))
	got, err := ReadMetrics(&buf)
	require.NoError(t, err)
	assert.Equal(t, 1, got["n"].Count)
	assert.Equal(t, 1, summary.DroppedResults)
}

func TestMetricsJSONShowsNoData(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMetrics(&buf, map[string]models.AggregatedMetric{
		"e": {EvaluationID: "e", Type: models.EvaluationBoolean, Boolean: &models.BooleanStats{}},
	}))
	assert.Contains(t, buf.String(), `"success_rate": null`)
}

func TestReadMetrics_Invalid(t *testing.T) {
	_, err := ReadMetrics(bytes.NewBufferString("{"))
	require.Error(t, err)
}

func TestCourseAnalysisDocument(t *testing.T) {
	fetched := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s := &models.ProjectSummary{
		ProjectID: "p",
		FetchedAt: fetched,
		Courses: models.CourseAnalysis{
			TotalChoices:  2,
			UniqueCourses: 1,
			Rankings:      []models.CourseSignal{{Rank: 1, Course: "Math", Key: "math", Count: 2, Share: 1}},
		},
	}

	doc := NewCourseAnalysisDocument(s)
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, doc))

	var raw map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	assert.Equal(t, "2024-06-01T12:00:00Z", raw["analysis_date"])
	assert.EqualValues(t, 2, raw["total_choices"])
	assert.EqualValues(t, 1, raw["unique_courses"])
	assert.Len(t, raw["course_rankings"], 1)
	assert.Equal(t, []any{}, raw["detailed_choices"])
}

func TestProjectDump(t *testing.T) {
	ds := &models.Dataset{
		ProjectID:   "p",
		Transcripts: []models.Transcript{{ID: "t1"}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, NewProjectDump(ds, nil)))

	var raw map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	assert.Equal(t, "p", raw["project_id"])
	assert.Equal(t, []any{}, raw["evaluations"])
	assert.Equal(t, map[string]any{}, raw["evaluation_results"])
	assert.NotContains(t, raw, "summary")
	assert.Len(t, raw["transcripts"], 1)
}
