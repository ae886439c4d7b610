// Package export writes summaries and datasets as JSON and CSV documents.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spboyer/flowstats/internal/models"
)

// WriteJSON encodes v with two-space indentation.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// WriteMetrics writes the metric map keyed by definition ID.
func WriteMetrics(w io.Writer, metrics map[string]models.AggregatedMetric) error {
	return WriteJSON(w, metrics)
}

// ReadMetrics reads a document produced by WriteMetrics.
func ReadMetrics(r io.Reader) (map[string]models.AggregatedMetric, error) {
	var out map[string]models.AggregatedMetric
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode metrics: %w", err)
	}
	return out, nil
}

// CourseAnalysisDocument is the standalone course popularity export.
type CourseAnalysisDocument struct {
	AnalysisDate    time.Time             `json:"analysis_date"`
	ProjectID       string                `json:"project_id,omitempty"`
	TotalChoices    int                   `json:"total_choices"`
	UniqueCourses   int                   `json:"unique_courses"`
	CourseRankings  []models.CourseSignal `json:"course_rankings"`
	DetailedChoices []models.CourseChoice `json:"detailed_choices"`
}

// NewCourseAnalysisDocument builds the course export from a summary. The
// analysis date is the summary's fetch time.
func NewCourseAnalysisDocument(s *models.ProjectSummary) CourseAnalysisDocument {
	return CourseAnalysisDocument{
		AnalysisDate:    s.FetchedAt,
		ProjectID:       s.ProjectID,
		TotalChoices:    s.Courses.TotalChoices,
		UniqueCourses:   s.Courses.UniqueCourses,
		CourseRankings:  nonNil(s.Courses.Rankings),
		DetailedChoices: nonNil(s.Courses.Choices),
	}
}

// ProjectDump is the complete fetched dataset plus its summary.
type ProjectDump struct {
	ProjectID         string                               `json:"project_id"`
	CycleID           string                               `json:"cycle_id,omitempty"`
	FetchedAt         time.Time                            `json:"fetched_at"`
	Evaluations       []models.EvaluationDefinition        `json:"evaluations"`
	Transcripts       []models.Transcript                  `json:"transcripts"`
	EvaluationResults map[string][]models.EvaluationResult `json:"evaluation_results"`
	Summary           *models.ProjectSummary               `json:"summary,omitempty"`
}

// NewProjectDump assembles a dump. summary may be nil.
func NewProjectDump(ds *models.Dataset, summary *models.ProjectSummary) ProjectDump {
	results := ds.Results
	if results == nil {
		results = map[string][]models.EvaluationResult{}
	}
	return ProjectDump{
		ProjectID:         ds.ProjectID,
		CycleID:           ds.CycleID,
		FetchedAt:         ds.FetchedAt,
		Evaluations:       nonNil(ds.Definitions),
		Transcripts:       nonNil(ds.Transcripts),
		EvaluationResults: results,
		Summary:           summary,
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
