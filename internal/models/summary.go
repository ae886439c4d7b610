package models

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/spboyer/flowstats/internal/statistics"
)

// AggregatedMetric summarizes every result recorded for one evaluation
// definition. Exactly one of Boolean, Number or String is set, matching Type.
type AggregatedMetric struct {
	EvaluationID string         `json:"evaluation_id"`
	Name         string         `json:"name"`
	Type         EvaluationType `json:"type"`
	Enabled      bool           `json:"enabled"`
	Count        int            `json:"count"`
	Boolean      *BooleanStats  `json:"boolean"`
	Number       *NumberStats   `json:"number"`
	String       *StringStats   `json:"string"`
}

// BooleanStats holds success-rate statistics. SuccessRate is nil when no
// results were recorded, which callers must report as "no data".
type BooleanStats struct {
	TrueCount   int                           `json:"true_count"`
	FalseCount  int                           `json:"false_count"`
	SuccessRate *float64                      `json:"success_rate"`
	Interval    statistics.ConfidenceInterval `json:"interval"`
}

// NumberStats holds numeric statistics. Outliers are included in Mean,
// StdDev, Min and Max but are kept out of Distribution.
type NumberStats struct {
	Mean         *float64  `json:"mean"`
	StdDev       float64   `json:"std_dev"`
	Variance     float64   `json:"variance"`
	Min          float64   `json:"min"`
	Max          float64   `json:"max"`
	RangeMin     *float64  `json:"range_min"`
	RangeMax     *float64  `json:"range_max"`
	Distribution []Bucket  `json:"distribution"`
	Outliers     []Outlier `json:"outliers"`

	// Interval bounds the mean; zero below 2 results.
	Interval statistics.ConfidenceInterval `json:"interval"`
}

// Bucket is one half-open [Lower, Upper) display bin; the last bin is closed.
type Bucket struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// Outlier is a numeric result outside the plausible range.
type Outlier struct {
	TranscriptID string  `json:"transcript_id"`
	Value        float64 `json:"value"`
}

// StringStats holds value frequencies ordered by count desc then first-seen.
type StringStats struct {
	Frequencies []ValueCount `json:"frequencies"`
}

// ValueCount is a distinct value with its occurrence count.
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// CourseSignal is a ranked course label derived from transcript content.
type CourseSignal struct {
	Rank   int     `json:"rank"`
	Course string  `json:"course"`
	Key    string  `json:"key"`
	Count  int     `json:"count"`
	Share  float64 `json:"share"`
}

// CourseChoice records the course extracted for one transcript.
type CourseChoice struct {
	TranscriptID string    `json:"transcript_id"`
	Course       string    `json:"course"`
	Rule         string    `json:"rule"`
	CreatedAt    time.Time `json:"created_at,omitzero"`
}

// CourseAnalysis is the course popularity section of a summary.
type CourseAnalysis struct {
	TotalTranscripts int            `json:"total_transcripts"`
	TotalChoices     int            `json:"total_choices"`
	UniqueCourses    int            `json:"unique_courses"`
	Rankings         []CourseSignal `json:"rankings"`
	Choices          []CourseChoice `json:"choices"`
}

// SessionStats describes how transcripts are spread over sessions and time.
type SessionStats struct {
	UniqueSessions     int        `json:"unique_sessions"`
	WithoutSession     int        `json:"without_session"`
	WithRecording      int        `json:"with_recording"`
	WithoutTimestamp   int        `json:"without_timestamp"`
	ByDay              []DayCount `json:"by_day"`
	ByHour             [24]int    `json:"by_hour"`
	AvgMessagesPerChat float64    `json:"avg_messages_per_chat"`
}

// DayCount is the number of transcripts created on one UTC date.
type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// PropertyStats summarizes one transcript property across the dataset.
type PropertyStats struct {
	Name   string   `json:"name"`
	Type   string   `json:"type,omitempty"`
	Count  int      `json:"count"`
	Values []string `json:"values"`
}

// DateRange is an inclusive creation-time bound. Nil ends are open.
type DateRange struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// IsSet reports whether either bound is present.
func (r DateRange) IsSet() bool {
	return r.Start != nil || r.End != nil
}

// Contains reports whether ts lies within the inclusive bounds.
func (r DateRange) Contains(ts time.Time) bool {
	if r.Start != nil && ts.Before(*r.Start) {
		return false
	}
	if r.End != nil && ts.After(*r.End) {
		return false
	}
	return true
}

// PartialFetchWarning records per-transcript fetches that failed without
// aborting the cycle.
type PartialFetchWarning struct {
	Stage         string            `json:"stage"`
	TranscriptIDs []string          `json:"transcript_ids"`
	Errors        map[string]string `json:"errors,omitempty"`
	Message       string            `json:"message,omitempty"`
}

func (w PartialFetchWarning) Error() string {
	if w.Message != "" {
		return w.Stage + ": " + w.Message
	}
	return w.Stage + ": " + strings.Join(w.TranscriptIDs, ", ")
}

// ProjectSummary is the project-level result of one fetch-and-aggregate cycle.
type ProjectSummary struct {
	CycleID          string                      `json:"cycle_id,omitempty"`
	ProjectID        string                      `json:"project_id"`
	FetchedAt        time.Time                   `json:"fetched_at,omitzero"`
	Range            DateRange                   `json:"range"`
	TotalTranscripts int                         `json:"total_transcripts"`
	TotalResults     int                         `json:"total_evaluation_results"`
	DroppedResults   int                         `json:"dropped_results"`
	Metrics          map[string]AggregatedMetric `json:"metrics"`
	Courses          CourseAnalysis              `json:"courses"`
	Sessions         SessionStats                `json:"sessions"`
	Properties       []PropertyStats             `json:"properties"`
	Warnings         []PartialFetchWarning       `json:"warnings,omitempty"`
	Partial          bool                        `json:"partial,omitempty"`
}

// OrderedMetrics returns the metrics sorted by definition name then ID.
func (s *ProjectSummary) OrderedMetrics() []AggregatedMetric {
	out := make([]AggregatedMetric, 0, len(s.Metrics))
	for _, m := range s.Metrics {
		out = append(out, m)
	}
	sortMetrics(out)
	return out
}

func sortMetrics(ms []AggregatedMetric) {
	slices.SortFunc(ms, func(a, b AggregatedMetric) int {
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.EvaluationID, b.EvaluationID)
	})
}
