package models

import "time"

// Dataset is everything fetched during one cycle, ready for aggregation.
type Dataset struct {
	CycleID     string                        `json:"cycle_id"`
	ProjectID   string                        `json:"project_id"`
	FetchedAt   time.Time                     `json:"fetched_at"`
	Range       DateRange                     `json:"range"`
	Definitions []EvaluationDefinition        `json:"evaluations"`
	Transcripts []Transcript                  `json:"transcripts"`
	Results     map[string][]EvaluationResult `json:"evaluation_results"`
	Warnings    []PartialFetchWarning         `json:"warnings,omitempty"`
	Partial     bool                          `json:"partial,omitempty"`
}

// ResultCount returns the number of results across all transcripts.
func (d *Dataset) ResultCount() int {
	n := 0
	for _, rs := range d.Results {
		n += len(rs)
	}
	return n
}
