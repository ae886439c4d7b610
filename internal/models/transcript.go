package models

import "time"

// Transcript is one recorded conversation session fetched from the analytics API.
// Transcripts are immutable once fetched.
type Transcript struct {
	ID            string         `json:"id"`
	ProjectID     string         `json:"project_id,omitempty"`
	SessionID     string         `json:"session_id,omitempty"`
	EnvironmentID string         `json:"environment_id,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	EndedAt       *time.Time     `json:"ended_at,omitempty"`
	RecordingURL  string         `json:"recording_url,omitempty"`
	Messages      []Message      `json:"messages,omitempty"`
	Properties    []Property     `json:"properties,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`

	// Evaluations holds results embedded in the transcript record by the API.
	// They are resolved against the definition set during aggregation.
	Evaluations []EvaluationResult `json:"evaluations,omitempty"`
}

// HasTimestamp reports whether the API supplied a creation time.
func (t *Transcript) HasTimestamp() bool {
	return !t.CreatedAt.IsZero()
}

// Property returns the value of the first property with the given name.
func (t *Transcript) Property(name string) (string, bool) {
	for _, p := range t.Properties {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

// Message is a single turn within a transcript.
type Message struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// Property is a named value the runtime attached to a transcript
// (e.g. a captured variable such as a chosen course).
type Property struct {
	Name  string `json:"name"`
	Type  string `json:"type,omitempty"`
	Value string `json:"value"`
}
