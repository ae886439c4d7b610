package voiceflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/spboyer/flowstats/internal/models"
)

// Wire formats as returned by the analytics API. They are converted into
// models types before leaving this package.

type transcriptPage struct {
	Transcripts []wireTranscript `json:"transcripts"`
	NextCursor  *string          `json:"nextCursor"`
	HasMore     *bool            `json:"hasMore"`
	Total       *int             `json:"total"`
}

type wireTranscript struct {
	ID            string         `json:"id"`
	ProjectID     string         `json:"projectID"`
	SessionID     string         `json:"sessionID"`
	EnvironmentID string         `json:"environmentID"`
	CreatedAt     string         `json:"createdAt"`
	EndedAt       string         `json:"endedAt"`
	RecordingURL  string         `json:"recordingURL"`
	Properties    []wireProperty `json:"properties"`
	Evaluations   []wireResult   `json:"evaluations"`
	Logs          []wireLog      `json:"logs"`
	Messages      []wireLog      `json:"messages"`
	Metadata      map[string]any `json:"metadata"`
}

type wireProperty struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value any    `json:"value"`
}

type wireResult struct {
	ID           string  `json:"id"`
	EvaluationID string  `json:"evaluationID"`
	TranscriptID string  `json:"transcriptID"`
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	Value        any     `json:"value"`
	Cost         float64 `json:"cost"`
	CreatedAt    string  `json:"createdAt"`
}

type wireLog struct {
	Type      string         `json:"type"`
	Role      string         `json:"role"`
	Text      string         `json:"text"`
	Message   string         `json:"message"`
	Payload   map[string]any `json:"payload"`
	CreatedAt string         `json:"createdAt"`
}

type wireDefinition struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Enabled     *bool  `json:"enabled"`
	Default     bool   `json:"default"`
	Settings    struct {
		Type string `json:"type"`
	} `json:"settings"`
}

type definitionsResponse struct {
	Evaluations []wireDefinition `json:"evaluations"`
}

type resultsResponse struct {
	Results []wireResult `json:"results"`
}

type logsResponse struct {
	Logs     []wireLog `json:"logs"`
	Messages []wireLog `json:"messages"`
}

func parseTimestamp(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", field, err)
	}
	return ts.UTC(), nil
}

func (w wireTranscript) toModel() (models.Transcript, error) {
	created, err := parseTimestamp("createdAt", w.CreatedAt)
	if err != nil {
		return models.Transcript{}, fmt.Errorf("transcript %s: %w", w.ID, err)
	}
	t := models.Transcript{
		ID:            w.ID,
		ProjectID:     w.ProjectID,
		SessionID:     w.SessionID,
		EnvironmentID: w.EnvironmentID,
		CreatedAt:     created,
		RecordingURL:  w.RecordingURL,
		Metadata:      w.Metadata,
	}
	if w.EndedAt != "" {
		ended, err := parseTimestamp("endedAt", w.EndedAt)
		if err != nil {
			return models.Transcript{}, fmt.Errorf("transcript %s: %w", w.ID, err)
		}
		t.EndedAt = &ended
	}
	for _, p := range w.Properties {
		t.Properties = append(t.Properties, models.Property{
			Name:  p.Name,
			Type:  p.Type,
			Value: stringify(p.Value),
		})
	}
	logs := w.Logs
	if len(logs) == 0 {
		logs = w.Messages
	}
	if t.Messages, err = convertLogs(logs); err != nil {
		return models.Transcript{}, fmt.Errorf("transcript %s: %w", w.ID, err)
	}
	for _, r := range w.Evaluations {
		if r.TranscriptID == "" {
			r.TranscriptID = w.ID
		}
		res, err := r.toModel()
		if err != nil {
			return models.Transcript{}, fmt.Errorf("transcript %s: %w", w.ID, err)
		}
		t.Evaluations = append(t.Evaluations, res)
	}
	return t, nil
}

func (w wireResult) toModel() (models.EvaluationResult, error) {
	created, err := parseTimestamp("createdAt", w.CreatedAt)
	if err != nil {
		return models.EvaluationResult{}, fmt.Errorf("evaluation %q: %w", w.Name, err)
	}
	v, err := models.ValueOf(w.Value)
	if err != nil {
		return models.EvaluationResult{}, fmt.Errorf("evaluation %q: %w", w.Name, err)
	}
	// Prefer the declared type when the value converts cleanly; otherwise keep
	// the inferred kind and let aggregation decide.
	if declared, err := models.ParseEvaluationType(w.Type); err == nil && !v.IsZero() {
		if coerced, err := v.Coerce(declared); err == nil {
			v = coerced
		}
	}
	id := w.EvaluationID
	if id == "" && w.Name == "" {
		id = w.ID
	}
	return models.EvaluationResult{
		TranscriptID: w.TranscriptID,
		EvaluationID: id,
		Name:         w.Name,
		Value:        v,
		Cost:         w.Cost,
		CreatedAt:    created,
	}, nil
}

func (w wireDefinition) toModel() (models.EvaluationDefinition, error) {
	typ := w.Type
	if typ == "" {
		typ = w.Settings.Type
	}
	et, err := models.ParseEvaluationType(typ)
	if err != nil {
		return models.EvaluationDefinition{}, fmt.Errorf("evaluation definition %s: %w", w.ID, err)
	}
	enabled := true
	if w.Enabled != nil {
		enabled = *w.Enabled
	}
	return models.EvaluationDefinition{
		ID:          w.ID,
		Name:        w.Name,
		Description: w.Description,
		Type:        et,
		Enabled:     enabled,
		Default:     w.Default,
	}, nil
}

func convertLogs(logs []wireLog) ([]models.Message, error) {
	var out []models.Message
	for _, l := range logs {
		ts, err := parseTimestamp("log createdAt", l.CreatedAt)
		if err != nil {
			return nil, err
		}
		text := firstNonEmpty(l.Text, l.Message, payloadText(l.Payload))
		if text == "" {
			continue
		}
		out = append(out, models.Message{
			Role:      logRole(l),
			Text:      text,
			Timestamp: ts,
		})
	}
	return out, nil
}

// logRole infers who produced a log entry. The runtime marks user turns as
// "request" and bot output as "speak"/"text" traces.
func logRole(l wireLog) string {
	if l.Role != "" {
		return l.Role
	}
	switch l.Type {
	case "request", "user", "intent":
		return "user"
	default:
		return "assistant"
	}
}

func payloadText(p map[string]any) string {
	if p == nil {
		return ""
	}
	for _, key := range []string{"message", "text", "query"} {
		if s, ok := p[key].(string); ok && s != "" {
			return s
		}
	}
	if inner, ok := p["payload"].(map[string]any); ok {
		return payloadText(inner)
	}
	return ""
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
