package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/spboyer/flowstats/internal/models"
)

// ResultsMode selects where evaluation results come from.
type ResultsMode string

const (
	// ResultsEmbedded reads the results the API embeds in transcript records.
	ResultsEmbedded ResultsMode = "embedded"
	// ResultsPerTranscript issues one results request per transcript.
	ResultsPerTranscript ResultsMode = "per-transcript"
)

// ParseResultsMode validates a configured mode. Empty means embedded.
func ParseResultsMode(s string) (ResultsMode, error) {
	switch ResultsMode(s) {
	case "", ResultsEmbedded:
		return ResultsEmbedded, nil
	case ResultsPerTranscript:
		return ResultsPerTranscript, nil
	default:
		return "", fmt.Errorf("unknown evaluation results mode %q (want %q or %q)", s, ResultsEmbedded, ResultsPerTranscript)
	}
}

// Warning stages.
const (
	StageDefinitions = "evaluation-definitions"
	StageTranscripts = "transcripts"
	StageResults     = "evaluation-results"
	StageLogs        = "transcript-logs"
	StageCycle       = "cycle"
)

// EvaluationFetcher retrieves evaluation definitions and per-transcript data.
type EvaluationFetcher struct {
	API         API
	Mode        ResultsMode
	Concurrency int
	Logger      *slog.Logger
}

func (f *EvaluationFetcher) logger() *slog.Logger {
	if f.Logger == nil {
		return slog.Default()
	}
	return f.Logger
}

// Definitions fetches the project's evaluation definitions. When enabledOnly
// is set, disabled definitions are filtered server-side.
func (f *EvaluationFetcher) Definitions(ctx context.Context, projectID string, enabledOnly bool) ([]models.EvaluationDefinition, error) {
	var enabled *bool
	if enabledOnly {
		t := true
		enabled = &t
	}
	defs, err := f.API.Definitions(ctx, projectID, enabled)
	if err != nil {
		return nil, fmt.Errorf("fetch evaluation definitions: %w", err)
	}
	return defs, nil
}

// Results returns transcript ID → results for every transcript given, with an
// entry (possibly empty) for each. A transcript whose fetch fails gets an
// empty list and is named in the returned warning; the batch always
// completes. The warning is nil when nothing failed.
func (f *EvaluationFetcher) Results(ctx context.Context, projectID string, transcripts []models.Transcript) (map[string][]models.EvaluationResult, *models.PartialFetchWarning) {
	out := make(map[string][]models.EvaluationResult, len(transcripts))

	if f.Mode != ResultsPerTranscript {
		for _, t := range transcripts {
			rs := make([]models.EvaluationResult, 0, len(t.Evaluations))
			for _, r := range t.Evaluations {
				if r.TranscriptID == "" {
					r.TranscriptID = t.ID
				}
				rs = append(rs, r)
			}
			out[t.ID] = rs
		}
		return out, nil
	}

	slots := make([][]models.EvaluationResult, len(transcripts))
	errs := forEach(ctx, len(transcripts), f.Concurrency, func(ctx context.Context, i int) error {
		rs, err := f.API.TranscriptResults(ctx, projectID, transcripts[i].ID)
		if err != nil {
			return err
		}
		slots[i] = rs
		return nil
	})

	for i, t := range transcripts {
		rs := slots[i]
		if rs == nil {
			rs = []models.EvaluationResult{}
		}
		out[t.ID] = rs
	}
	return out, f.warning(ctx, StageResults, transcripts, errs)
}

// Logs returns a copy of transcripts with Messages filled from the message
// log endpoint. A failed fetch keeps the transcript's existing messages and
// is named in the returned warning.
func (f *EvaluationFetcher) Logs(ctx context.Context, transcripts []models.Transcript) ([]models.Transcript, *models.PartialFetchWarning) {
	slots := make([][]models.Message, len(transcripts))
	errs := forEach(ctx, len(transcripts), f.Concurrency, func(ctx context.Context, i int) error {
		msgs, err := f.API.TranscriptLogs(ctx, transcripts[i].ID)
		if err != nil {
			return err
		}
		slots[i] = msgs
		return nil
	})

	out := slices.Clone(transcripts)
	for i := range out {
		if errs[i] == nil {
			out[i].Messages = slots[i]
		}
	}
	return out, f.warning(ctx, StageLogs, transcripts, errs)
}

func (f *EvaluationFetcher) warning(ctx context.Context, stage string, transcripts []models.Transcript, errs []error) *models.PartialFetchWarning {
	var w *models.PartialFetchWarning
	for i, err := range errs {
		if err == nil {
			continue
		}
		if w == nil {
			w = &models.PartialFetchWarning{Stage: stage, Errors: make(map[string]string)}
		}
		id := transcripts[i].ID
		w.TranscriptIDs = append(w.TranscriptIDs, id)
		w.Errors[id] = err.Error()
	}
	if w != nil {
		w.Message = fmt.Sprintf("%d of %d transcripts failed", len(w.TranscriptIDs), len(transcripts))
		f.logger().WarnContext(ctx, "partial fetch", "stage", stage, "failed", len(w.TranscriptIDs), "total", len(transcripts))
	}
	return w
}
