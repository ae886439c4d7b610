// Package fetch drains transcripts and evaluation data from the analytics
// API and assembles them into a per-cycle dataset.
package fetch

import (
	"context"

	"github.com/spboyer/flowstats/internal/models"
	"github.com/spboyer/flowstats/internal/voiceflow"
)

//go:generate go tool mockgen -source=api.go -destination=api_mock_test.go -package=fetch

// API is the subset of [*voiceflow.Client] the fetchers use.
type API interface {
	// TranscriptPage maps to [voiceflow.Client.TranscriptPage]
	TranscriptPage(ctx context.Context, req voiceflow.PageRequest) (*voiceflow.Page, error)

	// Definitions maps to [voiceflow.Client.Definitions]
	Definitions(ctx context.Context, projectID string, enabled *bool) ([]models.EvaluationDefinition, error)

	// TranscriptResults maps to [voiceflow.Client.TranscriptResults]
	TranscriptResults(ctx context.Context, projectID, transcriptID string) ([]models.EvaluationResult, error)

	// TranscriptLogs maps to [voiceflow.Client.TranscriptLogs]
	TranscriptLogs(ctx context.Context, transcriptID string) ([]models.Message, error)
}

var _ API = (*voiceflow.Client)(nil)
