package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/spboyer/flowstats/internal/models"
	"github.com/spboyer/flowstats/internal/voiceflow"
)

// DefaultCycleTimeout caps the wall-clock time of one cycle.
const DefaultCycleTimeout = 5 * time.Minute

// CycleError reports a fatal failure that aborted a cycle.
type CycleError struct {
	Stage string
	Err   error
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle aborted during %s: %v", e.Stage, e.Err)
}

func (e *CycleError) Unwrap() error { return e.Err }

// Options configure what a cycle fetches.
type Options struct {
	ProjectID     string
	Start         *time.Time
	End           *time.Time
	PageSize      int
	MaxPages      int
	Order         string
	SessionID     string
	EnvironmentID string
	Filters       []voiceflow.Filter

	ResultsMode ResultsMode
	Concurrency int
	IncludeLogs bool
	EnabledOnly bool
}

// Cycle runs one fetch pass: definitions, transcripts, results and
// optionally message logs.
type Cycle struct {
	API     API
	Options Options
	Timeout time.Duration
	Logger  *slog.Logger

	// Now and NewID are overridable for tests.
	Now   func() time.Time
	NewID func() string
}

func (c *Cycle) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

// Run executes the cycle. Fatal errors from the definitions or transcript
// stage return a *CycleError. When the cycle timeout expires the data
// gathered so far is returned with Partial set and a cycle warning; per
// transcript failures become PartialFetchWarnings.
func (c *Cycle) Run(ctx context.Context) (*models.Dataset, error) {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	newID := uuid.NewString
	if c.NewID != nil {
		newID = c.NewID
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultCycleTimeout
	}

	opts := c.Options
	ds := &models.Dataset{
		CycleID:   newID(),
		ProjectID: opts.ProjectID,
		FetchedAt: now().UTC(),
		Range:     models.DateRange{Start: opts.Start, End: opts.End},
	}
	log := c.logger().With("cycle", ds.CycleID, "project", opts.ProjectID)

	cycleCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// timedOut distinguishes our own deadline from the caller's cancellation.
	timedOut := func() bool {
		return ctx.Err() == nil && errors.Is(cycleCtx.Err(), context.DeadlineExceeded)
	}

	evals := &EvaluationFetcher{
		API:         c.API,
		Mode:        opts.ResultsMode,
		Concurrency: opts.Concurrency,
		Logger:      log,
	}

	start := now()
	log.InfoContext(ctx, "cycle started", "results_mode", string(evals.Mode))

	defs, err := evals.Definitions(cycleCtx, opts.ProjectID, opts.EnabledOnly)
	if err != nil {
		return nil, &CycleError{Stage: StageDefinitions, Err: err}
	}
	ds.Definitions = defs

	fetcher := &TranscriptFetcher{API: c.API, Logger: log}
	set, err := fetcher.Fetch(cycleCtx, TranscriptQuery{
		ProjectID:     opts.ProjectID,
		Start:         opts.Start,
		End:           opts.End,
		PageSize:      opts.PageSize,
		MaxPages:      opts.MaxPages,
		Order:         opts.Order,
		SessionID:     opts.SessionID,
		EnvironmentID: opts.EnvironmentID,
		Filters:       opts.Filters,
	})
	if err != nil {
		if set == nil || !timedOut() {
			return nil, &CycleError{Stage: StageTranscripts, Err: err}
		}
		ds.Partial = true
		ds.Warnings = append(ds.Warnings, models.PartialFetchWarning{
			Stage:   StageTranscripts,
			Message: fmt.Sprintf("cycle timeout after %d pages; transcript listing incomplete", set.Pages),
		})
	}
	ds.Transcripts = set.Transcripts

	if opts.IncludeLogs {
		var w *models.PartialFetchWarning
		ds.Transcripts, w = evals.Logs(cycleCtx, ds.Transcripts)
		if w != nil {
			ds.Warnings = append(ds.Warnings, *w)
		}
	}

	results, w := evals.Results(cycleCtx, opts.ProjectID, ds.Transcripts)
	ds.Results = results
	if w != nil {
		ds.Warnings = append(ds.Warnings, *w)
	}

	if err := ctx.Err(); err != nil {
		return nil, &CycleError{Stage: StageResults, Err: err}
	}
	if timedOut() && !ds.Partial {
		ds.Partial = true
		ds.Warnings = append(ds.Warnings, models.PartialFetchWarning{
			Stage:   StageCycle,
			Message: fmt.Sprintf("cycle timeout of %s reached; returning partial data", timeout),
		})
	}
	if len(ds.Warnings) > 0 {
		ds.Partial = true
	}

	log.InfoContext(ctx, "cycle finished",
		"transcripts", len(ds.Transcripts),
		"results", ds.ResultCount(),
		"warnings", len(ds.Warnings),
		"partial", ds.Partial,
		"duration", now().Sub(start))
	return ds, nil
}
