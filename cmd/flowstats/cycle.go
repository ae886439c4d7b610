package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/spboyer/flowstats/internal/aggregate"
	"github.com/spboyer/flowstats/internal/fetch"
	"github.com/spboyer/flowstats/internal/models"
	"github.com/spboyer/flowstats/internal/projectconfig"
	"github.com/spboyer/flowstats/internal/spinner"
	"github.com/spboyer/flowstats/internal/voiceflow"
)

const (
	envAPIKey    = "VOICEFLOW_API_KEY"
	envProjectID = "VOICEFLOW_PROJECT_ID"
)

// cycleFlags are shared by every command that runs a fetch cycle. Zero
// values defer to .flowstats.yaml.
type cycleFlags struct {
	projectID     string
	baseURL       string
	start         string
	end           string
	days          int
	pageSize      int
	maxPages      int
	order         string
	sessionID     string
	environmentID string
	resultsMode   string
	concurrency   int
	includeLogs   bool
	enabledOnly   bool
	timeout       time.Duration
	strict        bool
}

var cycleOpts cycleFlags

// now is replaced in tests.
var now = time.Now

func addCycleFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&cycleOpts.projectID, "project", "", "Voiceflow project ID (default: $"+envProjectID+")")
	f.StringVar(&cycleOpts.baseURL, "base-url", "", "Analytics API base URL")
	f.StringVar(&cycleOpts.start, "start", "", "Only transcripts created at or after this date (YYYY-MM-DD or RFC3339)")
	f.StringVar(&cycleOpts.end, "end", "", "Only transcripts created at or before this date (YYYY-MM-DD or RFC3339)")
	f.IntVar(&cycleOpts.days, "days", 0, "Only transcripts from the last N days (conflicts with --start)")
	f.IntVar(&cycleOpts.pageSize, "page-size", 0, "Transcripts per page, 1-100")
	f.IntVar(&cycleOpts.maxPages, "max-pages", 0, "Maximum number of transcript pages")
	f.StringVar(&cycleOpts.order, "order", "", "Listing order: ASC or DESC")
	f.StringVar(&cycleOpts.sessionID, "session", "", "Only transcripts of this session")
	f.StringVar(&cycleOpts.environmentID, "environment", "", "Only transcripts of this environment")
	f.StringVar(&cycleOpts.resultsMode, "results", "", "Evaluation results source: embedded or per-transcript")
	f.IntVar(&cycleOpts.concurrency, "concurrency", 0, "Concurrent per-transcript requests")
	f.BoolVar(&cycleOpts.includeLogs, "logs", false, "Fetch message logs for every transcript")
	f.BoolVar(&cycleOpts.enabledOnly, "enabled-only", false, "Only aggregate enabled evaluations")
	f.DurationVar(&cycleOpts.timeout, "timeout", 0, "Overall cycle timeout (e.g. 2m)")
	f.BoolVar(&cycleOpts.strict, "strict", false, "Exit with code 1 when the cycle returned partial data")
}

// cycleRun is the outcome of one fetch-and-aggregate pass.
type cycleRun struct {
	cfg     *projectconfig.ProjectConfig
	dataset *models.Dataset
	summary models.ProjectSummary
}

func loadProjectConfig() (*projectconfig.ProjectConfig, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("working directory: %w", err)
	}
	cfg, err := projectconfig.Load(wd)
	if err != nil {
		return nil, err
	}
	if cfg.Path != "" {
		slog.Debug("loaded configuration", "path", cfg.Path)
	}
	return cfg, nil
}

func newClient(cfg *projectconfig.ProjectConfig) (*voiceflow.Client, error) {
	retry := voiceflow.DefaultRetryPolicy()
	if cfg.API.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.API.MaxAttempts
	}
	client, err := voiceflow.NewClient(voiceflow.Config{
		BaseURL:   firstNonEmpty(cycleOpts.baseURL, cfg.API.BaseURL),
		APIKey:    os.Getenv(envAPIKey),
		ProjectID: firstNonEmpty(cycleOpts.projectID, os.Getenv(envProjectID)),
		Timeout:   time.Duration(cfg.API.Timeout) * time.Second,
		Retry:     &retry,
		UserAgent: "flowstats/" + version,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set %s and %s, or pass --project)", err, envAPIKey, envProjectID)
	}
	return client, nil
}

func buildFetchOptions(cfg *projectconfig.ProjectConfig, projectID string) (fetch.Options, error) {
	start, err := parseDate(cycleOpts.start, false)
	if err != nil {
		return fetch.Options{}, fmt.Errorf("--start: %w", err)
	}
	end, err := parseDate(cycleOpts.end, true)
	if err != nil {
		return fetch.Options{}, fmt.Errorf("--end: %w", err)
	}
	if cycleOpts.days > 0 {
		if start != nil {
			return fetch.Options{}, fmt.Errorf("--days and --start cannot be combined")
		}
		s := now().UTC().AddDate(0, 0, -cycleOpts.days)
		start = &s
	}
	if start != nil && end != nil && start.After(*end) {
		return fetch.Options{}, fmt.Errorf("start %s is after end %s", start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	mode, err := fetch.ParseResultsMode(firstNonEmpty(cycleOpts.resultsMode, cfg.Evaluations.Mode))
	if err != nil {
		return fetch.Options{}, err
	}

	return fetch.Options{
		ProjectID:     projectID,
		Start:         start,
		End:           end,
		PageSize:      firstPositive(cycleOpts.pageSize, cfg.Fetch.PageSize),
		MaxPages:      firstPositive(cycleOpts.maxPages, cfg.Fetch.MaxPages),
		Order:         firstNonEmpty(cycleOpts.order, cfg.Fetch.Order),
		SessionID:     cycleOpts.sessionID,
		EnvironmentID: firstNonEmpty(cycleOpts.environmentID, cfg.Fetch.EnvironmentID),
		ResultsMode:   mode,
		Concurrency:   firstPositive(cycleOpts.concurrency, cfg.Fetch.Concurrency),
		IncludeLogs:   cycleOpts.includeLogs || isTrue(cfg.Fetch.IncludeLogs),
		EnabledOnly:   cycleOpts.enabledOnly || isTrue(cfg.Evaluations.EnabledOnly),
	}, nil
}

func newEngine(cfg *projectconfig.ProjectConfig) (*aggregate.Engine, error) {
	courses, err := aggregate.NewCourseExtractor(cfg.Courses)
	if err != nil {
		return nil, fmt.Errorf("courses: %w", err)
	}
	return aggregate.NewEngine(aggregate.Options{
		Buckets:         cfg.Metrics.Buckets,
		NumberRanges:    cfg.Metrics.NumberRanges,
		ConfidenceLevel: cfg.Metrics.ConfidenceLevel,
		Courses:         courses,
	}), nil
}

// withHint appends what the user can do about common API failures.
func withHint(err error) error {
	switch {
	case voiceflow.IsAuthentication(err):
		return fmt.Errorf("%w (check %s)", err, envAPIKey)
	case voiceflow.IsServer(err):
		return fmt.Errorf("%w (the analytics API is unavailable, try again later)", err)
	case voiceflow.IsParse(err):
		return fmt.Errorf("%w (unexpected response shape, check --base-url)", err)
	}
	return err
}

// runCycle loads configuration, fetches one dataset and aggregates it.
func runCycle(cmd *cobra.Command) (*cycleRun, error) {
	cfg, err := loadProjectConfig()
	if err != nil {
		return nil, err
	}
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	opts, err := buildFetchOptions(cfg, client.ProjectID())
	if err != nil {
		return nil, err
	}
	engine, err := newEngine(cfg)
	if err != nil {
		return nil, err
	}

	timeout := cycleOpts.timeout
	if timeout <= 0 {
		timeout = time.Duration(cfg.Fetch.CycleTimeout) * time.Second
	}
	cycle := &fetch.Cycle{API: client, Options: opts, Timeout: timeout}

	sp := spinner.StartIfTerminal(os.Stderr, "Fetching transcripts from Voiceflow...")
	defer sp.Stop()

	ds, err := cycle.Run(cmd.Context())
	if err != nil {
		return nil, withHint(err)
	}

	sp.Update("Aggregating...")
	summary := engine.Summarize(ds)
	sp.Stop()

	if summary.Partial {
		fmt.Fprintf(cmd.ErrOrStderr(), "⚠ partial data: %d warning(s)\n", len(summary.Warnings)) //nolint:errcheck
		for _, w := range summary.Warnings {
			fmt.Fprintf(cmd.ErrOrStderr(), "  - %s\n", w.Error()) //nolint:errcheck
		}
	}
	return &cycleRun{cfg: cfg, dataset: ds, summary: summary}, nil
}

// strictError returns a PartialCycleError when --strict is set and the run
// is partial.
func (r *cycleRun) strictError() error {
	if cycleOpts.strict && r.summary.Partial {
		return &PartialCycleError{Warnings: len(r.summary.Warnings)}
	}
	return nil
}

// parseDate accepts RFC3339 or a bare date. A bare end date covers the
// whole day.
func parseDate(s string, endOfDay bool) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: use YYYY-MM-DD or RFC3339", s)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

func isTrue(b *bool) bool {
	return b != nil && *b
}
