package voiceflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/spboyer/flowstats/internal/models"
)

const (
	// DefaultBaseURL is the public analytics API.
	DefaultBaseURL = "https://analytics-api.voiceflow.com"

	// DefaultTimeout bounds every individual request.
	DefaultTimeout = 30 * time.Second

	// MaxPageSize is the largest page the transcript endpoint accepts.
	MaxPageSize = 100

	// MaxFilters is the largest filter list the transcript endpoint accepts.
	MaxFilters = 50

	maxErrorBody = 4096
)

var tracer = otel.Tracer("github.com/spboyer/flowstats/internal/voiceflow")

// Config holds the settings needed to construct a Client.
type Config struct {
	// BaseURL is the root URL of the analytics API. Defaults to DefaultBaseURL.
	BaseURL string

	// APIKey is presented in the Authorization header on every call. Required.
	APIKey string

	// ProjectID scopes transcript and evaluation calls. Required.
	ProjectID string

	// Timeout applies to individual requests. Defaults to DefaultTimeout.
	Timeout time.Duration

	// HTTPClient is an optional custom HTTP client.
	HTTPClient *http.Client

	// Retry overrides DefaultRetryPolicy.
	Retry *RetryPolicy

	UserAgent string
	Logger    *slog.Logger
}

// Client is an HTTP client for the analytics API.
// All methods are safe for concurrent use.
type Client struct {
	baseURL   string
	apiKey    string
	projectID string
	timeout   time.Duration
	client    *http.Client
	retry     RetryPolicy
	userAgent string
	logger    *slog.Logger
}

// NewClient creates a Client from the given configuration.
// Returns an ErrConfig error if APIKey or ProjectID is empty.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrConfig)
	}
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, fmt.Errorf("%w: project ID is required", ErrConfig)
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("%w: base URL: %v", ErrConfig, err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	policy := DefaultRetryPolicy()
	if cfg.Retry != nil {
		policy = *cfg.Retry
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "flowstats"
	}

	return &Client{
		baseURL:   baseURL,
		apiKey:    strings.TrimSpace(cfg.APIKey),
		projectID: strings.TrimSpace(cfg.ProjectID),
		timeout:   timeout,
		client:    httpClient,
		retry:     policy,
		userAgent: userAgent,
		logger:    logger,
	}, nil
}

// ProjectID returns the configured project.
func (c *Client) ProjectID() string {
	return c.projectID
}

// ---------------------------------------------------------------------------
// Transcripts
// ---------------------------------------------------------------------------

// Filter is one structured transcript filter forwarded to the API verbatim.
type Filter map[string]any

// PageRequest describes one page of the transcript listing.
type PageRequest struct {
	ProjectID     string
	Take          int
	Skip          int
	Order         string
	Cursor        string
	Start         *time.Time
	End           *time.Time
	SessionID     string
	EnvironmentID string
	Filters       []Filter
}

// Page is one page of transcripts plus the server's continuation state.
// HasMore and NextCursor are nil/empty when the server did not send them.
type Page struct {
	Transcripts []models.Transcript
	NextCursor  string
	HasMore     *bool
	Total       *int
}

// transcriptBody is the wire format for POST /v1/transcript/project/{id}.
type transcriptBody struct {
	Cursor        string   `json:"cursor,omitempty"`
	StartDate     string   `json:"startDate,omitempty"`
	EndDate       string   `json:"endDate,omitempty"`
	SessionID     string   `json:"sessionID,omitempty"`
	EnvironmentID string   `json:"environmentID,omitempty"`
	Filters       []Filter `json:"filters,omitempty"`
}

// TranscriptPage fetches one page of project transcripts.
func (c *Client) TranscriptPage(ctx context.Context, req PageRequest) (*Page, error) {
	projectID := c.project(req.ProjectID)
	take := min(max(req.Take, 1), MaxPageSize)
	order := strings.ToUpper(req.Order)
	if order != "ASC" {
		order = "DESC"
	}

	query := url.Values{}
	query.Set("take", strconv.Itoa(take))
	query.Set("skip", strconv.Itoa(max(req.Skip, 0)))
	query.Set("order", order)

	body := transcriptBody{
		Cursor:        req.Cursor,
		SessionID:     req.SessionID,
		EnvironmentID: req.EnvironmentID,
		Filters:       req.Filters,
	}
	if len(body.Filters) > MaxFilters {
		body.Filters = body.Filters[:MaxFilters]
	}
	if req.Start != nil {
		body.StartDate = req.Start.UTC().Format(time.RFC3339Nano)
	}
	if req.End != nil {
		body.EndDate = req.End.UTC().Format(time.RFC3339Nano)
	}

	route := "/v1/transcript/project/{projectID}"
	raw, err := c.do(ctx, call{
		method: http.MethodPost,
		route:  route,
		path:   "/v1/transcript/project/" + url.PathEscape(projectID),
		query:  query,
		body:   body,
	})
	if err != nil {
		return nil, err
	}

	var wire transcriptPage
	if err := validate(transcriptPageValidator, route, raw, &wire); err != nil {
		return nil, err
	}

	page := &Page{HasMore: wire.HasMore, Total: wire.Total}
	if wire.NextCursor != nil {
		page.NextCursor = *wire.NextCursor
	}
	page.Transcripts = make([]models.Transcript, 0, len(wire.Transcripts))
	for _, wt := range wire.Transcripts {
		t, err := wt.toModel()
		if err != nil {
			return nil, &Error{Kind: ErrParse, Path: route, Err: err}
		}
		if t.ProjectID == "" {
			t.ProjectID = projectID
		}
		page.Transcripts = append(page.Transcripts, t)
	}
	return page, nil
}

// TranscriptLogs fetches the message log for one transcript.
func (c *Client) TranscriptLogs(ctx context.Context, transcriptID string) ([]models.Message, error) {
	route := "/v1/transcript/{transcriptID}/logs"
	raw, err := c.do(ctx, call{
		method: http.MethodGet,
		route:  route,
		path:   "/v1/transcript/" + url.PathEscape(transcriptID) + "/logs",
	})
	if err != nil {
		return nil, err
	}

	var wire logsResponse
	if err := validate(logsValidator, route, raw, &wire); err != nil {
		return nil, err
	}
	logs := wire.Logs
	if len(logs) == 0 {
		logs = wire.Messages
	}
	msgs, err := convertLogs(logs)
	if err != nil {
		return nil, &Error{Kind: ErrParse, Path: route, Err: err}
	}
	return msgs, nil
}

// ---------------------------------------------------------------------------
// Evaluations
// ---------------------------------------------------------------------------

// Definitions fetches the project's evaluation definitions. A non-nil
// enabled restricts the listing to enabled or disabled definitions.
func (c *Client) Definitions(ctx context.Context, projectID string, enabled *bool) ([]models.EvaluationDefinition, error) {
	projectID = c.project(projectID)
	query := url.Values{}
	if enabled != nil {
		query.Set("enabled", strconv.FormatBool(*enabled))
	}

	route := "/v1/transcript-evaluation/project/{projectID}"
	raw, err := c.do(ctx, call{
		method: http.MethodGet,
		route:  route,
		path:   "/v1/transcript-evaluation/project/" + url.PathEscape(projectID),
		query:  query,
	})
	if err != nil {
		return nil, err
	}

	var wire definitionsResponse
	if err := validate(definitionsValidator, route, raw, &wire); err != nil {
		return nil, err
	}
	defs := make([]models.EvaluationDefinition, 0, len(wire.Evaluations))
	for _, wd := range wire.Evaluations {
		d, err := wd.toModel()
		if err != nil {
			return nil, &Error{Kind: ErrParse, Path: route, Err: err}
		}
		defs = append(defs, d)
	}
	return defs, nil
}

// TranscriptResults fetches the evaluation results recorded for one transcript.
func (c *Client) TranscriptResults(ctx context.Context, projectID, transcriptID string) ([]models.EvaluationResult, error) {
	projectID = c.project(projectID)
	query := url.Values{}
	query.Set("transcriptID", transcriptID)

	route := "/v1/transcript-evaluation/project/{projectID}?transcriptID"
	raw, err := c.do(ctx, call{
		method: http.MethodGet,
		route:  route,
		path:   "/v1/transcript-evaluation/project/" + url.PathEscape(projectID),
		query:  query,
	})
	if err != nil {
		return nil, err
	}

	var wire resultsResponse
	if err := validate(resultsValidator, route, raw, &wire); err != nil {
		return nil, err
	}
	results := make([]models.EvaluationResult, 0, len(wire.Results))
	for _, wr := range wire.Results {
		if wr.TranscriptID == "" {
			wr.TranscriptID = transcriptID
		}
		r, err := wr.toModel()
		if err != nil {
			return nil, &Error{Kind: ErrParse, Path: route, Err: err}
		}
		results = append(results, r)
	}
	return results, nil
}

// ---------------------------------------------------------------------------
// HTTP transport
// ---------------------------------------------------------------------------

// Request performs an authenticated call and returns the raw JSON payload.
// path is relative to the base URL; body, when non-nil, is sent as JSON.
func (c *Client) Request(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	return c.do(ctx, call{method: method, route: path, path: path, query: query, body: body})
}

type call struct {
	method string
	route  string // low-cardinality name for spans and parse errors
	path   string
	query  url.Values
	body   any
}

func (c *Client) project(id string) string {
	if id == "" {
		return c.projectID
	}
	return id
}

func (c *Client) do(ctx context.Context, cl call) (json.RawMessage, error) {
	var encoded []byte
	if cl.body != nil {
		var err error
		if encoded, err = json.Marshal(cl.body); err != nil {
			return nil, fmt.Errorf("voiceflow: marshal request body: %w", err)
		}
	}

	ctx, span := tracer.Start(ctx, "voiceflow "+cl.method+" "+cl.route,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("http.request.method", cl.method)),
	)
	defer span.End()

	var (
		payload  json.RawMessage
		attempts int
	)
	err := c.retry.Do(ctx, func(ctx context.Context, attempt int) error {
		attempts = attempt
		var err error
		payload, err = c.attempt(ctx, cl, encoded)
		if err != nil && attempt > 1 {
			c.logger.DebugContext(ctx, "voiceflow request retry failed",
				"method", cl.method, "path", cl.path, "attempt", attempt, "error", err)
		}
		return err
	})
	span.SetAttributes(attribute.Int("voiceflow.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return payload, nil
}

// attempt issues a single request. The request runs detached from ctx
// cancellation and is bounded by the client timeout, so a started call is
// allowed to finish; ctx only decides whether a new call starts.
func (c *Client) attempt(ctx context.Context, cl call, encoded []byte) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("voiceflow: %s %s: %w", cl.method, cl.path, err)
	}

	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	target := c.baseURL + cl.path
	if len(cl.query) > 0 {
		target += "?" + cl.query.Encode()
	}

	var body io.Reader
	if encoded != nil {
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(reqCtx, cl.method, target, body)
	if err != nil {
		return nil, fmt.Errorf("voiceflow: create request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if encoded != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &Error{Kind: ErrNetwork, Method: cl.method, Path: cl.path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &Error{
			Kind:       kindForStatus(resp.StatusCode),
			Method:     cl.method,
			Path:       cl.path,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(b),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: ErrNetwork, Method: cl.method, Path: cl.path, Err: fmt.Errorf("read response body: %w", err)}
	}
	return b, nil
}

// errorMessage pulls a readable message out of an error body.
func errorMessage(body []byte) string {
	var envelope struct {
		Message string `json:"message"`
		Error   any    `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Message != "" {
			return envelope.Message
		}
		switch e := envelope.Error.(type) {
		case string:
			return e
		case map[string]any:
			if m, ok := e["message"].(string); ok {
				return m
			}
		}
	}
	return strings.TrimSpace(string(body))
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if ts, err := http.ParseTime(v); err == nil {
		if d := time.Until(ts); d > 0 {
			return d
		}
	}
	return 0
}
