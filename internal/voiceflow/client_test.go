package voiceflow

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spboyer/flowstats/internal/models"
)

func fastRetry() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:    3,
		BaseDelay:      time.Millisecond,
		MaxDelay:       5 * time.Millisecond,
		NetworkRetries: 1,
		NetworkDelay:   time.Millisecond,
	}
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{
		BaseURL:   srv.URL,
		APIKey:    "VF.DM.test",
		ProjectID: "proj-1",
		Timeout:   2 * time.Second,
		Retry:     fastRetry(),
	})
	require.NoError(t, err)
	return c
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestNewClient_RequiresCredentials(t *testing.T) {
	_, err := NewClient(Config{ProjectID: "p"})
	require.ErrorIs(t, err, ErrConfig)

	_, err = NewClient(Config{APIKey: "k"})
	require.ErrorIs(t, err, ErrConfig)

	c, err := NewClient(Config{APIKey: " k ", ProjectID: "p"})
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.baseURL)
	assert.Equal(t, "k", c.apiKey)
	assert.Equal(t, DefaultTimeout, c.timeout)
}

func TestTranscriptPage_RequestShape(t *testing.T) {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	var gotBody map[string]any

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/transcript/project/proj-1", r.URL.Path)
		assert.Equal(t, "VF.DM.test", r.Header.Get("Authorization"))
		assert.Equal(t, "100", r.URL.Query().Get("take"))
		assert.Equal(t, "20", r.URL.Query().Get("skip"))
		assert.Equal(t, "ASC", r.URL.Query().Get("order"))

		b, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(b, &gotBody))

		writeJSON(t, w, map[string]any{
			"transcripts": []map[string]any{{
				"id":        "t1",
				"sessionID": "s1",
				"createdAt": "2024-05-02T10:30:00.000Z",
				"properties": []map[string]any{
					{"name": "platform", "type": "string", "value": "web"},
					{"name": "turns", "type": "number", "value": 4},
				},
				"evaluations": []map[string]any{
					{"name": "AI course chosen", "type": "string", "value": "Biology 101"},
					{"evaluationID": "e-ok", "name": "Resolved", "type": "boolean", "value": "true"},
				},
			}},
			"hasMore": true,
		})
	})

	page, err := c.TranscriptPage(context.Background(), PageRequest{
		Take:  500,
		Skip:  20,
		Order: "asc",
		Start: &start,
	})
	require.NoError(t, err)

	assert.Equal(t, "2024-05-01T00:00:00Z", gotBody["startDate"])
	assert.NotContains(t, gotBody, "endDate")

	require.NotNil(t, page.HasMore)
	assert.True(t, *page.HasMore)
	require.Len(t, page.Transcripts, 1)

	tr := page.Transcripts[0]
	assert.Equal(t, "t1", tr.ID)
	assert.Equal(t, "proj-1", tr.ProjectID)
	assert.Equal(t, time.Date(2024, 5, 2, 10, 30, 0, 0, time.UTC), tr.CreatedAt)
	v, ok := tr.Property("turns")
	assert.True(t, ok)
	assert.Equal(t, "4", v)

	require.Len(t, tr.Evaluations, 2)
	assert.Equal(t, "t1", tr.Evaluations[0].TranscriptID)
	assert.Equal(t, models.StringValue("Biology 101"), tr.Evaluations[0].Value)
	assert.Equal(t, models.BoolValue(true), tr.Evaluations[1].Value)
}

func TestTranscriptPage_KeepsSubsecondBounds(t *testing.T) {
	end := time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1).Add(-time.Nanosecond)
	var gotBody map[string]any

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(b, &gotBody))
		writeJSON(t, w, map[string]any{"transcripts": []any{}})
	})

	_, err := c.TranscriptPage(context.Background(), PageRequest{End: &end})
	require.NoError(t, err)
	assert.Equal(t, "2024-05-31T23:59:59.999999999Z", gotBody["endDate"])
}

func TestTranscriptPage_ClampsTakeAndFilters(t *testing.T) {
	var gotBody transcriptBody
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("take"))
		assert.Equal(t, "DESC", r.URL.Query().Get("order"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		writeJSON(t, w, map[string]any{"transcripts": []any{}})
	})

	filters := make([]Filter, 60)
	for i := range filters {
		filters[i] = Filter{"field": "tag"}
	}
	page, err := c.TranscriptPage(context.Background(), PageRequest{Take: 0, Filters: filters})
	require.NoError(t, err)
	assert.Empty(t, page.Transcripts)
	assert.Nil(t, page.HasMore)
	assert.Len(t, gotBody.Filters, MaxFilters)
}

func TestTranscriptPage_SchemaViolation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"items": []any{}})
	})

	_, err := c.TranscriptPage(context.Background(), PageRequest{Take: 10})
	require.Error(t, err)
	assert.True(t, IsParse(err))
}

func TestTranscriptPage_BadTimestamp(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"transcripts": []map[string]any{{"id": "t1", "createdAt": "yesterday"}}})
	})

	_, err := c.TranscriptPage(context.Background(), PageRequest{Take: 10})
	require.Error(t, err)
	assert.True(t, IsParse(err))
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(error) bool
		calls  int32
	}{
		{"unauthorized", http.StatusUnauthorized, IsAuthentication, 1},
		{"forbidden", http.StatusForbidden, IsAuthentication, 1},
		{"not found", http.StatusNotFound, IsNotFound, 1},
		{"server", http.StatusBadGateway, IsServer, 1},
		{"rate limited", http.StatusTooManyRequests, IsRateLimited, 3},
		{"bad request", http.StatusBadRequest, func(err error) bool { return errorsIs(err, ErrRequest) }, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"message":"nope"}`))
			})

			_, err := c.Definitions(context.Background(), "", nil)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error kind: %v", err)
			assert.Contains(t, err.Error(), "nope")
			assert.Equal(t, tt.calls, calls.Load())
		})
	}
}

func TestRateLimitRecovers(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeJSON(t, w, map[string]any{"evaluations": []map[string]any{
			{"id": "e1", "name": "Resolved", "type": "boolean"},
		}})
	})

	defs, err := c.Definitions(context.Background(), "", nil)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestServerErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.TranscriptLogs(context.Background(), "t1")
	require.Error(t, err)
	assert.True(t, IsServer(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestTimeoutIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{
		BaseURL:   srv.URL,
		APIKey:    "k",
		ProjectID: "p",
		Timeout:   20 * time.Millisecond,
		Retry:     &RetryPolicy{MaxAttempts: 1, NetworkRetries: 0},
	})
	require.NoError(t, err)

	_, err = c.Definitions(context.Background(), "", nil)
	require.Error(t, err)
	assert.True(t, IsNetwork(err))
}

func TestDefinitions(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/transcript-evaluation/project/other", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("enabled"))
		writeJSON(t, w, map[string]any{"evaluations": []map[string]any{
			{"id": "e1", "name": "Resolved", "type": "boolean", "default": true},
			{"id": "e2", "name": "Rating", "type": "number", "enabled": false},
			{"id": "e3", "name": "AI course chosen", "type": "string", "description": "course"},
		}})
	})

	enabled := true
	defs, err := c.Definitions(context.Background(), "other", &enabled)
	require.NoError(t, err)
	require.Len(t, defs, 3)
	assert.Equal(t, models.EvaluationBoolean, defs[0].Type)
	assert.True(t, defs[0].Enabled)
	assert.True(t, defs[0].Default)
	assert.Equal(t, models.EvaluationNumber, defs[1].Type)
	assert.False(t, defs[1].Enabled)
	assert.Equal(t, "course", defs[2].Description)
}

func TestDefinitions_UnknownType(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"evaluations": []map[string]any{
			{"id": "e1", "name": "Odd", "type": "vector"},
		}})
	})

	_, err := c.Definitions(context.Background(), "", nil)
	require.Error(t, err)
	assert.True(t, IsParse(err))
}

func TestTranscriptResults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "t9", r.URL.Query().Get("transcriptID"))
		writeJSON(t, w, map[string]any{"results": []map[string]any{
			{"evaluationID": "e2", "name": "Rating", "type": "number", "value": "4.5", "cost": 0.01},
			{"evaluationID": "e1", "value": false},
		}})
	})

	results, err := c.TranscriptResults(context.Background(), "", "t9")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "t9", results[0].TranscriptID)
	assert.Equal(t, models.NumberValue(4.5), results[0].Value)
	assert.InDelta(t, 0.01, results[0].Cost, 1e-9)
	assert.Equal(t, models.BoolValue(false), results[1].Value)
}

func TestTranscriptLogs(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/transcript/t1/logs", r.URL.Path)
		writeJSON(t, w, map[string]any{"logs": []map[string]any{
			{"type": "request", "payload": map[string]any{"payload": map[string]any{"query": "hi"}}, "createdAt": "2024-05-02T10:30:00Z"},
			{"type": "speak", "payload": map[string]any{"message": "hello"}},
			{"type": "debug"},
		}})
	})

	msgs, err := c.TranscriptLogs(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, "hi", msgs[0].Text)
	assert.Equal(t, "assistant", msgs[1].Role)
	assert.Equal(t, "hello", msgs[1].Text)
}

func TestCancelledContextSkipsRequest(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Request(ctx, http.MethodGet, "/anything", nil, nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls.Load())
}

func TestInFlightRequestSurvivesCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		cancel()
		time.Sleep(20 * time.Millisecond)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	raw, err := c.Request(ctx, http.MethodGet, "/ping", nil, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(raw))
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 3*time.Second, parseRetryAfter("3"))
	assert.Zero(t, parseRetryAfter(""))
	assert.Zero(t, parseRetryAfter("soon"))
	future := time.Now().Add(time.Minute).UTC().Format(http.TimeFormat)
	assert.Greater(t, parseRetryAfter(future), 30*time.Second)
}
