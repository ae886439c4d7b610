package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

const testProject = "proj-1"

var fakeTranscripts = []map[string]any{
	{
		"id": "t1", "sessionID": "s1", "createdAt": "2024-05-02T10:00:00Z",
		"evaluations": []map[string]any{
			{"evaluationID": "e-resolved", "name": "Resolved", "value": true},
			{"evaluationID": "e-course", "name": "AI course chosen", "value": "Biology"},
		},
	},
	{
		"id": "t2", "sessionID": "s2", "createdAt": "2024-05-02T11:00:00Z",
		"evaluations": []map[string]any{
			{"evaluationID": "e-resolved", "name": "Resolved", "value": false},
			{"evaluationID": "e-course", "name": "AI course chosen", "value": "biology"},
		},
	},
	{
		"id": "t3", "sessionID": "s2", "createdAt": "2024-05-03T09:30:00Z",
		"evaluations": []map[string]any{
			{"evaluationID": "e-course", "name": "AI course chosen", "value": "Math"},
		},
	},
}

var fakeDefinitions = []map[string]any{
	{"id": "e-resolved", "name": "Resolved", "type": "boolean", "enabled": true},
	{"id": "e-course", "name": "AI course chosen", "type": "text", "enabled": true},
	{"id": "e-old", "name": "Legacy score", "type": "number", "enabled": false},
}

// fakeVoiceflow serves a small three-transcript project. Per-transcript
// result requests for IDs in failResults answer 404.
type fakeVoiceflow struct {
	*httptest.Server
	failResults map[string]bool
	pages       atomic.Int32
}

func newFakeVoiceflow(t *testing.T) *fakeVoiceflow {
	t.Helper()
	f := &fakeVoiceflow{failResults: map[string]bool{}}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/transcript/project/"+testProject, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.pages.Add(1)
		writeJSON(w, map[string]any{"transcripts": fakeTranscripts, "hasMore": false})
	})
	mux.HandleFunc("GET /v1/transcript-evaluation/project/"+testProject, func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("transcriptID")
		if id == "" {
			defs := fakeDefinitions
			if r.URL.Query().Get("enabled") == "true" {
				defs = defs[:2]
			}
			writeJSON(w, map[string]any{"evaluations": defs})
			return
		}
		if f.failResults[id] {
			w.WriteHeader(http.StatusNotFound)
			writeJSON(w, map[string]any{"message": "transcript not found"})
			return
		}
		for _, tr := range fakeTranscripts {
			if tr["id"] == id {
				writeJSON(w, map[string]any{"results": tr["evaluations"]})
				return
			}
		}
		writeJSON(w, map[string]any{"results": []any{}})
	})

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// useTestEnv isolates a test from the caller's environment, working
// directory and configuration file.
func useTestEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv(envAPIKey, "test-key")
	t.Setenv(envProjectID, testProject)
	t.Setenv(envStorageAccountURL, "")
	return dir
}

// runRoot executes the root command with args and returns stdout.
func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.Execute()
	return out.String(), err
}

func mustRunRoot(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runRoot(t, args...)
	require.NoError(t, err)
	return out
}
