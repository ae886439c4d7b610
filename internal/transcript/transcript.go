// Package transcript archives fetched transcripts as one JSON file each.
package transcript

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/spboyer/flowstats/internal/models"
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

func sanitizeName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, " ", "-")
	s = unsafeChars.ReplaceAllString(s, "")
	if s == "" {
		s = "unnamed"
	}
	return s
}

// Filename returns the archive filename for a transcript. Transcripts without
// a creation time are stamped "undated".
func Filename(id string, created time.Time) string {
	stamp := "undated"
	if !created.IsZero() {
		stamp = created.UTC().Format("20060102-150405")
	}
	return fmt.Sprintf("%s-%s.json", sanitizeName(id), stamp)
}

// Record is the archived form of a transcript with its evaluation results.
type Record struct {
	Transcript models.Transcript         `json:"transcript"`
	Results    []models.EvaluationResult `json:"evaluation_results"`
	CycleID    string                    `json:"cycle_id,omitempty"`
	FetchedAt  time.Time                 `json:"fetched_at,omitzero"`
}

// Write serializes a Record and writes it to dir.
func Write(dir string, r *Record) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create transcript dir: %w", err)
	}

	name := Filename(r.Transcript.ID, r.Transcript.CreatedAt)
	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal transcript: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write transcript: %w", err)
	}

	return path, nil
}

// Read loads a Record previously written by Write.
func Read(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse transcript %s: %w", path, err)
	}
	return &r, nil
}

// WriteAll archives every transcript of a dataset and returns the written
// paths in transcript order.
func WriteAll(dir string, ds *models.Dataset) ([]string, error) {
	paths := make([]string, 0, len(ds.Transcripts))
	for _, t := range ds.Transcripts {
		results := ds.Results[t.ID]
		if ds.Results == nil {
			results = t.Evaluations
		}
		p, err := Write(dir, &Record{
			Transcript: t,
			Results:    slices.Clone(results),
			CycleID:    ds.CycleID,
			FetchedAt:  ds.FetchedAt,
		})
		if err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}
