package reporting

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/spboyer/flowstats/internal/models"
)

// RenderMarkdown renders a summary as a markdown report with one table per
// section.
func RenderMarkdown(s *models.ProjectSummary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Transcript report: %s\n\n", s.ProjectID)
	if !s.FetchedAt.IsZero() {
		fmt.Fprintf(&b, "Generated %s", s.FetchedAt.Format("2006-01-02 15:04 MST"))
		if r := formatRange(s.Range); r != "" {
			fmt.Fprintf(&b, " for %s", r)
		}
		b.WriteString(".\n\n")
	}

	b.WriteString("## Overview\n\n")
	b.WriteString("| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Transcripts | %d |\n", s.TotalTranscripts)
	fmt.Fprintf(&b, "| Evaluation results | %d |\n", s.TotalResults)
	fmt.Fprintf(&b, "| Unique sessions | %d |\n", s.Sessions.UniqueSessions)
	fmt.Fprintf(&b, "| Course choices | %d |\n", s.Courses.TotalChoices)
	fmt.Fprintf(&b, "| Avg. messages per chat | %.1f |\n\n", s.Sessions.AvgMessagesPerChat)

	if hs := Highlights(s); len(hs) > 0 {
		b.WriteString("## Highlights\n\n")
		for _, h := range hs {
			fmt.Fprintf(&b, "- %s\n", escapeCell(h))
		}
		b.WriteString("\n")
	}

	if len(s.Courses.Rankings) > 0 {
		b.WriteString("## Course popularity\n\n")
		b.WriteString("| Rank | Course | Times chosen | Share |\n|---:|---|---:|---:|\n")
		for _, r := range s.Courses.Rankings {
			fmt.Fprintf(&b, "| %d | %s | %d | %.1f%% |\n", r.Rank, escapeCell(r.Course), r.Count, r.Share*100)
		}
		b.WriteString("\n")
	}

	if len(s.Metrics) > 0 {
		b.WriteString("## Evaluations\n\n")
		b.WriteString("| Evaluation | Type | Results | Summary |\n|---|---|---:|---|\n")
		for _, m := range s.OrderedMetrics() {
			fmt.Fprintf(&b, "| %s | %s | %d | %s |\n", escapeCell(m.Name), m.Type, m.Count, escapeCell(interpretMetric(m)))
		}
		b.WriteString("\n")
	}

	if len(s.Sessions.ByDay) > 0 {
		b.WriteString("## Transcripts per day\n\n")
		b.WriteString("| Date | Transcripts |\n|---|---:|\n")
		for _, d := range s.Sessions.ByDay {
			fmt.Fprintf(&b, "| %s | %d |\n", d.Date, d.Count)
		}
		b.WriteString("\n")
	}

	if len(s.Warnings) > 0 {
		b.WriteString("## Warnings\n\n")
		for _, w := range s.Warnings {
			fmt.Fprintf(&b, "- %s\n", escapeCell(w.Error()))
		}
		b.WriteString("\n")
	}

	return b.String()
}

// RenderHTML renders the markdown report as a standalone HTML page.
func RenderHTML(s *models.ProjectSummary) ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))

	var body bytes.Buffer
	if err := md.Convert([]byte(RenderMarkdown(s)), &body); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}

	var out bytes.Buffer
	out.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&out, "<title>Transcript report: %s</title>\n", html.EscapeString(s.ProjectID))
	out.WriteString("</head>\n<body>\n")
	out.Write(body.Bytes())
	out.WriteString("</body>\n</html>\n")
	return out.Bytes(), nil
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
