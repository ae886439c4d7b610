package reporting

import (
	"fmt"
	"strings"

	"github.com/spboyer/flowstats/internal/models"
)

// NoData is shown wherever a metric has no results.
const NoData = "No data"

// InterpretSuccessRate returns a plain-language label for a boolean success
// rate (0–1). A nil rate means no results were recorded.
func InterpretSuccessRate(rate *float64) string {
	if rate == nil {
		return NoData
	}
	pct := *rate * 100
	switch {
	case pct >= 90:
		return fmt.Sprintf("Excellent (%.0f%%)", pct)
	case pct >= 70:
		return fmt.Sprintf("Good (%.0f%%)", pct)
	case pct >= 50:
		return fmt.Sprintf("Needs Work (%.0f%%)", pct)
	default:
		return fmt.Sprintf("Poor (%.0f%%)", pct)
	}
}

// InterpretShare describes how popular a course is given its share of all
// course choices (0–1).
func InterpretShare(share float64) string {
	pct := share * 100
	switch {
	case pct > 50:
		return fmt.Sprintf("Dominant choice (%.1f%%)", pct)
	case pct >= 20:
		return fmt.Sprintf("Popular (%.1f%%)", pct)
	case pct >= 5:
		return fmt.Sprintf("Occasional (%.1f%%)", pct)
	default:
		return fmt.Sprintf("Rare (%.1f%%)", pct)
	}
}

// Highlights lists the notable facts of a summary, most important first.
func Highlights(s *models.ProjectSummary) []string {
	var out []string

	if len(s.Courses.Rankings) > 0 {
		top := s.Courses.Rankings[0]
		out = append(out, fmt.Sprintf("Most popular course: %s (%d choices, %s)", top.Course, top.Count, InterpretShare(top.Share)))
		if len(s.Courses.Rankings) >= 3 {
			top3 := 0
			for _, r := range s.Courses.Rankings[:3] {
				top3 += r.Count
			}
			out = append(out, fmt.Sprintf("Top 3 courses account for %.1f%% of all choices",
				float64(top3)/float64(s.Courses.TotalChoices)*100))
		}
	}

	for _, m := range s.OrderedMetrics() {
		switch {
		case m.Boolean != nil && m.Boolean.SuccessRate != nil:
			out = append(out, fmt.Sprintf("%s: %s over %d results", m.Name, InterpretSuccessRate(m.Boolean.SuccessRate), m.Count))
		case m.Number != nil && m.Number.Mean != nil:
			line := fmt.Sprintf("%s: %d results, average %.2f", m.Name, m.Count, *m.Number.Mean)
			if n := len(m.Number.Outliers); n > 0 {
				line += fmt.Sprintf(" (%d outside the expected range)", n)
			}
			out = append(out, line)
		case m.String != nil && len(m.String.Frequencies) > 0:
			top := m.String.Frequencies[0]
			out = append(out, fmt.Sprintf("%s: most common value %q (%d of %d)", m.Name, top.Value, top.Count, m.Count))
		}
	}

	if s.DroppedResults > 0 {
		out = append(out, fmt.Sprintf("%d evaluation results could not be matched or parsed and were skipped", s.DroppedResults))
	}
	return out
}

// FormatSummaryReport produces a plain-language report from a ProjectSummary.
func FormatSummaryReport(s *models.ProjectSummary) string {
	var b strings.Builder

	b.WriteString("=== Interpretation ===\n\n")
	fmt.Fprintf(&b, "Project:       %s\n", s.ProjectID)
	if !s.FetchedAt.IsZero() {
		fmt.Fprintf(&b, "Fetched:       %s\n", s.FetchedAt.Format("2006-01-02 15:04 MST"))
	}
	if r := formatRange(s.Range); r != "" {
		fmt.Fprintf(&b, "Range:         %s\n", r)
	}
	fmt.Fprintf(&b, "Transcripts:   %d\n", s.TotalTranscripts)
	fmt.Fprintf(&b, "Evaluations:   %d results\n", s.TotalResults)
	if s.Courses.TotalChoices > 0 {
		fmt.Fprintf(&b, "Courses:       %d choices across %d courses\n", s.Courses.TotalChoices, s.Courses.UniqueCourses)
	}

	if hs := Highlights(s); len(hs) > 0 {
		b.WriteString("\nHighlights:\n")
		for _, h := range hs {
			fmt.Fprintf(&b, "  • %s\n", h)
		}
	}

	if len(s.Metrics) > 0 {
		b.WriteString("\nPer-Evaluation Interpretation:\n")
		for _, m := range s.OrderedMetrics() {
			fmt.Fprintf(&b, "  %s [%s]: %s\n", m.Name, m.Type, interpretMetric(m))
		}
	}

	if s.Partial || len(s.Warnings) > 0 {
		b.WriteString("\n⚠ Partial data:\n")
		for _, w := range s.Warnings {
			fmt.Fprintf(&b, "  - %s\n", w.Error())
		}
	}

	return b.String()
}

func interpretMetric(m models.AggregatedMetric) string {
	switch {
	case m.Boolean != nil:
		return InterpretSuccessRate(m.Boolean.SuccessRate)
	case m.Number != nil:
		if m.Number.Mean == nil {
			return NoData
		}
		return fmt.Sprintf("mean %.2f, std dev %.2f, range %g–%g", *m.Number.Mean, m.Number.StdDev, m.Number.Min, m.Number.Max)
	case m.String != nil:
		if len(m.String.Frequencies) == 0 {
			return NoData
		}
		return fmt.Sprintf("%d distinct values, most common %q", len(m.String.Frequencies), m.String.Frequencies[0].Value)
	default:
		return NoData
	}
}

func formatRange(r models.DateRange) string {
	const layout = "2006-01-02"
	switch {
	case r.Start != nil && r.End != nil:
		return r.Start.Format(layout) + " to " + r.End.Format(layout)
	case r.Start != nil:
		return "from " + r.Start.Format(layout)
	case r.End != nil:
		return "until " + r.End.Format(layout)
	default:
		return ""
	}
}
