package main

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/spboyer/flowstats/internal/export"
	"github.com/spboyer/flowstats/internal/models"
	"github.com/spboyer/flowstats/internal/reporting"
)

var (
	summaryFormat string
	summaryOutput string
	summaryJUnit  string
)

func newSummaryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Fetch transcripts and print a project summary",
		Long: `Run one fetch cycle and print the aggregated project summary.

Formats: text (tables plus a plain-language interpretation), markdown, html
and json. With --junit every evaluation becomes a JUnit test case that fails
when it is below its threshold in .flowstats.yaml.`,
		Args: cobra.NoArgs,
		RunE: summaryCommandE,
	}

	cmd.Flags().StringVarP(&summaryFormat, "format", "f", "text", "Output format: text, markdown, html or json")
	cmd.Flags().StringVarP(&summaryOutput, "output", "o", "", "Write the summary to a file instead of stdout (.gz compresses)")
	cmd.Flags().StringVar(&summaryJUnit, "junit", "", "Write a JUnit XML threshold report to this path")
	addCycleFlags(cmd)

	return cmd
}

func summaryCommandE(cmd *cobra.Command, _ []string) error {
	switch summaryFormat {
	case "text", "markdown", "html", "json":
	default:
		return fmt.Errorf("unsupported format %q: must be text, markdown, html or json", summaryFormat)
	}

	run, err := runCycle(cmd)
	if err != nil {
		return err
	}

	data, err := renderSummary(&run.summary, summaryFormat)
	if err != nil {
		return err
	}
	if err := writeOutput(cmd.OutOrStdout(), summaryOutput, data); err != nil {
		return err
	}

	if summaryJUnit != "" {
		if err := reporting.WriteJUnitXML(&run.summary, run.cfg.Thresholds, summaryJUnit); err != nil {
			return fmt.Errorf("writing JUnit report: %w", err)
		}
	}
	return run.strictError()
}

func renderSummary(s *models.ProjectSummary, format string) ([]byte, error) {
	switch format {
	case "markdown":
		return []byte(reporting.RenderMarkdown(s)), nil
	case "html":
		return reporting.RenderHTML(s)
	case "json":
		var buf bytes.Buffer
		if err := export.WriteJSON(&buf, s); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		var buf bytes.Buffer
		printSummaryTables(&buf, s)
		buf.WriteString(reporting.FormatSummaryReport(s))
		return buf.Bytes(), nil
	}
}

// writeOutput writes data to path, or to w when path is empty.
func writeOutput(w io.Writer, path string, data []byte) error {
	if path == "" {
		_, err := w.Write(data)
		return err
	}
	return export.WriteFile(path, func(f io.Writer) error {
		_, err := f.Write(data)
		return err
	})
}

func printSummaryTables(w io.Writer, s *models.ProjectSummary) {
	heading(w, "PROJECT SUMMARY")

	printer.Fprintf(w, "  Transcripts:        %d\n", s.TotalTranscripts)
	printer.Fprintf(w, "  Evaluation results: %d\n", s.TotalResults)
	printer.Fprintf(w, "  Unique sessions:    %d\n", s.Sessions.UniqueSessions)
	if s.DroppedResults > 0 {
		printer.Fprintf(w, "  Dropped results:    %d\n", s.DroppedResults)
	}
	fmt.Fprintln(w) //nolint:errcheck

	if len(s.Metrics) > 0 {
		t := newTable("Evaluation", "Type", "Results", "Value").alignRight(2)
		for _, m := range s.OrderedMetrics() {
			t.add(m.Name, string(m.Type), printer.Sprintf("%d", m.Count), metricValue(m))
		}
		t.render(w)
		fmt.Fprintln(w) //nolint:errcheck
	}

	if n := len(s.Courses.Rankings); n > 0 {
		t := newTable("Rank", "Course", "Chosen", "Share").alignRight(0, 2, 3)
		for _, r := range s.Courses.Rankings[:min(n, 10)] {
			t.add(strconv.Itoa(r.Rank), r.Course, printer.Sprintf("%d", r.Count), fmt.Sprintf("%.1f%%", r.Share*100))
		}
		t.render(w)
		fmt.Fprintln(w) //nolint:errcheck
	}
}

func metricValue(m models.AggregatedMetric) string {
	switch {
	case m.Boolean != nil:
		if m.Boolean.SuccessRate == nil {
			return reporting.NoData
		}
		return fmt.Sprintf("%.1f%% true", *m.Boolean.SuccessRate*100)
	case m.Number != nil:
		if m.Number.Mean == nil {
			return reporting.NoData
		}
		return fmt.Sprintf("mean %.2f", *m.Number.Mean)
	case m.String != nil:
		if len(m.String.Frequencies) == 0 {
			return reporting.NoData
		}
		return fmt.Sprintf("%d distinct", len(m.String.Frequencies))
	default:
		return reporting.NoData
	}
}
