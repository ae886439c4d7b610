package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spboyer/flowstats/internal/export"
	"github.com/spboyer/flowstats/internal/models"
	"github.com/spboyer/flowstats/internal/reporting"
)

var (
	coursesFormat string
	coursesTop    int
)

func newCoursesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "courses",
		Short: "Rank the courses users chose",
		Long: `Run one fetch cycle and rank the courses detected in transcripts.

A course is read from the configured evaluations, transcript properties or
message patterns (see courses in .flowstats.yaml). Each transcript counts at
most once.`,
		Args: cobra.NoArgs,
		RunE: coursesCommandE,
	}

	cmd.Flags().StringVarP(&coursesFormat, "format", "f", "table", "Output format: table, csv or json")
	cmd.Flags().IntVar(&coursesTop, "top", 0, "Only show the N most popular courses")
	addCycleFlags(cmd)

	return cmd
}

func coursesCommandE(cmd *cobra.Command, _ []string) error {
	switch coursesFormat {
	case "table", "csv", "json":
	default:
		return fmt.Errorf("unsupported format %q: must be table, csv or json", coursesFormat)
	}
	if coursesTop < 0 {
		return fmt.Errorf("--top must not be negative")
	}

	run, err := runCycle(cmd)
	if err != nil {
		return err
	}

	doc := export.NewCourseAnalysisDocument(&run.summary)
	if coursesTop > 0 && len(doc.CourseRankings) > coursesTop {
		doc.CourseRankings = doc.CourseRankings[:coursesTop]
	}

	out := cmd.OutOrStdout()
	switch coursesFormat {
	case "json":
		err = export.WriteJSON(out, doc)
	case "csv":
		err = export.WriteCourseRanking(out, doc.CourseRankings)
	default:
		printCourseTable(out, run.summary.Courses, doc.CourseRankings)
	}
	if err != nil {
		return err
	}
	return run.strictError()
}

func printCourseTable(w io.Writer, analysis models.CourseAnalysis, rankings []models.CourseSignal) {
	heading(w, "COURSE POPULARITY")

	if len(rankings) == 0 {
		printer.Fprintf(w, "  No course choices found in %d transcripts.\n", analysis.TotalTranscripts)
		return
	}
	printer.Fprintf(w, "  %d choices across %d courses in %d transcripts\n\n",
		analysis.TotalChoices, analysis.UniqueCourses, analysis.TotalTranscripts)

	t := newTable("Rank", "Course", "Chosen", "Share", "").alignRight(0, 2, 3)
	for _, r := range rankings {
		t.add(strconv.Itoa(r.Rank), r.Course, printer.Sprintf("%d", r.Count),
			fmt.Sprintf("%.1f%%", r.Share*100), shareLabel(r.Share))
	}
	t.render(w)
}

// shareLabel is the interpretation without its percentage.
func shareLabel(share float64) string {
	label, _, _ := strings.Cut(reporting.InterpretShare(share), " (")
	return label
}
