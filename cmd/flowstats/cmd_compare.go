package main

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"

	"github.com/spboyer/flowstats/internal/export"
	"github.com/spboyer/flowstats/internal/models"
)

var compareOutputFormat string

func newCompareCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <before.csv> <after.csv>",
		Short: "Compare two course ranking exports",
		Long: `Compare two course_ranking.csv files written by "flowstats export".

Shows, per course, the change in times chosen, share and rank between the
two exports. Courses are matched case-insensitively. Gzipped files are read
transparently.`,
		Args: cobra.ExactArgs(2),
		RunE: compareCommandE,
	}

	cmd.Flags().StringVarP(&compareOutputFormat, "format", "f", "table", "Output format: table or json")

	return cmd
}

// courseDelta is the change of one course between two rankings. A zero rank
// means the course is absent from that file.
type courseDelta struct {
	Course      string  `json:"course"`
	RankBefore  int     `json:"rank_before"`
	RankAfter   int     `json:"rank_after"`
	CountBefore int     `json:"count_before"`
	CountAfter  int     `json:"count_after"`
	CountDelta  int     `json:"count_delta"`
	ShareBefore float64 `json:"share_before"`
	ShareAfter  float64 `json:"share_after"`
	ShareDelta  float64 `json:"share_delta"`
}

// rankingComparison is the full comparison output.
type rankingComparison struct {
	Files       [2]string     `json:"files"`
	TotalBefore int           `json:"total_before"`
	TotalAfter  int           `json:"total_after"`
	Courses     []courseDelta `json:"courses"`
	NewCourses  []string      `json:"new_courses"`
	LostCourses []string      `json:"lost_courses"`
}

func compareCommandE(cmd *cobra.Command, args []string) error {
	if compareOutputFormat != "table" && compareOutputFormat != "json" {
		return fmt.Errorf("unsupported format %q: must be table or json", compareOutputFormat)
	}

	before, err := loadRankingFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", args[0], err)
	}
	after, err := loadRankingFile(args[1])
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", args[1], err)
	}

	report := compareRankings(before, after)
	report.Files = [2]string{args[0], args[1]}

	if compareOutputFormat == "json" {
		return export.WriteJSON(cmd.OutOrStdout(), report)
	}
	printComparisonTable(cmd.OutOrStdout(), report)
	return nil
}

func loadRankingFile(path string) ([]models.CourseSignal, error) {
	f, err := export.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck
	return export.ReadCourseRanking(f)
}

func compareRankings(before, after []models.CourseSignal) *rankingComparison {
	fold := cases.Fold()
	key := func(s string) string { return fold.String(strings.TrimSpace(s)) }

	report := &rankingComparison{NewCourses: []string{}, LostCourses: []string{}}
	byKey := map[string]*courseDelta{}
	var order []string

	for _, c := range before {
		report.TotalBefore += c.Count
		k := key(c.Course)
		byKey[k] = &courseDelta{Course: c.Course, RankBefore: c.Rank, CountBefore: c.Count, ShareBefore: c.Share}
		order = append(order, k)
	}
	for _, c := range after {
		report.TotalAfter += c.Count
		k := key(c.Course)
		d, ok := byKey[k]
		if !ok {
			d = &courseDelta{Course: c.Course}
			byKey[k] = d
			order = append(order, k)
			report.NewCourses = append(report.NewCourses, c.Course)
		}
		d.Course = c.Course
		d.RankAfter, d.CountAfter, d.ShareAfter = c.Rank, c.Count, c.Share
	}

	for _, k := range order {
		d := byKey[k]
		if d.RankAfter == 0 {
			report.LostCourses = append(report.LostCourses, d.Course)
		}
		d.CountDelta = d.CountAfter - d.CountBefore
		d.ShareDelta = d.ShareAfter - d.ShareBefore
		report.Courses = append(report.Courses, *d)
	}

	// Current ranking first, then courses that disappeared by their old rank.
	slices.SortStableFunc(report.Courses, func(a, b courseDelta) int {
		ra, rb := a.RankAfter, b.RankAfter
		if ra == 0 || rb == 0 {
			if ra != rb {
				return cmp.Compare(rb, ra)
			}
			return cmp.Compare(a.RankBefore, b.RankBefore)
		}
		return cmp.Compare(ra, rb)
	})
	return report
}

func printComparisonTable(w io.Writer, r *rankingComparison) {
	heading(w, "COURSE RANKING COMPARISON")

	fmt.Fprintf(w, "  [1] %s\n  [2] %s\n\n", r.Files[0], r.Files[1]) //nolint:errcheck
	printer.Fprintf(w, "  Choices: %d → %d (%+d)\n\n", r.TotalBefore, r.TotalAfter, r.TotalAfter-r.TotalBefore)

	t := newTable("Course", "Rank [1]", "Rank [2]", "Chosen [1]", "Chosen [2]", "Δ", "Share Δ").alignRight(1, 2, 3, 4, 5, 6)
	for _, d := range r.Courses {
		t.add(d.Course, rankCell(d.RankBefore), rankCell(d.RankAfter),
			strconv.Itoa(d.CountBefore), strconv.Itoa(d.CountAfter),
			trend(d.CountDelta)+fmt.Sprintf("%+d", d.CountDelta),
			fmt.Sprintf("%+.1f%%", d.ShareDelta*100))
	}
	t.render(w)

	if len(r.NewCourses) > 0 {
		fmt.Fprintf(w, "\n  New: %s\n", strings.Join(r.NewCourses, ", ")) //nolint:errcheck
	}
	if len(r.LostCourses) > 0 {
		fmt.Fprintf(w, "\n  No longer chosen: %s\n", strings.Join(r.LostCourses, ", ")) //nolint:errcheck
	}
}

func rankCell(rank int) string {
	if rank == 0 {
		return "-"
	}
	return strconv.Itoa(rank)
}

func trend(delta int) string {
	switch {
	case delta > 0:
		return "↑"
	case delta < 0:
		return "↓"
	default:
		return " "
	}
}
