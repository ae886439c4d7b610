package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spboyer/flowstats/internal/models"
)

var courseHeader = []string{"rank", "course", "times_chosen", "percentage", "share"}

var metricsHeader = []string{
	"evaluation_id", "name", "type", "enabled", "count",
	"success_rate", "true_count", "false_count",
	"mean", "std_dev", "min", "max", "outliers",
	"distinct_values", "top_value", "distribution",
}

// WriteCourseRanking writes one row per ranked course. percentage is the
// share as "45.5%"; share is "count/total".
func WriteCourseRanking(w io.Writer, rankings []models.CourseSignal) error {
	total := 0
	for _, r := range rankings {
		total += r.Count
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(courseHeader); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}
	for _, r := range rankings {
		row := []string{
			strconv.Itoa(r.Rank),
			r.Course,
			strconv.Itoa(r.Count),
			fmt.Sprintf("%.1f%%", r.Share*100),
			fmt.Sprintf("%d/%d", r.Count, total),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("csv: write course %q: %w", r.Course, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCourseRanking reads a document produced by WriteCourseRanking. Columns
// are matched by header name.
func ReadCourseRanking(r io.Reader) ([]models.CourseSignal, error) {
	rows, err := readRows(r)
	if err != nil {
		return nil, err
	}

	out := make([]models.CourseSignal, 0, len(rows))
	for i, row := range rows {
		rank, err := strconv.Atoi(row["rank"])
		if err != nil {
			return nil, fmt.Errorf("csv: row %d: rank: %w", i+2, err)
		}
		count, err := strconv.Atoi(row["times_chosen"])
		if err != nil {
			return nil, fmt.Errorf("csv: row %d: times_chosen: %w", i+2, err)
		}
		pct, err := strconv.ParseFloat(strings.TrimSuffix(row["percentage"], "%"), 64)
		if err != nil {
			return nil, fmt.Errorf("csv: row %d: percentage: %w", i+2, err)
		}
		share := pct / 100
		if n, total, ok := parseRatio(row["share"]); ok && total > 0 {
			share = float64(n) / float64(total)
		}
		out = append(out, models.CourseSignal{
			Rank:   rank,
			Course: row["course"],
			Count:  count,
			Share:  share,
		})
	}
	return out, nil
}

// WriteMetricsCSV writes one row per metric. Empty cells mean no data.
func WriteMetricsCSV(w io.Writer, metrics []models.AggregatedMetric) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(metricsHeader); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}
	for _, m := range metrics {
		if err := cw.Write(metricRow(m)); err != nil {
			return fmt.Errorf("csv: write metric %s: %w", m.EvaluationID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func metricRow(m models.AggregatedMetric) []string {
	row := make([]string, len(metricsHeader))
	row[0] = m.EvaluationID
	row[1] = m.Name
	row[2] = string(m.Type)
	row[3] = strconv.FormatBool(m.Enabled)
	row[4] = strconv.Itoa(m.Count)

	switch {
	case m.Boolean != nil:
		b := m.Boolean
		row[5] = formatPtr(b.SuccessRate)
		row[6] = strconv.Itoa(b.TrueCount)
		row[7] = strconv.Itoa(b.FalseCount)
	case m.Number != nil:
		n := m.Number
		row[8] = formatPtr(n.Mean)
		if n.Mean != nil {
			row[9] = formatFloat(n.StdDev)
			row[10] = formatFloat(n.Min)
			row[11] = formatFloat(n.Max)
		}
		row[12] = strconv.Itoa(len(n.Outliers))
		parts := make([]string, 0, len(n.Distribution))
		for _, b := range n.Distribution {
			parts = append(parts, fmt.Sprintf("%s-%s=%d", formatFloat(b.Lower), formatFloat(b.Upper), b.Count))
		}
		row[15] = strings.Join(parts, ";")
	case m.String != nil:
		s := m.String
		row[13] = strconv.Itoa(len(s.Frequencies))
		if len(s.Frequencies) > 0 {
			row[14] = s.Frequencies[0].Value
		}
		parts := make([]string, 0, len(s.Frequencies))
		for _, vc := range s.Frequencies {
			parts = append(parts, fmt.Sprintf("%s=%d", vc.Value, vc.Count))
		}
		row[15] = strings.Join(parts, ";")
	}
	return row
}

// readRows reads a CSV with a header row into header-keyed maps.
func readRows(r io.Reader) ([]map[string]string, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv: parse: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv: empty document (no header row)")
	}

	headers := records[0]
	rows := make([]map[string]string, 0, len(records)-1)
	for i, record := range records[1:] {
		if len(record) != len(headers) {
			return nil, fmt.Errorf("csv: row %d has %d columns, expected %d", i+2, len(record), len(headers))
		}
		row := make(map[string]string, len(headers))
		for j, h := range headers {
			row[h] = record[j]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseRatio(s string) (int, int, bool) {
	a, b, ok := strings.Cut(s, "/")
	if !ok {
		return 0, 0, false
	}
	n, err1 := strconv.Atoi(a)
	d, err2 := strconv.Atoi(b)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return n, d, true
}

func formatPtr(f *float64) string {
	if f == nil {
		return ""
	}
	return formatFloat(*f)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
