// Package aggregate turns a fetched dataset into project-level metrics.
package aggregate

import (
	"maps"
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"github.com/spboyer/flowstats/internal/statistics"
)

const (
	DefaultBuckets         = 5
	DefaultConfidenceLevel = 0.95
)

// Range is an inclusive plausible range for a numeric evaluation.
type Range struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// Options configure an Engine. The zero value is usable.
type Options struct {
	// Buckets is the number of display buckets for numeric metrics.
	Buckets int

	// NumberRanges maps a definition ID or name to its plausible range.
	// Values outside it are reported as outliers and kept out of buckets.
	NumberRanges map[string]Range

	ConfidenceLevel float64
	Seed            int64

	// Courses extracts course choices. Nil uses DefaultCourseRules.
	Courses *CourseExtractor
}

func (o Options) buckets() int {
	if o.Buckets <= 0 {
		return DefaultBuckets
	}
	return o.Buckets
}

func (o Options) confidence() float64 {
	if o.ConfidenceLevel <= 0 || o.ConfidenceLevel >= 1 {
		return DefaultConfidenceLevel
	}
	return o.ConfidenceLevel
}

func (o Options) seed() int64 {
	if o.Seed == 0 {
		return statistics.DefaultSeed
	}
	return o.Seed
}

func (o Options) numberRange(id, name string) (Range, bool) {
	if r, ok := o.NumberRanges[id]; ok {
		return r, true
	}
	for _, k := range slices.Sorted(maps.Keys(o.NumberRanges)) {
		if strings.EqualFold(k, name) {
			return o.NumberRanges[k], true
		}
	}
	return Range{}, false
}

// foldKey normalizes a label for case-insensitive grouping: surrounding and
// repeated whitespace is collapsed, then the string is case folded.
func foldKey(s string) string {
	return cases.Fold().String(strings.Join(strings.Fields(s), " "))
}
