package aggregate

import (
	"cmp"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/spboyer/flowstats/internal/models"
)

// Course rule names, recorded on each CourseChoice.
const (
	RuleEvaluation = "evaluation"
	RuleProperty   = "property"
	RulePattern    = "pattern"
)

// CourseRules configures where a course choice is read from. Rules are tried
// in order (evaluation, property, pattern) and the first hit wins.
type CourseRules struct {
	// Evaluations names string evaluations whose value is the course.
	Evaluations []string `yaml:"evaluations"`
	// Fields names transcript properties or metadata keys holding the course.
	Fields []string `yaml:"fields"`
	// Patterns are regular expressions matched against message text. The
	// named group "course", or else group 1, is the label.
	Patterns []string `yaml:"patterns"`
	// Ignore lists placeholder values that do not count as a choice.
	Ignore []string `yaml:"ignore"`
}

// DefaultCourseRules returns the rules used when none are configured.
func DefaultCourseRules() CourseRules {
	return CourseRules{
		Evaluations: []string{"AI course chosen"},
		Fields:      []string{"course", "chosen_course"},
		Ignore:      []string{"none", "n/a", "unknown", "geen"},
	}
}

// CourseExtractor finds the course choice in a transcript.
type CourseExtractor struct {
	evaluations []string
	fields      []string
	patterns    []*regexp.Regexp
	ignore      map[string]bool
}

// NewCourseExtractor compiles rules. It fails on an invalid pattern.
func NewCourseExtractor(rules CourseRules) (*CourseExtractor, error) {
	x := &CourseExtractor{
		evaluations: rules.Evaluations,
		fields:      rules.Fields,
		ignore:      map[string]bool{"": true},
	}
	for _, p := range rules.Patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("course pattern %q: %w", p, err)
		}
		x.patterns = append(x.patterns, re)
	}
	for _, v := range rules.Ignore {
		x.ignore[foldKey(v)] = true
	}
	return x, nil
}

func defaultExtractor() *CourseExtractor {
	x, err := NewCourseExtractor(DefaultCourseRules())
	if err != nil {
		panic(err)
	}
	return x
}

func (x *CourseExtractor) usable(v string) (string, bool) {
	v = strings.Join(strings.Fields(v), " ")
	if x.ignore[foldKey(v)] {
		return "", false
	}
	return v, true
}

// Extract returns the course chosen in t and the rule that found it.
// results are t's resolved evaluation results, with Name filled in.
func (x *CourseExtractor) Extract(t *models.Transcript, results []models.EvaluationResult) (course, rule string, ok bool) {
	// Later results supersede earlier ones.
	for i := len(results) - 1; i >= 0; i-- {
		r := results[i]
		if r.Value.IsZero() || !containsFold(x.evaluations, r.Name) {
			continue
		}
		if c, ok := x.usable(r.Value.String()); ok {
			return c, RuleEvaluation, true
		}
	}

	for _, field := range x.fields {
		if v, found := t.Property(field); found {
			if c, ok := x.usable(v); ok {
				return c, RuleProperty, true
			}
		}
		if raw, found := t.Metadata[field]; found {
			if s, isString := raw.(string); isString {
				if c, ok := x.usable(s); ok {
					return c, RuleProperty, true
				}
			}
		}
	}

	for _, m := range t.Messages {
		for _, re := range x.patterns {
			if c, ok := x.match(re, m.Text); ok {
				return c, RulePattern, true
			}
		}
	}
	return "", "", false
}

func (x *CourseExtractor) match(re *regexp.Regexp, text string) (string, bool) {
	sub := re.FindStringSubmatch(text)
	if sub == nil {
		return "", false
	}
	label := sub[0]
	if i := re.SubexpIndex("course"); i > 0 {
		label = sub[i]
	} else if len(sub) > 1 {
		label = sub[1]
	}
	return x.usable(label)
}

func containsFold(names []string, name string) bool {
	for _, n := range names {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}

// rankCourses orders courses by count desc, then normalized key. The display
// label for a key is its most frequent casing, ties broken lexicographically,
// so the ranking does not depend on input order.
func rankCourses(choices []models.CourseChoice) []models.CourseSignal {
	type tally struct {
		count  int
		labels map[string]int
	}
	byKey := make(map[string]*tally)
	for _, c := range choices {
		k := foldKey(c.Course)
		t, ok := byKey[k]
		if !ok {
			t = &tally{labels: make(map[string]int)}
			byKey[k] = t
		}
		t.count++
		t.labels[c.Course]++
	}

	signals := make([]models.CourseSignal, 0, len(byKey))
	for k, t := range byKey {
		label, best := "", 0
		for l, n := range t.labels {
			if n > best || (n == best && l < label) {
				label, best = l, n
			}
		}
		signals = append(signals, models.CourseSignal{Course: label, Key: k, Count: t.count})
	}

	slices.SortFunc(signals, func(a, b models.CourseSignal) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
	for i := range signals {
		signals[i].Rank = i + 1
		signals[i].Share = float64(signals[i].Count) / float64(len(choices))
	}
	return signals
}
