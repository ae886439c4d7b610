package aggregate

import (
	"cmp"
	"log/slog"
	"slices"
	"strings"

	"github.com/spboyer/flowstats/internal/metrics"
	"github.com/spboyer/flowstats/internal/models"
	"github.com/spboyer/flowstats/internal/statistics"
)

// Engine computes a ProjectSummary from a Dataset. Summarize makes no
// network calls and reads no clock, so identical input gives identical
// output.
type Engine struct {
	Options Options
	Logger  *slog.Logger
}

// NewEngine returns an Engine with the given options.
func NewEngine(opts Options) *Engine {
	return &Engine{Options: opts}
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// accumulator gathers the coerced values of one definition.
type accumulator struct {
	def models.EvaluationDefinition

	trues, falses int

	numbers []float64
	numIDs  []string

	strKeys   []string // first-seen order
	strLabels map[string]string
	strCounts map[string]int
}

func (a *accumulator) add(transcriptID string, v models.Value) {
	switch a.def.Type {
	case models.EvaluationBoolean:
		if v.Bool {
			a.trues++
		} else {
			a.falses++
		}
	case models.EvaluationNumber:
		a.numbers = append(a.numbers, v.Number)
		a.numIDs = append(a.numIDs, transcriptID)
	case models.EvaluationString:
		k := foldKey(v.Text)
		if _, ok := a.strCounts[k]; !ok {
			a.strKeys = append(a.strKeys, k)
			a.strLabels[k] = strings.Join(strings.Fields(v.Text), " ")
		}
		a.strCounts[k]++
	}
}

// Summarize aggregates ds. Results that reference an unknown definition or
// transcript, or whose value cannot be coerced to the definition's type, are
// dropped with a warning and counted in DroppedResults. Per transcript and
// definition only the last-seen result counts.
func (e *Engine) Summarize(ds *models.Dataset) models.ProjectSummary {
	log := e.logger()
	transcripts := uniqueTranscripts(ds.Transcripts)

	byID := make(map[string]*accumulator, len(ds.Definitions))
	var order []*accumulator
	for _, d := range ds.Definitions {
		if a, ok := byID[d.ID]; ok {
			a.def = d
			continue
		}
		a := &accumulator{
			def:       d,
			strLabels: make(map[string]string),
			strCounts: make(map[string]int),
		}
		byID[d.ID] = a
		order = append(order, a)
	}
	// A result carrying an ID is matched by ID only; names are a fallback for
	// results without one.
	resolve := func(r models.EvaluationResult) *accumulator {
		if r.EvaluationID != "" {
			return byID[r.EvaluationID]
		}
		if r.Name == "" {
			return nil
		}
		for _, a := range order {
			if strings.EqualFold(a.def.Name, r.Name) {
				return a
			}
		}
		return nil
	}

	extractor := e.Options.Courses
	if extractor == nil {
		extractor = defaultExtractor()
	}

	summary := models.ProjectSummary{
		CycleID:          ds.CycleID,
		ProjectID:        ds.ProjectID,
		FetchedAt:        ds.FetchedAt,
		Range:            ds.Range,
		TotalTranscripts: len(transcripts),
		Warnings:         slices.Clone(ds.Warnings),
		Partial:          ds.Partial,
	}

	known := make(map[string]bool, len(transcripts))
	var choices []models.CourseChoice
	for i := range transcripts {
		t := &transcripts[i]
		known[t.ID] = true

		raw := t.Evaluations
		if ds.Results != nil {
			raw = ds.Results[t.ID]
		}
		summary.TotalResults += len(raw)

		// Last-seen result per definition wins.
		latest := make(map[*accumulator]models.Value)
		var seen []*accumulator
		named := make([]models.EvaluationResult, 0, len(raw))
		for _, r := range raw {
			a := resolve(r)
			if a == nil {
				// Unknown definitions can still carry a course choice by name.
				named = append(named, r)
				summary.DroppedResults++
				log.Warn("dropping evaluation result for unknown definition",
					"transcript", t.ID, "evaluation_id", r.EvaluationID, "name", r.Name)
				continue
			}
			if r.Name == "" {
				r.Name = a.def.Name
			}
			named = append(named, r)

			v, err := r.Value.Coerce(a.def.Type)
			if err != nil {
				summary.DroppedResults++
				log.Warn("dropping evaluation result with invalid value",
					"transcript", t.ID, "evaluation_id", a.def.ID, "error", err)
				continue
			}
			if _, dup := latest[a]; !dup {
				seen = append(seen, a)
			}
			latest[a] = v
		}
		for _, a := range seen {
			a.add(t.ID, latest[a])
		}

		if course, rule, ok := extractor.Extract(t, named); ok {
			choices = append(choices, models.CourseChoice{
				TranscriptID: t.ID,
				Course:       course,
				Rule:         rule,
				CreatedAt:    t.CreatedAt,
			})
		}
	}

	for _, id := range sortedKeys(ds.Results) {
		if !known[id] {
			n := len(ds.Results[id])
			summary.TotalResults += n
			summary.DroppedResults += n
			log.Warn("dropping evaluation results for unknown transcript", "transcript", id, "count", n)
		}
	}

	summary.Metrics = make(map[string]models.AggregatedMetric, len(order))
	for _, a := range order {
		summary.Metrics[a.def.ID] = e.metric(a)
	}

	summary.Courses = courseAnalysis(len(transcripts), choices)
	summary.Sessions = sessionStats(transcripts)
	summary.Properties = propertyStats(transcripts)
	return summary
}

func (e *Engine) metric(a *accumulator) models.AggregatedMetric {
	m := models.AggregatedMetric{
		EvaluationID: a.def.ID,
		Name:         a.def.Name,
		Type:         a.def.Type,
		Enabled:      a.def.Enabled,
	}
	switch a.def.Type {
	case models.EvaluationBoolean:
		m.Count = a.trues + a.falses
		m.Boolean = e.booleanStats(a)
	case models.EvaluationNumber:
		m.Count = len(a.numbers)
		m.Number = e.numberStats(a)
	case models.EvaluationString:
		for _, n := range a.strCounts {
			m.Count += n
		}
		m.String = stringStats(a)
	}
	return m
}

func (e *Engine) booleanStats(a *accumulator) *models.BooleanStats {
	n := a.trues + a.falses
	s := &models.BooleanStats{TrueCount: a.trues, FalseCount: a.falses}
	if n == 0 {
		return s
	}
	rate := float64(a.trues) / float64(n)
	s.SuccessRate = &rate
	if n >= 2 {
		s.Interval = statistics.ProportionCI(a.trues, n, e.Options.confidence(), e.Options.seed())
	}
	return s
}

func (e *Engine) numberStats(a *accumulator) *models.NumberStats {
	s := &models.NumberStats{}
	rng, hasRange := e.Options.numberRange(a.def.ID, a.def.Name)
	if hasRange {
		s.RangeMin, s.RangeMax = &rng.Min, &rng.Max
	}
	if len(a.numbers) == 0 {
		return s
	}

	mean := metrics.Mean(a.numbers)
	s.Mean = &mean
	s.Variance = metrics.Variance(a.numbers)
	s.StdDev = metrics.StdDev(a.numbers)
	s.Min, s.Max = metrics.MinMax(a.numbers)
	if len(a.numbers) >= 2 {
		s.Interval = statistics.MeanCI(a.numbers, e.Options.confidence(), e.Options.seed())
	}

	lo, hi := s.Min, s.Max
	inRange := a.numbers
	if hasRange {
		lo, hi = rng.Min, rng.Max
		inRange = make([]float64, 0, len(a.numbers))
		for i, v := range a.numbers {
			if v < rng.Min || v > rng.Max {
				s.Outliers = append(s.Outliers, models.Outlier{TranscriptID: a.numIDs[i], Value: v})
				continue
			}
			inRange = append(inRange, v)
		}
	}
	for _, b := range metrics.Histogram(inRange, lo, hi, e.Options.buckets()) {
		s.Distribution = append(s.Distribution, models.Bucket{Lower: b.Lower, Upper: b.Upper, Count: b.Count})
	}
	return s
}

func stringStats(a *accumulator) *models.StringStats {
	s := &models.StringStats{Frequencies: make([]models.ValueCount, 0, len(a.strKeys))}
	for _, k := range a.strKeys {
		s.Frequencies = append(s.Frequencies, models.ValueCount{Value: a.strLabels[k], Count: a.strCounts[k]})
	}
	// Stable sort keeps first-seen order among equal counts.
	slices.SortStableFunc(s.Frequencies, func(x, y models.ValueCount) int {
		return cmp.Compare(y.Count, x.Count)
	})
	return s
}

func courseAnalysis(total int, choices []models.CourseChoice) models.CourseAnalysis {
	ca := models.CourseAnalysis{
		TotalTranscripts: total,
		TotalChoices:     len(choices),
		Rankings:         rankCourses(choices),
		Choices:          slices.Clone(choices),
	}
	ca.UniqueCourses = len(ca.Rankings)
	slices.SortFunc(ca.Choices, func(a, b models.CourseChoice) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.TranscriptID, b.TranscriptID)
	})
	return ca
}

// uniqueTranscripts keeps the last record per ID, sorted by creation time
// then ID.
func uniqueTranscripts(in []models.Transcript) []models.Transcript {
	idx := make(map[string]int, len(in))
	out := make([]models.Transcript, 0, len(in))
	for _, t := range in {
		if i, ok := idx[t.ID]; ok {
			out[i] = t
			continue
		}
		idx[t.ID] = len(out)
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b models.Transcript) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
