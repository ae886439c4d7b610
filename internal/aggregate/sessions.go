package aggregate

import (
	"slices"

	"github.com/spboyer/flowstats/internal/models"
)

func sessionStats(transcripts []models.Transcript) models.SessionStats {
	var (
		s        models.SessionStats
		sessions = make(map[string]bool)
		days     = make(map[string]int)
		messages int
	)
	for i := range transcripts {
		t := &transcripts[i]
		if t.SessionID == "" {
			s.WithoutSession++
		} else {
			sessions[t.SessionID] = true
		}
		if t.RecordingURL != "" {
			s.WithRecording++
		}
		messages += len(t.Messages)

		if !t.HasTimestamp() {
			s.WithoutTimestamp++
			continue
		}
		utc := t.CreatedAt.UTC()
		days[utc.Format("2006-01-02")]++
		s.ByHour[utc.Hour()]++
	}

	s.UniqueSessions = len(sessions)
	s.ByDay = make([]models.DayCount, 0, len(days))
	for _, d := range sortedKeys(days) {
		s.ByDay = append(s.ByDay, models.DayCount{Date: d, Count: days[d]})
	}
	if len(transcripts) > 0 {
		s.AvgMessagesPerChat = float64(messages) / float64(len(transcripts))
	}
	return s
}

func propertyStats(transcripts []models.Transcript) []models.PropertyStats {
	type acc struct {
		typ    string
		count  int
		values map[string]bool
	}
	byName := make(map[string]*acc)
	for i := range transcripts {
		seen := make(map[string]bool)
		for _, p := range transcripts[i].Properties {
			a, ok := byName[p.Name]
			if !ok {
				a = &acc{values: make(map[string]bool)}
				byName[p.Name] = a
			}
			if a.typ == "" {
				a.typ = p.Type
			}
			if !seen[p.Name] {
				seen[p.Name] = true
				a.count++
			}
			a.values[p.Value] = true
		}
	}

	out := make([]models.PropertyStats, 0, len(byName))
	for _, name := range sortedKeys(byName) {
		a := byName[name]
		values := make([]string, 0, len(a.values))
		for v := range a.values {
			values = append(values, v)
		}
		slices.Sort(values)
		out = append(out, models.PropertyStats{Name: name, Type: a.typ, Count: a.count, Values: values})
	}
	return out
}
