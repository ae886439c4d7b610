package reporting

import (
	"encoding/xml"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spboyer/flowstats/internal/models"
)

// JUnit XML schema types

// JUnitTestSuites is the top-level container.
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite maps to one project summary.
type JUnitTestSuite struct {
	XMLName    xml.Name        `xml:"testsuite"`
	Name       string          `xml:"name,attr"`
	Tests      int             `xml:"tests,attr"`
	Failures   int             `xml:"failures,attr"`
	Errors     int             `xml:"errors,attr"`
	Skipped    int             `xml:"skipped,attr"`
	Timestamp  string          `xml:"timestamp,attr"`
	Properties []JUnitProperty `xml:"properties>property,omitempty"`
	TestCases  []JUnitTestCase `xml:"testcase"`
}

// JUnitTestCase maps to one evaluation metric.
type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Error     *JUnitError   `xml:"error,omitempty"`
	Skipped   *JUnitSkipped `xml:"skipped,omitempty"`
}

// JUnitFailure represents a metric below its threshold.
type JUnitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

// JUnitError represents a partial fetch.
type JUnitError struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

// JUnitSkipped marks a metric without data.
type JUnitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// JUnitProperty is a key-value metadata entry.
type JUnitProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// Thresholds map an evaluation name or ID to the minimum acceptable value:
// the success rate for boolean evaluations, the mean for numeric ones.
type Thresholds map[string]float64

func (t Thresholds) lookup(m models.AggregatedMetric) (float64, bool) {
	if v, ok := t[m.EvaluationID]; ok {
		return v, true
	}
	for _, k := range slices.Sorted(maps.Keys(t)) {
		if strings.EqualFold(k, m.Name) {
			return t[k], true
		}
	}
	return 0, false
}

// ConvertToJUnit turns every metric into a test case. A metric fails when it
// is below its threshold and is skipped when it has no data. Fetch warnings
// become error cases.
func ConvertToJUnit(s *models.ProjectSummary, thresholds Thresholds) *JUnitTestSuites {
	suite := JUnitTestSuite{
		Name:      "flowstats." + s.ProjectID,
		Timestamp: s.FetchedAt.Format(time.RFC3339),
		Properties: []JUnitProperty{
			{Name: "project", Value: s.ProjectID},
			{Name: "cycle", Value: s.CycleID},
			{Name: "transcripts", Value: fmt.Sprintf("%d", s.TotalTranscripts)},
		},
	}

	for _, m := range s.OrderedMetrics() {
		tc := convertMetric(s.ProjectID, m, thresholds)
		switch {
		case tc.Failure != nil:
			suite.Failures++
		case tc.Skipped != nil:
			suite.Skipped++
		}
		suite.TestCases = append(suite.TestCases, tc)
	}

	for _, w := range s.Warnings {
		suite.Errors++
		suite.TestCases = append(suite.TestCases, JUnitTestCase{
			Name:      "fetch." + w.Stage,
			Classname: s.ProjectID,
			Error: &JUnitError{
				Message: w.Error(),
				Type:    "PartialFetch",
				Body:    strings.Join(w.TranscriptIDs, "\n"),
			},
		})
	}
	suite.Tests = len(suite.TestCases)

	return &JUnitTestSuites{
		Tests:      suite.Tests,
		Failures:   suite.Failures,
		Errors:     suite.Errors,
		TestSuites: []JUnitTestSuite{suite},
	}
}

func convertMetric(project string, m models.AggregatedMetric, thresholds Thresholds) JUnitTestCase {
	tc := JUnitTestCase{Name: m.Name, Classname: project}

	var (
		value  float64
		hasVal bool
	)
	switch {
	case m.Boolean != nil && m.Boolean.SuccessRate != nil:
		value, hasVal = *m.Boolean.SuccessRate, true
	case m.Number != nil && m.Number.Mean != nil:
		value, hasVal = *m.Number.Mean, true
	case m.String != nil && m.Count > 0:
		return tc
	}
	if !hasVal {
		tc.Skipped = &JUnitSkipped{Message: NoData}
		return tc
	}

	if floor, ok := thresholds.lookup(m); ok && value < floor {
		tc.Failure = &JUnitFailure{
			Message: fmt.Sprintf("%s: %.4f below threshold %.4f", m.Name, value, floor),
			Type:    "ThresholdFailure",
			Body:    interpretMetric(m),
		}
	}
	return tc
}

// WriteJUnitXML writes JUnit XML to the specified file path.
func WriteJUnitXML(s *models.ProjectSummary, thresholds Thresholds, path string) error {
	suites := ConvertToJUnit(s, thresholds)

	data, err := xml.MarshalIndent(suites, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JUnit XML: %w", err)
	}

	output := append([]byte(xml.Header), data...)
	return os.WriteFile(path, output, 0644)
}
