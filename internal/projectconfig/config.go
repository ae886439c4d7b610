// Package projectconfig provides the ProjectConfig struct and loader for
// .flowstats.yaml project-level configuration files.
package projectconfig

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/spboyer/flowstats/internal/aggregate"
)

// FileName is the configuration file looked up from the working directory.
const FileName = ".flowstats.yaml"

// Default values for project configuration. New() references them and no
// other code should duplicate them.
const (
	DefaultBaseURL     = "https://analytics-api.voiceflow.com"
	DefaultTimeout     = 30
	DefaultMaxAttempts = 5

	DefaultPageSize     = 25
	DefaultMaxPages     = 1000
	DefaultOrder        = "DESC"
	DefaultConcurrency  = 4
	DefaultCycleTimeout = 300

	DefaultEvaluationsMode = "embedded"

	DefaultOutputDir = "output/"
)

// APIConfig holds analytics API connection settings. Credentials never live
// here; they come from the environment.
type APIConfig struct {
	BaseURL     string `yaml:"base_url,omitempty"`
	Timeout     int    `yaml:"timeout,omitempty"`
	MaxAttempts int    `yaml:"max_attempts,omitempty"`
}

// FetchConfig holds transcript paging and cycle settings.
type FetchConfig struct {
	PageSize      int    `yaml:"page_size,omitempty"`
	MaxPages      int    `yaml:"max_pages,omitempty"`
	Order         string `yaml:"order,omitempty"`
	Concurrency   int    `yaml:"concurrency,omitempty"`
	IncludeLogs   *bool  `yaml:"include_logs,omitempty"`
	CycleTimeout  int    `yaml:"cycle_timeout,omitempty"`
	EnvironmentID string `yaml:"environment_id,omitempty"`
}

// EvaluationsConfig selects how evaluation results are obtained.
type EvaluationsConfig struct {
	Mode        string `yaml:"mode,omitempty"`
	EnabledOnly *bool  `yaml:"enabled_only,omitempty"`
}

// MetricsConfig tunes numeric aggregation.
type MetricsConfig struct {
	Buckets         int                        `yaml:"buckets,omitempty"`
	ConfidenceLevel float64                    `yaml:"confidence_level,omitempty"`
	NumberRanges    map[string]aggregate.Range `yaml:"number_ranges,omitempty"`
}

// OutputConfig holds export locations.
type OutputConfig struct {
	Dir string `yaml:"dir,omitempty"`
}

// ProjectConfig is the top-level configuration loaded from .flowstats.yaml.
type ProjectConfig struct {
	API         APIConfig             `yaml:"api,omitempty"`
	Fetch       FetchConfig           `yaml:"fetch,omitempty"`
	Evaluations EvaluationsConfig     `yaml:"evaluations,omitempty"`
	Metrics     MetricsConfig         `yaml:"metrics,omitempty"`
	Courses     aggregate.CourseRules `yaml:"courses,omitempty"`
	Thresholds  map[string]float64    `yaml:"thresholds,omitempty"`
	Output      OutputConfig          `yaml:"output,omitempty"`

	// Path is the file the configuration was read from, empty for defaults.
	Path string `yaml:"-"`
}

// New returns a ProjectConfig with all hard-coded defaults populated.
func New() *ProjectConfig {
	return &ProjectConfig{
		API: APIConfig{
			BaseURL:     DefaultBaseURL,
			Timeout:     DefaultTimeout,
			MaxAttempts: DefaultMaxAttempts,
		},
		Fetch: FetchConfig{
			PageSize:     DefaultPageSize,
			MaxPages:     DefaultMaxPages,
			Order:        DefaultOrder,
			Concurrency:  DefaultConcurrency,
			IncludeLogs:  boolPtr(false),
			CycleTimeout: DefaultCycleTimeout,
		},
		Evaluations: EvaluationsConfig{
			Mode:        DefaultEvaluationsMode,
			EnabledOnly: boolPtr(false),
		},
		Metrics: MetricsConfig{
			Buckets:         aggregate.DefaultBuckets,
			ConfidenceLevel: aggregate.DefaultConfidenceLevel,
		},
		Courses: aggregate.DefaultCourseRules(),
		Output: OutputConfig{
			Dir: DefaultOutputDir,
		},
	}
}

// Load finds .flowstats.yaml by walking up from startDir (max 10 levels),
// unmarshals it, and fills in missing fields with defaults.
// If no config file is found, returns defaults with a nil error.
// Real I/O errors (e.g. permission denied) are returned to the caller.
func Load(startDir string) (*ProjectConfig, error) {
	cfg := New()

	path, data, err := findConfigFile(startDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("loading %s: %w", FileName, err)
	}

	var fileCfg ProjectConfig
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	mergeConfig(cfg, &fileCfg)
	cfg.Path = path
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values no component can run with.
func (c *ProjectConfig) Validate() error {
	switch strings.ToUpper(c.Fetch.Order) {
	case "ASC", "DESC":
	default:
		return fmt.Errorf("fetch.order must be ASC or DESC, got %q", c.Fetch.Order)
	}
	switch c.Evaluations.Mode {
	case "embedded", "per-transcript":
	default:
		return fmt.Errorf("evaluations.mode must be embedded or per-transcript, got %q", c.Evaluations.Mode)
	}
	if c.API.Timeout < 0 || c.Fetch.CycleTimeout < 0 {
		return errors.New("timeouts must not be negative")
	}
	for name, r := range c.Metrics.NumberRanges {
		if r.Min > r.Max {
			return fmt.Errorf("metrics.number_ranges.%s: min %g is above max %g", name, r.Min, r.Max)
		}
	}
	if err := checkFoldDuplicates("metrics.number_ranges", slices.Collect(maps.Keys(c.Metrics.NumberRanges))); err != nil {
		return err
	}
	return checkFoldDuplicates("thresholds", slices.Collect(maps.Keys(c.Thresholds)))
}

// checkFoldDuplicates rejects keys that differ only in case, since names are
// matched case-insensitively.
func checkFoldDuplicates(section string, keys []string) error {
	slices.Sort(keys)
	for i, a := range keys {
		for _, b := range keys[i+1:] {
			if strings.EqualFold(a, b) {
				return fmt.Errorf("%s: keys %q and %q differ only in case", section, a, b)
			}
		}
	}
	return nil
}

// findConfigFile walks up from dir looking for .flowstats.yaml (max 10
// levels). Returns os.ErrNotExist if no config file is found.
func findConfigFile(dir string) (string, []byte, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", nil, fmt.Errorf("resolving path %q: %w", dir, err)
	}
	dir = absDir

	for i := 0; i < 10; i++ {
		p := filepath.Join(dir, FileName)
		data, err := os.ReadFile(p)
		if err == nil {
			return p, data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", nil, fmt.Errorf("reading %q: %w", p, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break // reached filesystem root
		}
		dir = parent
	}
	return "", nil, os.ErrNotExist
}

// mergeConfig overlays non-zero values from src onto dst.
func mergeConfig(dst, src *ProjectConfig) {
	// API
	if src.API.BaseURL != "" {
		dst.API.BaseURL = src.API.BaseURL
	}
	if src.API.Timeout != 0 {
		dst.API.Timeout = src.API.Timeout
	}
	if src.API.MaxAttempts != 0 {
		dst.API.MaxAttempts = src.API.MaxAttempts
	}

	// Fetch
	if src.Fetch.PageSize != 0 {
		dst.Fetch.PageSize = src.Fetch.PageSize
	}
	if src.Fetch.MaxPages != 0 {
		dst.Fetch.MaxPages = src.Fetch.MaxPages
	}
	if src.Fetch.Order != "" {
		dst.Fetch.Order = strings.ToUpper(src.Fetch.Order)
	}
	if src.Fetch.Concurrency != 0 {
		dst.Fetch.Concurrency = src.Fetch.Concurrency
	}
	if src.Fetch.IncludeLogs != nil {
		dst.Fetch.IncludeLogs = src.Fetch.IncludeLogs
	}
	if src.Fetch.CycleTimeout != 0 {
		dst.Fetch.CycleTimeout = src.Fetch.CycleTimeout
	}
	if src.Fetch.EnvironmentID != "" {
		dst.Fetch.EnvironmentID = src.Fetch.EnvironmentID
	}

	// Evaluations
	if src.Evaluations.Mode != "" {
		dst.Evaluations.Mode = src.Evaluations.Mode
	}
	if src.Evaluations.EnabledOnly != nil {
		dst.Evaluations.EnabledOnly = src.Evaluations.EnabledOnly
	}

	// Metrics
	if src.Metrics.Buckets != 0 {
		dst.Metrics.Buckets = src.Metrics.Buckets
	}
	if src.Metrics.ConfidenceLevel != 0 {
		dst.Metrics.ConfidenceLevel = src.Metrics.ConfidenceLevel
	}
	if len(src.Metrics.NumberRanges) > 0 {
		dst.Metrics.NumberRanges = maps.Clone(src.Metrics.NumberRanges)
	}

	// Courses: each list replaces the default list as a whole.
	if src.Courses.Evaluations != nil {
		dst.Courses.Evaluations = src.Courses.Evaluations
	}
	if src.Courses.Fields != nil {
		dst.Courses.Fields = src.Courses.Fields
	}
	if src.Courses.Patterns != nil {
		dst.Courses.Patterns = src.Courses.Patterns
	}
	if src.Courses.Ignore != nil {
		dst.Courses.Ignore = src.Courses.Ignore
	}

	if len(src.Thresholds) > 0 {
		dst.Thresholds = maps.Clone(src.Thresholds)
	}

	if src.Output.Dir != "" {
		dst.Output.Dir = src.Output.Dir
	}
}

func boolPtr(b bool) *bool {
	return &b
}
