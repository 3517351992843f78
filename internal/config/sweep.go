package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/banshee-data/perceptron-sweep/internal/predictor"
)

// DefaultConfigPath is the path to the canonical sweep defaults file.
const DefaultConfigPath = "config/sweep.defaults.json"

// PinRootEnv names the environment variable holding the instrumentation
// framework's install directory.
const PinRootEnv = "PIN_ROOT"

// BaselineConfig holds the fixed value of each axis. Unset fields use the
// built-in baseline.
type BaselineConfig struct {
	NumPerceptrons *int `json:"num_perceptrons,omitempty"`
	GHRLength      *int `json:"ghr_length,omitempty"`
	LHRLength      *int `json:"lhr_length,omitempty"`
	LHTSize        *int `json:"lht_size,omitempty"`
	HashingScheme  *int `json:"hashing_scheme,omitempty"`
}

// AxesConfig holds the candidate values swept on each axis. An omitted list
// uses the built-in candidates; an explicit empty list is invalid.
type AxesConfig struct {
	NumPerceptrons []int `json:"num_perceptrons,omitempty"`
	GHRLength      []int `json:"ghr_length,omitempty"`
	LHRLength      []int `json:"lhr_length,omitempty"`
	LHTSize        []int `json:"lht_size,omitempty"`
	HashingScheme  []int `json:"hashing_scheme,omitempty"`
}

// SweepConfig is the root driver configuration.
type SweepConfig struct {
	Baseline *BaselineConfig `json:"baseline,omitempty"`
	Axes     *AxesConfig     `json:"axes,omitempty"`

	// Simulator
	PinRoot  *string `json:"pin_root,omitempty"`
	ToolPath *string `json:"tool_path,omitempty"`

	// Output locations
	ResultsDir  *string `json:"results_dir,omitempty"`
	RunsDir     *string `json:"runs_dir,omitempty"`
	JournalPath *string `json:"journal_path,omitempty"` // empty disables the journal

	// Execution
	Workers  *int  `json:"workers,omitempty"`
	FailFast *bool `json:"fail_fast,omitempty"`

	// Artifact watcher budgets
	ExistAttempts  *int    `json:"exist_attempts,omitempty"`
	ExistInterval  *string `json:"exist_interval,omitempty"` // duration string like "1s"
	StableAttempts *int    `json:"stable_attempts,omitempty"`
	StableInterval *string `json:"stable_interval,omitempty"`
}

var (
	defaultBaseline = predictor.ParameterSet{
		NumPerceptrons: 1024,
		GHRLength:      32,
		LHRLength:      16,
		LHTSize:        4096,
		HashingScheme:  3,
	}
	defaultAxes = predictor.AxisValues{
		NumPerceptrons: []int{32, 64, 128, 256, 512, 1024, 2048, 4096, 8192, 16384, 32768},
		GHRLength:      []int{8, 16, 32, 64},
		LHRLength:      []int{8, 16, 32, 64},
		LHTSize:        []int{256, 512, 1024, 2048, 4096, 8192, 16384, 32768},
		HashingScheme:  []int{1, 2, 3, 4, 5, 6, 7, 8, 9},
	}
)

const (
	defaultToolPath   = "perceptron/obj-intel64/main.so"
	defaultResultsDir = "results"
	defaultRunsDir    = "results/runs"
	defaultAttempts   = 10
	defaultInterval   = time.Second
	maxHashingScheme  = 9
)

// EmptySweepConfig returns a SweepConfig with every field unset, so every
// Get* accessor returns its default.
func EmptySweepConfig() *SweepConfig {
	return &SweepConfig{}
}

// Load reads a SweepConfig from a JSON file. The file must have a .json
// extension and be at most 1MB. Fields omitted from the file keep their
// defaults, so partial configs are safe.
func Load(path string) (*SweepConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("%w: config file must have .json extension, got %q", predictor.ErrConfig, ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("%w: config file too large: %d bytes (max %d)", predictor.ErrConfig, fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptySweepConfig()
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config JSON %s: %v", predictor.ErrConfig, cleanPath, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration %s: %w", cleanPath, err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching from the current
// directory up to the repository root. It panics if the file cannot be
// loaded and is meant for tests.
func MustLoadDefaultConfig() *SweepConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := Load(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks every set field. Invalid values are ErrConfig.
func (c *SweepConfig) Validate() error {
	if c.Axes != nil {
		for _, a := range predictor.Axes {
			if v := c.Axes.list(a); v != nil && len(v) == 0 {
				return fmt.Errorf("%w: axes.%s must not be empty", predictor.ErrConfig, a.Slug())
			}
		}
	}

	baseline := c.GetBaseline()
	if err := baseline.Validate(); err != nil {
		return fmt.Errorf("baseline: %w", err)
	}
	if err := checkHashingScheme(baseline.HashingScheme); err != nil {
		return fmt.Errorf("baseline: %w", err)
	}

	axes := c.GetAxes()
	for _, a := range predictor.Axes {
		for _, v := range axes.For(a) {
			if v <= 0 {
				return fmt.Errorf("%w: axes.%s value %d must be positive", predictor.ErrConfig, a.Slug(), v)
			}
			if a == predictor.AxisHashingScheme {
				if err := checkHashingScheme(v); err != nil {
					return fmt.Errorf("axes.%s: %w", a.Slug(), err)
				}
			}
		}
	}

	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1, got %d", predictor.ErrConfig, *c.Workers)
	}
	for name, n := range map[string]*int{"exist_attempts": c.ExistAttempts, "stable_attempts": c.StableAttempts} {
		if n != nil && *n < 1 {
			return fmt.Errorf("%w: %s must be at least 1, got %d", predictor.ErrConfig, name, *n)
		}
	}
	for name, s := range map[string]*string{"exist_interval": c.ExistInterval, "stable_interval": c.StableInterval} {
		if s == nil || *s == "" {
			continue
		}
		d, err := time.ParseDuration(*s)
		if err != nil {
			return fmt.Errorf("%w: invalid %s '%s': %v", predictor.ErrConfig, name, *s, err)
		}
		if d < 0 {
			return fmt.Errorf("%w: %s must not be negative, got %s", predictor.ErrConfig, name, *s)
		}
	}
	return nil
}

func checkHashingScheme(v int) error {
	if v < 1 || v > maxHashingScheme {
		return fmt.Errorf("%w: hashing scheme must be between 1 and %d, got %d", predictor.ErrConfig, maxHashingScheme, v)
	}
	return nil
}

func (a *AxesConfig) list(axis predictor.Axis) []int {
	switch axis {
	case predictor.AxisNumPerceptrons:
		return a.NumPerceptrons
	case predictor.AxisGHRLength:
		return a.GHRLength
	case predictor.AxisLHRLength:
		return a.LHRLength
	case predictor.AxisLHTSize:
		return a.LHTSize
	case predictor.AxisHashingScheme:
		return a.HashingScheme
	}
	return nil
}

// GetBaseline returns the baseline configuration.
func (c *SweepConfig) GetBaseline() predictor.ParameterSet {
	p := defaultBaseline
	if c.Baseline == nil {
		return p
	}
	set := func(a predictor.Axis, v *int) {
		if v != nil {
			p = p.With(a, *v)
		}
	}
	set(predictor.AxisNumPerceptrons, c.Baseline.NumPerceptrons)
	set(predictor.AxisGHRLength, c.Baseline.GHRLength)
	set(predictor.AxisLHRLength, c.Baseline.LHRLength)
	set(predictor.AxisLHTSize, c.Baseline.LHTSize)
	set(predictor.AxisHashingScheme, c.Baseline.HashingScheme)
	return p
}

// GetAxes returns the candidate values for every axis.
func (c *SweepConfig) GetAxes() predictor.AxisValues {
	out := predictor.AxisValues{
		NumPerceptrons: append([]int(nil), defaultAxes.NumPerceptrons...),
		GHRLength:      append([]int(nil), defaultAxes.GHRLength...),
		LHRLength:      append([]int(nil), defaultAxes.LHRLength...),
		LHTSize:        append([]int(nil), defaultAxes.LHTSize...),
		HashingScheme:  append([]int(nil), defaultAxes.HashingScheme...),
	}
	if c.Axes == nil {
		return out
	}
	if c.Axes.NumPerceptrons != nil {
		out.NumPerceptrons = c.Axes.NumPerceptrons
	}
	if c.Axes.GHRLength != nil {
		out.GHRLength = c.Axes.GHRLength
	}
	if c.Axes.LHRLength != nil {
		out.LHRLength = c.Axes.LHRLength
	}
	if c.Axes.LHTSize != nil {
		out.LHTSize = c.Axes.LHTSize
	}
	if c.Axes.HashingScheme != nil {
		out.HashingScheme = c.Axes.HashingScheme
	}
	return out
}

// GetPinRoot returns pin_root, falling back to $PIN_ROOT.
func (c *SweepConfig) GetPinRoot() string {
	if c.PinRoot != nil && *c.PinRoot != "" {
		return *c.PinRoot
	}
	return os.Getenv(PinRootEnv)
}

// GetExecutable returns the simulator launcher path, <pin_root>/pin. It
// fails with ErrConfig if no pin root is configured.
func (c *SweepConfig) GetExecutable() (string, error) {
	root := c.GetPinRoot()
	if root == "" {
		return "", fmt.Errorf("%w: pin_root is not set and %s is empty", predictor.ErrConfig, PinRootEnv)
	}
	return filepath.Join(root, "pin"), nil
}

// GetToolPath returns the predictor module path.
func (c *SweepConfig) GetToolPath() string {
	if c.ToolPath == nil || *c.ToolPath == "" {
		return defaultToolPath
	}
	return *c.ToolPath
}

// GetResultsDir returns the directory holding ledgers.
func (c *SweepConfig) GetResultsDir() string {
	if c.ResultsDir == nil || *c.ResultsDir == "" {
		return defaultResultsDir
	}
	return *c.ResultsDir
}

// GetRunsDir returns the directory holding per-run artifacts.
func (c *SweepConfig) GetRunsDir() string {
	if c.RunsDir == nil || *c.RunsDir == "" {
		return defaultRunsDir
	}
	return *c.RunsDir
}

// GetJournalPath returns the journal database path, or "" when disabled.
func (c *SweepConfig) GetJournalPath() string {
	if c.JournalPath == nil {
		return ""
	}
	return *c.JournalPath
}

// GetWorkers returns the pool size.
func (c *SweepConfig) GetWorkers() int {
	if c.Workers == nil {
		return runtime.NumCPU()
	}
	return *c.Workers
}

// GetFailFast returns the fail_fast value or the default (true).
func (c *SweepConfig) GetFailFast() bool {
	if c.FailFast == nil {
		return true
	}
	return *c.FailFast
}

// GetExistAttempts returns the existence-phase check budget.
func (c *SweepConfig) GetExistAttempts() int {
	return intOr(c.ExistAttempts, defaultAttempts)
}

// GetStableAttempts returns the stabilisation-phase check budget.
func (c *SweepConfig) GetStableAttempts() int {
	return intOr(c.StableAttempts, defaultAttempts)
}

// GetExistInterval returns the delay between existence checks.
func (c *SweepConfig) GetExistInterval() time.Duration {
	return durationOr(c.ExistInterval, defaultInterval)
}

// GetStableInterval returns the delay between size samples.
func (c *SweepConfig) GetStableInterval() time.Duration {
	return durationOr(c.StableInterval, defaultInterval)
}

// LedgerPath returns <results_dir>/<benchmark stem>_perceptron_results.csv.
func (c *SweepConfig) LedgerPath(benchmarkPath string) string {
	base := filepath.Base(benchmarkPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(c.GetResultsDir(), stem+"_perceptron_results.csv")
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func durationOr(s *string, def time.Duration) time.Duration {
	if s == nil || *s == "" {
		return def
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return def
	}
	return d
}

// Helpers for building configs in code.
func ptrInt(v int) *int          { return &v }
func ptrBool(v bool) *bool       { return &v }
func ptrString(v string) *string { return &v }
