// Package predictor defines the configuration and result types shared by the
// sweep driver: the five-valued ParameterSet that identifies one perceptron
// predictor variant, the per-run Job, and the persisted Record.
package predictor

import (
	"fmt"
	"math"
	"sort"
)

// Axis identifies one of the five sweepable predictor parameters.
type Axis int

const (
	AxisNumPerceptrons Axis = iota
	AxisGHRLength
	AxisLHRLength
	AxisLHTSize
	AxisHashingScheme
)

// Axes lists every axis in sweep order.
var Axes = []Axis{
	AxisNumPerceptrons,
	AxisGHRLength,
	AxisLHRLength,
	AxisLHTSize,
	AxisHashingScheme,
}

// Column returns the ledger column name for the axis.
func (a Axis) Column() string {
	switch a {
	case AxisNumPerceptrons:
		return "NUM_PERCEPTRONS"
	case AxisGHRLength:
		return "GHR_LENGTH"
	case AxisLHRLength:
		return "LHR_LENGTH"
	case AxisLHTSize:
		return "LHT_SIZE"
	case AxisHashingScheme:
		return "HASHING_SCHEME"
	}
	return fmt.Sprintf("AXIS_%d", int(a))
}

// Slug returns a lowercase identifier suitable for file names and JSON keys.
func (a Axis) Slug() string {
	switch a {
	case AxisNumPerceptrons:
		return "num_perceptrons"
	case AxisGHRLength:
		return "ghr_length"
	case AxisLHRLength:
		return "lhr_length"
	case AxisLHTSize:
		return "lht_size"
	case AxisHashingScheme:
		return "hashing_scheme"
	}
	return fmt.Sprintf("axis_%d", int(a))
}

func (a Axis) String() string { return a.Column() }

// ParameterSet identifies a unique predictor configuration. It is a
// comparable value type so it can be used directly as a map key.
type ParameterSet struct {
	NumPerceptrons int
	GHRLength      int
	LHRLength      int
	LHTSize        int
	HashingScheme  int
}

// Get returns the value of the given axis.
func (p ParameterSet) Get(a Axis) int {
	switch a {
	case AxisNumPerceptrons:
		return p.NumPerceptrons
	case AxisGHRLength:
		return p.GHRLength
	case AxisLHRLength:
		return p.LHRLength
	case AxisLHTSize:
		return p.LHTSize
	case AxisHashingScheme:
		return p.HashingScheme
	}
	return 0
}

// With returns a copy of p with only the given axis replaced.
func (p ParameterSet) With(a Axis, v int) ParameterSet {
	switch a {
	case AxisNumPerceptrons:
		p.NumPerceptrons = v
	case AxisGHRLength:
		p.GHRLength = v
	case AxisLHRLength:
		p.LHRLength = v
	case AxisLHTSize:
		p.LHTSize = v
	case AxisHashingScheme:
		p.HashingScheme = v
	}
	return p
}

// Values returns the five fields in ledger column order.
func (p ParameterSet) Values() [5]int {
	return [5]int{p.NumPerceptrons, p.GHRLength, p.LHRLength, p.LHTSize, p.HashingScheme}
}

// Validate reports an ErrConfig if any field is not a positive integer.
func (p ParameterSet) Validate() error {
	for _, a := range Axes {
		if p.Get(a) <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d (%s)", ErrConfig, a.Column(), p.Get(a), p)
		}
	}
	return nil
}

func (p ParameterSet) String() string {
	return fmt.Sprintf("{perceptrons=%d ghr=%d lhr=%d lht=%d hash=%d}",
		p.NumPerceptrons, p.GHRLength, p.LHRLength, p.LHTSize, p.HashingScheme)
}

// Set is an unordered collection of ParameterSets.
type Set map[ParameterSet]struct{}

// Add inserts p into the set.
func (s Set) Add(p ParameterSet) { s[p] = struct{}{} }

// Has reports whether p is in the set.
func (s Set) Has(p ParameterSet) bool {
	_, ok := s[p]
	return ok
}

// Sorted returns the members ordered field by field, for stable output.
func (s Set) Sorted() []ParameterSet {
	out := make([]ParameterSet, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Values(), out[j].Values()
		for k := range a {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return false
	})
	return out
}

// AxisValues holds the ordered candidate values for each of the five axes.
type AxisValues struct {
	NumPerceptrons []int
	GHRLength      []int
	LHRLength      []int
	LHTSize        []int
	HashingScheme  []int
}

// For returns the candidate list for the given axis.
func (v AxisValues) For(a Axis) []int {
	switch a {
	case AxisNumPerceptrons:
		return v.NumPerceptrons
	case AxisGHRLength:
		return v.GHRLength
	case AxisLHRLength:
		return v.LHRLength
	case AxisLHTSize:
		return v.LHTSize
	case AxisHashingScheme:
		return v.HashingScheme
	}
	return nil
}

// Record is one completed run as persisted in the ledger.
type Record struct {
	Benchmark string
	Params    ParameterSet
	Accuracy  float64
}

// CheckAccuracy reports an error unless v is a finite percentage in [0,100].
func CheckAccuracy(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("accuracy %v is not a finite number", v)
	}
	if v < 0 || v > 100 {
		return fmt.Errorf("accuracy %v outside [0,100]", v)
	}
	return nil
}

// Validate checks the record against the invariants every ledger row holds:
// a non-empty benchmark, non-negative parameters and a valid accuracy.
func (r Record) Validate() error {
	if r.Benchmark == "" {
		return fmt.Errorf("empty benchmark name")
	}
	for _, a := range Axes {
		if v := r.Params.Get(a); v < 0 {
			return fmt.Errorf("%s: negative value %d", a.Column(), v)
		}
	}
	return CheckAccuracy(r.Accuracy)
}

// Job is the transient unit of work handed to a pool worker.
type Job struct {
	Params        ParameterSet
	BenchmarkPath string
	BenchmarkArgs []string
	LedgerPath    string
}
