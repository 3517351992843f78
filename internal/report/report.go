// Package report turns ledger records into per-axis accuracy series,
// summary statistics and charts. It only reads the ledger.
package report

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/perceptron-sweep/internal/predictor"
	"github.com/banshee-data/perceptron-sweep/internal/security"
)

// ErrNoData is returned when a series has no points to summarise or draw.
var ErrNoData = errors.New("no data points")

// Point is one measured configuration along an axis.
type Point struct {
	Value    int
	Accuracy float64
}

// AxisSeries holds the rows that vary only the given axis from the baseline,
// ordered by axis value.
type AxisSeries struct {
	Benchmark string
	Axis      predictor.Axis
	Baseline  predictor.ParameterSet
	Points    []Point
}

// Benchmarks returns the distinct benchmark names in records, sorted.
func Benchmarks(records []predictor.Record) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range records {
		if !seen[r.Benchmark] {
			seen[r.Benchmark] = true
			out = append(out, r.Benchmark)
		}
	}
	sort.Strings(out)
	return out
}

// Series selects the records of benchmark whose four other parameters equal
// baseline and orders them by the value of axis. When the ledger holds the
// same configuration twice the first row wins.
func Series(records []predictor.Record, benchmark string, baseline predictor.ParameterSet, axis predictor.Axis) AxisSeries {
	s := AxisSeries{Benchmark: benchmark, Axis: axis, Baseline: baseline}
	seen := make(map[int]bool)
	for _, r := range records {
		if r.Benchmark != benchmark {
			continue
		}
		if r.Params.With(axis, baseline.Get(axis)) != baseline {
			continue
		}
		v := r.Params.Get(axis)
		if seen[v] {
			continue
		}
		seen[v] = true
		s.Points = append(s.Points, Point{Value: v, Accuracy: r.Accuracy})
	}
	sort.Slice(s.Points, func(i, j int) bool { return s.Points[i].Value < s.Points[j].Value })
	return s
}

// AllSeries returns one series per axis in sweep order.
func AllSeries(records []predictor.Record, benchmark string, baseline predictor.ParameterSet) []AxisSeries {
	out := make([]AxisSeries, 0, len(predictor.Axes))
	for _, a := range predictor.Axes {
		out = append(out, Series(records, benchmark, baseline, a))
	}
	return out
}

// Stats summarises the accuracies of a series.
type Stats struct {
	Count  int
	Mean   float64
	StdDev float64 // sample standard deviation; zero for a single point
	Best   Point
	Worst  Point
}

// Summarise computes Stats for s.
func Summarise(s AxisSeries) (Stats, error) {
	if len(s.Points) == 0 {
		return Stats{}, fmt.Errorf("%w: %s %s", ErrNoData, s.Benchmark, s.Axis)
	}
	acc := s.Accuracies()
	st := Stats{
		Count: len(acc),
		Mean:  stat.Mean(acc, nil),
		Best:  s.Points[floats.MaxIdx(acc)],
		Worst: s.Points[floats.MinIdx(acc)],
	}
	if len(acc) > 1 {
		st.StdDev = stat.StdDev(acc, nil)
	}
	return st, nil
}

// Accuracies returns the accuracy of each point in order.
func (s AxisSeries) Accuracies() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Accuracy
	}
	return out
}

// FileName is the PNG name for the series. The benchmark comes from the
// ledger and is sanitised before use.
func (s AxisSeries) FileName() string {
	return fmt.Sprintf("%s_accuracy_vs_%s.png", security.SanitizeFilename(s.Benchmark), s.Axis.Slug())
}

// DashboardFileName is the HTML dashboard name for benchmark.
func DashboardFileName(benchmark string) string {
	return security.SanitizeFilename(benchmark) + "_dashboard.html"
}

// Title describes the series and the parameters held fixed.
func (s AxisSeries) Title() string {
	title := fmt.Sprintf("%s: Accuracy vs. %s (", s.Benchmark, s.Axis.Column())
	first := true
	for _, a := range predictor.Axes {
		if a == s.Axis {
			continue
		}
		if !first {
			title += ", "
		}
		first = false
		title += fmt.Sprintf("%s=%d", a.Column(), s.Baseline.Get(a))
	}
	return title + ")"
}

// logAxis reports whether the axis is swept in powers of two and is best
// drawn on a log2 scale.
func logAxis(a predictor.Axis) bool {
	return a == predictor.AxisNumPerceptrons || a == predictor.AxisLHTSize
}
