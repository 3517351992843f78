// Package sweep runs one-factor-at-a-time parameter sweeps of the perceptron
// predictor: it plans the configurations still missing from the result
// ledger, fans them out over a bounded worker pool, and records each result.
package sweep

import (
	"fmt"

	"github.com/banshee-data/perceptron-sweep/internal/predictor"
)

// Planner builds the sweep from a fixed baseline and one candidate list per
// axis.
type Planner struct {
	baseline predictor.ParameterSet
	axes     predictor.AxisValues
}

// NewPlanner validates the sweep shape. Every candidate value must be
// positive and every axis must have at least one candidate.
func NewPlanner(baseline predictor.ParameterSet, axes predictor.AxisValues) (*Planner, error) {
	if err := baseline.Validate(); err != nil {
		return nil, fmt.Errorf("baseline: %w", err)
	}
	for _, a := range predictor.Axes {
		values := axes.For(a)
		if len(values) == 0 {
			return nil, fmt.Errorf("%w: axis %s has no candidate values", predictor.ErrConfig, a)
		}
		for _, v := range values {
			if v <= 0 {
				return nil, fmt.Errorf("%w: axis %s candidate %d must be positive", predictor.ErrConfig, a, v)
			}
		}
	}
	return &Planner{baseline: baseline, axes: axes}, nil
}

// Baseline returns the configuration every axis pass varies from.
func (p *Planner) Baseline() predictor.ParameterSet { return p.baseline }

// Axes returns the candidate lists.
func (p *Planner) Axes() predictor.AxisValues { return p.axes }

// Plan returns the configurations not yet in known, in a stable order: the
// baseline first, then each axis in predictor.Axes order with its
// candidates in list order. Duplicates (including the baseline reappearing
// inside an axis list) are emitted at most once. known is a snapshot and is
// not modified.
func (p *Planner) Plan(known predictor.Set) []predictor.ParameterSet {
	return Plan(p.baseline, p.axes, known)
}

// All returns every configuration of the sweep regardless of prior results.
func (p *Planner) All() []predictor.ParameterSet {
	return Plan(p.baseline, p.axes, nil)
}

// Plan is the planner algorithm without validation.
func Plan(baseline predictor.ParameterSet, axes predictor.AxisValues, known predictor.Set) []predictor.ParameterSet {
	seen := make(predictor.Set)
	var out []predictor.ParameterSet
	emit := func(ps predictor.ParameterSet) {
		if known.Has(ps) || seen.Has(ps) {
			return
		}
		seen.Add(ps)
		out = append(out, ps)
	}

	emit(baseline)
	for _, a := range predictor.Axes {
		for _, v := range axes.For(a) {
			emit(baseline.With(a, v))
		}
	}
	return out
}
