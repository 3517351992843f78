package sweep

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/perceptron-sweep/internal/ledger"
	"github.com/banshee-data/perceptron-sweep/internal/predictor"
	"github.com/banshee-data/perceptron-sweep/internal/timeutil"
)

// SweepStatus represents the final state of a sweep run
type SweepStatus string

const (
	SweepStatusRunning  SweepStatus = "running"
	SweepStatusComplete SweepStatus = "complete"
	SweepStatusError    SweepStatus = "error"
)

// Journal records sweep runs and per-job outcomes outside the ledger.
// Journal failures are logged and never fail the sweep.
type Journal interface {
	StartRun(benchmark, ledgerPath string, planned int) (runID string, err error)
	RecordOutcome(runID string, res Result) error
	FinishRun(runID string, summary Summary) error
}

// Options configures a Runner.
type Options struct {
	BenchmarkPath string
	BenchmarkArgs []string
	LedgerPath    string
	Workers       int
	FailFast      bool
}

// Summary describes a finished (or aborted) sweep.
type Summary struct {
	RunID      string
	Benchmark  string
	LedgerPath string
	Status     SweepStatus
	Total      int // configurations in the full sweep
	Skipped    int // already present in the ledger
	Planned    int // handed to the pool
	Succeeded  int
	Failed     int
	Elapsed    time.Duration
	Results    []Result
}

// Runner drives a whole sweep: ledger snapshot, planning, pool execution.
type Runner struct {
	opts    Options
	planner *Planner
	jobs    *JobRunner
	journal Journal
	clock   timeutil.Clock
}

// NewRunner creates a sweep runner. jobs performs each configuration's
// pipeline; its Ledger must append to opts.LedgerPath.
func NewRunner(opts Options, planner *Planner, jobs *JobRunner) *Runner {
	return &Runner{
		opts:    opts,
		planner: planner,
		jobs:    jobs,
		clock:   timeutil.RealClock{},
	}
}

// SetJournal attaches an optional outcome journal.
func (r *Runner) SetJournal(j Journal) {
	r.journal = j
}

// SetClock replaces the clock used for elapsed-time reporting.
func (r *Runner) SetClock(c timeutil.Clock) {
	r.clock = c
}

// Jobs returns the jobs still to run, built from a fresh ledger snapshot.
func (r *Runner) Jobs() ([]predictor.Job, int, error) {
	known, err := ledger.Load(r.opts.LedgerPath)
	if err != nil {
		return nil, 0, err
	}
	all := r.planner.All()
	pending := r.planner.Plan(known)

	jobs := make([]predictor.Job, 0, len(pending))
	for _, ps := range pending {
		jobs = append(jobs, predictor.Job{
			Params:        ps,
			BenchmarkPath: r.opts.BenchmarkPath,
			BenchmarkArgs: r.opts.BenchmarkArgs,
			LedgerPath:    r.opts.LedgerPath,
		})
	}
	return jobs, len(all) - len(pending), nil
}

// Run executes the sweep. With FailFast the first job error aborts the sweep
// (in-flight jobs finish and their rows are kept); otherwise every job runs
// and all job errors are returned joined. The ledger is the resume point in
// both cases.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	start := r.clock.Now()
	summary := Summary{
		Benchmark:  BenchmarkName(r.opts.BenchmarkPath),
		LedgerPath: r.opts.LedgerPath,
		Status:     SweepStatusRunning,
		Total:      len(r.planner.All()),
	}

	if err := ledger.New(r.opts.LedgerPath).Init(); err != nil {
		summary.Status = SweepStatusError
		return summary, err
	}
	jobs, skipped, err := r.Jobs()
	if err != nil {
		summary.Status = SweepStatusError
		return summary, err
	}
	summary.Skipped = skipped
	summary.Planned = len(jobs)
	logf("%s: %d configurations, %d already recorded, %d to run", summary.Benchmark, summary.Total, skipped, len(jobs))

	if r.journal != nil {
		id, err := r.journal.StartRun(summary.Benchmark, r.opts.LedgerPath, len(jobs))
		if err != nil {
			logf("WARNING: journal start failed: %v", err)
		}
		summary.RunID = id
	}

	var jobErrs []error
	pool := &Pool{Workers: r.opts.Workers, Run: r.jobs.RunJob, FailFast: r.opts.FailFast}
	poolErr := pool.Execute(ctx, jobs, func(res Result) {
		summary.Results = append(summary.Results, res)
		if res.Err != nil {
			summary.Failed++
			jobErrs = append(jobErrs, res.Err)
		} else {
			summary.Succeeded++
		}
		if r.journal != nil && summary.RunID != "" {
			if err := r.journal.RecordOutcome(summary.RunID, res); err != nil {
				logf("WARNING: journal outcome failed: %v", err)
			}
		}
		logf("progress %d/%d", summary.Succeeded+summary.Failed, summary.Planned)
	})

	summary.Elapsed = r.clock.Since(start)
	var runErr error
	switch {
	case poolErr != nil && !errors.Is(poolErr, context.Canceled) && !errors.Is(poolErr, context.DeadlineExceeded):
		runErr = fmt.Errorf("sweep aborted after %d/%d jobs: %w", summary.Succeeded+summary.Failed, summary.Planned, poolErr)
	case poolErr != nil:
		runErr = fmt.Errorf("sweep stopped after %d/%d jobs: %w", summary.Succeeded+summary.Failed, summary.Planned, errors.Join(append([]error{poolErr}, jobErrs...)...))
	case len(jobErrs) > 0:
		runErr = fmt.Errorf("%d of %d jobs failed: %w", len(jobErrs), summary.Planned, errors.Join(jobErrs...))
	}
	if runErr != nil {
		summary.Status = SweepStatusError
	} else {
		summary.Status = SweepStatusComplete
	}

	if r.journal != nil && summary.RunID != "" {
		if err := r.journal.FinishRun(summary.RunID, summary); err != nil {
			logf("WARNING: journal finish failed: %v", err)
		}
	}
	logf("sweep %s: %d succeeded, %d failed, %d skipped in %v", summary.Status, summary.Succeeded, summary.Failed, summary.Skipped, summary.Elapsed.Round(time.Millisecond))
	return summary, runErr
}
