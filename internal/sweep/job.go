package sweep

import (
	"path/filepath"
	"time"

	"github.com/banshee-data/perceptron-sweep/internal/fsutil"
	"github.com/banshee-data/perceptron-sweep/internal/ledger"
	"github.com/banshee-data/perceptron-sweep/internal/monitoring"
	"github.com/banshee-data/perceptron-sweep/internal/predictor"
	"github.com/banshee-data/perceptron-sweep/internal/simulator"
	"github.com/banshee-data/perceptron-sweep/internal/timeutil"
)

var logf = monitoring.Prefixed("sweep")

// Launcher runs the simulator for a job and returns the artifact path.
type Launcher interface {
	Run(job predictor.Job) (string, error)
}

// Waiter blocks until an artifact is complete.
type Waiter interface {
	Wait(path string) error
}

// Appender persists one result row.
type Appender interface {
	Append(benchmark string, params predictor.ParameterSet, accuracy float64) error
}

// Result is the outcome of one job: either an accuracy or a *predictor.JobError.
type Result struct {
	Benchmark string
	Params    predictor.ParameterSet
	Accuracy  float64
	Artifact  simulator.Artifact
	Output    string
	Worker    int
	Elapsed   time.Duration
	Err       error
}

// JobRunner executes the per-configuration pipeline:
// launch, wait for the artifact, parse it, append to the ledger.
type JobRunner struct {
	Launcher Launcher
	Waiter   Waiter
	FS       fsutil.FileSystem
	// Ledger defaults to the file named by each Job's LedgerPath.
	Ledger   Appender
	Clock    timeutil.Clock
}

// BenchmarkName is the identity recorded in the ledger for a benchmark path.
func BenchmarkName(benchmarkPath string) string {
	return filepath.Base(benchmarkPath)
}

// RunJob runs job to completion. It never panics on job failure; the error
// is returned in Result.Err wrapped in a *predictor.JobError.
func (r *JobRunner) RunJob(worker int, job predictor.Job) Result {
	clock := r.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	start := clock.Now()
	res := Result{
		Benchmark: BenchmarkName(job.BenchmarkPath),
		Params:    job.Params,
		Worker:    worker,
	}
	fail := func(stage predictor.Stage, err error) Result {
		res.Elapsed = clock.Since(start)
		res.Err = &predictor.JobError{
			Benchmark: res.Benchmark,
			Params:    job.Params,
			Stage:     stage,
			Output:    res.Output,
			Err:       err,
		}
		logf("worker %d: FAILED %s %s: %v", worker, res.Benchmark, job.Params, err)
		return res
	}

	fsys := r.FS
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}

	logf("worker %d: running %s %s", worker, res.Benchmark, job.Params)

	output, err := r.Launcher.Run(job)
	res.Output = output
	if err != nil {
		return fail(predictor.StageExecute, err)
	}
	if err := r.Waiter.Wait(output); err != nil {
		return fail(predictor.StageWatch, err)
	}
	artifact, err := simulator.ParseFile(fsys, output)
	if err != nil {
		return fail(predictor.StageParse, err)
	}
	res.Artifact = artifact
	res.Accuracy = artifact.Accuracy
	if artifact.LimitReached {
		logf("worker %d: WARNING: %s hit the simulator instruction limit; accuracy covers a partial run", worker, output)
	}
	var appender Appender = r.Ledger
	if appender == nil {
		appender = ledger.New(job.LedgerPath)
	}
	if err := appender.Append(res.Benchmark, job.Params, artifact.Accuracy); err != nil {
		return fail(predictor.StageAppend, err)
	}

	res.Elapsed = clock.Since(start)
	logf("worker %d: %s %s accuracy=%.2f%% (%v)", worker, res.Benchmark, job.Params, res.Accuracy, res.Elapsed.Round(time.Millisecond))
	return res
}
