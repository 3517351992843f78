package sweep

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/perceptron-sweep/internal/fsutil"
	"github.com/banshee-data/perceptron-sweep/internal/ledger"
	"github.com/banshee-data/perceptron-sweep/internal/predictor"
	"github.com/banshee-data/perceptron-sweep/internal/simulator"
	"github.com/banshee-data/perceptron-sweep/internal/testutil"
	"github.com/banshee-data/perceptron-sweep/internal/timeutil"
)

var headerLine = strings.Join(ledger.Header, ",") + "\n"

// baselineOnly is a sweep whose every axis holds just the baseline value.
var baselineOnly = predictor.AxisValues{
	NumPerceptrons: []int{1024},
	GHRLength:      []int{32},
	LHRLength:      []int{16},
	LHTSize:        []int{4096},
	HashingScheme:  []int{3},
}

type harness struct {
	ledger  string
	callLog string
	opts    Options
	jobs    *JobRunner
}

// newHarness wires a real executor around a stub simulator script, with a
// watcher tuned for millisecond-scale polling.
func newHarness(t *testing.T, artifact string, exitCode int) *harness {
	t.Helper()
	dir := t.TempDir()
	h := &harness{
		ledger:  filepath.Join(dir, "bench_perceptron_results.csv"),
		callLog: filepath.Join(dir, "calls.log"),
	}
	stub := testutil.WriteStub(t, dir, testutil.Stub{Artifact: artifact, ExitCode: exitCode, CallLog: h.callLog})
	runs := filepath.Join(dir, "runs")
	require.NoError(t, os.MkdirAll(runs, 0755))

	h.opts = Options{
		BenchmarkPath: filepath.Join(dir, "bench"),
		BenchmarkArgs: []string{"-n", "3"},
		LedgerPath:    h.ledger,
		Workers:       4,
		FailFast:      true,
	}
	h.jobs = &JobRunner{
		Launcher: &simulator.Executor{Executable: stub, Tool: "perceptron.so", RunsDir: runs},
		Waiter: &simulator.Watcher{
			FS:     fsutil.OSFileSystem{},
			Clock:  timeutil.RealClock{},
			Exist:  simulator.Phase{Attempts: 10, Interval: 10 * time.Millisecond},
			Stable: simulator.Phase{Attempts: 10, Interval: 10 * time.Millisecond},
		},
	}
	return h
}

func (h *harness) runner(t *testing.T, axes predictor.AxisValues) *Runner {
	t.Helper()
	planner, err := NewPlanner(baseline, axes)
	require.NoError(t, err)
	return NewRunner(h.opts, planner, h.jobs)
}

func (h *harness) calls(t *testing.T) int {
	t.Helper()
	data, err := os.ReadFile(h.callLog)
	if os.IsNotExist(err) {
		return 0
	}
	require.NoError(t, err)
	return strings.Count(string(data), "\n")
}

func TestRunnerSingleConfigurationEndToEnd(t *testing.T) {
	h := newHarness(t, "Accuracy: 90%", 0)

	summary, err := h.runner(t, baselineOnly).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepStatusComplete, summary.Status)
	assert.Equal(t, 1, summary.Planned)
	assert.Equal(t, 1, summary.Succeeded)

	data, err := os.ReadFile(h.ledger)
	require.NoError(t, err)
	assert.Equal(t, headerLine+"bench,1024,32,16,4096,3,90\n", string(data))

	log, err := os.ReadFile(h.callLog)
	require.NoError(t, err)
	assert.Contains(t, string(log), "-t perceptron.so -o ")
	assert.Contains(t, string(log), "-p 1024 -g 32 -l 16 -s 4096 -x 3 -- ")
	assert.Contains(t, string(log), "bench -n 3")

	// A second run finds everything recorded and spawns nothing.
	summary, err = h.runner(t, baselineOnly).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Planned)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, h.calls(t))

	again, err := os.ReadFile(h.ledger)
	require.NoError(t, err)
	assert.Equal(t, string(data), string(again))
}

func TestRunnerFullSweep(t *testing.T) {
	h := newHarness(t, "Branches: 10\nAccuracy: 88.25%", 0)

	summary, err := h.runner(t, experimentAxes).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 32, summary.Total)
	assert.Equal(t, 32, summary.Succeeded)
	assert.Len(t, summary.Results, 32)

	records, err := ledger.ReadRecords(h.ledger)
	require.NoError(t, err)
	require.Len(t, records, 32)
	seen := make(predictor.Set)
	for _, r := range records {
		assert.Equal(t, "bench", r.Benchmark)
		assert.Equal(t, 88.25, r.Accuracy)
		assert.False(t, seen.Has(r.Params), "duplicate row %s", r.Params)
		seen.Add(r.Params)
	}
	assert.Equal(t, 32, h.calls(t))
}

func TestRunnerResumesFromLedger(t *testing.T) {
	h := newHarness(t, "Accuracy: 50", 0)
	l := ledger.New(h.ledger)
	require.NoError(t, l.Append("bench", baseline, 77))
	require.NoError(t, l.Append("bench", baseline.With(predictor.AxisHashingScheme, 9), 78))

	summary, err := h.runner(t, experimentAxes).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, 30, summary.Planned)
	assert.Equal(t, 30, h.calls(t))

	records, err := ledger.ReadRecords(h.ledger)
	require.NoError(t, err)
	assert.Len(t, records, 32)
	assert.Equal(t, 77.0, records[0].Accuracy, "existing rows are left untouched")
}

func TestRunnerFailFast(t *testing.T) {
	h := newHarness(t, "", 1)

	summary, err := h.runner(t, experimentAxes).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, predictor.ErrProcess)
	assert.Contains(t, err.Error(), "sweep aborted")
	assert.Equal(t, SweepStatusError, summary.Status)
	assert.Zero(t, summary.Succeeded)
	assert.Less(t, h.calls(t), 32)

	data, err := os.ReadFile(h.ledger)
	require.NoError(t, err)
	assert.Equal(t, headerLine, string(data))
}

func TestRunnerKeepGoingCollectsEveryFailure(t *testing.T) {
	h := newHarness(t, "no metric here", 0)
	h.opts.FailFast = false

	summary, err := h.runner(t, experimentAxes).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, predictor.ErrMetricNotFound)
	assert.Contains(t, err.Error(), "32 of 32 jobs failed")
	assert.Equal(t, 32, summary.Failed)
	assert.Equal(t, 32, h.calls(t))
}

func TestRunnerRejectsMalformedLedger(t *testing.T) {
	h := newHarness(t, "Accuracy: 90", 0)
	require.NoError(t, os.WriteFile(h.ledger, []byte(headerLine+"bench,abc,32,16,4096,3,90\n"), 0644))

	_, err := h.runner(t, baselineOnly).Run(context.Background())
	require.ErrorIs(t, err, predictor.ErrConfig)
	assert.Equal(t, 0, h.calls(t))
}

type recordingJournal struct {
	mu       sync.Mutex
	started  int
	outcomes []Result
	finished *Summary
}

func (j *recordingJournal) StartRun(benchmark, ledgerPath string, planned int) (string, error) {
	j.started = planned
	return "run-1", nil
}

func (j *recordingJournal) RecordOutcome(runID string, res Result) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.outcomes = append(j.outcomes, res)
	return nil
}

func (j *recordingJournal) FinishRun(runID string, summary Summary) error {
	j.finished = &summary
	return nil
}

func TestRunnerJournal(t *testing.T) {
	h := newHarness(t, "Accuracy: 61.5%", 0)
	journal := &recordingJournal{}
	r := h.runner(t, experimentAxes)
	r.SetJournal(journal)

	summary, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "run-1", summary.RunID)
	assert.Equal(t, 32, journal.started)
	assert.Len(t, journal.outcomes, 32)
	require.NotNil(t, journal.finished)
	assert.Equal(t, SweepStatusComplete, journal.finished.Status)
}
