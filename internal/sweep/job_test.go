package sweep

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/perceptron-sweep/internal/fsutil"
	"github.com/banshee-data/perceptron-sweep/internal/ledger"
	"github.com/banshee-data/perceptron-sweep/internal/predictor"
	"github.com/banshee-data/perceptron-sweep/internal/timeutil"
)

type fakeLauncher struct {
	output string
	err    error
	fs     *fsutil.MemoryFileSystem
	body   string
	calls  int
}

func (f *fakeLauncher) Run(job predictor.Job) (string, error) {
	f.calls++
	if f.err == nil && f.fs != nil && f.body != "" {
		f.fs.WriteFile(f.output, []byte(f.body))
	}
	return f.output, f.err
}

type fakeWaiter struct{ err error }

func (f fakeWaiter) Wait(string) error { return f.err }

type fakeAppender struct {
	rows []predictor.Record
	err  error
}

func (f *fakeAppender) Append(benchmark string, params predictor.ParameterSet, accuracy float64) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, predictor.Record{Benchmark: benchmark, Params: params, Accuracy: accuracy})
	return nil
}

const artifactOK = "Branches: 1000\nMispredictions: 75\nAccuracy: 92.5%\n"

func newJobRunner(launcher *fakeLauncher, waiter fakeWaiter, app *fakeAppender) *JobRunner {
	clock := timeutil.NewMockClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	return &JobRunner{
		Launcher: launcher,
		Waiter:   waiter,
		FS:       launcher.fs,
		Ledger:   app,
		Clock:    clock,
	}
}

func testJob() predictor.Job {
	return predictor.Job{Params: baseline, BenchmarkPath: "/opt/bench/gcc_r", LedgerPath: "/results/ledger.csv"}
}

func TestRunJobSuccess(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	launcher := &fakeLauncher{output: "/runs/out", fs: fs, body: artifactOK}
	app := &fakeAppender{}

	res := newJobRunner(launcher, fakeWaiter{}, app).RunJob(3, testJob())

	require.NoError(t, res.Err)
	assert.Equal(t, "gcc_r", res.Benchmark)
	assert.Equal(t, 3, res.Worker)
	assert.Equal(t, 92.5, res.Accuracy)
	assert.Equal(t, uint64(1000), res.Artifact.Branches)
	assert.Equal(t, uint64(75), res.Artifact.Mispredictions)
	assert.Equal(t, "/runs/out", res.Output)
	require.Len(t, app.rows, 1)
	assert.Equal(t, predictor.Record{Benchmark: "gcc_r", Params: baseline, Accuracy: 92.5}, app.rows[0])
}

func TestRunJobWrapsStageErrors(t *testing.T) {
	tests := []struct {
		name     string
		launcher *fakeLauncher
		waitErr  error
		appErr   error
		stage    predictor.Stage
		sentinel error
	}{
		{
			name:     "spawn failure",
			launcher: &fakeLauncher{output: "/runs/out", err: fmt.Errorf("%w: exit status 1", predictor.ErrProcess)},
			stage:    predictor.StageExecute,
			sentinel: predictor.ErrProcess,
		},
		{
			name:     "artifact never appears",
			launcher: &fakeLauncher{output: "/runs/out"},
			waitErr:  fmt.Errorf("%w: gone", predictor.ErrArtifactMissing),
			stage:    predictor.StageWatch,
			sentinel: predictor.ErrArtifactMissing,
		},
		{
			name:     "no accuracy line",
			launcher: &fakeLauncher{output: "/runs/out", body: "Branches: 10\n"},
			stage:    predictor.StageParse,
			sentinel: predictor.ErrMetricNotFound,
		},
		{
			name:     "ledger write fails",
			launcher: &fakeLauncher{output: "/runs/out", body: artifactOK},
			appErr:   fmt.Errorf("%w: disk full", predictor.ErrLedgerWrite),
			stage:    predictor.StageAppend,
			sentinel: predictor.ErrLedgerWrite,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.launcher.fs = fsutil.NewMemoryFileSystem()
			app := &fakeAppender{err: tt.appErr}
			res := newJobRunner(tt.launcher, fakeWaiter{err: tt.waitErr}, app).RunJob(1, testJob())

			require.Error(t, res.Err)
			assert.ErrorIs(t, res.Err, tt.sentinel)
			var je *predictor.JobError
			require.True(t, errors.As(res.Err, &je))
			assert.Equal(t, tt.stage, je.Stage)
			assert.Equal(t, "gcc_r", je.Benchmark)
			assert.Equal(t, baseline, je.Params)
			assert.Equal(t, "/runs/out", je.Output)
			assert.Empty(t, app.rows)
		})
	}
}

func TestRunJobInvalidAccuracyKeepsLedgerLoadable(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"nan", "Branches: 0\nAccuracy: nan%\n"},
		{"negative nan", "Branches: 0\nAccuracy: -nan%\n"},
		{"inf", "Accuracy: inf%\n"},
		{"above 100", "Accuracy: 150.00%\n"},
		{"below 0", "Accuracy: -5%\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "gcc_r_perceptron_results.csv")
			l := ledger.New(path)
			require.NoError(t, l.Append("gcc_r", baseline.With(predictor.AxisHashingScheme, 1), 91))

			launcher := &fakeLauncher{output: "/runs/out", fs: fsutil.NewMemoryFileSystem(), body: tt.body}
			jr := &JobRunner{
				Launcher: launcher,
				Waiter:   fakeWaiter{},
				FS:       launcher.fs,
				Ledger:   l,
				Clock:    timeutil.NewMockClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)),
			}
			res := jr.RunJob(1, testJob())

			require.Error(t, res.Err)
			assert.ErrorIs(t, res.Err, predictor.ErrMetricNotFound)
			var je *predictor.JobError
			require.True(t, errors.As(res.Err, &je))
			assert.Equal(t, predictor.StageParse, je.Stage)

			known, err := ledger.Load(path)
			require.NoError(t, err)
			assert.Len(t, known, 1)
			assert.False(t, known.Has(baseline), "failed run must not be recorded")
		})
	}
}

func TestRunJobRecordsPartialRuns(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	launcher := &fakeLauncher{output: "/runs/out", fs: fs, body: "ERROR: Limit Reached!\n" + artifactOK}
	app := &fakeAppender{}

	res := newJobRunner(launcher, fakeWaiter{}, app).RunJob(1, testJob())
	require.NoError(t, res.Err)
	assert.True(t, res.Artifact.LimitReached)
	assert.Len(t, app.rows, 1)
}

func TestBenchmarkName(t *testing.T) {
	assert.Equal(t, "mcf_r", BenchmarkName("/spec/bin/mcf_r"))
	assert.Equal(t, "mcf_r", BenchmarkName("mcf_r"))
}
