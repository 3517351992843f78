// Package simulator drives one run of the external branch-predictor
// simulator: building and spawning the invocation, waiting for its output
// artifact to settle on disk, and extracting the accuracy it reports.
package simulator

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/banshee-data/perceptron-sweep/internal/monitoring"
	"github.com/banshee-data/perceptron-sweep/internal/predictor"
)

var logf = monitoring.Prefixed("simulator")

// Flag tokens understood by the predictor tool.
const (
	flagTool           = "-t"
	flagOutput         = "-o"
	flagNumPerceptrons = "-p"
	flagGHRLength      = "-g"
	flagLHRLength      = "-l"
	flagLHTSize        = "-s"
	flagHashingScheme  = "-x"
	argSeparator       = "--"
)

// Executor spawns the simulator for one Job.
type Executor struct {
	// Executable is the instrumentation launcher, e.g. $PIN_ROOT/pin.
	Executable string
	// Tool is the predictor module passed with -t.
	Tool string
	// RunsDir holds per-run output artifacts.
	RunsDir string
	// Builder constructs processes; nil means ExecCommandBuilder.
	Builder CommandBuilder
}

// OutputPath returns the artifact path for a run: every parameter plus the
// benchmark's base name, so distinct configurations never share a file.
func OutputPath(runsDir string, p predictor.ParameterSet, benchmarkPath string) string {
	name := fmt.Sprintf("perceptron_results_%d_%d_%d_%d_%d_%s.out",
		p.NumPerceptrons, p.GHRLength, p.LHRLength, p.LHTSize, p.HashingScheme,
		filepath.Base(benchmarkPath))
	return filepath.Join(runsDir, name)
}

// Args builds the simulator argument list (excluding the executable).
func Args(tool, output string, p predictor.ParameterSet, benchmarkPath string, benchmarkArgs []string) []string {
	args := []string{
		flagTool, tool,
		flagOutput, output,
		flagNumPerceptrons, strconv.Itoa(p.NumPerceptrons),
		flagGHRLength, strconv.Itoa(p.GHRLength),
		flagLHRLength, strconv.Itoa(p.LHRLength),
		flagLHTSize, strconv.Itoa(p.LHTSize),
		flagHashingScheme, strconv.Itoa(p.HashingScheme),
		argSeparator, benchmarkPath,
	}
	return append(args, benchmarkArgs...)
}

// OutputPath returns the artifact path the simulator will be told to write for job.
func (e *Executor) OutputPath(job predictor.Job) string {
	return OutputPath(e.RunsDir, job.Params, job.BenchmarkPath)
}

// Run spawns the simulator for job and blocks until it exits. It returns the
// artifact path. Spawn failures and nonzero exits are ErrProcess.
func (e *Executor) Run(job predictor.Job) (string, error) {
	output := e.OutputPath(job)

	// A leftover artifact from an interrupted earlier run would satisfy the
	// watcher before the new process has written anything.
	if err := os.Remove(output); err == nil {
		logf("removed stale artifact %s", output)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return output, fmt.Errorf("%w: remove stale artifact %s: %v", predictor.ErrProcess, output, err)
	}

	builder := e.Builder
	if builder == nil {
		builder = ExecCommandBuilder{}
	}
	args := Args(e.Tool, output, job.Params, job.BenchmarkPath, job.BenchmarkArgs)
	cmd := builder.BuildCommand(e.Executable, args...)

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return output, fmt.Errorf("%w: %s exited with status %d", predictor.ErrProcess, e.Executable, exitErr.ExitCode())
		}
		return output, fmt.Errorf("%w: spawn %s: %v", predictor.ErrProcess, e.Executable, err)
	}
	return output, nil
}
