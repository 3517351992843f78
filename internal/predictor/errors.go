package predictor

import (
	"errors"
	"fmt"
)

// Error taxonomy for the sweep driver. Callers classify failures with
// errors.Is against these sentinels.
var (
	// ErrConfig is a malformed ledger or an invalid sweep configuration.
	ErrConfig = errors.New("configuration error")
	// ErrProcess is a simulator spawn failure or nonzero exit.
	ErrProcess = errors.New("simulator process error")
	// ErrArtifactMissing means the output artifact never appeared.
	ErrArtifactMissing = errors.New("artifact missing")
	// ErrArtifactUnstable means the artifact kept growing past the poll budget.
	ErrArtifactUnstable = errors.New("artifact unstable")
	// ErrMetricNotFound means the artifact has no Accuracy line.
	ErrMetricNotFound = errors.New("metric not found")
	// ErrLedgerWrite means a ledger row could not be appended atomically.
	ErrLedgerWrite = errors.New("ledger write error")
)

// Stage names the pipeline step in which a job failed.
type Stage string

const (
	StageExecute Stage = "execute"
	StageWatch   Stage = "watch"
	StageParse   Stage = "parse"
	StageAppend  Stage = "append"
)

// JobError carries everything needed to reproduce a failed run by hand.
type JobError struct {
	Benchmark string
	Params    ParameterSet
	Stage     Stage
	Output    string // artifact path the simulator was asked to write
	Err       error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("benchmark %s params %s stage %s (artifact %s): %v",
		e.Benchmark, e.Params, e.Stage, e.Output, e.Err)
}

func (e *JobError) Unwrap() error { return e.Err }
