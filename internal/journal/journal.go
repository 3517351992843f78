// Package journal keeps a SQLite history of sweep runs and per-job outcomes,
// including failures, alongside the CSV ledger. The ledger stays the
// authoritative resume point; the journal is for inspection after the fact.
package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/perceptron-sweep/internal/monitoring"
	"github.com/banshee-data/perceptron-sweep/internal/predictor"
	"github.com/banshee-data/perceptron-sweep/internal/sweep"
	"github.com/banshee-data/perceptron-sweep/internal/timeutil"
)

var logf = monitoring.Prefixed("journal")

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ErrRunNotFound is returned when a run ID is not in the journal.
var ErrRunNotFound = errors.New("run not found")

// RunRecord is one persisted sweep run.
type RunRecord struct {
	RunID       string
	Benchmark   string
	LedgerPath  string
	Status      sweep.SweepStatus
	Planned     int
	Skipped     int
	Succeeded   int
	Failed      int
	Elapsed     time.Duration
	StartedAt   time.Time
	CompletedAt *time.Time
}

// OutcomeRecord is one persisted job result.
type OutcomeRecord struct {
	ID             int64
	RunID          string
	Benchmark      string
	Params         predictor.ParameterSet
	Accuracy       *float64 // nil for failed jobs
	Branches       uint64
	Mispredictions uint64
	LimitReached   bool
	Stage          predictor.Stage
	Error          string
	Output         string
	Worker         int
	Elapsed        time.Duration
	RecordedAt     time.Time
}

// Store is a sweep.Journal backed by SQLite.
type Store struct {
	db    *sql.DB
	clock timeutil.Clock
}

var _ sweep.Journal = (*Store)(nil)

// Open opens (creating if needed) the journal database at path and applies
// pending migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create journal directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, clock: timeutil.RealClock{}}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SetClock replaces the clock used for timestamps and busy backoff.
func (s *Store) SetClock(c timeutil.Clock) {
	s.clock = c
}

// StartRun inserts a running sweep and returns its generated ID.
func (s *Store) StartRun(benchmark, ledgerPath string, planned int) (string, error) {
	runID := uuid.New().String()
	err := retryOnBusy(s.clock, func() error {
		_, err := s.db.Exec(`
			INSERT INTO sweep_runs (run_id, benchmark, ledger_path, status, planned, started_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			runID, benchmark, ledgerPath, string(sweep.SweepStatusRunning), planned,
			s.clock.Now().UTC().Format(timeLayout),
		)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("inserting run for %s: %w", benchmark, err)
	}
	return runID, nil
}

// RecordOutcome stores one job result, successful or not.
func (s *Store) RecordOutcome(runID string, res sweep.Result) error {
	var (
		accuracy interface{}
		stage    interface{}
		errMsg   interface{}
	)
	if res.Err == nil {
		accuracy = res.Accuracy
	} else {
		errMsg = res.Err.Error()
		var je *predictor.JobError
		if errors.As(res.Err, &je) {
			stage = string(je.Stage)
		}
	}
	limit := 0
	if res.Artifact.LimitReached {
		limit = 1
	}
	p := res.Params
	err := retryOnBusy(s.clock, func() error {
		_, err := s.db.Exec(`
			INSERT INTO sweep_outcomes (
				run_id, benchmark, num_perceptrons, ghr_length, lhr_length, lht_size, hashing_scheme,
				accuracy, branches, mispredictions, limit_reached, stage, error, output,
				worker, elapsed_ms, recorded_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, res.Benchmark, p.NumPerceptrons, p.GHRLength, p.LHRLength, p.LHTSize, p.HashingScheme,
			accuracy, int64(res.Artifact.Branches), int64(res.Artifact.Mispredictions), limit, stage, errMsg, res.Output,
			res.Worker, res.Elapsed.Milliseconds(), s.clock.Now().UTC().Format(timeLayout),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("inserting outcome for run %s %s: %w", runID, p, err)
	}
	return nil
}

// FinishRun stores the final counts and status of a run.
func (s *Store) FinishRun(runID string, summary sweep.Summary) error {
	var rows int64
	err := retryOnBusy(s.clock, func() error {
		r, err := s.db.Exec(`
			UPDATE sweep_runs
			SET status = ?, planned = ?, skipped = ?, succeeded = ?, failed = ?, elapsed_ms = ?, completed_at = ?
			WHERE run_id = ?`,
			string(summary.Status), summary.Planned, summary.Skipped, summary.Succeeded, summary.Failed,
			summary.Elapsed.Milliseconds(), s.clock.Now().UTC().Format(timeLayout), runID,
		)
		if err != nil {
			return err
		}
		rows, err = r.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("updating run %s: %w", runID, err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// Runs returns the recorded runs for benchmark, newest first. An empty
// benchmark returns every run.
func (s *Store) Runs(benchmark string) ([]RunRecord, error) {
	query := `
		SELECT run_id, benchmark, ledger_path, status, planned, skipped, succeeded, failed,
		       elapsed_ms, started_at, completed_at
		FROM sweep_runs`
	var args []interface{}
	if benchmark != "" {
		query += ` WHERE benchmark = ?`
		args = append(args, benchmark)
	}
	query += ` ORDER BY started_at DESC, rowid DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var (
			r         RunRecord
			status    string
			elapsedMS int64
			started   string
			completed sql.NullString
		)
		if err := rows.Scan(&r.RunID, &r.Benchmark, &r.LedgerPath, &status, &r.Planned, &r.Skipped,
			&r.Succeeded, &r.Failed, &elapsedMS, &started, &completed); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.Status = sweep.SweepStatus(status)
		r.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		if r.StartedAt, err = time.Parse(timeLayout, started); err != nil {
			return nil, fmt.Errorf("run %s: started_at: %w", r.RunID, err)
		}
		if completed.Valid {
			t, err := time.Parse(timeLayout, completed.String)
			if err != nil {
				return nil, fmt.Errorf("run %s: completed_at: %w", r.RunID, err)
			}
			r.CompletedAt = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Outcomes returns the job outcomes recorded for runID in insertion order.
func (s *Store) Outcomes(runID string) ([]OutcomeRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, benchmark, num_perceptrons, ghr_length, lhr_length, lht_size, hashing_scheme,
		       accuracy, branches, mispredictions, limit_reached, stage, error, output,
		       worker, elapsed_ms, recorded_at
		FROM sweep_outcomes
		WHERE run_id = ?
		ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying outcomes for run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []OutcomeRecord
	for rows.Next() {
		var (
			o              OutcomeRecord
			accuracy       sql.NullFloat64
			branches       int64
			mispredictions int64
			limit          int
			stage          sql.NullString
			errMsg         sql.NullString
			output         sql.NullString
			elapsedMS      int64
			recorded       string
		)
		p := &o.Params
		if err := rows.Scan(&o.ID, &o.RunID, &o.Benchmark,
			&p.NumPerceptrons, &p.GHRLength, &p.LHRLength, &p.LHTSize, &p.HashingScheme,
			&accuracy, &branches, &mispredictions, &limit, &stage, &errMsg, &output,
			&o.Worker, &elapsedMS, &recorded); err != nil {
			return nil, fmt.Errorf("scanning outcome: %w", err)
		}
		if accuracy.Valid {
			v := accuracy.Float64
			o.Accuracy = &v
		}
		o.Branches = uint64(branches)
		o.Mispredictions = uint64(mispredictions)
		o.LimitReached = limit != 0
		o.Stage = predictor.Stage(stage.String)
		o.Error = errMsg.String
		o.Output = output.String
		o.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		if o.RecordedAt, err = time.Parse(timeLayout, recorded); err != nil {
			return nil, fmt.Errorf("outcome %d: recorded_at: %w", o.ID, err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
