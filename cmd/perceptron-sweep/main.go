// Command perceptron-sweep runs the one-factor-at-a-time perceptron
// predictor sweep for one benchmark, resuming from its result ledger.
//
// Usage:
//
//	perceptron-sweep [flags] <benchmark> [benchmark args...]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/perceptron-sweep/internal/config"
	"github.com/banshee-data/perceptron-sweep/internal/journal"
	"github.com/banshee-data/perceptron-sweep/internal/simulator"
	"github.com/banshee-data/perceptron-sweep/internal/sweep"
	"github.com/banshee-data/perceptron-sweep/internal/version"
)

const programName = "perceptron-sweep"

// options holds the parsed command line.
type options struct {
	configPath  string
	workers     int
	pinRoot     string
	toolPath    string
	resultsDir  string
	runsDir     string
	journalPath string
	keepGoing   bool
	showVersion bool

	benchmark     string
	benchmarkArgs []string
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet(programName, flag.ContinueOnError)
	fs.SetOutput(stderr)
	o := &options{}
	fs.StringVar(&o.configPath, "config", "", "Sweep configuration JSON (defaults are built in)")
	fs.IntVar(&o.workers, "workers", 0, "Number of concurrent simulator runs (default: number of CPUs)")
	fs.StringVar(&o.pinRoot, "pin-root", "", "Instrumentation framework root (default: $PIN_ROOT)")
	fs.StringVar(&o.toolPath, "tool", "", "Predictor tool module passed with -t")
	fs.StringVar(&o.resultsDir, "results-dir", "", "Directory holding result ledgers")
	fs.StringVar(&o.runsDir, "runs-dir", "", "Directory holding per-run simulator output")
	fs.StringVar(&o.journalPath, "journal", "", "SQLite run journal path (disabled when empty)")
	fs.BoolVar(&o.keepGoing, "keep-going", false, "Run every configuration even after a failure")
	fs.BoolVar(&o.showVersion, "version", false, "Print version and exit")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s [flags] <benchmark> [benchmark args...]\n", programName)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if o.showVersion {
		return o, nil
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return nil, errors.New("benchmark path is required")
	}
	o.benchmark = fs.Arg(0)
	o.benchmarkArgs = fs.Args()[1:]
	if o.workers < 0 {
		return nil, fmt.Errorf("-workers must be positive, got %d", o.workers)
	}
	return o, nil
}

// loadConfig reads the config file (if any) and applies flag overrides.
func loadConfig(o *options) (*config.SweepConfig, error) {
	cfg := config.EmptySweepConfig()
	if o.configPath != "" {
		var err error
		if cfg, err = config.Load(o.configPath); err != nil {
			return nil, err
		}
	}
	if o.workers > 0 {
		cfg.Workers = &o.workers
	}
	if o.pinRoot != "" {
		cfg.PinRoot = &o.pinRoot
	}
	if o.toolPath != "" {
		cfg.ToolPath = &o.toolPath
	}
	if o.resultsDir != "" {
		cfg.ResultsDir = &o.resultsDir
	}
	if o.runsDir != "" {
		cfg.RunsDir = &o.runsDir
	}
	if o.journalPath != "" {
		cfg.JournalPath = &o.journalPath
	}
	if o.keepGoing {
		failFast := false
		cfg.FailFast = &failFast
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if o.showVersion {
		fmt.Fprintln(stdout, version.String(programName))
		return nil
	}

	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}
	executable, err := cfg.GetExecutable()
	if err != nil {
		return err
	}
	for _, dir := range []string{cfg.GetResultsDir(), cfg.GetRunsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	planner, err := sweep.NewPlanner(cfg.GetBaseline(), cfg.GetAxes())
	if err != nil {
		return err
	}

	watcher := simulator.NewWatcher()
	watcher.Exist = simulator.Phase{Attempts: cfg.GetExistAttempts(), Interval: cfg.GetExistInterval()}
	watcher.Stable = simulator.Phase{Attempts: cfg.GetStableAttempts(), Interval: cfg.GetStableInterval()}
	jobs := &sweep.JobRunner{
		Launcher: &simulator.Executor{
			Executable: executable,
			Tool:       cfg.GetToolPath(),
			RunsDir:    cfg.GetRunsDir(),
		},
		Waiter: watcher,
	}

	runner := sweep.NewRunner(sweep.Options{
		BenchmarkPath: o.benchmark,
		BenchmarkArgs: o.benchmarkArgs,
		LedgerPath:    cfg.LedgerPath(o.benchmark),
		Workers:       cfg.GetWorkers(),
		FailFast:      cfg.GetFailFast(),
	}, planner, jobs)

	if path := cfg.GetJournalPath(); path != "" {
		store, err := journal.Open(path)
		if err != nil {
			log.Printf("WARNING: run journal disabled: %v", err)
		} else {
			defer store.Close()
			runner.SetJournal(store)
		}
	}

	summary, runErr := runner.Run(ctx)
	printSummary(stdout, summary)
	return runErr
}

func printSummary(w io.Writer, s sweep.Summary) {
	fmt.Fprintf(w, "\nSweep %s for %s\n", s.Status, s.Benchmark)
	fmt.Fprintf(w, "  configurations: %d (skipped %d already recorded)\n", s.Total, s.Skipped)
	fmt.Fprintf(w, "  ran: %d succeeded, %d failed of %d planned\n", s.Succeeded, s.Failed, s.Planned)
	if s.RunID != "" {
		fmt.Fprintf(w, "  journal run: %s\n", s.RunID)
	}
	fmt.Fprintf(w, "\nExperiments completed in %.2f seconds\n", s.Elapsed.Seconds())
	fmt.Fprintf(w, "\nResults saved to: %s\n", s.LedgerPath)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		log.Printf("%s: %v", programName, err)
		stop()
		os.Exit(1)
	}
}
