// Command perceptron-report charts a perceptron sweep ledger: one PNG per
// axis and benchmark plus an HTML dashboard, with summary statistics on
// stdout.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/banshee-data/perceptron-sweep/internal/config"
	"github.com/banshee-data/perceptron-sweep/internal/ledger"
	"github.com/banshee-data/perceptron-sweep/internal/report"
	"github.com/banshee-data/perceptron-sweep/internal/version"
)

const programName = "perceptron-report"

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet(programName, flag.ContinueOnError)
	fs.SetOutput(stderr)
	outDir := fs.String("out", ".", "Directory for generated charts")
	configPath := fs.String("config", "", "Sweep configuration JSON holding the baseline")
	benchmark := fs.String("benchmark", "", "Only chart this benchmark (default: every benchmark in the ledger)")
	noPNG := fs.Bool("no-png", false, "Skip PNG rendering")
	noHTML := fs.Bool("no-html", false, "Skip the HTML dashboard")
	showVersion := fs.Bool("version", false, "Print version and exit")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s [flags] <ledger.csv>\n", programName)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *showVersion {
		fmt.Fprintln(stdout, version.String(programName))
		return nil
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errors.New("exactly one ledger path is required")
	}

	cfg := config.EmptySweepConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return err
		}
	}
	baseline := cfg.GetBaseline()

	records, err := ledger.ReadRecords(fs.Arg(0))
	if err != nil {
		return err
	}
	benchmarks := report.Benchmarks(records)
	if *benchmark != "" {
		benchmarks = []string{*benchmark}
	}
	if len(benchmarks) == 0 {
		return fmt.Errorf("%w: ledger %s has no rows", report.ErrNoData, fs.Arg(0))
	}
	if err := os.MkdirAll(*outDir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", *outDir, err)
	}

	for _, bench := range benchmarks {
		series := report.AllSeries(records, bench, baseline)
		fmt.Fprintf(stdout, "%s (baseline %s)\n", bench, baseline)
		for _, s := range series {
			st, err := report.Summarise(s)
			if err != nil {
				fmt.Fprintf(stdout, "  %-16s no data\n", s.Axis.Column())
				continue
			}
			fmt.Fprintf(stdout, "  %-16s n=%-3d mean=%6.2f%% sd=%5.2f best=%d (%.2f%%) worst=%d (%.2f%%)\n",
				s.Axis.Column(), st.Count, st.Mean, st.StdDev, st.Best.Value, st.Best.Accuracy, st.Worst.Value, st.Worst.Accuracy)
			if *noPNG {
				continue
			}
			path, err := report.RenderPNG(s, *outDir)
			if err != nil {
				return err
			}
			log.Printf("wrote %s", path)
		}

		if *noHTML {
			continue
		}
		htmlPath := filepath.Join(*outDir, report.DashboardFileName(bench))
		if err := writeDashboard(htmlPath, series); err != nil {
			if errors.Is(err, report.ErrNoData) {
				log.Printf("skipping dashboard for %s: %v", bench, err)
				continue
			}
			return err
		}
		log.Printf("wrote %s", htmlPath)
	}
	return nil
}

func writeDashboard(path string, series []report.AxisSeries) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return report.RenderHTML(f, series)
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		log.Fatalf("%s: %v", programName, err)
	}
}
