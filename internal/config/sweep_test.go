package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/perceptron-sweep/internal/predictor"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestEmptySweepConfigDefaults(t *testing.T) {
	t.Setenv(PinRootEnv, "/opt/pin")
	cfg := EmptySweepConfig()

	want := predictor.ParameterSet{NumPerceptrons: 1024, GHRLength: 32, LHRLength: 16, LHTSize: 4096, HashingScheme: 3}
	if got := cfg.GetBaseline(); got != want {
		t.Errorf("GetBaseline() = %s, want %s", got, want)
	}
	if diff := cmp.Diff(defaultAxes, cfg.GetAxes()); diff != "" {
		t.Errorf("GetAxes() mismatch (-want +got):\n%s", diff)
	}
	exe, err := cfg.GetExecutable()
	if err != nil || exe != "/opt/pin/pin" {
		t.Errorf("GetExecutable() = %q, %v", exe, err)
	}
	if cfg.GetWorkers() != runtime.NumCPU() {
		t.Errorf("GetWorkers() = %d, want %d", cfg.GetWorkers(), runtime.NumCPU())
	}
	if !cfg.GetFailFast() {
		t.Error("GetFailFast() should default to true")
	}
	if cfg.GetExistAttempts() != 10 || cfg.GetStableAttempts() != 10 {
		t.Errorf("attempts = %d/%d, want 10/10", cfg.GetExistAttempts(), cfg.GetStableAttempts())
	}
	if cfg.GetExistInterval() != time.Second || cfg.GetStableInterval() != time.Second {
		t.Errorf("intervals = %v/%v, want 1s/1s", cfg.GetExistInterval(), cfg.GetStableInterval())
	}
	if cfg.GetJournalPath() != "" {
		t.Errorf("journal should be disabled by default, got %q", cfg.GetJournalPath())
	}
	if cfg.GetToolPath() != "perceptron/obj-intel64/main.so" {
		t.Errorf("GetToolPath() = %q", cfg.GetToolPath())
	}
}

func TestGetAxesDoesNotAliasDefaults(t *testing.T) {
	axes := EmptySweepConfig().GetAxes()
	axes.GHRLength[0] = 999
	if defaultAxes.GHRLength[0] != 8 {
		t.Fatal("mutating returned axes changed the defaults")
	}
}

func TestMissingPinRoot(t *testing.T) {
	t.Setenv(PinRootEnv, "")
	_, err := EmptySweepConfig().GetExecutable()
	if !errors.Is(err, predictor.ErrConfig) {
		t.Errorf("expected ErrConfig, got %v", err)
	}

	cfg := &SweepConfig{PinRoot: ptrString("/tools/pin-3.28")}
	exe, err := cfg.GetExecutable()
	if err != nil || exe != "/tools/pin-3.28/pin" {
		t.Errorf("GetExecutable() = %q, %v", exe, err)
	}
}

func TestLoadPartialConfig(t *testing.T) {
	path := writeConfig(t, "sweep.json", `{
  "baseline": {"ghr_length": 64},
  "axes": {"hashing_scheme": [1, 3]},
  "workers": 2,
  "fail_fast": false,
  "stable_interval": "250ms",
  "journal_path": "results/journal.db"
}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if got := cfg.GetBaseline(); got.GHRLength != 64 || got.NumPerceptrons != 1024 {
		t.Errorf("GetBaseline() = %s", got)
	}
	axes := cfg.GetAxes()
	if diff := cmp.Diff([]int{1, 3}, axes.HashingScheme); diff != "" {
		t.Errorf("hashing axis mismatch (-want +got):\n%s", diff)
	}
	if len(axes.NumPerceptrons) != 11 {
		t.Errorf("omitted axis should keep defaults, got %v", axes.NumPerceptrons)
	}
	if cfg.GetWorkers() != 2 {
		t.Errorf("GetWorkers() = %d, want 2", cfg.GetWorkers())
	}
	if cfg.GetFailFast() {
		t.Error("GetFailFast() = true, want false")
	}
	if cfg.GetStableInterval() != 250*time.Millisecond {
		t.Errorf("GetStableInterval() = %v", cfg.GetStableInterval())
	}
	if cfg.GetExistInterval() != time.Second {
		t.Errorf("GetExistInterval() = %v", cfg.GetExistInterval())
	}
	if cfg.GetJournalPath() != "results/journal.db" {
		t.Errorf("GetJournalPath() = %q", cfg.GetJournalPath())
	}
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
	}{
		{"wrong extension", "sweep.yaml", `{}`},
		{"bad json", "sweep.json", `{"workers": }`},
		{"unknown field", "sweep.json", `{"num_threads": 4}`},
		{"zero workers", "sweep.json", `{"workers": 0}`},
		{"empty axis", "sweep.json", `{"axes": {"ghr_length": []}}`},
		{"negative candidate", "sweep.json", `{"axes": {"lht_size": [256, -1]}}`},
		{"hashing out of range", "sweep.json", `{"axes": {"hashing_scheme": [1, 10]}}`},
		{"baseline hashing out of range", "sweep.json", `{"baseline": {"hashing_scheme": 0}}`},
		{"zero baseline", "sweep.json", `{"baseline": {"lhr_length": 0}}`},
		{"zero attempts", "sweep.json", `{"exist_attempts": 0}`},
		{"bad interval", "sweep.json", `{"stable_interval": "soon"}`},
		{"negative interval", "sweep.json", `{"exist_interval": "-1s"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.file, tt.body))
			if !errors.Is(err, predictor.ErrConfig) {
				t.Errorf("expected ErrConfig, got %v", err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadTooLarge(t *testing.T) {
	big := make([]byte, 1024*1024+1)
	for i := range big {
		big[i] = ' '
	}
	copy(big, "{}")
	path := filepath.Join(t.TempDir(), "big.json")
	if err := os.WriteFile(path, big, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); !errors.Is(err, predictor.ErrConfig) {
		t.Errorf("expected ErrConfig for oversized file, got %v", err)
	}
}

func TestDefaultsFileMatchesBuiltins(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	if cfg.GetBaseline() != defaultBaseline {
		t.Errorf("defaults file baseline %s differs from built-in %s", cfg.GetBaseline(), defaultBaseline)
	}
	if diff := cmp.Diff(defaultAxes, cfg.GetAxes()); diff != "" {
		t.Errorf("defaults file axes differ (-builtin +file):\n%s", diff)
	}
	if !cfg.GetFailFast() {
		t.Error("defaults file should keep fail_fast on")
	}
}

func TestLedgerPath(t *testing.T) {
	cfg := &SweepConfig{ResultsDir: ptrString("/data/results"), FailFast: ptrBool(true), Workers: ptrInt(1)}
	tests := map[string]string{
		"/spec/bin/gcc_r":    "/data/results/gcc_r_perceptron_results.csv",
		"bench.exe":          "/data/results/bench_perceptron_results.csv",
		"./build/mcf.x86_64": "/data/results/mcf_perceptron_results.csv",
	}
	for bench, want := range tests {
		if got := cfg.LedgerPath(bench); got != want {
			t.Errorf("LedgerPath(%q) = %q, want %q", bench, got, want)
		}
	}
}
