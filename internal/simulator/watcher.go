package simulator

import (
	"fmt"
	"time"

	"github.com/banshee-data/perceptron-sweep/internal/fsutil"
	"github.com/banshee-data/perceptron-sweep/internal/predictor"
	"github.com/banshee-data/perceptron-sweep/internal/timeutil"
)

// Default polling budgets: ten checks one second apart per phase.
const (
	DefaultAttempts = 10
	DefaultInterval = time.Second
)

// Phase is a bounded polling budget: at most Attempts checks with Interval
// between consecutive checks.
type Phase struct {
	Attempts int
	Interval time.Duration
}

func (p Phase) attempts() int {
	if p.Attempts < 1 {
		return 1
	}
	return p.Attempts
}

// Watcher decides when a simulator artifact is complete. The simulator gives
// no completion signal, so it waits for the file to appear and then for its
// size to stop changing between two consecutive samples. Stabilisation is a
// heuristic, not a guarantee.
type Watcher struct {
	FS     fsutil.FileSystem
	Clock  timeutil.Clock
	Exist  Phase
	Stable Phase
}

// NewWatcher returns a Watcher on the real filesystem and clock with the
// default budgets.
func NewWatcher() *Watcher {
	return &Watcher{
		FS:     fsutil.OSFileSystem{},
		Clock:  timeutil.RealClock{},
		Exist:  Phase{Attempts: DefaultAttempts, Interval: DefaultInterval},
		Stable: Phase{Attempts: DefaultAttempts, Interval: DefaultInterval},
	}
}

// Wait blocks the calling goroutine until path exists and has a stable size.
// It fails with ErrArtifactMissing or ErrArtifactUnstable when a phase
// exhausts its budget.
func (w *Watcher) Wait(path string) error {
	if err := w.waitExists(path); err != nil {
		return err
	}
	return w.waitStable(path)
}

func (w *Watcher) waitExists(path string) error {
	n := w.Exist.attempts()
	for i := 0; i < n; i++ {
		if w.FS.Exists(path) {
			return nil
		}
		if i < n-1 {
			w.Clock.Sleep(w.Exist.Interval)
		}
	}
	return fmt.Errorf("%w: %s not created after %d attempts", predictor.ErrArtifactMissing, path, n)
}

func (w *Watcher) waitStable(path string) error {
	n := w.Stable.attempts()
	prev := int64(-1)
	for i := 0; i < n; i++ {
		info, err := w.FS.Stat(path)
		if err != nil {
			return fmt.Errorf("%w: %s disappeared while waiting for it to settle: %v", predictor.ErrArtifactMissing, path, err)
		}
		size := info.Size()
		if size == prev {
			return nil
		}
		prev = size
		if i < n-1 {
			w.Clock.Sleep(w.Stable.Interval)
		}
	}
	return fmt.Errorf("%w: %s size did not settle after %d attempts (last %d bytes)", predictor.ErrArtifactUnstable, path, n, prev)
}
