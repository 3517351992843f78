package simulator

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/banshee-data/perceptron-sweep/internal/fsutil"
	"github.com/banshee-data/perceptron-sweep/internal/predictor"
)

const (
	accuracyPrefix       = "Accuracy:"
	branchesPrefix       = "Branches:"
	mispredictionsPrefix = "Mispredictions:"
	limitReachedLine     = "ERROR: Limit Reached!"
)

// Artifact is the parsed content of a simulator output file.
type Artifact struct {
	// Accuracy is the percentage from the first "Accuracy:" line.
	Accuracy float64
	// Branches and Mispredictions are zero when the lines are absent.
	Branches       uint64
	Mispredictions uint64
	// LimitReached is set when the simulator stopped on its instruction limit.
	LimitReached bool
}

// ParseAccuracy returns the value of the first line beginning with
// "Accuracy:", with any trailing '%' removed. Later matches are ignored.
func ParseAccuracy(r io.Reader) (float64, error) {
	a, err := ParseArtifact(r)
	if err != nil {
		return 0, err
	}
	return a.Accuracy, nil
}

// ParseArtifact scans a complete artifact. A missing or unparseable
// accuracy line is ErrMetricNotFound, as is a first accuracy value that is
// not a finite percentage.
func ParseArtifact(r io.Reader) (Artifact, error) {
	var (
		a     Artifact
		found bool
	)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, accuracyPrefix):
			if found {
				continue
			}
			v, err := parsePercent(strings.TrimPrefix(line, accuracyPrefix))
			if err != nil {
				return Artifact{}, fmt.Errorf("%w: malformed accuracy line %q: %v", predictor.ErrMetricNotFound, line, err)
			}
			a.Accuracy = v
			found = true
		case strings.HasPrefix(line, branchesPrefix):
			a.Branches = parseCount(strings.TrimPrefix(line, branchesPrefix))
		case strings.HasPrefix(line, mispredictionsPrefix):
			a.Mispredictions = parseCount(strings.TrimPrefix(line, mispredictionsPrefix))
		case strings.TrimSpace(line) == limitReachedLine:
			a.LimitReached = true
		}
	}
	if err := sc.Err(); err != nil {
		return Artifact{}, fmt.Errorf("read artifact: %w", err)
	}
	if !found {
		return Artifact{}, fmt.Errorf("%w: no %q line", predictor.ErrMetricNotFound, accuracyPrefix)
	}
	return a, nil
}

// ParseFile opens path on fsys and parses it as an artifact.
func ParseFile(fsys fsutil.FileSystem, path string) (Artifact, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: open %s: %v", predictor.ErrArtifactMissing, path, err)
	}
	defer f.Close()

	a, err := ParseArtifact(f)
	if err != nil {
		return Artifact{}, fmt.Errorf("%s: %w", path, err)
	}
	return a, nil
}

// parsePercent accepts only finite values in [0,100]. The simulator prints
// nan or -nan when it saw no branches.
func parsePercent(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if err := predictor.CheckAccuracy(v); err != nil {
		return 0, err
	}
	return v, nil
}

func parseCount(s string) uint64 {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return v
}
