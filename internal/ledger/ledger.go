// Package ledger persists completed predictor runs as a CSV file that doubles
// as the sweep's only resume state. Rows are only ever appended; each append
// is a single locked write so concurrent workers (and concurrent driver
// processes) never interleave partial rows.
package ledger

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/banshee-data/perceptron-sweep/internal/monitoring"
	"github.com/banshee-data/perceptron-sweep/internal/predictor"
)

// Header is the first row of every ledger file.
var Header = []string{"Benchmark", "NUM_PERCEPTRONS", "GHR_LENGTH", "LHR_LENGTH", "LHT_SIZE", "HASHING_SCHEME", "Accuracy"}

var logf = monitoring.Prefixed("ledger")

// Ledger appends result rows to a single CSV file.
type Ledger struct {
	path string
}

// New returns a Ledger for path. No file is touched until Init or Append.
func New(path string) *Ledger {
	return &Ledger{path: path}
}

// Path returns the ledger file path.
func (l *Ledger) Path() string { return l.path }

// Init writes the header row if the ledger file does not exist yet. An
// existing file is left untouched.
func (l *Ledger) Init() error {
	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if errors.Is(err, fs.ErrExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", predictor.ErrLedgerWrite, l.path, err)
	}
	defer f.Close()

	if err := lockFile(f); err != nil {
		return fmt.Errorf("%w: lock %s: %v", predictor.ErrLedgerWrite, l.path, err)
	}
	defer unlockFile(f)

	// A concurrent Append may have won the race between create and lock.
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("%w: stat %s: %v", predictor.ErrLedgerWrite, l.path, err)
	}
	if info.Size() > 0 {
		return nil
	}
	if _, err := f.Write(encodeRows(Header)); err != nil {
		return fmt.Errorf("%w: write header to %s: %v", predictor.ErrLedgerWrite, l.path, err)
	}
	logf("created %s", l.path)
	return f.Sync()
}

// Append writes exactly one row for a completed run. The row (and the header,
// if the file is empty) is written with a single write while holding an
// exclusive lock on the ledger file, then synced. A record that Load would
// reject is refused before the file is touched.
func (l *Ledger) Append(benchmark string, params predictor.ParameterSet, accuracy float64) error {
	rec := predictor.Record{Benchmark: benchmark, Params: params, Accuracy: accuracy}
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("%w: refusing row for %s %s: %v", predictor.ErrLedgerWrite, benchmark, params, err)
	}
	row := FormatRow(rec)

	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", predictor.ErrLedgerWrite, l.path, err)
	}
	defer f.Close()

	if err := lockFile(f); err != nil {
		return fmt.Errorf("%w: lock %s: %v", predictor.ErrLedgerWrite, l.path, err)
	}
	defer unlockFile(f)

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("%w: stat %s: %v", predictor.ErrLedgerWrite, l.path, err)
	}
	var buf []byte
	if info.Size() == 0 {
		buf = encodeRows(Header, row)
	} else {
		buf = encodeRows(row)
	}

	n, err := f.Write(buf)
	if err != nil {
		return fmt.Errorf("%w: append to %s: %v", predictor.ErrLedgerWrite, l.path, err)
	}
	if n != len(buf) {
		return fmt.Errorf("%w: short write to %s: %d of %d bytes", predictor.ErrLedgerWrite, l.path, n, len(buf))
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("%w: sync %s: %v", predictor.ErrLedgerWrite, l.path, err)
	}
	return nil
}

// FormatRow renders a record as ledger columns.
func FormatRow(r predictor.Record) []string {
	row := make([]string, 0, len(Header))
	row = append(row, r.Benchmark)
	for _, v := range r.Params.Values() {
		row = append(row, strconv.Itoa(v))
	}
	return append(row, strconv.FormatFloat(r.Accuracy, 'f', -1, 64))
}

func encodeRows(rows ...[]string) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	// WriteAll flushes; writes into a bytes.Buffer cannot fail.
	_ = w.WriteAll(rows)
	return buf.Bytes()
}

// Load returns the set of ParameterSets already recorded in the ledger at
// path. A missing or empty file yields an empty set. Any malformed row is an
// ErrConfig naming the file and line.
func Load(path string) (predictor.Set, error) {
	records, err := ReadRecords(path)
	if err != nil {
		return nil, err
	}
	known := make(predictor.Set, len(records))
	for _, r := range records {
		known.Add(r.Params)
	}
	logf("loaded %d recorded configurations from %s", len(known), path)
	return known, nil
}

// ReadRecords parses every data row of the ledger at path.
func ReadRecords(path string) ([]predictor.Record, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f, path)
}

// Parse reads ledger rows from r. name is used only in error messages.
func Parse(r io.Reader, name string) ([]predictor.Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = false

	var records []predictor.Record
	for line := 1; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", predictor.ErrConfig, name, line, err)
		}
		if line == 1 {
			if !isHeader(row) {
				return nil, fmt.Errorf("%w: %s line 1: expected header %v, got %v", predictor.ErrConfig, name, Header, row)
			}
			continue
		}
		rec, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", predictor.ErrConfig, name, line, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func isHeader(row []string) bool {
	if len(row) != len(Header) {
		return false
	}
	for i := range row {
		if strings.TrimSpace(row[i]) != Header[i] {
			return false
		}
	}
	return true
}

func parseRow(row []string) (predictor.Record, error) {
	if len(row) != len(Header) {
		return predictor.Record{}, fmt.Errorf("expected %d columns, got %d", len(Header), len(row))
	}
	var vals [5]int
	for i := range vals {
		v, err := strconv.Atoi(strings.TrimSpace(row[i+1]))
		if err != nil {
			return predictor.Record{}, fmt.Errorf("column %s: %v", Header[i+1], err)
		}
		vals[i] = v
	}
	acc, err := strconv.ParseFloat(strings.TrimSpace(row[6]), 64)
	if err != nil {
		return predictor.Record{}, fmt.Errorf("column Accuracy: %v", err)
	}
	rec := predictor.Record{
		Benchmark: row[0],
		Params: predictor.ParameterSet{
			NumPerceptrons: vals[0],
			GHRLength:      vals[1],
			LHRLength:      vals[2],
			LHTSize:        vals[3],
			HashingScheme:  vals[4],
		},
		Accuracy: acc,
	}
	if err := rec.Validate(); err != nil {
		return predictor.Record{}, err
	}
	return rec, nil
}
