package search

import (
	"context"
	"encoding/csv"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/turtacn/MolGenesis/pkg/errors"
)

// MoleculeRecord is one entry in the generated-molecule ledger: a valid,
// scored candidate together with the run context that produced it.
type MoleculeRecord struct {
	RunID      string
	Generation int
	SMILES     string
	Canonical  string
	Reward     float64
	Objectives map[string]float64
	Elapsed    time.Duration
	CreatedAt  time.Time
}

// Recorder persists MoleculeRecords.  Implementations must tolerate being
// called once per valid rollout at full search speed.
type Recorder interface {
	Record(ctx context.Context, rec MoleculeRecord) error
	Close() error
}

// ─────────────────────────────────────────────────────────────────────────────
// CSV recorder
// ─────────────────────────────────────────────────────────────────────────────

// CSVRecorder appends records to a CSV file in the run's output directory.
// It is the always-on ledger; the PostgreSQL archive is layered on top when
// enabled.
type CSVRecorder struct {
	f *os.File
	w *csv.Writer
}

// NewCSVRecorder creates (or truncates) the ledger file and writes the header.
func NewCSVRecorder(path string) (*CSVRecorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create molecule ledger").WithDetail(path)
	}
	w := csv.NewWriter(f)
	header := []string{"run_id", "generation", "smiles", "canonical", "reward", "objectives", "elapsed_seconds", "created_at"}
	if err := w.Write(header); err != nil {
		f.Close()
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to write ledger header")
	}
	w.Flush()
	return &CSVRecorder{f: f, w: w}, nil
}

// Record implements Recorder.
func (r *CSVRecorder) Record(_ context.Context, rec MoleculeRecord) error {
	row := []string{
		rec.RunID,
		strconv.Itoa(rec.Generation),
		rec.SMILES,
		rec.Canonical,
		strconv.FormatFloat(rec.Reward, 'f', 6, 64),
		formatObjectives(rec.Objectives),
		strconv.FormatFloat(rec.Elapsed.Seconds(), 'f', 3, 64),
		rec.CreatedAt.UTC().Format(time.RFC3339),
	}
	if err := r.w.Write(row); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to append ledger row")
	}
	r.w.Flush()
	return r.w.Error()
}

// Close implements Recorder.
func (r *CSVRecorder) Close() error {
	r.w.Flush()
	if err := r.w.Error(); err != nil {
		r.f.Close()
		return err
	}
	return r.f.Close()
}

// formatObjectives renders objective values as "name=value" pairs joined by
// ';', with names sorted for a stable column.
func formatObjectives(objectives map[string]float64) string {
	if len(objectives) == 0 {
		return ""
	}
	names := make([]string, 0, len(objectives))
	for name := range objectives {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + "=" + strconv.FormatFloat(objectives[name], 'f', 4, 64)
	}
	return strings.Join(parts, ";")
}

// ─────────────────────────────────────────────────────────────────────────────
// Composite and no-op recorders
// ─────────────────────────────────────────────────────────────────────────────

// MultiRecorder fans records out to several recorders.  A failure in one
// sink does not stop the others; the first error is returned.
type MultiRecorder struct {
	sinks []Recorder
}

// NewMultiRecorder combines recorders; nil entries are skipped.
func NewMultiRecorder(sinks ...Recorder) *MultiRecorder {
	m := &MultiRecorder{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Record implements Recorder.
func (m *MultiRecorder) Record(ctx context.Context, rec MoleculeRecord) error {
	var first error
	for _, s := range m.sinks {
		if err := s.Record(ctx, rec); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Close implements Recorder.
func (m *MultiRecorder) Close() error {
	var first error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// NopRecorder discards all records.
type NopRecorder struct{}

// Record implements Recorder.
func (NopRecorder) Record(context.Context, MoleculeRecord) error { return nil }

// Close implements Recorder.
func (NopRecorder) Close() error { return nil }
