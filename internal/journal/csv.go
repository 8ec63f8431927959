package journal

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/hammamikhairi/calmcoach/internal/domain"
	"github.com/hammamikhairi/calmcoach/internal/logger"
)

// Compile-time interface check.
var _ Store = (*CSVJournal)(nil)

// CSVJournal appends entries to a CSV file. Existing rows are never
// rewritten. Safe for concurrent use within one process.
type CSVJournal struct {
	mu   sync.Mutex
	path string
	log  *logger.Logger
}

// OpenCSV prepares the journal file, writing the header if the file is new
// or empty.
func OpenCSV(path string, log *logger.Logger) (*CSVJournal, error) {
	if path == "" {
		path = DefaultFile
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}

	j := &CSVJournal{path: path, log: log}
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist) || (err == nil && info.Size() == 0):
		if err := j.writeRecords(os.O_CREATE|os.O_WRONLY|os.O_TRUNC, Header); err != nil {
			return nil, fmt.Errorf("init journal: %w", err)
		}
		log.Debug("journal: created %s", path)
	case err != nil:
		return nil, fmt.Errorf("stat journal: %w", err)
	}
	return j, nil
}

// Path returns the journal file location.
func (j *CSVJournal) Path() string { return j.path }

// Append adds one row to the end of the file.
func (j *CSVJournal) Append(ctx context.Context, e domain.Entry) error {
	if err := checkAppend(e); err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.writeRecords(os.O_APPEND|os.O_WRONLY, toRecord(e)); err != nil {
		return fmt.Errorf("append journal: %w", err)
	}
	j.log.Debug("journal: %s %ds %q", e.Module, e.DurationSec, e.Notes)
	return nil
}

// List returns every entry in file order.
func (j *CSVJournal) List(ctx context.Context) ([]domain.Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.Open(j.path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var out []domain.Entry
	line := 0
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read journal: %w", err)
		}
		line++
		if line == 1 && len(rec) > 0 && rec[0] == Header[0] {
			continue
		}
		e, err := fromRecord(rec)
		if err != nil {
			j.log.Warn("journal: skipping line %d: %v", line, err)
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Close is a no-op; the file is opened per call.
func (j *CSVJournal) Close() error { return nil }

func (j *CSVJournal) writeRecords(flag int, records ...[]string) error {
	f, err := os.OpenFile(j.path, flag, 0o644)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
