// Package journal stores the append-only practice log. Two backends are
// available: a CSV file with the columns time,module,duration_sec,notes,rating
// and a SQLite database with the same fields.
package journal

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hammamikhairi/calmcoach/internal/domain"
	"github.com/hammamikhairi/calmcoach/internal/logger"
)

// Backend names accepted by Open.
const (
	BackendCSV    = "csv"
	BackendSQLite = "sqlite"
)

// DefaultFile is the journal file name used when none is configured.
const DefaultFile = "calmcoach_logs.csv"

// Header is the CSV column order.
var Header = []string{"time", "module", "duration_sec", "notes", "rating"}

// Store is a journal that holds an open resource.
type Store interface {
	domain.Journal
	Close() error
}

// Open returns the journal for the given backend.
func Open(backend, path string, log *logger.Logger) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendCSV:
		return OpenCSV(path, log)
	case BackendSQLite:
		return OpenSQLite(path, log)
	default:
		return nil, fmt.Errorf("unknown journal backend %q: %w", backend, domain.ErrValidation)
	}
}

// Export writes every entry as CSV, header first.
func Export(ctx context.Context, j domain.Journal, w io.Writer) error {
	entries, err := j.List(ctx)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, e := range entries {
		if err := cw.Write(toRecord(e)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ModuleStat aggregates entries for one module.
type ModuleStat struct {
	Module     string
	Count      int
	TotalSec   int
	AvgRating  float64
	LastActive time.Time
}

// Summarize groups entries by module, busiest first.
func Summarize(entries []domain.Entry) []ModuleStat {
	byModule := make(map[string]*ModuleStat)
	rated := make(map[string]int)
	ratingSum := make(map[string]int)

	for _, e := range entries {
		st, ok := byModule[e.Module]
		if !ok {
			st = &ModuleStat{Module: e.Module}
			byModule[e.Module] = st
		}
		st.Count++
		st.TotalSec += e.DurationSec
		if e.Time.After(st.LastActive) {
			st.LastActive = e.Time
		}
		if e.Rating > 0 {
			rated[e.Module]++
			ratingSum[e.Module] += e.Rating
		}
	}

	out := make([]ModuleStat, 0, len(byModule))
	for name, st := range byModule {
		if n := rated[name]; n > 0 {
			st.AvgRating = float64(ratingSum[name]) / float64(n)
		}
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Module < out[j].Module
	})
	return out
}

func toRecord(e domain.Entry) []string {
	rating := ""
	if e.Rating > 0 {
		rating = strconv.Itoa(e.Rating)
	}
	return []string{
		e.Time.Format(domain.TimeLayout),
		e.Module,
		strconv.Itoa(e.DurationSec),
		e.Notes,
		rating,
	}
}

func fromRecord(rec []string) (domain.Entry, error) {
	if len(rec) != len(Header) {
		return domain.Entry{}, fmt.Errorf("expected %d columns, got %d", len(Header), len(rec))
	}
	ts, err := time.ParseInLocation(domain.TimeLayout, rec[0], time.Local)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("time %q: %w", rec[0], err)
	}
	dur, err := strconv.Atoi(rec[2])
	if err != nil {
		return domain.Entry{}, fmt.Errorf("duration_sec %q: %w", rec[2], err)
	}
	rating := 0
	if rec[4] != "" {
		rating, err = strconv.Atoi(rec[4])
		if err != nil {
			return domain.Entry{}, fmt.Errorf("rating %q: %w", rec[4], err)
		}
	}
	return domain.Entry{
		Time:        ts,
		Module:      rec[1],
		DurationSec: dur,
		Notes:       rec[3],
		Rating:      rating,
	}, nil
}

// checkAppend rejects rows the log cannot hold. Engine-written rows may be
// shorter than the manual minimum, so only the basic shape is checked.
func checkAppend(e domain.Entry) error {
	if strings.TrimSpace(e.Module) == "" {
		return fmt.Errorf("module is required: %w", domain.ErrValidation)
	}
	if e.DurationSec < 0 {
		return fmt.Errorf("negative duration: %w", domain.ErrValidation)
	}
	if e.Rating < 0 || e.Rating > domain.MaxRating {
		return fmt.Errorf("rating %d: %w", e.Rating, domain.ErrValidation)
	}
	return nil
}
