package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/hammamikhairi/calmcoach/internal/domain"
	"github.com/hammamikhairi/calmcoach/internal/logger"
)

// Compile-time interface check.
var _ Store = (*SQLiteJournal)(nil)

// SQLiteJournal keeps entries in a single SQLite table.
type SQLiteJournal struct {
	db  *sql.DB
	log *logger.Logger
}

// OpenSQLite opens or creates the database at path and runs migrations.
func OpenSQLite(path string, log *logger.Logger) (*SQLiteJournal, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	j := &SQLiteJournal{db: db, log: log}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return j, nil
}

func (j *SQLiteJournal) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		time TEXT NOT NULL,
		module TEXT NOT NULL,
		duration_sec INTEGER NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		rating INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_module ON entries(module);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Append inserts one entry.
func (j *SQLiteJournal) Append(ctx context.Context, e domain.Entry) error {
	if err := checkAppend(e); err != nil {
		return err
	}

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO entries (id, time, module, duration_sec, notes, rating, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), e.Time.Format(domain.TimeLayout), e.Module, e.DurationSec,
		e.Notes, e.Rating, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	j.log.Debug("journal: %s %ds %q", e.Module, e.DurationSec, e.Notes)
	return nil
}

// List returns every entry in insertion order.
func (j *SQLiteJournal) List(ctx context.Context) ([]domain.Entry, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT time, module, duration_sec, notes, rating FROM entries ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var out []domain.Entry
	for rows.Next() {
		var (
			ts string
			e  domain.Entry
		)
		if err := rows.Scan(&ts, &e.Module, &e.DurationSec, &e.Notes, &e.Rating); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Time, err = time.ParseInLocation(domain.TimeLayout, ts, time.Local)
		if err != nil {
			j.log.Warn("journal: bad time %q: %v", ts, err)
			continue
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the database.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
