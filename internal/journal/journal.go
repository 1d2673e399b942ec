// Package journal keeps a durable record of how each proposal left the
// pipeline.
//
// outcomes.jsonl in the data directory is the source of truth and is
// rewritten atomically on every Record. SQLite is only the query engine: the
// database is dropped and rebuilt from the JSONL file on every Attach.
// Open loads the same file into an in-memory database for readers that run
// next to a live daemon.
package journal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/scribo/pkg/types"
)

// File names inside the data directory.
const (
	OutcomesFile = "outcomes.jsonl"
	DatabaseFile = "journal.db"
)

// Journal implements types.Recorder on top of JSONL and SQLite.
type Journal struct {
	mu       sync.RWMutex
	attached bool
	readOnly bool
	dataDir  string
	db       *sql.DB
	records  []json.RawMessage
}

var _ types.Recorder = (*Journal)(nil)

// New returns a detached Journal. Call Attach before use.
func New() *Journal {
	return &Journal{}
}

// Attach opens the journal in dataDir, creating the directory if needed,
// and loads outcomes.jsonl into a fresh database.
// Returns ErrAlreadyAttached if already attached.
func (j *Journal) Attach(dataDir string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.attached {
		return types.ErrAlreadyAttached
	}
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}

	dbPath := filepath.Join(dataDir, DatabaseFile)
	// The database is derived state; always start from a fresh schema.
	_ = os.Remove(dbPath)

	db, records, err := build(dbPath, dataDir)
	if err != nil {
		return err
	}
	j.db = db
	j.dataDir = dataDir
	j.records = records
	j.attached = true
	return nil
}

// Open loads the journal in dataDir into memory without touching anything
// on disk. Record on an opened journal returns ErrJournalReadOnly. A missing
// data directory reads as an empty journal.
func (j *Journal) Open(dataDir string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.attached {
		return types.ErrAlreadyAttached
	}
	if dataDir == "" {
		dataDir = "."
	}
	db, records, err := build(":memory:", dataDir)
	if err != nil {
		return err
	}
	j.db = db
	j.dataDir = dataDir
	j.records = records
	j.readOnly = true
	j.attached = true
	return nil
}

func build(dsn, dataDir string) (*sql.DB, []json.RawMessage, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, nil, err
	}
	// Every pooled connection to :memory: would see its own empty database.
	db.SetMaxOpenConns(1)
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("create schema: %w", err)
		}
	}

	records, err := readJSONL(filepath.Join(dataDir, OutcomesFile))
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("load JSONL: %w", err)
	}
	if err := loadOutcomes(db, records); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("load JSONL: %w", err)
	}
	return db, records, nil
}

// loadOutcomes inserts every valid record. Records that do not decode into a
// valid Outcome are kept in the file but not indexed.
func loadOutcomes(db *sql.DB, records []json.RawMessage) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	for _, raw := range records {
		var o types.Outcome
		if err := json.Unmarshal(raw, &o); err != nil {
			continue
		}
		if o.Validate() != nil {
			continue
		}
		if err := insert(tx, o); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insert(e execer, o types.Outcome) error {
	_, err := e.Exec(insertOutcome,
		o.OutcomeID,
		o.Proposal,
		o.Target,
		o.ProjectRoot,
		string(o.State),
		string(o.Fault),
		o.Reason,
		o.QuarantinePath,
		formatTime(o.StartedAt),
		formatTime(o.FinishedAt),
	)
	return err
}

// Detach closes the database. Detach is idempotent.
func (j *Journal) Detach() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.attached {
		return nil
	}
	if j.db != nil {
		if err := j.db.Close(); err != nil {
			return err
		}
		j.db = nil
	}
	j.attached = false
	j.readOnly = false
	j.records = nil
	return nil
}

// Record persists o. The JSONL file is written first; the outcome is
// durable once Record returns nil.
func (j *Journal) Record(o types.Outcome) error {
	if err := o.Validate(); err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.attached {
		return types.ErrJournalDetached
	}
	if j.readOnly {
		return types.ErrJournalReadOnly
	}

	raw, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("encode outcome: %w", err)
	}
	next := append(j.records[:len(j.records):len(j.records)], json.RawMessage(raw))
	if err := writeJSONL(filepath.Join(j.dataDir, OutcomesFile), next); err != nil {
		return fmt.Errorf("persist outcome: %w", err)
	}
	j.records = next

	if err := insert(j.db, o); err != nil {
		return fmt.Errorf("index outcome: %w", err)
	}
	return nil
}

// Recent returns up to limit outcomes, newest first. A limit of zero or
// less returns everything.
func (j *Journal) Recent(limit int) ([]types.Outcome, error) {
	return j.query(selectColumns+` ORDER BY finished_at DESC, rowid DESC LIMIT ?`, sqlLimit(limit))
}

// ByTarget returns up to limit outcomes for one target file, newest first.
func (j *Journal) ByTarget(target string, limit int) ([]types.Outcome, error) {
	return j.query(selectColumns+` WHERE target = ? ORDER BY finished_at DESC, rowid DESC LIMIT ?`, target, sqlLimit(limit))
}

// Summary counts recorded outcomes per final state.
func (j *Journal) Summary() (map[types.State]int, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if !j.attached {
		return nil, types.ErrJournalDetached
	}
	rows, err := j.db.Query(`SELECT state, COUNT(*) FROM outcomes GROUP BY state`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[types.State]int)
	for rows.Next() {
		var (
			state string
			n     int
		)
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		counts[types.State(state)] = n
	}
	return counts, rows.Err()
}

func (j *Journal) query(q string, args ...any) ([]types.Outcome, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if !j.attached {
		return nil, types.ErrJournalDetached
	}
	rows, err := j.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Outcome
	for rows.Next() {
		var (
			o                 types.Outcome
			state, fault      string
			started, finished string
		)
		if err := rows.Scan(&o.OutcomeID, &o.Proposal, &o.Target, &o.ProjectRoot,
			&state, &fault, &o.Reason, &o.QuarantinePath, &started, &finished); err != nil {
			return nil, err
		}
		o.State = types.State(state)
		o.Fault = types.FaultKind(fault)
		o.StartedAt = parseTime(started)
		o.FinishedAt = parseTime(finished)
		out = append(out, o)
	}
	return out, rows.Err()
}

func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
