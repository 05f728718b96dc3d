// Package report persists load run summaries in a SQLite database.
package report

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	ring_id     TEXT NOT NULL,
	source      TEXT NOT NULL,
	network     TEXT NOT NULL,
	addresses   TEXT NOT NULL,
	capacity    INTEGER NOT NULL,
	workers     INTEGER NOT NULL,
	requests    INTEGER NOT NULL,
	successes   INTEGER NOT NULL,
	failures    INTEGER NOT NULL,
	timeouts    INTEGER NOT NULL,
	resets      INTEGER NOT NULL,
	p50_us      INTEGER NOT NULL,
	p99_us      INTEGER NOT NULL,
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

// Run is the summary of one load run.
type Run struct {
	ID         int64
	RingID     string
	Source     string
	Network    string
	Addresses  string
	Capacity   int
	Workers    int
	Requests   int64
	Successes  int64
	Failures   int64
	Timeouts   uint64
	Resets     uint64
	P50        time.Duration
	P99        time.Duration
	StartedAt  time.Time
	FinishedAt time.Time
}

func (r *Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Store handles run persistence
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save inserts run and sets its ID
func (s *Store) Save(run *Run) error {
	result, err := s.db.Exec(`
		INSERT INTO runs
		(ring_id, source, network, addresses, capacity, workers, requests, successes, failures,
		 timeouts, resets, p50_us, p99_us, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.RingID, run.Source, run.Network, run.Addresses, run.Capacity, run.Workers, run.Requests,
		run.Successes, run.Failures, int64(run.Timeouts), int64(run.Resets),
		run.P50.Microseconds(), run.P99.Microseconds(), run.StartedAt.UTC(), run.FinishedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	run.ID = id
	return nil
}

// Recent returns up to limit runs of source, newest first. An empty source
// matches every run.
func (s *Store) Recent(source string, limit int) ([]*Run, error) {
	rows, err := s.db.Query(`
		SELECT id, ring_id, source, network, addresses, capacity, workers, requests, successes, failures,
		       timeouts, resets, p50_us, p99_us, started_at, finished_at
		FROM runs
		WHERE source = ? OR ? = ''
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, source, source, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run := &Run{}
		var timeouts, resets, p50, p99 int64
		err := rows.Scan(&run.ID, &run.RingID, &run.Source, &run.Network, &run.Addresses, &run.Capacity,
			&run.Workers, &run.Requests, &run.Successes, &run.Failures, &timeouts, &resets, &p50, &p99,
			&run.StartedAt, &run.FinishedAt)
		if err != nil {
			return nil, err
		}
		run.Timeouts = uint64(timeouts)
		run.Resets = uint64(resets)
		run.P50 = time.Duration(p50) * time.Microsecond
		run.P99 = time.Duration(p99) * time.Microsecond
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Delete removes a run
func (s *Store) Delete(id int64) error {
	_, err := s.db.Exec("DELETE FROM runs WHERE id = ?", id)
	return err
}
