// Package store keeps a history of exported colony counts in SQLite so
// counts can be compared across export runs.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ironsheep/colony-counter-mcp/internal/logger"
	"github.com/ironsheep/colony-counter-mcp/internal/session"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	created_at INTEGER NOT NULL,
	sessions   INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS counts (
	run_id     TEXT NOT NULL REFERENCES runs(id),
	seq        INTEGER NOT NULL,
	source     TEXT NOT NULL,
	day        INTEGER,
	sample     INTEGER,
	dilution   TEXT,
	blob_count INTEGER NOT NULL,
	PRIMARY KEY (run_id, seq)
);
CREATE INDEX IF NOT EXISTS counts_sample ON counts(day, sample);
`

// Store is a SQLite-backed count history.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Run is one recorded export.
type Run struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Sessions  int       `json:"sessions"`
}

// SaveRun records the counts of snaps as a new run.
func (s *Store) SaveRun(ctx context.Context, snaps []session.Snapshot) (Run, error) {
	run := Run{ID: uuid.NewString(), CreatedAt: time.Now().UTC(), Sessions: len(snaps)}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO runs (id, created_at, sessions) VALUES (?, ?, ?)",
		run.ID, run.CreatedAt.UnixNano(), run.Sessions,
	); err != nil {
		return Run{}, fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO counts (run_id, seq, source, day, sample, dilution, blob_count) VALUES (?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return Run{}, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, snap := range snaps {
		if _, err := stmt.ExecContext(ctx,
			run.ID, i, snap.Source, nullInt(snap.Day), nullInt(snap.Sample), snap.Dilution.String(), snap.BlobCount,
		); err != nil {
			return Run{}, fmt.Errorf("failed to insert count for %s: %w", snap.Source, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("failed to commit run: %w", err)
	}
	logger.WithField("run", run.ID).WithField("sessions", run.Sessions).Info("Counts saved")
	return run, nil
}

// Runs lists recorded runs, oldest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, created_at, sessions FROM runs ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r     Run
			nanos int64
		)
		if err := rows.Scan(&r.ID, &nanos, &r.Sessions); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.CreatedAt = time.Unix(0, nanos).UTC()
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// SampleTotal aggregates the recorded counts of one (day, sample).
type SampleTotal struct {
	Day    *int    `json:"day,omitempty"`
	Sample int     `json:"sample"`
	Latest int     `json:"latest"`
	Mean   float64 `json:"mean"`
	Runs   int     `json:"runs"`
}

const sampleTotalsQuery = `
SELECT c.day, c.sample, COUNT(DISTINCT c.run_id), AVG(c.blob_count),
	(SELECT c2.blob_count FROM counts c2 JOIN runs r2 ON r2.id = c2.run_id
	 WHERE c2.sample = c.sample AND c2.day IS c.day
	 ORDER BY r2.seq DESC, c2.seq DESC LIMIT 1)
FROM counts c
WHERE c.sample IS NOT NULL
GROUP BY c.day, c.sample
ORDER BY c.day, c.sample`

// SampleTotals returns, per (day, sample), the latest count, the mean count
// and the number of runs that recorded it. Snapshots without a sample
// number are not aggregated.
func (s *Store) SampleTotals(ctx context.Context) ([]SampleTotal, error) {
	rows, err := s.db.QueryContext(ctx, sampleTotalsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query totals: %w", err)
	}
	defer rows.Close()

	totals := []SampleTotal{}
	for rows.Next() {
		var (
			t   SampleTotal
			day sql.NullInt64
		)
		if err := rows.Scan(&day, &t.Sample, &t.Runs, &t.Mean, &t.Latest); err != nil {
			return nil, fmt.Errorf("failed to scan total: %w", err)
		}
		if day.Valid {
			d := int(day.Int64)
			t.Day = &d
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}
