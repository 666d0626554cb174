// Package store provides a SQLite-backed history of evaluation runs so
// retrieval quality can be compared across embedding models, collections and
// ingest runs. Each run keeps its overall summary and its per-label stats.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/54b3r/forumrag-go/internal/eval"
)

// Run is one persisted evaluation run.
type Run struct {
	// ID is assigned by Save.
	ID int64
	// CreatedAt is when the run was saved.
	CreatedAt time.Time
	// K is the retrieval depth the run used.
	K int
	// Embedder identifies the embedding backend and model, e.g. "ollama/nomic-embed-text".
	Embedder string
	// Collection is the vector store collection that was queried.
	Collection string
	// Summary holds the overall and per-label results.
	Summary eval.Summary
}

// HistoryStore persists and retrieves evaluation runs. Implementations must
// be safe for concurrent use.
type HistoryStore interface {
	// Save persists run and returns its ID.
	Save(ctx context.Context, run Run) (int64, error)
	// Recent returns the most recent n runs, newest first.
	Recent(ctx context.Context, n int) ([]Run, error)
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a HistoryStore backed by a local SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// DefaultDBPath returns the default path for the evaluation history database.
// It resolves to ~/.forumrag/evals.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".forumrag")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "evals.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// A single connection avoids SQLITE_BUSY and keeps ":memory:" one database.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS eval_runs (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    created_at   INTEGER NOT NULL,  -- Unix timestamp (seconds)
    k            INTEGER NOT NULL,
    embedder     TEXT    NOT NULL,
    collection   TEXT    NOT NULL,
    queries      INTEGER NOT NULL,
    mean_recall  REAL    NOT NULL,
    hit_rate     REAL    NOT NULL
);
CREATE TABLE IF NOT EXISTS eval_labels (
    run_id       INTEGER NOT NULL REFERENCES eval_runs(id) ON DELETE CASCADE,
    position     INTEGER NOT NULL,
    label        TEXT    NOT NULL,
    queries      INTEGER NOT NULL,
    mean_recall  REAL    NOT NULL,
    hit_rate     REAL    NOT NULL,
    PRIMARY KEY (run_id, position)
);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Save persists run with its per-label stats in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, run Run) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: save: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	const insertRun = `INSERT INTO eval_runs
    (created_at, k, embedder, collection, queries, mean_recall, hit_rate)
    VALUES (?, ?, ?, ?, ?, ?, ?)`
	sum := run.Summary
	res, err := tx.ExecContext(ctx, insertRun, s.now().Unix(), run.K, run.Embedder, run.Collection,
		sum.Queries, sum.MeanRecall, sum.HitRate)
	if err != nil {
		return 0, fmt.Errorf("store: save run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: save run id: %w", err)
	}

	const insertLabel = `INSERT INTO eval_labels
    (run_id, position, label, queries, mean_recall, hit_rate)
    VALUES (?, ?, ?, ?, ?, ?)`
	for i, ls := range sum.PerLabel {
		if _, err := tx.ExecContext(ctx, insertLabel, id, i, ls.Label, ls.Count, ls.MeanRecall, ls.HitRate); err != nil {
			return 0, fmt.Errorf("store: save label %q: %w", ls.Label, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: save: commit: %w", err)
	}
	return id, nil
}

// Recent returns the most recent n runs, newest first, each with its
// per-label stats in their original order.
func (s *SQLiteStore) Recent(ctx context.Context, n int) ([]Run, error) {
	const q = `
SELECT id, created_at, k, embedder, collection, queries, mean_recall, hit_rate
FROM   eval_runs
ORDER  BY created_at DESC, id DESC
LIMIT  ?`

	rows, err := s.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	runs := []Run{}
	for rows.Next() {
		var r Run
		var ts int64
		if err := rows.Scan(&r.ID, &ts, &r.K, &r.Embedder, &r.Collection,
			&r.Summary.Queries, &r.Summary.MeanRecall, &r.Summary.HitRate); err != nil {
			rows.Close()
			return nil, fmt.Errorf("store: recent scan: %w", err)
		}
		r.CreatedAt = time.Unix(ts, 0)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("store: recent rows: %w", err)
	}
	rows.Close()

	// The single pooled connection is free again once rows is closed.
	for i := range runs {
		labels, err := s.labels(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Summary.PerLabel = labels
	}
	return runs, nil
}

func (s *SQLiteStore) labels(ctx context.Context, runID int64) ([]eval.LabelStats, error) {
	const q = `
SELECT label, queries, mean_recall, hit_rate
FROM   eval_labels
WHERE  run_id = ?
ORDER  BY position`

	rows, err := s.db.QueryContext(ctx, q, runID)
	if err != nil {
		return nil, fmt.Errorf("store: labels: %w", err)
	}
	defer rows.Close()

	out := []eval.LabelStats{}
	for rows.Next() {
		var ls eval.LabelStats
		if err := rows.Scan(&ls.Label, &ls.Count, &ls.MeanRecall, &ls.HitRate); err != nil {
			return nil, fmt.Errorf("store: labels scan: %w", err)
		}
		out = append(out, ls)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: labels rows: %w", err)
	}
	return out, nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
