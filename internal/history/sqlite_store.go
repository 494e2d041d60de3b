package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the history in a SQLite database, one row per task.
// Use ":memory:" for a throwaway database.
type SQLiteStore struct {
	db      *sql.DB
	records *recordMap
}

// NewSQLiteStore opens (creating if needed) the database at path and loads
// every record into memory.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive across calls.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, records: newRecordMap()}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	if err := s.loadAll(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS task_history (
		task_id TEXT PRIMARY KEY,
		completed_at INTEGER NOT NULL,
		file_deps TEXT NOT NULL,
		signature TEXT NOT NULL DEFAULT ''
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) loadAll() error {
	rows, err := s.db.Query("SELECT task_id, completed_at, file_deps, signature FROM task_history")
	if err != nil {
		return fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r        Record
			unixNano int64
			depsJSON string
		)
		if err := rows.Scan(&r.TaskID, &unixNano, &depsJSON, &r.Signature); err != nil {
			return fmt.Errorf("scan history row: %w", err)
		}
		r.CompletedAt = time.Unix(0, unixNano).UTC()
		if err := json.Unmarshal([]byte(depsJSON), &r.FileDeps); err != nil {
			return fmt.Errorf("decode file deps for %s: %w", r.TaskID, err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate history rows: %w", err)
	}
	s.records.load(records)
	return nil
}

func (s *SQLiteStore) Get(taskID string) (Record, bool) { return s.records.get(taskID) }
func (s *SQLiteStore) Put(rec Record)                   { s.records.put(rec) }
func (s *SQLiteStore) Delete(taskID string)             { s.records.del(taskID) }

// Flush writes pending changes in one transaction.
func (s *SQLiteStore) Flush() error {
	upserts, deletes := s.records.pending()
	if len(upserts) == 0 && len(deletes) == 0 {
		return nil
	}

	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin history transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, r := range upserts {
		deps, err := json.Marshal(r.FileDeps)
		if err != nil {
			return fmt.Errorf("encode file deps for %s: %w", r.TaskID, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO task_history (task_id, completed_at, file_deps, signature) VALUES (?, ?, ?, ?)
			ON CONFLICT(task_id) DO UPDATE SET
				completed_at = excluded.completed_at,
				file_deps = excluded.file_deps,
				signature = excluded.signature`,
			r.TaskID, r.CompletedAt.UnixNano(), string(deps), r.Signature,
		); err != nil {
			return fmt.Errorf("upsert history for %s: %w", r.TaskID, err)
		}
	}
	for _, id := range deletes {
		if _, err := tx.ExecContext(ctx, "DELETE FROM task_history WHERE task_id = ?", id); err != nil {
			return fmt.Errorf("delete history for %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit history: %w", err)
	}
	s.records.commit(upserts, deletes)
	return nil
}

// Close flushes and closes the database.
func (s *SQLiteStore) Close() error {
	flushErr := s.Flush()
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close history database: %w", err)
	}
	return flushErr
}
