// Package history records tool invocations in a local sqlite database so
// flaky integration runs can be reconstructed after the fact.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	_ "modernc.org/sqlite" // sqlite driver
)

// tailLimit caps how much captured output is kept per stream.
const tailLimit = 8 * 1024

// Entry is one recorded invocation of the tool under test.
type Entry struct {
	ID         string
	Args       []string
	ExitCode   int
	Schema     string
	StartedAt  time.Time
	FinishedAt time.Time
	Stdout     string
	Stderr     string
}

// Duration returns how long the invocation ran.
func (e Entry) Duration() time.Duration {
	return e.FinishedAt.Sub(e.StartedAt)
}

// Store is a sqlite-backed invocation log.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS invocations (
			id TEXT PRIMARY KEY,
			args TEXT NOT NULL,
			exit_code INTEGER NOT NULL,
			schema TEXT NOT NULL DEFAULT '',
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL,
			stdout TEXT NOT NULL DEFAULT '',
			stderr TEXT NOT NULL DEFAULT ''
		)
	`)
	if err != nil {
		return fmt.Errorf("create invocations table: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record inserts one invocation. Output streams are truncated to a tail so
// a chatty tool cannot bloat the log.
func (s *Store) Record(ctx context.Context, e Entry) error {
	args, err := json.Marshal(e.Args)
	if err != nil {
		return fmt.Errorf("marshal args: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO invocations (id, args, exit_code, schema, started_at, finished_at, stdout, stderr)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID, string(args), e.ExitCode, e.Schema,
		e.StartedAt.UnixMilli(), e.FinishedAt.UnixMilli(),
		tail(e.Stdout), tail(e.Stderr),
	)
	if err != nil {
		return fmt.Errorf("record invocation %s: %w", e.ID, err)
	}
	return nil
}

// Recent returns up to n invocations, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, args, exit_code, schema, started_at, finished_at, stdout, stderr
		FROM invocations
		ORDER BY started_at DESC, id
		LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("query invocations: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                    Entry
			args                 string
			startedMS, finishedMS int64
		)
		if err := rows.Scan(&e.ID, &args, &e.ExitCode, &e.Schema, &startedMS, &finishedMS, &e.Stdout, &e.Stderr); err != nil {
			return nil, fmt.Errorf("scan invocation: %w", err)
		}
		if err := json.Unmarshal([]byte(args), &e.Args); err != nil {
			return nil, fmt.Errorf("unmarshal args for %s: %w", e.ID, err)
		}
		e.StartedAt = time.UnixMilli(startedMS)
		e.FinishedAt = time.UnixMilli(finishedMS)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invocations: %w", err)
	}
	return entries, nil
}

// Prune deletes invocations that started before the cutoff and returns how
// many were removed.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM invocations WHERE started_at < ?", before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune invocations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune row count: %w", err)
	}
	return n, nil
}

func tail(s string) string {
	if len(s) <= tailLimit {
		return s
	}
	s = s[len(s)-tailLimit:]
	// The cut can land inside a multi-byte rune; skip forward to the next
	// rune start so the stored tail stays valid UTF-8.
	for i := 0; i < len(s); i++ {
		if utf8.RuneStart(s[i]) {
			return s[i:]
		}
	}
	return ""
}
