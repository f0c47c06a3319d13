// Package store implements glyx persistence on SQLite: conversation
// sessions, dispatched agent tasks, the activity-feed events table, saved
// memories and custom agent definitions.
//
// One database file holds everything; Open runs idempotent migrations on
// startup. WAL mode keeps the MCP server and the local executor from
// blocking each other.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// Store is the SQLite-backed persistence layer.
type Store struct {
	db *sql.DB
}

// Open creates the parent directory if needed, opens the database with
// WAL mode and runs migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}

	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("store: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("store: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			id         TEXT PRIMARY KEY,
			agent_key  TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE TABLE IF NOT EXISTS session_messages (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			role       TEXT NOT NULL,
			content    TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			FOREIGN KEY (session_id) REFERENCES sessions(id)
		);
		CREATE INDEX IF NOT EXISTS idx_messages_session
			ON session_messages(session_id, id);

		CREATE TABLE IF NOT EXISTS agent_tasks (
			id          TEXT PRIMARY KEY,
			device_id   TEXT NOT NULL DEFAULT '',
			agent_type  TEXT NOT NULL,
			task_type   TEXT NOT NULL DEFAULT 'prompt',
			payload     TEXT NOT NULL DEFAULT '{}',
			status      TEXT NOT NULL DEFAULT 'pending',
			exit_code   INTEGER,
			output      TEXT NOT NULL DEFAULT '',
			error       TEXT NOT NULL DEFAULT '',
			user_id     TEXT NOT NULL DEFAULT '',
			device_name TEXT NOT NULL DEFAULT '',
			created_at  TEXT NOT NULL DEFAULT (datetime('now')),
			started_at  TEXT,
			finished_at TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_tasks_status
			ON agent_tasks(status, device_id, created_at);

		CREATE TABLE IF NOT EXISTS events (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			orchestration_id TEXT NOT NULL,
			type             TEXT NOT NULL,
			actor            TEXT NOT NULL DEFAULT 'system',
			content          TEXT NOT NULL,
			metadata         TEXT,
			created_at       TEXT NOT NULL DEFAULT (datetime('now'))
		);
		CREATE INDEX IF NOT EXISTS idx_events_orchestration
			ON events(orchestration_id, id);

		CREATE TABLE IF NOT EXISTS memories (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id    TEXT NOT NULL DEFAULT '',
			content    TEXT NOT NULL,
			metadata   TEXT,
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE TABLE IF NOT EXISTS agents (
			agent_key  TEXT PRIMARY KEY,
			config     TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}
