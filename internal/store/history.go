// Package store persists session history (sessions and the statements
// submitted to them) in a local SQLite database.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"dlshell/internal/logging"

	_ "modernc.org/sqlite"
)

// Outcome classifies how a submitted statement was handled.
type Outcome string

const (
	OutcomeAccepted     Outcome = "accepted"
	OutcomeRejected     Outcome = "rejected"
	OutcomeUndeclared   Outcome = "undeclared"
	OutcomeEngineFailed Outcome = "engine_failed"
)

// Kind classifies a recorded statement.
type Kind string

const (
	KindStatement Kind = "statement"
	KindOutput    Kind = "output"
	KindCommand   Kind = "command"
)

// History is the SQLite-backed session history.
type History struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// Open creates or opens the history database at path.
func Open(path string) (*History, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps :memory: databases coherent.
	db.SetMaxOpenConns(1)

	h := &History{db: db, dbPath: path}
	if err := h.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	logging.Store("history database opened at %s", path)
	return h, nil
}

// Close closes the database connection.
func (h *History) Close() error {
	return h.db.Close()
}

// Path returns the database file path.
func (h *History) Path() string {
	return h.dbPath
}

func (h *History) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		base_dir TEXT NOT NULL,
		started_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS statements (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_token TEXT NOT NULL,
		seq INTEGER NOT NULL,
		kind TEXT NOT NULL,
		text TEXT NOT NULL,
		outcome TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		UNIQUE(session_token, seq),
		FOREIGN KEY (session_token) REFERENCES sessions(token)
	);
	CREATE INDEX IF NOT EXISTS idx_statements_session ON statements(session_token);
	`
	_, err := h.db.Exec(schema)
	return err
}
