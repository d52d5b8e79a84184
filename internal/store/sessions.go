package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"dlshell/internal/logging"
)

// ErrUnknownSession is returned when a session token has no record.
var ErrUnknownSession = errors.New("unknown session")

// Session is one recorded interactive session.
type Session struct {
	Token      string
	BaseDir    string
	StartedAt  time.Time
	Statements int
}

// Statement is one recorded submission.
type Statement struct {
	SessionToken string
	Seq          int
	Kind         Kind
	Text         string
	Outcome      Outcome
	DurationMS   int64
	CreatedAt    time.Time
}

// StartSession records a new session. Starting an existing token is a no-op.
func (h *History) StartSession(token, baseDir string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	_, err := h.db.Exec(
		`INSERT OR IGNORE INTO sessions (token, base_dir, started_at) VALUES (?, ?, ?)`,
		token, baseDir, time.Now().UTC(),
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("failed to start session %s: %v", token, err)
		return fmt.Errorf("failed to start session: %w", err)
	}
	logging.StoreDebug("session %s started (base=%s)", token, baseDir)
	return nil
}

// Record appends a statement to the session's history and returns its
// sequence number.
func (h *History) Record(token string, kind Kind, text string, outcome Outcome, took time.Duration) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	tx, err := h.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin: %w", err)
	}
	defer tx.Rollback()

	var seq int
	if err := tx.QueryRow(
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM statements WHERE session_token = ?`, token,
	).Scan(&seq); err != nil {
		return 0, fmt.Errorf("failed to allocate sequence: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO statements (session_token, seq, kind, text, outcome, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		token, seq, string(kind), text, string(outcome), took.Milliseconds(), time.Now().UTC(),
	); err != nil {
		return 0, fmt.Errorf("failed to record statement: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}

	logging.StoreDebug("recorded %s #%d for %s: %s", kind, seq, token, outcome)
	return seq, nil
}

// Statements returns the session's statements in submission order. A
// positive limit keeps only the most recent ones.
func (h *History) Statements(token string, limit int) ([]Statement, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Statements")
	defer timer.Stop()

	h.mu.RLock()
	defer h.mu.RUnlock()

	query := `SELECT session_token, seq, kind, text, outcome, duration_ms, created_at
		FROM statements WHERE session_token = ? ORDER BY seq DESC`
	args := []any{token}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := h.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query statements: %w", err)
	}
	defer rows.Close()

	var out []Statement
	for rows.Next() {
		var st Statement
		var kind, outcome string
		if err := rows.Scan(&st.SessionToken, &st.Seq, &kind, &st.Text, &outcome, &st.DurationMS, &st.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan statement: %w", err)
		}
		st.Kind = Kind(kind)
		st.Outcome = Outcome(outcome)
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Oldest first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Accepted returns the statement texts of a session that were accepted into
// its buffer, in submission order. Used to replay a session.
func (h *History) Accepted(token string) ([]string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var exists int
	err := h.db.QueryRow(`SELECT 1 FROM sessions WHERE token = ?`, token).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, token)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}

	rows, err := h.db.Query(
		`SELECT text FROM statements
		 WHERE session_token = ? AND outcome = ? AND kind IN (?, ?)
		 ORDER BY seq`,
		token, string(OutcomeAccepted), string(KindStatement), string(KindOutput),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query statements: %w", err)
	}
	defer rows.Close()

	var texts []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, err
		}
		texts = append(texts, text)
	}
	return texts, rows.Err()
}

// Sessions returns recorded sessions, most recent first.
func (h *History) Sessions(limit int) ([]Session, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}

	rows, err := h.db.Query(
		`SELECT s.token, s.base_dir, s.started_at, COUNT(st.id)
		 FROM sessions s LEFT JOIN statements st ON st.session_token = s.token
		 GROUP BY s.token
		 ORDER BY s.started_at DESC, s.rowid DESC
		 LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.Token, &s.BaseDir, &s.StartedAt, &s.Statements); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
