package store

import (
	"database/sql"
	"fmt"
)

// Message is one conversation turn in a session.
type Message struct {
	ID        int64  `json:"id"`
	SessionID string `json:"session_id"`
	Role      string `json:"role"` // "user" or "assistant"
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

// SessionInfo is a compact session listing with message count.
type SessionInfo struct {
	ID           string `json:"id"`
	AgentKey     string `json:"agent_key"`
	MessageCount int    `json:"message_count"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// AppendMessage records a conversation turn, creating the session row on
// first use.
func (s *Store) AppendMessage(sessionID, agentKey, role, content string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		INSERT INTO sessions (id, agent_key) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET updated_at = datetime('now')`,
		sessionID, agentKey)
	if err != nil {
		return fmt.Errorf("store: upsert session: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO session_messages (session_id, role, content) VALUES (?, ?, ?)`,
		sessionID, role, content)
	if err != nil {
		return fmt.Errorf("store: insert message: %w", err)
	}
	return tx.Commit()
}

// History returns the most recent limit messages of a session in
// chronological order.
func (s *Store) History(sessionID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(`
		SELECT id, session_id, role, content, created_at FROM (
			SELECT id, session_id, role, content, created_at
			FROM session_messages
			WHERE session_id = ?
			ORDER BY id DESC
			LIMIT ?
		) ORDER BY id ASC`,
		sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query history: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// Sessions lists recent sessions, newest first.
func (s *Store) Sessions(limit int) ([]SessionInfo, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT s.id, s.agent_key, COUNT(m.id), s.created_at, s.updated_at
		FROM sessions s
		LEFT JOIN session_messages m ON m.session_id = s.id
		GROUP BY s.id
		ORDER BY s.updated_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionInfo
	for rows.Next() {
		var si SessionInfo
		if err := rows.Scan(&si.ID, &si.AgentKey, &si.MessageCount, &si.CreatedAt, &si.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan session: %w", err)
		}
		out = append(out, si)
	}
	return out, rows.Err()
}

// GetSession returns the session row, or sql.ErrNoRows when unknown.
func (s *Store) GetSession(id string) (*SessionInfo, error) {
	var si SessionInfo
	err := s.db.QueryRow(`
		SELECT s.id, s.agent_key, COUNT(m.id), s.created_at, s.updated_at
		FROM sessions s
		LEFT JOIN session_messages m ON m.session_id = s.id
		WHERE s.id = ?
		GROUP BY s.id`, id).
		Scan(&si.ID, &si.AgentKey, &si.MessageCount, &si.CreatedAt, &si.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("store: get session: %w", err)
	}
	return &si, nil
}
