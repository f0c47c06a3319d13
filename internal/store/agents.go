package store

import (
	"database/sql"
	"fmt"
)

// AgentRow is a stored custom agent definition. Config holds the JSON
// definition body (the same shape internal/agent parses).
type AgentRow struct {
	AgentKey  string `json:"agent_key"`
	Config    string `json:"config"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// SaveAgent upserts a custom agent definition.
func (s *Store) SaveAgent(agentKey, configJSON string) error {
	_, err := s.db.Exec(`
		INSERT INTO agents (agent_key, config) VALUES (?, ?)
		ON CONFLICT(agent_key) DO UPDATE SET
			config = excluded.config,
			updated_at = datetime('now')`,
		agentKey, configJSON)
	if err != nil {
		return fmt.Errorf("store: save agent: %w", err)
	}
	return nil
}

// GetAgent returns a stored definition, or sql.ErrNoRows when unknown.
func (s *Store) GetAgent(agentKey string) (*AgentRow, error) {
	var row AgentRow
	err := s.db.QueryRow(`
		SELECT agent_key, config, created_at, updated_at
		FROM agents WHERE agent_key = ?`, agentKey).
		Scan(&row.AgentKey, &row.Config, &row.CreatedAt, &row.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("store: get agent: %w", err)
	}
	return &row, nil
}

// ListAgents returns all stored definitions sorted by key.
func (s *Store) ListAgents() ([]AgentRow, error) {
	rows, err := s.db.Query(`
		SELECT agent_key, config, created_at, updated_at
		FROM agents ORDER BY agent_key`)
	if err != nil {
		return nil, fmt.Errorf("store: list agents: %w", err)
	}
	defer rows.Close()

	var out []AgentRow
	for rows.Next() {
		var row AgentRow
		if err := rows.Scan(&row.AgentKey, &row.Config, &row.CreatedAt, &row.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan agent: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// DeleteAgent removes a stored definition. Returns false when the key
// was not present.
func (s *Store) DeleteAgent(agentKey string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM agents WHERE agent_key = ?`, agentKey)
	if err != nil {
		return false, fmt.Errorf("store: delete agent: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: delete agent: %w", err)
	}
	return n == 1, nil
}
