package store

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Memory is a saved observation, searchable by substring.
type Memory struct {
	ID        int64          `json:"id"`
	UserID    string         `json:"user_id,omitempty"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt string         `json:"created_at"`
}

// SaveMemory stores one observation.
func (s *Store) SaveMemory(userID, content string, metadata map[string]any) (int64, error) {
	if strings.TrimSpace(content) == "" {
		return 0, fmt.Errorf("store: memory content is empty")
	}
	var meta any
	if metadata != nil {
		data, err := json.Marshal(metadata)
		if err != nil {
			return 0, fmt.Errorf("store: encode memory metadata: %w", err)
		}
		meta = string(data)
	}
	res, err := s.db.Exec(`
		INSERT INTO memories (user_id, content, metadata) VALUES (?, ?, ?)`,
		userID, content, meta)
	if err != nil {
		return 0, fmt.Errorf("store: save memory: %w", err)
	}
	return res.LastInsertId()
}

// SearchMemories returns memories whose content contains the query,
// newest first. An empty query returns the most recent memories.
func (s *Store) SearchMemories(userID, query string, limit int) ([]Memory, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(`
		SELECT id, user_id, content, metadata, created_at
		FROM memories
		WHERE (user_id = ? OR ? = '')
		  AND content LIKE '%' || ? || '%'
		ORDER BY id DESC
		LIMIT ?`,
		userID, userID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("store: search memories: %w", err)
	}
	defer rows.Close()

	var out []Memory
	for rows.Next() {
		var (
			m    Memory
			meta *string
		)
		if err := rows.Scan(&m.ID, &m.UserID, &m.Content, &meta, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan memory: %w", err)
		}
		if meta != nil && *meta != "" {
			if err := json.Unmarshal([]byte(*meta), &m.Metadata); err != nil {
				return nil, fmt.Errorf("store: decode memory metadata: %w", err)
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
