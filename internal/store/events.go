package store

import (
	"encoding/json"
	"fmt"
)

// Event is one activity-feed entry tied to an orchestration (a task or a
// webhook-initiated session).
type Event struct {
	ID              int64          `json:"id"`
	OrchestrationID string         `json:"orchestration_id"`
	Type            string         `json:"type"` // message, tool_call, thinking, error, deployment
	Actor           string         `json:"actor"`
	Content         string         `json:"content"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	CreatedAt       string         `json:"created_at"`
}

// AddEvent appends an event to the activity feed.
func (s *Store) AddEvent(e *Event) (int64, error) {
	if e.Actor == "" {
		e.Actor = "system"
	}
	var meta any
	if e.Metadata != nil {
		data, err := json.Marshal(e.Metadata)
		if err != nil {
			return 0, fmt.Errorf("store: encode event metadata: %w", err)
		}
		meta = string(data)
	}
	res, err := s.db.Exec(`
		INSERT INTO events (orchestration_id, type, actor, content, metadata)
		VALUES (?, ?, ?, ?, ?)`,
		e.OrchestrationID, e.Type, e.Actor, e.Content, meta)
	if err != nil {
		return 0, fmt.Errorf("store: add event: %w", err)
	}
	return res.LastInsertId()
}

// Events returns the feed for one orchestration in insertion order.
func (s *Store) Events(orchestrationID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`
		SELECT id, orchestration_id, type, actor, content, metadata, created_at
		FROM events
		WHERE orchestration_id = ?
		ORDER BY id ASC
		LIMIT ?`, orchestrationID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e    Event
			meta *string
		)
		if err := rows.Scan(&e.ID, &e.OrchestrationID, &e.Type, &e.Actor, &e.Content, &meta, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan event: %w", err)
		}
		if meta != nil && *meta != "" {
			if err := json.Unmarshal([]byte(*meta), &e.Metadata); err != nil {
				return nil, fmt.Errorf("store: decode event metadata: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
