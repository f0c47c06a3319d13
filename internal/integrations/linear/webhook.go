package linear

import (
	"encoding/json"
	"fmt"
	"strings"
)

// WebhookEvent is a decoded Linear webhook delivery. Only agent session
// events carry a SessionID and Prompt.
type WebhookEvent struct {
	Type           string `json:"type"`
	Action         string `json:"action"`
	SessionID      string `json:"session_id,omitempty"`
	WorkspaceID    string `json:"workspace_id,omitempty"`
	OrganizationID string `json:"organization_id,omitempty"`
	IssueID        string `json:"issue_id,omitempty"`
	Prompt         string `json:"prompt,omitempty"`
}

// IsAgentSession reports whether this delivery asks an agent to work.
func (e *WebhookEvent) IsAgentSession() bool {
	return e.Type == "AgentSessionEvent" && (e.Action == "created" || e.Action == "prompted")
}

// ParseWebhook decodes a raw webhook body. Linear sends a mixed envelope
// where the event name lives under either _event or type depending on
// the delivery kind.
func ParseWebhook(body []byte) (*WebhookEvent, error) {
	var raw struct {
		Event          string `json:"_event"`
		Type           string `json:"type"`
		Action         string `json:"action"`
		WorkspaceID    string `json:"workspaceId"`
		OrganizationID string `json:"organizationId"`
		AgentSession   struct {
			ID    string `json:"id"`
			Issue struct {
				ID string `json:"id"`
			} `json:"issue"`
		} `json:"agentSession"`
		Data struct {
			SessionID   string `json:"sessionId"`
			Task        string `json:"task"`
			Description string `json:"description"`
			Issue       struct {
				ID string `json:"id"`
			} `json:"issue"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("linear: decode webhook: %w", err)
	}

	ev := &WebhookEvent{
		Type:           raw.Type,
		Action:         raw.Action,
		WorkspaceID:    raw.WorkspaceID,
		OrganizationID: raw.OrganizationID,
	}
	if ev.Type == "" {
		ev.Type = raw.Event
	}
	if ev.Type == "" {
		return nil, fmt.Errorf("linear: webhook has no event type")
	}

	switch {
	case raw.AgentSession.ID != "":
		ev.SessionID = raw.AgentSession.ID
		ev.IssueID = raw.AgentSession.Issue.ID
	case raw.Data.SessionID != "":
		ev.SessionID = raw.Data.SessionID
		ev.IssueID = raw.Data.Issue.ID
	}

	// The task prompt arrives as either data.task or data.description.
	ev.Prompt = strings.TrimSpace(raw.Data.Task)
	if ev.Prompt == "" {
		ev.Prompt = strings.TrimSpace(raw.Data.Description)
	}
	return ev, nil
}
