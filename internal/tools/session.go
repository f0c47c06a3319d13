package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/glyxlabs/glyx/internal/store"
)

// SessionTool exposes stored conversation sessions.
type SessionTool struct {
	store *store.Store
}

// NewSessionTool creates a SessionTool backed by st.
func NewSessionTool(st *store.Store) *SessionTool {
	return &SessionTool{store: st}
}

// ListDefinition returns the list_sessions tool definition.
func (t *SessionTool) ListDefinition() mcp.Tool {
	return mcp.NewTool("list_sessions",
		mcp.WithDescription("List recent agent conversation sessions with message counts."),
		mcp.WithString("limit",
			mcp.Description("Maximum sessions to return (default 20)"),
		),
	)
}

// HandleList processes a list_sessions call.
func (t *SessionTool) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if t.store == nil {
		return mcp.NewToolResultError("persistence is unavailable; no sessions recorded"), nil
	}
	limit := intArg(req, "limit", 20)
	sessions, err := t.store.Sessions(limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list sessions: %v", err)), nil
	}
	if len(sessions) == 0 {
		return mcp.NewToolResultText("No sessions recorded yet."), nil
	}

	var sb strings.Builder
	sb.WriteString("## Sessions\n\n")
	for _, s := range sessions {
		fmt.Fprintf(&sb, "- `%s` — agent %s, %d messages, updated %s\n",
			s.ID, s.AgentKey, s.MessageCount, s.UpdatedAt)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// MessagesDefinition returns the get_session_messages tool definition.
func (t *SessionTool) MessagesDefinition() mcp.Tool {
	return mcp.NewTool("get_session_messages",
		mcp.WithDescription("Show the messages of one conversation session."),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("The session (conversation_id) to inspect"),
		),
		mcp.WithString("limit",
			mcp.Description("Maximum messages to return (default 50)"),
		),
	)
}

// HandleMessages processes a get_session_messages call.
func (t *SessionTool) HandleMessages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if t.store == nil {
		return mcp.NewToolResultError("persistence is unavailable; no sessions recorded"), nil
	}
	sessionID := strings.TrimSpace(req.GetString("session_id", ""))
	if sessionID == "" {
		return mcp.NewToolResultError("'session_id' is required"), nil
	}
	limit := intArg(req, "limit", 50)

	msgs, err := t.store.History(sessionID, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load session: %v", err)), nil
	}
	if len(msgs) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("Session %q has no messages.", sessionID)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Session %s\n\n", sessionID)
	for _, m := range msgs {
		fmt.Fprintf(&sb, "**%s** (%s):\n%s\n\n", m.Role, m.CreatedAt, truncate(m.Content, 2000))
	}
	return mcp.NewToolResultText(sb.String()), nil
}
