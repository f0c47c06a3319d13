package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/glyxlabs/glyx/internal/store"
)

// MemoryTool saves and searches free-form observations across sessions.
type MemoryTool struct {
	store *store.Store
}

// NewMemoryTool creates a MemoryTool backed by st.
func NewMemoryTool(st *store.Store) *MemoryTool {
	return &MemoryTool{store: st}
}

// SaveDefinition returns the save_memory tool definition.
func (t *MemoryTool) SaveDefinition() mcp.Tool {
	return mcp.NewTool("save_memory",
		mcp.WithDescription(
			"Save an observation for later recall: user preferences, project facts, "+
				"decisions. Memories persist across sessions and agents."),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("The fact to remember"),
		),
		mcp.WithString("user_id",
			mcp.Description("Scope the memory to a user (default: shared)"),
		),
	)
}

// HandleSave processes a save_memory call.
func (t *MemoryTool) HandleSave(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if t.store == nil {
		return mcp.NewToolResultError("persistence is unavailable; memories cannot be saved"), nil
	}
	content := strings.TrimSpace(req.GetString("content", ""))
	if content == "" {
		return mcp.NewToolResultError("'content' is required"), nil
	}
	userID := req.GetString("user_id", "")

	id, err := t.store.SaveMemory(userID, content, nil)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to save memory: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Memory saved (id %d).", id)), nil
}

// SearchDefinition returns the search_memory tool definition.
func (t *MemoryTool) SearchDefinition() mcp.Tool {
	return mcp.NewTool("search_memory",
		mcp.WithDescription("Search saved memories by substring. An empty query returns the most recent ones."),
		mcp.WithString("query",
			mcp.Description("Text to search for"),
		),
		mcp.WithString("user_id",
			mcp.Description("Restrict the search to one user's memories"),
		),
		mcp.WithString("limit",
			mcp.Description("Maximum results (default 10)"),
		),
	)
}

// HandleSearch processes a search_memory call.
func (t *MemoryTool) HandleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if t.store == nil {
		return mcp.NewToolResultError("persistence is unavailable; no memories recorded"), nil
	}
	query := req.GetString("query", "")
	userID := req.GetString("user_id", "")
	limit := intArg(req, "limit", 10)

	memories, err := t.store.SearchMemories(userID, query, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to search memories: %v", err)), nil
	}
	if len(memories) == 0 {
		return mcp.NewToolResultText("No matching memories."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Memories (%d)\n\n", len(memories))
	for _, m := range memories {
		fmt.Fprintf(&sb, "- [%d] %s (%s)\n", m.ID, m.Content, m.CreatedAt)
	}
	return mcp.NewToolResultText(sb.String()), nil
}
