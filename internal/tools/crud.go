package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/glyxlabs/glyx/internal/agent"
	"github.com/glyxlabs/glyx/internal/store"
)

// CrudTool manages custom agent definitions stored alongside the
// built-in ones.
type CrudTool struct {
	store *store.Store
}

// NewCrudTool creates a CrudTool backed by st (nil disables persistence).
func NewCrudTool(st *store.Store) *CrudTool {
	return &CrudTool{store: st}
}

// ListDefinition returns the list_agents tool definition.
func (t *CrudTool) ListDefinition() mcp.Tool {
	return mcp.NewTool("list_agents",
		mcp.WithDescription("List all available agents: built-in configurations plus stored custom ones."),
	)
}

// HandleList processes a list_agents call.
func (t *CrudTool) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var sb strings.Builder
	sb.WriteString("## Built-in agents\n\n")
	for _, key := range agent.Keys() {
		cfg, err := agent.BuiltinConfig(key)
		if err != nil {
			continue
		}
		fmt.Fprintf(&sb, "- **%s** (`%s`)", key, cfg.Command)
		if cfg.Description != "" {
			sb.WriteString(": " + cfg.Description)
		}
		sb.WriteString("\n")
	}

	if t.store != nil {
		rows, err := t.store.ListAgents()
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to list custom agents: %v", err)), nil
		}
		if len(rows) > 0 {
			sb.WriteString("\n## Custom agents\n\n")
			for _, row := range rows {
				fmt.Fprintf(&sb, "- **%s** (created %s)\n", row.AgentKey, row.CreatedAt)
			}
		}
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// GetDefinition returns the get_agent tool definition.
func (t *CrudTool) GetDefinition() mcp.Tool {
	return mcp.NewTool("get_agent",
		mcp.WithDescription("Show the full configuration of one agent by key."),
		mcp.WithString("agent_key",
			mcp.Required(),
			mcp.Description("The agent key, e.g. claude or aider"),
		),
	)
}

// HandleGet processes a get_agent call. Custom definitions shadow
// built-ins of the same key.
func (t *CrudTool) HandleGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key := strings.TrimSpace(req.GetString("agent_key", ""))
	if key == "" {
		return mcp.NewToolResultError("'agent_key' is required"), nil
	}

	if t.store != nil {
		if row, err := t.store.GetAgent(key); err == nil {
			return mcp.NewToolResultText(fmt.Sprintf("custom agent %q:\n```json\n%s\n```", key, row.Config)), nil
		}
	}

	if k, ok := agent.Normalize(key); ok {
		cfg, err := agent.BuiltinConfig(k)
		if err == nil {
			data, _ := json.MarshalIndent(cfg, "", "  ")
			return mcp.NewToolResultText(fmt.Sprintf("built-in agent %q:\n```json\n%s\n```", k, data)), nil
		}
	}
	return mcp.NewToolResultError(fmt.Sprintf("unknown agent %q", key)), nil
}

// CreateDefinition returns the create_agent tool definition.
func (t *CrudTool) CreateDefinition() mcp.Tool {
	return mcp.NewTool("create_agent",
		mcp.WithDescription(
			"Register a custom agent from a JSON configuration. The config needs a command "+
				"and an args mapping; it is validated before saving and exposed as use_<key> "+
				"after the next server start."),
		mcp.WithString("agent_key",
			mcp.Required(),
			mcp.Description("Unique key for the new agent"),
		),
		mcp.WithString("config",
			mcp.Required(),
			mcp.Description(`Agent config JSON, e.g. {"command": "mytool", "args": {"prompt": {"flag": "-p", "required": true}}}`),
		),
	)
}

// HandleCreate processes a create_agent call.
func (t *CrudTool) HandleCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if t.store == nil {
		return mcp.NewToolResultError("persistence is unavailable; custom agents cannot be saved"), nil
	}
	key := strings.TrimSpace(req.GetString("agent_key", ""))
	if key == "" {
		return mcp.NewToolResultError("'agent_key' is required"), nil
	}
	if _, ok := agent.Normalize(key); ok {
		return mcp.NewToolResultError(fmt.Sprintf("%q is a built-in agent and cannot be overridden", key)), nil
	}

	configJSON := req.GetString("config", "")
	var body map[string]any
	if err := json.Unmarshal([]byte(configJSON), &body); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("config is not valid JSON: %v", err)), nil
	}
	body["agent_key"] = key
	if _, err := agent.ConfigFromMap(body); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid agent config: %v", err)), nil
	}

	normalized, err := json.Marshal(body)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode config: %v", err)), nil
	}
	if err := t.store.SaveAgent(key, string(normalized)); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to save agent: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"Agent %q saved. It will be available as use_%s after the server restarts.", key, key)), nil
}

// DeleteDefinition returns the delete_agent tool definition.
func (t *CrudTool) DeleteDefinition() mcp.Tool {
	return mcp.NewTool("delete_agent",
		mcp.WithDescription("Delete a stored custom agent. Built-in agents cannot be deleted."),
		mcp.WithString("agent_key",
			mcp.Required(),
			mcp.Description("Key of the custom agent to delete"),
		),
	)
}

// HandleDelete processes a delete_agent call.
func (t *CrudTool) HandleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if t.store == nil {
		return mcp.NewToolResultError("persistence is unavailable"), nil
	}
	key := strings.TrimSpace(req.GetString("agent_key", ""))
	if key == "" {
		return mcp.NewToolResultError("'agent_key' is required"), nil
	}
	if _, ok := agent.Normalize(key); ok {
		return mcp.NewToolResultError(fmt.Sprintf("%q is built-in and cannot be deleted", key)), nil
	}

	ok, err := t.store.DeleteAgent(key)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to delete agent: %v", err)), nil
	}
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("no custom agent named %q", key)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Agent %q deleted.", key)), nil
}
