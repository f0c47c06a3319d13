package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/glyxlabs/glyx/internal/agent"
	"github.com/glyxlabs/glyx/internal/store"
)

// historyWindow is how many prior messages get prepended as context when
// a conversation_id is supplied.
const historyWindow = 5

// AgentTool exposes one coding agent CLI as an MCP tool named
// use_<key>. The store may be nil; conversation memory then degrades to
// single-shot calls.
type AgentTool struct {
	cfg     agent.Config
	store   *store.Store
	timeout time.Duration
	env     []string
}

// NewAgentTool wraps cfg as an MCP tool. timeout zero means the agent
// package default applies.
func NewAgentTool(cfg agent.Config, st *store.Store, timeout time.Duration, env []string) *AgentTool {
	return &AgentTool{cfg: cfg, store: st, timeout: timeout, env: env}
}

// Name returns the registered tool name.
func (t *AgentTool) Name() string {
	return "use_" + t.cfg.AgentKey
}

// Definition returns the MCP tool definition for registration.
func (t *AgentTool) Definition() mcp.Tool {
	desc := t.cfg.Description
	if desc == "" {
		desc = fmt.Sprintf("Run the %s coding agent on a prompt.", t.cfg.AgentKey)
	}
	opts := []mcp.ToolOption{
		mcp.WithDescription(desc +
			" Pass a conversation_id to continue a prior exchange with its recent history as context."),
		mcp.WithString("prompt",
			mcp.Required(),
			mcp.Description("The task or question for the agent"),
		),
		mcp.WithString("model",
			mcp.Description("Override the agent's default model"),
		),
		mcp.WithString("working_dir",
			mcp.Description("Directory to run the agent in (supports ~)"),
		),
		mcp.WithString("conversation_id",
			mcp.Description("Session ID for multi-turn conversations; omit to start a new one"),
		),
	}
	// Only surface file arguments for agents that declare them.
	if t.hasArg("files") {
		opts = append(opts, mcp.WithString("files",
			mcp.Description("Comma-separated files the agent may edit"),
		))
	}
	if t.hasArg("read_files") {
		opts = append(opts, mcp.WithString("read_files",
			mcp.Description("Comma-separated read-only reference files"),
		))
	}
	return mcp.NewTool(t.Name(), opts...)
}

func (t *AgentTool) hasArg(name string) bool {
	for _, spec := range t.cfg.Args {
		if spec.Name == name {
			return true
		}
	}
	return false
}

// Handle processes a use_<key> tool call.
func (t *AgentTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt := strings.TrimSpace(req.GetString("prompt", ""))
	if prompt == "" {
		return mcp.NewToolResultError("'prompt' is required"), nil
	}

	conversationID := strings.TrimSpace(req.GetString("conversation_id", ""))
	newSession := conversationID == ""
	if newSession {
		conversationID = uuid.NewString()
	}

	fullPrompt := prompt
	if t.store != nil && !newSession {
		if history, err := t.store.History(conversationID, historyWindow); err == nil && len(history) > 0 {
			fullPrompt = contextualize(history, prompt)
		}
	}

	task := agent.Task{"prompt": fullPrompt}
	if v := req.GetString("model", ""); v != "" {
		task["model"] = v
	}
	if v := req.GetString("working_dir", ""); v != "" {
		task["working_dir"] = v
	}
	if v := req.GetString("files", ""); v != "" {
		task["files"] = splitList(v)
	}
	if v := req.GetString("read_files", ""); v != "" {
		task["read_files"] = splitList(v)
	}

	a := agent.New(t.cfg)
	res, err := a.Execute(ctx, task, agent.Options{Timeout: t.timeout, Env: t.env})
	if err != nil {
		var cfgErr *agent.ConfigError
		switch {
		case errors.Is(err, agent.ErrTimeout):
			return mcp.NewToolResultError(fmt.Sprintf(
				"%s timed out after %s. Partial output:\n%s",
				t.cfg.AgentKey, res.Duration.Round(time.Second), truncate(res.Output(), maxToolOutput))), nil
		case errors.Is(err, agent.ErrNotFound):
			return mcp.NewToolResultError(fmt.Sprintf(
				"%s is not installed (binary %q not on PATH). Use check_agents to see what is available.",
				t.cfg.AgentKey, t.cfg.Command)), nil
		case errors.As(err, &cfgErr):
			return mcp.NewToolResultError(cfgErr.Error()), nil
		default:
			return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", t.cfg.AgentKey, err)), nil
		}
	}

	if t.store != nil {
		// Persist the exchange; failures only cost continuity.
		_ = t.store.AppendMessage(conversationID, t.cfg.AgentKey, "user", prompt)
		_ = t.store.AppendMessage(conversationID, t.cfg.AgentKey, "assistant", res.Output())
	}

	var sb strings.Builder
	sb.WriteString(truncate(res.Output(), maxToolOutput))
	if !res.Success() {
		fmt.Fprintf(&sb, "\n\n[exit code %d]", res.ExitCode)
	}
	fmt.Fprintf(&sb, "\n\nconversation_id: %s", conversationID)
	return mcp.NewToolResultText(sb.String()), nil
}

// contextualize prepends recent history to the current prompt.
func contextualize(history []store.Message, prompt string) string {
	var sb strings.Builder
	sb.WriteString("Previous conversation:\n")
	for _, m := range history {
		fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Content)
	}
	sb.WriteString("\nCurrent request: ")
	sb.WriteString(prompt)
	return sb.String()
}
