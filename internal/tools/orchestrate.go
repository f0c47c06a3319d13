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

// OrchestrateTool runs one task through a sequence of agents, feeding
// each step's output into the next prompt. Strictly sequential; a failed
// step aborts the chain.
type OrchestrateTool struct {
	store   *store.Store
	timeout time.Duration
	env     []string
	model   string // model for the first (planning) step, optional
}

// NewOrchestrateTool creates an OrchestrateTool.
func NewOrchestrateTool(st *store.Store, timeout time.Duration, env []string, model string) *OrchestrateTool {
	return &OrchestrateTool{store: st, timeout: timeout, env: env, model: model}
}

// Definition returns the orchestrate tool definition.
func (t *OrchestrateTool) Definition() mcp.Tool {
	return mcp.NewTool("orchestrate",
		mcp.WithDescription(
			"Run a task through a sequence of agents, passing each step's output to "+
				"the next. Example agents: \"claude,aider\" first plans with claude, then "+
				"implements with aider. Steps run sequentially; progress is recorded as events."),
		mcp.WithString("task",
			mcp.Required(),
			mcp.Description("The task description"),
		),
		mcp.WithString("agents",
			mcp.Required(),
			mcp.Description("Comma-separated agent keys to run in order"),
		),
		mcp.WithString("working_dir",
			mcp.Description("Directory the agents run in"),
		),
	)
}

// Handle processes an orchestrate call.
func (t *OrchestrateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskDesc := strings.TrimSpace(req.GetString("task", ""))
	if taskDesc == "" {
		return mcp.NewToolResultError("'task' is required"), nil
	}
	keys := splitList(req.GetString("agents", ""))
	if len(keys) == 0 {
		return mcp.NewToolResultError("'agents' must name at least one agent"), nil
	}

	// Resolve all keys up front so a typo fails before any work starts.
	var chain []agent.Key
	for _, raw := range keys {
		k, ok := agent.Normalize(raw)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("unknown agent %q", raw)), nil
		}
		chain = append(chain, k)
	}

	orchestrationID := uuid.NewString()
	workingDir := req.GetString("working_dir", "")
	t.recordEvent(orchestrationID, "message", "system",
		fmt.Sprintf("orchestration started: %d step(s)", len(chain)), nil)

	var (
		sb       strings.Builder
		prevOut  string
		prevStep agent.Key
	)
	fmt.Fprintf(&sb, "## Orchestration %s\n\n", orchestrationID)

	for i, key := range chain {
		prompt := taskDesc
		if prevOut != "" {
			prompt = fmt.Sprintf("Task: %s\n\nOutput from the previous step (%s):\n%s\n\nContinue from there.",
				taskDesc, prevStep, truncate(prevOut, 8000))
		}

		task := agent.Task{"prompt": prompt}
		if workingDir != "" {
			task["working_dir"] = workingDir
		}
		if i == 0 && t.model != "" {
			task["model"] = t.model
		}

		a, err := agent.FromKey(key)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		res, err := a.Execute(ctx, task, agent.Options{Timeout: t.timeout, Env: t.env})
		if err != nil {
			msg := fmt.Sprintf("step %d (%s) failed: %v", i+1, key, err)
			if errors.Is(err, agent.ErrTimeout) {
				msg = fmt.Sprintf("step %d (%s) timed out", i+1, key)
			}
			t.recordEvent(orchestrationID, "error", string(key), msg, nil)
			fmt.Fprintf(&sb, "### Step %d: %s — FAILED\n\n%s\n", i+1, key, msg)
			return mcp.NewToolResultError(sb.String()), nil
		}

		if !res.Success() {
			msg := fmt.Sprintf("step %d (%s) exited with code %d", i+1, key, res.ExitCode)
			t.recordEvent(orchestrationID, "error", string(key), msg,
				map[string]any{"step": i + 1, "exit_code": res.ExitCode})
			fmt.Fprintf(&sb, "### Step %d: %s — FAILED\n\n%s\n\n%s\n", i+1, key, msg, truncate(res.Output(), 4000))
			return mcp.NewToolResultError(sb.String()), nil
		}

		prevOut = res.Output()
		prevStep = key
		t.recordEvent(orchestrationID, "message", string(key),
			truncate(prevOut, 4000), map[string]any{"step": i + 1, "exit_code": res.ExitCode})
		fmt.Fprintf(&sb, "### Step %d: %s\n\n%s\n\n", i+1, key, truncate(prevOut, maxToolOutput/len(chain)))
	}

	t.recordEvent(orchestrationID, "message", "system", "orchestration completed", nil)
	fmt.Fprintf(&sb, "orchestration_id: %s\n", orchestrationID)
	return mcp.NewToolResultText(sb.String()), nil
}

func (t *OrchestrateTool) recordEvent(orchestrationID, typ, actor, content string, meta map[string]any) {
	if t.store == nil {
		return
	}
	_, _ = t.store.AddEvent(&store.Event{
		OrchestrationID: orchestrationID,
		Type:            typ,
		Actor:           actor,
		Content:         content,
		Metadata:        meta,
	})
}
