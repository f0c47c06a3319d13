package tools

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/glyxlabs/glyx/internal/agent"
)

// lookPath is swappable for tests.
var lookPath = exec.LookPath

// InstallTool reports which agent binaries are actually on PATH.
type InstallTool struct{}

// NewInstallTool creates an InstallTool.
func NewInstallTool() *InstallTool {
	return &InstallTool{}
}

// Definition returns the check_agents tool definition.
func (t *InstallTool) Definition() mcp.Tool {
	return mcp.NewTool("check_agents",
		mcp.WithDescription(
			"Check which coding agent CLIs are installed on this machine. "+
				"Reports the resolved binary path for each, or marks it missing."),
	)
}

// Handle processes a check_agents call.
func (t *InstallTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var sb strings.Builder
	sb.WriteString("## Agent availability\n\n")

	// Dedupe by binary: grok and opencode share the opencode CLI.
	checked := map[string]string{}
	for _, key := range agent.Keys() {
		cfg, err := agent.BuiltinConfig(key)
		if err != nil {
			continue
		}
		status, seen := checked[cfg.Command]
		if !seen {
			path, err := lookPath(cfg.Command)
			if err != nil {
				status = "missing"
			} else {
				status = path
			}
			checked[cfg.Command] = status
		}
		if status == "missing" {
			fmt.Fprintf(&sb, "- %s: NOT INSTALLED (binary %q not found)\n", key, cfg.Command)
		} else {
			fmt.Fprintf(&sb, "- %s: installed (%s)\n", key, status)
		}
	}
	return mcp.NewToolResultText(sb.String()), nil
}
