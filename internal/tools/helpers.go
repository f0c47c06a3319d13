// Package tools implements the MCP tool handlers.
//
// Each tool is a struct that receives its dependencies (agent registry,
// store, notifier) and exposes a Definition for registration plus a
// Handle compatible with mcp-go's CallToolRequest signature. Tools stay
// usable when the store is unavailable: persistence-dependent features
// degrade instead of failing the whole call.
package tools

import (
	"fmt"
	"math"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// maxToolOutput caps tool result text so a chatty agent cannot blow up
// the MCP client's context window.
const maxToolOutput = 50_000

// truncate trims s to max bytes with a marker.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "\n... [output truncated]"
}

// splitList parses a comma-separated parameter into trimmed values.
func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// numberArg extracts a numeric argument, rejecting booleans and
// non-finite values that survive JSON-ish transports.
func numberArg(req mcp.CallToolRequest, name string) (float64, error) {
	args := req.GetArguments()
	raw, ok := args[name]
	if !ok {
		return 0, fmt.Errorf("'%s' is required", name)
	}
	switch v := raw.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("'%s' must be a finite number", name)
		}
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("'%s' must be a number, got %T", name, raw)
	}
}

// intArg extracts an optional integer argument with a default.
func intArg(req mcp.CallToolRequest, name string, def int) int {
	args := req.GetArguments()
	raw, ok := args[name]
	if !ok {
		return def
	}
	switch v := raw.(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case string:
		var n int
		if _, err := fmt.Sscanf(strings.TrimSpace(v), "%d", &n); err == nil {
			return n
		}
	}
	return def
}
