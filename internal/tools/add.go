package tools

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
)

// AddTool is a trivial arithmetic tool kept as a connectivity check:
// clients use it to verify the server handles typed arguments correctly.
type AddTool struct{}

// NewAddTool creates an AddTool.
func NewAddTool() *AddTool {
	return &AddTool{}
}

// Definition returns the add tool definition.
func (t *AddTool) Definition() mcp.Tool {
	return mcp.NewTool("add",
		mcp.WithDescription("Add two numbers. Rejects booleans and non-finite values."),
		mcp.WithNumber("a",
			mcp.Required(),
			mcp.Description("First addend"),
		),
		mcp.WithNumber("b",
			mcp.Required(),
			mcp.Description("Second addend"),
		),
	)
}

// Handle processes an add call.
func (t *AddTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a, err := numberArg(req, "a")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	b, err := numberArg(req, "b")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	sum := a + b
	if math.IsInf(sum, 0) {
		return mcp.NewToolResultError("result overflows to infinity"), nil
	}
	// Integer inputs get an integer answer.
	if sum == math.Trunc(sum) && math.Abs(sum) < 1e15 {
		return mcp.NewToolResultText(strconv.FormatInt(int64(sum), 10)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%g", sum)), nil
}
