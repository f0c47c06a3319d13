package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/glyxlabs/glyx/internal/agent"
	"github.com/glyxlabs/glyx/internal/store"
)

// --- Test helpers ---

func testStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "glyx.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func callReq(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func isErrorResult(result *mcp.CallToolResult) bool {
	return result != nil && result.IsError
}

// getResultText extracts the text content from a CallToolResult.
func getResultText(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

// --- helpers.go ---

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b ", []string{"a", "b"}},
		{"one", []string{"one"}},
		{",,", nil},
		{"  ", nil},
	}
	for _, tt := range tests {
		got := splitList(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("splitList(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("splitList(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
			}
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 100); got != "short" {
		t.Errorf("truncate = %q", got)
	}
	long := strings.Repeat("x", 200)
	got := truncate(long, 50)
	if !strings.HasSuffix(got, "[output truncated]") {
		t.Errorf("missing marker: %q", got)
	}
	if !strings.HasPrefix(got, strings.Repeat("x", 50)) {
		t.Errorf("wrong prefix: %q", got[:60])
	}
}

func TestIntArg(t *testing.T) {
	req := callReq(map[string]any{"n": float64(7), "s": "12", "bad": "nope"})
	if got := intArg(req, "n", 1); got != 7 {
		t.Errorf("float arg = %d", got)
	}
	if got := intArg(req, "s", 1); got != 12 {
		t.Errorf("string arg = %d", got)
	}
	if got := intArg(req, "bad", 5); got != 5 {
		t.Errorf("unparseable arg = %d, want default", got)
	}
	if got := intArg(req, "missing", 9); got != 9 {
		t.Errorf("missing arg = %d, want default", got)
	}
}

// --- add ---

func TestAddTool(t *testing.T) {
	tool := NewAddTool()
	tests := []struct {
		name    string
		args    map[string]any
		want    string
		wantErr bool
	}{
		{name: "integers", args: map[string]any{"a": float64(2), "b": float64(3)}, want: "5"},
		{name: "floats", args: map[string]any{"a": 0.5, "b": 0.25}, want: "0.75"},
		{name: "negative", args: map[string]any{"a": float64(-10), "b": float64(4)}, want: "-6"},
		{name: "missing b", args: map[string]any{"a": float64(1)}, wantErr: true},
		{name: "boolean rejected", args: map[string]any{"a": true, "b": float64(1)}, wantErr: true},
		{name: "string rejected", args: map[string]any{"a": "2", "b": float64(1)}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tool.Handle(context.Background(), callReq(tt.args))
			if err != nil {
				t.Fatalf("Handle: %v", err)
			}
			if isErrorResult(result) != tt.wantErr {
				t.Fatalf("IsError = %v, want %v (%s)", result.IsError, tt.wantErr, getResultText(result))
			}
			if !tt.wantErr && getResultText(result) != tt.want {
				t.Errorf("got %q, want %q", getResultText(result), tt.want)
			}
		})
	}
}

// --- agent tool ---

func TestAgentTool_ExecutesAndPersists(t *testing.T) {
	st := testStore(t)
	// sh -c 'printf ...' <prompt>: the prompt arrives as $0 of the script.
	cfg := agent.Config{
		AgentKey: "echoer",
		Command:  "sh",
		Args: []agent.ArgSpec{
			{Name: "script", Flag: "-c", Default: `printf 'ran: %s' "$0"`},
			{Name: "prompt", Required: true},
		},
	}
	tool := NewAgentTool(cfg, st, 0, nil)

	if tool.Name() != "use_echoer" {
		t.Errorf("Name = %q", tool.Name())
	}

	result, err := tool.Handle(context.Background(), callReq(map[string]any{"prompt": "hello"}))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if isErrorResult(result) {
		t.Fatalf("tool error: %s", getResultText(result))
	}
	text := getResultText(result)
	if !strings.Contains(text, "ran: hello") {
		t.Errorf("output = %q", text)
	}
	if !strings.Contains(text, "conversation_id: ") {
		t.Error("missing conversation_id in output")
	}

	// Both turns must be persisted under the returned session.
	convID := text[strings.LastIndex(text, "conversation_id: ")+len("conversation_id: "):]
	convID = strings.TrimSpace(convID)
	msgs, err := st.History(convID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[0].Role != "user" || msgs[1].Role != "assistant" {
		t.Errorf("history = %+v", msgs)
	}
}

func TestAgentTool_MissingPrompt(t *testing.T) {
	tool := NewAgentTool(agent.Config{AgentKey: "x", Command: "true"}, nil, 0, nil)
	result, err := tool.Handle(context.Background(), callReq(map[string]any{}))
	if err != nil {
		t.Fatal(err)
	}
	if !isErrorResult(result) {
		t.Error("expected error result for missing prompt")
	}
}

func TestAgentTool_BinaryNotFound(t *testing.T) {
	cfg := agent.Config{
		AgentKey: "ghost",
		Command:  "glyx-no-such-binary",
		Args:     []agent.ArgSpec{{Name: "prompt", Positional: true, Position: 0}},
	}
	tool := NewAgentTool(cfg, nil, 0, nil)
	result, err := tool.Handle(context.Background(), callReq(map[string]any{"prompt": "hi"}))
	if err != nil {
		t.Fatal(err)
	}
	if !isErrorResult(result) {
		t.Fatal("expected error result")
	}
	if !strings.Contains(getResultText(result), "not installed") {
		t.Errorf("message = %q", getResultText(result))
	}
}

// --- crud ---

func TestCrudTool_CreateGetDelete(t *testing.T) {
	st := testStore(t)
	tool := NewCrudTool(st)

	cfg := `{"command": "mytool", "args": {"prompt": {"flag": "-p", "required": true}}}`
	result, err := tool.HandleCreate(context.Background(), callReq(map[string]any{
		"agent_key": "mytool",
		"config":    cfg,
	}))
	if err != nil {
		t.Fatal(err)
	}
	if isErrorResult(result) {
		t.Fatalf("create failed: %s", getResultText(result))
	}

	result, err = tool.HandleGet(context.Background(), callReq(map[string]any{"agent_key": "mytool"}))
	if err != nil {
		t.Fatal(err)
	}
	if isErrorResult(result) || !strings.Contains(getResultText(result), "mytool") {
		t.Errorf("get = %q", getResultText(result))
	}

	result, err = tool.HandleDelete(context.Background(), callReq(map[string]any{"agent_key": "mytool"}))
	if err != nil {
		t.Fatal(err)
	}
	if isErrorResult(result) {
		t.Errorf("delete failed: %s", getResultText(result))
	}
}

func TestCrudTool_RejectsBuiltinOverride(t *testing.T) {
	st := testStore(t)
	tool := NewCrudTool(st)

	result, err := tool.HandleCreate(context.Background(), callReq(map[string]any{
		"agent_key": "claude",
		"config":    `{"command": "evil"}`,
	}))
	if err != nil {
		t.Fatal(err)
	}
	if !isErrorResult(result) {
		t.Error("overriding a built-in should fail")
	}

	result, err = tool.HandleDelete(context.Background(), callReq(map[string]any{"agent_key": "aider"}))
	if err != nil {
		t.Fatal(err)
	}
	if !isErrorResult(result) {
		t.Error("deleting a built-in should fail")
	}
}

func TestCrudTool_InvalidConfig(t *testing.T) {
	st := testStore(t)
	tool := NewCrudTool(st)

	tests := []map[string]any{
		{"agent_key": "x", "config": `not json`},
		{"agent_key": "x", "config": `{"args": {}}`}, // no command
		{"config": `{"command": "c"}`},               // no key
	}
	for i, args := range tests {
		result, err := tool.HandleCreate(context.Background(), callReq(args))
		if err != nil {
			t.Fatal(err)
		}
		if !isErrorResult(result) {
			t.Errorf("case %d: expected error result", i)
		}
	}
}

func TestCrudTool_ListIncludesBuiltins(t *testing.T) {
	tool := NewCrudTool(nil) // no store: built-ins still listed
	result, err := tool.HandleList(context.Background(), callReq(nil))
	if err != nil {
		t.Fatal(err)
	}
	text := getResultText(result)
	for _, key := range []string{"claude", "aider", "grok"} {
		if !strings.Contains(text, key) {
			t.Errorf("listing missing %q", key)
		}
	}
}

// --- check_agents ---

func TestInstallTool(t *testing.T) {
	orig := lookPath
	lookPath = func(bin string) (string, error) {
		if bin == "claude" {
			return "/usr/local/bin/claude", nil
		}
		return "", fmt.Errorf("not found")
	}
	defer func() { lookPath = orig }()

	tool := NewInstallTool()
	result, err := tool.Handle(context.Background(), callReq(nil))
	if err != nil {
		t.Fatal(err)
	}
	text := getResultText(result)
	if !strings.Contains(text, "claude: installed (/usr/local/bin/claude)") {
		t.Errorf("claude not reported installed:\n%s", text)
	}
	if !strings.Contains(text, "aider: NOT INSTALLED") {
		t.Errorf("aider not reported missing:\n%s", text)
	}
}

// --- sessions ---

func TestSessionTool(t *testing.T) {
	st := testStore(t)
	if err := st.AppendMessage("sess-1", "claude", "user", "question"); err != nil {
		t.Fatal(err)
	}
	if err := st.AppendMessage("sess-1", "claude", "assistant", "answer"); err != nil {
		t.Fatal(err)
	}

	tool := NewSessionTool(st)
	result, err := tool.HandleList(context.Background(), callReq(nil))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(getResultText(result), "sess-1") {
		t.Errorf("list = %q", getResultText(result))
	}

	result, err = tool.HandleMessages(context.Background(), callReq(map[string]any{"session_id": "sess-1"}))
	if err != nil {
		t.Fatal(err)
	}
	text := getResultText(result)
	if !strings.Contains(text, "question") || !strings.Contains(text, "answer") {
		t.Errorf("messages = %q", text)
	}

	result, err = tool.HandleMessages(context.Background(), callReq(nil))
	if err != nil {
		t.Fatal(err)
	}
	if !isErrorResult(result) {
		t.Error("missing session_id should be an error result")
	}
}

func TestSessionTool_NilStore(t *testing.T) {
	tool := NewSessionTool(nil)
	result, err := tool.HandleList(context.Background(), callReq(nil))
	if err != nil {
		t.Fatal(err)
	}
	if !isErrorResult(result) {
		t.Error("nil store should degrade to an error result, not panic")
	}
}

// --- memory ---

func TestMemoryTool_SaveAndSearch(t *testing.T) {
	st := testStore(t)
	tool := NewMemoryTool(st)

	result, err := tool.HandleSave(context.Background(), callReq(map[string]any{
		"content": "repo uses table-driven tests",
		"user_id": "u1",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if isErrorResult(result) {
		t.Fatalf("save failed: %s", getResultText(result))
	}

	result, err = tool.HandleSearch(context.Background(), callReq(map[string]any{
		"query":   "table-driven",
		"user_id": "u1",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(getResultText(result), "table-driven tests") {
		t.Errorf("search = %q", getResultText(result))
	}

	result, err = tool.HandleSave(context.Background(), callReq(map[string]any{"content": "  "}))
	if err != nil {
		t.Fatal(err)
	}
	if !isErrorResult(result) {
		t.Error("blank content should be rejected")
	}
}

// --- orchestrate ---

func TestOrchestrateTool_Validation(t *testing.T) {
	tool := NewOrchestrateTool(nil, 0, nil, "")

	result, err := tool.Handle(context.Background(), callReq(map[string]any{"agents": "claude"}))
	if err != nil {
		t.Fatal(err)
	}
	if !isErrorResult(result) {
		t.Error("missing task should fail")
	}

	result, err = tool.Handle(context.Background(), callReq(map[string]any{
		"task":   "do things",
		"agents": "claude,not-an-agent",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if !isErrorResult(result) || !strings.Contains(getResultText(result), "not-an-agent") {
		t.Errorf("unknown agent result = %q", getResultText(result))
	}
}

// fakeAgentBin drops a shell script named like an agent CLI into dir.
func fakeAgentBin(t *testing.T, dir, name, script string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("#!/bin/sh\n"+script+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
}

// orchestrationID pulls the id out of the result header written by Handle.
func orchestrationID(t *testing.T, text string) string {
	t.Helper()
	first, _, _ := strings.Cut(text, "\n")
	id := strings.TrimSpace(strings.TrimPrefix(first, "## Orchestration "))
	if id == "" {
		t.Fatalf("no orchestration id in %q", first)
	}
	return id
}

func TestOrchestrateTool_AbortsOnNonZeroExit(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "second-step-ran")
	fakeAgentBin(t, dir, "claude", "echo plan went sideways; exit 7")
	fakeAgentBin(t, dir, "aider", "touch "+marker+"; echo implemented")
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))

	st := testStore(t)
	tool := NewOrchestrateTool(st, 5*time.Second, nil, "")
	result, err := tool.Handle(context.Background(), callReq(map[string]any{
		"task":   "build the widget",
		"agents": "claude,aider",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if !isErrorResult(result) {
		t.Fatal("chain with a failing first step must return an error result")
	}
	text := getResultText(result)
	if !strings.Contains(text, "exited with code 7") {
		t.Errorf("result = %q", text)
	}
	if _, err := os.Stat(marker); !os.IsNotExist(err) {
		t.Error("second step ran after the first failed")
	}

	events, err := st.Events(orchestrationID(t, text), 10)
	if err != nil {
		t.Fatal(err)
	}
	last := events[len(events)-1]
	if last.Type != "error" {
		t.Errorf("last event type = %q, want error", last.Type)
	}
	if got := last.Metadata["exit_code"]; got != float64(7) {
		t.Errorf("exit_code metadata = %v, want 7", got)
	}
}

func TestOrchestrateTool_PlanningStepModel(t *testing.T) {
	dir := t.TempDir()
	fakeAgentBin(t, dir, "claude", `echo "args: $@"`)
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))

	tool := NewOrchestrateTool(nil, 5*time.Second, nil, "o3-large")
	result, err := tool.Handle(context.Background(), callReq(map[string]any{
		"task":   "sketch a plan",
		"agents": "claude",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if isErrorResult(result) {
		t.Fatalf("result = %q", getResultText(result))
	}
	if !strings.Contains(getResultText(result), "--model o3-large") {
		t.Errorf("planning step did not receive the configured model: %q", getResultText(result))
	}
}
