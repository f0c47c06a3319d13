package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// shAgent builds an agent around /bin/sh so exec behavior can be tested
// without any real coding-agent CLI installed.
func shAgent() *Agent {
	return New(Config{
		AgentKey: "sh",
		Command:  "sh",
		Args: []ArgSpec{
			{Name: "flag_c", Flag: "-c", Required: true},
		},
	})
}

func TestExecute_CapturesStdoutAndExitCode(t *testing.T) {
	res, err := shAgent().Execute(context.Background(), Task{"flag_c": "echo hello; echo oops >&2"}, Options{Timeout: 10 * time.Second})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode)
	}
	if res.Stdout != "hello" {
		t.Errorf("Stdout = %q, want %q", res.Stdout, "hello")
	}
	if res.Stderr != "oops" {
		t.Errorf("Stderr = %q, want %q", res.Stderr, "oops")
	}
	if !res.Success() {
		t.Error("Success() = false, want true")
	}
	if res.TimedOut {
		t.Error("TimedOut = true, want false")
	}
}

func TestExecute_NonZeroExitIsNotAnError(t *testing.T) {
	res, err := shAgent().Execute(context.Background(), Task{"flag_c": "exit 3"}, Options{Timeout: 10 * time.Second})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
	if res.Success() {
		t.Error("Success() = true, want false")
	}
}

func TestExecute_Timeout(t *testing.T) {
	start := time.Now()
	res, err := shAgent().Execute(context.Background(), Task{"flag_c": "sleep 10"}, Options{Timeout: 200 * time.Millisecond})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if res == nil || !res.TimedOut {
		t.Fatal("Result.TimedOut = false, want true")
	}
	if elapsed := time.Since(start); elapsed > 8*time.Second {
		t.Errorf("timeout not enforced, took %s", elapsed)
	}
}

func TestExecute_BinaryNotFound(t *testing.T) {
	a := New(Config{AgentKey: "ghost", Command: "glyx-no-such-binary-xyz"})
	_, err := a.Execute(context.Background(), Task{}, Options{Timeout: time.Second})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if errors.Is(err, ErrTimeout) {
		t.Error("not-found must be distinct from timeout")
	}
}

func TestExecute_OnLineCallback(t *testing.T) {
	var lines []string
	_, err := shAgent().Execute(context.Background(),
		Task{"flag_c": "echo one; echo two"},
		Options{Timeout: 10 * time.Second, OnLine: func(stream, line string) {
			lines = append(lines, stream+":"+line)
		}})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %v", len(lines), lines)
	}
	if lines[0] != "stdout:one" || lines[1] != "stdout:two" {
		t.Errorf("lines = %v", lines)
	}
}

func TestExecute_WorkingDir(t *testing.T) {
	dir := t.TempDir()
	res, err := shAgent().Execute(context.Background(), Task{"flag_c": "pwd", "working_dir": dir}, Options{Timeout: 10 * time.Second})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	// On macOS the temp dir resolves through /private; suffix match covers both.
	if !strings.HasSuffix(res.Stdout, dir) {
		t.Errorf("pwd = %q, want %q", res.Stdout, dir)
	}
}

func TestExecute_EnvInjection(t *testing.T) {
	res, err := shAgent().Execute(context.Background(),
		Task{"flag_c": "printf '%s' \"$GLYX_PROBE\""},
		Options{Timeout: 10 * time.Second, Env: []string{"GLYX_PROBE=injected"}})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Stdout != "injected" {
		t.Errorf("Stdout = %q, want %q", res.Stdout, "injected")
	}
}

func TestExecuteStream_EventKinds(t *testing.T) {
	events, err := shAgent().ExecuteStream(context.Background(),
		Task{"flag_c": `echo '{"type":"thinking","text":"hm"}'; echo plain; echo err >&2; exit 2`},
		Options{Timeout: 10 * time.Second})
	if err != nil {
		t.Fatalf("ExecuteStream: %v", err)
	}

	var kinds []string
	var complete *Event
	for ev := range events {
		kinds = append(kinds, ev.Type)
		if ev.Type == EventComplete {
			e := ev
			complete = &e
		}
	}
	if complete == nil {
		t.Fatal("no agent_complete event")
	}
	if complete.ExitCode != 2 {
		t.Errorf("complete.ExitCode = %d, want 2", complete.ExitCode)
	}
	if kinds[len(kinds)-1] != EventComplete {
		t.Errorf("agent_complete must be last, got %v", kinds)
	}

	want := map[string]bool{EventAgentEvent: false, EventAgentOutput: false, EventAgentError: false}
	for _, k := range kinds {
		if _, ok := want[k]; ok {
			want[k] = true
		}
	}
	for k, seen := range want {
		if !seen {
			t.Errorf("missing %s event in %v", k, kinds)
		}
	}
}

func TestExecuteStream_BinaryNotFound(t *testing.T) {
	a := New(Config{AgentKey: "ghost", Command: "glyx-no-such-binary-xyz"})
	_, err := a.ExecuteStream(context.Background(), Task{}, Options{Timeout: time.Second})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want Key
		ok   bool
	}{
		{"claude", KeyClaude, true},
		{"claude-code", KeyClaude, true},
		{"CLAUDE", KeyClaude, true},
		{" aider ", KeyAider, true},
		{"grok", KeyGrok, true},
		{"shell", "", false},
	}
	for _, tt := range tests {
		got, ok := Normalize(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("Normalize(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
