package agent

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// DefaultTimeout is the execution timeout applied when the caller
// specifies none.
const DefaultTimeout = 5 * time.Minute

// Options controls a single execution.
type Options struct {
	// Timeout is the wall-clock limit for the subprocess. Zero means
	// DefaultTimeout.
	Timeout time.Duration

	// Env is extra environment entries appended to the current process
	// environment (e.g. an injected GITHUB_TOKEN).
	Env []string

	// OnLine, when set, receives each output line as it is produced.
	// stream is "stdout" or "stderr".
	OnLine func(stream, line string)
}

// Agent executes one configured CLI tool.
type Agent struct {
	Config Config
}

// New returns an Agent for the given config.
func New(cfg Config) *Agent {
	return &Agent{Config: cfg}
}

// FromKey returns an Agent built from the embedded config for key.
func FromKey(key Key) (*Agent, error) {
	cfg, err := BuiltinConfig(key)
	if err != nil {
		return nil, err
	}
	return New(cfg), nil
}

// FromFile returns an Agent built from a JSON definition file.
func FromFile(path string) (*Agent, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return New(cfg), nil
}

// FromMap returns an Agent built from a stored definition row.
func FromMap(m map[string]any) (*Agent, error) {
	cfg, err := ConfigFromMap(m)
	if err != nil {
		return nil, err
	}
	return New(cfg), nil
}

// Execute builds the command line for task and runs it as a subprocess,
// blocking until it exits or the timeout elapses.
//
// A non-zero exit code is not an error: it is captured in Result.ExitCode.
// Timeout expiry returns the partial Result together with ErrTimeout, and
// a missing binary returns ErrNotFound. The subprocess gets no stdin.
func (a *Agent) Execute(ctx context.Context, task Task, opts Options) (*Result, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	args, err := BuildArgs(a.Config, task)
	if err != nil {
		return nil, err
	}
	argv := append([]string{a.Config.Command}, args...)

	start := time.Now()
	slog.Debug("agent execute", "agent", a.Config.AgentKey, "command", strings.Join(argv, " "), "timeout", timeout)

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, a.Config.Command, args...)
	cmd.Stdin = nil
	cmd.Dir = workingDir(task)
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}
	// Give the process a short grace period after cancellation before a
	// hard kill, so pipes are not left dangling.
	cmd.WaitDelay = 5 * time.Second

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("agent %s: stdout pipe: %w", a.Config.AgentKey, err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("agent %s: stderr pipe: %w", a.Config.AgentKey, err)
	}

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, a.Config.Command)
		}
		return nil, fmt.Errorf("agent %s: start: %w", a.Config.AgentKey, err)
	}

	var (
		wg     sync.WaitGroup
		stdout strings.Builder
		stderr strings.Builder
	)
	wg.Add(2)
	go collectLines(&wg, stdoutPipe, &stdout, "stdout", opts.OnLine)
	go collectLines(&wg, stderrPipe, &stderr, "stderr", opts.OnLine)
	wg.Wait()

	waitErr := cmd.Wait()
	result := &Result{
		Stdout:   strings.TrimRight(stdout.String(), "\n"),
		Stderr:   strings.TrimRight(stderr.String(), "\n"),
		Duration: time.Since(start),
		Command:  argv,
	}

	if runCtx.Err() == context.DeadlineExceeded {
		result.TimedOut = true
		result.ExitCode = -1
		return result, fmt.Errorf("%w after %s: %s", ErrTimeout, timeout, a.Config.AgentKey)
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, fmt.Errorf("agent %s: %w", a.Config.AgentKey, waitErr)
	}

	result.ExitCode = cmd.ProcessState.ExitCode()
	slog.Debug("agent done",
		"agent", a.Config.AgentKey,
		"exit_code", result.ExitCode,
		"duration", result.Duration,
		"stdout_bytes", len(result.Stdout),
		"stderr_bytes", len(result.Stderr),
	)
	return result, nil
}

// collectLines drains a pipe line by line into sb, reporting each line to
// onLine when set.
func collectLines(wg *sync.WaitGroup, r io.Reader, sb *strings.Builder, stream string, onLine func(string, string)) {
	defer wg.Done()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		sb.WriteString(line)
		sb.WriteByte('\n')
		if onLine != nil && strings.TrimSpace(line) != "" {
			onLine(stream, line)
		}
	}
}

// workingDir resolves the task's working_dir, expanding a leading tilde
// (subprocesses get no shell expansion).
func workingDir(task Task) string {
	dir := task.String("working_dir")
	if dir == "" {
		return ""
	}
	if dir == "~" || strings.HasPrefix(dir, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(dir, "~"))
		}
	}
	return dir
}
