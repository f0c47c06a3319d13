package agent

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// Event types emitted by ExecuteStream.
const (
	EventAgentEvent  = "agent_event"  // a parsed NDJSON event from stdout
	EventAgentOutput = "agent_output" // a plain stdout line
	EventAgentError  = "agent_error"  // a stderr line
	EventComplete    = "agent_complete"
)

// Event is one element of a streaming execution.
type Event struct {
	Type      string         `json:"type"`
	Content   string         `json:"content,omitempty"`
	Data      map[string]any `json:"event,omitempty"`
	ExitCode  int            `json:"exit_code,omitempty"`
	Duration  float64        `json:"execution_time,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// ExecuteStream runs the agent and yields events in real time. Stdout
// lines that parse as JSON become EventAgentEvent, other lines become
// EventAgentOutput, stderr lines become EventAgentError. The final event
// is always EventComplete carrying the exit code, after which the channel
// is closed.
//
// The returned error covers startup failures only (bad arguments, missing
// binary); runtime failures are reported through the event stream.
func (a *Agent) ExecuteStream(ctx context.Context, task Task, opts Options) (<-chan Event, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	args, err := BuildArgs(a.Config, task)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)

	cmd := exec.CommandContext(runCtx, a.Config.Command, args...)
	cmd.Stdin = nil
	cmd.Dir = workingDir(task)
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}
	cmd.WaitDelay = 5 * time.Second

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("agent %s: stdout pipe: %w", a.Config.AgentKey, err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("agent %s: stderr pipe: %w", a.Config.AgentKey, err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, a.Config.Command)
		}
		return nil, fmt.Errorf("agent %s: start: %w", a.Config.AgentKey, err)
	}

	events := make(chan Event, 64)
	start := time.Now()

	go func() {
		defer cancel()
		defer close(events)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			sc := bufio.NewScanner(stdoutPipe)
			sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
			for sc.Scan() {
				line := strings.TrimRight(sc.Text(), "\r")
				if line == "" {
					continue
				}
				var data map[string]any
				if err := json.Unmarshal([]byte(line), &data); err == nil {
					events <- Event{Type: EventAgentEvent, Data: data, Timestamp: time.Now()}
				} else {
					events <- Event{Type: EventAgentOutput, Content: line, Timestamp: time.Now()}
				}
			}
		}()
		go func() {
			defer wg.Done()
			sc := bufio.NewScanner(stderrPipe)
			sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
			for sc.Scan() {
				line := strings.TrimRight(sc.Text(), "\r")
				if line == "" {
					continue
				}
				events <- Event{Type: EventAgentError, Content: line, Timestamp: time.Now()}
			}
		}()
		wg.Wait()

		exitCode := 0
		if err := cmd.Wait(); err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				exitCode = exitErr.ExitCode()
			} else {
				exitCode = -1
			}
		}
		events <- Event{
			Type:      EventComplete,
			ExitCode:  exitCode,
			Duration:  time.Since(start).Seconds(),
			Timestamp: time.Now(),
		}
	}()

	return events, nil
}
