package agent

import (
	"errors"
	"fmt"
)

// Execution failure modes, signalled distinctly from a non-zero exit code.
var (
	// ErrTimeout is returned when the wall-clock timeout expires before
	// the subprocess exits.
	ErrTimeout = errors.New("agent execution timed out")

	// ErrNotFound is returned when the agent binary cannot be located.
	ErrNotFound = errors.New("agent binary not found")
)

// ConfigError reports an invalid agent configuration or a task value that
// violates the argument specification.
type ConfigError struct {
	Agent string
	Arg   string
	Msg   string
}

func (e *ConfigError) Error() string {
	if e.Arg == "" {
		return fmt.Sprintf("agent %s: %s", e.Agent, e.Msg)
	}
	return fmt.Sprintf("agent %s: argument %q: %s", e.Agent, e.Arg, e.Msg)
}
