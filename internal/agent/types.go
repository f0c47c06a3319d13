// Package agent implements the composable agent execution contract: a
// uniform way to invoke heterogeneous coding-agent CLIs (aider, claude,
// opencode, codex, ...) from a declarative argument specification.
//
// Each agent is described by a Config — the binary to run plus a list of
// ArgSpec entries mapping task fields to CLI syntax. Execution is a single
// subprocess run with a wall-clock timeout and structured result capture.
// No retries, no scheduling, no state between invocations.
package agent

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

// Key is a logical agent identifier with a built-in JSON config.
type Key string

// Known agent keys.
const (
	KeyAider      Key = "aider"
	KeyClaude     Key = "claude"
	KeyCodex      Key = "codex"
	KeyCursor     Key = "cursor"
	KeyDeepseekR1 Key = "deepseek_r1"
	KeyGemini     Key = "gemini"
	KeyGrok       Key = "grok"
	KeyKimiK2     Key = "kimi_k2"
	KeyOpencode   Key = "opencode"
)

// aliases maps agent_type strings as stored in task rows to canonical
// keys. Shared by the local executor and the HTTP API.
var aliases = map[string]Key{
	"claude":      KeyClaude,
	"claude-code": KeyClaude,
	"cursor":      KeyCursor,
	"codex":       KeyCodex,
	"aider":       KeyAider,
	"gemini":      KeyGemini,
	"opencode":    KeyOpencode,
	"grok":        KeyGrok,
	"deepseek_r1": KeyDeepseekR1,
	"kimi_k2":     KeyKimiK2,
}

// Normalize resolves an agent_type string to a canonical Key.
// Returns false when the string names no known agent.
func Normalize(agentType string) (Key, bool) {
	k, ok := aliases[strings.ToLower(strings.TrimSpace(agentType))]
	return k, ok
}

// ArgSpec describes how one task field maps to command-line syntax.
type ArgSpec struct {
	Name       string   `json:"name"`
	Flag       string   `json:"flag,omitempty"`
	Type       string   `json:"type,omitempty"` // string, bool, int, float
	Required   bool     `json:"required,omitempty"`
	Default    string   `json:"default,omitempty"`
	Desc       string   `json:"description,omitempty"`
	Positional bool     `json:"positional,omitempty"`
	Position   int      `json:"position,omitempty"`
	Choices    []string `json:"choices,omitempty"`
	Variadic   bool     `json:"variadic,omitempty"`
	EnvVar     string   `json:"env_var,omitempty"`
}

// Config is a full agent definition: the binary plus its argument mapping.
type Config struct {
	AgentKey     string    `json:"agent_key"`
	Command      string    `json:"command"`
	Args         []ArgSpec `json:"args,omitempty"`
	Description  string    `json:"description,omitempty"`
	Version      string    `json:"version,omitempty"`
	Capabilities []string  `json:"capabilities,omitempty"`
}

// Task is the task configuration passed to an execution: prompt text,
// target files, model identifier and any agent-specific extras. Keys match
// ArgSpec names.
type Task map[string]any

// String returns the string value for key, or "" when absent.
func (t Task) String(key string) string {
	v, ok := t[key]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// Result is the structured outcome of one agent execution.
type Result struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exit_code"`
	TimedOut bool          `json:"timed_out"`
	Duration time.Duration `json:"duration"`
	Command  []string      `json:"command"`
}

// Success reports whether the run exited cleanly within the timeout.
func (r *Result) Success() bool {
	return r.ExitCode == 0 && !r.TimedOut
}

// Output returns the combined output, with stderr appended when present.
func (r *Result) Output() string {
	out := r.Stdout
	if r.Stderr != "" {
		out += "\nSTDERR: " + r.Stderr
	}
	return out
}

// ParseConfig parses an agent definition document of the original
// `{"<agent_key>": {...}}` shape. The args section may be either a list
// or an object keyed by argument name.
func ParseConfig(data []byte) (Config, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return Config{}, fmt.Errorf("agent: parse config: %w", err)
	}
	if len(doc) != 1 {
		return Config{}, fmt.Errorf("agent: config must have exactly one top-level agent key, got %d", len(doc))
	}
	for key, raw := range doc {
		cfg, err := parseConfigBody(raw)
		if err != nil {
			return Config{}, fmt.Errorf("agent: config %q: %w", key, err)
		}
		cfg.AgentKey = key
		if cfg.Command == "" {
			return Config{}, fmt.Errorf("agent: config %q: command is required", key)
		}
		return cfg, nil
	}
	return Config{}, fmt.Errorf("agent: empty config document")
}

// LoadConfig reads and parses an agent definition file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("agent: read config %s: %w", path, err)
	}
	return ParseConfig(data)
}

// ConfigFromMap builds a Config from a generic row (e.g. a stored custom
// agent definition).
func ConfigFromMap(m map[string]any) (Config, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return Config{}, fmt.Errorf("agent: encode config map: %w", err)
	}
	cfg, err := parseConfigBody(data)
	if err != nil {
		return Config{}, err
	}
	if key, ok := m["agent_key"].(string); ok {
		cfg.AgentKey = key
	}
	if cfg.AgentKey == "" {
		return Config{}, fmt.Errorf("agent: config map missing agent_key")
	}
	if cfg.Command == "" {
		return Config{}, fmt.Errorf("agent: config %q: command is required", cfg.AgentKey)
	}
	return cfg, nil
}

// parseConfigBody decodes the inner config object, accepting args as
// either a JSON array or an object keyed by argument name.
func parseConfigBody(raw json.RawMessage) (Config, error) {
	type alias struct {
		AgentKey     string          `json:"agent_key"`
		Command      string          `json:"command"`
		Args         json.RawMessage `json:"args"`
		Description  string          `json:"description"`
		Version      string          `json:"version"`
		Capabilities []string        `json:"capabilities"`
	}
	var a alias
	if err := json.Unmarshal(raw, &a); err != nil {
		return Config{}, err
	}
	cfg := Config{
		AgentKey:     a.AgentKey,
		Command:      a.Command,
		Description:  a.Description,
		Version:      a.Version,
		Capabilities: a.Capabilities,
	}
	if len(a.Args) == 0 {
		return cfg, nil
	}

	var list []ArgSpec
	if err := json.Unmarshal(a.Args, &list); err == nil {
		cfg.Args = list
		return cfg, nil
	}

	var named map[string]ArgSpec
	if err := json.Unmarshal(a.Args, &named); err != nil {
		return Config{}, fmt.Errorf("args must be a list or an object: %w", err)
	}
	// Deterministic order for map-style args: sort by name so the built
	// command line is stable across runs.
	keys := make([]string, 0, len(named))
	for name := range named {
		keys = append(keys, name)
	}
	sort.Strings(keys)
	for _, name := range keys {
		spec := named[name]
		spec.Name = name
		cfg.Args = append(cfg.Args, spec)
	}
	return cfg, nil
}
