// Package server wires the MCP components and creates the server instance.
//
// This is the composition root: it opens the store, loads agent
// definitions, and injects them into the tools that depend on them. No
// business logic lives here — only wiring.
package server

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/glyxlabs/glyx/internal/agent"
	"github.com/glyxlabs/glyx/internal/config"
	"github.com/glyxlabs/glyx/internal/store"
	"github.com/glyxlabs/glyx/internal/tools"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New creates and configures the MCP server with every agent and utility
// tool registered.
//
// Persistence is an independent subsystem: if the store fails to open,
// agent tools still register (without conversation memory) and the
// store-backed tools degrade to explanatory errors. The returned cleanup
// function closes the database and is always non-nil.
func New(settings *config.Settings, log *slog.Logger) (*server.MCPServer, func(), error) {
	if log == nil {
		log = slog.Default()
	}

	cleanup := noop
	st, err := store.Open(settings.DBPath)
	if err != nil {
		log.Warn("persistence disabled", "path", settings.DBPath, "error", err)
		st = nil
	} else {
		cleanup = func() {
			if err := st.Close(); err != nil {
				log.Warn("store close", "error", err)
			}
		}
	}

	s := server.NewMCPServer(
		"glyx",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Register agent tools: built-ins plus stored custom configs ---

	builtin, err := agent.Builtin()
	if err != nil {
		cleanup()
		return nil, noop, fmt.Errorf("loading built-in agents: %w", err)
	}
	env := agentEnv(settings)
	for _, cfg := range builtin {
		t := tools.NewAgentTool(cfg, st, settings.AgentTimeout, env)
		s.AddTool(t.Definition(), t.Handle)
	}
	registerCustomAgents(s, st, settings, env, log)

	// --- Register management and utility tools ---

	crud := tools.NewCrudTool(st)
	s.AddTool(crud.ListDefinition(), crud.HandleList)
	s.AddTool(crud.GetDefinition(), crud.HandleGet)
	s.AddTool(crud.CreateDefinition(), crud.HandleCreate)
	s.AddTool(crud.DeleteDefinition(), crud.HandleDelete)

	install := tools.NewInstallTool()
	s.AddTool(install.Definition(), install.Handle)

	sessions := tools.NewSessionTool(st)
	s.AddTool(sessions.ListDefinition(), sessions.HandleList)
	s.AddTool(sessions.MessagesDefinition(), sessions.HandleMessages)

	memory := tools.NewMemoryTool(st)
	s.AddTool(memory.SaveDefinition(), memory.HandleSave)
	s.AddTool(memory.SearchDefinition(), memory.HandleSearch)

	add := tools.NewAddTool()
	s.AddTool(add.Definition(), add.Handle)

	orchestrate := tools.NewOrchestrateTool(st, settings.AgentTimeout, env, settings.OrchestratorModel)
	s.AddTool(orchestrate.Definition(), orchestrate.Handle)

	return s, cleanup, nil
}

// noop is the default cleanup when the store never opened.
func noop() {}

// agentEnv builds the extra environment passed to agent subprocesses so
// they can reach the configured providers.
func agentEnv(settings *config.Settings) []string {
	var env []string
	if settings.OpenAIAPIKey != "" {
		env = append(env, "OPENAI_API_KEY="+settings.OpenAIAPIKey)
	}
	if settings.AnthropicAPIKey != "" {
		env = append(env, "ANTHROPIC_API_KEY="+settings.AnthropicAPIKey)
	}
	if settings.OpenRouterAPIKey != "" {
		env = append(env, "OPENROUTER_API_KEY="+settings.OpenRouterAPIKey)
	}
	return env
}

// registerCustomAgents loads stored agent definitions and registers a
// use_<key> tool for each. Invalid rows are skipped with a warning so one
// bad config cannot take the server down.
func registerCustomAgents(s *server.MCPServer, st *store.Store, settings *config.Settings, env []string, log *slog.Logger) {
	if st == nil {
		return
	}
	rows, err := st.ListAgents()
	if err != nil {
		log.Warn("loading custom agents", "error", err)
		return
	}
	for _, row := range rows {
		var body map[string]any
		if err := json.Unmarshal([]byte(row.Config), &body); err != nil {
			log.Warn("skipping custom agent", "key", row.AgentKey, "error", err)
			continue
		}
		body["agent_key"] = row.AgentKey
		cfg, err := agent.ConfigFromMap(body)
		if err != nil {
			log.Warn("skipping custom agent", "key", row.AgentKey, "error", err)
			continue
		}
		t := tools.NewAgentTool(cfg, st, settings.AgentTimeout, env)
		s.AddTool(t.Definition(), t.Handle)
	}
}

// serverInstructions tells the client model how to pick between agents.
func serverInstructions() string {
	return `You have access to glyx, an MCP server that runs local coding-agent CLIs.

## Agent tools
Each installed agent is exposed as use_<name> (use_claude, use_aider,
use_codex, use_cursor, use_gemini, use_opencode, use_grok, use_deepseek_r1,
use_kimi_k2). All of them take a prompt plus optional model, working_dir and
conversation_id. Call check_agents first to see which CLIs are actually
installed on this machine.

Pick the agent for the job:
- use_claude / use_cursor / use_codex: general coding tasks in a repo
- use_aider: focused edits on specific files (pass files/read_files)
- use_grok / use_deepseek_r1 / use_kimi_k2: alternative models via opencode
- use_gemini: Google's CLI

## Conversations
Every response ends with a conversation_id. Pass it back on the next call
to the same agent to continue with the prior exchange as context. Use
list_sessions and get_session_messages to inspect past conversations.

## Other tools
- orchestrate: chain several agents over one task, each step feeding the next
- create_agent / list_agents / get_agent / delete_agent: manage custom agent CLIs
- save_memory / search_memory: persist facts across sessions
- add: trivial arithmetic, useful as a connectivity check

Agent runs are subprocess executions with a timeout; long tasks may need a
more specific prompt or a larger working_dir scope rather than retries.`
}
