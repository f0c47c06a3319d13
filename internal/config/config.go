// Package config loads application settings from the environment, with an
// optional .env file for local development. API keys and toggles mirror the
// deployment environment: a missing key disables the feature that needs it
// rather than failing startup.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rusq/osenv/v2"
)

// Settings holds every environment-driven knob.
type Settings struct {
	// API keys for model providers used by agent CLIs.
	OpenAIAPIKey     string
	AnthropicAPIKey  string
	OpenRouterAPIKey string

	// Integration keys. Empty disables the integration.
	KnockAPIKey   string
	GitHubToken   string
	LinearAPIKey  string
	LinearWebhook string // webhook secret, verification handled upstream

	// Default models.
	OrchestratorModel string
	AiderModel        string
	GrokModel         string

	// Server and executor.
	HTTPAddr     string
	DBPath       string
	DeviceID     string
	DeviceName   string
	AgentTimeout time.Duration
	PollInterval time.Duration
}

// Load reads settings from the environment. A .env file in the working
// directory is merged in when present (existing env vars win).
func Load() (*Settings, error) {
	_ = godotenv.Load() // optional, missing file is not an error

	home, _ := os.UserHomeDir()
	s := &Settings{
		OpenAIAPIKey:     osenv.Secret("OPENAI_API_KEY", ""),
		AnthropicAPIKey:  osenv.Secret("ANTHROPIC_API_KEY", ""),
		OpenRouterAPIKey: osenv.Secret("OPENROUTER_API_KEY", ""),

		KnockAPIKey:   osenv.Secret("KNOCK_API_KEY", ""),
		GitHubToken:   osenv.Secret("GITHUB_TOKEN", ""),
		LinearAPIKey:  osenv.Secret("LINEAR_API_KEY", ""),
		LinearWebhook: osenv.Secret("LINEAR_WEBHOOK_SECRET", ""),

		OrchestratorModel: osenv.Value("GLYX_ORCHESTRATOR_MODEL", "gpt-5"),
		AiderModel:        osenv.Value("GLYX_AIDER_MODEL", "gpt-5"),
		GrokModel:         osenv.Value("GLYX_GROK_MODEL", "openrouter/x-ai/grok-4-fast"),

		HTTPAddr:     osenv.Value("GLYX_HTTP_ADDR", "127.0.0.1:8787"),
		DBPath:       osenv.Value("GLYX_DB_PATH", filepath.Join(home, ".glyx", "glyx.db")),
		DeviceName:   osenv.Value("GLYX_DEVICE_NAME", hostname()),
		AgentTimeout: duration("GLYX_AGENT_TIMEOUT", 5*time.Minute),
		PollInterval: duration("GLYX_POLL_INTERVAL", 2*time.Second),
	}
	s.DeviceID = loadDeviceID()
	return s, nil
}

// loadDeviceID reads the device identifier from GLYX_DEVICE_ID or from
// ~/.glyx/device_id. Empty means this process accepts no dispatched tasks.
func loadDeviceID() string {
	if id := os.Getenv("GLYX_DEVICE_ID"); id != "" {
		return strings.ToLower(strings.TrimSpace(id))
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	data, err := os.ReadFile(filepath.Join(home, ".glyx", "device_id"))
	if err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(string(data)))
}

// duration parses a duration env var, falling back to def when unset or
// malformed.
func duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "local"
	}
	return h
}
