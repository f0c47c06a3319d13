// Package notify pushes task lifecycle notifications to a Knock workflow
// endpoint. A client built without an API key is a no-op, so callers can
// always hold one without checking configuration first.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	defaultBaseURL = "https://api.knock.app/v1"

	// Workflow keys, one per lifecycle transition.
	WorkflowAgentStart      = "agent-start"
	WorkflowAgentCompleted  = "agent-completed"
	WorkflowAgentError      = "agent-error"
	WorkflowAgentNeedsInput = "agent-needs-input"

	maxSummaryLen = 200
	maxErrorLen   = 500
)

// eventTypes maps workflow keys to the event_type payload field.
var eventTypes = map[string]string{
	WorkflowAgentStart:      "started",
	WorkflowAgentCompleted:  "completed",
	WorkflowAgentError:      "error",
	WorkflowAgentNeedsInput: "needs_input",
}

// Notification describes one lifecycle transition for a task.
type Notification struct {
	Workflow    string
	UserID      string
	TaskID      string
	AgentType   string
	DeviceName  string
	TaskSummary string
	ErrorMsg    string
}

// Client talks to the Knock trigger API.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	log     *slog.Logger
}

// New returns a client. An empty apiKey yields a disabled client whose
// Trigger is a no-op.
func New(apiKey string, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

// Enabled reports whether the client will actually send anything.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// Trigger fires the workflow for n. Failures are logged, not returned,
// since a lost notification must never fail the task that produced it.
func (c *Client) Trigger(ctx context.Context, n Notification) {
	if !c.Enabled() {
		return
	}
	if n.UserID == "" {
		c.log.Debug("notify: skipping, no recipient", "workflow", n.Workflow)
		return
	}

	eventType, ok := eventTypes[n.Workflow]
	if !ok {
		c.log.Warn("notify: unknown workflow", "workflow", n.Workflow)
		return
	}

	data := map[string]any{
		"event_type":   eventType,
		"task_id":      n.TaskID,
		"agent_type":   n.AgentType,
		"device_name":  n.DeviceName,
		"task_summary": truncate(n.TaskSummary, maxSummaryLen),
	}
	if n.ErrorMsg != "" {
		data["error_message"] = truncate(n.ErrorMsg, maxErrorLen)
	}
	if n.Workflow == WorkflowAgentError {
		data["urgency"] = "high"
	}

	body, err := json.Marshal(map[string]any{
		"recipients": []string{n.UserID},
		"data":       data,
	})
	if err != nil {
		c.log.Error("notify: encode payload", "error", err)
		return
	}

	url := fmt.Sprintf("%s/workflows/%s/trigger", c.baseURL, n.Workflow)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		c.log.Error("notify: build request", "error", err)
		return
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("notify: trigger failed", "workflow", n.Workflow, "error", err)
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 300 {
		c.log.Warn("notify: trigger rejected", "workflow", n.Workflow, "status", resp.StatusCode)
		return
	}
	c.log.Debug("notify: triggered", "workflow", n.Workflow, "task", n.TaskID)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
