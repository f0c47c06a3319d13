// Package linear is a minimal Linear GraphQL client covering the agent
// session surface: acknowledging delegated sessions and posting result
// comments.
package linear

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

const defaultEndpoint = "https://api.linear.app/graphql"

// Client issues GraphQL requests against the Linear API. A nil Client is
// safe: every method reports an unconfigured error.
type Client struct {
	apiKey   string
	endpoint string
	http     *http.Client
	log      *slog.Logger
}

// New returns a client authenticated with apiKey, or nil when apiKey is
// empty.
func New(apiKey string, log *slog.Logger) *Client {
	if apiKey == "" {
		return nil
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		apiKey:   apiKey,
		endpoint: defaultEndpoint,
		http:     &http.Client{Timeout: 15 * time.Second},
		log:      log,
	}
}

// Enabled reports whether the client can make API calls.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type gqlError struct {
	Message string `json:"message"`
}

// do posts one GraphQL operation and decodes the data field into out.
func (c *Client) do(ctx context.Context, query string, vars map[string]any, out any) error {
	if !c.Enabled() {
		return fmt.Errorf("linear: not configured")
	}

	body, err := json.Marshal(gqlRequest{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("linear: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("linear: build request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("linear: request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("linear: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("linear: status %d: %s", resp.StatusCode, raw)
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []gqlError      `json:"errors"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("linear: decode response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("linear: %s", envelope.Errors[0].Message)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("linear: decode data: %w", err)
		}
	}
	return nil
}

// AcknowledgeSession marks an agent session as acknowledged so Linear
// shows the agent as working on the delegated task.
func (c *Client) AcknowledgeSession(ctx context.Context, sessionID string) error {
	const mutation = `
		mutation AckSession($id: String!) {
			agentSessionAcknowledge(agentSessionId: $id) { success }
		}`

	var result struct {
		AgentSessionAcknowledge struct {
			Success bool `json:"success"`
		} `json:"agentSessionAcknowledge"`
	}
	if err := c.do(ctx, mutation, map[string]any{"id": sessionID}, &result); err != nil {
		return err
	}
	if !result.AgentSessionAcknowledge.Success {
		return fmt.Errorf("linear: acknowledge session %s rejected", sessionID)
	}
	return nil
}

// CreateComment posts a markdown comment on an issue.
func (c *Client) CreateComment(ctx context.Context, issueID, body string) error {
	const mutation = `
		mutation CreateComment($issueId: String!, $body: String!) {
			commentCreate(input: {issueId: $issueId, body: $body}) { success }
		}`

	var result struct {
		CommentCreate struct {
			Success bool `json:"success"`
		} `json:"commentCreate"`
	}
	vars := map[string]any{"issueId": issueID, "body": body}
	if err := c.do(ctx, mutation, vars, &result); err != nil {
		return err
	}
	if !result.CommentCreate.Success {
		return fmt.Errorf("linear: comment on %s rejected", issueID)
	}
	return nil
}

// GetIssue fetches issue context for an agent prompt.
func (c *Client) GetIssue(ctx context.Context, issueID string) (*Issue, error) {
	const query = `
		query Issue($id: String!) {
			issue(id: $id) {
				id identifier title description priority url branchName
				state { id name type }
				assignee { id name displayName email }
				team { id key name }
			}
		}`

	var result struct {
		Issue *Issue `json:"issue"`
	}
	if err := c.do(ctx, query, map[string]any{"id": issueID}, &result); err != nil {
		return nil, err
	}
	if result.Issue == nil {
		return nil, fmt.Errorf("linear: issue %s not found", issueID)
	}
	return result.Issue, nil
}
