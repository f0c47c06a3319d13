// Package github wraps the GitHub REST API for task completion comments
// and issue context lookups.
package github

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	gogithub "github.com/google/go-github/v69/github"
)

// Client is a thin wrapper over the go-github SDK. A nil Client is safe:
// every method reports an unconfigured error.
type Client struct {
	gh    *gogithub.Client
	token string
	log   *slog.Logger
}

// Issue is the subset of issue fields agents get as task context.
type Issue struct {
	Number int      `json:"number"`
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	State  string   `json:"state"`
	Author string   `json:"author"`
	URL    string   `json:"url"`
	Labels []string `json:"labels,omitempty"`
}

// New returns a client authenticated with token, or nil when token is
// empty.
func New(token string, log *slog.Logger) *Client {
	if token == "" {
		return nil
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		gh:    gogithub.NewClient(nil).WithAuthToken(token),
		token: token,
		log:   log,
	}
}

// Enabled reports whether the client can make API calls.
func (c *Client) Enabled() bool {
	return c != nil && c.gh != nil
}

// splitRepo splits a "owner/repo" string into its two parts.
func splitRepo(repo string) (string, string, error) {
	parts := strings.SplitN(repo, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo %q: expected owner/repo", repo)
	}
	return parts[0], parts[1], nil
}

// checkRateLimit logs a warning when remaining API calls drop below threshold.
func (c *Client) checkRateLimit(resp *gogithub.Response) {
	if resp == nil {
		return
	}
	if resp.Rate.Remaining < 100 {
		c.log.Warn("github: rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset", resp.Rate.Reset.Time,
		)
	}
}

// GetIssue fetches a single issue by number.
func (c *Client) GetIssue(ctx context.Context, repo string, number int) (*Issue, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("github: not configured")
	}
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}

	result, resp, err := c.gh.Issues.Get(ctx, owner, name, number)
	if err != nil {
		return nil, fmt.Errorf("github: get issue: %w", err)
	}
	c.checkRateLimit(resp)

	out := &Issue{
		Number: result.GetNumber(),
		Title:  result.GetTitle(),
		Body:   result.GetBody(),
		State:  result.GetState(),
		Author: result.GetUser().GetLogin(),
		URL:    result.GetHTMLURL(),
	}
	for _, l := range result.Labels {
		out.Labels = append(out.Labels, l.GetName())
	}
	return out, nil
}

// CreateIssueComment posts a comment on an issue or pull request. Used to
// report task results back to the thread that requested them.
func (c *Client) CreateIssueComment(ctx context.Context, repo string, number int, body string) (string, error) {
	if !c.Enabled() {
		return "", fmt.Errorf("github: not configured")
	}
	owner, name, err := splitRepo(repo)
	if err != nil {
		return "", err
	}

	result, resp, err := c.gh.Issues.CreateComment(ctx, owner, name, number, &gogithub.IssueComment{
		Body: &body,
	})
	if err != nil {
		return "", fmt.Errorf("github: create comment: %w", err)
	}
	c.checkRateLimit(resp)
	return result.GetHTMLURL(), nil
}

// EnvWithToken appends GITHUB_TOKEN and GH_TOKEN to env so child agent
// processes can drive git and gh with the same credentials.
func (c *Client) EnvWithToken(env []string) []string {
	if c == nil || c.token == "" {
		return env
	}
	return append(env,
		"GITHUB_TOKEN="+c.token,
		"GH_TOKEN="+c.token,
	)
}
