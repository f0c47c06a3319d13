package github

import (
	"context"
	"testing"
)

func TestSplitRepo(t *testing.T) {
	tests := []struct {
		in        string
		owner     string
		name      string
		expectErr bool
	}{
		{in: "glyxlabs/glyx", owner: "glyxlabs", name: "glyx"},
		{in: "a/b/c", owner: "a", name: "b/c"},
		{in: "norepo", expectErr: true},
		{in: "/dangling", expectErr: true},
		{in: "dangling/", expectErr: true},
		{in: "", expectErr: true},
	}
	for _, tt := range tests {
		owner, name, err := splitRepo(tt.in)
		if tt.expectErr {
			if err == nil {
				t.Errorf("splitRepo(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("splitRepo(%q): %v", tt.in, err)
			continue
		}
		if owner != tt.owner || name != tt.name {
			t.Errorf("splitRepo(%q) = (%q, %q)", tt.in, owner, name)
		}
	}
}

func TestNew_EmptyToken(t *testing.T) {
	c := New("", nil)
	if c != nil {
		t.Fatal("expected nil client for empty token")
	}
	if c.Enabled() {
		t.Error("nil client should not be enabled")
	}
	if _, err := c.GetIssue(context.Background(), "o/r", 1); err == nil {
		t.Error("nil client GetIssue should error")
	}
	if _, err := c.CreateIssueComment(context.Background(), "o/r", 1, "hi"); err == nil {
		t.Error("nil client CreateIssueComment should error")
	}
}

func TestEnvWithToken(t *testing.T) {
	base := []string{"PATH=/usr/bin"}

	var nilClient *Client
	if got := nilClient.EnvWithToken(base); len(got) != 1 {
		t.Errorf("nil client env = %v", got)
	}

	c := New("ghp_abc", nil)
	got := c.EnvWithToken(base)
	if len(got) != 3 {
		t.Fatalf("env = %v", got)
	}
	if got[1] != "GITHUB_TOKEN=ghp_abc" || got[2] != "GH_TOKEN=ghp_abc" {
		t.Errorf("env = %v", got)
	}
}
