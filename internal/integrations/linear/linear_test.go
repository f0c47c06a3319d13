package linear

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := New("lin_api_key", nil)
	c.endpoint = srv.URL
	return c
}

func TestAcknowledgeSession(t *testing.T) {
	var gotAuth string
	var gotReq gqlRequest
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.Write([]byte(`{"data":{"agentSessionAcknowledge":{"success":true}}}`))
	})

	if err := c.AcknowledgeSession(context.Background(), "sess-42"); err != nil {
		t.Fatalf("AcknowledgeSession: %v", err)
	}
	if gotAuth != "lin_api_key" {
		t.Errorf("auth = %q", gotAuth)
	}
	if gotReq.Variables["id"] != "sess-42" {
		t.Errorf("variables = %v", gotReq.Variables)
	}
}

func TestCreateComment_GraphQLError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errors":[{"message":"issue not found"}]}`))
	})

	err := c.CreateComment(context.Background(), "bad-issue", "done")
	if err == nil || err.Error() != "linear: issue not found" {
		t.Errorf("err = %v", err)
	}
}

func TestGetIssue(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"issue":{
			"id":"iss-1","identifier":"ENG-12","title":"Fix login",
			"description":"users cannot sign in","priority":1,
			"url":"https://linear.app/x/issue/ENG-12","branchName":"eng-12-fix-login",
			"state":{"id":"s1","name":"In Progress","type":"started"},
			"assignee":{"id":"u1","name":"sam","displayName":"Sam","email":"sam@x.dev"},
			"team":{"id":"t1","key":"ENG","name":"Engineering"}}}}`))
	})

	issue, err := c.GetIssue(context.Background(), "iss-1")
	if err != nil {
		t.Fatalf("GetIssue: %v", err)
	}
	if issue.Identifier != "ENG-12" || issue.State.Type != "started" {
		t.Errorf("issue = %+v", issue)
	}
	if issue.Team.Key != "ENG" {
		t.Errorf("team = %+v", issue.Team)
	}
}

func TestNilClient(t *testing.T) {
	var c *Client
	if c.Enabled() {
		t.Error("nil client should be disabled")
	}
	if err := c.CreateComment(context.Background(), "i", "b"); err == nil {
		t.Error("nil client should error")
	}
}

func TestParseWebhook_AgentSession(t *testing.T) {
	body := []byte(`{
		"type": "AgentSessionEvent",
		"action": "created",
		"workspaceId": "ws-1",
		"organizationId": "org-1",
		"agentSession": {"id": "sess-9", "issue": {"id": "iss-3"}},
		"data": {"task": "  add retry logic  "}
	}`)

	ev, err := ParseWebhook(body)
	if err != nil {
		t.Fatalf("ParseWebhook: %v", err)
	}
	if !ev.IsAgentSession() {
		t.Error("expected agent session event")
	}
	if ev.SessionID != "sess-9" || ev.IssueID != "iss-3" {
		t.Errorf("event = %+v", ev)
	}
	if ev.Prompt != "add retry logic" {
		t.Errorf("prompt = %q", ev.Prompt)
	}
}

func TestParseWebhook_LegacyEnvelope(t *testing.T) {
	body := []byte(`{
		"_event": "AgentSessionEvent",
		"action": "prompted",
		"data": {"sessionId": "sess-2", "description": "write docs", "issue": {"id": "iss-7"}}
	}`)

	ev, err := ParseWebhook(body)
	if err != nil {
		t.Fatalf("ParseWebhook: %v", err)
	}
	if ev.Type != "AgentSessionEvent" || !ev.IsAgentSession() {
		t.Errorf("event = %+v", ev)
	}
	if ev.SessionID != "sess-2" || ev.Prompt != "write docs" || ev.IssueID != "iss-7" {
		t.Errorf("event = %+v", ev)
	}
}

func TestParseWebhook_Errors(t *testing.T) {
	if _, err := ParseWebhook([]byte(`not json`)); err == nil {
		t.Error("malformed body should fail")
	}
	if _, err := ParseWebhook([]byte(`{}`)); err == nil {
		t.Error("missing event type should fail")
	}
	ev, err := ParseWebhook([]byte(`{"type": "Issue", "action": "update"}`))
	if err != nil {
		t.Fatal(err)
	}
	if ev.IsAgentSession() {
		t.Error("issue update is not an agent session")
	}
}
