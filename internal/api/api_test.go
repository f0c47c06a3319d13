package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/glyxlabs/glyx/internal/config"
	"github.com/glyxlabs/glyx/internal/store"
)

func testServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "glyx.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	settings := &config.Settings{
		DeviceID:     "dev-test",
		AgentTimeout: 30 * time.Second,
	}
	return New(settings, st, nil, nil, nil), st
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealth(t *testing.T) {
	s, _ := testServer(t)
	rec := doJSON(t, s.Router(), http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "ok" || body["device_id"] != "dev-test" {
		t.Errorf("body = %v", body)
	}
	features, _ := body["features"].(map[string]any)
	if features["store"] != true {
		t.Errorf("features = %v", features)
	}
	if features["notify"] != false || features["linear"] != false {
		t.Errorf("unconfigured integrations should be false: %v", features)
	}
}

func TestListAgents(t *testing.T) {
	s, _ := testServer(t)
	rec := doJSON(t, s.Router(), http.MethodGet, "/api/agents", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"claude"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestExecute_Validation(t *testing.T) {
	s, _ := testServer(t)
	r := s.Router()

	rec := doJSON(t, r, http.MethodPost, "/api/agents/nope/execute", map[string]any{"prompt": "hi"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown agent status = %d", rec.Code)
	}

	rec = doJSON(t, r, http.MethodPost, "/api/agents/claude/execute", map[string]any{})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("missing prompt status = %d", rec.Code)
	}

	rec = doJSON(t, r, http.MethodPost, "/api/agents/claude/execute",
		map[string]any{"prompt": "hi", "timeout_sec": 999999})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("oversize timeout status = %d", rec.Code)
	}
}

func TestTaskRoutes(t *testing.T) {
	s, st := testServer(t)
	r := s.Router()

	rec := doJSON(t, r, http.MethodPost, "/api/tasks", map[string]any{
		"agent_type": "claude-code",
		"payload":    map[string]any{"prompt": "fix it"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	id, _ := decodeBody(t, rec)["id"].(string)
	if id == "" {
		t.Fatal("no task id returned")
	}

	rec = doJSON(t, r, http.MethodGet, "/api/tasks/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	if got := decodeBody(t, rec)["status"]; got != "pending" {
		t.Errorf("task status = %v", got)
	}

	rec = doJSON(t, r, http.MethodGet, "/api/tasks?status=pending", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), id) {
		t.Errorf("list = %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, r, http.MethodGet, "/api/tasks?status=bogus", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad filter status = %d", rec.Code)
	}

	rec = doJSON(t, r, http.MethodGet, "/api/tasks/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing task status = %d", rec.Code)
	}

	// Unknown agent type is rejected before insert.
	rec = doJSON(t, r, http.MethodPost, "/api/tasks", map[string]any{"agent_type": "hal9000"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("unknown agent_type status = %d", rec.Code)
	}

	pending, err := st.PendingTasks("", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Errorf("pending = %d, want 1", len(pending))
	}
}

func TestEvents_RequiresOrchestrationID(t *testing.T) {
	s, st := testServer(t)
	r := s.Router()

	rec := doJSON(t, r, http.MethodGet, "/api/events", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d", rec.Code)
	}

	if _, err := st.AddEvent(&store.Event{OrchestrationID: "o1", Type: "message", Content: "hi"}); err != nil {
		t.Fatal(err)
	}
	rec = doJSON(t, r, http.MethodGet, "/api/events?orchestration_id=o1", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"hi"`) {
		t.Errorf("events = %d %s", rec.Code, rec.Body.String())
	}
}

func TestLinearWebhook(t *testing.T) {
	s, st := testServer(t)
	r := s.Router()

	// Non-session deliveries are accepted and ignored.
	rec := doJSON(t, r, http.MethodPost, "/webhooks/linear", map[string]any{
		"type": "Issue", "action": "update",
	})
	if rec.Code != http.StatusOK || decodeBody(t, rec)["status"] != "ignored" {
		t.Errorf("issue update = %d %s", rec.Code, rec.Body.String())
	}

	// Agent session events queue a task for this device.
	rec = doJSON(t, r, http.MethodPost, "/webhooks/linear", map[string]any{
		"type":   "AgentSessionEvent",
		"action": "created",
		"agentSession": map[string]any{
			"id":    "sess-1",
			"issue": map[string]any{"id": "iss-1"},
		},
		"data": map[string]any{"task": "triage the bug"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("session event = %d %s", rec.Code, rec.Body.String())
	}
	taskID, _ := decodeBody(t, rec)["task_id"].(string)
	task, err := st.GetTask(taskID)
	if err != nil {
		t.Fatal(err)
	}
	if task.TaskType != "linear_session" || task.DeviceID != "dev-test" {
		t.Errorf("task = %+v", task)
	}
	if !strings.Contains(string(task.Payload), "triage the bug") {
		t.Errorf("payload = %s", task.Payload)
	}

	// Session events without a prompt are rejected.
	rec = doJSON(t, r, http.MethodPost, "/webhooks/linear", map[string]any{
		"type": "AgentSessionEvent", "action": "created",
		"agentSession": map[string]any{"id": "sess-2"},
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("promptless session = %d", rec.Code)
	}

	// Malformed body.
	req := httptest.NewRequest(http.MethodPost, "/webhooks/linear", strings.NewReader("not json"))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("malformed body = %d", rr.Code)
	}
}
