package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/glyxlabs/glyx/internal/agent"
	"github.com/glyxlabs/glyx/internal/integrations/linear"
	"github.com/glyxlabs/glyx/internal/store"
)

// writeJSON encodes v with the given status.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("encoding response", "error", err)
	}
}

// writeError sends a JSON error body.
func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "persistence is unavailable")
		return false
	}
	return true
}

// handleHealth reports liveness plus which integrations are configured.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"device_id": s.settings.DeviceID,
		"features": map[string]bool{
			"store":  s.store != nil,
			"notify": s.notify.Enabled(),
			"github": s.settings.GitHubToken != "",
			"linear": s.linear.Enabled(),
		},
	})
}

// handleListAgents returns the built-in registry.
func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	type entry struct {
		Key         string `json:"key"`
		Command     string `json:"command"`
		Description string `json:"description,omitempty"`
	}
	var out []entry
	for _, key := range agent.Keys() {
		cfg, err := agent.BuiltinConfig(key)
		if err != nil {
			continue
		}
		out = append(out, entry{Key: string(key), Command: cfg.Command, Description: cfg.Description})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"agents": out})
}

// ExecuteRequest is the payload for synchronous agent execution.
type ExecuteRequest struct {
	Prompt     string `json:"prompt" validate:"required,min=1"`
	Model      string `json:"model,omitempty"`
	WorkingDir string `json:"working_dir,omitempty"`
	TimeoutSec int    `json:"timeout_sec,omitempty" validate:"omitempty,min=1,max=3600"`
}

// handleExecute runs one agent synchronously and returns the result.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	key, ok := agent.Normalize(chi.URLParam(r, "key"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown agent")
		return
	}

	var req ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	a, err := agent.FromKey(key)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	task := agent.Task{"prompt": req.Prompt}
	if req.Model != "" {
		task["model"] = req.Model
	}
	if req.WorkingDir != "" {
		task["working_dir"] = req.WorkingDir
	}
	opts := agent.Options{Timeout: s.settings.AgentTimeout}
	if req.TimeoutSec > 0 {
		opts.Timeout = time.Duration(req.TimeoutSec) * time.Second
	}

	res, err := a.Execute(r.Context(), task, opts)
	switch {
	case errors.Is(err, agent.ErrTimeout):
		s.writeJSON(w, http.StatusGatewayTimeout, map[string]any{
			"error":     "agent timed out",
			"timed_out": true,
			"stdout":    res.Stdout,
			"stderr":    res.Stderr,
		})
		return
	case errors.Is(err, agent.ErrNotFound):
		s.writeError(w, http.StatusBadGateway, "agent binary not installed on this device")
		return
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// CreateTaskRequest is the payload for queueing an asynchronous task.
type CreateTaskRequest struct {
	AgentType  string          `json:"agent_type" validate:"required"`
	DeviceID   string          `json:"device_id,omitempty"`
	DeviceName string          `json:"device_name,omitempty"`
	UserID     string          `json:"user_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// handleCreateTask enqueues a task for an executor to pick up.
func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if _, ok := agent.Normalize(req.AgentType); !ok {
		s.writeError(w, http.StatusUnprocessableEntity, "unknown agent_type")
		return
	}

	task := &store.Task{
		ID:         uuid.NewString(),
		DeviceID:   req.DeviceID,
		DeviceName: req.DeviceName,
		AgentType:  req.AgentType,
		UserID:     req.UserID,
		Payload:    req.Payload,
	}
	if err := s.store.CreateTask(task); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"id": task.ID, "status": store.TaskPending})
}

// handleGetTask returns one task row.
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	task, err := s.store.GetTask(chi.URLParam(r, "id"))
	if err == sql.ErrNoRows {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, task)
}

// handleListTasks returns recent tasks, optionally filtered by ?status=.
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	status := r.URL.Query().Get("status")
	switch status {
	case "", store.TaskPending, store.TaskRunning, store.TaskCompleted, store.TaskFailed:
	default:
		s.writeError(w, http.StatusUnprocessableEntity, "invalid status filter")
		return
	}
	tasks, err := s.store.ListTasks(status, 50)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

// handleEvents returns the feed for ?orchestration_id=.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	id := r.URL.Query().Get("orchestration_id")
	if id == "" {
		s.writeError(w, http.StatusUnprocessableEntity, "orchestration_id is required")
		return
	}
	events, err := s.store.Events(id, 200)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

// handleLinearWebhook accepts Linear deliveries and turns agent session
// events into queued tasks for this device.
func (s *Server) handleLinearWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	ev, err := linear.ParseWebhook(body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !ev.IsAgentSession() {
		// Other deliveries (issue updates etc.) are accepted and dropped.
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	if ev.Prompt == "" {
		s.writeError(w, http.StatusUnprocessableEntity, "agent session event without a prompt")
		return
	}
	if !s.requireStore(w) {
		return
	}

	if s.linear.Enabled() && ev.SessionID != "" {
		if err := s.linear.AcknowledgeSession(r.Context(), ev.SessionID); err != nil {
			s.log.Warn("acknowledging linear session", "session", ev.SessionID, "error", err)
		}
	}

	payload, _ := json.Marshal(store.TaskPayload{Prompt: ev.Prompt})
	task := &store.Task{
		ID:        uuid.NewString(),
		DeviceID:  s.settings.DeviceID,
		AgentType: string(agent.KeyClaude),
		TaskType:  "linear_session",
		Payload:   payload,
	}
	if err := s.store.CreateTask(task); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.log.Info("linear session queued", "task", task.ID, "session", ev.SessionID)
	s.writeJSON(w, http.StatusCreated, map[string]string{"status": "queued", "task_id": task.ID})
}
