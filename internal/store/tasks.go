package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// Task status lifecycle: pending → running → completed | failed.
const (
	TaskPending   = "pending"
	TaskRunning   = "running"
	TaskCompleted = "completed"
	TaskFailed    = "failed"
)

// Task is one dispatched agent task row.
type Task struct {
	ID         string          `json:"id"`
	DeviceID   string          `json:"device_id,omitempty"`
	AgentType  string          `json:"agent_type"`
	TaskType   string          `json:"task_type"`
	Payload    json.RawMessage `json:"payload"`
	Status     string          `json:"status"`
	ExitCode   *int            `json:"exit_code,omitempty"`
	Output     string          `json:"output,omitempty"`
	Error      string          `json:"error,omitempty"`
	UserID     string          `json:"user_id,omitempty"`
	DeviceName string          `json:"device_name,omitempty"`
	CreatedAt  string          `json:"created_at"`
	StartedAt  *string         `json:"started_at,omitempty"`
	FinishedAt *string         `json:"finished_at,omitempty"`
}

// TaskPayload is the decoded payload of a prompt task.
type TaskPayload struct {
	Prompt      string `json:"prompt"`
	Model       string `json:"model,omitempty"`
	WorkingDir  string `json:"working_dir,omitempty"`
	Repo        string `json:"repo,omitempty"` // owner/repo for completion comments
	IssueNumber int    `json:"issue_number,omitempty"`
}

// CreateTask inserts a new pending task.
func (s *Store) CreateTask(t *Task) error {
	if t.TaskType == "" {
		t.TaskType = "prompt"
	}
	if len(t.Payload) == 0 {
		t.Payload = json.RawMessage("{}")
	}
	_, err := s.db.Exec(`
		INSERT INTO agent_tasks (id, device_id, agent_type, task_type, payload, status, user_id, device_name)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.DeviceID, t.AgentType, t.TaskType, string(t.Payload), TaskPending, t.UserID, t.DeviceName)
	if err != nil {
		return fmt.Errorf("store: create task: %w", err)
	}
	return nil
}

// GetTask returns a task by id, or sql.ErrNoRows when unknown.
func (s *Store) GetTask(id string) (*Task, error) {
	row := s.db.QueryRow(`
		SELECT id, device_id, agent_type, task_type, payload, status,
		       exit_code, output, error, user_id, device_name,
		       created_at, started_at, finished_at
		FROM agent_tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("store: get task: %w", err)
	}
	return t, nil
}

// ListTasks returns recent tasks, optionally filtered by status.
func (s *Store) ListTasks(status string, limit int) ([]Task, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, device_id, agent_type, task_type, payload, status,
		       exit_code, output, error, user_id, device_name,
		       created_at, started_at, finished_at
		FROM agent_tasks`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list tasks: %w", err)
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan task: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// PendingTasks returns pending tasks targeted at deviceID (or at no
// particular device), oldest first.
func (s *Store) PendingTasks(deviceID string, limit int) ([]Task, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(`
		SELECT id, device_id, agent_type, task_type, payload, status,
		       exit_code, output, error, user_id, device_name,
		       created_at, started_at, finished_at
		FROM agent_tasks
		WHERE status = ? AND (device_id = ? OR device_id = '')
		ORDER BY created_at ASC
		LIMIT ?`, TaskPending, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: pending tasks: %w", err)
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan task: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// ClaimTask flips a pending task to running. Returns false when another
// worker claimed it first.
func (s *Store) ClaimTask(id string) (bool, error) {
	res, err := s.db.Exec(`
		UPDATE agent_tasks
		SET status = ?, started_at = datetime('now')
		WHERE id = ? AND status = ?`,
		TaskRunning, id, TaskPending)
	if err != nil {
		return false, fmt.Errorf("store: claim task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: claim task: %w", err)
	}
	return n == 1, nil
}

// FinishTask records the terminal state of a running task. A nil exitCode
// means the process never produced one (startup failure or timeout).
func (s *Store) FinishTask(id string, exitCode *int, output, errMsg string) error {
	status := TaskCompleted
	if errMsg != "" || exitCode == nil || *exitCode != 0 {
		status = TaskFailed
	}
	var code any
	if exitCode != nil {
		code = *exitCode
	}
	_, err := s.db.Exec(`
		UPDATE agent_tasks
		SET status = ?, exit_code = ?, output = ?, error = ?, finished_at = datetime('now')
		WHERE id = ?`,
		status, code, output, errMsg, id)
	if err != nil {
		return fmt.Errorf("store: finish task: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*Task, error) {
	var (
		t       Task
		payload string
		code    sql.NullInt64
	)
	err := row.Scan(&t.ID, &t.DeviceID, &t.AgentType, &t.TaskType, &payload, &t.Status,
		&code, &t.Output, &t.Error, &t.UserID, &t.DeviceName,
		&t.CreatedAt, &t.StartedAt, &t.FinishedAt)
	if err != nil {
		return nil, err
	}
	t.Payload = json.RawMessage(payload)
	if code.Valid {
		v := int(code.Int64)
		t.ExitCode = &v
	}
	return &t, nil
}
