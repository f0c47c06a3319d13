// Package executor runs queued agent tasks on this device. It polls the
// store for pending work, claims tasks so concurrent executors never
// double-run one, and reports results through the store, notifications
// and optional GitHub comments.
package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/glyxlabs/glyx/internal/agent"
	"github.com/glyxlabs/glyx/internal/config"
	"github.com/glyxlabs/glyx/internal/integrations/github"
	"github.com/glyxlabs/glyx/internal/notify"
	"github.com/glyxlabs/glyx/internal/store"
)

// Executor polls for and runs tasks targeted at one device.
type Executor struct {
	settings *config.Settings
	store    *store.Store
	notify   *notify.Client
	github   *github.Client
	log      *slog.Logger
}

// New builds an executor. notify and gh may be nil.
func New(settings *config.Settings, st *store.Store, nc *notify.Client, gh *github.Client, log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{settings: settings, store: st, notify: nc, github: gh, log: log}
}

// Run polls until ctx is cancelled. One task runs at a time; the poll
// loop and any auxiliary work share an errgroup so shutdown is joint.
func (e *Executor) Run(ctx context.Context) error {
	if e.store == nil {
		return fmt.Errorf("executor: store is required")
	}
	interval := e.settings.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		e.log.Info("executor started",
			"device", e.settings.DeviceID, "poll_interval", interval)
		for {
			select {
			case <-ctx.Done():
				e.log.Info("executor stopping")
				return ctx.Err()
			case <-ticker.C:
				e.drainPending(ctx)
			}
		}
	})
	return g.Wait()
}

// drainPending claims and runs every currently pending task in turn.
func (e *Executor) drainPending(ctx context.Context) {
	tasks, err := e.store.PendingTasks(e.settings.DeviceID, 10)
	if err != nil {
		e.log.Error("polling tasks", "error", err)
		return
	}
	for i := range tasks {
		if ctx.Err() != nil {
			return
		}
		task := &tasks[i]
		claimed, err := e.store.ClaimTask(task.ID)
		if err != nil {
			e.log.Error("claiming task", "task", task.ID, "error", err)
			continue
		}
		if !claimed {
			continue // another executor got it first
		}
		e.runTask(ctx, task)
	}
}

// runTask executes one claimed task end to end.
func (e *Executor) runTask(ctx context.Context, task *store.Task) {
	log := e.log.With("task", task.ID, "agent", task.AgentType)
	log.Info("task started")

	var payload store.TaskPayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		e.finish(task, nil, "", fmt.Sprintf("invalid payload: %v", err))
		return
	}

	key, ok := agent.Normalize(task.AgentType)
	if !ok {
		e.finish(task, nil, "", fmt.Sprintf("unknown agent type %q", task.AgentType))
		return
	}

	e.trigger(ctx, notify.WorkflowAgentStart, task, payload, "")

	a, err := agent.FromKey(key)
	if err != nil {
		e.finish(task, nil, "", err.Error())
		e.trigger(ctx, notify.WorkflowAgentError, task, payload, err.Error())
		return
	}

	prompt := payload.Prompt
	if payload.Repo != "" && payload.IssueNumber > 0 && e.github.Enabled() {
		if issue, err := e.github.GetIssue(ctx, payload.Repo, payload.IssueNumber); err == nil {
			prompt = fmt.Sprintf("GitHub issue #%d: %s\n\n%s\n\nTask: %s",
				issue.Number, issue.Title, issue.Body, payload.Prompt)
		} else {
			log.Warn("fetching issue context", "error", err)
		}
	}

	at := agent.Task{"prompt": prompt}
	if payload.Model != "" {
		at["model"] = payload.Model
	}
	if payload.WorkingDir != "" {
		at["working_dir"] = payload.WorkingDir
	}

	opts := agent.Options{Timeout: e.settings.AgentTimeout}
	opts.Env = e.github.EnvWithToken(opts.Env)

	res, err := a.Execute(ctx, at, opts)
	switch {
	case errors.Is(err, agent.ErrTimeout):
		e.finish(task, nil, res.Output(), "agent timed out")
		e.trigger(ctx, notify.WorkflowAgentError, task, payload, "agent timed out")
		log.Warn("task timed out", "duration", res.Duration)
	case errors.Is(err, agent.ErrNotFound):
		msg := fmt.Sprintf("agent binary not installed: %v", err)
		e.finish(task, nil, "", msg)
		e.trigger(ctx, notify.WorkflowAgentError, task, payload, msg)
		log.Error("agent missing")
	case err != nil:
		e.finish(task, nil, "", err.Error())
		e.trigger(ctx, notify.WorkflowAgentError, task, payload, err.Error())
		log.Error("task failed", "error", err)
	default:
		e.finish(task, &res.ExitCode, res.Output(), "")
		if res.Success() {
			e.trigger(ctx, notify.WorkflowAgentCompleted, task, payload, "")
			e.reportToGitHub(ctx, task, payload, res.Output())
			log.Info("task completed", "duration", res.Duration)
		} else {
			e.trigger(ctx, notify.WorkflowAgentError, task, payload,
				fmt.Sprintf("exit code %d", res.ExitCode))
			log.Warn("task exited nonzero", "exit_code", res.ExitCode)
		}
	}
}

func (e *Executor) finish(task *store.Task, exitCode *int, output, errMsg string) {
	if err := e.store.FinishTask(task.ID, exitCode, output, errMsg); err != nil {
		e.log.Error("recording task result", "task", task.ID, "error", err)
	}
}

func (e *Executor) trigger(ctx context.Context, workflow string, task *store.Task, payload store.TaskPayload, errMsg string) {
	e.notify.Trigger(ctx, notify.Notification{
		Workflow:    workflow,
		UserID:      task.UserID,
		TaskID:      task.ID,
		AgentType:   task.AgentType,
		DeviceName:  e.settings.DeviceName,
		TaskSummary: payload.Prompt,
		ErrorMsg:    errMsg,
	})
}

// reportToGitHub posts the task output back to the issue that requested
// it, when the payload names one.
func (e *Executor) reportToGitHub(ctx context.Context, task *store.Task, payload store.TaskPayload, output string) {
	if payload.Repo == "" || payload.IssueNumber <= 0 || !e.github.Enabled() {
		return
	}
	body := output
	if len(body) > 60_000 {
		body = body[:60_000] + "\n\n... (truncated)"
	}
	comment := fmt.Sprintf("**%s** finished task `%s`:\n\n%s", task.AgentType, task.ID, body)
	if _, err := e.github.CreateIssueComment(ctx, payload.Repo, payload.IssueNumber, comment); err != nil {
		e.log.Warn("posting completion comment", "task", task.ID, "error", err)
	}
}
