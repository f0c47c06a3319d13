// glyx: composable coding-agent MCP server
//
// Exposes locally installed coding-agent CLIs (claude, aider, codex,
// cursor, gemini, opencode and friends) to any MCP client through one
// uniform tool surface, with conversation memory, a task queue and an
// HTTP API.
//
// Usage:
//
//	glyx serve              # MCP server on stdio
//	glyx api                # HTTP API + local task executor
//	glyx exec <agent> ...   # one-shot agent run from the shell
//	glyx update             # self-update to the latest release
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"

	"github.com/glyxlabs/glyx/internal/agent"
	"github.com/glyxlabs/glyx/internal/api"
	"github.com/glyxlabs/glyx/internal/config"
	"github.com/glyxlabs/glyx/internal/executor"
	"github.com/glyxlabs/glyx/internal/integrations/github"
	"github.com/glyxlabs/glyx/internal/integrations/linear"
	"github.com/glyxlabs/glyx/internal/notify"
	glyxserver "github.com/glyxlabs/glyx/internal/server"
	"github.com/glyxlabs/glyx/internal/store"
	"github.com/glyxlabs/glyx/internal/updater"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := runServe(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "api":
		if err := runAPI(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "exec":
		os.Exit(runExec(os.Args[2:]))
	case "update":
		runUpdate()
	case "--help", "-h", "help":
		printUsage()
	case "--version", "-v", "version":
		fmt.Printf("glyx v%s\n", glyxserver.Version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// runServe starts the MCP server on stdio. All logging goes to stderr;
// stdout belongs to the MCP transport.
func runServe() error {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(log)

	settings, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	s, cleanup, err := glyxserver.New(settings, log)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer cleanup()

	go notifyOnUpdate()

	return mcpserver.ServeStdio(s)
}

// runAPI starts the HTTP API together with the local task executor.
func runAPI() error {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(log)

	settings, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	st, err := store.Open(settings.DBPath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	nc := notify.New(settings.KnockAPIKey, log)
	gh := github.New(settings.GitHubToken, log)
	lc := linear.New(settings.LinearAPIKey, log)

	srv := &http.Server{
		Addr:              settings.HTTPAddr,
		Handler:           api.New(settings, st, nc, lc, log).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	exec := executor.New(settings, st, nc, gh, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http api listening", "addr", settings.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := exec.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// runExec runs one agent from the shell and prints its output. Exit
// codes: the agent's own on success, 124 on timeout, 127 when the agent
// binary is missing.
func runExec(args []string) int {
	fs := flag.NewFlagSet("exec", flag.ExitOnError)
	var (
		prompt     = fs.String("p", "", "prompt to send to the agent")
		model      = fs.String("model", "", "override the agent's default model")
		workingDir = fs.String("dir", "", "working directory for the agent")
		timeout    = fs.Duration("timeout", 0, "execution timeout (default 5m)")
	)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: glyx exec <agent> -p <prompt> [-model m] [-dir d] [-timeout t]\n\n")
		fs.PrintDefaults()
	}

	if len(args) < 1 {
		fs.Usage()
		return 2
	}
	key, ok := agent.Normalize(args[0])
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown agent %q. Known agents:", args[0])
		for _, k := range agent.Keys() {
			fmt.Fprintf(os.Stderr, " %s", k)
		}
		fmt.Fprintln(os.Stderr)
		return 2
	}
	_ = fs.Parse(args[1:])
	if *prompt == "" {
		fs.Usage()
		return 2
	}

	a, err := agent.FromKey(key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	task := agent.Task{"prompt": *prompt}
	if *model != "" {
		task["model"] = *model
	}
	if *workingDir != "" {
		task["working_dir"] = *workingDir
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := agent.Options{
		Timeout: *timeout,
		OnLine: func(stream, line string) {
			if stream == "stderr" {
				fmt.Fprintln(os.Stderr, line)
			} else {
				fmt.Println(line)
			}
		},
	}
	res, err := a.Execute(ctx, task, opts)
	switch {
	case errors.Is(err, agent.ErrTimeout):
		fmt.Fprintf(os.Stderr, "Error: %s timed out after %s\n", key, res.Duration.Round(time.Second))
		return 124
	case errors.Is(err, agent.ErrNotFound):
		fmt.Fprintf(os.Stderr, "Error: %v\nInstall the CLI or run 'glyx serve' and use check_agents.\n", err)
		return 127
	case err != nil:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return res.ExitCode
}

// notifyOnUpdate prints a stderr notice when a newer release exists.
// Best-effort; runs in a goroutine during "serve".
func notifyOnUpdate() {
	result := updater.CheckVersion(glyxserver.Version)
	if result.UpdateAvailable {
		fmt.Fprintf(os.Stderr,
			"\nUpdate available: v%s -> v%s (run: glyx update)\n%s\n\n",
			result.CurrentVersion, result.LatestVersion, result.ReleaseURL)
	}
}

// runUpdate performs a self-update to the latest release.
func runUpdate() {
	fmt.Fprintln(os.Stderr, "Checking for updates...")
	result := updater.CheckVersion(glyxserver.Version)
	if !result.UpdateAvailable {
		fmt.Fprintf(os.Stderr, "Already at the latest version (v%s)\n", result.CurrentVersion)
		return
	}
	fmt.Fprintf(os.Stderr, "Updating v%s -> v%s...\n", result.CurrentVersion, result.LatestVersion)
	if err := updater.SelfUpdate(glyxserver.Version); err != nil {
		fmt.Fprintf(os.Stderr, "Update failed: %v\nDownload manually from %s\n", err, result.ReleaseURL)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "Updated to v%s. Restart glyx to use the new version.\n", result.LatestVersion)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `glyx v%s — composable coding-agent MCP server

Usage:
  glyx serve                    Start the MCP server (stdio transport)
  glyx api                      Start the HTTP API and task executor
  glyx exec <agent> -p <text>   Run one agent and print its output
  glyx update                   Self-update to the latest release
  glyx version                  Print the version

Environment:
  GLYX_DB_PATH        sqlite database path (default ~/.glyx/glyx.db)
  GLYX_HTTP_ADDR      api listen address (default 127.0.0.1:8787)
  GLYX_DEVICE_ID      device identity for the task queue
  GLYX_AGENT_TIMEOUT  per-run timeout (default 5m)
  ANTHROPIC_API_KEY, OPENAI_API_KEY, OPENROUTER_API_KEY
                      forwarded to agent subprocesses
  KNOCK_API_KEY, GITHUB_TOKEN, LINEAR_API_KEY
                      enable the respective integrations
`, glyxserver.Version)
}
