// Package api exposes the HTTP surface: agent execution, task queueing,
// event feeds and inbound webhooks.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/glyxlabs/glyx/internal/config"
	"github.com/glyxlabs/glyx/internal/integrations/linear"
	"github.com/glyxlabs/glyx/internal/notify"
	"github.com/glyxlabs/glyx/internal/store"
)

// Server holds the HTTP handler dependencies.
type Server struct {
	settings *config.Settings
	store    *store.Store
	notify   *notify.Client
	linear   *linear.Client
	validate *validator.Validate
	log      *slog.Logger
}

// New builds an API server. store may be nil (task and event routes then
// report 503); notify and linear may be nil (features report disabled).
func New(settings *config.Settings, st *store.Store, nc *notify.Client, lc *linear.Client, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		settings: settings,
		store:    st,
		notify:   nc,
		linear:   lc,
		validate: validator.New(),
		log:      log,
	}
}

// Router assembles the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Minute)) // agent runs are slow

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/agents", s.handleListAgents)
		r.Post("/agents/{key}/execute", s.handleExecute)

		r.Post("/tasks", s.handleCreateTask)
		r.Get("/tasks", s.handleListTasks)
		r.Get("/tasks/{id}", s.handleGetTask)

		r.Get("/events", s.handleEvents)
	})

	r.Post("/webhooks/linear", s.handleLinearWebhook)

	return r
}
