// Package api serves the medication tracker over HTTP and WebSocket.
package api

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/gmsas95/pillpal/internal/config"
	"github.com/gmsas95/pillpal/internal/cron"
	"github.com/gmsas95/pillpal/internal/llm"
	"github.com/gmsas95/pillpal/internal/metrics"
	"github.com/gmsas95/pillpal/internal/notify"
	"github.com/gmsas95/pillpal/internal/store"
	"github.com/gmsas95/pillpal/internal/tracker"
	"github.com/gmsas95/pillpal/internal/visit"
)

// Version is reported by the health endpoint.
var Version = "0.1.0"

// NotificationHistory lists reminders that went out.
type NotificationHistory interface {
	RecentNotifications(ctx context.Context, limit int) ([]store.Notification, error)
}

// JobLister reports scheduled background jobs.
type JobLister interface {
	Entries() []cron.Entry
}

// Deps are the collaborators the server exposes. Tracker is required; the
// rest may be nil and their routes then answer 503.
type Deps struct {
	Tracker    *tracker.Tracker
	Dispatcher *notify.Dispatcher
	Hub        *notify.Hub
	Visits     *visit.Generator
	Providers  *llm.ProviderManager
	History    NotificationHistory
	Jobs       JobLister
	Metrics    *metrics.Metrics
}

// Server handles HTTP API and WebSocket
type Server struct {
	app     *fiber.App
	config  *config.Config
	deps    Deps
	metrics *metrics.Metrics
	logger  *zap.Logger
	started time.Time
}

// New creates a new API server
func New(cfg *config.Config, deps Deps, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.Default()
	}

	app := fiber.New(fiber.Config{
		AppName:               "PillPal",
		ReadTimeout:           time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:          time.Duration(cfg.Server.WriteTimeout) * time.Second,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(logger),
	})

	s := &Server{
		app:     app,
		config:  cfg,
		deps:    deps,
		metrics: m,
		logger:  logger,
		started: time.Now(),
	}

	s.setupRoutes()
	return s
}

// App exposes the underlying fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start starts the HTTP server. It blocks until Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Address, s.config.Server.Port)
	s.logger.Info("API server listening", zap.String("addr", addr))
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.app.ShutdownWithContext(ctx)
}
