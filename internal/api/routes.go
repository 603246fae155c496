package api

import (
	"strings"

	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/gmsas95/pillpal/internal/notify"
)

func (s *Server) setupRoutes() {
	s.app.Use(recover.New())
	s.app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
		Output: zapWriter{s.logger},
	}))
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(s.config.Security.AllowOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, DELETE, OPTIONS",
	}))

	s.app.Get("/api/health", s.handleHealth)
	s.app.Get("/metrics", adaptor.HTTPHandler(s.metrics.Handler()))

	api := s.app.Group("/api")

	api.Post("/auth/login", s.handleLogin)

	protected := api.Use(s.authMiddleware())

	protected.Get("/medications", s.handleListMedications)
	protected.Post("/medications", s.handleCreateMedication)
	protected.Get("/medications/:id", s.handleGetMedication)
	protected.Delete("/medications/:id", s.handleDeleteMedication)

	protected.Get("/doses/today", s.handleTodayDoses)
	protected.Post("/doses/:id/status", s.handleSetDoseStatus)

	protected.Get("/adherence", s.handleAdherence)
	protected.Get("/adherence/medications", s.handleAdherenceByMedication)

	protected.Post("/doctor-visit", s.handleDoctorVisit)
	protected.Get("/providers", s.handleProviders)

	protected.Get("/notifications/permission", s.handlePermission)
	protected.Get("/notifications", s.handleNotifications)
	protected.Get("/jobs", s.handleJobs)

	if s.deps.Hub != nil && s.config.Notifications.WebSocket.Enabled {
		s.app.Get("/ws", notify.Upgrade, s.authMiddleware(), s.deps.Hub.Handler())
	}
}
