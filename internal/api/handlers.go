package api

import (
	"crypto/subtle"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/gmsas95/pillpal/internal/cron"
	"github.com/gmsas95/pillpal/internal/doses"
	apperrors "github.com/gmsas95/pillpal/internal/errors"
	"github.com/gmsas95/pillpal/internal/llm"
	"github.com/gmsas95/pillpal/internal/store"
	"github.com/gmsas95/pillpal/internal/tracker"
	"github.com/gmsas95/pillpal/internal/visit"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 500
)

// doseView is a dose with the medication fields a client renders next to it.
type doseView struct {
	doses.Dose
	MedicationName string `json:"medicationName"`
	Dosage         string `json:"dosage"`
}

type adherenceView struct {
	doses.Adherence
	Summary string `json:"summary"`
}

func (s *Server) view(d doses.Dose) doseView {
	v := doseView{Dose: d}
	if m, ok := s.deps.Tracker.Medication(d.MedicationID); ok {
		v.MedicationName = m.Name
		v.Dosage = m.Dosage
	}
	return v
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	resp := fiber.Map{
		"status":    "healthy",
		"version":   Version,
		"timestamp": time.Now().Unix(),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"metrics":   s.metrics.Snapshot(),
	}
	if s.deps.Hub != nil {
		resp["websocket_clients"] = s.deps.Hub.Clients()
	}
	return c.JSON(resp)
}

func (s *Server) handleLogin(c *fiber.Ctx) error {
	var req struct {
		Password string `json:"password"`
	}

	if err := c.BodyParser(&req); err != nil {
		return apperrors.ErrBadRequest.WithCause(err)
	}

	if pw := s.config.Security.AdminPassword; pw != "" &&
		subtle.ConstantTimeCompare([]byte(req.Password), []byte(pw)) != 1 {
		return apperrors.ErrUnauthorized.WithMessage("invalid password")
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "default",
		"iat": now.Unix(),
		"exp": now.Add(7 * 24 * time.Hour).Unix(),
	})

	tokenString, err := token.SignedString([]byte(s.config.Security.JWTSecret))
	if err != nil {
		return apperrors.ErrInternal.WithMessage("failed to generate token")
	}

	return c.JSON(fiber.Map{"token": tokenString})
}

// ==================== Medications ====================

func (s *Server) handleListMedications(c *fiber.Ctx) error {
	meds := s.deps.Tracker.Medications()
	if meds == nil {
		meds = []doses.Medication{}
	}
	return c.JSON(meds)
}

func (s *Server) handleGetMedication(c *fiber.Ctx) error {
	m, ok := s.deps.Tracker.Medication(c.Params("id"))
	if !ok {
		return apperrors.ErrMedicationNotFound.WithMessage("medication %s not found", c.Params("id"))
	}
	return c.JSON(m)
}

func (s *Server) handleCreateMedication(c *fiber.Ctx) error {
	var in tracker.MedicationInput
	if err := c.BodyParser(&in); err != nil {
		return apperrors.ErrMedicationInvalid.WithCause(err)
	}

	m, err := s.deps.Tracker.AddMedication(c.UserContext(), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(m)
}

func (s *Server) handleDeleteMedication(c *fiber.Ctx) error {
	if err := s.deps.Tracker.DeleteMedication(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ==================== Doses ====================

func (s *Server) handleTodayDoses(c *fiber.Ctx) error {
	today := s.deps.Tracker.TodayDoses()
	views := make([]doseView, 0, len(today))
	for _, d := range today {
		views = append(views, s.view(d))
	}
	return c.JSON(views)
}

func (s *Server) handleSetDoseStatus(c *fiber.Ctx) error {
	var req struct {
		Status doses.Status `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return apperrors.ErrDoseStatusInvalid.WithCause(err)
	}

	id := c.Params("id")
	d, applied, err := s.deps.Tracker.SetDoseStatus(c.UserContext(), id, req.Status)
	if err != nil {
		return err
	}
	if !applied {
		return apperrors.ErrDoseNotFound.WithMessage("dose %s not found", id)
	}
	return c.JSON(s.view(d))
}

// ==================== Adherence ====================

func (s *Server) handleAdherence(c *fiber.Ctx) error {
	a := s.deps.Tracker.Adherence()
	return c.JSON(adherenceView{Adherence: a, Summary: a.Summary()})
}

func (s *Server) handleAdherenceByMedication(c *fiber.Ctx) error {
	return c.JSON(s.deps.Tracker.AdherenceByMedication())
}

// ==================== Doctor visit ====================

func (s *Server) handleDoctorVisit(c *fiber.Ctx) error {
	var req struct {
		HealthDetails string `json:"healthDetails"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.ErrBadRequest.WithCause(err)
		}
	}

	if s.deps.Visits == nil {
		return apperrors.ErrProviderNotConfigured
	}

	in := visit.BuildInput(s.deps.Tracker.Adherence(), s.deps.Tracker.Medications(), req.HealthDetails)
	out, err := s.deps.Visits.Generate(c.UserContext(), in)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"input":     in,
		"prompt":    out.Prompt,
		"questions": visit.Questions(out.Prompt),
	})
}

func (s *Server) handleProviders(c *fiber.Ctx) error {
	if s.deps.Providers == nil {
		return c.JSON([]llm.ProviderStatus{})
	}
	return c.JSON(s.deps.Providers.GetProviderStatus())
}

// ==================== Notifications ====================

func (s *Server) handlePermission(c *fiber.Ctx) error {
	if s.deps.Dispatcher == nil {
		return apperrors.ErrChannelNotConfigured
	}
	ctx := c.UserContext()
	return c.JSON(fiber.Map{
		"permission": s.deps.Dispatcher.Permission(ctx),
		"channels":   s.deps.Dispatcher.Permissions(ctx),
	})
}

func (s *Server) handleNotifications(c *fiber.Ctx) error {
	if s.deps.History == nil {
		return c.JSON([]store.Notification{})
	}

	limit := c.QueryInt("limit", defaultNotificationLimit)
	if limit <= 0 || limit > maxNotificationLimit {
		limit = defaultNotificationLimit
	}

	list, err := s.deps.History.RecentNotifications(c.UserContext(), limit)
	if err != nil {
		return apperrors.ErrStoreLoad.WithCause(err)
	}
	if list == nil {
		list = []store.Notification{}
	}
	return c.JSON(list)
}

func (s *Server) handleJobs(c *fiber.Ctx) error {
	if s.deps.Jobs == nil {
		return c.JSON([]cron.Entry{})
	}
	return c.JSON(s.deps.Jobs.Entries())
}
