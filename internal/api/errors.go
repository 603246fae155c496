package api

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	apperrors "github.com/gmsas95/pillpal/internal/errors"
)

var statusByCode = map[string]int{
	"CONFIG_002": fiber.StatusBadRequest,
	"MED_001":    fiber.StatusNotFound,
	"MED_002":    fiber.StatusBadRequest,
	"DOSE_001":   fiber.StatusNotFound,
	"DOSE_002":   fiber.StatusBadRequest,
	"LLM_001":    fiber.StatusServiceUnavailable,
	"LLM_002":    fiber.StatusBadGateway,
	"LLM_003":    fiber.StatusTooManyRequests,
	"LLM_004":    fiber.StatusBadGateway,
	"CHAN_001":   fiber.StatusServiceUnavailable,
	"CHAN_002":   fiber.StatusBadGateway,
	"AUTH_001":   fiber.StatusUnauthorized,
	"AUTH_002":   fiber.StatusForbidden,
	"GEN_001":    fiber.StatusNotFound,
	"GEN_002":    fiber.StatusBadRequest,
}

// errorHandler renders handler errors as {"error", "code", "detail"}.
func errorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
		}

		var appErr *apperrors.AppError
		if !errors.As(err, &appErr) {
			logger.Error("Unhandled API error",
				zap.String("path", c.Path()),
				zap.Error(err),
			)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "internal error",
				"code":  apperrors.ErrInternal.Code,
			})
		}

		status, ok := statusByCode[appErr.Code]
		if !ok {
			status = fiber.StatusInternalServerError
		}
		if status >= fiber.StatusInternalServerError {
			logger.Warn("API request failed",
				zap.String("path", c.Path()),
				zap.String("code", appErr.Code),
				zap.Error(err),
			)
		}

		body := fiber.Map{"error": appErr.Message, "code": appErr.Code}
		if appErr.Cause != nil {
			body["detail"] = strings.TrimSpace(appErr.Cause.Error())
		}
		return c.Status(status).JSON(body)
	}
}
