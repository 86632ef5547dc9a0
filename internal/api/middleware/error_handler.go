package middleware

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func writeError(c *fiber.Ctx, status int, body ErrorBody) error {
	body.RequestID = requestID(c)
	return c.Status(status).JSON(fiber.Map{"error": body})
}

// requestID returns the id assigned by fiber's requestid middleware.
func requestID(c *fiber.Ctx) string {
	id, _ := c.Locals("requestid").(string)
	return id
}

func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var appErr *domain.AppError
		if errors.As(err, &appErr) {
			body := ErrorBody{Code: appErr.Code, Message: appErr.Message}

			switch {
			case appErr.StatusCode >= 500:
				logger.Error("request failed",
					slog.String("code", appErr.Code),
					slog.String("path", c.Path()),
					slog.String("request_id", requestID(c)),
					slog.Any("error", appErr.Err),
				)
			case appErr.Err != nil && (appErr.StatusCode == fiber.StatusBadRequest || appErr.StatusCode == fiber.StatusUnprocessableEntity):
				// client mistakes are safe to explain
				body.Details = appErr.Err.Error()
			}

			return writeError(c, appErr.StatusCode, body)
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return writeError(c, fiberErr.Code, ErrorBody{Code: "HTTP_ERROR", Message: fiberErr.Message})
		}

		logger.Error("unhandled error",
			slog.Any("error", err),
			slog.String("path", c.Path()),
			slog.String("request_id", requestID(c)),
		)
		return writeError(c, fiber.StatusInternalServerError, ErrorBody{
			Code:    domain.ErrInternal.Code,
			Message: domain.ErrInternal.Message,
		})
	}
}
