package handler

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
)

// ControlHandler serves the quit command.
type ControlHandler struct {
	runner ExamRunner
	quit   func()
	logger *slog.Logger
}

func NewControlHandler(runner ExamRunner, quit func(), logger *slog.Logger) *ControlHandler {
	return &ControlHandler{
		runner: runner,
		quit:   quit,
		logger: logger,
	}
}

// Quit POST /v1/quit - stop any running session and shut the server down
func (h *ControlHandler) Quit(c *fiber.Ctx) error {
	if err := h.runner.Stop(); err != nil && !errors.Is(err, domain.ErrNoActiveSession) {
		return err
	}

	h.logger.Info("quit requested")
	if h.quit != nil {
		go h.quit()
	}

	return c.SendStatus(fiber.StatusAccepted)
}
