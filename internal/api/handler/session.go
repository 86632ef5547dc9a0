package handler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
	"github.com/saturnino-fabrica-de-software/proctor/internal/enroll"
	"github.com/saturnino-fabrica-de-software/proctor/internal/exam"
	"github.com/saturnino-fabrica-de-software/proctor/internal/session"
)

// ExamRunner is implemented by *exam.Runner.
type ExamRunner interface {
	StartPhases(ctx context.Context, subject string, phases ...exam.Phase) (exam.Status, error)
	Status() (exam.Status, error)
	Stop() error
}

// Session modes accepted by POST /v1/sessions.
const (
	ModeExam       = "exam"
	ModeAttendance = string(session.ModeAttendance)
	ModeInfraction = string(session.ModeInfraction)
)

type SessionHandler struct {
	runner             ExamRunner
	baseCtx            context.Context
	attendanceDuration time.Duration
	logger             *slog.Logger
}

// NewSessionHandler returns the session control handler. Sessions outlive
// the request that starts them, so they run under baseCtx.
func NewSessionHandler(baseCtx context.Context, runner ExamRunner, attendanceDuration time.Duration, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		runner:             runner,
		baseCtx:            baseCtx,
		attendanceDuration: attendanceDuration,
		logger:             logger,
	}
}

// StartSessionRequest is the body of POST /v1/sessions.
type StartSessionRequest struct {
	Subject string `json:"subject"`
	// Mode is exam (default), attendance or infraction.
	Mode string `json:"mode"`
	// AttendanceSeconds overrides the attendance phase duration.
	AttendanceSeconds int `json:"attendance_seconds"`
}

func (r StartSessionRequest) phases(defaultDuration time.Duration) ([]exam.Phase, error) {
	duration := defaultDuration
	if r.AttendanceSeconds < 0 {
		return nil, fmt.Errorf("attendance_seconds must not be negative")
	}
	if r.AttendanceSeconds > 0 {
		duration = time.Duration(r.AttendanceSeconds) * time.Second
	}

	switch r.Mode {
	case "", ModeExam:
		return exam.ExamPhases(duration), nil
	case ModeAttendance:
		return []exam.Phase{{Mode: session.ModeAttendance, Duration: duration}}, nil
	case ModeInfraction:
		return []exam.Phase{{Mode: session.ModeInfraction}}, nil
	default:
		return nil, fmt.Errorf("unknown mode %q", r.Mode)
	}
}

// Start POST /v1/sessions - start an exam or a single session
func (h *SessionHandler) Start(c *fiber.Ctx) error {
	var req StartSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.ErrBadRequest.WithError(err)
	}

	subject := enroll.NormalizeName(req.Subject)
	if subject == "" {
		return domain.ErrValidationFailed.WithError(fmt.Errorf("subject is required"))
	}

	phases, err := req.phases(h.attendanceDuration)
	if err != nil {
		return domain.ErrValidationFailed.WithError(err)
	}

	status, err := h.runner.StartPhases(h.baseCtx, subject, phases...)
	if err != nil {
		return err
	}

	h.logger.Info("session started via api", "exam_id", status.ExamID, "subject", subject, "phases", len(phases))
	return c.Status(fiber.StatusAccepted).JSON(status)
}

// Current GET /v1/sessions/current - status of the running or last session
func (h *SessionHandler) Current(c *fiber.Ctx) error {
	status, err := h.runner.Status()
	if err != nil {
		return err
	}
	return c.JSON(status)
}

// Stop POST /v1/sessions/current/stop - stop the running session
func (h *SessionHandler) Stop(c *fiber.Ctx) error {
	if err := h.runner.Stop(); err != nil {
		return err
	}

	status, err := h.runner.Status()
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(status)
}
