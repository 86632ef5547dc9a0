package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
	"github.com/saturnino-fabrica-de-software/proctor/internal/enroll"
)

// AttendanceLister is implemented by *repository.AttendanceRepository.
type AttendanceLister interface {
	ListBySubjectDate(ctx context.Context, subject, date string) ([]domain.AttendanceRecord, error)
}

type AttendanceHandler struct {
	lister AttendanceLister
	clock  func() time.Time
}

func NewAttendanceHandler(lister AttendanceLister) *AttendanceHandler {
	return &AttendanceHandler{
		lister: lister,
		clock:  time.Now,
	}
}

type AttendanceResponse struct {
	Subject string                    `json:"subject"`
	Date    string                    `json:"date"`
	Records []domain.AttendanceRecord `json:"records"`
}

// List GET /v1/attendance?subject=Math&date=2024-03-09 - attendance of one
// subject and day, today by default
func (h *AttendanceHandler) List(c *fiber.Ctx) error {
	subject := enroll.NormalizeName(c.Query("subject"))
	if subject == "" {
		return domain.ErrValidationFailed.WithError(fmt.Errorf("subject is required"))
	}

	date := c.Query("date")
	if date == "" {
		date = h.clock().Format(domain.DateLayout)
	}
	if _, err := time.Parse(domain.DateLayout, date); err != nil {
		return domain.ErrValidationFailed.WithError(fmt.Errorf("date must be YYYY-MM-DD"))
	}

	records, err := h.lister.ListBySubjectDate(c.Context(), subject, date)
	if err != nil {
		return fmt.Errorf("list attendance: %w", err)
	}

	return c.JSON(AttendanceResponse{
		Subject: subject,
		Date:    date,
		Records: records,
	})
}
