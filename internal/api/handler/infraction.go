package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
	"github.com/saturnino-fabrica-de-software/proctor/internal/enroll"
	"github.com/saturnino-fabrica-de-software/proctor/internal/infraction"
)

// InfractionLister is implemented by *repository.InfractionRepository.
type InfractionLister interface {
	ListByScope(ctx context.Context, scope string) ([]domain.InfractionKey, error)
}

type InfractionHandler struct {
	lister InfractionLister
	clock  func() time.Time
}

func NewInfractionHandler(lister InfractionLister) *InfractionHandler {
	return &InfractionHandler{
		lister: lister,
		clock:  time.Now,
	}
}

type InfractionResponse struct {
	Subject     string                 `json:"subject"`
	Date        string                 `json:"date"`
	Infractions []domain.InfractionKey `json:"infractions"`
}

// List GET /v1/infractions?subject=Math&date=2024-03-09 - infractions
// reported during one subject's exam day, today by default
func (h *InfractionHandler) List(c *fiber.Ctx) error {
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

	keys, err := h.lister.ListByScope(c.Context(), infraction.ExamScope(subject, date))
	if err != nil {
		return fmt.Errorf("list infractions: %w", err)
	}
	if keys == nil {
		keys = []domain.InfractionKey{}
	}

	return c.JSON(InfractionResponse{
		Subject:     subject,
		Date:        date,
		Infractions: keys,
	})
}
