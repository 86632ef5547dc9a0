package handler

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
	"github.com/saturnino-fabrica-de-software/proctor/internal/enroll"
)

type EnrollmentHandler struct {
	camera enroll.Source
	root   string
	clock  func() time.Time
	logger *slog.Logger
}

func NewEnrollmentHandler(camera enroll.Source, root string, logger *slog.Logger) *EnrollmentHandler {
	return &EnrollmentHandler{
		camera: camera,
		root:   root,
		clock:  time.Now,
		logger: logger,
	}
}

// CapturePhotoRequest is the body of POST /v1/enrollment/photos.
type CapturePhotoRequest struct {
	Identity string   `json:"identity"`
	Subjects []string `json:"subjects"`
}

type CapturePhotoResponse struct {
	Identity string   `json:"identity"`
	Paths    []string `json:"paths"`
}

// Capture POST /v1/enrollment/photos - save the current camera frame as an
// enrollment photo for every requested subject
func (h *EnrollmentHandler) Capture(c *fiber.Ctx) error {
	var req CapturePhotoRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.ErrBadRequest.WithError(err)
	}

	if h.camera == nil {
		return domain.ErrSourceUnavailable.WithError(fmt.Errorf("no camera configured"))
	}

	paths, err := enroll.Capture(c.Context(), h.camera, h.root, req.Identity, req.Subjects, h.clock())
	if err != nil {
		return err
	}

	identity := enroll.NormalizeName(req.Identity)
	h.logger.Info("enrollment photo saved", "identity", identity, "files", len(paths))

	return c.Status(fiber.StatusCreated).JSON(CapturePhotoResponse{
		Identity: identity,
		Paths:    paths,
	})
}
