package enroll

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
	"github.com/saturnino-fabrica-de-software/proctor/internal/imaging"
)

// Source yields camera frames.
type Source interface {
	Next(ctx context.Context) (image.Image, error)
}

// CaptureFileName returns <Identity>_<Subject>_<YYYYmmdd_HHMMSS>.jpg.
func CaptureFileName(identity, subject string, at time.Time) string {
	return fmt.Sprintf("%s_%s_%s.jpg", identity, subject, at.Format(domain.CaptureLayout))
}

// Capture grabs one frame and stores it as an enrollment photo of identity
// under every subject. It returns the written paths.
func Capture(ctx context.Context, src Source, root, identity string, subjects []string, at time.Time) ([]string, error) {
	identity = NormalizeName(identity)
	if identity == "" {
		return nil, domain.ErrValidationFailed.WithError(fmt.Errorf("identity name is required"))
	}
	if IsReserved(identity) {
		return nil, domain.ErrValidationFailed.WithError(fmt.Errorf("identity name %q is reserved", identity))
	}
	if len(subjects) == 0 {
		return nil, domain.ErrValidationFailed.WithError(fmt.Errorf("at least one subject is required"))
	}

	frame, err := src.Next(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture frame: %w", err)
	}
	data, err := imaging.EncodeJPEG(frame)
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(subjects))
	for _, subject := range subjects {
		subject = NormalizeName(subject)
		if subject == "" {
			continue
		}
		dir := filepath.Join(root, subject, identity)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return paths, fmt.Errorf("create %s: %w", dir, err)
		}
		path := filepath.Join(dir, CaptureFileName(identity, subject, at))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return paths, fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
