package frames

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/saturnino-fabrica-de-software/proctor/internal/imaging"
	"github.com/saturnino-fabrica-de-software/proctor/internal/session"
)

// JPEGRenderer writes every annotated frame to dir as frame_NNNNNN.jpg and
// overwrites latest.jpg with the newest one.
type JPEGRenderer struct {
	dir string
}

func NewJPEGRenderer(dir string) (*JPEGRenderer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &JPEGRenderer{dir: dir}, nil
}

func (r *JPEGRenderer) Render(_ context.Context, frame session.Frame) error {
	data, err := imaging.EncodeJPEG(frame.Image)
	if err != nil {
		return err
	}

	name := filepath.Join(r.dir, fmt.Sprintf("frame_%06d.jpg", frame.Index))
	if err := os.WriteFile(name, data, 0o644); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	if err := os.WriteFile(filepath.Join(r.dir, "latest.jpg"), data, 0o644); err != nil {
		return fmt.Errorf("write latest frame: %w", err)
	}
	return nil
}

func (r *JPEGRenderer) Close() error {
	return nil
}
