package enroll

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
)

type stubSource struct {
	frame image.Image
	err   error
}

func (s stubSource) Next(ctx context.Context) (image.Image, error) {
	return s.frame, s.err
}

func TestCaptureFileName(t *testing.T) {
	at := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	assert.Equal(t, "Alice_Math_20240309_140507.jpg", CaptureFileName("Alice", "Math", at))
}

func TestCapture(t *testing.T) {
	root := t.TempDir()
	at := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	src := stubSource{frame: solid(32, 24, color.White)}

	paths, err := Capture(context.Background(), src, root, "alice", []string{"math", "PHYSICS", " "}, at)

	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "Math", "Alice", "Alice_Math_20240309_140507.jpg"),
		filepath.Join(root, "Physics", "Alice", "Alice_Physics_20240309_140507.jpg"),
	}, paths)

	for _, p := range paths {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
}

func TestCapture_Errors(t *testing.T) {
	frame := solid(8, 8, color.White)
	sourceDown := errors.New("camera gone")

	tests := []struct {
		name     string
		src      stubSource
		identity string
		subjects []string
		wantErr  error
	}{
		{"missing identity", stubSource{frame: frame}, " ", []string{"Math"}, domain.ErrValidationFailed},
		{"missing subjects", stubSource{frame: frame}, "Alice", nil, domain.ErrValidationFailed},
		{"reserved identity", stubSource{frame: frame}, "unknown", []string{"Math"}, domain.ErrValidationFailed},
		{"source failure", stubSource{err: sourceDown}, "Alice", []string{"Math"}, sourceDown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Capture(context.Background(), tt.src, t.TempDir(), tt.identity, tt.subjects, time.Now())
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
