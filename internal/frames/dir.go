// Package frames provides frame sources and renderers for processing
// sessions.
package frames

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
	"github.com/saturnino-fabrica-de-software/proctor/internal/enroll"
	"github.com/saturnino-fabrica-de-software/proctor/internal/imaging"
)

// DirSource replays the still frames of a directory in name order and
// returns io.EOF after the last one.
type DirSource struct {
	mu    sync.Mutex
	paths []string
	next  int
}

// NewDirSource lists dir. A missing or unreadable directory is a
// resource error.
func NewDirSource(dir string) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, domain.ErrSourceUnavailable.WithError(err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !enroll.IsImage(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)

	return &DirSource{paths: paths}, nil
}

func (s *DirSource) Len() int {
	return len(s.paths)
}

func (s *DirSource) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.next >= len(s.paths) {
		s.mu.Unlock()
		return nil, io.EOF
	}
	path := s.paths[s.next]
	s.next++
	s.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read frame %s: %w", path, err)
	}

	img, err := imaging.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode frame %s: %w", path, err)
	}
	return img, nil
}

func (s *DirSource) Close() error {
	return nil
}
