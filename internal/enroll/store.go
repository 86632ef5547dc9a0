// Package enroll builds reference descriptors from the enrollment tree
// root/<subject>/<identity>/<images> and exports them per subject.
package enroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
	"github.com/saturnino-fabrica-de-software/proctor/internal/imaging"
	"github.com/saturnino-fabrica-de-software/proctor/internal/provider"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// IsImage reports whether name has a recognised image extension.
func IsImage(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

// Store builds and holds the references of one subject.
type Store struct {
	dir        string
	subject    string
	faces      provider.FaceDetector
	describer  provider.Describer
	logger     *slog.Logger
	onIdentity func(domain.Identity)
	identities []domain.Identity
}

// Option configures a Store.
type Option func(*Store)

// WithProgress registers a callback invoked after each identity is built.
func WithProgress(fn func(domain.Identity)) Option {
	return func(s *Store) {
		s.onIdentity = fn
	}
}

// NewStore fails with domain.ErrEnrollmentDirMissing when root/<subject>
// does not exist. The subject name is normalised first.
func NewStore(root, subject string, faces provider.FaceDetector, describer provider.Describer, logger *slog.Logger, opts ...Option) (*Store, error) {
	raw := strings.TrimSpace(subject)
	subject = NormalizeName(raw)
	if subject == "" {
		return nil, domain.ErrValidationFailed.WithError(errors.New("subject is required"))
	}

	dir, err := subjectDir(root, subject, raw)
	if err != nil {
		return nil, err
	}

	s := &Store{
		dir:       dir,
		subject:   subject,
		faces:     faces,
		describer: describer,
		logger:    logger.With("subject", subject),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// subjectDir prefers root/<Normalised> and falls back to the directory as
// named on disk, so "math" or "Computer Science" still build.
func subjectDir(root, subject, raw string) (string, error) {
	var firstErr error
	for _, name := range []string{subject, raw} {
		dir := filepath.Join(root, name)
		info, err := os.Stat(dir)
		if err == nil && info.IsDir() {
			return dir, nil
		}
		if err == nil {
			err = fmt.Errorf("%s is not a directory", dir)
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return "", domain.ErrEnrollmentDirMissing.WithError(firstErr)
}

func (s *Store) Subject() string {
	return s.subject
}

// IdentityNames lists identity directories in enrollment order.
func (s *Store) IdentityNames() ([]string, error) {
	return listDirs(s.dir)
}

// Identities returns the result of the last Build.
func (s *Store) Identities() []domain.Identity {
	return s.identities
}

// Build describes every enrollment image and averages the vectors of each
// identity. Unreadable images and images without a face are skipped.
// Identities without a usable image get an absent reference.
func (s *Store) Build(ctx context.Context) ([]domain.Identity, error) {
	names, err := s.IdentityNames()
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}

	identities := make([]domain.Identity, 0, len(names))
	for _, name := range names {
		if IsReserved(name) {
			s.logger.Error("skipping identity with reserved name, rename the directory", "identity", name)
			continue
		}
		id, err := s.buildIdentity(ctx, name)
		if err != nil {
			return nil, err
		}
		identities = append(identities, id)
		if s.onIdentity != nil {
			s.onIdentity(id)
		}
	}

	s.identities = identities
	s.logger.Info("enrollment built", "identities", len(identities))
	return identities, nil
}

func (s *Store) buildIdentity(ctx context.Context, name string) (domain.Identity, error) {
	dir := filepath.Join(s.dir, name)
	logger := s.logger.With("identity", name)

	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Warn("cannot read identity directory", "error", err)
		return domain.Identity{Name: name, Subject: s.subject, Reference: domain.Absent()}, nil
	}

	var vectors []domain.Descriptor
	for _, entry := range entries {
		if entry.IsDir() || !IsImage(entry.Name()) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return domain.Identity{}, err
		}

		path := filepath.Join(dir, entry.Name())
		d, err := s.describeFile(ctx, path)
		if err != nil {
			if errors.Is(err, domain.ErrModelUnavailable) || ctx.Err() != nil {
				return domain.Identity{}, fmt.Errorf("describe %s: %w", path, err)
			}
			logger.Warn("skipping enrollment image", "file", entry.Name(), "error", err)
			continue
		}
		vectors = append(vectors, d)
	}

	id := domain.Identity{Name: name, Subject: s.subject, Samples: len(vectors)}
	if len(vectors) == 0 {
		logger.Warn("no usable enrollment image")
		id.Reference = domain.Absent()
	} else {
		id.Reference = domain.Present(Mean(vectors))
	}
	return id, nil
}

func (s *Store) describeFile(ctx context.Context, path string) (domain.Descriptor, error) {
	var d domain.Descriptor

	data, err := os.ReadFile(path)
	if err != nil {
		return d, err
	}
	img, err := imaging.Decode(data)
	if err != nil {
		return d, err
	}

	boxes, err := s.faces.DetectFaces(ctx, img)
	if err != nil {
		return d, err
	}
	if len(boxes) == 0 {
		return d, domain.ErrNoFaceDetected
	}

	return s.describer.Describe(ctx, img, boxes[0])
}

// Mean averages descriptors element-wise. It returns the zero descriptor
// for an empty input.
func Mean(vectors []domain.Descriptor) domain.Descriptor {
	var avg domain.Descriptor
	if len(vectors) == 0 {
		return avg
	}
	for _, v := range vectors {
		for i := range avg {
			avg[i] += v[i]
		}
	}
	n := float64(len(vectors))
	for i := range avg {
		avg[i] /= n
	}
	return avg
}

// Subjects lists the subject directories under root.
func Subjects(root string) ([]string, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, domain.ErrEnrollmentDirMissing.WithError(err)
	}
	return listDirs(root)
}

// BuildAll builds every subject under root, keyed by subject name.
func BuildAll(ctx context.Context, root string, faces provider.FaceDetector, describer provider.Describer, logger *slog.Logger, opts ...Option) (map[string][]domain.Identity, error) {
	subjects, err := Subjects(root)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]domain.Identity, len(subjects))
	for _, subject := range subjects {
		store, err := NewStore(root, subject, faces, describer, logger, opts...)
		if err != nil {
			return nil, fmt.Errorf("open subject %s: %w", subject, err)
		}
		if _, dup := out[store.Subject()]; dup {
			logger.Error("skipping subject directory, another one has the same normalised name",
				"directory", subject,
				"subject", store.Subject(),
			)
			continue
		}
		ids, err := store.Build(ctx)
		if err != nil {
			return nil, fmt.Errorf("build subject %s: %w", subject, err)
		}
		out[store.Subject()] = ids
	}
	return out, nil
}

func listDirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
