package provider

import (
	"context"
	"image"
	"strconv"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
)

// FaceDetector finds face regions in a frame.
type FaceDetector interface {
	// DetectFaces returns face boxes in frame coordinates, best first.
	DetectFaces(ctx context.Context, img image.Image) ([]domain.Box, error)
}

// Describer computes a 128-d descriptor for one face region.
type Describer interface {
	Describe(ctx context.Context, img image.Image, face domain.Box) (domain.Descriptor, error)
}

// FaceModel bundles detection and description, as most backends offer both.
type FaceModel interface {
	FaceDetector
	Describer
}

// ObjectDetector finds labelled objects in a frame.
type ObjectDetector interface {
	// Detect returns every detection whose confidence is at least minConfidence.
	Detect(ctx context.Context, img image.Image, minConfidence float64) ([]domain.Detection, error)
}

// Labels maps numeric detector class ids to class names.
type Labels map[int]domain.Class

// DefaultLabels is the class table of the exam-room model.
func DefaultLabels() Labels {
	return Labels{
		0: domain.Class0,
		1: domain.Class1,
		2: domain.ClassPhone,
		3: domain.ClassCheating,
	}
}

// Lookup resolves a class id, falling back to "class<N>".
func (l Labels) Lookup(id int) domain.Class {
	if c, ok := l[id]; ok {
		return c
	}
	return domain.Class("class" + strconv.Itoa(id))
}
