package mock

import (
	"context"
	"crypto/sha256"
	"image"
	"math"
	"sync"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
	"github.com/saturnino-fabrica-de-software/proctor/internal/provider"
)

// FaceModel implements provider.FaceModel for tests and development.
// Every non-empty frame holds one face covering its central 80%, and the
// descriptor is derived from the pixels of the face region, so identical
// crops always produce identical descriptors.
type FaceModel struct{}

func NewFaceModel() *FaceModel {
	return &FaceModel{}
}

var _ provider.FaceModel = (*FaceModel)(nil)

func (m *FaceModel) DetectFaces(ctx context.Context, img image.Image) ([]domain.Box, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := img.Bounds()
	if b.Dx() < 10 || b.Dy() < 10 {
		return nil, nil
	}

	mx, my := b.Dx()/10, b.Dy()/10
	return []domain.Box{{
		X1: b.Min.X + mx,
		Y1: b.Min.Y + my,
		X2: b.Max.X - mx,
		Y2: b.Max.Y - my,
	}}, nil
}

func (m *FaceModel) Describe(ctx context.Context, img image.Image, face domain.Box) (domain.Descriptor, error) {
	var d domain.Descriptor
	if err := ctx.Err(); err != nil {
		return d, err
	}

	r := face.Rect().Intersect(img.Bounds())
	if r.Empty() {
		return d, domain.ErrNoFaceDetected
	}

	h := sha256.New()
	buf := make([]byte, 0, 4*r.Dx())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		buf = buf[:0]
		for x := r.Min.X; x < r.Max.X; x++ {
			cr, cg, cb, _ := img.At(x, y).RGBA()
			buf = append(buf, byte(cr>>8), byte(cg>>8), byte(cb>>8))
		}
		_, _ = h.Write(buf)
	}

	return generateDescriptor(h.Sum(nil)), nil
}

// generateDescriptor spreads a hash over a unit-length descriptor.
func generateDescriptor(hash []byte) domain.Descriptor {
	var d domain.Descriptor
	hashLen := len(hash)

	for i := 0; i < domain.DescriptorSize; i++ {
		idx := (i + i/hashLen) % hashLen
		d[i] = (float64(hash[idx])/255.0)*2 - 1
	}

	norm := 0.0
	for _, v := range d {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return d
	}

	for i := range d {
		d[i] /= norm
	}
	return d
}

// ObjectDetector replays a fixed script of per-frame detections, cycling
// when the script runs out. An empty script detects nothing.
type ObjectDetector struct {
	mu     sync.Mutex
	script [][]domain.Detection
	calls  int
}

func NewObjectDetector(script ...[]domain.Detection) *ObjectDetector {
	return &ObjectDetector{script: script}
}

var _ provider.ObjectDetector = (*ObjectDetector)(nil)

func (o *ObjectDetector) Detect(ctx context.Context, _ image.Image, minConfidence float64) ([]domain.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.script) == 0 {
		return nil, nil
	}
	frame := o.script[o.calls%len(o.script)]
	o.calls++

	out := make([]domain.Detection, 0, len(frame))
	for _, d := range frame {
		if d.Confidence >= minConfidence {
			out = append(out, d)
		}
	}
	return out, nil
}

// Calls returns how many frames were processed.
func (o *ObjectDetector) Calls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls
}
