package deepface

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
	"github.com/saturnino-fabrica-de-software/proctor/internal/imaging"
	"github.com/saturnino-fabrica-de-software/proctor/internal/provider"
)

// Provider implements provider.FaceModel using the DeepFace API.
type Provider struct {
	client *Client
}

func NewProvider(config Config) *Provider {
	return &Provider{
		client: NewClient(config),
	}
}

// maxCropSize bounds the face crop uploaded for description; Dlib resizes
// to 150x150 anyway.
const maxCropSize = 512

func encodeFrame(img image.Image) (string, error) {
	data, err := imaging.EncodeJPEG(img)
	if err != nil {
		return "", err
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data), nil
}

// DetectFaces returns one box per detected face. With enforce_detection off
// DeepFace reports the whole frame with zero confidence when it finds nothing;
// those results are dropped.
func (p *Provider) DetectFaces(ctx context.Context, img image.Image) ([]domain.Box, error) {
	encoded, err := encodeFrame(img)
	if err != nil {
		return nil, fmt.Errorf("detect faces: %w", err)
	}

	resp, err := p.client.Represent(ctx, encoded, "")
	if err != nil {
		return nil, fmt.Errorf("detect faces: %w", wrapUnavailable(err))
	}

	boxes := make([]domain.Box, 0, len(resp.Results))
	for _, result := range resp.Results {
		if result.FaceConfidence <= 0 {
			continue
		}
		area := result.FacialArea
		boxes = append(boxes, domain.Box{
			X1: area.X,
			Y1: area.Y,
			X2: area.X + area.W,
			Y2: area.Y + area.H,
		})
	}

	return boxes, nil
}

// Describe crops the face region and asks DeepFace for its descriptor.
func (p *Provider) Describe(ctx context.Context, img image.Image, face domain.Box) (domain.Descriptor, error) {
	var d domain.Descriptor

	crop, err := imaging.Crop(img, face)
	if err != nil {
		return d, fmt.Errorf("describe face: %w", err)
	}

	encoded, err := encodeFrame(imaging.Fit(crop, maxCropSize))
	if err != nil {
		return d, fmt.Errorf("describe face: %w", err)
	}

	resp, err := p.client.Represent(ctx, encoded, SkipDetector)
	if err != nil {
		return d, fmt.Errorf("describe face: %w", wrapUnavailable(err))
	}

	if len(resp.Results) == 0 {
		return d, ErrNoFaceInResponse
	}

	return domain.DescriptorFromSlice(resp.Results[0].Embedding)
}

func wrapUnavailable(err error) error {
	if errors.Is(err, ErrDeepFaceUnavailable) {
		return domain.ErrModelUnavailable.WithError(err)
	}
	return err
}

var _ provider.FaceModel = (*Provider)(nil)
