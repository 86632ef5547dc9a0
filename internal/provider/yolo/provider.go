package yolo

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

// Provider implements provider.ObjectDetector against a YOLO server.
type Provider struct {
	client *Client
	labels provider.Labels
}

// NewProvider creates a detector. A nil labels map uses provider.DefaultLabels.
func NewProvider(config Config, labels provider.Labels) *Provider {
	if labels == nil {
		labels = provider.DefaultLabels()
	}
	return &Provider{
		client: NewClient(config),
		labels: labels,
	}
}

var _ provider.ObjectDetector = (*Provider)(nil)

func (p *Provider) Detect(ctx context.Context, img image.Image, minConfidence float64) ([]domain.Detection, error) {
	data, err := imaging.EncodeJPEG(img)
	if err != nil {
		return nil, fmt.Errorf("detect objects: %w", err)
	}

	w, h := imaging.Size(img)
	resp, err := p.client.Predict(ctx, PredictRequest{
		FrameData:  base64.StdEncoding.EncodeToString(data),
		Width:      w,
		Height:     h,
		Confidence: minConfidence,
	})
	if err != nil {
		if errors.Is(err, ErrYOLOUnavailable) {
			err = domain.ErrModelUnavailable.WithError(err)
		}
		return nil, fmt.Errorf("detect objects: %w", err)
	}

	detections := make([]domain.Detection, 0, len(resp.Detections))
	for _, pred := range resp.Detections {
		// the server may ignore conf; filter again
		if pred.Confidence < minConfidence {
			continue
		}
		box := domain.Box{
			X1: int(pred.Box[0]),
			Y1: int(pred.Box[1]),
			X2: int(pred.Box[2]),
			Y2: int(pred.Box[3]),
		}.Clip(w, h)
		detections = append(detections, domain.Detection{
			Box:        box,
			Class:      p.labels.Lookup(pred.ClassID),
			Confidence: pred.Confidence,
		})
	}

	return detections, nil
}
