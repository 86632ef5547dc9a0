package rekognition

import (
	"context"
	"fmt"
	"image"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"github.com/saturnino-fabrica-de-software/proctor/internal/audit"
	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
	"github.com/saturnino-fabrica-de-software/proctor/internal/imaging"
	"github.com/saturnino-fabrica-de-software/proctor/internal/provider"
)

// maxImageSize is the maximum image size supported by AWS Rekognition (5MB)
const maxImageSize = 5 * 1024 * 1024

// Provider detects faces and labelled objects with AWS Rekognition.
// Rekognition does not expose descriptors, so it is paired with a
// separate provider.Describer for identification.
type Provider struct {
	api         API
	config      Config
	auditLogger audit.Logger
}

// ProviderOption defines optional configuration for Provider
type ProviderOption func(*Provider)

func WithAuditLogger(logger audit.Logger) ProviderOption {
	return func(p *Provider) {
		p.auditLogger = logger
	}
}

var (
	_ provider.FaceDetector   = (*Provider)(nil)
	_ provider.ObjectDetector = (*Provider)(nil)
)

// NewProvider creates a provider backed by the real AWS client.
func NewProvider(ctx context.Context, cfg Config, opts ...ProviderOption) (*Provider, error) {
	api, err := NewAPI(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create rekognition client: %w", err)
	}
	return NewWithAPI(api, cfg, opts...), nil
}

// NewWithAPI creates a provider around an existing API implementation.
func NewWithAPI(api API, cfg Config, opts ...ProviderOption) *Provider {
	p := &Provider{
		api:         api,
		config:      cfg,
		auditLogger: &audit.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) logAudit(ctx context.Context, eventType audit.EventType, err error, metadata map[string]string) {
	event := audit.Event{
		EventType: eventType,
		Provider:  "rekognition",
		Success:   err == nil,
		Metadata:  metadata,
	}
	if err != nil {
		event.Error = err.Error()
	}
	_ = p.auditLogger.Log(ctx, event)
}

func encode(img image.Image) ([]byte, error) {
	data, err := imaging.EncodeJPEG(img)
	if err != nil {
		return nil, err
	}
	if len(data) > maxImageSize {
		return nil, fmt.Errorf("%w: image too large (%d bytes, maximum %d)", ErrInvalidImage, len(data), maxImageSize)
	}
	return data, nil
}

// toBox converts a ratio bounding box to frame pixels.
func toBox(bb *types.BoundingBox, width, height int) domain.Box {
	if bb == nil {
		return domain.Box{}
	}
	left := float64(aws.ToFloat32(bb.Left))
	top := float64(aws.ToFloat32(bb.Top))
	w := float64(aws.ToFloat32(bb.Width))
	h := float64(aws.ToFloat32(bb.Height))

	box := domain.Box{
		X1: int(left * float64(width)),
		Y1: int(top * float64(height)),
		X2: int((left + w) * float64(width)),
		Y2: int((top + h) * float64(height)),
	}
	return box.Clip(width, height)
}

// DetectFaces returns face boxes in frame pixels. No faces is not an error.
func (p *Provider) DetectFaces(ctx context.Context, img image.Image) ([]domain.Box, error) {
	data, err := encode(img)
	if err != nil {
		return nil, fmt.Errorf("detect faces: %w", err)
	}

	output, err := p.api.DetectFaces(ctx, &rekognition.DetectFacesInput{
		Image:      &types.Image{Bytes: data},
		Attributes: []types.Attribute{types.AttributeDefault},
	})
	if err != nil {
		err = parseError("detect faces", err)
		p.logAudit(ctx, audit.EventFacesDetected, err, nil)
		return nil, err
	}

	width, height := imaging.Size(img)
	boxes := make([]domain.Box, 0, len(output.FaceDetails))
	for _, detail := range output.FaceDetails {
		if float64(aws.ToFloat32(detail.Confidence))/100 < p.config.MinFaceConfidence {
			continue
		}
		box := toBox(detail.BoundingBox, width, height)
		if box.Empty() {
			continue
		}
		boxes = append(boxes, box)
	}

	p.logAudit(ctx, audit.EventFacesDetected, nil, map[string]string{
		"faces_count": strconv.Itoa(len(boxes)),
	})

	return boxes, nil
}

// Detect maps label instances to detector classes using Config.LabelClasses.
func (p *Provider) Detect(ctx context.Context, img image.Image, minConfidence float64) ([]domain.Detection, error) {
	data, err := encode(img)
	if err != nil {
		return nil, fmt.Errorf("detect labels: %w", err)
	}

	output, err := p.api.DetectLabels(ctx, &rekognition.DetectLabelsInput{
		Image:         &types.Image{Bytes: data},
		MinConfidence: aws.Float32(float32(minConfidence * 100)),
	})
	if err != nil {
		err = parseError("detect labels", err)
		p.logAudit(ctx, audit.EventObjectsDetected, err, nil)
		return nil, err
	}

	width, height := imaging.Size(img)
	var detections []domain.Detection
	for _, label := range output.Labels {
		class, ok := p.config.ClassFor(aws.ToString(label.Name))
		if !ok {
			continue
		}
		for _, inst := range label.Instances {
			conf := float64(aws.ToFloat32(inst.Confidence)) / 100
			if conf < minConfidence {
				continue
			}
			box := toBox(inst.BoundingBox, width, height)
			if box.Empty() {
				continue
			}
			detections = append(detections, domain.Detection{
				Box:        box,
				Class:      class,
				Confidence: conf,
			})
		}
	}

	p.logAudit(ctx, audit.EventObjectsDetected, nil, map[string]string{
		"objects_count": strconv.Itoa(len(detections)),
	})

	return detections, nil
}
