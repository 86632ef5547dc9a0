package face

import (
	"context"
	"fmt"

	"github.com/saturnino-fabrica-de-software/proctor/internal/audit"
	"github.com/saturnino-fabrica-de-software/proctor/internal/config"
	"github.com/saturnino-fabrica-de-software/proctor/internal/provider"
	"github.com/saturnino-fabrica-de-software/proctor/internal/provider/deepface"
	"github.com/saturnino-fabrica-de-software/proctor/internal/provider/mock"
	"github.com/saturnino-fabrica-de-software/proctor/internal/provider/rekognition"
	"github.com/saturnino-fabrica-de-software/proctor/internal/provider/yolo"
)

// ProviderType defines supported provider backends
type ProviderType string

const (
	// ProviderTypeDeepFace is the DeepFace HTTP service (faces and descriptors)
	ProviderTypeDeepFace ProviderType = "deepface"
	// ProviderTypeRekognition is AWS Rekognition (faces and labels, no descriptors)
	ProviderTypeRekognition ProviderType = "rekognition"
	// ProviderTypeYOLO is a YOLO inference server (objects only)
	ProviderTypeYOLO ProviderType = "yolo"
	// ProviderTypeMock is the deterministic in-process provider
	ProviderTypeMock ProviderType = "mock"
)

// Providers groups the collaborators a session needs.
type Providers struct {
	Faces     provider.FaceDetector
	Describer provider.Describer
	Objects   provider.ObjectDetector
}

// NewProviders builds the face and object providers selected by
// FACE_PROVIDER and OBJECT_PROVIDER. Rekognition has no descriptor API, so
// the DeepFace describer is paired with it. A nil labels map uses the
// default class table.
func NewProviders(ctx context.Context, cfg *config.Config, labels provider.Labels, auditLogger audit.Logger) (*Providers, error) {
	if auditLogger == nil {
		auditLogger = &audit.NoOpLogger{}
	}

	var (
		p     Providers
		rekog *rekognition.Provider
	)

	getRekognition := func() (*rekognition.Provider, error) {
		if rekog != nil {
			return rekog, nil
		}
		rc := rekognition.DefaultConfig()
		if cfg.AWSRegion != "" {
			rc.Region = cfg.AWSRegion
		}
		prov, err := rekognition.NewProvider(ctx, rc, rekognition.WithAuditLogger(auditLogger))
		if err != nil {
			return nil, fmt.Errorf("create rekognition provider: %w", err)
		}
		rekog = prov
		return rekog, nil
	}

	switch ProviderType(cfg.FaceProvider) {
	case ProviderTypeDeepFace, "":
		df := createDeepFaceProvider(cfg)
		p.Faces, p.Describer = df, df

	case ProviderTypeRekognition:
		prov, err := getRekognition()
		if err != nil {
			return nil, err
		}
		p.Faces = prov
		p.Describer = createDeepFaceProvider(cfg)

	case ProviderTypeMock:
		m := mock.NewFaceModel()
		p.Faces, p.Describer = m, m

	default:
		return nil, fmt.Errorf("unknown face provider type: %s (supported: %s, %s, %s)",
			cfg.FaceProvider, ProviderTypeDeepFace, ProviderTypeRekognition, ProviderTypeMock)
	}

	switch ProviderType(cfg.ObjectProvider) {
	case ProviderTypeYOLO, "":
		yc := yolo.DefaultConfig()
		if cfg.YOLOURL != "" {
			yc.BaseURL = cfg.YOLOURL
		}
		p.Objects = yolo.NewProvider(yc, labels)

	case ProviderTypeRekognition:
		prov, err := getRekognition()
		if err != nil {
			return nil, err
		}
		p.Objects = prov

	case ProviderTypeMock:
		p.Objects = mock.NewObjectDetector()

	default:
		return nil, fmt.Errorf("unknown object provider type: %s (supported: %s, %s, %s)",
			cfg.ObjectProvider, ProviderTypeYOLO, ProviderTypeRekognition, ProviderTypeMock)
	}

	return &p, nil
}

// createDeepFaceProvider creates a DeepFace provider instance
func createDeepFaceProvider(cfg *config.Config) *deepface.Provider {
	deepfaceConfig := deepface.DefaultConfig()
	if cfg.DeepFaceURL != "" {
		deepfaceConfig.BaseURL = cfg.DeepFaceURL
	}
	return deepface.NewProvider(deepfaceConfig)
}
