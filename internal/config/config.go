package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Infraction dedup scopes.
const (
	ScopeSession = "session"
	ScopeExam    = "exam"
)

type Config struct {
	// Server
	Port        int    `envconfig:"PORT" default:"3000"`
	Environment string `envconfig:"ENV" default:"development"`

	// Control API; an empty key leaves /v1 open
	ControlAPIKey      string `envconfig:"CONTROL_API_KEY"`
	RateLimitPerMinute int    `envconfig:"RATE_LIMIT_PER_MINUTE" default:"120"`

	// Database
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	AutoMigrate bool   `envconfig:"AUTO_MIGRATE" default:"true"`

	// Enrollment
	EnrollmentRoot string `envconfig:"ENROLLMENT_ROOT" default:"data/faces"`
	FeaturesDir    string `envconfig:"FEATURES_DIR" default:"data"`
	OutputDir      string `envconfig:"OUTPUT_DIR" default:"output"`

	// Providers
	FaceProvider   string `envconfig:"FACE_PROVIDER" default:"deepface"`
	ObjectProvider string `envconfig:"OBJECT_PROVIDER" default:"yolo"`
	DeepFaceURL    string `envconfig:"DEEPFACE_URL" default:"http://localhost:5000"`
	YOLOURL        string `envconfig:"YOLO_URL" default:"http://localhost:8000"`
	AWSRegion      string `envconfig:"AWS_REGION" default:"us-east-1"`

	// Sources
	CameraURL      string `envconfig:"CAMERA_URL" default:"http://localhost:8080/shot.jpg"`
	VideoFramesDir string `envconfig:"VIDEO_FRAMES_DIR" default:"data/exam_frames"`

	// Matching and detection
	AttendanceThreshold     float64       `envconfig:"ATTENDANCE_THRESHOLD" default:"0.45"`
	InfractionThreshold     float64       `envconfig:"INFRACTION_THRESHOLD" default:"0.6"`
	DetectorFloorConfidence float64       `envconfig:"DETECTOR_FLOOR_CONFIDENCE" default:"0.1"`
	ClassPolicyFile         string        `envconfig:"CLASS_POLICY_FILE"`
	AttendanceDuration      time.Duration `envconfig:"ATTENDANCE_DURATION" default:"10s"`

	// Infractions and notifications
	InfractionScope  string `envconfig:"INFRACTION_SCOPE" default:"session"`
	Notifier         string `envconfig:"NOTIFIER" default:"log"`
	WebhookURL       string `envconfig:"WEBHOOK_URL"`
	WebhookSecret    string `envconfig:"WEBHOOK_SECRET"`
	NotifyRetryQueue bool   `envconfig:"NOTIFY_RETRY_QUEUE" default:"false"`

	SMTPHost     string `envconfig:"SMTP_HOST" default:"smtp.gmail.com"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUsername string `envconfig:"SMTP_USERNAME"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
	SMTPFrom     string `envconfig:"SMTP_FROM"`
	SMTPTo       string `envconfig:"SMTP_TO"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

// Validate rejects combinations that cannot run.
func (c *Config) Validate() error {
	if c.AttendanceThreshold <= 0 || c.InfractionThreshold <= 0 {
		return fmt.Errorf("distance thresholds must be positive")
	}
	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	if c.DetectorFloorConfidence < 0 || c.DetectorFloorConfidence > 1 {
		return fmt.Errorf("detector floor confidence must be within [0,1]")
	}

	switch c.InfractionScope {
	case ScopeSession, ScopeExam:
	default:
		return fmt.Errorf("unknown infraction scope %q", c.InfractionScope)
	}

	switch c.Notifier {
	case "log":
	case "webhook":
		if c.WebhookURL == "" {
			return fmt.Errorf("WEBHOOK_URL is required for the webhook notifier")
		}
	case "email":
		if c.SMTPFrom == "" || c.SMTPTo == "" {
			return fmt.Errorf("SMTP_FROM and SMTP_TO are required for the email notifier")
		}
	default:
		return fmt.Errorf("unknown notifier %q", c.Notifier)
	}

	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
