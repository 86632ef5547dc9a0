package rekognition

import (
	"strings"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
)

// Config holds configuration for AWS Rekognition provider
type Config struct {
	// Region is the AWS region where Rekognition service will be used (e.g., "us-east-1")
	Region string

	// MinFaceConfidence drops DetectFaces results below this value (0-1).
	MinFaceConfidence float64

	// LabelClasses maps Rekognition label names to detector classes.
	// Labels not listed are ignored.
	LabelClasses map[string]domain.Class
}

// DefaultConfig returns a Config with default values
func DefaultConfig() Config {
	return Config{
		Region:            "us-east-1",
		MinFaceConfidence: 0.9,
		LabelClasses: map[string]domain.Class{
			"mobile phone": domain.ClassPhone,
			"cell phone":   domain.ClassPhone,
			"phone":        domain.ClassPhone,
			"person":       domain.Class0,
		},
	}
}

// ClassFor resolves a label name case-insensitively.
func (c Config) ClassFor(label string) (domain.Class, bool) {
	class, ok := c.LabelClasses[strings.ToLower(label)]
	return class, ok
}
