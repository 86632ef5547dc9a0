package domain

import (
	"time"

	"github.com/google/uuid"
)

// InfractionKey identifies one (identity, infraction type) pair.
type InfractionKey struct {
	Identity string `json:"identity"`
	Type     Class  `json:"type"`
}

// Incident is what a notifier delivers for a newly seen infraction.
type Incident struct {
	ID         uuid.UUID `json:"id"`
	SessionID  uuid.UUID `json:"session_id"`
	Identity   string    `json:"identity"`
	Type       Class     `json:"type"`
	Subject    string    `json:"subject"`
	Confidence float64   `json:"confidence"`
	Box        Box       `json:"box"`
	DetectedAt time.Time `json:"detected_at"`
	Image      []byte    `json:"-"`
}
