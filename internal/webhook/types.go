package webhook

import (
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
)

const EventInfractionReported = "infraction.reported"

// Endpoint is the receiver of webhook deliveries.
type Endpoint struct {
	URL    string
	Secret string
}

type Job struct {
	ID          uuid.UUID  `json:"id"`
	EventType   string     `json:"event_type"`
	Payload     []byte     `json:"payload"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"max_attempts"`
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`
	Status      string     `json:"status"`
	LastError   string     `json:"last_error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type EventPayload struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	SessionID uuid.UUID   `json:"session_id"`
	Timestamp time.Time   `json:"timestamp"`
}

// InfractionData is the body of an infraction.reported event. Image is
// the annotated JPEG frame, base64 encoded by encoding/json.
type InfractionData struct {
	IncidentID uuid.UUID    `json:"incident_id"`
	Identity   string       `json:"identity"`
	Type       domain.Class `json:"type"`
	Subject    string       `json:"subject"`
	Confidence float64      `json:"confidence"`
	Box        domain.Box   `json:"box"`
	DetectedAt time.Time    `json:"detected_at"`
	Image      []byte       `json:"image,omitempty"`
}

func NewInfractionEvent(incident domain.Incident) EventPayload {
	return EventPayload{
		Type: EventInfractionReported,
		Data: InfractionData{
			IncidentID: incident.ID,
			Identity:   incident.Identity,
			Type:       incident.Type,
			Subject:    incident.Subject,
			Confidence: incident.Confidence,
			Box:        incident.Box,
			DetectedAt: incident.DetectedAt,
			Image:      incident.Image,
		},
		SessionID: incident.SessionID,
		Timestamp: time.Now().UTC(),
	}
}
