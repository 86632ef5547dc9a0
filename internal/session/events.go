package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
)

type EventType string

const (
	EventSessionStarted     EventType = "session.started"
	EventSessionStopped     EventType = "session.stopped"
	EventAttendanceMarked   EventType = "attendance.marked"
	EventInfractionReported EventType = "infraction.reported"
)

// Event is a live notification about a running session.
type Event struct {
	Type       EventType    `json:"type"`
	SessionID  uuid.UUID    `json:"session_id"`
	Mode       Mode         `json:"mode"`
	Subject    string       `json:"subject"`
	Identity   string       `json:"identity,omitempty"`
	Class      domain.Class `json:"class,omitempty"`
	Confidence float64      `json:"confidence,omitempty"`
	Summary    *Summary     `json:"summary,omitempty"`
	Timestamp  time.Time    `json:"timestamp"`
}

// EventSink receives session events. Publish must not block.
type EventSink interface {
	Publish(event Event)
}

type discardSink struct{}

func (discardSink) Publish(Event) {}
