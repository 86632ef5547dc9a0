package ws

import (
	"time"

	"github.com/saturnino-fabrica-de-software/proctor/internal/session"
)

// Event is the websocket envelope of a session event.
type Event struct {
	Subject   string            `json:"-"`
	Type      session.EventType `json:"type"`
	Data      session.Event     `json:"data"`
	Timestamp time.Time         `json:"timestamp"`
}
