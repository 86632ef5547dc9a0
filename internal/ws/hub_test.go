package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
	"github.com/saturnino-fabrica-de-software/proctor/internal/session"
)

func runHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func TestNewHub(t *testing.T) {
	hub := NewHub()

	assert.NotNil(t, hub)
	assert.NotNil(t, hub.clients)
	assert.NotNil(t, hub.subjects)
	assert.NotNil(t, hub.broadcast)
	assert.NotNil(t, hub.register)
	assert.NotNil(t, hub.unregister)
}

func TestHub_AddAndRemoveClient(t *testing.T) {
	hub := runHub(t)

	client := &Client{
		hub:     hub,
		subject: "Math",
		send:    make(chan []byte, 1),
	}

	hub.register <- client
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, 1, hub.ConnectedClients("Math"))

	hub.unregister <- client
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, 0, hub.ConnectedClients("Math"))
}

func TestHub_Publish(t *testing.T) {
	hub := runHub(t)

	client := &Client{
		hub:     hub,
		subject: "Math",
		send:    make(chan []byte, 10),
	}

	hub.register <- client
	time.Sleep(50 * time.Millisecond)

	sessionID := uuid.New()
	hub.Publish(session.Event{
		Type:      session.EventInfractionReported,
		SessionID: sessionID,
		Subject:   "Math",
		Identity:  "Alice",
		Class:     domain.ClassPhone,
		Timestamp: time.Now(),
	})

	select {
	case msg := <-client.send:
		var event Event
		require.NoError(t, json.Unmarshal(msg, &event))
		assert.Equal(t, session.EventInfractionReported, event.Type)
		assert.Equal(t, "Alice", event.Data.Identity)
		assert.Equal(t, sessionID, event.Data.SessionID)
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestHub_SubjectIsolation(t *testing.T) {
	hub := runHub(t)

	math := &Client{hub: hub, subject: "Math", send: make(chan []byte, 10)}
	physics := &Client{hub: hub, subject: "Physics", send: make(chan []byte, 10)}
	everything := &Client{hub: hub, subject: allSubjects, send: make(chan []byte, 10)}

	hub.register <- math
	hub.register <- physics
	hub.register <- everything
	time.Sleep(50 * time.Millisecond)

	hub.Publish(session.Event{Type: session.EventAttendanceMarked, Subject: "Math", Identity: "Alice"})

	select {
	case <-math.send:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("math client should receive the event")
	}

	select {
	case <-everything.send:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("unfiltered client should receive the event")
	}

	select {
	case <-physics.send:
		t.Fatal("physics client should not receive a math event")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	client := &Client{hub: hub, subject: "Math", send: make(chan []byte, 1)}
	hub.register <- client

	cancel()
	<-done

	_, open := <-client.send
	assert.False(t, open)
	assert.Equal(t, 0, hub.ConnectedClients("Math"))
}
