// Package ws streams live session events to websocket clients.
package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/saturnino-fabrica-de-software/proctor/internal/session"
)

// allSubjects is the subscription key of clients that did not pick a
// subject.
const allSubjects = ""

type Hub struct {
	clients    map[*Client]bool
	subjects   map[string]map[*Client]bool
	broadcast  chan Event
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		subjects:   make(map[string]map[*Client]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case event := <-h.broadcast:
			h.broadcastToSubject(event)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true

	if h.subjects[client.subject] == nil {
		h.subjects[client.subject] = make(map[*Client]bool)
	}
	h.subjects[client.subject][client] = true
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.dropLocked(client)
}

func (h *Hub) dropLocked(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}

	delete(h.clients, client)
	delete(h.subjects[client.subject], client)

	if len(h.subjects[client.subject]) == 0 {
		delete(h.subjects, client.subject)
	}

	close(client.send)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		h.dropLocked(client)
	}
}

func (h *Hub) broadcastToSubject(event Event) {
	message, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var targets []*Client
	for client := range h.subjects[event.Subject] {
		targets = append(targets, client)
	}
	if event.Subject != allSubjects {
		for client := range h.subjects[allSubjects] {
			targets = append(targets, client)
		}
	}

	for _, client := range targets {
		select {
		case client.send <- message:
		default:
			// slow consumer
			h.dropLocked(client)
		}
	}
}

// Publish queues a session event for the clients of its subject and for
// unfiltered clients. Events are dropped when the queue is full.
func (h *Hub) Publish(e session.Event) {
	event := Event{
		Subject:   e.Subject,
		Type:      e.Type,
		Data:      e,
		Timestamp: e.Timestamp,
	}

	select {
	case h.broadcast <- event:
	default:
	}
}

// ConnectedClients counts the clients subscribed to subject; the empty
// subject counts unfiltered clients.
func (h *Hub) ConnectedClients(subject string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.subjects[subject])
}
