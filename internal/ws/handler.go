package ws

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/saturnino-fabrica-de-software/proctor/internal/enroll"
)

// Handler serves the event feed. Clients pick a subject with
// ?subject=<name>; without it they receive every event.
func Handler(hub *Hub) fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		subject, _ := c.Locals("subject").(string)

		client := &Client{
			hub:     hub,
			conn:    c,
			subject: subject,
			send:    make(chan []byte, 256),
		}

		select {
		case hub.register <- client:
		case <-hub.done:
			_ = c.Close()
			return
		}

		go client.WritePump()
		client.ReadPump()
	})
}

func UpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			c.Locals("subject", enroll.NormalizeName(c.Query("subject")))
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}
