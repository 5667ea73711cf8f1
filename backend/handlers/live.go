package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// LiveStatsUpgrade gates the live stats route to websocket upgrades.
func LiveStatsUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// LiveStats streams dashboard statistics to the client: the current
// snapshot on connect, then every recomputation as it happens. A read
// pump notices the client going away without waiting for the next
// broadcast.
// GET /api/live/stats (websocket)
func (h *Handler) LiveStats() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		updates, cancel := h.Aggregator.Subscribe()
		defer cancel()

		if err := conn.WriteJSON(h.Aggregator.Current()); err != nil {
			return
		}

		gone := make(chan struct{})
		go func() {
			defer close(gone)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case stats, ok := <-updates:
				if !ok {
					return
				}
				if err := conn.WriteJSON(stats); err != nil {
					return
				}
			case <-gone:
				return
			}
		}
	})
}
