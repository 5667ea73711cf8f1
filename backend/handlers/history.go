package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// GetEvents returns the threat event history, newest first
// GET /api/events?page=1&limit=50&type=
func (h *Handler) GetEvents(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 50)
	threatType := c.Query("type", "")

	if page < 1 {
		page = 1
	}
	if limit > 100 {
		limit = 100
	}

	offset := (page - 1) * limit

	events, total, err := h.Events.List(limit, offset, threatType)
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{
		"page":   page,
		"limit":  limit,
		"total":  total,
		"events": events,
	})
}
