package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// GetDiagnostics returns recent background-operation failures, newest
// first. These never surface as request errors; this endpoint is the
// out-of-band channel for inspecting them.
// GET /api/diagnostics
func (h *Handler) GetDiagnostics(c *fiber.Ctx) error {
	return c.JSON(h.Diagnostics.Recent())
}
