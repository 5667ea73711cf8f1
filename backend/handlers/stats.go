package handlers

import (
	"av-sentinel/backend/services"
	"av-sentinel/backend/system"

	"github.com/gofiber/fiber/v2"
)

// GetDashboardStats returns the current derived dashboard statistics
// GET /api/stats/dashboard
func (h *Handler) GetDashboardStats(c *fiber.Ctx) error {
	return c.JSON(h.Aggregator.Current())
}

// GetThreatSummary generates a natural-language summary of today's
// threat activity. The generative call is best-effort; a static
// fallback is substituted on failure, never an error.
// POST /api/summary
func (h *Handler) GetThreatSummary(c *fiber.Ctx) error {
	var input struct {
		AdditionalContext string `json:"additional_context"`
	}
	// Body is optional.
	_ = c.BodyParser(&input)

	stats := h.Aggregator.Current()

	result, err := h.Narrative.Summarize(c.UserContext(), services.SummaryContext{
		SybilAlertsToday:  stats.SybilMaliciousToday,
		SensorAlertsToday: stats.SensorMaliciousToday,
		AdditionalContext: input.AdditionalContext,
	})
	if err != nil {
		system.Warn("Threat summary generation failed, using fallback: %v", err)
		result = services.FallbackSummary(stats.SybilMaliciousToday, stats.SensorMaliciousToday)
	}

	return c.JSON(fiber.Map{"summary": result.Summary})
}
