package handlers

import (
	"net/http"
	"strings"

	"av-sentinel/backend/services"
	"av-sentinel/backend/system"

	"github.com/gofiber/fiber/v2"
)

// AskAdvisor answers one threat advisor chat turn
// POST /api/advisor/chat
func (h *Handler) AskAdvisor(c *fiber.Ctx) error {
	var input struct {
		Message       string              `json:"message"`
		History       []services.ChatTurn `json:"history"`
		ThreatContext struct {
			SybilAlerts *int `json:"sybil_alerts"`
		} `json:"threat_context"`
	}

	if err := c.BodyParser(&input); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid input"})
	}
	if strings.TrimSpace(input.Message) == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Message is required"})
	}

	result, err := h.Narrative.Chat(c.UserContext(), services.ChatContext{
		Message:     input.Message,
		History:     input.History,
		SybilAlerts: input.ThreatContext.SybilAlerts,
	})
	if err != nil {
		system.Warn("Advisor chat generation failed, using fallback: %v", err)
		result = services.FallbackChatReply()
	}

	return c.JSON(fiber.Map{"response": result.Response})
}
