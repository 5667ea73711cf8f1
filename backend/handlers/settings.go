package handlers

import (
	"net/http"

	"av-sentinel/backend/models"
	"av-sentinel/backend/system"

	"github.com/gofiber/fiber/v2"
)

// redactedSettings strips the API key before a settings row leaves the
// server; the key is write-only through the API.
func redactedSettings(s models.Settings) models.Settings {
	s.NarrativeAPIKey = ""
	return s
}

// GetSettings - Get current runtime settings
// GET /api/settings
func (h *Handler) GetSettings(c *fiber.Ctx) error {
	var settings models.Settings

	// ID=1 is the single row
	result := h.DB.First(&settings, 1)
	if result.Error != nil {
		settings = models.Settings{ID: 1, AlertOnMalicious: true}
		h.DB.Create(&settings)
	}

	return c.JSON(redactedSettings(settings))
}

// UpdateSettings - Patch runtime settings and push them into the
// gateway services. Omitted fields keep their stored values.
// PUT /api/settings
func (h *Handler) UpdateSettings(c *fiber.Ctx) error {
	var input struct {
		SybilEndpoint     *string `json:"sybil_endpoint"`
		SensorEndpoint    *string `json:"sensor_endpoint"`
		GpsEndpoint       *string `json:"gps_endpoint"`
		NarrativeEndpoint *string `json:"narrative_endpoint"`
		NarrativeAPIKey   *string `json:"narrative_api_key"`
		AlertWebhookURL   *string `json:"alert_webhook_url"`
		AlertOnMalicious  *bool   `json:"alert_on_malicious"`
	}

	if err := c.BodyParser(&input); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid input"})
	}

	var settings models.Settings
	result := h.DB.First(&settings, 1)
	if result.Error != nil {
		settings = models.Settings{ID: 1, AlertOnMalicious: true}
	}

	if input.SybilEndpoint != nil {
		settings.SybilEndpoint = *input.SybilEndpoint
	}
	if input.SensorEndpoint != nil {
		settings.SensorEndpoint = *input.SensorEndpoint
	}
	if input.GpsEndpoint != nil {
		settings.GpsEndpoint = *input.GpsEndpoint
	}
	if input.NarrativeEndpoint != nil {
		settings.NarrativeEndpoint = *input.NarrativeEndpoint
	}
	if input.NarrativeAPIKey != nil {
		settings.NarrativeAPIKey = *input.NarrativeAPIKey
	}
	if input.AlertWebhookURL != nil {
		settings.AlertWebhookURL = *input.AlertWebhookURL
	}
	if input.AlertOnMalicious != nil {
		settings.AlertOnMalicious = *input.AlertOnMalicious
	}

	if result.Error != nil {
		h.DB.Create(&settings)
	} else {
		h.DB.Save(&settings)
	}

	h.Inference.SetEndpoint(models.DetectorSybil, settings.SybilEndpoint)
	h.Inference.SetEndpoint(models.DetectorSensor, settings.SensorEndpoint)
	h.Inference.SetEndpoint(models.DetectorGps, settings.GpsEndpoint)
	h.Narrative.SetEndpoint(settings.NarrativeEndpoint, settings.NarrativeAPIKey)
	if settings.AlertOnMalicious {
		h.Alerts.SetWebhookURL(settings.AlertWebhookURL)
	} else {
		h.Alerts.SetWebhookURL("")
	}

	system.Info("Runtime settings updated")
	return c.JSON(redactedSettings(settings))
}

// TestWebhook sends a test notification to the alert webhook
// POST /api/webhook/test
func (h *Handler) TestWebhook(c *fiber.Ctx) error {
	if err := h.Alerts.SendTestAlert(); err != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"status": "sent"})
}
