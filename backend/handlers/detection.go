package handlers

import (
	"errors"
	"net/http"

	"av-sentinel/backend/models"
	"av-sentinel/backend/services"

	"github.com/gofiber/fiber/v2"
)

// DetectSybil runs a Sybil attack detection from form values
// POST /api/detect/sybil
func (h *Handler) DetectSybil(c *fiber.Ctx) error {
	return h.runDetection(c, models.DetectorSybil)
}

// DetectSensor runs a sensor spoofing detection from form values
// POST /api/detect/sensor
func (h *Handler) DetectSensor(c *fiber.Ctx) error {
	return h.runDetection(c, models.DetectorSensor)
}

// DetectGps runs a GPS spoofing detection from form values
// POST /api/detect/gps
func (h *Handler) DetectGps(c *fiber.Ctx) error {
	return h.runDetection(c, models.DetectorGps)
}

func (h *Handler) runDetection(c *fiber.Ctx, kind models.DetectorKind) error {
	var values map[string]float64
	if err := c.BodyParser(&values); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid input"})
	}

	req, err := models.NewDetectionRequest(kind, values)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	return h.execute(c, kind, req, models.SourceManual, "Manual entry")
}

// DetectSybilCSV runs a detection from the first data row of an
// uploaded CSV
// POST /api/detect/sybil/csv
func (h *Handler) DetectSybilCSV(c *fiber.Ctx) error {
	return h.runDetectionCSV(c, models.DetectorSybil)
}

// DetectSensorCSV - POST /api/detect/sensor/csv
func (h *Handler) DetectSensorCSV(c *fiber.Ctx) error {
	return h.runDetectionCSV(c, models.DetectorSensor)
}

// DetectGpsCSV - POST /api/detect/gps/csv
func (h *Handler) DetectGpsCSV(c *fiber.Ctx) error {
	return h.runDetectionCSV(c, models.DetectorGps)
}

func (h *Handler) runDetectionCSV(c *fiber.Ctx, kind models.DetectorKind) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Missing file upload"})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Failed to open uploaded file"})
	}
	defer file.Close()

	values, err := services.FirstDataRow(file)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	req, err := models.NewDetectionRequest(kind, values)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	return h.execute(c, kind, req, models.SourceCSV, "CSV: "+fileHeader.Filename)
}

func (h *Handler) execute(c *fiber.Ctx, kind models.DetectorKind, req models.DetectionRequest, source, entities string) error {
	orch, ok := h.Orchestrators[kind]
	if !ok {
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "Unknown detector"})
	}

	outcome, err := orch.Run(c.UserContext(), req, source, entities)
	if err != nil {
		if errors.Is(err, services.ErrSuperseded) {
			return c.Status(http.StatusConflict).JSON(fiber.Map{"error": "Detection superseded by a newer submission"})
		}
		// Inference failure: terminal, message surfaced verbatim.
		return c.Status(http.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(outcome)
}
