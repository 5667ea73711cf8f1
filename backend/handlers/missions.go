package handlers

import (
	"net/http"

	"av-sentinel/backend/models"

	"github.com/gofiber/fiber/v2"
)

// GetMissions - List all missions
// GET /api/missions
func (h *Handler) GetMissions(c *fiber.Ctx) error {
	var missions []models.Mission
	if err := h.DB.Order("id ASC").Find(&missions).Error; err != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(missions)
}

// CreateMission - Add a new mission
// POST /api/missions
func (h *Handler) CreateMission(c *fiber.Ctx) error {
	var mission models.Mission
	if err := c.BodyParser(&mission); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid input"})
	}

	if mission.Title == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Title is required"})
	}
	if mission.Status == "" {
		mission.Status = models.MissionPlanned
	}
	if !models.ValidMissionStatus(mission.Status) {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid mission status"})
	}

	if err := h.DB.Create(&mission).Error; err != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(http.StatusCreated).JSON(mission)
}

// UpdateMission - Update title/status
// PUT /api/missions/:id
func (h *Handler) UpdateMission(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid mission id"})
	}

	var mission models.Mission
	if err := h.DB.First(&mission, id).Error; err != nil {
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "Mission not found"})
	}

	var input struct {
		Title  string `json:"title"`
		Status string `json:"status"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid input"})
	}

	if input.Title != "" {
		mission.Title = input.Title
	}
	if input.Status != "" {
		if !models.ValidMissionStatus(input.Status) {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid mission status"})
		}
		mission.Status = input.Status
	}

	if err := h.DB.Save(&mission).Error; err != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(mission)
}

// DeleteMission - Remove a mission
// DELETE /api/missions/:id
func (h *Handler) DeleteMission(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid mission id"})
	}

	if err := h.DB.Delete(&models.Mission{}, id).Error; err != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"status": "deleted"})
}
