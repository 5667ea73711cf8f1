package handlers

import (
	"av-sentinel/backend/models"
	"av-sentinel/backend/services"

	"gorm.io/gorm"
)

// Handler bundles the services the HTTP layer depends on.
type Handler struct {
	DB            *gorm.DB
	Inference     *services.InferenceService
	Narrative     *services.NarrativeService
	Events        *services.EventLog
	Aggregator    *services.Aggregator
	Diagnostics   *services.DiagnosticsBus
	Alerts        *services.AlertService
	Orchestrators map[models.DetectorKind]*services.Orchestrator
}

func NewHandler(
	db *gorm.DB,
	inference *services.InferenceService,
	narrative *services.NarrativeService,
	events *services.EventLog,
	aggregator *services.Aggregator,
	diagnostics *services.DiagnosticsBus,
	alerts *services.AlertService,
	orchestrators map[models.DetectorKind]*services.Orchestrator,
) *Handler {
	return &Handler{
		DB:            db,
		Inference:     inference,
		Narrative:     narrative,
		Events:        events,
		Aggregator:    aggregator,
		Diagnostics:   diagnostics,
		Alerts:        alerts,
		Orchestrators: orchestrators,
	}
}
