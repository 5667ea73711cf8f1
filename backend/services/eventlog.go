package services

import (
	"time"

	"av-sentinel/backend/models"
	"av-sentinel/backend/system"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EventLog appends threat events to the append-only event collection.
// Appends are fire-and-forget: at most one write per detection, never
// retried, and failures are published on the diagnostics bus instead of
// being returned to the caller.
type EventLog struct {
	db      *gorm.DB
	diag    *DiagnosticsBus
	changes chan struct{}
}

func NewEventLog(db *gorm.DB, diag *DiagnosticsBus) *EventLog {
	return &EventLog{
		db:      db,
		diag:    diag,
		changes: make(chan struct{}, 1),
	}
}

// Append persists the event in the background. The caller gets no
// outcome; a write failure becomes a diagnostic.
func (l *EventLog) Append(event models.ThreatEvent) {
	go l.write(event)
}

func (l *EventLog) write(event models.ThreatEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.DetectedAt == nil {
		now := time.Now()
		event.DetectedAt = &now
	}

	if err := l.db.Create(&event).Error; err != nil {
		l.diag.Publish(Diagnostic{
			Path:      "threat_events",
			Operation: "create",
			Message:   err.Error(),
			Payload:   event,
		})
		return
	}

	system.Info("Threat event recorded: %s %s (risk %.0f)", event.ThreatType, event.ID, event.RiskScore)
	l.notify()
}

// notify signals subscribers without blocking; a pending signal is
// enough, the reader re-reads the whole collection anyway.
func (l *EventLog) notify() {
	select {
	case l.changes <- struct{}{}:
	default:
	}
}

// Changes delivers a signal after each successful append.
func (l *EventLog) Changes() <-chan struct{} {
	return l.changes
}

// List returns events newest first, pending timestamps on top.
func (l *EventLog) List(limit, offset int, threatType string) ([]models.ThreatEvent, int64, error) {
	query := l.db.Model(&models.ThreatEvent{})
	if threatType != "" {
		query = query.Where("threat_type = ?", threatType)
	}

	var total int64
	query.Count(&total)

	var events []models.ThreatEvent
	err := query.Order("detected_at IS NULL DESC, detected_at DESC").
		Offset(offset).Limit(limit).Find(&events).Error
	return events, total, err
}

// All returns every event newest first, for stats recomputation.
func (l *EventLog) All() ([]models.ThreatEvent, error) {
	var events []models.ThreatEvent
	err := l.db.Order("detected_at IS NULL DESC, detected_at DESC").Find(&events).Error
	return events, err
}
