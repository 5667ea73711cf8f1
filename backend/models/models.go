package models

import (
	"time"
)

// Threat type values recorded on persisted events.
const (
	ThreatTypeSybil  = "Sybil"
	ThreatTypeSensor = "Sensor Spoofing"
	ThreatTypeGps    = "GPS Spoofing"
)

// Detection source values.
const (
	SourceManual = "Manual"
	SourceCSV    = "CSV"
)

// ActionNormalDriving is the benign action label returned by the sensor
// spoofing classifier. Anything else counts as a spoofing flag.
const ActionNormalDriving = "Normal Driving"

// EventDetails is the audit payload stored alongside each threat event.
// Inputs always reflects the exact request that produced the event.
type EventDetails struct {
	IsMalicious     *bool              `json:"isMalicious,omitempty"`
	Action          string             `json:"action,omitempty"`
	Confidence      float64            `json:"confidence"`
	Reasoning       string             `json:"reasoning"`
	MitigationSteps []string           `json:"mitigationSteps,omitempty"`
	Inputs          map[string]float64 `json:"inputs"`
}

// ThreatEvent is the persisted record of one completed detection.
// Events are append-only: created once, never mutated.
type ThreatEvent struct {
	ID               string       `gorm:"primaryKey" json:"id"`
	DetectedAt       *time.Time   `gorm:"index" json:"detectedAt"`
	ThreatType       string       `gorm:"index" json:"threatType"`
	RiskScore        float64      `json:"riskScore"`
	Source           string       `json:"source"`
	DetectedEntities string       `json:"detectedEntities"`
	Details          EventDetails `gorm:"serializer:json" json:"details"`
}

// TrendPoint is one calendar day of the 7-day threat trend.
type TrendPoint struct {
	Date   string `json:"date"`
	Sybil  int    `json:"sybil"`
	Sensor int    `json:"sensor"`
}

// DashboardStats is derived from the event stream, never stored.
type DashboardStats struct {
	SybilMaliciousToday  int          `json:"sybil_malicious_today"`
	SensorMaliciousToday int          `json:"sensor_malicious_today"`
	TotalAlertsToday     int          `json:"total_alerts_today"`
	Trend                []TrendPoint `json:"trend"`
}
