package models

import "time"

// Settings is the single-row runtime configuration (ID=1). Endpoint URLs
// point at the external classifier and generative-text collaborators.
type Settings struct {
	ID uint `gorm:"primaryKey" json:"id"`

	SybilEndpoint     string `json:"sybil_endpoint"`
	SensorEndpoint    string `json:"sensor_endpoint"`
	GpsEndpoint       string `json:"gps_endpoint"`
	NarrativeEndpoint string `json:"narrative_endpoint"`
	NarrativeAPIKey   string `json:"narrative_api_key,omitempty"`

	// Alert webhook for malicious detections
	AlertWebhookURL  string `json:"alert_webhook_url,omitempty"`
	AlertOnMalicious bool   `gorm:"default:true" json:"alert_on_malicious"`

	UpdatedAt time.Time `json:"updated_at"`
}
