package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"av-sentinel/backend/system"
)

// AlertService sends webhook notifications when malicious activity is
// detected. The payload uses the Discord embed shape.
type AlertService struct {
	client *http.Client

	mu         sync.RWMutex
	webhookURL string
}

type alertEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type alertEmbedFooter struct {
	Text string `json:"text"`
}

type alertEmbed struct {
	Title       string            `json:"title,omitempty"`
	Description string            `json:"description,omitempty"`
	Color       int               `json:"color,omitempty"`
	Fields      []alertEmbedField `json:"fields,omitempty"`
	Footer      *alertEmbedFooter `json:"footer,omitempty"`
	Timestamp   string            `json:"timestamp,omitempty"`
}

type alertPayload struct {
	Username string       `json:"username,omitempty"`
	Content  string       `json:"content,omitempty"`
	Embeds   []alertEmbed `json:"embeds,omitempty"`
}

// Alert color constants
const (
	ColorRed   = 0xFF0000 // Malicious detection
	ColorGreen = 0x00FF00 // Test / success
)

func NewAlertService() *AlertService {
	return &AlertService{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SetWebhookURL sets the alert webhook URL; empty disables alerts.
func (a *AlertService) SetWebhookURL(url string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.webhookURL = url
}

// IsEnabled returns whether alerting is configured.
func (a *AlertService) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.webhookURL != ""
}

// SendThreatAlert notifies the configured webhook about a malicious
// detection. Failures are logged, never propagated.
func (a *AlertService) SendThreatAlert(threatType string, riskScore, confidence float64, entities string) {
	if !a.IsEnabled() {
		return
	}

	embed := alertEmbed{
		Title:       "Threat Detected",
		Description: fmt.Sprintf("Malicious **%s** activity detected in the fleet", threatType),
		Color:       ColorRed,
		Fields: []alertEmbedField{
			{Name: "Threat Type", Value: threatType, Inline: true},
			{Name: "Risk Score", Value: fmt.Sprintf("%.0f", riskScore), Inline: true},
			{Name: "Confidence", Value: fmt.Sprintf("%.0f%%", confidence*100), Inline: true},
			{Name: "Entities", Value: entities, Inline: false},
		},
		Footer:    &alertEmbedFooter{Text: "AV Sentinel"},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if err := a.send(embed); err != nil {
		system.Warn("Failed to send threat alert: %v", err)
	}
}

// SendTestAlert verifies webhook connectivity.
func (a *AlertService) SendTestAlert() error {
	if !a.IsEnabled() {
		return fmt.Errorf("webhook not configured")
	}

	embed := alertEmbed{
		Title:       "Webhook Test",
		Description: "Alert webhook is configured correctly.",
		Color:       ColorGreen,
		Fields: []alertEmbedField{
			{Name: "Status", Value: "Connected", Inline: true},
			{Name: "Server Time", Value: time.Now().Format("2006-01-02 15:04:05"), Inline: true},
		},
		Footer:    &alertEmbedFooter{Text: "AV Sentinel"},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	return a.send(embed)
}

func (a *AlertService) send(embed alertEmbed) error {
	a.mu.RLock()
	url := a.webhookURL
	a.mu.RUnlock()

	payload := alertPayload{
		Username: "AV Sentinel",
		Embeds:   []alertEmbed{embed},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal alert payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("alert webhook returned status %d", resp.StatusCode)
	}

	system.Info("Alert webhook sent successfully")
	return nil
}
