package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"av-sentinel/backend/models"
	"av-sentinel/backend/system"
)

// InferenceResult is the normalized output of any remote classifier.
// Downstream code never branches on the remote response shape.
type InferenceResult struct {
	Label      string  `json:"label"`
	Malicious  bool    `json:"malicious"`
	Confidence float64 `json:"confidence"`
}

// InferenceError is the terminal failure of a detection action: the
// remote classifier was unreachable, returned a non-success status or a
// malformed payload.
type InferenceError struct {
	Message string
}

func (e *InferenceError) Error() string { return e.Message }

// InferenceService posts feature vectors to the external classifier
// endpoints and normalizes their heterogeneous responses.
type InferenceService struct {
	client *http.Client

	mu        sync.RWMutex
	endpoints map[models.DetectorKind]string
}

// NewInferenceService creates the gateway with per-kind endpoint URLs.
func NewInferenceService() *InferenceService {
	return &InferenceService{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		endpoints: make(map[models.DetectorKind]string),
	}
}

// SetEndpoint updates the classifier URL for a detector kind.
func (s *InferenceService) SetEndpoint(kind models.DetectorKind, url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endpoints[kind] = url
}

func (s *InferenceService) endpoint(kind models.DetectorKind) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.endpoints[kind]
}

// classifierResponse covers the three remote shapes. Pointer fields so a
// missing required field is distinguishable from a zero value.
type classifierResponse struct {
	Prediction *int     `json:"prediction"`
	Action     *string  `json:"action"`
	IsSpoofing *bool    `json:"is_spoofing"`
	Confidence *float64 `json:"confidence"`
	Detail     string   `json:"detail"`
}

// Classify posts the feature vector for the given detector kind and
// returns the normalized result. All failures are *InferenceError.
func (s *InferenceService) Classify(ctx context.Context, kind models.DetectorKind, features []float64) (InferenceResult, error) {
	url := s.endpoint(kind)
	if url == "" {
		return InferenceResult{}, &InferenceError{Message: fmt.Sprintf("no classifier endpoint configured for %s", kind)}
	}

	body, err := json.Marshal(map[string][]float64{"features": features})
	if err != nil {
		return InferenceResult{}, &InferenceError{Message: "failed to encode features: " + err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return InferenceResult{}, &InferenceError{Message: "failed to create request: " + err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return InferenceResult{}, &InferenceError{Message: "classifier unreachable: " + err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return InferenceResult{}, &InferenceError{Message: "failed to read classifier response: " + err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := remoteErrorMessage(raw, resp.StatusCode)
		system.Warn("Classifier %s returned %d: %s", kind, resp.StatusCode, msg)
		return InferenceResult{}, &InferenceError{Message: msg}
	}

	var parsed classifierResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return InferenceResult{}, &InferenceError{Message: "malformed classifier response: " + err.Error()}
	}

	return normalize(kind, parsed)
}

// normalize folds the per-detector response shape into InferenceResult.
func normalize(kind models.DetectorKind, r classifierResponse) (InferenceResult, error) {
	if r.Confidence == nil {
		return InferenceResult{}, &InferenceError{Message: "classifier response missing confidence"}
	}
	conf := *r.Confidence
	if conf < 0 || conf > 1 {
		return InferenceResult{}, &InferenceError{Message: fmt.Sprintf("classifier confidence %v outside [0,1]", conf)}
	}

	switch kind {
	case models.DetectorSybil:
		if r.Prediction == nil {
			return InferenceResult{}, &InferenceError{Message: "classifier response missing prediction"}
		}
		malicious := *r.Prediction == 1
		return InferenceResult{Label: maliciousLabel(malicious), Malicious: malicious, Confidence: conf}, nil

	case models.DetectorSensor:
		if r.Action == nil || *r.Action == "" {
			return InferenceResult{}, &InferenceError{Message: "classifier response missing action"}
		}
		return InferenceResult{
			Label:      *r.Action,
			Malicious:  *r.Action != models.ActionNormalDriving,
			Confidence: conf,
		}, nil

	case models.DetectorGps:
		if r.IsSpoofing == nil {
			return InferenceResult{}, &InferenceError{Message: "classifier response missing is_spoofing"}
		}
		return InferenceResult{Label: maliciousLabel(*r.IsSpoofing), Malicious: *r.IsSpoofing, Confidence: conf}, nil
	}

	return InferenceResult{}, &InferenceError{Message: fmt.Sprintf("unknown detector kind %q", kind)}
}

func maliciousLabel(malicious bool) string {
	if malicious {
		return "Malicious"
	}
	return "Benign"
}

// remoteErrorMessage prefers the body-provided message when present.
func remoteErrorMessage(raw []byte, status int) string {
	var body struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Detail != "" {
			return body.Detail
		}
		if body.Error != "" {
			return body.Error
		}
	}
	if text := strings.TrimSpace(string(raw)); text != "" {
		return text
	}
	return fmt.Sprintf("classifier returned status %d", status)
}
