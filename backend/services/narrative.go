package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// NarrativeResult is free text produced by the generative endpoint (or a
// local fallback). Which fields are set depends on the call site.
type NarrativeResult struct {
	Reasoning       string   `json:"reasoning,omitempty"`
	MitigationSteps []string `json:"mitigationSteps,omitempty"`
	Summary         string   `json:"summary,omitempty"`
	Response        string   `json:"response,omitempty"`
}

// NarrativeError marks a failed generative call. Callers recover with a
// static fallback; this error never reaches the end user.
type NarrativeError struct {
	Message string
}

func (e *NarrativeError) Error() string { return e.Message }

// ExplainContext carries a completed inference into the explanation
// prompt.
type ExplainContext struct {
	ThreatType string
	Label      string
	Malicious  bool
	Confidence float64
	Inputs     map[string]float64
}

// SummaryContext carries today's alert counts into the fleet summary
// prompt. AdditionalContext is optional.
type SummaryContext struct {
	SybilAlertsToday  int
	SensorAlertsToday int
	AdditionalContext string
}

// ChatTurn is one prior turn of an advisor conversation.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatContext carries the user's message, a bounded history and the
// current threat counts. SybilAlerts may be nil when the dashboard has
// no data; the prompt omits the figure rather than failing.
type ChatContext struct {
	Message     string
	History     []ChatTurn
	SybilAlerts *int
}

// maxChatHistory bounds how many prior turns reach the prompt.
const maxChatHistory = 10

// NarrativeService wraps the external generative-text endpoint.
type NarrativeService struct {
	client *http.Client

	mu       sync.RWMutex
	endpoint string
	apiKey   string
}

func NewNarrativeService() *NarrativeService {
	return &NarrativeService{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetEndpoint updates the generative endpoint URL and API key.
func (s *NarrativeService) SetEndpoint(url, apiKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endpoint = url
	s.apiKey = apiKey
}

// Explain asks the model to justify a classification and suggest
// mitigations.
func (s *NarrativeService) Explain(ctx context.Context, ec ExplainContext) (NarrativeResult, error) {
	var res NarrativeResult
	if err := s.generate(ctx, buildExplainPrompt(ec), &res); err != nil {
		return NarrativeResult{}, err
	}
	if res.Reasoning == "" {
		return NarrativeResult{}, &NarrativeError{Message: "generative response missing reasoning"}
	}
	return res, nil
}

// Summarize produces a prioritized fleet threat summary.
func (s *NarrativeService) Summarize(ctx context.Context, sc SummaryContext) (NarrativeResult, error) {
	var res NarrativeResult
	if err := s.generate(ctx, buildSummaryPrompt(sc), &res); err != nil {
		return NarrativeResult{}, err
	}
	if res.Summary == "" {
		return NarrativeResult{}, &NarrativeError{Message: "generative response missing summary"}
	}
	return res, nil
}

// Chat answers one advisor turn.
func (s *NarrativeService) Chat(ctx context.Context, cc ChatContext) (NarrativeResult, error) {
	var res NarrativeResult
	if err := s.generate(ctx, buildChatPrompt(cc), &res); err != nil {
		return NarrativeResult{}, err
	}
	if res.Response == "" {
		return NarrativeResult{}, &NarrativeError{Message: "generative response missing response"}
	}
	return res, nil
}

func (s *NarrativeService) generate(ctx context.Context, prompt string, out *NarrativeResult) error {
	s.mu.RLock()
	url, key := s.endpoint, s.apiKey
	s.mu.RUnlock()

	if url == "" {
		return &NarrativeError{Message: "no generative endpoint configured"}
	}

	body, err := json.Marshal(map[string]string{"prompt": prompt})
	if err != nil {
		return &NarrativeError{Message: "failed to encode prompt: " + err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &NarrativeError{Message: "failed to create request: " + err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return &NarrativeError{Message: "generative endpoint unreachable: " + err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &NarrativeError{Message: "failed to read generative response: " + err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &NarrativeError{Message: remoteErrorMessage(raw, resp.StatusCode)}
	}

	// The remote wire shape is snake_case; NarrativeResult's own tags are
	// the camelCase the dashboard consumes.
	var wire struct {
		Reasoning       string   `json:"reasoning"`
		MitigationSteps []string `json:"mitigation_steps"`
		Summary         string   `json:"summary"`
		Response        string   `json:"response"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return &NarrativeError{Message: "malformed generative response: " + err.Error()}
	}

	out.Reasoning = wire.Reasoning
	out.MitigationSteps = wire.MitigationSteps
	out.Summary = wire.Summary
	out.Response = wire.Response
	return nil
}

/* ---- prompt templates ---- */

func buildExplainPrompt(ec ExplainContext) string {
	var b strings.Builder
	b.WriteString("You are a security analyst specializing in autonomous vehicle threat detection.\n\n")
	fmt.Fprintf(&b, "A %s detector classified a vehicle telemetry sample as %q with %.0f%% confidence.\n",
		ec.ThreatType, ec.Label, ec.Confidence*100)

	if len(ec.Inputs) > 0 {
		b.WriteString("Input features:\n")
		names := make([]string, 0, len(ec.Inputs))
		for name := range ec.Inputs {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "- %s: %v\n", name, ec.Inputs[name])
		}
	}

	b.WriteString("\nExplain the classification in simple terms and list 3-5 recommended technical actions ")
	b.WriteString("to mitigate the threat or maintain vehicle health. ")
	b.WriteString(`Respond as JSON: {"reasoning": string, "mitigation_steps": [string]}.`)
	return b.String()
}

func buildSummaryPrompt(sc SummaryContext) string {
	var b strings.Builder
	b.WriteString("You are a security analyst specializing in autonomous vehicle threat detection.\n\n")
	b.WriteString("Based on the following threat intelligence signals from the fleet today, provide a ")
	b.WriteString("prioritized summary of the most critical threats to vehicle safety. Highlight the most ")
	b.WriteString("pressing issues that require immediate attention.\n\n")
	fmt.Fprintf(&b, "- Sybil Alerts Today: %d\n", sc.SybilAlertsToday)
	fmt.Fprintf(&b, "- Sensor Spoofing Alerts Today: %d\n", sc.SensorAlertsToday)
	b.WriteString("\nAnalyze the risk based on these numbers. If both are high, warn of a coordinated ")
	b.WriteString("multi-vector attack. If only one is active, explain the specific risk of that attack ")
	b.WriteString("type (Sybil for network/identity disruption, Sensor for perception manipulation).\n")
	if sc.AdditionalContext != "" {
		fmt.Fprintf(&b, "\nAdditional Context: %s\n", sc.AdditionalContext)
	}
	b.WriteString("\nRespond as JSON: {\"summary\": string}.")
	return b.String()
}

func buildChatPrompt(cc ChatContext) string {
	var b strings.Builder
	b.WriteString(`You are "Threat Advisor", an intelligent assistant for an Autonomous Vehicle Security Dashboard.

Your role is to explain cybersecurity concepts in simple, non-technical language, answer user
questions about Sybil attacks, sensor spoofing, GPS spoofing and autonomous vehicle threats,
interpret dashboard data related to detected threats, and give clear advice, actions and safety
recommendations.

Behavior rules:
- Always explain concepts step-by-step and avoid heavy technical jargon.
- Assume the user is a student or non-expert. Be calm, helpful and practical.
- If dashboard data is missing, say so politely instead of throwing an error.
- Never mention internal errors, code, APIs or system failures.
`)

	b.WriteString("\nCURRENT THREAT CONTEXT:\n")
	if cc.SybilAlerts != nil {
		fmt.Fprintf(&b, "- Sybil Alerts Detected: %d\n", *cc.SybilAlerts)
	} else {
		b.WriteString("- Live threat data is currently unavailable.\n")
	}

	history := cc.History
	if len(history) > maxChatHistory {
		history = history[len(history)-maxChatHistory:]
	}
	if len(history) > 0 {
		b.WriteString("\nCONVERSATION HISTORY:\n")
		for _, turn := range history {
			fmt.Fprintf(&b, "- %s: %s\n", turn.Role, turn.Content)
		}
	}

	fmt.Fprintf(&b, "\nUser's latest message: %s\n", cc.Message)
	b.WriteString("\nRespond as JSON: {\"response\": string}.")
	return b.String()
}

/* ---- static fallbacks ---- */

// FallbackExplanation derives a deterministic narrative from the already
// known inference result. Reasoning is always non-empty and the
// mitigation list always has at least one step.
func FallbackExplanation(threatType string, res InferenceResult) NarrativeResult {
	pct := int(res.Confidence*100 + 0.5)

	var reasoning string
	if res.Malicious {
		reasoning = fmt.Sprintf("The %s classifier flagged this sample as %q with %d%% confidence.", threatType, res.Label, pct)
	} else {
		reasoning = fmt.Sprintf("The %s classifier found no threat indicators (%q, %d%% confidence).", threatType, res.Label, pct)
	}

	steps := []string{"Review the raw telemetry for this vehicle in the event history."}
	if res.Malicious {
		steps = append(steps,
			"Isolate the affected vehicle from fleet coordination channels.",
			"Cross-check the reported position against redundant sensor sources.",
			"Escalate to the fleet security operator for manual review.",
		)
	} else {
		steps = append(steps, "Continue monitoring; no immediate action required.")
	}

	return NarrativeResult{Reasoning: reasoning, MitigationSteps: steps}
}

// FallbackSummary is the static fleet summary used when the generative
// endpoint fails.
func FallbackSummary(sybilToday, sensorToday int) NarrativeResult {
	total := sybilToday + sensorToday
	var summary string
	switch {
	case total == 0:
		summary = "No malicious activity detected today. Fleet telemetry looks normal."
	case sybilToday > 0 && sensorToday > 0:
		summary = fmt.Sprintf("%d Sybil alerts and %d sensor spoofing flags today. Multiple attack vectors are active; prioritize immediate review of affected vehicles.", sybilToday, sensorToday)
	case sybilToday > 0:
		summary = fmt.Sprintf("%d Sybil alerts today. Network identity integrity is at risk; verify vehicle identities against trusted registries.", sybilToday)
	default:
		summary = fmt.Sprintf("%d sensor spoofing flags today. Vehicle perception may be compromised; cross-validate sensor readings.", sensorToday)
	}
	return NarrativeResult{Summary: summary}
}

// FallbackChatReply is the static advisor reply used when the generative
// endpoint fails.
func FallbackChatReply() NarrativeResult {
	return NarrativeResult{
		Response: "Live threat analysis is currently unavailable. As a general rule: monitor the dashboard for Sybil alerts and sensor spoofing flags, isolate any vehicle showing repeated malicious classifications, and verify its telemetry against redundant sensors before returning it to service.",
	}
}
