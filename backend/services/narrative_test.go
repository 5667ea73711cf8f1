package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"av-sentinel/backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNarrative(t *testing.T, handler http.HandlerFunc) *NarrativeService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc := NewNarrativeService()
	svc.SetEndpoint(srv.URL, "")
	return svc
}

func capturedPrompt(t *testing.T, r *http.Request) string {
	t.Helper()
	raw, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	var body struct {
		Prompt string `json:"prompt"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	return body.Prompt
}

func TestExplain_Success(t *testing.T) {
	svc := newTestNarrative(t, func(w http.ResponseWriter, r *http.Request) {
		prompt := capturedPrompt(t, r)
		assert.Contains(t, prompt, "Sybil")
		assert.Contains(t, prompt, "position_x")
		w.Write([]byte(`{"reasoning": "Identity churn suggests a Sybil cluster.", "mitigation_steps": ["Isolate the node"]}`))
	})

	res, err := svc.Explain(context.Background(), ExplainContext{
		ThreatType: models.ThreatTypeSybil,
		Label:      "Malicious",
		Malicious:  true,
		Confidence: 0.82,
		Inputs:     map[string]float64{"position_x": 156.0186},
	})
	require.NoError(t, err)

	assert.Equal(t, "Identity churn suggests a Sybil cluster.", res.Reasoning)
	assert.Equal(t, []string{"Isolate the node"}, res.MitigationSteps)
}

func TestExplain_RemoteFailureIsNarrativeError(t *testing.T) {
	svc := newTestNarrative(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := svc.Explain(context.Background(), ExplainContext{ThreatType: models.ThreatTypeSybil})

	var nErr *NarrativeError
	require.ErrorAs(t, err, &nErr)
}

func TestExplain_MissingReasoningIsNarrativeError(t *testing.T) {
	svc := newTestNarrative(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	_, err := svc.Explain(context.Background(), ExplainContext{ThreatType: models.ThreatTypeSybil})

	var nErr *NarrativeError
	require.ErrorAs(t, err, &nErr)
}

func TestChat_HistoryIsBounded(t *testing.T) {
	var prompt string
	svc := newTestNarrative(t, func(w http.ResponseWriter, r *http.Request) {
		prompt = capturedPrompt(t, r)
		w.Write([]byte(`{"response": "ok"}`))
	})

	history := make([]ChatTurn, 25)
	for i := range history {
		history[i] = ChatTurn{Role: "user", Content: "turn"}
	}
	history[0].Content = "the very first turn"
	history[24].Content = "the very last turn"

	_, err := svc.Chat(context.Background(), ChatContext{Message: "hello", History: history})
	require.NoError(t, err)

	assert.NotContains(t, prompt, "the very first turn")
	assert.Contains(t, prompt, "the very last turn")
	assert.Equal(t, maxChatHistory, strings.Count(prompt, "- user:"))
}

func TestChat_MissingContextIsOmittedNotFatal(t *testing.T) {
	var prompt string
	svc := newTestNarrative(t, func(w http.ResponseWriter, r *http.Request) {
		prompt = capturedPrompt(t, r)
		w.Write([]byte(`{"response": "ok"}`))
	})

	_, err := svc.Chat(context.Background(), ChatContext{Message: "what is a sybil attack?"})
	require.NoError(t, err)

	assert.NotContains(t, prompt, "Sybil Alerts Detected")
	assert.Contains(t, prompt, "unavailable")
}

func TestSummarize_Success(t *testing.T) {
	svc := newTestNarrative(t, func(w http.ResponseWriter, r *http.Request) {
		prompt := capturedPrompt(t, r)
		assert.Contains(t, prompt, "Sybil Alerts Today: 3")
		assert.Contains(t, prompt, "Sensor Spoofing Alerts Today: 1")
		w.Write([]byte(`{"summary": "Elevated Sybil activity."}`))
	})

	res, err := svc.Summarize(context.Background(), SummaryContext{SybilAlertsToday: 3, SensorAlertsToday: 1})
	require.NoError(t, err)
	assert.Equal(t, "Elevated Sybil activity.", res.Summary)
}

func TestFallbackExplanation_AlwaysUsable(t *testing.T) {
	cases := []InferenceResult{
		{Label: "Malicious", Malicious: true, Confidence: 0.82},
		{Label: "Benign", Malicious: false, Confidence: 0.64},
		{Label: "Slow Down", Malicious: true, Confidence: 0.5},
		{Label: models.ActionNormalDriving, Malicious: false, Confidence: 0},
	}

	for _, res := range cases {
		fb := FallbackExplanation(models.ThreatTypeSybil, res)
		assert.NotEmpty(t, fb.Reasoning)
		assert.GreaterOrEqual(t, len(fb.MitigationSteps), 1)
	}
}

func TestFallbackSummaryAndChat_NonEmpty(t *testing.T) {
	assert.NotEmpty(t, FallbackSummary(0, 0).Summary)
	assert.NotEmpty(t, FallbackSummary(2, 0).Summary)
	assert.NotEmpty(t, FallbackSummary(0, 3).Summary)
	assert.NotEmpty(t, FallbackSummary(2, 3).Summary)
	assert.NotEmpty(t, FallbackChatReply().Response)
}
