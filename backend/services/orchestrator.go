package services

import (
	"context"
	"errors"
	"sync"

	"av-sentinel/backend/models"
	"av-sentinel/backend/system"

	"github.com/google/uuid"
)

// DetectionState is the per-page-instance action state.
type DetectionState int

const (
	StateIdle DetectionState = iota
	StateSubmitting
	StateNarrativeDone
	StatePersisted
	StateFailed
)

func (s DetectionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateNarrativeDone:
		return "narrative_done"
	case StatePersisted:
		return "persisted"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// ErrSuperseded is returned when a run's completion was discarded
// because a newer submission (or a reset) took over the page instance.
var ErrSuperseded = errors.New("detection run superseded by a newer submission")

// DetectionOutcome is the merged result shown to the user and, via the
// event log, persisted for audit. The two are always the same snapshot.
type DetectionOutcome struct {
	Result    InferenceResult `json:"result"`
	Narrative NarrativeResult `json:"narrative"`
	EventID   string          `json:"event_id"`
}

// Orchestrator sequences one detection action: classify, explain,
// append, expose. One instance per detector page; submissions are
// single-flight by contract, with a monotonically increasing token as
// the defensive backstop against overlapping completions.
type Orchestrator struct {
	kind      models.DetectorKind
	inference *InferenceService
	narrative *NarrativeService
	log       *EventLog
	alerts    *AlertService

	mu      sync.Mutex
	token   uint64
	state   DetectionState
	outcome *DetectionOutcome
	lastErr error
}

func NewOrchestrator(kind models.DetectorKind, inference *InferenceService, narrative *NarrativeService, log *EventLog, alerts *AlertService) *Orchestrator {
	return &Orchestrator{
		kind:      kind,
		inference: inference,
		narrative: narrative,
		log:       log,
		alerts:    alerts,
		state:     StateIdle,
	}
}

// Run executes one detection action. On inference failure the action is
// terminal and the error surfaces verbatim. Narrative failure is
// recovered with a static fallback and never fatal. Persistence is
// fire-and-forget. A run whose token went stale mid-flight mutates
// nothing and returns ErrSuperseded.
func (o *Orchestrator) Run(ctx context.Context, req models.DetectionRequest, source, entities string) (*DetectionOutcome, error) {
	o.mu.Lock()
	o.token++
	token := o.token
	o.state = StateSubmitting
	o.outcome = nil
	o.lastErr = nil
	o.mu.Unlock()

	threatType := models.ThreatTypeFor(req.Kind())

	result, err := o.inference.Classify(ctx, req.Kind(), req.Features())
	if err != nil {
		if !o.fail(token, err) {
			return nil, ErrSuperseded
		}
		return nil, err
	}

	narrative, nerr := o.narrative.Explain(ctx, ExplainContext{
		ThreatType: threatType,
		Label:      result.Label,
		Malicious:  result.Malicious,
		Confidence: result.Confidence,
		Inputs:     req.Values(),
	})
	if nerr != nil {
		system.Warn("Narrative generation failed for %s, using fallback: %v", o.kind, nerr)
		narrative = FallbackExplanation(threatType, result)
	}

	outcome := &DetectionOutcome{
		Result:    result,
		Narrative: narrative,
		EventID:   uuid.NewString(),
	}
	if !o.advance(token, StateNarrativeDone, outcome) {
		return nil, ErrSuperseded
	}

	// Persist exactly the snapshot the user sees.
	o.log.Append(o.buildEvent(req, source, entities, outcome))

	if result.Malicious && o.alerts != nil {
		go o.alerts.SendThreatAlert(threatType, riskScore(result), result.Confidence, entities)
	}

	if !o.advance(token, StatePersisted, outcome) {
		return nil, ErrSuperseded
	}
	return outcome, nil
}

// Reset returns the action to Idle and invalidates any in-flight run.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.token++
	o.state = StateIdle
	o.outcome = nil
	o.lastErr = nil
}

// State reports the current action state and last outcome/error.
func (o *Orchestrator) State() (DetectionState, *DetectionOutcome, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state, o.outcome, o.lastErr
}

func (o *Orchestrator) fail(token uint64, err error) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if token != o.token {
		return false
	}
	o.state = StateFailed
	o.lastErr = err
	return true
}

func (o *Orchestrator) advance(token uint64, state DetectionState, outcome *DetectionOutcome) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if token != o.token {
		return false
	}
	o.state = state
	o.outcome = outcome
	return true
}

func (o *Orchestrator) buildEvent(req models.DetectionRequest, source, entities string, outcome *DetectionOutcome) models.ThreatEvent {
	details := models.EventDetails{
		Confidence:      outcome.Result.Confidence,
		Reasoning:       outcome.Narrative.Reasoning,
		MitigationSteps: outcome.Narrative.MitigationSteps,
		Inputs:          req.Values(),
	}
	if req.Kind() == models.DetectorSensor {
		details.Action = outcome.Result.Label
	} else {
		malicious := outcome.Result.Malicious
		details.IsMalicious = &malicious
	}

	return models.ThreatEvent{
		ID:               outcome.EventID,
		ThreatType:       models.ThreatTypeFor(req.Kind()),
		RiskScore:        riskScore(outcome.Result),
		Source:           source,
		DetectedEntities: entities,
		Details:          details,
	}
}

// riskScore is 0 for benign results, else confidence scaled to 0-100.
func riskScore(res InferenceResult) float64 {
	if !res.Malicious {
		return 0
	}
	return res.Confidence * 100
}
