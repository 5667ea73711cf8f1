package services

import (
	"testing"
	"time"

	"av-sentinel/backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func eventAt(t time.Time, threatType string, details models.EventDetails) models.ThreatEvent {
	return models.ThreatEvent{
		ID:         "ev-" + t.Format("20060102150405.000"),
		DetectedAt: &t,
		ThreatType: threatType,
		Details:    details,
	}
}

func TestRecomputeStats_EmptyListHasFullTrend(t *testing.T) {
	now := time.Date(2026, 8, 28, 15, 0, 0, 0, time.UTC)

	stats := RecomputeStats(nil, now)

	require.Len(t, stats.Trend, 7)
	assert.Equal(t, "2026-08-22", stats.Trend[0].Date)
	assert.Equal(t, "2026-08-28", stats.Trend[6].Date)
	for _, p := range stats.Trend {
		assert.Zero(t, p.Sybil)
		assert.Zero(t, p.Sensor)
	}
	assert.Zero(t, stats.SybilMaliciousToday)
	assert.Zero(t, stats.SensorMaliciousToday)
	assert.Zero(t, stats.TotalAlertsToday)
}

func TestRecomputeStats_Idempotent(t *testing.T) {
	now := time.Date(2026, 8, 28, 15, 0, 0, 0, time.UTC)
	events := []models.ThreatEvent{
		eventAt(now.Add(-time.Hour), models.ThreatTypeSybil, models.EventDetails{IsMalicious: boolPtr(true), Confidence: 0.9}),
		eventAt(now.Add(-26*time.Hour), models.ThreatTypeSensor, models.EventDetails{Action: "Emergency Brake", Confidence: 0.7}),
	}

	first := RecomputeStats(events, now)
	second := RecomputeStats(events, now)

	assert.Equal(t, first, second)
}

func TestRecomputeStats_SybilBenignNotCounted(t *testing.T) {
	now := time.Date(2026, 8, 28, 15, 0, 0, 0, time.UTC)
	events := []models.ThreatEvent{
		eventAt(now.Add(-time.Hour), models.ThreatTypeSybil, models.EventDetails{IsMalicious: boolPtr(true), Confidence: 0.82}),
		eventAt(now.Add(-2*time.Hour), models.ThreatTypeSybil, models.EventDetails{IsMalicious: boolPtr(false), Confidence: 0.64}),
	}

	stats := RecomputeStats(events, now)

	assert.Equal(t, 1, stats.Trend[6].Sybil)
	assert.Equal(t, 1, stats.SybilMaliciousToday)
	assert.Equal(t, 1, stats.TotalAlertsToday)
}

func TestRecomputeStats_NormalDrivingExcluded(t *testing.T) {
	now := time.Date(2026, 8, 28, 15, 0, 0, 0, time.UTC)
	events := []models.ThreatEvent{
		eventAt(now.Add(-time.Hour), models.ThreatTypeSensor, models.EventDetails{Action: models.ActionNormalDriving, Confidence: 0.6}),
		eventAt(now.Add(-2*time.Hour), models.ThreatTypeSensor, models.EventDetails{Action: "Slow Down", Confidence: 0.8}),
	}

	stats := RecomputeStats(events, now)

	assert.Equal(t, 1, stats.SensorMaliciousToday)
	assert.Equal(t, 1, stats.TotalAlertsToday)
}

func TestRecomputeStats_PendingTimestampExcluded(t *testing.T) {
	now := time.Date(2026, 8, 28, 15, 0, 0, 0, time.UTC)
	events := []models.ThreatEvent{
		{
			ID:         "pending",
			DetectedAt: nil,
			ThreatType: models.ThreatTypeSybil,
			Details:    models.EventDetails{IsMalicious: boolPtr(true), Confidence: 0.9},
		},
	}

	stats := RecomputeStats(events, now)

	assert.Zero(t, stats.SybilMaliciousToday)
	assert.Zero(t, stats.TotalAlertsToday)
}

func TestRecomputeStats_OldEventsOutsideWindow(t *testing.T) {
	now := time.Date(2026, 8, 28, 15, 0, 0, 0, time.UTC)
	events := []models.ThreatEvent{
		eventAt(now.AddDate(0, 0, -8), models.ThreatTypeSybil, models.EventDetails{IsMalicious: boolPtr(true), Confidence: 0.9}),
		eventAt(now.AddDate(0, 0, -6), models.ThreatTypeSybil, models.EventDetails{IsMalicious: boolPtr(true), Confidence: 0.9}),
	}

	stats := RecomputeStats(events, now)

	require.Len(t, stats.Trend, 7)
	assert.Equal(t, 1, stats.Trend[0].Sybil)
	total := 0
	for _, p := range stats.Trend {
		total += p.Sybil
	}
	assert.Equal(t, 1, total)
}

func TestSubscribeCancelClosesFeed(t *testing.T) {
	db := newTestDB(t)
	diag := NewDiagnosticsBus()
	t.Cleanup(diag.Close)
	agg := NewAggregator(NewEventLog(db, diag))

	updates, cancel := agg.Subscribe()

	agg.refresh()
	select {
	case _, ok := <-updates:
		require.True(t, ok, "feed closed before cancel")
	case <-time.After(2 * time.Second):
		t.Fatal("no broadcast after refresh")
	}

	cancel()
	select {
	case _, ok := <-updates:
		assert.False(t, ok, "feed still open after cancel")
	case <-time.After(2 * time.Second):
		t.Fatal("feed not closed after cancel")
	}

	// Idempotent: a second cancel must not panic on the closed channel.
	cancel()
}

func TestRecomputeStats_DaylightSavingDaysStayInTheirBucket(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// The 7-day window spans the 2026-03-08 spring-forward transition, so
	// the later days are not a whole multiple of 24 hours from the window
	// start.
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, loc)
	events := []models.ThreatEvent{
		eventAt(time.Date(2026, 3, 10, 12, 0, 0, 0, loc), models.ThreatTypeSybil, models.EventDetails{IsMalicious: boolPtr(true), Confidence: 0.9}),
		eventAt(time.Date(2026, 3, 7, 12, 0, 0, 0, loc), models.ThreatTypeSensor, models.EventDetails{Action: "Slow Down", Confidence: 0.8}),
	}

	stats := RecomputeStats(events, now)

	assert.Equal(t, "2026-03-10", stats.Trend[6].Date)
	assert.Equal(t, 1, stats.Trend[6].Sybil)
	assert.Zero(t, stats.Trend[5].Sybil)
	assert.Equal(t, 1, stats.SybilMaliciousToday)
	assert.Equal(t, 1, stats.TotalAlertsToday)

	assert.Equal(t, "2026-03-07", stats.Trend[3].Date)
	assert.Equal(t, 1, stats.Trend[3].Sensor)
}

func TestRecomputeStats_BucketsByCalendarDay(t *testing.T) {
	now := time.Date(2026, 8, 28, 0, 30, 0, 0, time.UTC)
	// Yesterday 23:59 must land in the day-6 bucket, not today's.
	yesterday := time.Date(2026, 8, 27, 23, 59, 0, 0, time.UTC)
	events := []models.ThreatEvent{
		eventAt(yesterday, models.ThreatTypeSybil, models.EventDetails{IsMalicious: boolPtr(true), Confidence: 0.9}),
	}

	stats := RecomputeStats(events, now)

	assert.Equal(t, 1, stats.Trend[5].Sybil)
	assert.Zero(t, stats.Trend[6].Sybil)
	assert.Zero(t, stats.SybilMaliciousToday)
}
