package services

import (
	"context"
	"sync"
	"time"

	"av-sentinel/backend/models"
	"av-sentinel/backend/system"
)

const trendDays = 7

// RecomputeStats derives dashboard statistics from the event list. It is
// a pure function of the list and "now": calling it twice on the same
// snapshot yields identical results, and events whose server timestamp
// has not resolved yet are excluded from every count.
func RecomputeStats(events []models.ThreatEvent, now time.Time) models.DashboardStats {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	windowStart := dayStart.AddDate(0, 0, -(trendDays - 1))

	// Buckets are keyed by calendar date, not by elapsed hours: a DST
	// transition inside the window makes days 23 or 25 hours long.
	trend := make([]models.TrendPoint, trendDays)
	buckets := make(map[string]int, trendDays)
	for i := range trend {
		date := windowStart.AddDate(0, 0, i).Format("2006-01-02")
		trend[i].Date = date
		buckets[date] = i
	}

	for _, ev := range events {
		if ev.DetectedAt == nil {
			continue
		}
		bucket, ok := buckets[ev.DetectedAt.In(now.Location()).Format("2006-01-02")]
		if !ok {
			continue
		}

		switch ev.ThreatType {
		case models.ThreatTypeSybil:
			if ev.Details.IsMalicious != nil && *ev.Details.IsMalicious {
				trend[bucket].Sybil++
			}
		case models.ThreatTypeSensor:
			if ev.Details.Action != "" && ev.Details.Action != models.ActionNormalDriving {
				trend[bucket].Sensor++
			}
		}
	}

	today := trend[trendDays-1]
	return models.DashboardStats{
		SybilMaliciousToday:  today.Sybil,
		SensorMaliciousToday: today.Sensor,
		TotalAlertsToday:     today.Sybil + today.Sensor,
		Trend:                trend,
	}
}

// Aggregator keeps DashboardStats current against the live event stream
// and broadcasts each recomputation to subscribers (the websocket feed).
type Aggregator struct {
	log *EventLog

	mu          sync.RWMutex
	current     models.DashboardStats
	subscribers map[chan models.DashboardStats]struct{}
}

func NewAggregator(log *EventLog) *Aggregator {
	return &Aggregator{
		log:         log,
		current:     RecomputeStats(nil, time.Now()),
		subscribers: make(map[chan models.DashboardStats]struct{}),
	}
}

// Run recomputes on every append notification until ctx is done. An
// hourly tick keeps the day buckets honest across midnight.
func (a *Aggregator) Run(ctx context.Context) {
	a.refresh()

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-a.log.Changes():
			a.refresh()
		case <-ticker.C:
			a.refresh()
		case <-ctx.Done():
			return
		}
	}
}

func (a *Aggregator) refresh() {
	events, err := a.log.All()
	if err != nil {
		system.Warn("Failed to read events for stats recomputation: %v", err)
		return
	}

	stats := RecomputeStats(events, time.Now())

	a.mu.Lock()
	a.current = stats
	for ch := range a.subscribers {
		select {
		case ch <- stats:
		default:
			// Slow consumer; it will catch up on the next update.
		}
	}
	a.mu.Unlock()
}

// Current returns the latest stats snapshot.
func (a *Aggregator) Current() models.DashboardStats {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.current
}

// Subscribe registers a stats feed. The returned cancel func must be
// called when the consumer goes away; it closes the channel, so range
// loops over the feed terminate. Cancel is safe to call more than once.
func (a *Aggregator) Subscribe() (<-chan models.DashboardStats, func()) {
	ch := make(chan models.DashboardStats, 4)

	a.mu.Lock()
	a.subscribers[ch] = struct{}{}
	a.mu.Unlock()

	cancel := func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if _, ok := a.subscribers[ch]; ok {
			delete(a.subscribers, ch)
			close(ch)
		}
	}
	return ch, cancel
}
