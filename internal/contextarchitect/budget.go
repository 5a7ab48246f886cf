// Package contextarchitect maintains pre-computed per-layer/per-item
// summaries at three depths and assembles them under a token budget for a
// caller's query (spec §4.5).
package contextarchitect

import (
	"sync"
	"time"
)

// SummarizationBudget is a tenant-scoped daily/hourly token cap, optionally
// further capped per layer (spec §4.5 "Budget discipline").
type SummarizationBudget struct {
	TenantID     string
	DailyTokens  int
	HourlyTokens int
	PerLayerCaps map[string]int
}

// BudgetTracker enforces SummarizationBudget consumption and raises alerts
// at 80/90/100% thresholds (spec §4.5).
type BudgetTracker struct {
	mu        sync.Mutex
	budget    SummarizationBudget
	hourSpent int
	daySpent  int
	hourStart time.Time
	dayStart  time.Time
	onAlert   func(pct int)
}

func NewBudgetTracker(budget SummarizationBudget, onAlert func(pct int)) *BudgetTracker {
	now := time.Now()
	if onAlert == nil {
		onAlert = func(int) {}
	}
	return &BudgetTracker{budget: budget, hourStart: now, dayStart: now, onAlert: onAlert}
}

// Reserve attempts to consume tokens for a requested operation; it returns
// false if the budget is exhausted (spec §4.5: "On exhaustion, low-priority
// requests are queued; on queue overflow, new requests are rejected" — the
// queueing policy itself is the caller's responsibility via Reserve's
// boolean result and priority parameter).
func (t *BudgetTracker) Reserve(tokens int, lowPriority bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	if now.Sub(t.hourStart) >= time.Hour {
		t.hourSpent = 0
		t.hourStart = now
	}
	if now.Sub(t.dayStart) >= 24*time.Hour {
		t.daySpent = 0
		t.dayStart = now
	}

	wouldHour := t.hourSpent + tokens
	wouldDay := t.daySpent + tokens

	hourExhausted := t.budget.HourlyTokens > 0 && wouldHour > t.budget.HourlyTokens
	dayExhausted := t.budget.DailyTokens > 0 && wouldDay > t.budget.DailyTokens
	if hourExhausted || dayExhausted {
		if lowPriority {
			return false
		}
		// high-priority requests still fail once the daily cap is hit; the
		// hourly cap alone does not block a high-priority caller.
		if dayExhausted {
			return false
		}
	}

	t.hourSpent = wouldHour
	t.daySpent = wouldDay
	t.fireAlerts()
	return true
}

func (t *BudgetTracker) fireAlerts() {
	if t.budget.DailyTokens <= 0 {
		return
	}
	pct := t.daySpent * 100 / t.budget.DailyTokens
	for _, threshold := range []int{100, 90, 80} {
		if pct >= threshold {
			t.onAlert(threshold)
			return
		}
	}
}

// LayerCap returns the per-layer cap for layer, or 0 if uncapped.
func (t *BudgetTracker) LayerCap(layer string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.budget.PerLayerCaps[layer]
}
