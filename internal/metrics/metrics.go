// Package metrics exposes the Prometheus counters/histograms for aeterna's
// background daemons (PromotionEngine scans, Sync Bridge cycles, Context
// Architect budget alerts). It never imports the packages it instruments;
// those packages import metrics instead, the same direction dependencies
// flow for zap logging.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PromotionScansTotal counts PromotionEngine.Scan passes per layer.
	PromotionScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aeterna_promotion_scans_total",
		Help: "Number of PromotionEngine scan passes, by source layer.",
	}, []string{"layer"})

	// PromotionProposalsTotal counts proposals a scan pass produced.
	PromotionProposalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aeterna_promotion_proposals_total",
		Help: "Number of promotion proposals raised, by from/to layer.",
	}, []string{"from_layer", "to_layer"})

	// SyncCyclesTotal counts Sync Bridge RunCycle outcomes per tenant.
	SyncCyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aeterna_sync_cycles_total",
		Help: "Number of Sync Bridge reconciliation cycles, by tenant and result.",
	}, []string{"tenant_id", "result"})

	// SyncCycleDuration observes wall-clock time of a RunCycle call.
	SyncCycleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aeterna_sync_cycle_duration_seconds",
		Help:    "Sync Bridge RunCycle duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"tenant_id"})

	// BudgetAlertsTotal counts BudgetTracker threshold alerts raised.
	BudgetAlertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aeterna_summarization_budget_alerts_total",
		Help: "Number of Context Architect summarization budget threshold alerts, by tenant and threshold percentage.",
	}, []string{"tenant_id", "threshold_pct"})
)
