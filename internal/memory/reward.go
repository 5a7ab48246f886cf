package memory

import (
	"context"
	"math"
	"time"

	"github.com/kikokikok/aeterna-sub004/internal/metrics"
	"github.com/kikokikok/aeterna-sub004/pkg/aeternaerr"
	"github.com/kikokikok/aeterna-sub004/pkg/env"
	"github.com/kikokikok/aeterna-sub004/pkg/tenancy"
	"go.uber.org/zap"
)

// Feedback signals the reward() call in spec §4.1 memory-R1 accepts.
type Feedback string

const (
	FeedbackQuality Feedback = "quality" // +quality, caller-supplied magnitude
	FeedbackIgnored Feedback = "ignored" // -0.5
	FeedbackRefined Feedback = "refined" // +0.3
	FeedbackNone    Feedback = "none"    // 0, no-signal
)

// decayedScore applies the configured half-life to score0 as of elapsed
// duration since it was last touched (spec §9 Open Question resolution:
// continuous decay, applied lazily at read time).
func decayedScore(score0 float64, elapsed time.Duration) float64 {
	halfLife := env.RewardDecayHalfLife.Get()
	if halfLife <= 0 {
		return score0
	}
	return score0 * math.Pow(0.5, float64(elapsed)/float64(halfLife))
}

// recordAccesses applies the access boost to every entry returned by a
// search. This runs off the caller's goroutine and MUST NOT change the
// user-facing search contract (spec §4.1 memory-R1, §9 "Silent optimization
// vs visible feature").
func (e *Engine) recordAccesses(results []SearchResult) {
	ctx := context.Background()
	alpha := env.AccessBoostAlpha.Get()
	for _, r := range results {
		entry := r.Entry
		entry.RewardScore = decayedScore(entry.RewardScore, time.Since(entry.UpdatedAt)) + alpha
		entry.AccessCount++
		if err := e.store.Update(ctx, entry); err != nil {
			e.log.Warn("reward update failed", zap.String("id", entry.ID), zap.Error(err))
		}
	}
}

// Reward applies an explicit feedback signal to a memory's reward_score
// (spec §4.1 memory-R1: reward(id, signal)).
func (e *Engine) Reward(ctx context.Context, tc tenancy.Context, id string, signal Feedback, magnitude float64) (*Entry, error) {
	const op = "memory.Reward"
	entry, err := e.Get(ctx, tc, id)
	if err != nil {
		return nil, err
	}

	delta := 0.0
	switch signal {
	case FeedbackQuality:
		delta = magnitude
	case FeedbackIgnored:
		delta = -0.5
	case FeedbackRefined:
		delta = 0.3
	case FeedbackNone:
		delta = 0
	default:
		return nil, aeternaerr.InvalidInput(op, "unknown feedback signal")
	}

	entry.RewardScore = decayedScore(entry.RewardScore, time.Since(entry.UpdatedAt)) + delta
	entry.UpdatedAt = time.Now()
	if err := e.store.Update(ctx, entry); err != nil {
		return nil, aeternaerr.Wrap(aeternaerr.CodeStorageError, op, err)
	}
	return entry, nil
}

// PromotionProposal is the output of a PromotionEngine scan pass: a memory
// that crossed the layer's threshold and is a candidate for promotion,
// pending governance approval (spec §4.1 memory-R1).
type PromotionProposal struct {
	EntryID     string
	FromLayer   Layer
	ToLayer     Layer
	RewardScore float64
}

// nextLayer returns the layer one step less specific than l along the
// promotion scan order, or "" if l is not eligible for auto-promotion scans.
func nextLayer(l Layer) Layer {
	switch l {
	case LayerAgent:
		return LayerUser
	case LayerUser:
		return LayerSession
	case LayerSession:
		return LayerProject
	default:
		return ""
	}
}

// PromotionEngine is the background daemon that periodically scans the
// agent/user/session layers for entries exceeding the promotion threshold
// and proposes promotion. It never mutates state directly: proposals must
// pass governance via Engine.Promote (spec §4.1 memory-R1, §5 "daemons").
type PromotionEngine struct {
	engine    *Engine
	threshold float64
	interval  time.Duration
	log       *zap.Logger
}

func NewPromotionEngine(e *Engine, log *zap.Logger) *PromotionEngine {
	return &PromotionEngine{
		engine:    e,
		threshold: env.PromotionThreshold.Get(),
		interval:  env.PromotionScanInterval.Get(),
		log:       log,
	}
}

// Scan performs one pass over the promotion scan order for the given
// tenant path, returning candidates above threshold. It does not promote;
// callers (typically a supervisor loop) decide whether/how to act on
// proposals, since promotion requires a TenantContext and a reason.
func (p *PromotionEngine) Scan(ctx context.Context, tenantPath string, entriesByLayer map[Layer][]*Entry) []PromotionProposal {
	var proposals []PromotionProposal
	for _, layer := range promotionScanOrder {
		target := nextLayer(layer)
		if target == "" {
			continue
		}
		metrics.PromotionScansTotal.WithLabelValues(string(layer)).Inc()
		for _, entry := range entriesByLayer[layer] {
			if entry.TenantPath != tenantPath || entry.Status != StatusActive {
				continue
			}
			if entry.RewardScore >= p.threshold {
				proposals = append(proposals, PromotionProposal{
					EntryID:     entry.ID,
					FromLayer:   layer,
					ToLayer:     target,
					RewardScore: entry.RewardScore,
				})
				metrics.PromotionProposalsTotal.WithLabelValues(string(layer), string(target)).Inc()
			}
		}
	}
	return proposals
}

// Run loops Scan every p.interval until ctx is cancelled, emitting proposals
// on proposals. It holds no lock across suspension and is safe to run once
// per tenant (the caller is expected to enforce a per-tenant advisory lock,
// spec §5 "Shared resources").
func (p *PromotionEngine) Run(ctx context.Context, tenantPath string, fetch func(context.Context) map[Layer][]*Entry, proposals chan<- []PromotionProposal) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			entries := fetch(ctx)
			result := p.Scan(ctx, tenantPath, entries)
			if len(result) > 0 {
				select {
				case proposals <- result:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}
