package contextarchitect

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kikokikok/aeterna-sub004/internal/tracing"
	"github.com/kikokikok/aeterna-sub004/pkg/aeternaerr"
	"github.com/kikokikok/aeterna-sub004/pkg/ports"
)

// StoredSummary is a single cached summary for a layer or knowledge item
// (spec §4.5: "{depth, content, token_count, generated_at, source_hash,
// personalized?, personalization_context?}").
type StoredSummary struct {
	SourceID               string
	Depth                  ports.SummaryDepth
	Content                string
	TokenCount             int
	GeneratedAt            time.Time
	SourceHash             string
	Personalized           bool
	PersonalizationContext string
	Stale                  bool
}

// SummaryStore persists the summary cache, keyed by source id and depth.
type SummaryStore interface {
	Get(ctx context.Context, sourceID string, depth ports.SummaryDepth) (*StoredSummary, error)
	Put(ctx context.Context, s StoredSummary) error
}

// TierSelector picks which Summarizer to invoke for a given layer, matching
// "tiered model selection: expensive summarizer for agent/user/session;
// cheap summarizer for team/org/company" (spec §4.5).
type TierSelector struct {
	Expensive ports.Summarizer
	Cheap     ports.Summarizer
}

func (ts TierSelector) select_(layer string) ports.Summarizer {
	switch layer {
	case "agent", "user", "session":
		return ts.Expensive
	default:
		return ts.Cheap
	}
}

// CircuitBreaker trips after a run of failures within a window and fails
// fast until it resets (spec §4.5: "trip a circuit breaker after 5 failures
// in 60s").
type CircuitBreaker struct {
	mu         sync.Mutex
	failures   []time.Time
	threshold  int
	window     time.Duration
	open       bool
	openedAt   time.Time
	resetAfter time.Duration
}

func NewCircuitBreaker(threshold int, window, resetAfter time.Duration) *CircuitBreaker {
	return &CircuitBreaker{threshold: threshold, window: window, resetAfter: resetAfter}
}

func (c *CircuitBreaker) Allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.open && time.Since(c.openedAt) > c.resetAfter {
		c.open = false
		c.failures = nil
	}
	return !c.open
}

func (c *CircuitBreaker) RecordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	c.failures = append(c.failures, now)
	cutoff := now.Add(-c.window)
	var kept []time.Time
	for _, f := range c.failures {
		if f.After(cutoff) {
			kept = append(kept, f)
		}
	}
	c.failures = kept
	if len(c.failures) >= c.threshold {
		c.open = true
		c.openedAt = now
	}
}

func (c *CircuitBreaker) RecordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = nil
}

// Generator produces and caches summaries, retrying transient failures and
// falling back to stale cache then truncated raw content (spec §4.5
// "Failure handling").
type Generator struct {
	store   SummaryStore
	tiers   TierSelector
	breaker *CircuitBreaker
}

func NewGenerator(store SummaryStore, tiers TierSelector, breaker *CircuitBreaker) *Generator {
	return &Generator{store: store, tiers: tiers, breaker: breaker}
}

const maxSummaryRetries = 3

// summarize wraps a single Summarizer call in a span: summarizer calls are a
// named suspension point (spec §5) and the retry loop in Generate makes each
// attempt worth distinguishing in a trace.
func (g *Generator) summarize(ctx context.Context, summarizer ports.Summarizer, content string, depth ports.SummaryDepth, attempt int) (*ports.LayerSummary, error) {
	ctx, span := tracing.Tracer().Start(ctx, "contextarchitect.summarize")
	defer span.End()
	span.SetAttributes(
		attribute.Int("aeterna.attempt", attempt),
		attribute.String("aeterna.depth", string(depth)),
	)
	return summarizer.Summarize(ctx, content, depth, "")
}

// Generate produces a LayerSummary at depth for sourceID/layer, retrying up
// to maxSummaryRetries times before falling back to a cached-but-stale
// summary and finally to truncated raw content.
func (g *Generator) Generate(ctx context.Context, sourceID, layer, content string, depth ports.SummaryDepth) (StoredSummary, error) {
	const op = "contextarchitect.Generate"
	sourceHash := hashContent(content)

	if cached, err := g.store.Get(ctx, sourceID, depth); err == nil && cached != nil && cached.SourceHash == sourceHash {
		return *cached, nil
	}

	if !g.breaker.Allow() {
		return g.fallback(ctx, sourceID, layer, content, depth, sourceHash)
	}

	summarizer := g.tiers.select_(layer)
	var lastErr error
	for attempt := 0; attempt < maxSummaryRetries; attempt++ {
		result, err := g.summarize(ctx, summarizer, content, depth, attempt)
		if err == nil {
			g.breaker.RecordSuccess()
			stored := StoredSummary{
				SourceID: sourceID, Depth: depth, Content: result.Content, TokenCount: result.TokenCount,
				GeneratedAt: time.Now(), SourceHash: sourceHash, Personalized: result.Personalized,
			}
			_ = g.store.Put(ctx, stored)
			return stored, nil
		}
		lastErr = err
		g.breaker.RecordFailure()
	}

	fallback, fbErr := g.fallback(ctx, sourceID, layer, content, depth, sourceHash)
	if fbErr != nil {
		return StoredSummary{}, aeternaerr.Wrap(aeternaerr.CodeStorageError, op, lastErr)
	}
	return fallback, nil
}

func (g *Generator) fallback(ctx context.Context, sourceID, layer, content string, depth ports.SummaryDepth, sourceHash string) (StoredSummary, error) {
	if cached, err := g.store.Get(ctx, sourceID, depth); err == nil && cached != nil {
		stale := *cached
		stale.Stale = true
		return stale, nil
	}
	return StoredSummary{
		SourceID: sourceID, Depth: depth, Content: truncate(content, tokenBudgetFor(depth)),
		TokenCount: tokenBudgetFor(depth), GeneratedAt: time.Now(), SourceHash: sourceHash, Stale: true,
	}, nil
}

// tokenBudgetFor returns the approximate token size for a depth (spec §4.5).
func tokenBudgetFor(depth ports.SummaryDepth) int {
	switch depth {
	case ports.DepthSentence:
		return 50
	case ports.DepthParagraph:
		return 200
	case ports.DepthDetailed:
		return 500
	default:
		return 0
	}
}

func truncate(s string, approxTokens int) string {
	maxChars := approxTokens * 4 // rough chars-per-token heuristic for raw fallback.
	if len(s) <= maxChars {
		return s
	}
	return s[:maxChars]
}

func hashContent(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
