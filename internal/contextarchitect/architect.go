package contextarchitect

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/kikokikok/aeterna-sub004/internal/memory"
	"github.com/kikokikok/aeterna-sub004/pkg/aeternaerr"
	"github.com/kikokikok/aeterna-sub004/pkg/ports"
)

// depthOrder is the demotion ladder tried for each candidate, richest first
// (spec §4.5 "assemble: greedily fill the budget, choosing the highest
// depth that fits; demote Detailed->Paragraph->Sentence as needed").
var depthOrder = []ports.SummaryDepth{ports.DepthDetailed, ports.DepthParagraph, ports.DepthSentence}

// nearFullThreshold stops the greedy fill once this fraction of the budget
// is consumed, rather than chasing diminishing-relevance leftovers (spec
// §4.5 "early-terminate at >=95% full").
const nearFullThreshold = 0.95

// Candidate is one layer or knowledge item eligible for inclusion in an
// assembled context, with a precomputed relevance score against the query.
type Candidate struct {
	SourceID  string
	Layer     string
	Relevance float64 // cosine similarity of the candidate's vector against the query, in [-1, 1]
}

// AssembledContext is the result of a budget-gated context assembly (spec
// §4.5).
type AssembledContext struct {
	Content        string
	TokensUsed     int
	LayerBreakdown map[string]int
	Sources        []string
	Truncated      bool
	Elapsed        time.Duration
}

// Architect assembles per-query context under a token budget from
// pre-computed per-layer summaries (spec §4.5).
type Architect struct {
	embedder  ports.Embedder
	summaries SummaryStore
	generator *Generator
	tracker   *BudgetTracker
	timeout   time.Duration
}

func NewArchitect(embedder ports.Embedder, summaries SummaryStore, generator *Generator, tracker *BudgetTracker, timeout time.Duration) *Architect {
	if timeout <= 0 {
		timeout = 100 * time.Millisecond // matches the p99<=100ms SLO (spec §4.5).
	}
	return &Architect{embedder: embedder, summaries: summaries, generator: generator, tracker: tracker, timeout: timeout}
}

// LayerVector is a candidate source paired with its precomputed context
// vector, used by AssembleForQuery to score relevance against a live query
// embedding rather than a caller-supplied relevance number.
type LayerVector struct {
	SourceID string
	Layer    string
	Vector   ports.Vector
}

// AssembleForQuery embeds query and scores each candidate by cosine
// similarity against its layer context vector before delegating to
// Assemble (spec §4.5 "embed query, compute cosine similarity per
// candidate against layer context vector").
func (a *Architect) AssembleForQuery(ctx context.Context, tenantID, query string, layers []LayerVector, tokenBudget int) (AssembledContext, error) {
	const op = "contextarchitect.AssembleForQuery"
	queryVec, err := a.embedder.Embed(ctx, query)
	if err != nil {
		return AssembledContext{}, aeternaerr.Wrap(aeternaerr.CodeStorageError, op, err)
	}
	candidates := make([]Candidate, 0, len(layers))
	for _, lv := range layers {
		candidates = append(candidates, Candidate{
			SourceID:  lv.SourceID,
			Layer:     lv.Layer,
			Relevance: cosineSimilarity(queryVec, lv.Vector),
		})
	}
	return a.Assemble(ctx, tenantID, query, candidates, tokenBudget)
}

// RankedCandidate attaches a layer-priority-weighted score to a Candidate
// for sort ordering (spec §4.5 "sort by relevance x layer_priority").
type rankedCandidate struct {
	Candidate
	score float64
}

// Assemble scores caller-supplied candidates by relevance x layer priority,
// and greedily fills tokenBudget with the richest depth summary that still
// fits, demoting as the budget tightens (spec §4.5). It respects the
// Architect's timeout, returning whatever was assembled so far (with
// Truncated=true) if the deadline is hit first (spec §4.5 "p99<=100ms SLO;
// on timeout, return partial context").
func (a *Architect) Assemble(ctx context.Context, tenantID, query string, candidates []Candidate, tokenBudget int) (AssembledContext, error) {
	const op = "contextarchitect.Assemble"
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	ranked := make([]rankedCandidate, 0, len(candidates))
	for _, c := range candidates {
		priority := layerPriority(c.Layer)
		ranked = append(ranked, rankedCandidate{Candidate: c, score: c.Relevance * priority})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	result := AssembledContext{LayerBreakdown: make(map[string]int)}
	remaining := tokenBudget

	for _, rc := range ranked {
		if ctx.Err() != nil {
			result.Truncated = true
			break
		}
		if remaining <= 0 {
			result.Truncated = true
			break
		}

		depth, ok := pickDepth(remaining, rc.Layer, a.tracker)
		if !ok {
			result.Truncated = true
			continue
		}

		summary, err := a.resolveSummary(ctx, tenantID, rc.SourceID, rc.Layer, depth)
		if err != nil {
			result.Truncated = true
			continue
		}

		result.Content += summary.Content + "\n"
		result.TokensUsed += summary.TokenCount
		result.LayerBreakdown[rc.Layer] += summary.TokenCount
		result.Sources = append(result.Sources, rc.SourceID)
		remaining -= summary.TokenCount

		if tokenBudget > 0 && float64(result.TokensUsed)/float64(tokenBudget) >= nearFullThreshold {
			break
		}
	}

	result.Elapsed = time.Since(start)
	if ctx.Err() != nil {
		result.Truncated = true
		return result, aeternaerr.Wrap(aeternaerr.CodeInternal, op, ctx.Err())
	}
	return result, nil
}

// resolveSummary fetches a cached summary at depth, generating it on a miss
// via the Generator (which itself applies the retry/fallback/circuit-breaker
// policy from spec §4.5).
func (a *Architect) resolveSummary(ctx context.Context, tenantID, sourceID, layer string, depth ports.SummaryDepth) (StoredSummary, error) {
	if cached, err := a.summaries.Get(ctx, sourceID, depth); err == nil && cached != nil {
		return *cached, nil
	}
	if a.generator == nil {
		return StoredSummary{}, aeternaerr.NotFound("contextarchitect.resolveSummary", "summary", sourceID)
	}
	return a.generator.Generate(ctx, sourceID, layer, "", depth)
}

// pickDepth returns the richest depth that fits within remaining tokens,
// respecting tracker's per-layer cap if set, demoting Detailed->Paragraph->
// Sentence (spec §4.5).
func pickDepth(remaining int, layer string, tracker *BudgetTracker) (ports.SummaryDepth, bool) {
	limit := remaining
	if tracker != nil {
		if layerCap := tracker.LayerCap(layer); layerCap > 0 && layerCap < limit {
			limit = layerCap
		}
	}
	for _, depth := range depthOrder {
		if tokenBudgetFor(depth) <= limit {
			return depth, true
		}
	}
	return "", false
}

// layerPriority weights a layer's relevance score by specificity, matching
// the Memory Engine's layer precedence so the most specific accessible
// layer wins ties (spec §4.5, §3.2).
func layerPriority(layer string) float64 {
	p := memory.Precedence(memory.Layer(layer))
	if p == 0 {
		return 1.0
	}
	return 1.0 + float64(p)*0.05
}

// cosineSimilarity scores a candidate vector against a query vector,
// returning 0 for empty, mismatched-length, or zero-norm vectors.
func cosineSimilarity(a, b ports.Vector) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
