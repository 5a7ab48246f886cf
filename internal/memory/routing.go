package memory

import (
	"context"
	"strings"

	"github.com/kikokikok/aeterna-sub004/pkg/env"
	"github.com/kikokikok/aeterna-sub004/pkg/tenancy"
)

// planStepKind enumerates the structured decomposition step types a
// complex query may be rewritten into (spec §4.1 "Complexity routing").
type planStepKind string

const (
	stepSearchLayer   planStepKind = "SearchLayer"
	stepDrillDown     planStepKind = "DrillDown"
	stepFilter        planStepKind = "Filter"
	stepRecursiveCall planStepKind = "RecursiveCall"
	stepAggregate     planStepKind = "Aggregate"
)

type planStep struct {
	Kind planStepKind
	Arg  string
}

type decompositionPlan struct {
	Steps []planStep
}

// multiHopIndicators and temporalAggregateOperators are the keyword classes
// the complexity score weighs (spec §4.1).
var multiHopIndicators = []string{"and then", "after that", "which in turn", "related to"}
var temporalAggregateOperators = []string{"total", "average", "trend", "over time", "since", "compared to"}

// complexityScore is a cheap heuristic over keyword density, multi-hop
// indicators, temporal/aggregate operators, and length (spec §4.1).
func complexityScore(query string) float64 {
	lower := strings.ToLower(query)
	var score float64

	words := strings.Fields(lower)
	if len(words) > 20 {
		score += 0.2
	}

	for _, ind := range multiHopIndicators {
		if strings.Contains(lower, ind) {
			score += 0.25
		}
	}
	for _, op := range temporalAggregateOperators {
		if strings.Contains(lower, op) {
			score += 0.2
		}
	}

	if score > 1 {
		score = 1
	}
	return score
}

// routeComplexQuery computes the complexity score and, if it meets the
// configured threshold, returns a decomposition plan. Routing is invisible
// to callers: Engine.Search falls back to standard search on plan execution
// failure, and the output schema is identical either way (spec §4.1, §9).
func routeComplexQuery(query string) (*decompositionPlan, bool) {
	if complexityScore(query) < env.SearchComplexityThreshold.Get() {
		return nil, false
	}
	return &decompositionPlan{Steps: []planStep{
		{Kind: stepSearchLayer, Arg: query},
		{Kind: stepFilter, Arg: query},
		{Kind: stepAggregate, Arg: query},
	}}, true
}

// executePlan runs a decomposition plan. The current implementation treats
// every plan as an alias for standard search scoped to the same layers and
// threshold; it exists as the seam future step-specific execution (DrillDown,
// RecursiveCall) hangs off without changing Search's public contract.
func (e *Engine) executePlan(ctx context.Context, tc tenancy.Context, plan *decompositionPlan, layers []Layer, threshold float64, limit int) ([]SearchResult, error) {
	if len(plan.Steps) == 0 {
		return nil, errEmptyPlan
	}
	query := plan.Steps[0].Arg
	return e.standardSearch(ctx, tc, query, layers, threshold, limit)
}

var errEmptyPlan = planError("empty decomposition plan")

type planError string

func (e planError) Error() string { return string(e) }
