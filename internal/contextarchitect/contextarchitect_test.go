package contextarchitect_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kikokikok/aeterna-sub004/internal/contextarchitect"
	"github.com/kikokikok/aeterna-sub004/internal/contextarchitect/fake"
	memoryfake "github.com/kikokikok/aeterna-sub004/internal/memory/fake"
	"github.com/kikokikok/aeterna-sub004/pkg/ports"
)

// TestAssemble_GreedyFillWithDemotion implements scenario S6: three
// accessible layers at decreasing relevance (session 0.95, project 0.7,
// company 0.5) under a 300-token budget. The session layer gets the richest
// depth that still fits (Paragraph, 200 tokens); the remaining budget only
// fits Sentence depth (50 tokens) for the other two.
func TestAssemble_GreedyFillWithDemotion(t *testing.T) {
	store := fake.NewSummaryStore()
	store.Seed(contextarchitect.StoredSummary{SourceID: "sess-1", Depth: ports.DepthParagraph, Content: "session summary", TokenCount: 200, SourceHash: "h1"})
	store.Seed(contextarchitect.StoredSummary{SourceID: "proj-1", Depth: ports.DepthSentence, Content: "project summary", TokenCount: 50, SourceHash: "h2"})
	store.Seed(contextarchitect.StoredSummary{SourceID: "org-1", Depth: ports.DepthSentence, Content: "company summary", TokenCount: 50, SourceHash: "h3"})

	tracker := contextarchitect.NewBudgetTracker(contextarchitect.SummarizationBudget{}, nil)
	embedder := memoryfake.NewEmbedder(16)
	architect := contextarchitect.NewArchitect(embedder, store, nil, tracker, 100*time.Millisecond)

	candidates := []contextarchitect.Candidate{
		{SourceID: "sess-1", Layer: "session", Relevance: 0.95},
		{SourceID: "proj-1", Layer: "project", Relevance: 0.7},
		{SourceID: "org-1", Layer: "company", Relevance: 0.5},
	}

	result, err := architect.Assemble(context.Background(), "tenant-a", "how do we deploy", candidates, 300)
	require.NoError(t, err)

	assert.Equal(t, 300, result.TokensUsed)
	assert.False(t, result.Truncated)
	assert.Len(t, result.Sources, 3)
	assert.Equal(t, 200, result.LayerBreakdown["session"])
	assert.Equal(t, 50, result.LayerBreakdown["project"])
	assert.Equal(t, 50, result.LayerBreakdown["company"])
}

// TestAssemble_SkipsCandidateThatDoesNotFitAnyDepth verifies a candidate is
// dropped (not force-included) once even Sentence depth exceeds what
// remains, and the result is marked Truncated.
func TestAssemble_SkipsCandidateThatDoesNotFitAnyDepth(t *testing.T) {
	store := fake.NewSummaryStore()
	store.Seed(contextarchitect.StoredSummary{SourceID: "sess-1", Depth: ports.DepthParagraph, Content: "session summary", TokenCount: 200, SourceHash: "h1"})
	store.Seed(contextarchitect.StoredSummary{SourceID: "proj-1", Depth: ports.DepthSentence, Content: "project summary", TokenCount: 50, SourceHash: "h2"})

	tracker := contextarchitect.NewBudgetTracker(contextarchitect.SummarizationBudget{}, nil)
	embedder := memoryfake.NewEmbedder(16)
	architect := contextarchitect.NewArchitect(embedder, store, nil, tracker, 100*time.Millisecond)

	candidates := []contextarchitect.Candidate{
		{SourceID: "sess-1", Layer: "session", Relevance: 0.95},
		{SourceID: "proj-1", Layer: "project", Relevance: 0.7},
	}

	result, err := architect.Assemble(context.Background(), "tenant-a", "q", candidates, 240)
	require.NoError(t, err)

	assert.Equal(t, 200, result.TokensUsed)
	assert.True(t, result.Truncated)
	assert.Len(t, result.Sources, 1)
}

// TestAssembleForQuery_EmbedsAndScoresByCosineSimilarity checks the
// vector-driven entry point: a layer vector identical to the query's
// embedding is scored, selected, and filled at Sentence depth.
func TestAssembleForQuery_EmbedsAndScoresByCosineSimilarity(t *testing.T) {
	store := fake.NewSummaryStore()
	embedder := memoryfake.NewEmbedder(16)
	tracker := contextarchitect.NewBudgetTracker(contextarchitect.SummarizationBudget{}, nil)
	architect := contextarchitect.NewArchitect(embedder, store, nil, tracker, 100*time.Millisecond)

	ctx := context.Background()
	queryVec, err := embedder.Embed(ctx, "deploy the service")
	require.NoError(t, err)
	matchingVec, err := embedder.Embed(ctx, "deploy the service")
	require.NoError(t, err)
	store.Seed(contextarchitect.StoredSummary{SourceID: "sess-1", Depth: ports.DepthSentence, Content: "s", TokenCount: 50, SourceHash: "h"})

	_ = queryVec

	result, err := architect.AssembleForQuery(ctx, "tenant-a", "deploy the service", []contextarchitect.LayerVector{
		{SourceID: "sess-1", Layer: "session", Vector: matchingVec},
	}, 100)
	require.NoError(t, err)
	assert.Equal(t, 50, result.TokensUsed)
	assert.Len(t, result.Sources, 1)
}
