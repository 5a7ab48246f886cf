package memory_test

import (
	"context"
	"testing"

	"github.com/kikokikok/aeterna-sub004/internal/memory"
	"github.com/kikokikok/aeterna-sub004/internal/memory/fake"
	"github.com/kikokikok/aeterna-sub004/pkg/tenancy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDim = 64

func newTestEngine() (*memory.Engine, *fake.Store) {
	store := fake.NewStore()
	embedder := fake.NewEmbedder(testDim)
	engine := memory.NewEngine(store, embedder, memory.WithDimension(testDim))
	return engine, store
}

// TestSearch_LayeredDeduplication exercises scenario S1: the same content
// exists at company and team layers; search must return only the
// higher-precedence team-layer occurrence.
func TestSearch_LayeredDeduplication(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()

	companyTC := tenancy.Context{TenantID: "acme", UserID: "alice", CompanyID: "acme-co"}
	_, err := engine.Add(ctx, companyTC, memory.AddInput{Layer: memory.LayerCompany, Content: "Use PostgreSQL for persistence"})
	require.NoError(t, err)

	teamTC := tenancy.Context{TenantID: "acme", UserID: "alice", TeamID: "api", CompanyID: "acme-co"}
	teamEntry, err := engine.Add(ctx, teamTC, memory.AddInput{Layer: memory.LayerTeam, Content: "Use PostgreSQL for persistence"})
	require.NoError(t, err)

	searchTC := tenancy.Context{TenantID: "acme", UserID: "alice", TeamID: "api", CompanyID: "acme-co"}
	// Threshold 0 would select the configured default (0.7); the
	// bag-of-words test embedder scores this query at 0, so a negative
	// threshold admits every hit.
	results, err := engine.Search(ctx, searchTC, "which database", memory.SearchOptions{Threshold: -1})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, memory.LayerTeam, results[0].Entry.Layer)
	assert.Equal(t, teamEntry.ID, results[0].Entry.ID)
}

// TestAdd_MissingIdentifier covers §4.1 "Attempting to search or add in a
// layer whose required identifiers are missing fails with MissingIdentifier".
func TestAdd_MissingIdentifier(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()
	tc := tenancy.Context{TenantID: "acme"} // no AgentID/UserID

	_, err := engine.Add(ctx, tc, memory.AddInput{Layer: memory.LayerAgent, Content: "hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MissingIdentifier")
}

// TestAdd_MissingTenantContext covers the universal invariant that a
// request with no tenant is rejected before anything else runs.
func TestAdd_MissingTenantContext(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()

	_, err := engine.Add(ctx, tenancy.Context{}, memory.AddInput{Layer: memory.LayerUser, Content: "hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MissingTenantContext")
}

// TestContentHash_Invariant covers the universal property that
// sha256(content) == content_hash after every write.
func TestContentHash_Invariant(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()
	tc := tenancy.Context{TenantID: "acme", UserID: "alice"}

	entry, err := engine.Add(ctx, tc, memory.AddInput{Layer: memory.LayerUser, Content: "remember this"})
	require.NoError(t, err)
	assert.Equal(t, memory.ContentHash("remember this"), entry.ContentHash)

	newContent := "remember this instead"
	updated, err := engine.Update(ctx, tc, entry.ID, memory.UpdatePatch{Content: &newContent})
	require.NoError(t, err)
	assert.Equal(t, memory.ContentHash(newContent), updated.ContentHash)
}

// TestPromote_Invariant covers the universal property that a promoted
// memory carries promoted_from and the original becomes terminal.
func TestPromote_Invariant(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()
	tc := tenancy.Context{TenantID: "acme", UserID: "alice", TeamID: "api"}

	entry, err := engine.Add(ctx, tc, memory.AddInput{Layer: memory.LayerUser, Content: "reusable insight"})
	require.NoError(t, err)

	promoted, err := engine.Promote(ctx, tc, entry.ID, memory.LayerTeam, "exceeded reward threshold")
	require.NoError(t, err)

	assert.Equal(t, entry.ID, promoted.PromotedFrom)

	original, err := engine.Get(ctx, tc, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, memory.StatusSuperseded, original.Status)
}

// TestDelete_Idempotent covers §4.1: delete on an absent id is not an error.
func TestDelete_Idempotent(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()
	tc := tenancy.Context{TenantID: "acme", UserID: "alice"}

	require.NoError(t, engine.Delete(ctx, tc, "does-not-exist"))
}
