package syncbridge_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kikokikok/aeterna-sub004/internal/knowledge"
	knowledgefake "github.com/kikokikok/aeterna-sub004/internal/knowledge/fake"
	"github.com/kikokikok/aeterna-sub004/internal/memory"
	memoryfake "github.com/kikokikok/aeterna-sub004/internal/memory/fake"
	"github.com/kikokikok/aeterna-sub004/internal/syncbridge"
	"github.com/kikokikok/aeterna-sub004/internal/syncbridge/fake"
	"github.com/kikokikok/aeterna-sub004/pkg/tenancy"
)

const testDim = 32

func testTenancy() tenancy.Context {
	return tenancy.Context{TenantID: "tenant-a", UserID: "alice", TeamID: "api"}
}

func newTestBridge(t *testing.T, policy syncbridge.ConflictPolicy) (*syncbridge.Bridge, *memory.Engine, *knowledge.Repository, *fake.StateStore) {
	t.Helper()
	memStore := memoryfake.NewStore()
	embedder := memoryfake.NewEmbedder(testDim)
	memEngine := memory.NewEngine(memStore, embedder, memory.WithDimension(testDim))

	items := knowledgefake.NewItemStore()
	commits := knowledgefake.NewCommitStore()
	repo := knowledge.NewRepository(items, commits)

	states := fake.NewStateStore()
	tc := testTenancy()
	bridge := syncbridge.NewBridge(memEngine, repo, states, map[string]syncbridge.ConflictPolicy{tc.TenantID: policy})
	return bridge, memEngine, repo, states
}

// TestRunCycle_RequiresConflictPolicy verifies there is no implicit default
// sync conflict policy: an unconfigured tenant errors rather than silently
// picking one (spec §4.4).
func TestRunCycle_RequiresConflictPolicy(t *testing.T) {
	memStore := memoryfake.NewStore()
	embedder := memoryfake.NewEmbedder(testDim)
	memEngine := memory.NewEngine(memStore, embedder, memory.WithDimension(testDim))
	items := knowledgefake.NewItemStore()
	commits := knowledgefake.NewCommitStore()
	repo := knowledge.NewRepository(items, commits)
	states := fake.NewStateStore()

	bridge := syncbridge.NewBridge(memEngine, repo, states, map[string]syncbridge.ConflictPolicy{})
	_, err := bridge.RunCycle(context.Background(), testTenancy())
	require.Error(t, err)
}

// TestRunCycle_PreferKnowledgeConflict implements scenario S5: m1 was
// modified locally AND its pointed-to knowledge item k1 was updated via a
// commit since last sync. With PreferKnowledge, m1 is overwritten from k1's
// current content, the prior value is retained under conflict_history.
func TestRunCycle_PreferKnowledgeConflict(t *testing.T) {
	bridge, memEngine, repo, states := newTestBridge(t, syncbridge.PreferKnowledge)
	ctx := context.Background()
	tc := testTenancy()

	k1, err := repo.Propose(ctx, tc, knowledge.ProposeInput{
		Type: knowledge.TypePattern, Layer: knowledge.LayerTeam, Title: "pattern-1", Summary: "s", Content: "original content",
	})
	require.NoError(t, err)

	m1, err := memEngine.Add(ctx, tc, memory.AddInput{Layer: memory.LayerTeam, Content: "seed content"})
	require.NoError(t, err)
	_, err = memEngine.SetKnowledgeRef(ctx, tc, m1.ID, k1.ID)
	require.NoError(t, err)

	// First cycle establishes the sync snapshot baseline.
	_, err = bridge.RunCycle(ctx, tc)
	require.NoError(t, err)

	// Diverge both sides since last sync.
	userContent := "user modified content"
	_, err = memEngine.Update(ctx, tc, m1.ID, memory.UpdatePatch{Content: &userContent})
	require.NoError(t, err)

	_, err = repo.UpdateStatus(ctx, tc, k1.ID, knowledge.StatusProposed, knowledge.Actor{UserID: "dev", Role: tenancy.RoleDeveloper})
	require.NoError(t, err)
	_, err = repo.UpdateStatus(ctx, tc, k1.ID, knowledge.StatusAccepted, knowledge.Actor{UserID: "architect", Role: tenancy.RoleArchitect})
	require.NoError(t, err)

	// Simulate a knowledge commit (c7) updating k1's content directly
	// through a Supersede, the only content-mutation path for an item.
	k1Updated, err := repo.Supersede(ctx, tc, k1.ID, knowledge.ProposeInput{
		Type: knowledge.TypePattern, Layer: knowledge.LayerTeam, Title: "pattern-1-v2", Summary: "s2", Content: "knowledge updated content",
	}, knowledge.Actor{UserID: "architect", Role: tenancy.RoleArchitect})
	require.NoError(t, err)

	// Repoint m1 at the new item id the way a real pointer-chase would
	// after supersession, so the conflict is detected against the live item.
	_, err = memEngine.SetKnowledgeRef(ctx, tc, m1.ID, k1Updated.ID)
	require.NoError(t, err)

	result, err := bridge.RunCycle(ctx, tc)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Conflicts)

	refreshed, err := memEngine.Get(ctx, tc, m1.ID)
	require.NoError(t, err)
	assert.Equal(t, "knowledge updated content", refreshed.Content)
	assert.Contains(t, refreshed.ConflictHist, userContent)

	state, err := states.Get(ctx, tc.TenantID)
	require.NoError(t, err)
	assert.Equal(t, syncbridge.HealthHealthy, state.Health)
}

func TestRunCycle_ManualReviewLeavesContentUntouched(t *testing.T) {
	bridge, memEngine, repo, _ := newTestBridge(t, syncbridge.ManualReview)
	ctx := context.Background()
	tc := testTenancy()

	k1, err := repo.Propose(ctx, tc, knowledge.ProposeInput{
		Type: knowledge.TypePattern, Layer: knowledge.LayerTeam, Title: "pattern-2", Summary: "s", Content: "v1",
	})
	require.NoError(t, err)
	m1, err := memEngine.Add(ctx, tc, memory.AddInput{Layer: memory.LayerTeam, Content: "seed"})
	require.NoError(t, err)
	_, err = memEngine.SetKnowledgeRef(ctx, tc, m1.ID, k1.ID)
	require.NoError(t, err)

	_, err = bridge.RunCycle(ctx, tc)
	require.NoError(t, err)

	userContent := "locally edited"
	_, err = memEngine.Update(ctx, tc, m1.ID, memory.UpdatePatch{Content: &userContent})
	require.NoError(t, err)

	_, err = repo.UpdateStatus(ctx, tc, k1.ID, knowledge.StatusProposed, knowledge.Actor{UserID: "dev", Role: tenancy.RoleDeveloper})
	require.NoError(t, err)
	_, err = repo.UpdateStatus(ctx, tc, k1.ID, knowledge.StatusAccepted, knowledge.Actor{UserID: "architect", Role: tenancy.RoleArchitect})
	require.NoError(t, err)

	k1v2, err := repo.Supersede(ctx, tc, k1.ID, knowledge.ProposeInput{
		Type: knowledge.TypePattern, Layer: knowledge.LayerTeam, Title: "pattern-2-v2", Summary: "s2", Content: "v2",
	}, knowledge.Actor{UserID: "architect", Role: tenancy.RoleArchitect})
	require.NoError(t, err)
	_, err = memEngine.SetKnowledgeRef(ctx, tc, m1.ID, k1v2.ID)
	require.NoError(t, err)

	result, err := bridge.RunCycle(ctx, tc)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Conflicts)

	unchanged, err := memEngine.Get(ctx, tc, m1.ID)
	require.NoError(t, err)
	assert.Equal(t, userContent, unchanged.Content)
}
