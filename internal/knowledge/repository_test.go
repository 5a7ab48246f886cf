package knowledge_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kikokikok/aeterna-sub004/internal/knowledge"
	"github.com/kikokikok/aeterna-sub004/internal/knowledge/fake"
	"github.com/kikokikok/aeterna-sub004/pkg/aeternaerr"
	"github.com/kikokikok/aeterna-sub004/pkg/tenancy"
)

func newTestRepo(t *testing.T) (*knowledge.Repository, *fake.CommitStore) {
	t.Helper()
	items := fake.NewItemStore()
	commits := fake.NewCommitStore()
	return knowledge.NewRepository(items, commits), commits
}

func testTenancy() tenancy.Context {
	return tenancy.Context{TenantID: "tenant-a", UserID: "u1", OrgID: "org-1"}
}

func TestPropose_RequiredFields(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.Propose(ctx, testTenancy(), knowledge.ProposeInput{
		Type:  knowledge.TypeADR,
		Layer: knowledge.LayerTeam,
		Title: "DB selection",
	})
	require.Error(t, err)
	var aerr *aeternaerr.Error
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, aeternaerr.CodeInvalidInput, aerr.Code)
}

func TestPropose_CreatesDraftAndCommit(t *testing.T) {
	repo, commits := newTestRepo(t)
	ctx := context.Background()

	item, err := repo.Propose(ctx, testTenancy(), knowledge.ProposeInput{
		Type:    knowledge.TypeADR,
		Layer:   knowledge.LayerTeam,
		Title:   "DB selection",
		Summary: "pick a database",
		Content: "we pick postgres",
	})
	require.NoError(t, err)
	assert.Equal(t, knowledge.StatusDraft, item.Status)
	assert.Equal(t, knowledge.ContentHash("we pick postgres"), item.ContentHash)

	tip, err := commits.Tip(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, tip)
}

// TestUpdateStatus_RoleGated implements scenario S4: a Developer calling
// update_status to Accepted is rejected; an Architect succeeds.
func TestUpdateStatus_RoleGated(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	tc := testTenancy()

	item, err := repo.Propose(ctx, tc, knowledge.ProposeInput{
		Type:    knowledge.TypeADR,
		Layer:   knowledge.LayerTeam,
		Title:   "adr-042",
		Summary: "summary",
		Content: "content",
	})
	require.NoError(t, err)

	_, err = repo.UpdateStatus(ctx, tc, item.ID, knowledge.StatusProposed, knowledge.Actor{UserID: "dev", Role: tenancy.RoleDeveloper})
	require.NoError(t, err)

	_, err = repo.UpdateStatus(ctx, tc, item.ID, knowledge.StatusAccepted, knowledge.Actor{UserID: "dev", Role: tenancy.RoleDeveloper})
	require.Error(t, err)
	var aerr *aeternaerr.Error
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, aeternaerr.CodeInsufficientPermissions, aerr.Code)

	accepted, err := repo.UpdateStatus(ctx, tc, item.ID, knowledge.StatusAccepted, knowledge.Actor{UserID: "architect", Role: tenancy.RoleArchitect})
	require.NoError(t, err)
	assert.Equal(t, knowledge.StatusAccepted, accepted.Status)
}

func TestUpdateStatus_EmitsEvent(t *testing.T) {
	items := fake.NewItemStore()
	commits := fake.NewCommitStore()
	var events []knowledge.Event
	repo := knowledge.NewRepository(items, commits, knowledge.WithEventSink(func(e knowledge.Event) {
		events = append(events, e)
	}))
	ctx := context.Background()
	tc := testTenancy()

	item, err := repo.Propose(ctx, tc, knowledge.ProposeInput{
		Type: knowledge.TypeADR, Layer: knowledge.LayerTeam, Title: "adr-1", Summary: "s", Content: "c",
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "KnowledgeProposed", events[0].Kind)

	_, err = repo.UpdateStatus(ctx, tc, item.ID, knowledge.StatusProposed, knowledge.Actor{UserID: "dev", Role: tenancy.RoleDeveloper})
	require.NoError(t, err)
	_, err = repo.UpdateStatus(ctx, tc, item.ID, knowledge.StatusAccepted, knowledge.Actor{UserID: "architect", Role: tenancy.RoleArchitect})
	require.NoError(t, err)

	require.Len(t, events, 3)
	assert.Equal(t, "KnowledgeApproved", events[2].Kind)
}

func TestUpdateStatus_IllegalTransition(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	tc := testTenancy()

	item, err := repo.Propose(ctx, tc, knowledge.ProposeInput{
		Type: knowledge.TypeADR, Layer: knowledge.LayerTeam, Title: "adr-2", Summary: "s", Content: "c",
	})
	require.NoError(t, err)

	_, err = repo.UpdateStatus(ctx, tc, item.ID, knowledge.StatusAccepted, knowledge.Actor{UserID: "architect", Role: tenancy.RoleArchitect})
	require.Error(t, err)
	var aerr *aeternaerr.Error
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, aeternaerr.CodeInvalidStatusTransition, aerr.Code)
}

func TestGet_CrossTenantNotFound(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	tc := testTenancy()

	item, err := repo.Propose(ctx, tc, knowledge.ProposeInput{
		Type: knowledge.TypeADR, Layer: knowledge.LayerTeam, Title: "adr-3", Summary: "s", Content: "c",
	})
	require.NoError(t, err)

	other := tenancy.Context{TenantID: "tenant-b", UserID: "u2", OrgID: "org-2"}
	_, err = repo.Get(ctx, other, item.ID, knowledge.GetOptions{})
	require.Error(t, err)
	var aerr *aeternaerr.Error
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, aeternaerr.CodeNotFound, aerr.Code)
}

func TestSupersede_RequiresAcceptedImmutable(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	tc := testTenancy()

	item, err := repo.Propose(ctx, tc, knowledge.ProposeInput{
		Type: knowledge.TypeADR, Layer: knowledge.LayerTeam, Title: "adr-4", Summary: "s", Content: "c",
	})
	require.NoError(t, err)

	_, err = repo.Supersede(ctx, tc, item.ID, knowledge.ProposeInput{
		Type: knowledge.TypeADR, Layer: knowledge.LayerTeam, Title: "adr-4-v2", Summary: "s2", Content: "c2",
	}, knowledge.Actor{UserID: "architect", Role: tenancy.RoleArchitect})
	require.Error(t, err)

	_, err = repo.UpdateStatus(ctx, tc, item.ID, knowledge.StatusProposed, knowledge.Actor{UserID: "dev", Role: tenancy.RoleDeveloper})
	require.NoError(t, err)
	_, err = repo.UpdateStatus(ctx, tc, item.ID, knowledge.StatusAccepted, knowledge.Actor{UserID: "architect", Role: tenancy.RoleArchitect})
	require.NoError(t, err)

	newItem, err := repo.Supersede(ctx, tc, item.ID, knowledge.ProposeInput{
		Type: knowledge.TypeADR, Layer: knowledge.LayerTeam, Title: "adr-4-v2", Summary: "s2", Content: "c2",
	}, knowledge.Actor{UserID: "architect", Role: tenancy.RoleArchitect})
	require.NoError(t, err)
	assert.Equal(t, item.ID, newItem.Supersedes)

	old, err := repo.Get(ctx, tc, item.ID, knowledge.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, knowledge.StatusSuperseded, old.Status)
	assert.Equal(t, newItem.ID, old.SupersededBy)
}

// TestManifestReplay_Invariant replays commits [0..tip] and checks that the
// hash chain verifies and the returned snapshot is the tip's, covering all
// three items.
func TestManifestReplay_Invariant(t *testing.T) {
	items := fake.NewItemStore()
	commits := fake.NewCommitStore()
	repo := knowledge.NewRepository(items, commits)
	ctx := context.Background()
	tc := testTenancy()

	var lastID string
	for i := 0; i < 3; i++ {
		item, err := repo.Propose(ctx, tc, knowledge.ProposeInput{
			Type: knowledge.TypeADR, Layer: knowledge.LayerTeam,
			Title: "adr-replay-" + string(rune('a'+i)), Summary: "s", Content: "c",
		})
		require.NoError(t, err)
		lastID = item.ID
	}
	_, err := repo.UpdateStatus(ctx, tc, lastID, knowledge.StatusProposed, knowledge.Actor{UserID: "dev", Role: tenancy.RoleDeveloper})
	require.NoError(t, err)

	raw, err := commits.Read(ctx, "")
	require.NoError(t, err)
	encoded := make([][]byte, 0, len(raw))
	for _, c := range raw {
		encoded = append(encoded, c.Data)
	}

	replayed, err := knowledge.ReplayManifest(encoded)
	require.NoError(t, err)

	tip, err := commits.Tip(ctx)
	require.NoError(t, err)
	assert.Equal(t, tip, replayed.TipCommitHash)
	assert.Len(t, replayed.ByID, 3)
}

func TestManifestReplay_DetectsCorruption(t *testing.T) {
	items := fake.NewItemStore()
	commits := fake.NewCommitStore()
	repo := knowledge.NewRepository(items, commits)
	ctx := context.Background()
	tc := testTenancy()

	_, err := repo.Propose(ctx, tc, knowledge.ProposeInput{
		Type: knowledge.TypeADR, Layer: knowledge.LayerTeam, Title: "adr-x", Summary: "s", Content: "c",
	})
	require.NoError(t, err)

	raw, err := commits.Read(ctx, "")
	require.NoError(t, err)
	require.Len(t, raw, 1)

	tampered := make([]byte, len(raw[0].Data))
	copy(tampered, raw[0].Data)
	tampered[len(tampered)-2] ^= 0xFF

	_, err = knowledge.ReplayManifest([][]byte{tampered})
	require.Error(t, err)
}
