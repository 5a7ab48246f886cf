package memory

import "context"

// Store is the persistence seam the Engine depends on. Concrete
// implementations live in internal/storage and compose a RelationalStore
// for entry metadata with a VectorStore for embeddings; a fake
// implementation lives under internal/memory/fake for tests.
type Store interface {
	Insert(ctx context.Context, e *Entry) error
	Get(ctx context.Context, tenantPath, id string) (*Entry, error)
	Update(ctx context.Context, e *Entry) error
	Delete(ctx context.Context, tenantPath, id string) error
	List(ctx context.Context, tenantPath string, layer Layer, cursor string, limit int) ([]*Entry, string, error)
	// SearchLayer returns candidates in a single layer ranked by cosine
	// similarity to queryVec, already filtered to tenantPath.
	SearchLayer(ctx context.Context, tenantPath string, layer Layer, queryVec []float32, limit int) ([]*Entry, []float64, error)
}

// GovernanceHook lets the Governance Engine veto memory mutations without
// memory importing governance (spec's control-flow: Governance consumes
// Memory, not the reverse). Engines are wired with a concrete
// *governance.Engine that satisfies this interface structurally.
type GovernanceHook interface {
	// ValidateMemoryWrite returns a PolicyViolation-coded error if content
	// being written to a layer is rejected by active policy.
	ValidateMemoryWrite(ctx context.Context, tenantPath string, layer string, content string) error
	// AuthorizePromotion checks the actor may promote into targetLayer.
	AuthorizePromotion(ctx context.Context, tenantPath string, targetLayer string, actorRole int) error
}

// NoopGovernance allows every write; used when the Memory Engine is
// exercised standalone (spec §2 control flow: "usable independently").
type NoopGovernance struct{}

func (NoopGovernance) ValidateMemoryWrite(context.Context, string, string, string) error { return nil }
func (NoopGovernance) AuthorizePromotion(context.Context, string, string, int) error     { return nil }

var _ GovernanceHook = NoopGovernance{}
