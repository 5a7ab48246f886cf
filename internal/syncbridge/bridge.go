package syncbridge

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kikokikok/aeterna-sub004/internal/knowledge"
	"github.com/kikokikok/aeterna-sub004/internal/memory"
	"github.com/kikokikok/aeterna-sub004/internal/metrics"
	"github.com/kikokikok/aeterna-sub004/pkg/aeternaerr"
	"github.com/kikokikok/aeterna-sub004/pkg/tenancy"
)

// PromotionThresholdFunc decides whether a memory entry crosses the
// promote-to-knowledge threshold; overridable for tests.
type PromotionThresholdFunc func(*memory.Entry) bool

// Bridge is the Memory<->Knowledge Sync Bridge handle (spec §4.4). It is
// single-writer per tenant: concurrent RunCycle calls for the same tenant
// must be serialized by the caller (an advisory lock, per spec §5); the
// Bridge itself does not hold global state across tenants.
type Bridge struct {
	memoryEngine    *memory.Engine
	knowledgeRepo   *knowledge.Repository
	states          SyncStateStore
	conflictPolicy  map[string]ConflictPolicy // required per tenant; RunCycle errors if absent
	eligible        PromotionThresholdFunc
	log             *zap.Logger
}

type Option func(*Bridge)

func WithLogger(l *zap.Logger) Option { return func(b *Bridge) { b.log = l } }
func WithPromotionThreshold(fn PromotionThresholdFunc) Option {
	return func(b *Bridge) { b.eligible = fn }
}

// NewBridge constructs a Bridge. conflictPolicies maps tenant_id to its
// selected ConflictPolicy; there is no implicit default (spec §4.4).
func NewBridge(memoryEngine *memory.Engine, knowledgeRepo *knowledge.Repository, states SyncStateStore, conflictPolicies map[string]ConflictPolicy, opts ...Option) *Bridge {
	b := &Bridge{
		memoryEngine: memoryEngine, knowledgeRepo: knowledgeRepo, states: states,
		conflictPolicy: conflictPolicies, eligible: promotionEligible, log: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// RunCycle executes one bidirectional reconciliation cycle for tc's tenant
// (spec §4.4). Phase 1 runs memory->knowledge; Phase 2 runs
// knowledge->memory; conflicts are resolved per the tenant's configured
// policy. The cycle is atomic at the sync-state level: state.LastSync only
// advances if both phases complete without error (spec §5 "Sync never
// partially commits").
func (b *Bridge) RunCycle(ctx context.Context, tc tenancy.Context) (CycleResult, error) {
	const op = "syncbridge.RunCycle"
	if err := tc.Validate(op); err != nil {
		return CycleResult{}, err
	}
	policy, ok := b.conflictPolicy[tc.TenantID]
	if !ok {
		return CycleResult{}, aeternaerr.InvalidInput(op, "tenant has no configured sync conflict policy")
	}

	timer := prometheus.NewTimer(metrics.SyncCycleDuration.WithLabelValues(tc.TenantID))
	defer timer.ObserveDuration()

	state, err := b.states.Get(ctx, tc.TenantID)
	if err != nil {
		return CycleResult{}, aeternaerr.Wrap(aeternaerr.CodeStorageError, op, err)
	}

	result, resolveErr := b.runCycleLocked(ctx, tc, policy, state.LastCommit)
	if resolveErr != nil {
		state.Health = HealthDegraded
		state.LastError = resolveErr.Error()
		_ = b.states.Save(ctx, state)
		metrics.SyncCyclesTotal.WithLabelValues(tc.TenantID, "error").Inc()
		return CycleResult{}, resolveErr
	}

	state.LastSync = time.Now()
	state.Health = HealthHealthy
	state.LastError = ""
	state.PendingDeltas = 0
	state.LastCommit = result.CommitHash
	if err := b.states.Save(ctx, state); err != nil {
		metrics.SyncCyclesTotal.WithLabelValues(tc.TenantID, "error").Inc()
		return CycleResult{}, aeternaerr.Wrap(aeternaerr.CodeStorageError, op, err)
	}
	metrics.SyncCyclesTotal.WithLabelValues(tc.TenantID, "success").Inc()
	return result, nil
}

func (b *Bridge) runCycleLocked(ctx context.Context, tc tenancy.Context, policy ConflictPolicy, lastCommit string) (CycleResult, error) {
	var result CycleResult

	entries, _, err := b.memoryEngine.List(ctx, tc, memory.ListFilter{}, "", 1000)
	if err != nil {
		return result, err
	}

	deltas, err := computeMemoryDeltas(ctx, b.states, tc.TenantID, entries, nil)
	if err != nil {
		return result, err
	}

	byID := make(map[string]*memory.Entry, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}

	for _, delta := range deltas {
		entry, ok := byID[delta.EntryID]
		if !ok || delta.Kind == DeltaRemoved {
			continue
		}

		if entry.KnowledgeRef != "" && delta.Kind == DeltaModified {
			diverged, item, err := b.knowledgeDiverged(ctx, tc, entry)
			if err != nil {
				return result, err
			}
			if diverged {
				if err := b.resolveConflict(ctx, tc, entry, item, policy); err != nil {
					return result, err
				}
				result.Conflicts++
				refreshed, getErr := b.memoryEngine.Get(ctx, tc, entry.ID)
				if getErr == nil {
					_ = b.states.SaveSnapshotHash(ctx, tc.TenantID, entry.ID, refreshed.ContentHash)
				}
				continue
			}
		}

		if b.eligible(entry) {
			item, err := b.proposeKnowledgeFromMemory(ctx, tc, entry)
			if err != nil {
				return result, err
			}
			result.MemoryToKnowledge++
			result.ProposalIDs = append(result.ProposalIDs, item.ID)
		}

		if err := b.states.SaveSnapshotHash(ctx, tc.TenantID, entry.ID, entry.ContentHash); err != nil {
			return result, err
		}
	}

	commits, err := b.knowledgeRepo.CommitsSince(ctx, tc.TenantID, lastCommit)
	if err != nil {
		return result, err
	}
	var affected []string
	for _, c := range commits {
		affected = append(affected, c.AffectedItemIDs...)
	}
	touched, err := b.refreshPointers(ctx, tc, dedupeStrings(affected))
	if err != nil {
		return result, err
	}
	result.KnowledgeToMemory = touched

	if tip, err := b.knowledgeRepo.Tip(ctx); err == nil {
		result.CommitHash = tip
	}

	return result, nil
}

// knowledgeDiverged reports whether the knowledge item an entry points to
// was affected by a knowledge commit since the last completed cycle
// (SyncState.LastCommit).
func (b *Bridge) knowledgeDiverged(ctx context.Context, tc tenancy.Context, entry *memory.Entry) (bool, *knowledge.Item, error) {
	item, err := b.knowledgeRepo.Get(ctx, tc, entry.KnowledgeRef, knowledge.GetOptions{})
	if err != nil {
		return false, nil, nil // referenced item gone or cross-tenant: nothing to reconcile against.
	}
	state, err := b.states.Get(ctx, tc.TenantID)
	if err != nil {
		return false, item, err
	}
	commits, err := b.knowledgeRepo.CommitsSince(ctx, tc.TenantID, state.LastCommit)
	if err != nil {
		return false, item, err
	}
	for _, c := range commits {
		for _, id := range c.AffectedItemIDs {
			if id == item.ID {
				return true, item, nil
			}
		}
	}
	return false, item, nil
}

// resolveConflict applies the tenant's configured ConflictPolicy (spec
// §4.4 "Conflict rules").
func (b *Bridge) resolveConflict(ctx context.Context, tc tenancy.Context, entry *memory.Entry, item *knowledge.Item, policy ConflictPolicy) error {
	switch policy {
	case PreferKnowledge:
		_, err := b.memoryEngine.RefreshFromKnowledge(ctx, tc, entry.ID, item.Content, true)
		return err
	case PreferMemory:
		return nil // local change wins; nothing propagated to knowledge this cycle.
	case ManualReview:
		return b.memoryEngine.MarkPointerStale(ctx, tc, entry.ID)
	default:
		return aeternaerr.InvalidInput("syncbridge.resolveConflict", "unknown conflict policy")
	}
}

// proposeKnowledgeFromMemory creates a Draft knowledge proposal for a
// promotion-eligible entry; it is never auto-Accepted (spec §4.4 Phase 1).
func (b *Bridge) proposeKnowledgeFromMemory(ctx context.Context, tc tenancy.Context, entry *memory.Entry) (*knowledge.Item, error) {
	item, err := b.knowledgeRepo.Propose(ctx, tc, knowledge.ProposeInput{
		Type:    knowledge.TypePattern,
		Layer:   memoryLayerToKnowledgeLayer(entry.Layer),
		Title:   "promoted-memory-" + entry.ID,
		Summary: entry.Content,
		Content: entry.Content,
	})
	if err != nil {
		return nil, err
	}
	if _, err := b.memoryEngine.SetKnowledgeRef(ctx, tc, entry.ID, item.ID); err != nil {
		return nil, err
	}
	return item, nil
}

func memoryLayerToKnowledgeLayer(l memory.Layer) knowledge.Layer {
	switch l {
	case memory.LayerTeam:
		return knowledge.LayerTeam
	case memory.LayerOrg:
		return knowledge.LayerOrg
	case memory.LayerCompany:
		return knowledge.LayerCompany
	default:
		return knowledge.LayerProject
	}
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
