// Package syncbridge implements the bidirectional, delta-based
// reconciliation between the mutable Memory Engine and the versioned
// Knowledge Repository (spec §4.4). It is the apex of the control-flow
// graph: it coordinates both Memory and Knowledge without either importing
// it back.
package syncbridge

import (
	"context"
	"time"
)

// ConflictPolicy selects how the bridge resolves an item that diverged on
// both sides since last_sync. There is no default: every tenant must select
// one explicitly (spec §4.4 "Alternative policies are selectable per
// tenant").
type ConflictPolicy string

const (
	PreferKnowledge ConflictPolicy = "PreferKnowledge"
	PreferMemory    ConflictPolicy = "PreferMemory"
	ManualReview    ConflictPolicy = "ManualReview"
)

// DeltaKind classifies a memory-side change since last_sync (spec §4.4
// Phase 1).
type DeltaKind string

const (
	DeltaAdded    DeltaKind = "Added"
	DeltaModified DeltaKind = "Modified"
	DeltaRemoved  DeltaKind = "Removed"
)

// MemoryDelta is a single classified change to a memory entry.
type MemoryDelta struct {
	EntryID     string
	Layer       string
	Kind        DeltaKind
	ContentHash string
}

// Health is the bridge's externally observable state (spec §4.4 "Failure
// model").
type Health string

const (
	HealthHealthy  Health = "Healthy"
	HealthDegraded Health = "Degraded"
)

// SyncState is the persisted per-tenant cursor (spec §6.2 sync_states).
type SyncState struct {
	TenantID      string
	LastSync      time.Time
	LastCommit    string
	PendingDeltas int
	Health        Health
	LastError     string
}

// SyncStateStore persists SyncState and the per-entry snapshot hashes used
// to detect deltas (spec §4.4 Phase 1 "comparing content_hash against the
// last recorded sync-snapshot").
type SyncStateStore interface {
	Get(ctx context.Context, tenantID string) (SyncState, error)
	Save(ctx context.Context, state SyncState) error
	SnapshotHash(ctx context.Context, tenantID, entryID string) (string, bool, error)
	SaveSnapshotHash(ctx context.Context, tenantID, entryID, hash string) error
}

// CycleResult summarizes one reconciliation cycle.
type CycleResult struct {
	MemoryToKnowledge int
	KnowledgeToMemory int
	Conflicts         int
	ProposalIDs       []string
	CommitHash        string
}
