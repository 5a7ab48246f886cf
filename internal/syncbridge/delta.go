package syncbridge

import (
	"context"

	"github.com/kikokikok/aeterna-sub004/internal/memory"
)

// computeMemoryDeltas compares each candidate entry's content_hash against
// its last recorded snapshot to classify Added/Modified/Removed (spec §4.4
// Phase 1).
func computeMemoryDeltas(ctx context.Context, states SyncStateStore, tenantID string, current []*memory.Entry, previousIDs map[string]bool) ([]MemoryDelta, error) {
	var deltas []MemoryDelta
	seen := make(map[string]bool, len(current))

	for _, entry := range current {
		seen[entry.ID] = true
		prevHash, existed, err := states.SnapshotHash(ctx, tenantID, entry.ID)
		if err != nil {
			return nil, err
		}
		switch {
		case !existed:
			deltas = append(deltas, MemoryDelta{EntryID: entry.ID, Layer: string(entry.Layer), Kind: DeltaAdded, ContentHash: entry.ContentHash})
		case prevHash != entry.ContentHash:
			deltas = append(deltas, MemoryDelta{EntryID: entry.ID, Layer: string(entry.Layer), Kind: DeltaModified, ContentHash: entry.ContentHash})
		}
	}
	for id := range previousIDs {
		if !seen[id] {
			deltas = append(deltas, MemoryDelta{EntryID: id, Kind: DeltaRemoved})
		}
	}
	return deltas, nil
}

// promotionEligible reports whether a memory delta crosses the
// "promote-to-knowledge" threshold: promoted into team/org/company AND
// carrying structured intent (spec §4.4 Phase 1).
func promotionEligible(entry *memory.Entry) bool {
	if entry.Layer != memory.LayerTeam && entry.Layer != memory.LayerOrg && entry.Layer != memory.LayerCompany {
		return false
	}
	if entry.Metadata == nil {
		return false
	}
	_, hasIntent := entry.Metadata["structured_intent"]
	return hasIntent
}
