package syncbridge

import (
	"context"

	"github.com/kikokikok/aeterna-sub004/internal/knowledge"
	"github.com/kikokikok/aeterna-sub004/internal/memory"
	"github.com/kikokikok/aeterna-sub004/pkg/tenancy"
)

// refreshPointers implements Phase 2: for each affected knowledge item,
// mark referencing memories' pointers stale for lazy refresh on next read
// (spec §4.4 Phase 2, §3.7).
func (b *Bridge) refreshPointers(ctx context.Context, tc tenancy.Context, affectedItemIDs []string) (int, error) {
	if len(affectedItemIDs) == 0 {
		return 0, nil
	}
	affected := make(map[string]bool, len(affectedItemIDs))
	for _, id := range affectedItemIDs {
		affected[id] = true
	}

	touched := 0
	cursor := ""
	for {
		entries, next, err := b.memoryEngine.List(ctx, tc, memory.ListFilter{}, cursor, 200)
		if err != nil {
			return touched, err
		}
		for _, entry := range entries {
			if entry.KnowledgeRef == "" || !affected[entry.KnowledgeRef] {
				continue
			}
			if entry.PointerStale {
				continue
			}
			if err := b.memoryEngine.MarkPointerStale(ctx, tc, entry.ID); err != nil {
				return touched, err
			}
			touched++
		}
		if next == "" {
			break
		}
		cursor = next
	}
	return touched, nil
}

// resolvePointer lazily refreshes a single stale pointer on read, pulling
// the referenced knowledge item's current summary (spec §4.4 Phase 2 "mark
// pointer stale; lazily refresh on next read").
func (b *Bridge) resolvePointer(ctx context.Context, tc tenancy.Context, entry *memory.Entry) (*memory.Entry, error) {
	if entry.KnowledgeRef == "" || !entry.PointerStale {
		return entry, nil
	}
	item, err := b.knowledgeRepo.Get(ctx, tc, entry.KnowledgeRef, knowledge.GetOptions{})
	if err != nil {
		return entry, nil // knowledge item gone or cross-tenant: leave the stale pointer as-is.
	}
	refreshed, err := b.memoryEngine.RefreshFromKnowledge(ctx, tc, entry.ID, item.Summary, false)
	if err != nil {
		return entry, err
	}
	return refreshed, nil
}
