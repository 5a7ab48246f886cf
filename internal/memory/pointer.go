package memory

import (
	"context"
	"time"

	"github.com/kikokikok/aeterna-sub004/pkg/aeternaerr"
	"github.com/kikokikok/aeterna-sub004/pkg/tenancy"
)

// SetKnowledgeRef attaches a weak, one-directional pointer from a memory
// entry to a knowledge item (spec §3.7: "pointers are weak and
// one-directional memory->knowledge").
func (e *Engine) SetKnowledgeRef(ctx context.Context, tc tenancy.Context, id, knowledgeRef string) (*Entry, error) {
	entry, err := e.Get(ctx, tc, id)
	if err != nil {
		return nil, err
	}
	entry.KnowledgeRef = knowledgeRef
	entry.PointerStale = false
	entry.UpdatedAt = time.Now()
	if err := e.store.Update(ctx, entry); err != nil {
		return nil, aeternaerr.Wrap(aeternaerr.CodeStorageError, "memory.SetKnowledgeRef", err)
	}
	return entry, nil
}

// MarkPointerStale flags an entry's knowledge pointer stale so it lazily
// refreshes on next read, without touching content or triggering
// re-embedding (spec §4.4 Phase 2).
func (e *Engine) MarkPointerStale(ctx context.Context, tc tenancy.Context, id string) error {
	const op = "memory.MarkPointerStale"
	entry, err := e.Get(ctx, tc, id)
	if err != nil {
		return err
	}
	if entry.KnowledgeRef == "" || entry.PointerStale {
		return nil
	}
	entry.PointerStale = true
	entry.UpdatedAt = time.Now()
	if err := e.store.Update(ctx, entry); err != nil {
		return aeternaerr.Wrap(aeternaerr.CodeStorageError, op, err)
	}
	return nil
}

// RefreshFromKnowledge overwrites an entry's content from a new source
// value (typically a knowledge item's summary or a sync-resolved value),
// retains the prior content under conflict_history when requested, and
// clears the stale flag (spec §4.4 Phase 2, scenario S5).
func (e *Engine) RefreshFromKnowledge(ctx context.Context, tc tenancy.Context, id, newContent string, retainConflictHistory bool) (*Entry, error) {
	const op = "memory.RefreshFromKnowledge"
	entry, err := e.Get(ctx, tc, id)
	if err != nil {
		return nil, err
	}
	vec, err := e.embedder.Embed(ctx, newContent)
	if err != nil {
		return nil, aeternaerr.Wrap(aeternaerr.CodeStorageError, op, err)
	}
	if retainConflictHistory {
		entry.ConflictHist = append(entry.ConflictHist, entry.Content)
	}
	entry.Content = newContent
	entry.Embedding = vec
	entry.ContentHash = ContentHash(newContent)
	entry.PointerStale = false
	entry.UpdatedAt = time.Now()
	if err := e.store.Update(ctx, entry); err != nil {
		return nil, aeternaerr.Wrap(aeternaerr.CodeStorageError, op, err)
	}
	return entry, nil
}
