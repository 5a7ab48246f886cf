package memory

import (
	"context"

	"github.com/kikokikok/aeterna-sub004/pkg/aeternaerr"
	"github.com/kikokikok/aeterna-sub004/pkg/env"
	"github.com/kikokikok/aeterna-sub004/pkg/tenancy"
)

// hindsightTag marks a memory entry as an error+resolution pair captured
// for reuse (GLOSSARY "Hindsight note"). Promotion for hindsight notes is
// gated on repeated successful application rather than the generic reward
// threshold, matching the original system's tracked feature
// (SPEC_FULL.md §C).
const hindsightTag = "hindsight"

const metadataResolutionsApplied = "resolutions_applied"

// IsHindsightNote reports whether entry was tagged as a hindsight note.
func IsHindsightNote(entry *Entry) bool {
	_, ok := entry.Tags[hindsightTag]
	return ok
}

// RecordResolutionApplied increments the resolutions_applied counter on a
// hindsight note. Once it crosses env.HindsightPromoteAfter, the same
// promotion path as a reward-threshold crossing is eligible (governance
// still gates the actual Promote call).
func (e *Engine) RecordResolutionApplied(ctx context.Context, tc tenancy.Context, id string) (*Entry, bool, error) {
	const op = "memory.RecordResolutionApplied"
	entry, err := e.Get(ctx, tc, id)
	if err != nil {
		return nil, false, err
	}
	if !IsHindsightNote(entry) {
		return nil, false, aeternaerr.InvalidInput(op, "entry is not tagged as a hindsight note")
	}

	applied := 0
	if v, ok := entry.Metadata[metadataResolutionsApplied]; ok {
		if n, ok := v.(int); ok {
			applied = n
		}
	}
	applied++
	if entry.Metadata == nil {
		entry.Metadata = map[string]any{}
	}
	entry.Metadata[metadataResolutionsApplied] = applied

	if err := e.store.Update(ctx, entry); err != nil {
		return nil, false, aeternaerr.Wrap(aeternaerr.CodeStorageError, op, err)
	}

	eligible := applied >= env.HindsightPromoteAfter.Get()
	return entry, eligible, nil
}
