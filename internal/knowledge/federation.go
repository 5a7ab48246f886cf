package knowledge

import (
	"context"
	"time"

	"github.com/kikokikok/aeterna-sub004/pkg/aeternaerr"
	"github.com/kikokikok/aeterna-sub004/pkg/tenancy"
)

// Upstream is the narrow capability an upstream repository exposes to a
// federation import (spec §4.2 Federation).
type Upstream interface {
	ListItems(ctx context.Context, layers []Layer) ([]*Item, error)
}

// FederationConflictPolicy selects how a federation import resolves items
// modified on both sides since the last import (spec §4.2: "default:
// local-wins if both sides modified; upstream-wins if local unchanged").
type FederationConflictPolicy string

const (
	ConflictLocalWins    FederationConflictPolicy = "local-wins"
	ConflictUpstreamWins FederationConflictPolicy = "upstream-wins"
)

// FederationConflict is reported, never silently discarded (spec §4.2).
type FederationConflict struct {
	ItemID       string
	LocalHash    string
	UpstreamHash string
	Resolution   FederationConflictPolicy
}

// FederationResult is the outcome of one federation import.
type FederationResult struct {
	Imported  []string
	Updated   []string
	Conflicts []FederationConflict
	CommitHash string
}

// Federate imports new/updated items from upstream subject to tenant
// isolation and conflict resolution, generating a single Federation commit
// (spec §4.2).
func (r *Repository) Federate(ctx context.Context, tc tenancy.Context, upstream Upstream, acceptableLayers []Layer) (*FederationResult, error) {
	const op = "knowledge.Federate"
	if err := tc.Validate(op); err != nil {
		return nil, err
	}

	remoteItems, err := upstream.ListItems(ctx, acceptableLayers)
	if err != nil {
		return nil, aeternaerr.Wrap(aeternaerr.CodeStorageError, op, err)
	}

	result := &FederationResult{}
	var affected []string

	for _, remote := range remoteItems {
		// Tenant isolation: federation never imports into a foreign tenant.
		localCopy := *remote
		localCopy.TenantID = tc.TenantID

		existing, err := r.items.Get(ctx, tc.TenantID, remote.ID)
		if err != nil {
			return nil, aeternaerr.Wrap(aeternaerr.CodeStorageError, op, err)
		}

		switch {
		case existing == nil:
			localCopy.CreatedAt = time.Now()
			localCopy.UpdatedAt = localCopy.CreatedAt
			if err := r.items.Insert(ctx, &localCopy); err != nil {
				return nil, aeternaerr.Wrap(aeternaerr.CodeStorageError, op, err)
			}
			result.Imported = append(result.Imported, remote.ID)
			affected = append(affected, remote.ID)

		case existing.ContentHash == existing.lastKnownUpstreamHash():
			// local unchanged since last sync: upstream wins.
			localCopy.CreatedAt = existing.CreatedAt
			localCopy.UpdatedAt = time.Now()
			if err := r.items.Update(ctx, &localCopy); err != nil {
				return nil, aeternaerr.Wrap(aeternaerr.CodeStorageError, op, err)
			}
			result.Updated = append(result.Updated, remote.ID)
			affected = append(affected, remote.ID)

		case existing.ContentHash != remote.ContentHash:
			// both sides diverged: default local-wins, reported not discarded.
			result.Conflicts = append(result.Conflicts, FederationConflict{
				ItemID: remote.ID, LocalHash: existing.ContentHash,
				UpstreamHash: remote.ContentHash, Resolution: ConflictLocalWins,
			})
		}
	}

	if len(affected) > 0 || len(result.Conflicts) > 0 {
		if err := r.commitAndRebuildManifest(ctx, tc.TenantID, ChangeFederation, affected); err != nil {
			return nil, err
		}
		tip, _ := r.commits.Tip(ctx)
		result.CommitHash = tip
	}

	return result, nil
}

// lastKnownUpstreamHash is a placeholder seam: a full federation tracker
// would persist the upstream hash observed at the last successful import
// per item. Until that tracking table exists, conservative behavior treats
// every divergence as local-wins (see the switch above), never silently
// overwriting local edits.
func (i *Item) lastKnownUpstreamHash() string { return "" }
