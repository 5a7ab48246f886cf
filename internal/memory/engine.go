package memory

import (
	"context"
	"sort"
	"time"

	"dario.cat/mergo"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kikokikok/aeterna-sub004/internal/tracing"
	"github.com/kikokikok/aeterna-sub004/pkg/aeternaerr"
	"github.com/kikokikok/aeterna-sub004/pkg/env"
	"github.com/kikokikok/aeterna-sub004/pkg/ports"
	"github.com/kikokikok/aeterna-sub004/pkg/tenancy"
	"go.uber.org/zap"
)

// embed wraps the Embedder port call in a span: embedding generation is one
// of the named suspension points (spec §5) and the one most likely to cross
// a process boundary to a model-serving backend.
func (e *Engine) embed(ctx context.Context, text string) ([]float32, error) {
	ctx, span := tracing.Tracer().Start(ctx, "memory.embed")
	defer span.End()
	span.SetAttributes(attribute.Int("aeterna.content_length", len(text)))
	return e.embedder.Embed(ctx, text)
}

// Engine is the Memory Engine handle (spec §4.1). Tests construct a private
// handle over a fake Store; production code wires a *relstore/*vectorstore
// backed Store (spec §9 "Global mutable state -> per-tenant context objects").
type Engine struct {
	store      Store
	embedder   ports.Embedder
	governance GovernanceHook
	dimension  int
	log        *zap.Logger
}

// Option configures an Engine at construction time.
type Option func(*Engine)

func WithGovernance(g GovernanceHook) Option { return func(e *Engine) { e.governance = g } }
func WithLogger(l *zap.Logger) Option        { return func(e *Engine) { e.log = l } }
func WithDimension(d int) Option             { return func(e *Engine) { e.dimension = d } }

// NewEngine constructs a Memory Engine over the given Store and Embedder.
func NewEngine(store Store, embedder ports.Embedder, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		embedder:   embedder,
		governance: NoopGovernance{},
		dimension:  env.EmbeddingDimension.Get(),
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AddInput is the caller-supplied payload for add (spec §4.1).
type AddInput struct {
	Layer      Layer
	Content    string
	Importance float64
	Tags       []string
	Metadata   map[string]any
}

// accessibleLayer checks that tc carries every identifier required to
// address l (spec §3.2 table, §4.1 "Layer access resolution").
func accessibleLayer(tc tenancy.Context, l Layer) bool {
	for _, id := range RequiredIdentifiers(l) {
		switch id {
		case "AgentID":
			if tc.AgentID == "" {
				return false
			}
		case "UserID":
			if tc.UserID == "" {
				return false
			}
		case "SessionID":
			if tc.SessionID == "" {
				return false
			}
		case "ProjectID":
			if tc.ProjectID == "" {
				return false
			}
		case "TeamID":
			if tc.TeamID == "" {
				return false
			}
		case "OrgID":
			if tc.OrgID == "" {
				return false
			}
		case "CompanyID":
			if tc.CompanyID == "" {
				return false
			}
		}
	}
	return true
}

// AccessibleLayers returns the deterministic set of layers reachable given
// the identifiers present on tc (spec §4.1).
func AccessibleLayers(tc tenancy.Context) []Layer {
	all := []Layer{LayerAgent, LayerUser, LayerSession, LayerProject, LayerTeam, LayerOrg, LayerCompany}
	out := make([]Layer, 0, len(all))
	for _, l := range all {
		if accessibleLayer(tc, l) {
			out = append(out, l)
		}
	}
	return out
}

// Add creates a new memory entry (spec §4.1 add).
func (e *Engine) Add(ctx context.Context, tc tenancy.Context, in AddInput) (*Entry, error) {
	const op = "memory.Add"
	if err := tc.Validate(op); err != nil {
		return nil, err
	}
	if !accessibleLayer(tc, in.Layer) {
		return nil, aeternaerr.MissingIdentifier(op, string(in.Layer))
	}
	if in.Content == "" {
		return nil, aeternaerr.InvalidInput(op, "content must not be empty")
	}

	if err := e.governance.ValidateMemoryWrite(ctx, tc.Path(), string(in.Layer), in.Content); err != nil {
		return nil, err
	}

	vec, err := e.embed(ctx, in.Content)
	if err != nil {
		return nil, aeternaerr.Wrap(aeternaerr.CodeStorageError, op, err)
	}
	if len(vec) != e.dimension {
		return nil, aeternaerr.DimensionMismatch(op, e.dimension, len(vec))
	}

	now := time.Now()
	tags := make(map[string]struct{}, len(in.Tags))
	for _, t := range in.Tags {
		tags[t] = struct{}{}
	}
	entry := &Entry{
		ID:          uuid.NewString(),
		Layer:       in.Layer,
		Content:     in.Content,
		Embedding:   vec,
		Importance:  in.Importance,
		Tags:        tags,
		Metadata:    in.Metadata,
		TenantPath:  tc.Path(),
		CreatedAt:   now,
		UpdatedAt:   now,
		ContentHash: ContentHash(in.Content),
		Status:      StatusActive,
	}

	if err := e.store.Insert(ctx, entry); err != nil {
		return nil, aeternaerr.Wrap(aeternaerr.CodeStorageError, op, err)
	}
	return entry, nil
}

// Get retrieves a single entry by id within the tenant's path.
func (e *Engine) Get(ctx context.Context, tc tenancy.Context, id string) (*Entry, error) {
	const op = "memory.Get"
	if err := tc.Validate(op); err != nil {
		return nil, err
	}
	entry, err := e.store.Get(ctx, tc.Path(), id)
	if err != nil {
		return nil, aeternaerr.Wrap(aeternaerr.CodeStorageError, op, err)
	}
	if entry == nil {
		return nil, aeternaerr.NotFound(op, "memory", id)
	}
	return entry, nil
}

// UpdatePatch is a partial update; zero-value fields are left unchanged
// except Metadata, which is merged (spec §4.1 update).
type UpdatePatch struct {
	Content  *string
	Metadata map[string]any
}

// Update re-embeds iff content changed, merges metadata, and bumps UpdatedAt
// (spec §4.1).
func (e *Engine) Update(ctx context.Context, tc tenancy.Context, id string, patch UpdatePatch) (*Entry, error) {
	const op = "memory.Update"
	entry, err := e.Get(ctx, tc, id)
	if err != nil {
		return nil, err
	}

	if patch.Content != nil && *patch.Content != entry.Content {
		if err := e.governance.ValidateMemoryWrite(ctx, tc.Path(), string(entry.Layer), *patch.Content); err != nil {
			return nil, err
		}
		vec, err := e.embed(ctx, *patch.Content)
		if err != nil {
			return nil, aeternaerr.Wrap(aeternaerr.CodeStorageError, op, err)
		}
		entry.Content = *patch.Content
		entry.Embedding = vec
		entry.ContentHash = ContentHash(*patch.Content)
		entry.PointerStale = entry.KnowledgeRef != "" // spec §3.7: knowledge update marks pointer stale; symmetric content edits do the same for downstream assembly.
	}
	if patch.Metadata != nil {
		if entry.Metadata == nil {
			entry.Metadata = map[string]any{}
		}
		if err := mergo.Merge(&entry.Metadata, patch.Metadata, mergo.WithOverride); err != nil {
			return nil, aeternaerr.Wrap(aeternaerr.CodeInternal, op, err)
		}
	}
	entry.UpdatedAt = time.Now()

	if err := e.store.Update(ctx, entry); err != nil {
		return nil, aeternaerr.Wrap(aeternaerr.CodeStorageError, op, err)
	}
	return entry, nil
}

// Delete is idempotent: deleting an absent id is not an error.
func (e *Engine) Delete(ctx context.Context, tc tenancy.Context, id string) error {
	const op = "memory.Delete"
	if err := tc.Validate(op); err != nil {
		return err
	}
	if err := e.store.Delete(ctx, tc.Path(), id); err != nil {
		return aeternaerr.Wrap(aeternaerr.CodeStorageError, op, err)
	}
	return nil
}

// ListFilter narrows a cursor-stable list call.
type ListFilter struct {
	Layer Layer
}

func (e *Engine) List(ctx context.Context, tc tenancy.Context, filter ListFilter, cursor string, limit int) ([]*Entry, string, error) {
	const op = "memory.List"
	if err := tc.Validate(op); err != nil {
		return nil, "", err
	}
	entries, next, err := e.store.List(ctx, tc.Path(), filter.Layer, cursor, limit)
	if err != nil {
		return nil, "", aeternaerr.Wrap(aeternaerr.CodeStorageError, op, err)
	}
	return entries, next, nil
}

// SearchResult is a single deduplicated, ranked search hit.
type SearchResult struct {
	Entry      *Entry
	Similarity float64
}

// SearchOptions configures a search call (spec §4.1 search).
type SearchOptions struct {
	Layers    []Layer // nil means every accessible layer
	Threshold float64 // 0 uses env.SearchSimilarityThreshold default
	Limit     int
}

// Search embeds the query once, concurrently queries each accessible layer,
// unions results, applies the similarity threshold, deduplicates by
// content_hash keeping the highest-precedence occurrence, and sorts by
// (layer_precedence DESC, similarity DESC, recency DESC) (spec §4.1, §8.4,
// scenario S1).
//
// Complexity routing (spec §4.1, §9) and reward-driven promotion (memory-R1)
// are silent infrastructure layered on top in routing.go and reward.go; they
// never change this method's input/output schema.
func (e *Engine) Search(ctx context.Context, tc tenancy.Context, query string, opts SearchOptions) ([]SearchResult, error) {
	const op = "memory.Search"
	if err := tc.Validate(op); err != nil {
		return nil, err
	}
	if query == "" {
		return nil, aeternaerr.InvalidInput(op, "query must not be empty")
	}

	threshold := opts.Threshold
	if threshold == 0 {
		threshold = env.SearchSimilarityThreshold.Get()
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	layers := opts.Layers
	if layers == nil {
		layers = AccessibleLayers(tc)
	} else {
		for _, l := range layers {
			if !accessibleLayer(tc, l) {
				return nil, aeternaerr.MissingIdentifier(op, string(l))
			}
		}
	}

	if plan, ok := routeComplexQuery(query); ok {
		if results, err := e.executePlan(ctx, tc, plan, layers, threshold, limit); err == nil {
			return results, nil
		}
		// decomposition failure falls back to standard search below (spec §4.1).
	}

	return e.standardSearch(ctx, tc, query, layers, threshold, limit)
}

func (e *Engine) standardSearch(ctx context.Context, tc tenancy.Context, query string, layers []Layer, threshold float64, limit int) ([]SearchResult, error) {
	const op = "memory.Search"
	queryVec, err := e.embed(ctx, query)
	if err != nil {
		return nil, aeternaerr.Wrap(aeternaerr.CodeStorageError, op, err)
	}

	type layerResult struct {
		entries []*Entry
		scores  []float64
		err     error
	}
	results := make(chan layerResult, len(layers))
	for _, l := range layers {
		go func(l Layer) {
			entries, scores, err := e.store.SearchLayer(ctx, tc.Path(), l, queryVec, limit)
			results <- layerResult{entries: entries, scores: scores, err: err}
		}(l)
	}

	var all []SearchResult
	for range layers {
		r := <-results
		if r.err != nil {
			return nil, aeternaerr.Wrap(aeternaerr.CodeStorageError, op, r.err)
		}
		for i, ent := range r.entries {
			if r.scores[i] < threshold {
				continue
			}
			all = append(all, SearchResult{Entry: ent, Similarity: r.scores[i]})
		}
	}

	deduped := dedupeByContentHash(all)
	sort.Slice(deduped, func(i, j int) bool {
		a, b := deduped[i], deduped[j]
		if Precedence(a.Entry.Layer) != Precedence(b.Entry.Layer) {
			return Precedence(a.Entry.Layer) > Precedence(b.Entry.Layer)
		}
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		return a.Entry.UpdatedAt.After(b.Entry.UpdatedAt)
	})

	if len(deduped) > limit {
		deduped = deduped[:limit]
	}

	go e.recordAccesses(deduped) // background reward update, never blocks the caller (memory-R1)

	return deduped, nil
}

// dedupeByContentHash keeps, for each content_hash, the occurrence from the
// highest-precedence layer (ties broken by whichever sorts first, resolved
// deterministically by the final sort afterward).
func dedupeByContentHash(all []SearchResult) []SearchResult {
	best := make(map[string]SearchResult, len(all))
	for _, r := range all {
		existing, ok := best[r.Entry.ContentHash]
		if !ok || Precedence(r.Entry.Layer) > Precedence(existing.Entry.Layer) {
			best[r.Entry.ContentHash] = r
		}
	}
	out := make([]SearchResult, 0, len(best))
	for _, r := range best {
		out = append(out, r)
	}
	return out
}

// Promote validates authorization for the target layer, creates a new entry
// there copying content and metadata with provenance, and flips the source
// to a terminal state (spec §4.1 promote, §8.7).
func (e *Engine) Promote(ctx context.Context, tc tenancy.Context, id string, target Layer, reason string) (*Entry, error) {
	const op = "memory.Promote"
	source, err := e.Get(ctx, tc, id)
	if err != nil {
		return nil, err
	}
	if !accessibleLayer(tc, target) {
		return nil, aeternaerr.MissingIdentifier(op, string(target))
	}

	if err := e.governance.AuthorizePromotion(ctx, tc.Path(), string(target), 0); err != nil {
		return nil, err
	}

	mergedMetadata, err := mergeMetadata(source.Metadata, map[string]any{"promotion_reason": reason})
	if err != nil {
		return nil, aeternaerr.Wrap(aeternaerr.CodeInternal, op, err)
	}

	now := time.Now()
	promoted := &Entry{
		ID:           uuid.NewString(),
		Layer:        target,
		Content:      source.Content,
		Embedding:    source.Embedding,
		Importance:   source.Importance,
		Tags:         source.Tags,
		Metadata:     mergedMetadata,
		TenantPath:   tc.Path(),
		CreatedAt:    now,
		UpdatedAt:    now,
		ContentHash:  source.ContentHash,
		Status:       StatusActive,
		PromotedFrom: source.ID,
	}
	if err := e.store.Insert(ctx, promoted); err != nil {
		return nil, aeternaerr.Wrap(aeternaerr.CodeStorageError, op, err)
	}

	source.Status = StatusSuperseded
	source.UpdatedAt = now
	if err := e.store.Update(ctx, source); err != nil {
		return nil, aeternaerr.Wrap(aeternaerr.CodeStorageError, op, err)
	}

	return promoted, nil
}

// mergeMetadata merges extra over a copy of base, extra's keys winning on
// conflict (mergo.WithOverride), matching the teacher's map-merge idiom for
// provenance-tagged metadata (spec §4.1 promote, §9 metadata merge).
func mergeMetadata(base map[string]any, extra map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	if err := mergo.Merge(&out, extra, mergo.WithOverride); err != nil {
		return nil, err
	}
	return out, nil
}
