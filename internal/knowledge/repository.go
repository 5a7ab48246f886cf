package knowledge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kikokikok/aeterna-sub004/pkg/aeternaerr"
	"github.com/kikokikok/aeterna-sub004/pkg/ports"
	"github.com/kikokikok/aeterna-sub004/pkg/tenancy"
	"github.com/stoewer/go-strcase"
)

// Actor is the caller's identity and role for operations gated by role
// (update_status), independent of tenancy.Context so Knowledge does not
// need the full Governance unit graph to check a numeric role precedence.
type Actor struct {
	UserID string
	Role   tenancy.Role
}

// Repository is the Knowledge Repository handle (spec §4.2).
type Repository struct {
	items      ItemStore
	commits    ports.CommitStore
	evaluator  ConstraintEvaluator
	onEvent    func(Event)
}

// Event is emitted for KnowledgeProposed/KnowledgeApproved/KnowledgeRejected
// (spec §4.3.6); the Governance Engine's event log subscribes to these via
// onEvent so Knowledge never imports Governance directly.
type Event struct {
	Kind     string // KnowledgeProposed | KnowledgeApproved | KnowledgeRejected
	TenantID string
	ItemID   string
	Actor    string
}

type Option func(*Repository)

func WithConstraintEvaluator(e ConstraintEvaluator) Option { return func(r *Repository) { r.evaluator = e } }
func WithEventSink(fn func(Event)) Option                  { return func(r *Repository) { r.onEvent = fn } }

func NewRepository(items ItemStore, commits ports.CommitStore, opts ...Option) *Repository {
	r := &Repository{items: items, commits: commits, evaluator: noopEvaluator{}, onEvent: func(Event) {}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ProposeInput is the caller-supplied payload for propose (spec §4.2).
type ProposeInput struct {
	Type        Type
	Layer       Layer
	Title       string
	Summary     string
	Content     string
	Severity    Severity
	Constraints []Constraint
	Tags        []string
}

func slugID(t Type, title string) string {
	return fmt.Sprintf("%s-%s", strings.ToLower(string(t)), strcase.KebabCase(title))
}

// Propose validates schema for the type, generates an id, computes
// content_hash, and creates a Create commit (spec §4.2).
func (r *Repository) Propose(ctx context.Context, tc tenancy.Context, in ProposeInput) (*Item, error) {
	const op = "knowledge.Propose"
	if err := tc.Validate(op); err != nil {
		return nil, err
	}

	if missing := missingFields(in); len(missing) > 0 {
		return nil, aeternaerr.InvalidInput(op, fmt.Sprintf("missing required fields for %s: %v", in.Type, missing))
	}

	id := slugID(in.Type, in.Title)
	if existing, _ := r.items.Get(ctx, tc.TenantID, id); existing != nil {
		return nil, aeternaerr.DuplicateID(op, id)
	}

	now := time.Now()
	item := &Item{
		ID:          id,
		TenantID:    tc.TenantID,
		Type:        in.Type,
		Layer:       in.Layer,
		Title:       in.Title,
		Summary:     in.Summary,
		Content:     in.Content,
		ContentHash: ContentHash(in.Content),
		Status:      StatusDraft,
		Severity:    in.Severity,
		Constraints: in.Constraints,
		Tags:        in.Tags,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := r.items.Insert(ctx, item); err != nil {
		return nil, aeternaerr.Wrap(aeternaerr.CodeStorageError, op, err)
	}
	if err := r.commitAndRebuildManifest(ctx, tc.TenantID, ChangeCreate, []string{id}); err != nil {
		return nil, err
	}
	r.onEvent(Event{Kind: "KnowledgeProposed", TenantID: tc.TenantID, ItemID: id, Actor: tc.UserID})
	return item, nil
}

func missingFields(in ProposeInput) []string {
	var missing []string
	for _, f := range requiredFields(in.Type) {
		switch f {
		case "Title":
			if in.Title == "" {
				missing = append(missing, f)
			}
		case "Summary":
			if in.Summary == "" {
				missing = append(missing, f)
			}
		case "Content":
			if in.Content == "" {
				missing = append(missing, f)
			}
		case "Constraints":
			if len(in.Constraints) == 0 {
				missing = append(missing, f)
			}
		}
	}
	return missing
}

// QueryFilter narrows query() (spec §4.2).
type QueryFilter struct {
	Type     Type
	Layer    Layer
	Status   Status
	Tag      string
	Severity Severity
}

// Query filters and returns summaries only, never full content (spec §4.2).
func (r *Repository) Query(ctx context.Context, tc tenancy.Context, filter QueryFilter) ([]ItemSummary, error) {
	const op = "knowledge.Query"
	if err := tc.Validate(op); err != nil {
		return nil, err
	}
	items, err := r.items.List(ctx, tc.TenantID)
	if err != nil {
		return nil, aeternaerr.Wrap(aeternaerr.CodeStorageError, op, err)
	}

	var out []ItemSummary
	for _, item := range items {
		if filter.Type != "" && item.Type != filter.Type {
			continue
		}
		if filter.Layer != "" && item.Layer != filter.Layer {
			continue
		}
		if filter.Status != "" && item.Status != filter.Status {
			continue
		}
		if filter.Severity != "" && item.Severity != filter.Severity {
			continue
		}
		if filter.Tag != "" && !containsTag(item.Tags, filter.Tag) {
			continue
		}
		out = append(out, ItemSummary{
			ID: item.ID, Type: item.Type, Layer: item.Layer, Title: item.Title,
			Summary: item.Summary, Status: item.Status, Severity: item.Severity,
			Tags: item.Tags, ContentHash: item.ContentHash,
		})
	}
	return out, nil
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

// GetOptions configures get() (spec §4.2).
type GetOptions struct {
	IncludeConstraints bool
	IncludeHistory     bool
}

// Get returns full content. Cross-tenant lookups return NotFound, exactly
// as for an absent id, so existence is never revealed (spec §3.1, §8.1).
func (r *Repository) Get(ctx context.Context, tc tenancy.Context, id string, _ GetOptions) (*Item, error) {
	const op = "knowledge.Get"
	if err := tc.Validate(op); err != nil {
		return nil, err
	}
	item, err := r.items.Get(ctx, tc.TenantID, id)
	if err != nil {
		return nil, aeternaerr.Wrap(aeternaerr.CodeStorageError, op, err)
	}
	if item == nil {
		return nil, aeternaerr.NotFound(op, "knowledge item", id)
	}
	return item, nil
}

// requiredRoleFor returns the minimum role needed to move an item to
// newStatus (spec §4.2: ">= TechLead to Accept; >= Architect to Deprecate
// company/org items").
func requiredRoleFor(item *Item, newStatus Status) tenancy.Role {
	switch newStatus {
	case StatusAccepted:
		return tenancy.RoleTechLead
	case StatusDeprecated:
		if item.Layer == LayerCompany || item.Layer == LayerOrg {
			return tenancy.RoleArchitect
		}
		return tenancy.RoleTechLead
	default:
		return tenancy.RoleDeveloper
	}
}

// UpdateStatus enforces the fixed state machine and role gate, then emits a
// Status commit and governance event (spec §4.2, scenario S4).
func (r *Repository) UpdateStatus(ctx context.Context, tc tenancy.Context, id string, newStatus Status, actor Actor) (*Item, error) {
	const op = "knowledge.UpdateStatus"
	item, err := r.Get(ctx, tc, id, GetOptions{})
	if err != nil {
		return nil, err
	}

	if !CanTransition(item.Status, newStatus) {
		return nil, aeternaerr.New(aeternaerr.CodeInvalidStatusTransition, op,
			fmt.Sprintf("cannot move %s from %s to %s", id, item.Status, newStatus))
	}

	required := requiredRoleFor(item, newStatus)
	if !actor.Role.Dominates(required) {
		return nil, aeternaerr.InsufficientPermissions(op, required.String(), actor.Role.String())
	}

	item.Status = newStatus
	item.UpdatedAt = time.Now()
	if err := r.items.Update(ctx, item); err != nil {
		return nil, aeternaerr.Wrap(aeternaerr.CodeStorageError, op, err)
	}
	if err := r.commitAndRebuildManifest(ctx, tc.TenantID, ChangeStatus, []string{id}); err != nil {
		return nil, err
	}

	kind := "KnowledgeApproved"
	if newStatus == StatusRejected {
		kind = "KnowledgeRejected"
	}
	r.onEvent(Event{Kind: kind, TenantID: tc.TenantID, ItemID: id, Actor: actor.UserID})
	return item, nil
}

// Supersede creates a new item linked via supersedes and flips the old item
// to Superseded, required for immutable ADR/Spec edits (spec §3.3, §4.2).
func (r *Repository) Supersede(ctx context.Context, tc tenancy.Context, oldID string, in ProposeInput, actor Actor) (*Item, error) {
	const op = "knowledge.Supersede"
	old, err := r.Get(ctx, tc, oldID, GetOptions{})
	if err != nil {
		return nil, err
	}
	if !old.Immutable() && old.Status != StatusAccepted {
		return nil, aeternaerr.InvalidInput(op, "supersession is only required for accepted immutable items")
	}

	newItem, err := r.Propose(ctx, tc, in)
	if err != nil {
		return nil, err
	}
	newItem.Supersedes = oldID
	newItem.Version = old.Version + 1
	if err := r.items.Update(ctx, newItem); err != nil {
		return nil, aeternaerr.Wrap(aeternaerr.CodeStorageError, op, err)
	}

	old.Status = StatusSuperseded
	old.SupersededBy = newItem.ID
	old.UpdatedAt = time.Now()
	if err := r.items.Update(ctx, old); err != nil {
		return nil, aeternaerr.Wrap(aeternaerr.CodeStorageError, op, err)
	}
	if err := r.commitAndRebuildManifest(ctx, tc.TenantID, ChangeSupersede, []string{oldID, newItem.ID}); err != nil {
		return nil, err
	}
	return newItem, nil
}

// CheckConstraints evaluates applicable constraints for an item and returns
// a structured report (spec §4.2, delegated to the Governance Engine's
// evaluator implementation to avoid a Knowledge->Governance import cycle).
func (r *Repository) CheckConstraints(ctx context.Context, tc tenancy.Context, id string, evalCtx any) (ValidationReport, error) {
	const op = "knowledge.CheckConstraints"
	item, err := r.Get(ctx, tc, id, GetOptions{})
	if err != nil {
		return ValidationReport{}, err
	}
	report, err := r.evaluator.EvaluateConstraints(ctx, tc.TenantID, item.Constraints, evalCtx)
	if err != nil {
		return ValidationReport{}, aeternaerr.Wrap(aeternaerr.CodeInvalidConstraint, op, err)
	}
	return report, nil
}

// Tip returns the current tip commit hash, or "" if no commit has been made.
func (r *Repository) Tip(ctx context.Context) (string, error) {
	tip, err := r.commits.Tip(ctx)
	if err != nil {
		return "", aeternaerr.Wrap(aeternaerr.CodeStorageError, "knowledge.Tip", err)
	}
	return tip, nil
}

// CommitsSince decodes and returns every commit after fromHash ("" for the
// full history), in order, for callers that need to enumerate affected
// items since a cursor (e.g. the Sync Bridge's Phase 2, spec §4.4).
func (r *Repository) CommitsSince(ctx context.Context, tenantID, fromHash string) ([]Commit, error) {
	raw, err := r.commits.Read(ctx, fromHash)
	if err != nil {
		return nil, aeternaerr.Wrap(aeternaerr.CodeStorageError, "knowledge.CommitsSince", err)
	}
	out := make([]Commit, 0, len(raw))
	for _, rc := range raw {
		c, err := decodeCommit(rc.Data)
		if err != nil {
			return nil, aeternaerr.Wrap(aeternaerr.CodeInternal, "knowledge.CommitsSince", err)
		}
		out = append(out, c)
	}
	return out, nil
}

// commitAndRebuildManifest appends a commit then rebuilds and verifies the
// Manifest from the authoritative item list, never mutating a stored index
// in place (spec §3.6, §4.2, §8.3).
func (r *Repository) commitAndRebuildManifest(ctx context.Context, tenantID string, changeType ChangeType, affected []string) error {
	const op = "knowledge.commit"
	parent, err := r.commits.Tip(ctx)
	if err != nil {
		return aeternaerr.Wrap(aeternaerr.CodeStorageError, op, err)
	}
	now := time.Now()
	hash := ComputeHash(parent, now, "system", changeType, affected)

	items, err := r.items.List(ctx, tenantID)
	if err != nil {
		return aeternaerr.Wrap(aeternaerr.CodeStorageError, op, err)
	}
	byID := make(map[string]*Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	manifest := BuildManifest(byID, hash)

	commit := Commit{
		Hash: hash, ParentHash: parent, Timestamp: now, Author: "system",
		ChangeType: changeType, AffectedItemIDs: affected, ManifestSnapshot: manifest,
	}
	data, marshalErr := encodeCommit(commit)
	if marshalErr != nil {
		return aeternaerr.Wrap(aeternaerr.CodeInternal, op, marshalErr)
	}
	if err := r.commits.Append(ctx, ports.Commit{Hash: hash, Data: data, Timestamp: now.UnixNano()}); err != nil {
		return aeternaerr.Wrap(aeternaerr.CodeStorageError, op, err)
	}
	return nil
}
