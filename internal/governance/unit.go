// Package governance implements organizational unit/role management,
// hierarchical policy resolution, constraint evaluation, drift detection,
// meta-governance, and the append-only governance event log (spec §4.3).
package governance

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/kikokikok/aeterna-sub004/pkg/aeternaerr"
	"github.com/kikokikok/aeterna-sub004/pkg/tenancy"
)

// UnitStore persists organizational units. A fake lives under
// internal/governance/fake; a GORM-backed implementation lives under
// internal/storage.
type UnitStore interface {
	Insert(ctx context.Context, unit *tenancy.OrganizationalUnit) error
	Get(ctx context.Context, tenantID, id string) (*tenancy.OrganizationalUnit, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*tenancy.OrganizationalUnit, error)
}

// RoleAssignment binds a user to a role scoped to a unit.
type RoleAssignment struct {
	UserID string
	UnitID string
	Role   tenancy.Role
}

// RoleStore persists role assignments.
type RoleStore interface {
	Assign(ctx context.Context, tenantID string, assignment RoleAssignment) error
	Remove(ctx context.Context, tenantID, userID, unitID string) error
	ListForUnit(ctx context.Context, tenantID, unitID string) ([]RoleAssignment, error)
}

// Engine is the Governance Engine handle (spec §4.3).
type Engine struct {
	units   UnitStore
	roles   RoleStore
	events  *EventLog
	policies PolicyStore
	meta    MetaGovernance

	mu sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

func WithPolicyStore(p PolicyStore) Option { return func(e *Engine) { e.policies = p } }
func WithMetaGovernance(m MetaGovernance) Option { return func(e *Engine) { e.meta = m } }

// NewEngine wires an Engine over its stores (spec §2: independently
// testable; defaults to the in-process defaultMetaGovernance, which
// requires role dominance for assignments, when none is supplied).
func NewEngine(units UnitStore, roles RoleStore, events *EventLog, opts ...Option) *Engine {
	e := &Engine{units: units, roles: roles, events: events, meta: defaultMetaGovernance{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateUnit validates the parent-type ordering invariant (Company > Org >
// Team > Project) then persists a new unit (spec §4.3.1).
func (e *Engine) CreateUnit(ctx context.Context, tc tenancy.Context, name string, unitType tenancy.UnitType, parentID string) (*tenancy.OrganizationalUnit, error) {
	const op = "governance.CreateUnit"
	if err := tc.Validate(op); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, aeternaerr.InvalidInput(op, "name is required")
	}

	if parentID != "" {
		parent, err := e.units.Get(ctx, tc.TenantID, parentID)
		if err != nil {
			return nil, aeternaerr.Wrap(aeternaerr.CodeStorageError, op, err)
		}
		if parent == nil {
			return nil, aeternaerr.NotFound(op, "organizational unit", parentID)
		}
		if unitType <= parent.Type {
			return nil, aeternaerr.InvalidInput(op, fmt.Sprintf("unit type %s cannot nest under %s", unitType, parent.Type))
		}
	} else if unitType != tenancy.UnitCompany {
		return nil, aeternaerr.InvalidInput(op, "only Company units may be created without a parent")
	}

	unit := &tenancy.OrganizationalUnit{
		ID: uuid.NewString(), TenantID: tc.TenantID, Name: name, Type: unitType, ParentID: parentID,
	}
	if err := e.units.Insert(ctx, unit); err != nil {
		return nil, aeternaerr.Wrap(aeternaerr.CodeStorageError, op, err)
	}
	e.events.AppendTraced(ctx, tc.TenantID, EventUnitCreated, tc.UserID, unit.ID)
	return unit, nil
}

// AssignRole validates the assignment against meta-governance quorum rules
// before persisting (spec §4.3.1, §4.3.5).
func (e *Engine) AssignRole(ctx context.Context, tc tenancy.Context, assignment RoleAssignment, actor tenancy.Role) error {
	const op = "governance.AssignRole"
	if err := tc.Validate(op); err != nil {
		return err
	}
	if !e.meta.CanAssignRole(tc.TenantID, assignment.UnitID, actor, assignment.Role) {
		return aeternaerr.InsufficientPermissions(op, "quorum-approved assigner", actor.String())
	}
	if err := e.roles.Assign(ctx, tc.TenantID, assignment); err != nil {
		return aeternaerr.Wrap(aeternaerr.CodeStorageError, op, err)
	}
	e.events.AppendTraced(ctx, tc.TenantID, EventRoleAssigned, tc.UserID, assignment.UnitID)
	return nil
}

// RemoveRole removes a role assignment, emitting RoleRemoved (spec §4.3.1).
func (e *Engine) RemoveRole(ctx context.Context, tc tenancy.Context, userID, unitID string) error {
	const op = "governance.RemoveRole"
	if err := tc.Validate(op); err != nil {
		return err
	}
	if err := e.roles.Remove(ctx, tc.TenantID, userID, unitID); err != nil {
		return aeternaerr.Wrap(aeternaerr.CodeStorageError, op, err)
	}
	e.events.AppendTraced(ctx, tc.TenantID, EventRoleRemoved, tc.UserID, unitID)
	return nil
}

// NavigateDirection selects ancestor or descendant traversal.
type NavigateDirection string

const (
	DirectionAncestors   NavigateDirection = "Ancestors"
	DirectionDescendants NavigateDirection = "Descendants"
)

// Navigate returns the unit chain within the same tenant: ancestors walk
// parent pointers to the root; descendants walk breadth-first (spec §4.3.1).
func (e *Engine) Navigate(ctx context.Context, tc tenancy.Context, unitID string, direction NavigateDirection) ([]*tenancy.OrganizationalUnit, error) {
	const op = "governance.Navigate"
	if err := tc.Validate(op); err != nil {
		return nil, err
	}
	all, err := e.units.ListByTenant(ctx, tc.TenantID)
	if err != nil {
		return nil, aeternaerr.Wrap(aeternaerr.CodeStorageError, op, err)
	}
	byID := make(map[string]*tenancy.OrganizationalUnit, len(all))
	byParent := make(map[string][]*tenancy.OrganizationalUnit, len(all))
	for _, u := range all {
		byID[u.ID] = u
		byParent[u.ParentID] = append(byParent[u.ParentID], u)
	}
	start, ok := byID[unitID]
	if !ok {
		return nil, aeternaerr.NotFound(op, "organizational unit", unitID)
	}

	if direction == DirectionAncestors {
		var chain []*tenancy.OrganizationalUnit
		cur := start
		for cur.ParentID != "" {
			parent, ok := byID[cur.ParentID]
			if !ok {
				break
			}
			chain = append(chain, parent)
			cur = parent
		}
		return chain, nil
	}

	var result []*tenancy.OrganizationalUnit
	queue := []*tenancy.OrganizationalUnit{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		children := byParent[cur.ID]
		result = append(result, children...)
		queue = append(queue, children...)
	}
	return result, nil
}

// UnitPath returns [root ... L] for policy resolution (spec §4.3.2 step 1).
func (e *Engine) UnitPath(ctx context.Context, tc tenancy.Context, unitID string) ([]*tenancy.OrganizationalUnit, error) {
	ancestors, err := e.Navigate(ctx, tc, unitID, DirectionAncestors)
	if err != nil {
		return nil, err
	}
	unit, err := e.units.Get(ctx, tc.TenantID, unitID)
	if err != nil {
		return nil, aeternaerr.Wrap(aeternaerr.CodeStorageError, "governance.UnitPath", err)
	}
	if unit == nil {
		return nil, aeternaerr.NotFound("governance.UnitPath", "organizational unit", unitID)
	}
	path := make([]*tenancy.OrganizationalUnit, 0, len(ancestors)+1)
	for i := len(ancestors) - 1; i >= 0; i-- {
		path = append(path, ancestors[i])
	}
	path = append(path, unit)
	return path, nil
}
