// Package tenancy defines the identity and tenancy primitives that every
// public operation across Aeterna's three subsystems depends on (spec §3.1).
package tenancy

import "github.com/kikokikok/aeterna-sub004/pkg/aeternaerr"

// Context is the mandatory tenant scope carried by every public operation.
// Its absence is a MissingTenantContext error; its presence never leaks
// cross-tenant existence (operations on foreign tenant_paths return
// NotFound/empty rather than a permission error).
type Context struct {
	TenantID string
	UserID   string
	AgentID  string
	// SessionID and the unit identifiers below are populated as the caller's
	// request narrows into a specific memory layer or governance unit.
	SessionID string
	ProjectID string
	TeamID    string
	OrgID     string
	CompanyID string
}

// Validate returns MissingTenantContext if the context cannot anchor any
// operation (a bare TenantID is always required).
func (c Context) Validate(operation string) error {
	if c.TenantID == "" {
		return aeternaerr.MissingTenantContext(operation)
	}
	return nil
}

// Path renders the canonical dotted tenant_path used to scope persisted
// records (spec §6.2, GLOSSARY "Tenant path").
func (c Context) Path() string {
	path := c.TenantID
	for _, seg := range []string{c.CompanyID, c.OrgID, c.TeamID, c.ProjectID} {
		if seg != "" {
			path += "." + seg
		}
	}
	return path
}

// Role is the actor's organizational privilege level; numeric precedence
// governs authorization ties (spec §3.1).
type Role int

const (
	RoleAgent Role = iota
	RoleDeveloper
	RoleTechLead
	RoleArchitect
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleAgent:
		return "Agent"
	case RoleDeveloper:
		return "Developer"
	case RoleTechLead:
		return "TechLead"
	case RoleArchitect:
		return "Architect"
	case RoleAdmin:
		return "Admin"
	default:
		return "Unknown"
	}
}

// Dominates reports whether r has at least the privilege of other.
func (r Role) Dominates(other Role) bool { return r >= other }

// ParseRole maps a role name to its Role value, defaulting to the least
// privileged RoleAgent for unknown or empty input so an unauthenticated
// caller never silently gains elevated access.
func ParseRole(name string) Role {
	switch name {
	case "Developer":
		return RoleDeveloper
	case "TechLead":
		return RoleTechLead
	case "Architect":
		return RoleArchitect
	case "Admin":
		return RoleAdmin
	default:
		return RoleAgent
	}
}

// UnitType orders organizational units from coarsest to finest (spec §3.1).
type UnitType int

const (
	UnitCompany UnitType = iota
	UnitOrganization
	UnitTeam
	UnitProject
)

func (t UnitType) String() string {
	switch t {
	case UnitCompany:
		return "Company"
	case UnitOrganization:
		return "Organization"
	case UnitTeam:
		return "Team"
	case UnitProject:
		return "Project"
	default:
		return "Unknown"
	}
}

// FinerThan reports whether t is strictly finer-grained than other, i.e.
// Company > Organization > Team > Project in the parent-child ordering
// invariant (spec §3.1).
func (t UnitType) FinerThan(other UnitType) bool { return t > other }

// OrganizationalUnit forms a parent-pointer tree (never a DAG) within a
// single tenant.
type OrganizationalUnit struct {
	ID       string
	TenantID string
	Name     string
	Type     UnitType
	ParentID string // empty at the root
}
