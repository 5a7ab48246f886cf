package governance

import (
	"time"

	"github.com/kikokikok/aeterna-sub004/pkg/tenancy"
)

// GovernanceConfig is the designated configuration entity governing
// approval requirements at a layer (spec §4.3.5).
type GovernanceConfig struct {
	UnitID            string
	RequiredApprovers int
	AllowedRoles      []tenancy.Role
	ReviewPeriod      time.Duration
	EscalationPath    []string
	EmergencyOverride bool // disallowed by default
}

// MetaGovernance governs who may assign roles and approve new
// GovernanceConfig entries. The interface keeps the Engine testable without
// a concrete quorum backend (spec §4.3.5).
type MetaGovernance interface {
	CanAssignRole(tenantID, unitID string, assigner, target tenancy.Role) bool
	ApproveConfig(tenantID string, cfg GovernanceConfig, approverRoles []tenancy.Role) bool
}

// defaultMetaGovernance requires the assigner to dominate the role being
// granted, and requires quorum approval (>= RequiredApprovers roles drawn
// from AllowedRoles) at the layer above, matching "approval of a new
// governance configuration requires quorum at the layer above" (spec
// §4.3.5). Emergency overrides are rejected unconditionally.
type defaultMetaGovernance struct{}

func (defaultMetaGovernance) CanAssignRole(tenantID, unitID string, assigner, target tenancy.Role) bool {
	return assigner.Dominates(target)
}

func (defaultMetaGovernance) ApproveConfig(tenantID string, cfg GovernanceConfig, approverRoles []tenancy.Role) bool {
	if cfg.EmergencyOverride {
		return false
	}
	allowed := make(map[tenancy.Role]bool, len(cfg.AllowedRoles))
	for _, r := range cfg.AllowedRoles {
		allowed[r] = true
	}
	count := 0
	for _, r := range approverRoles {
		if allowed[r] {
			count++
		}
	}
	return count >= cfg.RequiredApprovers
}
