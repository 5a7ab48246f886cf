package governance

import (
	"context"

	"github.com/kikokikok/aeterna-sub004/pkg/aeternaerr"
	"github.com/kikokikok/aeterna-sub004/pkg/tenancy"
)

// MemoryHookConfig resolves a tenant_path to the organizational unit whose
// policies govern it. A full implementation maps memory tenant paths to
// units via the Project/Team/Org identifiers encoded in the path; tests
// inject a stub.
type MemoryHookConfig interface {
	UnitForTenantPath(tenantPath string) (unitID string, found bool)
}

// MemoryHook adapts the Governance Engine to memory.GovernanceHook,
// structurally (no import of the memory package is required or permitted,
// spec's control flow: Governance consumes Memory, not the reverse).
type MemoryHook struct {
	Engine *Engine
	Units  MemoryHookConfig
}

// ValidateMemoryWrite resolves the governing unit for tenantPath, resolves
// its policy, and evaluates content against MustNotMatch/MustMatch rules
// targeting Code (spec §4.3.2, §4.3.3).
func (h MemoryHook) ValidateMemoryWrite(ctx context.Context, tenantPath, layer, content string) error {
	const op = "governance.ValidateMemoryWrite"
	unitID, found := h.Units.UnitForTenantPath(tenantPath)
	if !found {
		return nil // no governing unit resolved yet: nothing to enforce against.
	}

	tc := tenancy.Context{TenantID: tenantPath}
	path, err := h.Engine.UnitPath(ctx, tc, unitID)
	if err != nil {
		return nil // unit not found: fail open rather than blocking memory writes on governance gaps.
	}
	rules, err := h.Engine.ResolvePolicy(ctx, tc, path, tenancy.RoleAgent)
	if err != nil {
		return aeternaerr.Wrap(aeternaerr.CodeStorageError, op, err)
	}

	var codeRules []PolicyRule
	for _, r := range rules {
		if r.Target == "Code" && (r.Operator == OpMustMatch || r.Operator == OpMustNotMatch) {
			codeRules = append(codeRules, r)
		}
	}

	ec := EvalContext{Files: []EvalFile{{Path: "memory://" + layer, Content: content}}}
	report, ruleErrs := EvaluatePolicyRules(codeRules, ec)
	if err := ruleErrs.ErrorOrNil(); err != nil {
		return aeternaerr.Wrap(aeternaerr.CodeInvalidConstraint, op, err)
	}
	if !report.IsValid {
		return aeternaerr.New(aeternaerr.CodePolicyViolation, op, "memory write rejected by active policy").
			WithDetails(map[string]any{"violations": len(report.Violations)})
	}
	return nil
}

// AuthorizePromotion requires the actor's role to dominate RoleTechLead
// for promotion into the team, org, or company layer and RoleDeveloper for
// promotion into the project layer; other layers are not gated, matching the
// general pattern "role dominance gates layer-widening operations"
// (spec §3.1, §4.3.1).
func (h MemoryHook) AuthorizePromotion(_ context.Context, _ string, targetLayer string, actorRole int) error {
	const op = "governance.AuthorizePromotion"
	role := tenancy.Role(actorRole)
	switch targetLayer {
	case "team", "org", "company":
		if !role.Dominates(tenancy.RoleTechLead) {
			return aeternaerr.InsufficientPermissions(op, tenancy.RoleTechLead.String(), role.String())
		}
	case "project":
		if !role.Dominates(tenancy.RoleDeveloper) {
			return aeternaerr.InsufficientPermissions(op, tenancy.RoleDeveloper.String(), role.String())
		}
	}
	return nil
}
