package governance

import (
	"context"
	"sort"

	"github.com/kikokikok/aeterna-sub004/pkg/tenancy"
)

// MergeStrategy selects how a policy folds into the resolution accumulator
// (spec §4.3.2).
type MergeStrategy string

const (
	MergeOverride  MergeStrategy = "Override"
	MergeMerge     MergeStrategy = "Merge"
	MergeIntersect MergeStrategy = "Intersect"
)

// RuleType mirrors knowledge.Constraint's RuleType so a Policy's rules are
// the same shape the Knowledge Repository and constraint evaluator share
// (spec §3.4, §4.3.3).
type RuleType string

const (
	RuleAllow RuleType = "Allow"
	RuleDeny  RuleType = "Deny"
)

// Operator is the constraint evaluation operator (spec §4.3.3).
type Operator string

const (
	OpMustUse       Operator = "MustUse"
	OpMustNotUse    Operator = "MustNotUse"
	OpMustMatch     Operator = "MustMatch"
	OpMustNotMatch  Operator = "MustNotMatch"
	OpMustExist     Operator = "MustExist"
	OpMustNotExist  Operator = "MustNotExist"
)

// Severity mirrors knowledge.Severity.
type Severity string

const (
	SeverityInfo  Severity = "Info"
	SeverityWarn  Severity = "Warn"
	SeverityBlock Severity = "Block"
)

// PolicyRule is a single evaluable rule within a Policy.
type PolicyRule struct {
	ID        string
	Type      RuleType
	Target    string // File | Code | Dependency | Import | Config
	Operator  Operator
	Value     any
	Severity  Severity
	Message   string
	AppliesTo []string // glob patterns, optional
}

// Policy is attached to an organizational unit and folds into descendant
// resolution per its MergeStrategy (spec §4.3.2).
type Policy struct {
	ID            string
	TenantID      string
	UnitID        string
	Name          string
	Rules         []PolicyRule
	MergeStrategy MergeStrategy
	Mandatory     bool
	RequiredRole  tenancy.Role // role an Override descendant must dominate to drop a Mandatory ancestor rule
}

// PolicyStore persists policies keyed by the unit they are attached to.
type PolicyStore interface {
	ListForUnit(ctx context.Context, tenantID, unitID string) ([]Policy, error)
}

// ResolvePolicy folds every policy attached along unitPath (root-first) into
// a single accumulated rule set (spec §4.3.2).
func (e *Engine) ResolvePolicy(ctx context.Context, tc tenancy.Context, unitPath []*tenancy.OrganizationalUnit, actorRole tenancy.Role) ([]PolicyRule, error) {
	type layerPolicies struct {
		depth    int
		policies []Policy
	}
	var collected []layerPolicies
	for depth, unit := range unitPath {
		policies, err := e.policies.ListForUnit(ctx, tc.TenantID, unit.ID)
		if err != nil {
			return nil, err
		}
		if len(policies) > 0 {
			collected = append(collected, layerPolicies{depth: depth, policies: policies})
		}
	}
	sort.Slice(collected, func(i, j int) bool { return collected[i].depth < collected[j].depth })

	var accumulator []PolicyRule
	var mandatoryRuleIDs map[string]tenancy.Role

	for _, lp := range collected {
		for _, p := range lp.policies {
			accumulator, mandatoryRuleIDs = foldPolicy(accumulator, mandatoryRuleIDs, p, actorRole)
		}
	}
	return accumulator, nil
}

// foldPolicy applies one policy's merge_strategy to the accumulator
// (spec §4.3.2 steps 3-4).
func foldPolicy(accumulator []PolicyRule, mandatory map[string]tenancy.Role, p Policy, actorRole tenancy.Role) ([]PolicyRule, map[string]tenancy.Role) {
	if mandatory == nil {
		mandatory = make(map[string]tenancy.Role)
	}

	switch p.MergeStrategy {
	case MergeOverride:
		// Mandatory ancestor rules survive unless the descendant's actor
		// dominates the role required to override them.
		var survivors []PolicyRule
		for _, rule := range accumulator {
			if requiredRole, isMandatory := mandatory[rule.ID]; isMandatory && !actorRole.Dominates(requiredRole) {
				survivors = append(survivors, rule)
			}
		}
		accumulator = append(survivors, p.Rules...)

	case MergeMerge:
		byID := make(map[string]PolicyRule, len(accumulator))
		order := make([]string, 0, len(accumulator))
		for _, rule := range accumulator {
			byID[rule.ID] = rule
			order = append(order, rule.ID)
		}
		for _, rule := range p.Rules {
			if existing, ok := byID[rule.ID]; ok {
				if _, isMandatory := mandatory[existing.ID]; isMandatory {
					continue // Mandatory earlier rule wins on collision.
				}
				byID[rule.ID] = rule // later (more specific) rule wins.
				continue
			}
			byID[rule.ID] = rule
			order = append(order, rule.ID)
		}
		accumulator = make([]PolicyRule, 0, len(order))
		for _, id := range order {
			accumulator = append(accumulator, byID[id])
		}

	case MergeIntersect:
		newIDs := make(map[string]bool, len(p.Rules))
		for _, rule := range p.Rules {
			newIDs[rule.ID] = true
		}
		var kept []PolicyRule
		for _, rule := range accumulator {
			if newIDs[rule.ID] {
				kept = append(kept, rule)
			}
		}
		accumulator = kept
	}

	if p.Mandatory {
		for _, rule := range p.Rules {
			mandatory[rule.ID] = p.RequiredRole
		}
	}
	return accumulator, mandatory
}
