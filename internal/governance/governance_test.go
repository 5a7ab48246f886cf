package governance_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kikokikok/aeterna-sub004/internal/governance"
	"github.com/kikokikok/aeterna-sub004/internal/governance/fake"
	"github.com/kikokikok/aeterna-sub004/internal/knowledge"
	"github.com/kikokikok/aeterna-sub004/pkg/tenancy"
)

func newTestEngine(t *testing.T) (*governance.Engine, *fake.UnitStore, *fake.PolicyStore) {
	t.Helper()
	units := fake.NewUnitStore()
	roles := fake.NewRoleStore()
	policies := fake.NewPolicyStore()
	events := governance.NewEventLog()
	eng := governance.NewEngine(units, roles, events, governance.WithPolicyStore(policies))
	return eng, units, policies
}

func TestCreateUnit_ValidatesParentOrdering(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()
	tc := tenancy.Context{TenantID: "t1", UserID: "admin"}

	company, err := eng.CreateUnit(ctx, tc, "Acme", tenancy.UnitCompany, "")
	require.NoError(t, err)

	_, err = eng.CreateUnit(ctx, tc, "BadChild", tenancy.UnitCompany, company.ID)
	require.Error(t, err)

	org, err := eng.CreateUnit(ctx, tc, "Platform", tenancy.UnitOrganization, company.ID)
	require.NoError(t, err)
	assert.Equal(t, company.ID, org.ParentID)
}

func TestNavigate_AncestorsAndDescendants(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()
	tc := tenancy.Context{TenantID: "t1", UserID: "admin"}

	company, err := eng.CreateUnit(ctx, tc, "Acme", tenancy.UnitCompany, "")
	require.NoError(t, err)
	org, err := eng.CreateUnit(ctx, tc, "Platform", tenancy.UnitOrganization, company.ID)
	require.NoError(t, err)
	team, err := eng.CreateUnit(ctx, tc, "Core", tenancy.UnitTeam, org.ID)
	require.NoError(t, err)

	ancestors, err := eng.Navigate(ctx, tc, team.ID, governance.DirectionAncestors)
	require.NoError(t, err)
	require.Len(t, ancestors, 2)
	assert.Equal(t, org.ID, ancestors[0].ID)
	assert.Equal(t, company.ID, ancestors[1].ID)

	descendants, err := eng.Navigate(ctx, tc, company.ID, governance.DirectionDescendants)
	require.NoError(t, err)
	assert.Len(t, descendants, 2)
}

// TestResolvePolicy_MandatoryOverrideSurvives implements scenario S2: a
// Mandatory Merge company policy carrying a Block-severity Deny rule
// survives an attempted Override by a lesser-privileged team policy.
func TestResolvePolicy_MandatoryOverrideSurvives(t *testing.T) {
	eng, _, policies := newTestEngine(t)
	ctx := context.Background()
	tc := tenancy.Context{TenantID: "t1", UserID: "admin"}

	company, err := eng.CreateUnit(ctx, tc, "Acme", tenancy.UnitCompany, "")
	require.NoError(t, err)
	team, err := eng.CreateUnit(ctx, tc, "Core", tenancy.UnitTeam, company.ID)
	require.NoError(t, err)

	policies.Put(tc.TenantID, governance.Policy{
		ID: "p1", TenantID: tc.TenantID, UnitID: company.ID, Name: "no-mysql",
		MergeStrategy: governance.MergeMerge, Mandatory: true, RequiredRole: tenancy.RoleArchitect,
		Rules: []governance.PolicyRule{{
			ID: "no-mysql-rule", Type: governance.RuleDeny, Target: "Dependency",
			Operator: governance.OpMustUse, Value: "mysql", Severity: governance.SeverityBlock,
			Message: "mysql is forbidden",
		}},
	})
	policies.Put(tc.TenantID, governance.Policy{
		ID: "p2", TenantID: tc.TenantID, UnitID: team.ID, Name: "team-override",
		MergeStrategy: governance.MergeOverride, Mandatory: false,
	})

	path, err := eng.UnitPath(ctx, tc, team.ID)
	require.NoError(t, err)

	rules, err := eng.ResolvePolicy(ctx, tc, path, tenancy.RoleDeveloper)
	require.NoError(t, err)
	require.Len(t, rules, 1)

	report, ruleErrs := governance.EvaluatePolicyRules(rules, governance.EvalContext{
		Dependencies: []governance.EvalDependency{{Name: "mysql", Kind: "direct"}},
	})
	require.NoError(t, ruleErrs.ErrorOrNil())
	assert.False(t, report.IsValid)
	assert.Equal(t, 1, report.BlockCount)
	require.Len(t, report.Violations, 1)
	assert.Equal(t, "no-mysql-rule", report.Violations[0].ConstraintID)
}

// TestCheckDrift_SuppressionAndConfidence implements scenario S3.
func TestCheckDrift_SuppressionAndConfidence(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()
	tc := tenancy.Context{TenantID: "t1", UserID: "admin"}

	suppressions := fake.NewDriftSuppressionStore()
	suppressions.Put(governance.DriftSuppression{
		ID: "sup-1", TenantID: tc.TenantID, ProjectID: "svc-payments",
		PolicyID: "security", RulePattern: "lodash.*",
	})

	rules := []governance.PolicyRule{
		{ID: "security", Type: governance.RuleAllow, Target: "Code", Operator: governance.OpMustNotMatch,
			Value: "lodash", Severity: governance.SeverityWarn, Message: "lodash < v4"},
		{ID: "style", Type: governance.RuleAllow, Target: "Code", Operator: governance.OpMustNotMatch,
			Value: "console\\.", Severity: governance.SeverityInfo, Message: "no-console"},
	}
	ec := governance.EvalContext{
		Files: []governance.EvalFile{{Path: "svc.go", Content: "lodash usage and console.log"}},
	}

	result, err := eng.CheckDrift(ctx, tc, "svc-payments", rules, ec,
		[]governance.DetectionProvenance{governance.ProvenanceSemantic, governance.ProvenanceRule},
		false, suppressions)
	require.NoError(t, err)

	require.Len(t, result.SuppressedViolations, 1)
	assert.Equal(t, "security", result.SuppressedViolations[0].ConstraintID)
	require.Len(t, result.Violations, 1)
	assert.Equal(t, "style", result.Violations[0].ConstraintID)
	assert.InDelta(t, 0.1/0.6, result.Score, 0.0001)
	assert.Equal(t, 0.85, result.Confidence)
	assert.False(t, result.RequiresManualReview)
}

func TestEventLog_MonotonicPerTenant(t *testing.T) {
	log := governance.NewEventLog()
	e1 := log.Append("t1", governance.EventUnitCreated, "u1", "unit-1")
	e2 := log.Append("t1", governance.EventRoleAssigned, "u1", "unit-1")
	log.Append("t2", governance.EventUnitCreated, "u2", "unit-2")

	assert.Equal(t, uint64(1), e1.Sequence)
	assert.Equal(t, uint64(2), e2.Sequence)

	since := log.Since("t1", 0)
	require.Len(t, since, 2)
}

func TestConstraintEvaluator_SatisfiesKnowledgeInterface(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	var _ knowledge.ConstraintEvaluator = eng
}
