package governance

import (
	"context"
	"regexp"
	"time"

	"github.com/kikokikok/aeterna-sub004/internal/knowledge"
	"github.com/kikokikok/aeterna-sub004/pkg/aeternaerr"
	"github.com/kikokikok/aeterna-sub004/pkg/tenancy"
)

// DetectionProvenance is how a violation was found; confidence is the
// minimum across all contributing detections (spec §4.3.4 step 3).
type DetectionProvenance string

const (
	ProvenanceRule      DetectionProvenance = "Rule"
	ProvenanceSemantic  DetectionProvenance = "Semantic"
	ProvenanceLLM       DetectionProvenance = "LLM"
)

func (p DetectionProvenance) confidence() float64 {
	switch p {
	case ProvenanceRule:
		return 1.0
	case ProvenanceSemantic:
		return 0.85
	case ProvenanceLLM:
		return 0.75
	default:
		return 0
	}
}

// DriftSuppression is a CRUD-managed exemption scoped by tenant and project
// (spec §4.3.4).
type DriftSuppression struct {
	ID          string
	TenantID    string
	ProjectID   string
	PolicyID    string
	RulePattern string // optional regex matched against the violation message
	ExpiresAt   time.Time
}

func (s DriftSuppression) expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// DriftSuppressionStore persists suppressions.
type DriftSuppressionStore interface {
	ListActive(ctx context.Context, tenantID, projectID string) ([]DriftSuppression, error)
}

// DriftResult is the structured output of check_drift (spec §4.3.4).
type DriftResult struct {
	Score                 float64
	Confidence            float64
	RequiresManualReview  bool
	Violations            []knowledge.Violation
	SuppressedViolations  []knowledge.Violation
}

var severityWeight = map[knowledge.Severity]float64{
	knowledge.SeverityBlock: 1.0,
	knowledge.SeverityWarn:  0.5,
	knowledge.SeverityInfo:  0.1,
}

// CheckDrift runs constraint evaluation, filters through suppressions, and
// scores the result (spec §4.3.4).
func (e *Engine) CheckDrift(ctx context.Context, tc tenancy.Context, projectID string, rules []PolicyRule, ec EvalContext, provenance []DetectionProvenance, autoSuppressInfo bool, suppressions DriftSuppressionStore) (DriftResult, error) {
	const op = "governance.CheckDrift"
	if err := tc.Validate(op); err != nil {
		return DriftResult{}, err
	}

	report, ruleErrs := EvaluatePolicyRules(rules, ec)
	if err := ruleErrs.ErrorOrNil(); err != nil {
		return DriftResult{}, aeternaerr.Wrap(aeternaerr.CodeInvalidConstraint, op, err)
	}

	active, err := suppressions.ListActive(ctx, tc.TenantID, projectID)
	if err != nil {
		return DriftResult{}, aeternaerr.Wrap(aeternaerr.CodeStorageError, op, err)
	}
	now := time.Now()

	var kept, suppressed []knowledge.Violation
	for _, v := range report.Violations {
		if isSuppressed(v, active, now) {
			suppressed = append(suppressed, v)
			continue
		}
		kept = append(kept, v)
	}

	if autoSuppressInfo {
		var nonInfo []knowledge.Violation
		for _, v := range kept {
			if v.Severity == knowledge.SeverityInfo {
				suppressed = append(suppressed, v)
				continue
			}
			nonInfo = append(nonInfo, v)
		}
		kept = nonInfo
	}

	theoreticalMax := 0.0
	for _, r := range rules {
		theoreticalMax += severityWeight[knowledge.Severity(r.Severity)]
	}

	weightedSum := 0.0
	for _, v := range kept {
		weightedSum += severityWeight[v.Severity]
	}

	score := 0.0
	if theoreticalMax > 0 {
		score = weightedSum / theoreticalMax
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	confidence := 1.0
	for _, p := range provenance {
		if c := p.confidence(); c < confidence {
			confidence = c
		}
	}
	if len(provenance) == 0 {
		confidence = 1.0
	}

	result := DriftResult{
		Score:                score,
		Confidence:           confidence,
		RequiresManualReview: confidence < 0.7,
		Violations:           kept,
		SuppressedViolations: suppressed,
	}
	if len(kept) > 0 {
		e.events.AppendTraced(ctx, tc.TenantID, EventDriftDetected, tc.UserID, projectID)
	}
	return result, nil
}

// isSuppressed matches policy_id exactly; if rule_pattern is present, the
// pattern must also regex-match the violation message; expired suppressions
// are treated as absent (spec §4.3.4).
func isSuppressed(v knowledge.Violation, suppressions []DriftSuppression, now time.Time) bool {
	for _, s := range suppressions {
		if s.expired(now) {
			continue
		}
		if s.PolicyID != v.ConstraintID {
			continue
		}
		if s.RulePattern == "" {
			return true
		}
		if re, err := regexp.Compile(s.RulePattern); err == nil && re.MatchString(v.Message) {
			return true
		}
	}
	return false
}
