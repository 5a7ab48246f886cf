package governance

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"

	"github.com/hashicorp/go-multierror"

	"github.com/kikokikok/aeterna-sub004/internal/knowledge"
)

// EvalFile is a single file in a constraint evaluation context.
type EvalFile struct {
	Path    string
	Content string
}

// EvalDependency is a single dependency in a constraint evaluation context.
type EvalDependency struct {
	Name    string
	Version string
	Kind    string
}

// EvalContext is the structured input to constraint evaluation (spec
// §4.3.3): "{ files, dependencies, imports, config, unit_path }".
type EvalContext struct {
	Files        []EvalFile
	Dependencies []EvalDependency
	Imports      []string
	Config       map[string]string
	UnitPath     []string
}

// EvaluateConstraints implements knowledge.ConstraintEvaluator so the
// Knowledge Repository's check_constraints delegates scoring here without
// importing governance (spec §4.2, §4.3.3).
func (e *Engine) EvaluateConstraints(ctx context.Context, tenantID string, constraints []knowledge.Constraint, evalCtx any) (knowledge.ValidationReport, error) {
	ec, _ := evalCtx.(EvalContext)
	rules := make([]PolicyRule, 0, len(constraints))
	for _, c := range constraints {
		rules = append(rules, PolicyRule{
			ID: c.ID, Type: RuleType(c.RuleType), Target: c.Target,
			Operator: Operator(c.Operator), Value: c.Value, Severity: Severity(c.Severity),
			Message: c.Message, AppliesTo: c.AppliesTo,
		})
	}
	report, errs := evaluateRules(rules, ec)
	return report, errs.ErrorOrNil()
}

// EvaluatePolicyRules scores a resolved policy rule set against a context,
// the same evaluator used by check_drift (spec §4.3.3, §4.3.4). A rule with
// a malformed regex pattern does not abort evaluation of the remaining
// rules; its error is aggregated into the returned *multierror.Error.
func EvaluatePolicyRules(rules []PolicyRule, ec EvalContext) (knowledge.ValidationReport, *multierror.Error) {
	return evaluateRules(rules, ec)
}

func evaluateRules(rules []PolicyRule, ec EvalContext) (knowledge.ValidationReport, *multierror.Error) {
	var report knowledge.ValidationReport
	var errs *multierror.Error
	report.IsValid = true

	for _, rule := range rules {
		applicable := applicableFiles(rule.AppliesTo, ec.Files)
		conditionMet, err := evaluateOperator(rule, ec, applicable)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("rule %s: %w", rule.ID, err))
		}

		var failed bool
		switch rule.Type {
		case RuleAllow:
			failed = !conditionMet
		case RuleDeny:
			failed = conditionMet
		}
		if !failed {
			continue
		}

		v := knowledge.Violation{
			ConstraintID: rule.ID,
			Severity:     knowledge.Severity(rule.Severity),
			Message:      rule.Message,
		}
		if len(applicable) > 0 {
			v.Location = applicable[0].Path
		}
		report.Violations = append(report.Violations, v)

		switch Severity(rule.Severity) {
		case SeverityInfo:
			report.InfoCount++
		case SeverityWarn:
			report.WarnCount++
		case SeverityBlock:
			report.BlockCount++
			report.IsValid = false
		}
	}
	return report, errs
}

func applicableFiles(globs []string, files []EvalFile) []EvalFile {
	if len(globs) == 0 {
		return files
	}
	var out []EvalFile
	for _, f := range files {
		for _, g := range globs {
			if matched, _ := filepath.Match(g, f.Path); matched {
				out = append(out, f)
				break
			}
		}
	}
	return out
}

// evaluateOperator reports whether the operator's condition holds, per the
// truth table in spec §4.3.3. A non-nil error means the condition could not
// be evaluated (e.g. a malformed regex) and is treated as not-met by the
// caller while still being surfaced to the caller's aggregated error.
func evaluateOperator(rule PolicyRule, ec EvalContext, applicable []EvalFile) (bool, error) {
	switch rule.Operator {
	case OpMustUse:
		return dependencyPresent(ec.Dependencies, rule.Value), nil
	case OpMustNotUse:
		return !dependencyPresent(ec.Dependencies, rule.Value), nil
	case OpMustMatch:
		return allMatch(applicable, rule.Value)
	case OpMustNotMatch:
		met, err := anyMatch(applicable, rule.Value)
		if err != nil {
			return false, err
		}
		return !met, nil
	case OpMustExist:
		return filePresent(ec.Files, rule.Value), nil
	case OpMustNotExist:
		return !filePresent(ec.Files, rule.Value), nil
	default:
		return false, nil
	}
}

func dependencyPresent(deps []EvalDependency, value any) bool {
	name := fmt.Sprintf("%v", value)
	for _, d := range deps {
		if d.Name == name {
			return true
		}
	}
	return false
}

func filePresent(files []EvalFile, value any) bool {
	path := fmt.Sprintf("%v", value)
	for _, f := range files {
		if f.Path == path {
			return true
		}
	}
	return false
}

func allMatch(files []EvalFile, value any) (bool, error) {
	re, err := regexp.Compile(fmt.Sprintf("%v", value))
	if err != nil {
		return false, err
	}
	if len(files) == 0 {
		return false, nil
	}
	for _, f := range files {
		if !re.MatchString(f.Content) {
			return false, nil
		}
	}
	return true, nil
}

func anyMatch(files []EvalFile, value any) (bool, error) {
	re, err := regexp.Compile(fmt.Sprintf("%v", value))
	if err != nil {
		return false, err
	}
	for _, f := range files {
		if re.MatchString(f.Content) {
			return true, nil
		}
	}
	return false, nil
}
