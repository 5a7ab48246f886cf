// Package knowledge implements the versioned, commit-structured Knowledge
// Repository (spec §3.3, §3.6, §4.2): typed items (ADR/Policy/Pattern/Spec),
// immutable commits, and a derivable manifest.
package knowledge

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Type is the tagged variant a KnowledgeItem carries (spec §3.3, §9
// "Polymorphism over knowledge type": dispatch on variant, do not inherit).
type Type string

const (
	TypeADR     Type = "ADR"
	TypePolicy  Type = "Policy"
	TypePattern Type = "Pattern"
	TypeSpec    Type = "Spec"
)

// Layer is the governance layer a knowledge item is scoped to.
type Layer string

const (
	LayerCompany Layer = "Company"
	LayerOrg     Layer = "Org"
	LayerTeam    Layer = "Team"
	LayerProject Layer = "Project"
)

// Status is the fixed state machine position of a KnowledgeItem (spec §4.2).
type Status string

const (
	StatusDraft      Status = "Draft"
	StatusProposed   Status = "Proposed"
	StatusAccepted   Status = "Accepted"
	StatusDeprecated Status = "Deprecated"
	StatusSuperseded Status = "Superseded"
	StatusRejected   Status = "Rejected"
)

// Severity mirrors the governance rule severity scale so knowledge-carried
// constraints can be scored identically by the Governance Engine.
type Severity string

const (
	SeverityInfo  Severity = "Info"
	SeverityWarn  Severity = "Warn"
	SeverityBlock Severity = "Block"
)

// transitions is the fixed status state machine (spec §4.2).
var transitions = map[Status][]Status{
	StatusDraft:    {StatusProposed, StatusRejected},
	StatusProposed: {StatusAccepted, StatusRejected},
	StatusAccepted: {StatusDeprecated, StatusSuperseded},
}

// CanTransition reports whether moving from 'from' to 'to' is a legal state
// machine move.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Item is a single knowledge item (spec §3.3).
type Item struct {
	ID             string // slugged, e.g. "adr-042-db-selection"
	TenantID       string
	Type           Type
	Layer          Layer
	Title          string
	Summary        string
	Content        string // markdown
	ContentHash    string
	Status         Status
	Severity       Severity
	Constraints    []Constraint
	Tags           []string
	Metadata       map[string]any
	Version        int
	Supersedes     string
	SupersededBy   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Constraint is a structured rule a knowledge item (typically a Policy)
// carries; it is the same shape governance.PolicyRule consumes so the
// Governance Engine can evaluate it without a duplicate type (spec §3.4,
// §4.2 check_constraints).
type Constraint struct {
	ID         string
	RuleType   string // Allow | Deny
	Target     string // File | Code | Dependency | Import | Config
	Operator   string // MustUse | MustNotUse | MustMatch | MustNotMatch | MustExist | MustNotExist
	Value      any
	Severity   Severity
	Message    string
	AppliesTo  []string // glob patterns, optional
}

// ContentHash computes SHA-256(content), recomputable at any time (spec §3.3).
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Immutable reports whether edits to this item require supersession rather
// than in-place update (spec §3.3: "ADRs and Specs are immutable once
// Accepted").
func (i Item) Immutable() bool {
	return (i.Type == TypeADR || i.Type == TypeSpec) && i.Status == StatusAccepted
}

// requiredFields enumerates the schema validated at propose() time per type
// (spec §4.2: "validates schema for the type (required fields per §3.3)").
func requiredFields(t Type) []string {
	switch t {
	case TypeADR:
		return []string{"Title", "Summary", "Content"}
	case TypePolicy:
		return []string{"Title", "Content", "Constraints"}
	case TypePattern:
		return []string{"Title", "Summary", "Content"}
	case TypeSpec:
		return []string{"Title", "Content"}
	default:
		return nil
	}
}
