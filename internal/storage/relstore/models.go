package relstore

import (
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/kikokikok/aeterna-sub004/internal/governance"
	"github.com/kikokikok/aeterna-sub004/internal/knowledge"
)

// memoryEntryModel is the GORM row for a single memory.Entry. Map/slice
// fields use GORM's JSON serializer so the same struct tags work
// unmodified across both Postgres and SQLite (spec §4.6 portability).
type memoryEntryModel struct {
	ID           string          `gorm:"primaryKey"`
	TenantPath   string          `gorm:"index"`
	Layer        string          `gorm:"index"`
	Content      string
	Embedding    pgvector.Vector      `gorm:"type:vector(1536)"`
	Importance   float64
	Tags         map[string]struct{}  `gorm:"serializer:json"`
	Metadata     map[string]any       `gorm:"serializer:json"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	AccessCount  int
	RewardScore  float64
	ContentHash  string `gorm:"index"`
	Status       string
	PromotedFrom string
	KnowledgeRef string
	PointerStale bool
	ConflictHist []string `gorm:"serializer:json"`
}

func (memoryEntryModel) TableName() string { return "memory_entries" }

// knowledgeItemModel is the GORM row for a single knowledge.Item.
type knowledgeItemModel struct {
	ID           string `gorm:"primaryKey"`
	TenantID     string `gorm:"index"`
	Type         string
	Layer        string `gorm:"index"`
	Title        string
	Summary      string
	Content      string
	ContentHash  string
	Status       string `gorm:"index"`
	Severity     string
	Constraints  []knowledge.Constraint `gorm:"serializer:json"`
	Tags         []string               `gorm:"serializer:json"`
	Metadata     map[string]any `gorm:"serializer:json"`
	Version      int
	Supersedes   string
	SupersededBy string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (knowledgeItemModel) TableName() string { return "knowledge_items" }

// unitModel is the GORM row for a tenancy.OrganizationalUnit.
type unitModel struct {
	ID       string `gorm:"primaryKey"`
	TenantID string `gorm:"index"`
	Name     string
	Type     int
	ParentID string `gorm:"index"`
}

func (unitModel) TableName() string { return "organizational_units" }

// roleAssignmentModel is the GORM row for a governance.RoleAssignment.
type roleAssignmentModel struct {
	TenantID string `gorm:"primaryKey"`
	UserID   string `gorm:"primaryKey"`
	UnitID   string `gorm:"primaryKey;index"`
	Role     int
}

func (roleAssignmentModel) TableName() string { return "role_assignments" }

// policyModel is the GORM row for a governance.Policy.
type policyModel struct {
	ID            string `gorm:"primaryKey"`
	TenantID      string `gorm:"index"`
	UnitID        string `gorm:"index"`
	Name          string
	Rules         []governance.PolicyRule `gorm:"serializer:json"`
	MergeStrategy string
	Mandatory     bool
	RequiredRole  int
}

func (policyModel) TableName() string { return "policies" }

// driftSuppressionModel is the GORM row for a governance.DriftSuppression.
type driftSuppressionModel struct {
	ID          string `gorm:"primaryKey"`
	TenantID    string `gorm:"index"`
	ProjectID   string `gorm:"index"`
	PolicyID    string
	RulePattern string
	ExpiresAt   time.Time
}

func (driftSuppressionModel) TableName() string { return "drift_suppressions" }

// commitModel is the GORM row backing the CommitStore port: an append-only
// log of content-addressed commits (spec §3.6).
type commitModel struct {
	Hash      string `gorm:"primaryKey"`
	TenantID  string `gorm:"index"`
	Data      []byte
	Timestamp int64
	Seq       uint `gorm:"autoIncrement"`
}

func (commitModel) TableName() string { return "commits" }
