// Package memory implements the seven-layer Hierarchical Memory Engine
// (spec §3.2, §4.1): addressable storage across agent/user/session/project/
// team/org/company layers with semantic search, layer precedence,
// promotion, and reward-driven learning.
package memory

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/kikokikok/aeterna-sub004/pkg/ports"
)

// Layer is one of the seven addressable memory layers, ordered
// most-specific to least-specific.
type Layer string

const (
	LayerAgent   Layer = "agent"
	LayerUser    Layer = "user"
	LayerSession Layer = "session"
	LayerProject Layer = "project"
	LayerTeam    Layer = "team"
	LayerOrg     Layer = "org"
	LayerCompany Layer = "company"
)

// precedence ranks layers from most specific (highest) to least specific
// (lowest); search results are sorted by this descending (spec §4.1, §8.4).
var precedence = map[Layer]int{
	LayerAgent:   7,
	LayerUser:    6,
	LayerSession: 5,
	LayerProject: 4,
	LayerTeam:    3,
	LayerOrg:     2,
	LayerCompany: 1,
}

// Precedence returns the ordinal rank of a layer; higher is more specific.
func Precedence(l Layer) int { return precedence[l] }

// promotionScanOrder is the canonical promotion scan order (spec §4.1 memory-R1:
// "agent -> user -> session").
var promotionScanOrder = []Layer{LayerAgent, LayerUser, LayerSession}

// Status is the lifecycle terminal state of a superseded memory (spec §3.2).
type Status string

const (
	StatusActive     Status = "active"
	StatusSuperseded Status = "superseded"
)

// Entry is a single memory record (spec §3.2).
type Entry struct {
	ID            string
	Layer         Layer
	Content       string
	Embedding     ports.Vector
	Importance    float64
	Tags          map[string]struct{}
	Metadata      map[string]any
	TenantPath    string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	AccessCount   int
	RewardScore   float64
	ContentHash   string
	Status        Status
	PromotedFrom  string // back-reference set on the entry created by a promotion
	KnowledgeRef  string // weak pointer to a KnowledgeItem id (spec §3.7)
	PointerStale  bool
	ConflictHist  []string // prior values retained when a sync conflict overwrites this entry (spec §4.4)
}

// ContentHash computes SHA-256(content) as required by spec §3.2/§8.2.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// RequiredIdentifiers lists, for a layer, the TenantContext fields that must
// be populated to address it (spec §3.2 table).
func RequiredIdentifiers(l Layer) []string {
	switch l {
	case LayerAgent:
		return []string{"AgentID", "UserID"}
	case LayerUser:
		return []string{"UserID"}
	case LayerSession:
		return []string{"SessionID", "UserID"}
	case LayerProject:
		return []string{"ProjectID"}
	case LayerTeam:
		return []string{"TeamID"}
	case LayerOrg:
		return []string{"OrgID"}
	case LayerCompany:
		return []string{"CompanyID"}
	default:
		return nil
	}
}
