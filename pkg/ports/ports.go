// Package ports defines the narrow capability interfaces the core depends
// on. The Memory Engine, Knowledge Repository, Governance Engine, Sync
// Bridge, and Context Architect never import a concrete driver; they accept
// these interfaces and remain swappable without touching core logic
// (spec §4.6, §9 "Trait/capability substitution").
package ports

import "context"

// Vector is a fixed-dimension embedding.
type Vector []float32

// Embedder turns text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (Vector, error)
	EmbedBatch(ctx context.Context, texts []string) ([]Vector, error)
	// Dimension returns the fixed vector width this embedder produces.
	Dimension() int
}

// SummaryDepth is one of the three pre-computed summary granularities
// (spec §4.5).
type SummaryDepth string

const (
	DepthSentence  SummaryDepth = "Sentence"
	DepthParagraph SummaryDepth = "Paragraph"
	DepthDetailed  SummaryDepth = "Detailed"
)

// LayerSummary is the output of a Summarizer call.
type LayerSummary struct {
	Depth       SummaryDepth
	Content     string
	TokenCount  int
	SourceHash  string
	Personalized bool
}

// Summarizer produces a LayerSummary at a requested depth, optionally
// personalized with a free-form context string.
type Summarizer interface {
	Summarize(ctx context.Context, text string, depth SummaryDepth, personalizationContext string) (*LayerSummary, error)
}

// VectorHit is a single similarity search result from a VectorStore.
type VectorHit struct {
	ID      string
	Score   float64
	Payload map[string]any
}

// VectorFilter narrows a VectorStore search to a subset of upserted vectors
// (e.g. by tenant_path prefix or layer).
type VectorFilter struct {
	TenantPathPrefix string
	Layer            string
}

// VectorStore is the abstract vector index port (pgvector, Qdrant, ...).
type VectorStore interface {
	Upsert(ctx context.Context, id string, vec Vector, payload map[string]any) error
	Search(ctx context.Context, vec Vector, filter VectorFilter, k int) ([]VectorHit, error)
	Delete(ctx context.Context, id string) error
}

// KVStore is the abstract key-value cache port (Redis, ...).
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Del(ctx context.Context, key string) error
}

// RelationalStore is the abstract relational port (PostgreSQL, SQLite).
// Callers obtain transaction boundaries via WithTx; the function either
// fully commits or fully rolls back, matching spec §5's "sync never
// partially commits" requirement generalized to any multi-statement op.
type RelationalStore interface {
	Exec(ctx context.Context, query string, args ...any) error
	Query(ctx context.Context, dest any, query string, args ...any) error
	WithTx(ctx context.Context, fn func(tx RelationalStore) error) error
}

// Commit is a single append-only entry in a CommitStore.
type Commit struct {
	Hash      string
	Data      []byte
	Timestamp int64
}

// CommitStore is the abstract append-only commit log port backing the
// Knowledge Repository's commit model (spec §3.6, §4.2). May be Git-backed
// or log-structured.
type CommitStore interface {
	Append(ctx context.Context, c Commit) error
	Read(ctx context.Context, fromHash string) ([]Commit, error)
	Tip(ctx context.Context) (string, error)
}
