// Package vectorstore implements ports.VectorStore over pgvector, for
// callers that want a standalone vector index (e.g. the Context Architect's
// candidate ranking) decoupled from the memory_entries table relstore
// already embeds a vector column in.
package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"github.com/kikokikok/aeterna-sub004/pkg/ports"
)

type row struct {
	ID      string          `gorm:"primaryKey"`
	Vector  pgvector.Vector `gorm:"type:vector(1536)"`
	Payload string
}

func (row) TableName() string { return "vector_entries" }

// Store is the pgvector-backed ports.VectorStore.
type Store struct {
	db *gorm.DB
}

// New wraps db as a Store; call Migrate once at startup to create the
// backing table and its HNSW index.
func New(db *gorm.DB) *Store { return &Store{db: db} }

var _ ports.VectorStore = (*Store)(nil)

// Migrate creates the backing table and its cosine-distance HNSW index.
// GORM's struct tags can express the column type but not the pgvector
// operator class, so the index is raised with a raw statement.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&row{}); err != nil {
		return fmt.Errorf("vectorstore: migrate: %w", err)
	}
	return s.db.WithContext(ctx).Exec(
		`CREATE INDEX IF NOT EXISTS idx_vector_entries_hnsw ON vector_entries USING hnsw (vector vector_cosine_ops)`,
	).Error
}

func (s *Store) Upsert(ctx context.Context, id string, vec ports.Vector, payload map[string]any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("vectorstore: marshal payload: %w", err)
	}
	r := row{ID: id, Vector: pgvector.NewVector(vec), Payload: string(encoded)}
	return s.db.WithContext(ctx).Save(&r).Error
}

// Search issues a pgvector cosine-distance nearest-neighbor query and then
// applies the tenant/layer filter in-process against each hit's payload,
// since those fields live inside the JSON payload column rather than their
// own indexed columns.
func (s *Store) Search(ctx context.Context, vec ports.Vector, filter ports.VectorFilter, k int) ([]ports.VectorHit, error) {
	var rows []row
	overfetch := k
	if filter.TenantPathPrefix != "" || filter.Layer != "" {
		overfetch = k * 4
	}
	if err := s.db.WithContext(ctx).
		Order(gorm.Expr("vector <=> ?", pgvector.NewVector(vec))).
		Limit(overfetch).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("vectorstore: search: %w", err)
	}

	hits := make([]ports.VectorHit, 0, len(rows))
	for _, r := range rows {
		var payload map[string]any
		if err := json.Unmarshal([]byte(r.Payload), &payload); err != nil {
			return nil, fmt.Errorf("vectorstore: unmarshal payload: %w", err)
		}
		if filter.Layer != "" {
			if l, _ := payload["layer"].(string); l != filter.Layer {
				continue
			}
		}
		if filter.TenantPathPrefix != "" {
			if tp, _ := payload["tenant_path"].(string); !strings.HasPrefix(tp, filter.TenantPathPrefix) {
				continue
			}
		}
		score := 1 - cosineDistance(vec, r.Vector.Slice())
		hits = append(hits, ports.VectorHit{ID: r.ID, Score: score, Payload: payload})
		if len(hits) == k {
			break
		}
	}
	return hits, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Where("id = ?", id).Delete(&row{}).Error
}

func cosineDistance(a []float32, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	var dot, na, nb float64
	for i := range a {
		av, bv := float64(a[i]), float64(b[i])
		dot += av * bv
		na += av * av
		nb += bv * bv
	}
	if na == 0 || nb == 0 {
		return 1
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return 1 - sim
}
