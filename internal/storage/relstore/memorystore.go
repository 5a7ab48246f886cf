package relstore

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"sort"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"github.com/kikokikok/aeterna-sub004/internal/memory"
	"github.com/kikokikok/aeterna-sub004/pkg/ports"
)

// MemoryStore is the GORM-backed memory.Store.
type MemoryStore struct {
	db *gorm.DB
}

func NewMemoryStore(m *Manager) *MemoryStore { return &MemoryStore{db: m.db} }

var _ memory.Store = (*MemoryStore)(nil)

func toMemoryModel(e *memory.Entry) *memoryEntryModel {
	return &memoryEntryModel{
		ID: e.ID, TenantPath: e.TenantPath, Layer: string(e.Layer), Content: e.Content,
		Embedding: pgvector.NewVector(e.Embedding), Importance: e.Importance, Tags: e.Tags, Metadata: e.Metadata,
		CreatedAt: e.CreatedAt, UpdatedAt: e.UpdatedAt, AccessCount: e.AccessCount,
		RewardScore: e.RewardScore, ContentHash: e.ContentHash, Status: string(e.Status),
		PromotedFrom: e.PromotedFrom, KnowledgeRef: e.KnowledgeRef, PointerStale: e.PointerStale,
		ConflictHist: e.ConflictHist,
	}
}

func (m memoryEntryModel) toDomain() *memory.Entry {
	return &memory.Entry{
		ID: m.ID, TenantPath: m.TenantPath, Layer: memory.Layer(m.Layer), Content: m.Content,
		Embedding: ports.Vector(m.Embedding.Slice()), Importance: m.Importance, Tags: m.Tags,
		Metadata: m.Metadata, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt, AccessCount: m.AccessCount,
		RewardScore: m.RewardScore, ContentHash: m.ContentHash, Status: memory.Status(m.Status),
		PromotedFrom: m.PromotedFrom, KnowledgeRef: m.KnowledgeRef, PointerStale: m.PointerStale,
		ConflictHist: m.ConflictHist,
	}
}

func (s *MemoryStore) Insert(ctx context.Context, e *memory.Entry) error {
	return s.db.WithContext(ctx).Create(toMemoryModel(e)).Error
}

func (s *MemoryStore) Get(ctx context.Context, tenantPath, id string) (*memory.Entry, error) {
	var row memoryEntryModel
	err := s.db.WithContext(ctx).Where("id = ? AND tenant_path = ?", id, tenantPath).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return row.toDomain(), nil
}

func (s *MemoryStore) Update(ctx context.Context, e *memory.Entry) error {
	return s.db.WithContext(ctx).Save(toMemoryModel(e)).Error
}

func (s *MemoryStore) Delete(ctx context.Context, tenantPath, id string) error {
	return s.db.WithContext(ctx).Where("id = ? AND tenant_path = ?", id, tenantPath).Delete(&memoryEntryModel{}).Error
}

// cursor encodes the last-seen id as a base64 opaque token so callers never
// depend on row ordering being stable across schema changes.
func encodeCursor(id string) string {
	if id == "" {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString([]byte(id))
}

func decodeCursor(cursor string) (string, error) {
	if cursor == "" {
		return "", nil
	}
	b, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return "", fmt.Errorf("relstore: invalid cursor: %w", err)
	}
	return string(b), nil
}

func (s *MemoryStore) List(ctx context.Context, tenantPath string, layer memory.Layer, cursor string, limit int) ([]*memory.Entry, string, error) {
	lastID, err := decodeCursor(cursor)
	if err != nil {
		return nil, "", err
	}
	q := s.db.WithContext(ctx).Where("tenant_path = ?", tenantPath)
	if layer != "" {
		q = q.Where("layer = ?", string(layer))
	}
	if lastID != "" {
		q = q.Where("id > ?", lastID)
	}
	var rows []memoryEntryModel
	if err := q.Order("id").Limit(limit + 1).Find(&rows).Error; err != nil {
		return nil, "", err
	}

	next := ""
	if len(rows) > limit {
		rows = rows[:limit]
		if limit > 0 {
			next = encodeCursor(rows[limit-1].ID)
		}
	}
	entries := make([]*memory.Entry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, r.toDomain())
	}
	return entries, next, nil
}

// SearchLayer loads every active entry of the layer under tenantPath and
// ranks them by cosine similarity in process, on Postgres and SQLite alike;
// it does not use the pgvector distance operator or the HNSW index.
func (s *MemoryStore) SearchLayer(ctx context.Context, tenantPath string, layer memory.Layer, queryVec []float32, limit int) ([]*memory.Entry, []float64, error) {
	var rows []memoryEntryModel
	if err := s.db.WithContext(ctx).
		Where("tenant_path = ? AND layer = ? AND status = ?", tenantPath, string(layer), string(memory.StatusActive)).
		Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	type scored struct {
		entry *memory.Entry
		score float64
	}
	scoredRows := make([]scored, 0, len(rows))
	for _, r := range rows {
		entry := r.toDomain()
		if len(entry.Embedding) == 0 {
			continue
		}
		scoredRows = append(scoredRows, scored{entry: entry, score: cosineSimilarity(queryVec, entry.Embedding)})
	}
	sort.Slice(scoredRows, func(i, j int) bool { return scoredRows[i].score > scoredRows[j].score })
	if len(scoredRows) > limit {
		scoredRows = scoredRows[:limit]
	}
	entries := make([]*memory.Entry, len(scoredRows))
	scores := make([]float64, len(scoredRows))
	for i, sr := range scoredRows {
		entries[i] = sr.entry
		scores[i] = sr.score
	}
	return entries, scores, nil
}

func cosineSimilarity(a []float32, b ports.Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		av, bv := float64(a[i]), float64(b[i])
		dot += av * bv
		na += av * av
		nb += bv * bv
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
