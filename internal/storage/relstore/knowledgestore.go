package relstore

import (
	"context"

	"gorm.io/gorm"

	"github.com/kikokikok/aeterna-sub004/internal/knowledge"
)

// KnowledgeStore is the GORM-backed knowledge.ItemStore.
type KnowledgeStore struct {
	db *gorm.DB
}

func NewKnowledgeStore(m *Manager) *KnowledgeStore { return &KnowledgeStore{db: m.db} }

var _ knowledge.ItemStore = (*KnowledgeStore)(nil)

func toKnowledgeModel(item *knowledge.Item) *knowledgeItemModel {
	return &knowledgeItemModel{
		ID: item.ID, TenantID: item.TenantID, Type: string(item.Type), Layer: string(item.Layer),
		Title: item.Title, Summary: item.Summary, Content: item.Content, ContentHash: item.ContentHash,
		Status: string(item.Status), Severity: string(item.Severity), Constraints: item.Constraints,
		Tags: item.Tags, Metadata: item.Metadata, Version: item.Version, Supersedes: item.Supersedes,
		SupersededBy: item.SupersededBy, CreatedAt: item.CreatedAt, UpdatedAt: item.UpdatedAt,
	}
}

func (m knowledgeItemModel) toDomain() *knowledge.Item {
	return &knowledge.Item{
		ID: m.ID, TenantID: m.TenantID, Type: knowledge.Type(m.Type), Layer: knowledge.Layer(m.Layer),
		Title: m.Title, Summary: m.Summary, Content: m.Content, ContentHash: m.ContentHash,
		Status: knowledge.Status(m.Status), Severity: knowledge.Severity(m.Severity), Constraints: m.Constraints,
		Tags: m.Tags, Metadata: m.Metadata, Version: m.Version, Supersedes: m.Supersedes,
		SupersededBy: m.SupersededBy, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt,
	}
}

func (s *KnowledgeStore) Insert(ctx context.Context, item *knowledge.Item) error {
	return s.db.WithContext(ctx).Create(toKnowledgeModel(item)).Error
}

func (s *KnowledgeStore) Get(ctx context.Context, tenantID, id string) (*knowledge.Item, error) {
	var row knowledgeItemModel
	err := s.db.WithContext(ctx).Where("id = ? AND tenant_id = ?", id, tenantID).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return row.toDomain(), nil
}

func (s *KnowledgeStore) Update(ctx context.Context, item *knowledge.Item) error {
	return s.db.WithContext(ctx).Save(toKnowledgeModel(item)).Error
}

func (s *KnowledgeStore) List(ctx context.Context, tenantID string) ([]*knowledge.Item, error) {
	var rows []knowledgeItemModel
	if err := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]*knowledge.Item, len(rows))
	for i, r := range rows {
		items[i] = r.toDomain()
	}
	return items, nil
}
