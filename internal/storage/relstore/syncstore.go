package relstore

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/kikokikok/aeterna-sub004/internal/syncbridge"
)

type syncStateModel struct {
	TenantID      string `gorm:"primaryKey"`
	LastSync      time.Time
	LastCommit    string
	PendingDeltas int
	Health        string
	LastError     string
}

func (syncStateModel) TableName() string { return "sync_states" }

type syncSnapshotModel struct {
	TenantID string `gorm:"primaryKey"`
	EntryID  string `gorm:"primaryKey"`
	Hash     string
}

func (syncSnapshotModel) TableName() string { return "sync_snapshots" }

// SyncStateStore is the GORM-backed syncbridge.SyncStateStore.
type SyncStateStore struct{ db *gorm.DB }

func NewSyncStateStore(m *Manager) *SyncStateStore { return &SyncStateStore{db: m.db} }

var _ syncbridge.SyncStateStore = (*SyncStateStore)(nil)

func (s *SyncStateStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&syncStateModel{}, &syncSnapshotModel{})
}

func (s *SyncStateStore) Get(ctx context.Context, tenantID string) (syncbridge.SyncState, error) {
	var row syncStateModel
	err := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return syncbridge.SyncState{TenantID: tenantID, Health: syncbridge.HealthHealthy}, nil
		}
		return syncbridge.SyncState{}, err
	}
	return syncbridge.SyncState{
		TenantID: row.TenantID, LastSync: row.LastSync, LastCommit: row.LastCommit,
		PendingDeltas: row.PendingDeltas, Health: syncbridge.Health(row.Health), LastError: row.LastError,
	}, nil
}

func (s *SyncStateStore) Save(ctx context.Context, state syncbridge.SyncState) error {
	return s.db.WithContext(ctx).Save(&syncStateModel{
		TenantID: state.TenantID, LastSync: state.LastSync, LastCommit: state.LastCommit,
		PendingDeltas: state.PendingDeltas, Health: string(state.Health), LastError: state.LastError,
	}).Error
}

func (s *SyncStateStore) SnapshotHash(ctx context.Context, tenantID, entryID string) (string, bool, error) {
	var row syncSnapshotModel
	err := s.db.WithContext(ctx).Where("tenant_id = ? AND entry_id = ?", tenantID, entryID).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", false, nil
		}
		return "", false, err
	}
	return row.Hash, true, nil
}

func (s *SyncStateStore) SaveSnapshotHash(ctx context.Context, tenantID, entryID, hash string) error {
	return s.db.WithContext(ctx).Save(&syncSnapshotModel{TenantID: tenantID, EntryID: entryID, Hash: hash}).Error
}
