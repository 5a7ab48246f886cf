// Package commitstore implements ports.CommitStore as a relational,
// append-only log: each commit is a content-addressed row keyed by hash,
// ordered by insertion sequence, matching the Knowledge Repository's
// commit model (spec §3.6, §4.2).
package commitstore

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/kikokikok/aeterna-sub004/pkg/ports"
)

type commitRow struct {
	Hash      string `gorm:"primaryKey"`
	TenantID  string `gorm:"index"`
	Data      []byte
	Timestamp int64
	Seq       uint `gorm:"autoIncrement"`
}

func (commitRow) TableName() string { return "commits" }

// Store is the GORM-backed ports.CommitStore, scoped to a single tenant.
type Store struct {
	db       *gorm.DB
	tenantID string
}

// New returns a Store scoped to tenantID. Call Migrate once per process
// (or rely on relstore.Manager.Initialize, which migrates the same table).
func New(db *gorm.DB, tenantID string) *Store { return &Store{db: db, tenantID: tenantID} }

var _ ports.CommitStore = (*Store)(nil)

func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&commitRow{}); err != nil {
		return fmt.Errorf("commitstore: migrate: %w", err)
	}
	return nil
}

func (s *Store) Append(ctx context.Context, c ports.Commit) error {
	return s.db.WithContext(ctx).Create(&commitRow{
		Hash: c.Hash, TenantID: s.tenantID, Data: c.Data, Timestamp: c.Timestamp,
	}).Error
}

// Read returns every commit after fromHash, oldest first. An empty fromHash
// returns the full history.
func (s *Store) Read(ctx context.Context, fromHash string) ([]ports.Commit, error) {
	q := s.db.WithContext(ctx).Where("tenant_id = ?", s.tenantID).Order("seq")
	if fromHash != "" {
		var from commitRow
		if err := s.db.WithContext(ctx).Where("tenant_id = ? AND hash = ?", s.tenantID, fromHash).First(&from).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, fmt.Errorf("commitstore: commit %q not found", fromHash)
			}
			return nil, err
		}
		q = q.Where("seq > ?", from.Seq)
	}
	var rows []commitRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]ports.Commit, len(rows))
	for i, r := range rows {
		out[i] = ports.Commit{Hash: r.Hash, Data: r.Data, Timestamp: r.Timestamp}
	}
	return out, nil
}

func (s *Store) Tip(ctx context.Context) (string, error) {
	var row commitRow
	err := s.db.WithContext(ctx).Where("tenant_id = ?", s.tenantID).Order("seq DESC").First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", nil
		}
		return "", err
	}
	return row.Hash, nil
}
