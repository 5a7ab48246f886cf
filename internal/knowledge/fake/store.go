// Package fake provides in-memory implementations of knowledge.ItemStore and
// ports.CommitStore for tests, mirroring internal/memory/fake.
package fake

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kikokikok/aeterna-sub004/internal/knowledge"
	"github.com/kikokikok/aeterna-sub004/pkg/ports"
)

// ItemStore is an in-memory knowledge.ItemStore.
type ItemStore struct {
	mu    sync.Mutex
	items map[string]*knowledge.Item // keyed by tenantID+"/"+id
}

func NewItemStore() *ItemStore { return &ItemStore{items: make(map[string]*knowledge.Item)} }

func key(tenantID, id string) string { return tenantID + "/" + id }

func (s *ItemStore) Insert(_ context.Context, item *knowledge.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(item.TenantID, item.ID)
	if _, ok := s.items[k]; ok {
		return fmt.Errorf("duplicate id %s", item.ID)
	}
	s.items[k] = item
	return nil
}

func (s *ItemStore) Get(_ context.Context, tenantID, id string) (*knowledge.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[key(tenantID, id)]
	if !ok {
		return nil, nil
	}
	return item, nil
}

func (s *ItemStore) Update(_ context.Context, item *knowledge.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key(item.TenantID, item.ID)] = item
	return nil
}

func (s *ItemStore) List(_ context.Context, tenantID string) ([]*knowledge.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*knowledge.Item
	for _, item := range s.items {
		if item.TenantID == tenantID {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CommitStore is an in-memory, order-preserving ports.CommitStore.
type CommitStore struct {
	mu      sync.Mutex
	commits []ports.Commit
}

func NewCommitStore() *CommitStore { return &CommitStore{} }

func (s *CommitStore) Append(_ context.Context, c ports.Commit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits = append(s.commits, c)
	return nil
}

func (s *CommitStore) Read(_ context.Context, fromHash string) ([]ports.Commit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fromHash == "" {
		out := make([]ports.Commit, len(s.commits))
		copy(out, s.commits)
		return out, nil
	}
	for i, c := range s.commits {
		if c.Hash == fromHash {
			out := make([]ports.Commit, len(s.commits)-i-1)
			copy(out, s.commits[i+1:])
			return out, nil
		}
	}
	return nil, nil
}

func (s *CommitStore) Tip(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.commits) == 0 {
		return "", nil
	}
	return s.commits[len(s.commits)-1].Hash, nil
}

var _ ports.CommitStore = (*CommitStore)(nil)
