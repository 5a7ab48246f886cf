// Package fake provides an in-memory contextarchitect.SummaryStore for tests.
package fake

import (
	"context"
	"sync"

	"github.com/kikokikok/aeterna-sub004/internal/contextarchitect"
	"github.com/kikokikok/aeterna-sub004/pkg/ports"
)

type SummaryStore struct {
	mu    sync.Mutex
	items map[string]contextarchitect.StoredSummary
}

func NewSummaryStore() *SummaryStore {
	return &SummaryStore{items: make(map[string]contextarchitect.StoredSummary)}
}

func key(sourceID string, depth ports.SummaryDepth) string { return sourceID + "/" + string(depth) }

func (s *SummaryStore) Get(_ context.Context, sourceID string, depth ports.SummaryDepth) (*contextarchitect.StoredSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.items[key(sourceID, depth)]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (s *SummaryStore) Put(_ context.Context, summary contextarchitect.StoredSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key(summary.SourceID, summary.Depth)] = summary
	return nil
}

// Seed directly installs a summary, bypassing generation, for test setup.
func (s *SummaryStore) Seed(summary contextarchitect.StoredSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key(summary.SourceID, summary.Depth)] = summary
}

var _ contextarchitect.SummaryStore = (*SummaryStore)(nil)
