// Package fake provides an in-memory syncbridge.SyncStateStore for tests.
package fake

import (
	"context"
	"sync"

	"github.com/kikokikok/aeterna-sub004/internal/syncbridge"
)

type StateStore struct {
	mu        sync.Mutex
	states    map[string]syncbridge.SyncState
	snapshots map[string]string // tenantID+"/"+entryID -> content_hash
}

func NewStateStore() *StateStore {
	return &StateStore{states: make(map[string]syncbridge.SyncState), snapshots: make(map[string]string)}
}

func (s *StateStore) Get(_ context.Context, tenantID string) (syncbridge.SyncState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[tenantID]
	if !ok {
		return syncbridge.SyncState{TenantID: tenantID, Health: syncbridge.HealthHealthy}, nil
	}
	return state, nil
}

func (s *StateStore) Save(_ context.Context, state syncbridge.SyncState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.TenantID] = state
	return nil
}

func snapKey(tenantID, entryID string) string { return tenantID + "/" + entryID }

func (s *StateStore) SnapshotHash(_ context.Context, tenantID, entryID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hash, ok := s.snapshots[snapKey(tenantID, entryID)]
	return hash, ok, nil
}

func (s *StateStore) SaveSnapshotHash(_ context.Context, tenantID, entryID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snapKey(tenantID, entryID)] = hash
	return nil
}

var _ syncbridge.SyncStateStore = (*StateStore)(nil)
