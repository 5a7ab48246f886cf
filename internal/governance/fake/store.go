// Package fake provides in-memory implementations of the governance store
// interfaces for tests, mirroring internal/memory/fake and
// internal/knowledge/fake.
package fake

import (
	"context"
	"sync"

	"github.com/kikokikok/aeterna-sub004/internal/governance"
	"github.com/kikokikok/aeterna-sub004/pkg/tenancy"
)

// UnitStore is an in-memory governance.UnitStore.
type UnitStore struct {
	mu    sync.Mutex
	units map[string]*tenancy.OrganizationalUnit
}

func NewUnitStore() *UnitStore { return &UnitStore{units: make(map[string]*tenancy.OrganizationalUnit)} }

func (s *UnitStore) Insert(_ context.Context, unit *tenancy.OrganizationalUnit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.units[unit.ID] = unit
	return nil
}

func (s *UnitStore) Get(_ context.Context, tenantID, id string) (*tenancy.OrganizationalUnit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.units[id]
	if !ok || u.TenantID != tenantID {
		return nil, nil
	}
	return u, nil
}

func (s *UnitStore) ListByTenant(_ context.Context, tenantID string) ([]*tenancy.OrganizationalUnit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*tenancy.OrganizationalUnit
	for _, u := range s.units {
		if u.TenantID == tenantID {
			out = append(out, u)
		}
	}
	return out, nil
}

// RoleStore is an in-memory governance.RoleStore.
type RoleStore struct {
	mu          sync.Mutex
	assignments []roleRecord
}

type roleRecord struct {
	tenantID string
	governance.RoleAssignment
}

func NewRoleStore() *RoleStore { return &RoleStore{} }

func (s *RoleStore) Assign(_ context.Context, tenantID string, assignment governance.RoleAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignments = append(s.assignments, roleRecord{tenantID: tenantID, RoleAssignment: assignment})
	return nil
}

func (s *RoleStore) Remove(_ context.Context, tenantID, userID, unitID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []roleRecord
	for _, r := range s.assignments {
		if r.tenantID == tenantID && r.UserID == userID && r.UnitID == unitID {
			continue
		}
		kept = append(kept, r)
	}
	s.assignments = kept
	return nil
}

func (s *RoleStore) ListForUnit(_ context.Context, tenantID, unitID string) ([]governance.RoleAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []governance.RoleAssignment
	for _, r := range s.assignments {
		if r.tenantID == tenantID && r.UnitID == unitID {
			out = append(out, r.RoleAssignment)
		}
	}
	return out, nil
}

// PolicyStore is an in-memory governance.PolicyStore.
type PolicyStore struct {
	mu       sync.Mutex
	policies map[string][]governance.Policy // keyed by tenantID+"/"+unitID
}

func NewPolicyStore() *PolicyStore { return &PolicyStore{policies: make(map[string][]governance.Policy)} }

func policyKey(tenantID, unitID string) string { return tenantID + "/" + unitID }

func (s *PolicyStore) Put(tenantID string, p governance.Policy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := policyKey(tenantID, p.UnitID)
	s.policies[k] = append(s.policies[k], p)
}

func (s *PolicyStore) ListForUnit(_ context.Context, tenantID, unitID string) ([]governance.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.policies[policyKey(tenantID, unitID)], nil
}

// DriftSuppressionStore is an in-memory governance.DriftSuppressionStore.
type DriftSuppressionStore struct {
	mu            sync.Mutex
	suppressions  []governance.DriftSuppression
}

func NewDriftSuppressionStore() *DriftSuppressionStore { return &DriftSuppressionStore{} }

func (s *DriftSuppressionStore) Put(sup governance.DriftSuppression) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suppressions = append(s.suppressions, sup)
}

func (s *DriftSuppressionStore) ListActive(_ context.Context, tenantID, projectID string) ([]governance.DriftSuppression, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []governance.DriftSuppression
	for _, sup := range s.suppressions {
		if sup.TenantID == tenantID && sup.ProjectID == projectID {
			out = append(out, sup)
		}
	}
	return out, nil
}
