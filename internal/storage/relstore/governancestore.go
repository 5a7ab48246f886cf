package relstore

import (
	"context"

	"gorm.io/gorm"

	"github.com/kikokikok/aeterna-sub004/internal/governance"
	"github.com/kikokikok/aeterna-sub004/pkg/tenancy"
)

// UnitStore is the GORM-backed governance.UnitStore.
type UnitStore struct{ db *gorm.DB }

func NewUnitStore(m *Manager) *UnitStore { return &UnitStore{db: m.db} }

var _ governance.UnitStore = (*UnitStore)(nil)

func (s *UnitStore) Insert(ctx context.Context, unit *tenancy.OrganizationalUnit) error {
	return s.db.WithContext(ctx).Create(&unitModel{
		ID: unit.ID, TenantID: unit.TenantID, Name: unit.Name, Type: int(unit.Type), ParentID: unit.ParentID,
	}).Error
}

func (s *UnitStore) Get(ctx context.Context, tenantID, id string) (*tenancy.OrganizationalUnit, error) {
	var row unitModel
	err := s.db.WithContext(ctx).Where("id = ? AND tenant_id = ?", id, tenantID).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &tenancy.OrganizationalUnit{ID: row.ID, TenantID: row.TenantID, Name: row.Name, Type: tenancy.UnitType(row.Type), ParentID: row.ParentID}, nil
}

func (s *UnitStore) ListByTenant(ctx context.Context, tenantID string) ([]*tenancy.OrganizationalUnit, error) {
	var rows []unitModel
	if err := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Find(&rows).Error; err != nil {
		return nil, err
	}
	units := make([]*tenancy.OrganizationalUnit, len(rows))
	for i, r := range rows {
		units[i] = &tenancy.OrganizationalUnit{ID: r.ID, TenantID: r.TenantID, Name: r.Name, Type: tenancy.UnitType(r.Type), ParentID: r.ParentID}
	}
	return units, nil
}

// RoleStore is the GORM-backed governance.RoleStore.
type RoleStore struct{ db *gorm.DB }

func NewRoleStore(m *Manager) *RoleStore { return &RoleStore{db: m.db} }

var _ governance.RoleStore = (*RoleStore)(nil)

func (s *RoleStore) Assign(ctx context.Context, tenantID string, assignment governance.RoleAssignment) error {
	row := roleAssignmentModel{TenantID: tenantID, UserID: assignment.UserID, UnitID: assignment.UnitID, Role: int(assignment.Role)}
	return s.db.WithContext(ctx).Save(&row).Error
}

func (s *RoleStore) Remove(ctx context.Context, tenantID, userID, unitID string) error {
	return s.db.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ? AND unit_id = ?", tenantID, userID, unitID).
		Delete(&roleAssignmentModel{}).Error
}

func (s *RoleStore) ListForUnit(ctx context.Context, tenantID, unitID string) ([]governance.RoleAssignment, error) {
	var rows []roleAssignmentModel
	if err := s.db.WithContext(ctx).Where("tenant_id = ? AND unit_id = ?", tenantID, unitID).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]governance.RoleAssignment, len(rows))
	for i, r := range rows {
		out[i] = governance.RoleAssignment{UserID: r.UserID, UnitID: r.UnitID, Role: tenancy.Role(r.Role)}
	}
	return out, nil
}

// PolicyStoreImpl is the GORM-backed governance.PolicyStore.
type PolicyStoreImpl struct{ db *gorm.DB }

func NewPolicyStore(m *Manager) *PolicyStoreImpl { return &PolicyStoreImpl{db: m.db} }

var _ governance.PolicyStore = (*PolicyStoreImpl)(nil)

func (s *PolicyStoreImpl) ListForUnit(ctx context.Context, tenantID, unitID string) ([]governance.Policy, error) {
	var rows []policyModel
	if err := s.db.WithContext(ctx).Where("tenant_id = ? AND unit_id = ?", tenantID, unitID).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]governance.Policy, len(rows))
	for i, r := range rows {
		out[i] = governance.Policy{
			ID: r.ID, TenantID: r.TenantID, UnitID: r.UnitID, Name: r.Name, Rules: r.Rules,
			MergeStrategy: governance.MergeStrategy(r.MergeStrategy), Mandatory: r.Mandatory,
			RequiredRole: tenancy.Role(r.RequiredRole),
		}
	}
	return out, nil
}

// Insert persists a Policy; not part of the governance.PolicyStore read
// seam but needed by anything seeding policies (fixtures, the governance
// HTTP surface once unit/policy management grows a write endpoint).
func (s *PolicyStoreImpl) Insert(ctx context.Context, p governance.Policy) error {
	return s.db.WithContext(ctx).Create(&policyModel{
		ID: p.ID, TenantID: p.TenantID, UnitID: p.UnitID, Name: p.Name, Rules: p.Rules,
		MergeStrategy: string(p.MergeStrategy), Mandatory: p.Mandatory, RequiredRole: int(p.RequiredRole),
	}).Error
}

// DriftSuppressionStoreImpl is the GORM-backed governance.DriftSuppressionStore.
type DriftSuppressionStoreImpl struct{ db *gorm.DB }

func NewDriftSuppressionStore(m *Manager) *DriftSuppressionStoreImpl { return &DriftSuppressionStoreImpl{db: m.db} }

var _ governance.DriftSuppressionStore = (*DriftSuppressionStoreImpl)(nil)

func (s *DriftSuppressionStoreImpl) ListActive(ctx context.Context, tenantID, projectID string) ([]governance.DriftSuppression, error) {
	var rows []driftSuppressionModel
	if err := s.db.WithContext(ctx).Where("tenant_id = ? AND project_id = ?", tenantID, projectID).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]governance.DriftSuppression, len(rows))
	for i, r := range rows {
		out[i] = governance.DriftSuppression{
			ID: r.ID, TenantID: r.TenantID, ProjectID: r.ProjectID, PolicyID: r.PolicyID,
			RulePattern: r.RulePattern, ExpiresAt: r.ExpiresAt,
		}
	}
	return out, nil
}

// Insert persists a suppression; used by whatever CRUD surface manages
// exemptions (spec §4.3.4 "CRUD-managed exemption").
func (s *DriftSuppressionStoreImpl) Insert(ctx context.Context, d governance.DriftSuppression) error {
	return s.db.WithContext(ctx).Create(&driftSuppressionModel{
		ID: d.ID, TenantID: d.TenantID, ProjectID: d.ProjectID, PolicyID: d.PolicyID,
		RulePattern: d.RulePattern, ExpiresAt: d.ExpiresAt,
	}).Error
}
