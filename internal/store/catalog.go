package store

import (
	"context"
	"fmt"

	"meeting-resource-backend/internal/model"
)

func (s *gormStore) CreateEquipmentType(ctx context.Context, et *model.EquipmentType) error {
	if err := s.db.WithContext(ctx).Create(et).Error; err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("equipment type %q: %w", et.Code, ErrConflict)
		}
		return fmt.Errorf("failed to create equipment type: %w", err)
	}
	return nil
}

func (s *gormStore) ListEquipmentTypes(ctx context.Context) ([]model.EquipmentType, error) {
	var types []model.EquipmentType
	if err := s.db.WithContext(ctx).Order("code").Find(&types).Error; err != nil {
		return nil, fmt.Errorf("failed to list equipment types: %w", err)
	}
	return types, nil
}

// EquipmentTypesByCodes returns the known types among codes. Unknown codes are
// skipped.
func (s *gormStore) EquipmentTypesByCodes(ctx context.Context, codes []string) ([]model.EquipmentType, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	var types []model.EquipmentType
	if err := s.db.WithContext(ctx).Where("code IN ?", codes).Order("code").Find(&types).Error; err != nil {
		return nil, fmt.Errorf("failed to load equipment types: %w", err)
	}
	return types, nil
}

func (s *gormStore) CreateAssetCategory(ctx context.Context, c *model.AssetCategory) error {
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("failed to create asset category: %w", err)
	}
	return nil
}

func (s *gormStore) GetAssetCategory(ctx context.Context, id int64) (*model.AssetCategory, error) {
	var c model.AssetCategory
	if err := s.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, notFound(err, "asset category", id)
	}
	return &c, nil
}

func (s *gormStore) ListAssetCategories(ctx context.Context) ([]model.AssetCategory, error) {
	var cats []model.AssetCategory
	if err := s.db.WithContext(ctx).Order("name").Find(&cats).Error; err != nil {
		return nil, fmt.Errorf("failed to list asset categories: %w", err)
	}
	return cats, nil
}

func (s *gormStore) CreateBranch(ctx context.Context, b *model.Branch) error {
	var taken int64
	if err := s.db.WithContext(ctx).Model(&model.Branch{}).
		Where("company_id = ? AND code = ?", b.CompanyID, b.Code).
		Count(&taken).Error; err != nil {
		return fmt.Errorf("failed to check branch code: %w", err)
	}
	if taken > 0 {
		return fmt.Errorf("branch code %q already used in company %d: %w", b.Code, b.CompanyID, ErrConflict)
	}
	if err := s.db.WithContext(ctx).Create(b).Error; err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("branch code %q: %w", b.Code, ErrConflict)
		}
		return fmt.Errorf("failed to create branch: %w", err)
	}
	return nil
}

func (s *gormStore) ListBranches(ctx context.Context, companyID int64) ([]model.Branch, error) {
	q := s.db.WithContext(ctx).Model(&model.Branch{})
	if companyID > 0 {
		q = q.Where("company_id = ?", companyID)
	}
	var branches []model.Branch
	if err := q.Order("code").Find(&branches).Error; err != nil {
		return nil, fmt.Errorf("failed to list branches: %w", err)
	}
	return branches, nil
}

func (s *gormStore) CreateEmployee(ctx context.Context, e *model.Employee) error {
	if err := s.db.WithContext(ctx).Create(e).Error; err != nil {
		return fmt.Errorf("failed to create employee: %w", err)
	}
	return nil
}

// EmployeesByIDs loads all employees in ids and fails with ErrNotFound when
// any of them is missing.
func (s *gormStore) EmployeesByIDs(ctx context.Context, ids []int64) ([]model.Employee, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var employees []model.Employee
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&employees).Error; err != nil {
		return nil, fmt.Errorf("failed to load employees: %w", err)
	}
	if len(employees) != len(uniqueIDs(ids)) {
		return nil, fmt.Errorf("some employees of %v: %w", ids, ErrNotFound)
	}
	return employees, nil
}

func (s *gormStore) CreateDepartment(ctx context.Context, d *model.Department) error {
	if err := s.db.WithContext(ctx).Create(d).Error; err != nil {
		return fmt.Errorf("failed to create department: %w", err)
	}
	return nil
}

func (s *gormStore) GetDepartment(ctx context.Context, id int64) (*model.Department, error) {
	var d model.Department
	if err := s.db.WithContext(ctx).First(&d, id).Error; err != nil {
		return nil, notFound(err, "department", id)
	}
	return &d, nil
}

func (s *gormStore) CreateMaintenanceCategory(ctx context.Context, c *model.MaintenanceCategory) error {
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("failed to create maintenance category: %w", err)
	}
	return nil
}

func (s *gormStore) CreateMaintenanceTeam(ctx context.Context, t *model.MaintenanceTeam) error {
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("failed to create maintenance team: %w", err)
	}
	return nil
}

func (s *gormStore) RecordAssistantCall(ctx context.Context, call *model.AssistantCall) error {
	if err := s.db.WithContext(ctx).Create(call).Error; err != nil {
		return fmt.Errorf("failed to record assistant call: %w", err)
	}
	return nil
}
