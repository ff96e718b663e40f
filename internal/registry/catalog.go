package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"meeting-resource-backend/internal/model"
	"meeting-resource-backend/internal/schedule"
	"meeting-resource-backend/internal/store"
)

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

func (s *Service) CreateEquipmentType(ctx context.Context, et *model.EquipmentType) error {
	et.Code = strings.ToUpper(strings.TrimSpace(et.Code))
	et.Name = strings.TrimSpace(et.Name)
	if et.Code == "" || et.Name == "" {
		return schedule.Invalid(schedule.ConstraintField, "equipment type code and name are required")
	}
	existing, err := s.store.EquipmentTypesByCodes(ctx, []string{et.Code})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return fmt.Errorf("equipment type %q: %w", et.Code, store.ErrConflict)
	}
	return s.store.CreateEquipmentType(ctx, et)
}

func (s *Service) ListEquipmentTypes(ctx context.Context) ([]model.EquipmentType, error) {
	return s.store.ListEquipmentTypes(ctx)
}

// CreateAssetCategory stores a category. Empty schedule settings fall back to
// no depreciation over three years.
func (s *Service) CreateAssetCategory(ctx context.Context, c *model.AssetCategory) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return schedule.Invalid(schedule.ConstraintField, "category name is required")
	}
	if err := validateSchedule(c.DepreciationMethod, c.PeriodUnit, &c.PeriodCount, &c.DecliningFactor); err != nil {
		return err
	}
	if c.DepreciationMethod == "" {
		c.DepreciationMethod = model.DepreciationNone
	}
	if c.PeriodUnit == "" {
		c.PeriodUnit = model.PeriodYear
	}
	if c.PeriodCount == 0 {
		c.PeriodCount = 3
	}
	if c.DecliningFactor == 0 {
		c.DecliningFactor = 2
	}
	return s.store.CreateAssetCategory(ctx, c)
}

func (s *Service) ListAssetCategories(ctx context.Context) ([]model.AssetCategory, error) {
	return s.store.ListAssetCategories(ctx)
}

func (s *Service) CreateBranch(ctx context.Context, b *model.Branch) error {
	b.Code = strings.TrimSpace(b.Code)
	b.Name = strings.TrimSpace(b.Name)
	if b.Code == "" || b.Name == "" {
		return schedule.Invalid(schedule.ConstraintField, "branch code and name are required")
	}
	b.Active = true
	return s.store.CreateBranch(ctx, b)
}

func (s *Service) ListBranches(ctx context.Context, companyID int64) ([]model.Branch, error) {
	return s.store.ListBranches(ctx, companyID)
}

func (s *Service) CreateEmployee(ctx context.Context, e *model.Employee) error {
	e.Name = strings.TrimSpace(e.Name)
	if e.Name == "" {
		return schedule.Invalid(schedule.ConstraintField, "employee name is required")
	}
	if e.DepartmentID != nil {
		if _, err := s.store.GetDepartment(ctx, *e.DepartmentID); err != nil {
			if isNotFound(err) {
				return schedule.Invalid(schedule.ConstraintField, "department %d does not exist", *e.DepartmentID)
			}
			return err
		}
	}
	e.Active = true
	return s.store.CreateEmployee(ctx, e)
}

func (s *Service) CreateDepartment(ctx context.Context, d *model.Department) error {
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return schedule.Invalid(schedule.ConstraintField, "department name is required")
	}
	return s.store.CreateDepartment(ctx, d)
}

func (s *Service) CreateMaintenanceCategory(ctx context.Context, c *model.MaintenanceCategory) error {
	if strings.TrimSpace(c.Name) == "" {
		return schedule.Invalid(schedule.ConstraintField, "maintenance category name is required")
	}
	return s.store.CreateMaintenanceCategory(ctx, c)
}

func (s *Service) CreateMaintenanceTeam(ctx context.Context, t *model.MaintenanceTeam) error {
	if strings.TrimSpace(t.Name) == "" {
		return schedule.Invalid(schedule.ConstraintField, "maintenance team name is required")
	}
	return s.store.CreateMaintenanceTeam(ctx, t)
}
