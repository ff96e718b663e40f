package registry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"meeting-resource-backend/internal/depreciation"
	"meeting-resource-backend/internal/model"
	"meeting-resource-backend/internal/schedule"
	"meeting-resource-backend/internal/store"
)

// AssetInput is the payload for creating or updating an asset. Depreciation
// settings left empty are taken from the category.
type AssetInput struct {
	Code                  string                   `json:"code"`
	Name                  string                   `json:"name"`
	CompanyID             int64                    `json:"companyId"`
	BranchID              *int64                   `json:"branchId"`
	CategoryID            int64                    `json:"categoryId"`
	EquipmentTypeID       *int64                   `json:"equipmentTypeId"`
	SerialNumber          string                   `json:"serialNumber"`
	State                 model.AssetState         `json:"state"`
	Active                *bool                    `json:"active"`
	AssignedEmployeeID    *int64                   `json:"assignedEmployeeId"`
	AssignedDepartmentID  *int64                   `json:"assignedDepartmentId"`
	PurchaseDate          *time.Time               `json:"purchaseDate"`
	InServiceDate         *time.Time               `json:"inServiceDate"`
	NextMaintenanceDate   *time.Time               `json:"nextMaintenanceDate"`
	DepreciationStartDate *time.Time               `json:"depreciationStartDate"`
	Value                 float64                  `json:"value"`
	DepreciationMethod    model.DepreciationMethod `json:"depreciationMethod"`
	PeriodUnit            model.PeriodUnit         `json:"periodUnit"`
	PeriodCount           *int                     `json:"periodCount"`
	DecliningFactor       *float64                 `json:"decliningFactor"`
}

func (in *AssetInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Code = strings.TrimSpace(in.Code)
	if in.Name == "" {
		return schedule.Invalid(schedule.ConstraintField, "asset name is required")
	}
	if in.CategoryID <= 0 {
		return schedule.Invalid(schedule.ConstraintField, "asset category is required")
	}
	if in.Value < 0 {
		return schedule.Invalid(schedule.ConstraintField, "value must not be negative")
	}
	if in.State == "" {
		in.State = model.AssetAvailable
	}
	if !in.State.Valid() {
		return schedule.Invalid(schedule.ConstraintState, "unknown asset state %q", in.State)
	}
	if err := validateSchedule(in.DepreciationMethod, in.PeriodUnit, in.PeriodCount, in.DecliningFactor); err != nil {
		return err
	}
	return validateAssignment(in.State, in.AssignedEmployeeID, in.AssignedDepartmentID)
}

func validateSchedule(method model.DepreciationMethod, unit model.PeriodUnit, count *int, factor *float64) error {
	switch method {
	case "", model.DepreciationNone, model.DepreciationLinear, model.DepreciationDeclining, model.DepreciationSYD:
	default:
		return schedule.Invalid(schedule.ConstraintField, "unknown depreciation method %q", method)
	}
	switch unit {
	case "", model.PeriodMonth, model.PeriodYear:
	default:
		return schedule.Invalid(schedule.ConstraintField, "unknown period unit %q", unit)
	}
	if count != nil && *count < 0 {
		return schedule.Invalid(schedule.ConstraintField, "period count must not be negative")
	}
	if factor != nil && *factor < 0 {
		return schedule.Invalid(schedule.ConstraintField, "declining factor must not be negative")
	}
	return nil
}

// validateAssignment enforces that an asset is held by an employee or a
// department, never both, and that in_use assets are held by someone.
func validateAssignment(state model.AssetState, employeeID, departmentID *int64) error {
	if employeeID != nil && departmentID != nil {
		return schedule.Invalid(schedule.ConstraintAssignment, "asset can be assigned to an employee or a department, not both")
	}
	if state == model.AssetInUse && employeeID == nil && departmentID == nil {
		return schedule.Invalid(schedule.ConstraintAssignment, "an in-use asset must be assigned to an employee or a department")
	}
	return nil
}

// AssetDetail is an asset with its derived read-time fields.
type AssetDetail struct {
	model.Asset
	MaintenanceOverdue      bool  `json:"maintenanceOverdue"`
	MaintenanceRequestCount int64 `json:"maintenanceRequestCount"`
}

func (s *Service) CreateAsset(ctx context.Context, in AssetInput) (*model.Asset, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	category, err := s.category(ctx, in.CategoryID)
	if err != nil {
		return nil, err
	}
	if err := s.checkHolders(ctx, in.AssignedEmployeeID, in.AssignedDepartmentID); err != nil {
		return nil, err
	}

	asset := &model.Asset{Active: true}
	applyAsset(asset, in)
	applyCategoryDefaults(asset, category, in)
	if asset.DepreciationStartDate == nil {
		asset.DepreciationStartDate = firstDate(asset.InServiceDate, asset.PurchaseDate)
	}

	if in.Code == "" || in.Code == "New" {
		if asset.Code, err = s.store.NextCode(ctx, "asset", s.assetPrefix); err != nil {
			return nil, err
		}
	} else if err := s.ensureAssetCodeFree(ctx, in.Code, 0); err != nil {
		return nil, err
	}

	depreciation.Apply(asset, s.now())
	if err := s.store.CreateAsset(ctx, asset); err != nil {
		return nil, err
	}
	s.log.Info("asset created", "id", asset.ID, "code", asset.Code, "category_id", asset.CategoryID)
	return asset, nil
}

func (s *Service) UpdateAsset(ctx context.Context, id int64, in AssetInput) (*model.Asset, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	asset, err := s.store.GetAsset(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkHolders(ctx, in.AssignedEmployeeID, in.AssignedDepartmentID); err != nil {
		return nil, err
	}

	categoryChanged := asset.CategoryID != in.CategoryID
	code := asset.Code
	applyAsset(asset, in)
	if in.Code == "" || in.Code == "New" {
		asset.Code = code
	} else if err := s.ensureAssetCodeFree(ctx, in.Code, id); err != nil {
		return nil, err
	}

	if categoryChanged {
		category, err := s.category(ctx, in.CategoryID)
		if err != nil {
			return nil, err
		}
		applyCategoryDefaults(asset, category, in)
	} else {
		applyExplicitSchedule(asset, in)
	}
	if asset.DepreciationStartDate == nil {
		asset.DepreciationStartDate = firstDate(asset.InServiceDate, asset.PurchaseDate)
	}

	depreciation.Apply(asset, s.now())
	asset.EquipmentType = nil
	if err := s.store.SaveAsset(ctx, asset); err != nil {
		return nil, err
	}
	return asset, nil
}

func (s *Service) SetAssetState(ctx context.Context, id int64, state model.AssetState) error {
	if !state.Valid() {
		return schedule.Invalid(schedule.ConstraintState, "unknown asset state %q", state)
	}
	asset, err := s.store.GetAsset(ctx, id)
	if err != nil {
		return err
	}
	if err := validateAssignment(state, asset.AssignedEmployeeID, asset.AssignedDepartmentID); err != nil {
		return err
	}
	return s.store.SetAssetState(ctx, id, state)
}

func (s *Service) ArchiveAsset(ctx context.Context, id int64) error {
	asset, err := s.store.GetAsset(ctx, id)
	if err != nil {
		return err
	}
	asset.Active = false
	asset.EquipmentType = nil
	return s.store.SaveAsset(ctx, asset)
}

func (s *Service) DeleteAsset(ctx context.Context, id int64) error {
	return s.store.DeleteAsset(ctx, id)
}

func (s *Service) ListAssets(ctx context.Context, f store.AssetFilter) ([]model.Asset, error) {
	return s.store.ListAssets(ctx, f)
}

func (s *Service) AssetDetail(ctx context.Context, id int64, at time.Time) (*AssetDetail, error) {
	asset, err := s.store.GetAsset(ctx, id)
	if err != nil {
		return nil, err
	}
	requests, err := s.store.CountMaintenance(ctx, store.AssetTarget(id))
	if err != nil {
		return nil, err
	}
	return &AssetDetail{
		Asset:                   *asset,
		MaintenanceOverdue:      MaintenanceOverdue(asset, at),
		MaintenanceRequestCount: requests,
	}, nil
}

// Depreciation evaluates the asset's schedule at the given date without
// writing anything.
func (s *Service) Depreciation(ctx context.Context, id int64, at time.Time) (depreciation.Result, error) {
	asset, err := s.store.GetAsset(ctx, id)
	if err != nil {
		return depreciation.Result{}, err
	}
	return depreciation.Compute(depreciation.FromAsset(asset), at), nil
}

// MaintenanceOverdue reports whether the asset's next maintenance date lies
// before the day of at.
func MaintenanceOverdue(a *model.Asset, at time.Time) bool {
	if a.NextMaintenanceDate == nil {
		return false
	}
	y, m, d := at.UTC().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return a.NextMaintenanceDate.Before(today)
}

func (s *Service) category(ctx context.Context, id int64) (*model.AssetCategory, error) {
	c, err := s.store.GetAssetCategory(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, schedule.Invalid(schedule.ConstraintField, "asset category %d does not exist", id)
		}
		return nil, err
	}
	return c, nil
}

func (s *Service) checkHolders(ctx context.Context, employeeID, departmentID *int64) error {
	if employeeID != nil {
		if _, err := s.store.EmployeesByIDs(ctx, []int64{*employeeID}); err != nil {
			if isNotFound(err) {
				return schedule.Invalid(schedule.ConstraintAssignment, "employee %d does not exist", *employeeID)
			}
			return err
		}
	}
	if departmentID != nil {
		if _, err := s.store.GetDepartment(ctx, *departmentID); err != nil {
			if isNotFound(err) {
				return schedule.Invalid(schedule.ConstraintAssignment, "department %d does not exist", *departmentID)
			}
			return err
		}
	}
	return nil
}

func (s *Service) ensureAssetCodeFree(ctx context.Context, code string, self int64) error {
	assets, err := s.store.ListAssets(ctx, store.AssetFilter{Code: code})
	if err != nil {
		return err
	}
	for _, a := range assets {
		if a.ID != self {
			return fmt.Errorf("asset code %q: %w", code, store.ErrConflict)
		}
	}
	return nil
}

func applyAsset(a *model.Asset, in AssetInput) {
	a.Code = in.Code
	a.Name = in.Name
	a.CompanyID = in.CompanyID
	a.BranchID = in.BranchID
	a.CategoryID = in.CategoryID
	a.EquipmentTypeID = in.EquipmentTypeID
	a.SerialNumber = in.SerialNumber
	a.State = in.State
	if in.Active != nil {
		a.Active = *in.Active
	}
	a.AssignedEmployeeID = in.AssignedEmployeeID
	a.AssignedDepartmentID = in.AssignedDepartmentID
	a.PurchaseDate = in.PurchaseDate
	a.InServiceDate = in.InServiceDate
	a.NextMaintenanceDate = in.NextMaintenanceDate
	a.DepreciationStartDate = in.DepreciationStartDate
	a.Value = in.Value
}

// applyCategoryDefaults copies the category's schedule onto the asset for
// every setting the input leaves empty.
func applyCategoryDefaults(a *model.Asset, c *model.AssetCategory, in AssetInput) {
	a.DepreciationMethod = c.DepreciationMethod
	a.PeriodUnit = c.PeriodUnit
	a.PeriodCount = c.PeriodCount
	a.DecliningFactor = c.DecliningFactor
	applyExplicitSchedule(a, in)
}

func applyExplicitSchedule(a *model.Asset, in AssetInput) {
	if in.DepreciationMethod != "" {
		a.DepreciationMethod = in.DepreciationMethod
	}
	if in.PeriodUnit != "" {
		a.PeriodUnit = in.PeriodUnit
	}
	if in.PeriodCount != nil {
		a.PeriodCount = *in.PeriodCount
	}
	if in.DecliningFactor != nil {
		a.DecliningFactor = *in.DecliningFactor
	}
}

func firstDate(dates ...*time.Time) *time.Time {
	for _, d := range dates {
		if d != nil {
			return d
		}
	}
	return nil
}
