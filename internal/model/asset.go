package model

import "time"

// AssetState is the administrative state of an asset.
type AssetState string

const (
	AssetAvailable   AssetState = "available"
	AssetInUse       AssetState = "in_use"
	AssetMaintenance AssetState = "maintenance"
	AssetBroken      AssetState = "broken"
)

// Valid reports whether s is a known asset state.
func (s AssetState) Valid() bool {
	switch s {
	case AssetAvailable, AssetInUse, AssetMaintenance, AssetBroken:
		return true
	}
	return false
}

// DepreciationMethod selects how an asset loses value over time.
type DepreciationMethod string

const (
	DepreciationNone      DepreciationMethod = "none"
	DepreciationLinear    DepreciationMethod = "linear"
	DepreciationDeclining DepreciationMethod = "declining"
	DepreciationSYD       DepreciationMethod = "syd"
)

// PeriodUnit is the granularity of depreciation periods.
type PeriodUnit string

const (
	PeriodMonth PeriodUnit = "month"
	PeriodYear  PeriodUnit = "year"
)

// EquipmentType is a canonical equipment classification such as TV or MIC.
type EquipmentType struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Code      string    `gorm:"size:16;not null;uniqueIndex" json:"code"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AssetCategory groups assets and carries default depreciation settings.
type AssetCategory struct {
	ID                 int64              `gorm:"primaryKey" json:"id"`
	CompanyID          int64              `gorm:"index" json:"companyId"`
	Code               string             `gorm:"size:32" json:"code"`
	Name               string             `gorm:"size:128;not null" json:"name"`
	DepreciationMethod DepreciationMethod `gorm:"size:16;not null;default:none" json:"depreciationMethod"`
	PeriodUnit         PeriodUnit         `gorm:"size:8;not null;default:year" json:"periodUnit"`
	PeriodCount        int                `gorm:"not null;default:3" json:"periodCount"`
	DecliningFactor    float64            `gorm:"not null;default:2" json:"decliningFactor"`
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`
}

// Asset is a piece of equipment that can be attached to rooms and bookings.
type Asset struct {
	ID                   int64      `gorm:"primaryKey" json:"id"`
	Code                 string     `gorm:"size:64;not null;uniqueIndex" json:"code"`
	Name                 string     `gorm:"size:128;not null" json:"name"`
	CompanyID            int64      `gorm:"index" json:"companyId"`
	BranchID             *int64     `gorm:"index" json:"branchId,omitempty"`
	CategoryID           int64      `gorm:"not null;index" json:"categoryId"`
	EquipmentTypeID      *int64     `gorm:"index" json:"equipmentTypeId,omitempty"`
	SerialNumber         string     `gorm:"size:128" json:"serialNumber"`
	State                AssetState `gorm:"size:16;not null;default:available;index" json:"state"`
	Active               bool       `gorm:"not null;default:true;index" json:"active"`
	AssignedEmployeeID   *int64     `gorm:"index" json:"assignedEmployeeId,omitempty"`
	AssignedDepartmentID *int64     `gorm:"index" json:"assignedDepartmentId,omitempty"`
	PurchaseDate         *time.Time `json:"purchaseDate,omitempty"`
	InServiceDate        *time.Time `json:"inServiceDate,omitempty"`
	NextMaintenanceDate  *time.Time `gorm:"index" json:"nextMaintenanceDate,omitempty"`

	// DepreciationStartDate falls back to InServiceDate, then PurchaseDate.
	DepreciationStartDate *time.Time `json:"depreciationStartDate,omitempty"`

	Value              float64            `gorm:"not null;default:0" json:"value"`
	DepreciationMethod DepreciationMethod `gorm:"size:16;not null;default:none" json:"depreciationMethod"`
	PeriodUnit         PeriodUnit         `gorm:"size:8;not null;default:year" json:"periodUnit"`
	PeriodCount        int                `gorm:"not null;default:3" json:"periodCount"`
	DecliningFactor    float64            `gorm:"not null;default:2" json:"decliningFactor"`

	// Derived by the depreciation calculator, never written by callers.
	ElapsedPeriods          int        `gorm:"not null;default:0" json:"elapsedPeriods"`
	PeriodDepreciation      float64    `gorm:"not null;default:0" json:"periodDepreciation"`
	AccumulatedDepreciation float64    `gorm:"not null;default:0" json:"accumulatedDepreciation"`
	BookValue               float64    `gorm:"not null;default:0" json:"bookValue"`
	DepreciationEvaluatedAt *time.Time `json:"depreciationEvaluatedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Associations
	Category      AssetCategory  `gorm:"constraint:OnDelete:RESTRICT" json:"-"`
	EquipmentType *EquipmentType `gorm:"constraint:OnDelete:SET NULL" json:"equipmentType,omitempty"`
}
