package model

import "time"

// MaintenanceState is the lifecycle state of a maintenance request.
type MaintenanceState string

const (
	MaintenanceDraft      MaintenanceState = "draft"
	MaintenanceSubmitted  MaintenanceState = "submitted"
	MaintenanceInProgress MaintenanceState = "in_progress"
	MaintenanceDone       MaintenanceState = "done"
	MaintenanceCancelled  MaintenanceState = "cancelled"
)

// Active reports whether a request in this state reserves its downtime window.
func (s MaintenanceState) Active() bool {
	return s == MaintenanceSubmitted || s == MaintenanceInProgress
}

// ActiveMaintenanceStates lists the states that take part in overlap checks.
var ActiveMaintenanceStates = []MaintenanceState{MaintenanceSubmitted, MaintenanceInProgress}

// RequestFor discriminates the target of a maintenance request.
type RequestFor string

const (
	RequestForRoom  RequestFor = "room"
	RequestForAsset RequestFor = "asset"
)

type MaintenanceCategory struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type MaintenanceTeam struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MaintenanceRequest targets exactly one room or asset and may reserve a
// downtime window [DowntimeStart, DowntimeEnd).
type MaintenanceRequest struct {
	ID            int64            `gorm:"primaryKey" json:"id"`
	Code          string           `gorm:"size:64;not null;uniqueIndex" json:"code"`
	Title         string           `gorm:"size:256;not null" json:"title"`
	Description   string           `gorm:"type:text" json:"description"`
	CompanyID     int64            `gorm:"index" json:"companyId"`
	RequestFor    RequestFor       `gorm:"size:8;not null" json:"requestFor"`
	RoomID        *int64           `gorm:"index" json:"roomId,omitempty"`
	AssetID       *int64           `gorm:"index" json:"assetId,omitempty"`
	CategoryID    *int64           `gorm:"index" json:"categoryId,omitempty"`
	TeamID        *int64           `gorm:"index" json:"teamId,omitempty"`
	RequestedByID *int64           `gorm:"index" json:"requestedById,omitempty"`
	Priority      int              `gorm:"not null;default:0" json:"priority"`
	State         MaintenanceState `gorm:"size:16;not null;default:draft;index" json:"state"`
	DowntimeStart *time.Time       `json:"downtimeStart,omitempty"`
	DowntimeEnd   *time.Time       `json:"downtimeEnd,omitempty"`
	ScheduledDate *time.Time       `json:"scheduledDate,omitempty"`
	CloseDate     *time.Time       `json:"closeDate,omitempty"`
	Cost          float64          `gorm:"not null;default:0" json:"cost"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`

	// Associations
	Room  *Room  `gorm:"constraint:OnDelete:RESTRICT" json:"-"`
	Asset *Asset `gorm:"constraint:OnDelete:RESTRICT" json:"-"`
}

// HasWindow reports whether both ends of the downtime window are set.
func (m *MaintenanceRequest) HasWindow() bool {
	return m.DowntimeStart != nil && m.DowntimeEnd != nil
}
