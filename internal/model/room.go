package model

import "time"

// RoomState is the administrative state of a room, set by users or by
// maintenance side effects.
type RoomState string

const (
	RoomAvailable   RoomState = "available"
	RoomMaintenance RoomState = "maintenance"
)

// Valid reports whether s is a known room state.
func (s RoomState) Valid() bool {
	return s == RoomAvailable || s == RoomMaintenance
}

// Room represents a bookable meeting room.
type Room struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Code      string    `gorm:"size:64;not null;uniqueIndex" json:"code"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	CompanyID int64     `gorm:"index" json:"companyId"`
	BranchID  *int64    `gorm:"index" json:"branchId,omitempty"`
	Location  string    `gorm:"size:256" json:"location"`
	Capacity  int       `gorm:"not null;default:0" json:"capacity"`
	State     RoomState `gorm:"size:16;not null;default:available;index" json:"state"`
	Active    bool      `gorm:"not null;default:true;index" json:"active"`
	Note      string    `gorm:"type:text" json:"note"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Associations
	Assets []Asset `gorm:"many2many:room_assets;" json:"assets,omitempty"`
}
