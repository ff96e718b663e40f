package model

import (
	"time"

	"gorm.io/datatypes"
)

// BookingState is the lifecycle state of a booking.
type BookingState string

const (
	BookingDraft     BookingState = "draft"
	BookingConfirmed BookingState = "confirmed"
	BookingCancelled BookingState = "cancelled"
)

// Active reports whether a booking in this state holds its room.
func (s BookingState) Active() bool {
	return s == BookingDraft || s == BookingConfirmed
}

// ActiveBookingStates lists the states that take part in overlap checks.
var ActiveBookingStates = []BookingState{BookingDraft, BookingConfirmed}

// Booking is a reservation of one room over [StartAt, EndAt).
type Booking struct {
	ID        int64        `gorm:"primaryKey" json:"id"`
	Code      string       `gorm:"size:64;not null;uniqueIndex" json:"code"`
	Title     string       `gorm:"size:256;not null" json:"title"`
	CompanyID int64        `gorm:"index" json:"companyId"`
	RoomID    int64        `gorm:"not null;index:idx_booking_room_window" json:"roomId"`
	HostID    int64        `gorm:"not null;index" json:"hostId"`
	StartAt   time.Time    `gorm:"not null;index:idx_booking_room_window" json:"startAt"`
	EndAt     time.Time    `gorm:"not null;index:idx_booking_room_window" json:"endAt"`
	State     BookingState `gorm:"size:16;not null;default:draft;index" json:"state"`
	Note      string       `gorm:"type:text" json:"note"`

	// Metadata keeps the structured request the booking originated from.
	Metadata datatypes.JSON `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Associations
	Room                   Room            `gorm:"constraint:OnDelete:RESTRICT" json:"-"`
	Host                   Employee        `gorm:"constraint:OnDelete:RESTRICT" json:"-"`
	Participants           []Employee      `gorm:"many2many:booking_participants;" json:"participants,omitempty"`
	Equipment              []Asset         `gorm:"many2many:booking_equipment;" json:"equipment,omitempty"`
	RequiredEquipmentTypes []EquipmentType `gorm:"many2many:booking_required_types;" json:"requiredEquipmentTypes,omitempty"`
}
