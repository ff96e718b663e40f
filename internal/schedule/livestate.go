package schedule

import (
	"time"

	"meeting-resource-backend/internal/model"
)

// LiveState is the observed state of a room at an instant. It is never stored.
type LiveState string

const (
	LiveAvailable   LiveState = "available"
	LiveInUse       LiveState = "in_use"
	LiveMaintenance LiveState = "maintenance"
)

// Resolve derives the live state of a room. downtime and bookings must only
// contain windows of active records for that room.
//
// Order: admin maintenance, then downtime covering now, then a booking
// covering now, else available.
func Resolve(admin model.RoomState, now time.Time, downtime, bookings []Window) LiveState {
	if admin == model.RoomMaintenance {
		return LiveMaintenance
	}
	for _, w := range downtime {
		if w.Covers(now) {
			return LiveMaintenance
		}
	}
	for _, w := range bookings {
		if w.Covers(now) {
			return LiveInUse
		}
	}
	return LiveAvailable
}
