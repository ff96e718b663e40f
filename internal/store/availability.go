package store

import (
	"context"
	"fmt"
	"time"

	"meeting-resource-backend/internal/model"
	"meeting-resource-backend/internal/schedule"
)

// BusyRoomIDs returns the rooms holding an active booking or an active room
// downtime that intersects w.
func (s *gormStore) BusyRoomIDs(ctx context.Context, w schedule.Window) (map[int64]bool, error) {
	busy := make(map[int64]bool)

	var booked []int64
	if err := s.db.WithContext(ctx).Model(&model.Booking{}).
		Where("state IN ?", model.ActiveBookingStates).
		Where("start_at < ? AND end_at > ?", w.End.UTC(), w.Start.UTC()).
		Distinct().
		Pluck("room_id", &booked).Error; err != nil {
		return nil, fmt.Errorf("failed to find booked rooms: %w", err)
	}
	for _, id := range booked {
		busy[id] = true
	}

	var down []int64
	if err := s.db.WithContext(ctx).Model(&model.MaintenanceRequest{}).
		Where("room_id IS NOT NULL AND state IN ?", model.ActiveMaintenanceStates).
		Where("downtime_start IS NOT NULL AND downtime_end IS NOT NULL").
		Where("downtime_start < ? AND downtime_end > ?", w.End.UTC(), w.Start.UTC()).
		Distinct().
		Pluck("room_id", &down).Error; err != nil {
		return nil, fmt.Errorf("failed to find rooms under maintenance: %w", err)
	}
	for _, id := range down {
		busy[id] = true
	}
	return busy, nil
}

// RoomWindowsAt returns, per room, the active booking and downtime windows
// that contain at.
func (s *gormStore) RoomWindowsAt(ctx context.Context, roomIDs []int64, at time.Time) (RoomWindows, error) {
	out := RoomWindows{
		Downtime: make(map[int64][]schedule.Window),
		Bookings: make(map[int64][]schedule.Window),
	}
	if len(roomIDs) == 0 {
		return out, nil
	}
	at = at.UTC()

	var bookings []model.Booking
	if err := s.db.WithContext(ctx).
		Select("id", "room_id", "start_at", "end_at").
		Where("room_id IN ? AND state IN ?", roomIDs, model.ActiveBookingStates).
		Where("start_at <= ? AND end_at > ?", at, at).
		Find(&bookings).Error; err != nil {
		return out, fmt.Errorf("failed to load current bookings: %w", err)
	}
	for _, b := range bookings {
		out.Bookings[b.RoomID] = append(out.Bookings[b.RoomID], schedule.Window{Start: b.StartAt, End: b.EndAt})
	}

	var requests []model.MaintenanceRequest
	if err := s.db.WithContext(ctx).
		Select("id", "room_id", "downtime_start", "downtime_end").
		Where("room_id IN ? AND state IN ?", roomIDs, model.ActiveMaintenanceStates).
		Where("downtime_start IS NOT NULL AND downtime_end IS NOT NULL").
		Where("downtime_start <= ? AND downtime_end > ?", at, at).
		Find(&requests).Error; err != nil {
		return out, fmt.Errorf("failed to load current downtime: %w", err)
	}
	for _, m := range requests {
		if m.RoomID == nil || !m.HasWindow() {
			continue
		}
		out.Downtime[*m.RoomID] = append(out.Downtime[*m.RoomID], schedule.Window{Start: *m.DowntimeStart, End: *m.DowntimeEnd})
	}
	return out, nil
}
