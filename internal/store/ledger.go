package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"meeting-resource-backend/internal/model"
	"meeting-resource-backend/internal/schedule"
)

// CreateBooking inserts the booking and its participant, equipment and
// required-type links in one transaction.
func (s *gormStore) CreateBooking(ctx context.Context, b *model.Booking) error {
	return s.atomic(ctx, func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(b).Error; err != nil {
			if isDuplicate(err) {
				return fmt.Errorf("booking code %q: %w", b.Code, ErrConflict)
			}
			return fmt.Errorf("failed to create booking: %w", err)
		}
		return replaceBookingLinks(tx, b)
	})
}

func (s *gormStore) GetBooking(ctx context.Context, id int64) (*model.Booking, error) {
	var b model.Booking
	err := s.db.WithContext(ctx).
		Preload("Participants").
		Preload("Equipment").
		Preload("RequiredEquipmentTypes").
		First(&b, id).Error
	if err != nil {
		return nil, notFound(err, "booking", id)
	}
	return &b, nil
}

// SaveBooking writes the booking columns and replaces its links.
func (s *gormStore) SaveBooking(ctx context.Context, b *model.Booking) error {
	return s.atomic(ctx, func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(b).Error; err != nil {
			return fmt.Errorf("failed to save booking %d: %w", b.ID, err)
		}
		return replaceBookingLinks(tx, b)
	})
}

func replaceBookingLinks(tx *gorm.DB, b *model.Booking) error {
	links := []struct {
		name   string
		values any
		empty  bool
	}{
		{"Participants", b.Participants, len(b.Participants) == 0},
		{"Equipment", b.Equipment, len(b.Equipment) == 0},
		{"RequiredEquipmentTypes", b.RequiredEquipmentTypes, len(b.RequiredEquipmentTypes) == 0},
	}
	for _, l := range links {
		assoc := tx.Model(b).Association(l.name)
		var err error
		if l.empty {
			err = assoc.Clear()
		} else {
			err = assoc.Replace(l.values)
		}
		if err != nil {
			return fmt.Errorf("failed to link %s of booking %d: %w", l.name, b.ID, err)
		}
	}
	return nil
}

func (s *gormStore) ListBookings(ctx context.Context, f BookingFilter) ([]model.Booking, error) {
	q := s.db.WithContext(ctx).Model(&model.Booking{}).Preload("Participants")
	if f.RoomID > 0 {
		q = q.Where("room_id = ?", f.RoomID)
	}
	if f.HostID > 0 {
		q = q.Where("host_id = ?", f.HostID)
	}
	if len(f.States) > 0 {
		q = q.Where("state IN ?", f.States)
	}
	if f.To != nil {
		q = q.Where("start_at < ?", f.To.UTC())
	}
	if f.From != nil {
		q = q.Where("end_at > ?", f.From.UTC())
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var bookings []model.Booking
	if err := q.Order("start_at, id").Find(&bookings).Error; err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

// OverlappingBookings returns the active bookings of the room intersecting w,
// other than excludeID.
func (s *gormStore) OverlappingBookings(ctx context.Context, roomID int64, w schedule.Window, excludeID int64) ([]model.Booking, error) {
	q := s.db.WithContext(ctx).
		Where("room_id = ? AND state IN ?", roomID, model.ActiveBookingStates).
		Where("start_at < ? AND end_at > ?", w.End.UTC(), w.Start.UTC())
	if excludeID > 0 {
		q = q.Where("id <> ?", excludeID)
	}

	var bookings []model.Booking
	if err := q.Order("start_at, id").Find(&bookings).Error; err != nil {
		return nil, fmt.Errorf("failed to check booking overlap for room %d: %w", roomID, err)
	}
	return bookings, nil
}

func (s *gormStore) CountBookings(ctx context.Context, roomID int64) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.Booking{}).Where("room_id = ?", roomID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count bookings of room %d: %w", roomID, err)
	}
	return n, nil
}

func (s *gormStore) CreateMaintenance(ctx context.Context, m *model.MaintenanceRequest) error {
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(m).Error; err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("maintenance code %q: %w", m.Code, ErrConflict)
		}
		return fmt.Errorf("failed to create maintenance request: %w", err)
	}
	return nil
}

func (s *gormStore) GetMaintenance(ctx context.Context, id int64) (*model.MaintenanceRequest, error) {
	var m model.MaintenanceRequest
	if err := s.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, notFound(err, "maintenance request", id)
	}
	return &m, nil
}

func (s *gormStore) SaveMaintenance(ctx context.Context, m *model.MaintenanceRequest) error {
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Save(m).Error; err != nil {
		return fmt.Errorf("failed to save maintenance request %d: %w", m.ID, err)
	}
	return nil
}

func (s *gormStore) ListMaintenance(ctx context.Context, f MaintenanceFilter) ([]model.MaintenanceRequest, error) {
	q := s.db.WithContext(ctx).Model(&model.MaintenanceRequest{})
	if f.RoomID > 0 {
		q = q.Where("room_id = ?", f.RoomID)
	}
	if f.AssetID > 0 {
		q = q.Where("asset_id = ?", f.AssetID)
	}
	if len(f.States) > 0 {
		q = q.Where("state IN ?", f.States)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var requests []model.MaintenanceRequest
	if err := q.Order("priority DESC, id").Find(&requests).Error; err != nil {
		return nil, fmt.Errorf("failed to list maintenance requests: %w", err)
	}
	return requests, nil
}

func targetColumn(t Target) (string, error) {
	switch t.Kind {
	case model.RequestForRoom:
		return "room_id", nil
	case model.RequestForAsset:
		return "asset_id", nil
	default:
		return "", fmt.Errorf("unknown maintenance target %q", t.Kind)
	}
}

// OverlappingDowntime returns the active maintenance requests of the target
// whose downtime window intersects w. Requests without a full window never
// match.
func (s *gormStore) OverlappingDowntime(ctx context.Context, target Target, w schedule.Window, excludeID int64) ([]model.MaintenanceRequest, error) {
	col, err := targetColumn(target)
	if err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).
		Where(col+" = ? AND state IN ?", target.ID, model.ActiveMaintenanceStates).
		Where("downtime_start IS NOT NULL AND downtime_end IS NOT NULL").
		Where("downtime_start < ? AND downtime_end > ?", w.End.UTC(), w.Start.UTC())
	if excludeID > 0 {
		q = q.Where("id <> ?", excludeID)
	}

	var requests []model.MaintenanceRequest
	if err := q.Order("downtime_start, id").Find(&requests).Error; err != nil {
		return nil, fmt.Errorf("failed to check downtime overlap for %s: %w", target.Key(), err)
	}
	return requests, nil
}

func (s *gormStore) CountMaintenance(ctx context.Context, target Target) (int64, error) {
	col, err := targetColumn(target)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.MaintenanceRequest{}).Where(col+" = ?", target.ID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count maintenance requests of %s: %w", target.Key(), err)
	}
	return n, nil
}
