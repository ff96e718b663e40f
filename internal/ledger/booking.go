package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"

	"meeting-resource-backend/internal/events"
	"meeting-resource-backend/internal/model"
	"meeting-resource-backend/internal/schedule"
	"meeting-resource-backend/internal/store"
)

// BookingInput is the payload for creating or updating a booking.
type BookingInput struct {
	Code           string             `json:"code"`
	Title          string             `json:"title"`
	CompanyID      int64              `json:"companyId"`
	RoomID         int64              `json:"roomId"`
	HostID         int64              `json:"hostId"`
	ParticipantIDs []int64            `json:"participantIds"`
	StartAt        time.Time          `json:"startAt"`
	EndAt          time.Time          `json:"endAt"`
	State          model.BookingState `json:"state"`
	// EquipmentIDs nil means "use the room's attached assets".
	EquipmentIDs      []int64        `json:"equipmentIds"`
	RequiredEquipment []string       `json:"requiredEquipment"`
	Note              string         `json:"note"`
	Metadata          datatypes.JSON `json:"metadata,omitempty"`
}

// Validate checks the fields that do not need the store and returns the
// normalised window. An empty state is left alone: create treats it as draft
// and update keeps whatever the booking already has.
func (in *BookingInput) Validate() (schedule.Window, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return schedule.Window{}, schedule.Invalid(schedule.ConstraintField, "title is required")
	}
	switch in.State {
	case "", model.BookingDraft, model.BookingConfirmed, model.BookingCancelled:
	default:
		return schedule.Window{}, schedule.Invalid(schedule.ConstraintState, "unknown booking state %q", in.State)
	}
	if in.RoomID <= 0 {
		return schedule.Window{}, schedule.Invalid(schedule.ConstraintTarget, "room is required")
	}
	if in.HostID <= 0 {
		return schedule.Window{}, schedule.Invalid(schedule.ConstraintHost, "host is required")
	}
	if in.State != "" {
		if err := needParticipants(in.State, len(in.ParticipantIDs)); err != nil {
			return schedule.Window{}, err
		}
	}
	return schedule.NewWindow(in.StartAt, in.EndAt)
}

// needParticipants rejects a live booking without anyone attending it.
func needParticipants(state model.BookingState, n int) error {
	if state != model.BookingCancelled && n == 0 {
		return schedule.Invalid(schedule.ConstraintParticipants, "at least one participant is required")
	}
	return nil
}

func (s *Service) CreateBooking(ctx context.Context, in BookingInput) (*model.Booking, error) {
	if in.State == "" {
		in.State = model.BookingDraft
	}
	w, err := in.Validate()
	if err != nil {
		return nil, err
	}

	b := &model.Booking{State: in.State}
	err = s.guarded(ctx, []string{store.RoomTarget(in.RoomID).Key()}, func(tx store.Store) error {
		if err := s.fillBooking(ctx, tx, b, in, w); err != nil {
			return err
		}
		if err := s.checkBookingWindow(ctx, tx, b); err != nil {
			return err
		}
		code, err := s.code(ctx, tx, in.Code, "booking", s.seq.Booking)
		if err != nil {
			return err
		}
		b.Code = code
		return tx.CreateBooking(ctx, b)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("booking created", "id", b.ID, "code", b.Code, "room_id", b.RoomID, "state", b.State)
	if b.State == model.BookingConfirmed {
		s.publish(events.BookingConfirmed, bookingEvent(b))
	}
	return b, nil
}

// UpdateBooking rewrites a booking. Moving it to another room locks both rooms.
func (s *Service) UpdateBooking(ctx context.Context, id int64, in BookingInput) (*model.Booking, error) {
	w, err := in.Validate()
	if err != nil {
		return nil, err
	}
	current, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	keys := []string{store.RoomTarget(current.RoomID).Key(), store.RoomTarget(in.RoomID).Key()}
	var b *model.Booking
	var prev model.BookingState
	var prevRoom int64
	err = s.guarded(ctx, keys, func(tx store.Store) error {
		var err error
		if b, err = tx.GetBooking(ctx, id); err != nil {
			return err
		}
		if b.RoomID != current.RoomID {
			return fmt.Errorf("booking %d moved concurrently, retry", id)
		}
		prev, prevRoom = b.State, b.RoomID
		if in.State != "" {
			b.State = in.State
		}
		if err := needParticipants(b.State, len(in.ParticipantIDs)); err != nil {
			return err
		}
		if err := s.fillBooking(ctx, tx, b, in, w); err != nil {
			return err
		}
		if in.Code != "" && in.Code != "New" {
			b.Code = in.Code
		}
		if err := s.checkBookingWindow(ctx, tx, b); err != nil {
			return err
		}
		return tx.SaveBooking(ctx, b)
	})
	if err != nil {
		return nil, err
	}

	s.afterBookingTransition(b, prev)
	if prevRoom != b.RoomID && prev.Active() {
		s.notifyRoom(prevRoom)
	}
	return b, nil
}

func (s *Service) ConfirmBooking(ctx context.Context, id int64) (*model.Booking, error) {
	return s.transitionBooking(ctx, id, model.BookingConfirmed)
}

func (s *Service) CancelBooking(ctx context.Context, id int64) (*model.Booking, error) {
	return s.transitionBooking(ctx, id, model.BookingCancelled)
}

func (s *Service) SetBookingDraft(ctx context.Context, id int64) (*model.Booking, error) {
	return s.transitionBooking(ctx, id, model.BookingDraft)
}

func (s *Service) transitionBooking(ctx context.Context, id int64, to model.BookingState) (*model.Booking, error) {
	current, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	var b *model.Booking
	var prev model.BookingState
	err = s.guarded(ctx, []string{store.RoomTarget(current.RoomID).Key()}, func(tx store.Store) error {
		var err error
		if b, err = tx.GetBooking(ctx, id); err != nil {
			return err
		}
		prev = b.State
		if prev == to {
			return nil
		}
		if _, err := tx.LockRoom(ctx, b.RoomID); err != nil {
			return err
		}
		b.State = to
		if err := needParticipants(to, len(b.Participants)); err != nil {
			return err
		}
		if err := s.checkBookingWindow(ctx, tx, b); err != nil {
			return err
		}
		return tx.SaveBooking(ctx, b)
	})
	if err != nil {
		return nil, err
	}

	if prev != to {
		s.log.Info("booking state changed", "id", b.ID, "from", prev, "to", to)
		s.afterBookingTransition(b, prev)
	}
	return b, nil
}

func (s *Service) afterBookingTransition(b *model.Booking, prev model.BookingState) {
	if b.State == prev {
		return
	}
	switch b.State {
	case model.BookingConfirmed:
		s.publish(events.BookingConfirmed, bookingEvent(b))
	case model.BookingCancelled:
		s.publish(events.BookingCancelled, bookingEvent(b))
		if prev.Active() {
			s.notifyRoom(b.RoomID)
		}
	}
}

// fillBooking resolves the references of in and copies them onto b. The room
// row is locked for the rest of the transaction.
func (s *Service) fillBooking(ctx context.Context, tx store.Store, b *model.Booking, in BookingInput, w schedule.Window) error {
	room, err := tx.LockRoom(ctx, in.RoomID)
	if err != nil {
		return missing(err, schedule.ConstraintTarget, "room %d does not exist", in.RoomID)
	}

	if _, err := tx.EmployeesByIDs(ctx, []int64{in.HostID}); err != nil {
		return missing(err, schedule.ConstraintHost, "host %d does not exist", in.HostID)
	}
	participants, err := tx.EmployeesByIDs(ctx, in.ParticipantIDs)
	if err != nil {
		return missing(err, schedule.ConstraintParticipants, "unknown participant in %v", in.ParticipantIDs)
	}

	var equipment []model.Asset
	if in.EquipmentIDs == nil {
		if equipment, err = tx.RoomAssets(ctx, room.ID); err != nil {
			return err
		}
	} else if equipment, err = tx.AssetsByIDs(ctx, in.EquipmentIDs); err != nil {
		return missing(err, schedule.ConstraintField, "unknown equipment in %v", in.EquipmentIDs)
	}
	for _, a := range equipment {
		if a.State == model.AssetBroken {
			return schedule.Invalid(schedule.ConstraintField, "asset %s is broken", a.Code)
		}
	}

	required, err := tx.EquipmentTypesByCodes(ctx, in.RequiredEquipment)
	if err != nil {
		return err
	}

	b.Title = in.Title
	b.CompanyID = in.CompanyID
	if b.CompanyID == 0 {
		b.CompanyID = room.CompanyID
	}
	b.RoomID = room.ID
	b.HostID = in.HostID
	b.StartAt, b.EndAt = w.Start, w.End
	b.Note = in.Note
	if in.Metadata != nil {
		b.Metadata = in.Metadata
	}
	b.Participants = participants
	b.Equipment = equipment
	b.RequiredEquipmentTypes = required
	return nil
}

// checkBookingWindow rejects an active booking whose window intersects another
// active booking or an active downtime window of the same room.
func (s *Service) checkBookingWindow(ctx context.Context, tx store.Store, b *model.Booking) error {
	if !b.State.Active() {
		return nil
	}
	w := schedule.Window{Start: b.StartAt, End: b.EndAt}

	clashes, err := tx.OverlappingBookings(ctx, b.RoomID, w, b.ID)
	if err != nil {
		return err
	}
	if len(clashes) > 0 {
		c := clashes[0]
		return schedule.Conflict(schedule.ClassBooking, c.ID,
			fmt.Sprintf("room is already booked by %s from %s to %s", c.Code, fmtTime(c.StartAt), fmtTime(c.EndAt)))
	}

	downtime, err := tx.OverlappingDowntime(ctx, store.RoomTarget(b.RoomID), w, 0)
	if err != nil {
		return err
	}
	if len(downtime) > 0 {
		d := downtime[0]
		return schedule.Conflict(schedule.ClassDowntime, d.ID,
			fmt.Sprintf("room is under maintenance %s from %s to %s", d.Code, fmtTime(*d.DowntimeStart), fmtTime(*d.DowntimeEnd)))
	}
	return nil
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func bookingEvent(b *model.Booking) events.BookingEvent {
	return events.BookingEvent{
		BookingID: b.ID,
		Code:      b.Code,
		RoomID:    b.RoomID,
		HostID:    b.HostID,
		StartAt:   b.StartAt,
		EndAt:     b.EndAt,
		State:     string(b.State),
	}
}
